package cycle

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/Nehilsa2/autosearch/humanize"
)

// Runner feeds page loads to a Controller. Each loop iteration is a fresh
// wake-up; when a wake-up ends without navigating, the runner waits and
// reloads the page, which is the next independent trigger.
type Runner struct {
	controller *Controller
	sleeper    humanize.Sleeper
	retryDelay time.Duration
	maxWakeUps int
	logger     *zap.Logger
}

// NewRunner creates a runner. maxWakeUps <= 0 means run until ctx is done.
func NewRunner(controller *Controller, sleeper humanize.Sleeper, retryDelay time.Duration, maxWakeUps int, logger *zap.Logger) *Runner {
	if sleeper == nil {
		sleeper = humanize.RealSleeper{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		controller: controller,
		sleeper:    sleeper,
		retryDelay: retryDelay,
		maxWakeUps: maxWakeUps,
		logger:     logger,
	}
}

// Run loops until ctx is cancelled or maxWakeUps wake-ups have run.
// It returns nil on cancellation.
func (r *Runner) Run(ctx context.Context, page Page) error {
	for n := 0; r.maxWakeUps <= 0 || n < r.maxWakeUps; n++ {
		outcome, err := r.controller.Wake(ctx, page)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			r.logger.Error("Wake-up failed", zap.Stringer("outcome", outcome), zap.Error(err))
		} else {
			r.logger.Debug("Wake-up finished", zap.Stringer("outcome", outcome))
		}

		if outcome.Navigated() {
			continue
		}

		r.logger.Info("Nothing navigated, retrying after delay", zap.Duration("delay", r.retryDelay))
		if err := r.sleeper.Sleep(ctx, r.retryDelay); err != nil {
			return nil
		}
		if err := page.Reload(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			r.logger.Warn("Reload failed", zap.Error(err))
		}
	}
	return nil
}
