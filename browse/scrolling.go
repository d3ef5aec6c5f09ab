// Package browse simulates reading a results page: a scroll pattern followed
// by an occasional click on one of the results.
package browse

import (
	"context"
	"fmt"
	"math/rand"

	"go.uber.org/zap"

	"github.com/Nehilsa2/autosearch/humanize"
)

// Metrics describes the scrollable extent of a page
type Metrics struct {
	ScrollHeight   int
	ViewportHeight int
}

// MaxY is the largest useful scroll offset
func (m Metrics) MaxY() int {
	if m.ScrollHeight <= m.ViewportHeight {
		return 0
	}
	return m.ScrollHeight - m.ViewportHeight
}

// Page is what the behavior needs from a results page
type Page interface {
	ScrollMetrics(ctx context.Context) (Metrics, error)
	ScrollTo(ctx context.Context, y int, smooth bool) error
	ResultCount(ctx context.Context) (int, error)
	// ClickResult activates the i-th result in the current tab and returns its href
	ClickResult(ctx context.Context, i int) (string, error)
}

// Config holds configuration for the post-search behavior
type Config struct {
	// Number of downward scroll steps
	ScrollSteps humanize.IntRange `mapstructure:"scrollStepsRange"`
	// Pixels per downward step
	ScrollDistance humanize.IntRange `mapstructure:"scrollDistanceRange"`
	// Settle time after a downward step
	ScrollSettle humanize.Range `mapstructure:"scrollSettleRange"`

	// Probability of scrolling back up partway after a step (0.0 to 1.0)
	ScrollBackProbability float64           `mapstructure:"scrollBackProbability"`
	ScrollBackDistance    humanize.IntRange `mapstructure:"scrollBackDistanceRange"`
	ScrollBackSettle      humanize.Range    `mapstructure:"scrollBackSettleRange"`

	// Probability of visiting the bottom of the page once the steps are done
	BottomVisitProbability float64        `mapstructure:"bottomVisitProbability"`
	BottomDwell            humanize.Range `mapstructure:"bottomDwellRange"`

	// Settle time after returning to the top
	TopSettle humanize.Range `mapstructure:"topSettleRange"`

	// Probability of clicking a random result (0.0 to 1.0)
	ResultClickProbability float64 `mapstructure:"resultClickProbability"`
}

// DefaultConfig returns a leisurely skim of a results page
func DefaultConfig() Config {
	return Config{
		ScrollSteps:            humanize.IntRange{Min: 5, Max: 15},
		ScrollDistance:         humanize.IntRange{Min: 150, Max: 800},
		ScrollSettle:           humanize.Millis(1500, 5000),
		ScrollBackProbability:  0.3,
		ScrollBackDistance:     humanize.IntRange{Min: 200, Max: 600},
		ScrollBackSettle:       humanize.Millis(1500, 4000),
		BottomVisitProbability: 0.3,
		BottomDwell:            humanize.Millis(4000, 8000),
		TopSettle:              humanize.Millis(3000, 6000),
		ResultClickProbability: 0.7,
	}
}

// Behavior runs the post-search routine on a results page
type Behavior struct {
	config  Config
	sleeper humanize.Sleeper
	rng     *rand.Rand
	logger  *zap.Logger
}

// NewBehavior creates a behavior. A nil sleeper falls back to humanize.RealSleeper.
func NewBehavior(config Config, sleeper humanize.Sleeper, rng *rand.Rand, logger *zap.Logger) *Behavior {
	if sleeper == nil {
		sleeper = humanize.RealSleeper{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Behavior{config: config, sleeper: sleeper, rng: rng, logger: logger}
}

// Run scrolls the page and then maybe clicks a result. clicked is true when a
// click was issued; the page is navigating away in that case.
func (b *Behavior) Run(ctx context.Context, page Page) (clicked bool, err error) {
	if err := b.Scroll(ctx, page); err != nil {
		return false, err
	}
	return b.MaybeClickResult(ctx, page)
}

// Scroll performs the downward scroll pattern and always finishes at the top
func (b *Behavior) Scroll(ctx context.Context, page Page) error {
	metrics, err := page.ScrollMetrics(ctx)
	if err != nil {
		return fmt.Errorf("failed to read scroll metrics: %w", err)
	}
	maxY := metrics.MaxY()

	y := 0
	steps := b.config.ScrollSteps.Pick(b.rng)
	for i := 0; i < steps; i++ {
		y = min(maxY, y+b.config.ScrollDistance.Pick(b.rng))
		if err := b.scrollAndSettle(ctx, page, y, false, b.config.ScrollSettle); err != nil {
			return err
		}

		// Occasional scroll-back (re-reading something)
		if humanize.Chance(b.rng, b.config.ScrollBackProbability) {
			y = max(0, y-b.config.ScrollBackDistance.Pick(b.rng))
			if err := b.scrollAndSettle(ctx, page, y, false, b.config.ScrollBackSettle); err != nil {
				return err
			}
		}
	}

	// Sometimes go to the bottom and linger
	if humanize.Chance(b.rng, b.config.BottomVisitProbability) {
		if err := b.scrollAndSettle(ctx, page, maxY, false, b.config.BottomDwell); err != nil {
			return err
		}
	}

	return b.scrollAndSettle(ctx, page, 0, true, b.config.TopSettle)
}

func (b *Behavior) scrollAndSettle(ctx context.Context, page Page, y int, smooth bool, settle humanize.Range) error {
	if err := page.ScrollTo(ctx, y, smooth); err != nil {
		return fmt.Errorf("failed to scroll to %d: %w", y, err)
	}
	return humanize.SleepRange(ctx, b.sleeper, b.rng, settle)
}

// MaybeClickResult clicks one uniformly chosen result with the configured probability
func (b *Behavior) MaybeClickResult(ctx context.Context, page Page) (bool, error) {
	if !humanize.Chance(b.rng, b.config.ResultClickProbability) {
		return false, nil
	}

	count, err := page.ResultCount(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to count results: %w", err)
	}
	if count == 0 {
		b.logger.Debug("No results to click")
		return false, nil
	}

	i := b.rng.Intn(count)
	href, err := page.ClickResult(ctx, i)
	if err != nil {
		return false, fmt.Errorf("failed to click result %d: %w", i, err)
	}

	b.logger.Info("Clicked result", zap.Int("position", i), zap.String("href", href))
	return true, nil
}
