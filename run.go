package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Nehilsa2/autosearch/browse"
	"github.com/Nehilsa2/autosearch/browser"
	"github.com/Nehilsa2/autosearch/cycle"
	"github.com/Nehilsa2/autosearch/humanize"
	"github.com/Nehilsa2/autosearch/persistence"
	"github.com/Nehilsa2/autosearch/words"
)

func (a *app) newRunCmd() *cobra.Command {
	var (
		maxWakeUps int
		seed       int64
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Launch or attach to a browser and run search cycles until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			store, controller, err := a.openController(seed)
			if err != nil {
				return err
			}
			defer store.Close()

			session, err := browser.Start(ctx, a.cfg.Browser, a.logger.Named("browser"))
			if err != nil {
				return err
			}
			defer func() {
				if err := session.Close(); err != nil {
					a.logger.Warn("Failed to close browser", zap.Error(err))
				}
			}()

			tab, err := a.tab(ctx, session)
			if err != nil {
				return err
			}

			runner := cycle.NewRunner(controller, humanize.RealSleeper{}, a.cfg.RetryDelay, maxWakeUps, a.logger.Named("runner"))
			a.logger.Info("Search cycle started",
				zap.String("engine", a.cfg.SearchEngineURL),
				zap.String("db", store.Path()),
				zap.String("namespace", a.cfg.Storage.Namespace))

			err = runner.Run(ctx, tab)
			if ctx.Err() != nil {
				// every step persists before it acts, so there is nothing to flush
				a.logger.Info("Interrupted, queue state is saved")
			}
			return err
		},
	}

	cmd.Flags().String("control-url", "", "DevTools websocket URL of a running browser to attach to")
	cmd.Flags().Bool("headless", false, "launch the browser headless")
	cmd.Flags().IntVar(&maxWakeUps, "max-wakeups", 0, "stop after this many wake-ups (0 runs until interrupted)")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed (0 seeds from the clock)")
	return cmd
}

func (a *app) newStepCmd() *cobra.Command {
	var seed int64

	cmd := &cobra.Command{
		Use:   "step",
		Short: "Run a single wake-up against the first tab of a running browser",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.Browser.ControlURL == "" {
				return errors.New("step needs --control-url or browser.controlURL")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			store, controller, err := a.openController(seed)
			if err != nil {
				return err
			}
			defer store.Close()

			session, err := browser.Start(ctx, a.cfg.Browser, a.logger.Named("browser"))
			if err != nil {
				return err
			}
			defer session.Close()

			tab, err := session.FirstTab(ctx)
			if err != nil {
				return err
			}

			outcome, err := controller.Wake(ctx, tab)
			fmt.Fprintln(cmd.OutOrStdout(), outcome)
			return err
		},
	}

	cmd.Flags().String("control-url", "", "DevTools websocket URL of the running browser")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed (0 seeds from the clock)")
	return cmd
}

// tab attaches to the first tab of a browser reached by control URL, or opens
// the search engine in a browser we launched
func (a *app) tab(ctx context.Context, session *browser.Session) (*browser.Tab, error) {
	if a.cfg.Browser.ControlURL != "" {
		return session.FirstTab(ctx)
	}
	return session.OpenTab(ctx, a.cfg.SearchEngineURL)
}

// openController wires the store, word source, typist and results behavior
// into a controller. The caller closes the store.
func (a *app) openController(seed int64) (*persistence.Store, *cycle.Controller, error) {
	cfg := a.cfg

	supplier, err := words.NewHTTPSupplier(cfg.WordSourceEndpoint, cfg.WordFetchTimeout, nil)
	if err != nil {
		return nil, nil, err
	}

	store, err := persistence.NewStore(cfg.Storage.Path)
	if err != nil {
		return nil, nil, err
	}

	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	sleeper := humanize.RealSleeper{}

	controller, err := cycle.New(cfg.CycleConfig(), cycle.Deps{
		Queue:    persistence.NewQueue(store, cfg.Storage.Namespace, a.logger.Named("queue")),
		Supplier: supplier,
		Typist:   humanize.NewTypist(cfg.Typing, sleeper, rng),
		Behavior: browse.NewBehavior(cfg.Browse, sleeper, rng, a.logger.Named("browse")),
		Stats:    store,
		Sleeper:  sleeper,
		Rand:     rng,
		Logger:   a.logger.Named("cycle"),
	})
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return store, controller, nil
}
