package main

import (
	"fmt"
	"io"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/Nehilsa2/autosearch/persistence"
)

// statusReport is what `status` prints
type statusReport struct {
	DB        string                  `json:"db"`
	Namespace string                  `json:"namespace"`
	Queued    bool                    `json:"queued"`
	Words     []string                `json:"words,omitempty"`
	Cursor    int                     `json:"cursor"`
	Next      string                  `json:"next,omitempty"`
	Remaining int                     `json:"remaining"`
	Today     *persistence.DailyStats `json:"today"`
}

func (a *app) newStatusCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the saved word queue and today's counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := persistence.NewStore(a.cfg.Storage.Path)
			if err != nil {
				return err
			}
			defer store.Close()

			queue := persistence.NewQueue(store, a.cfg.Storage.Namespace, a.logger.Named("queue"))
			rec, ok, err := queue.Load(ctx)
			if err != nil {
				return err
			}
			today, err := store.TodayStats(ctx)
			if err != nil {
				return err
			}

			report := statusReport{
				DB:        store.Path(),
				Namespace: a.cfg.Storage.Namespace,
				Queued:    ok,
				Words:     rec.Words,
				Cursor:    rec.Cursor,
				Remaining: rec.Remaining(),
				Today:     today,
			}
			if ok && !rec.Exhausted() {
				report.Next = rec.Words[rec.Cursor]
			}

			if asJSON {
				enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			printStatus(cmd.OutOrStdout(), report)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func printStatus(w io.Writer, r statusReport) {
	fmt.Fprintf(w, "Database:   %s\n", r.DB)
	fmt.Fprintf(w, "Namespace:  %s\n", r.Namespace)
	if !r.Queued {
		fmt.Fprintln(w, "Queue:      empty (a batch is fetched on the next search)")
	} else {
		fmt.Fprintf(w, "Queue:      %d/%d used, %d remaining\n", r.Cursor, len(r.Words), r.Remaining)
		fmt.Fprintf(w, "Words:      %s\n", strings.Join(r.Words, ", "))
		if r.Next != "" {
			fmt.Fprintf(w, "Next word:  %s\n", r.Next)
		}
	}
	fmt.Fprintf(w, "Today (%s): %d searches, %d results opened, %d batches fetched, %d fetch failures\n",
		r.Today.Date, r.Today.SearchesSubmitted, r.Today.ResultsClicked, r.Today.BatchesFetched, r.Today.FetchFailures)
}

func (a *app) newResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Discard the saved word queue so the next search fetches a fresh batch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := persistence.NewStore(a.cfg.Storage.Path)
			if err != nil {
				return err
			}
			defer store.Close()

			queue := persistence.NewQueue(store, a.cfg.Storage.Namespace, a.logger.Named("queue"))
			if err := queue.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared word queue %q in %s\n", a.cfg.Storage.Namespace, store.Path())
			return nil
		},
	}
}
