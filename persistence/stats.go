package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Daily counters
const (
	StatSearchesSubmitted = "searches_submitted"
	StatResultsClicked    = "results_clicked"
	StatBatchesFetched    = "batches_fetched"
	StatFetchFailures     = "fetch_failures"
)

var statFields = map[string]bool{
	StatSearchesSubmitted: true,
	StatResultsClicked:    true,
	StatBatchesFetched:    true,
	StatFetchFailures:     true,
}

// DailyStats holds one day of counters
type DailyStats struct {
	Date              string `json:"date"`
	SearchesSubmitted int    `json:"searches_submitted"`
	ResultsClicked    int    `json:"results_clicked"`
	BatchesFetched    int    `json:"batches_fetched"`
	FetchFailures     int    `json:"fetch_failures"`
}

// ensureDailyStats ensures a record exists for today
func (s *Store) ensureDailyStats(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO daily_stats (date) VALUES (?)
	`, getTodayDate())
	return err
}

// IncrementDailyStat increments one of today's counters
func (s *Store) IncrementDailyStat(ctx context.Context, field string) error {
	if !statFields[field] {
		return fmt.Errorf("unknown daily stat %q", field)
	}
	if err := s.ensureDailyStats(ctx); err != nil {
		return err
	}

	query := fmt.Sprintf(`
		UPDATE daily_stats SET %s = %s + 1 WHERE date = ?
	`, field, field)

	_, err := s.db.ExecContext(ctx, query, getTodayDate())
	return err
}

// TodayStats returns today's counters, zeroed when nothing was recorded yet
func (s *Store) TodayStats(ctx context.Context) (*DailyStats, error) {
	return s.DailyStats(ctx, getTodayDate())
}

// DailyStats returns the counters for a YYYY-MM-DD date
func (s *Store) DailyStats(ctx context.Context, date string) (*DailyStats, error) {
	stats := &DailyStats{Date: date}
	err := s.db.QueryRowContext(ctx, `
		SELECT searches_submitted, results_clicked, batches_fetched, fetch_failures
		FROM daily_stats WHERE date = ?
	`, date).Scan(&stats.SearchesSubmitted, &stats.ResultsClicked, &stats.BatchesFetched, &stats.FetchFailures)
	if errors.Is(err, sql.ErrNoRows) {
		return stats, nil
	}
	if err != nil {
		return nil, err
	}
	return stats, nil
}
