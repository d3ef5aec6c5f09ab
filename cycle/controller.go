package cycle

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/url"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Nehilsa2/autosearch/browse"
	"github.com/Nehilsa2/autosearch/humanize"
	"github.com/Nehilsa2/autosearch/persistence"
	"github.com/Nehilsa2/autosearch/words"
)

// ErrBusy is returned when Wake is called while another wake-up is running
var ErrBusy = errors.New("wake-up already in progress")

// Outcome reports how a wake-up ended
type Outcome int

const (
	// OutcomeNone means nothing was attempted
	OutcomeNone Outcome = iota
	// OutcomeHalted means the wake-up stopped on purpose before typing (fetch
	// failure, missing search box, storage failure)
	OutcomeHalted
	// OutcomeAborted means the wake-up was cut short after it started acting
	OutcomeAborted
	// OutcomeSubmitted means a search was submitted
	OutcomeSubmitted
	// OutcomeClickedResult means a result link was followed
	OutcomeClickedResult
	// OutcomeReturned means the results page navigated back to the search entry
	OutcomeReturned
	// OutcomeLeftDetour means a detour page went back or home
	OutcomeLeftDetour
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNone:
		return "none"
	case OutcomeHalted:
		return "halted"
	case OutcomeAborted:
		return "aborted"
	case OutcomeSubmitted:
		return "submitted"
	case OutcomeClickedResult:
		return "clicked_result"
	case OutcomeReturned:
		return "returned"
	case OutcomeLeftDetour:
		return "left_detour"
	default:
		return "unknown"
	}
}

// Navigated reports whether the wake-up ended by starting a navigation
func (o Outcome) Navigated() bool {
	switch o {
	case OutcomeSubmitted, OutcomeClickedResult, OutcomeReturned, OutcomeLeftDetour:
		return true
	}
	return false
}

// Page is the browser tab the controller drives
type Page interface {
	browse.Page

	Location(ctx context.Context) (*url.URL, error)
	// SearchInput returns the search text box of the current page
	SearchInput(ctx context.Context) (humanize.Target, error)
	// SubmitSearch submits the form enclosing the search text box
	SubmitSearch(ctx context.Context) error
	Navigate(ctx context.Context, rawURL string) error
	HistoryLength(ctx context.Context) (int, error)
	GoBack(ctx context.Context) error
	Reload(ctx context.Context) error
}

// Queue is the durable word queue
type Queue interface {
	Load(ctx context.Context) (persistence.Record, bool, error)
	Save(ctx context.Context, rec persistence.Record) error
	Advance(ctx context.Context, rec persistence.Record) (persistence.Record, error)
	Clear(ctx context.Context) error
}

// StatsRecorder counts what happened today. Failures are only logged.
type StatsRecorder interface {
	IncrementDailyStat(ctx context.Context, field string) error
	TodayStats(ctx context.Context) (*persistence.DailyStats, error)
}

// Config holds the timing and sizing of the cycle
type Config struct {
	// HomeURL is the search-entry page
	HomeURL       string
	WordBatchSize int

	WakeDelay          humanize.Range
	ResultsSettleDelay humanize.Range
	PreSubmitDelay     humanize.Range
	NextSearchDelay    humanize.Range
	LongBreakDelay     humanize.Range
	DwellTime          humanize.Range

	LongBreakProbability float64
	PostSearchEnabled    bool

	// DailySearchLimit stops submitting once today's count reaches it. 0 means no limit.
	DailySearchLimit int
}

// DefaultConfig returns the cycle timing used unless configured otherwise
func DefaultConfig() Config {
	return Config{
		HomeURL:              "https://www.bing.com/",
		WordBatchSize:        10,
		WakeDelay:            humanize.Millis(5000, 12000),
		ResultsSettleDelay:   humanize.Millis(5000, 9000),
		PreSubmitDelay:       humanize.Millis(2000, 6000),
		NextSearchDelay:      humanize.Seconds(25, 90),
		LongBreakDelay:       humanize.Seconds(5*60, 15*60),
		DwellTime:            humanize.Seconds(12, 30),
		LongBreakProbability: 0.1,
		PostSearchEnabled:    true,
	}
}

// Deps are the collaborators of a Controller. Stats, Behavior, Sleeper and
// Logger are optional.
type Deps struct {
	Queue    Queue
	Supplier words.Supplier
	Typist   *humanize.Typist
	Behavior *browse.Behavior
	Stats    StatsRecorder
	Sleeper  humanize.Sleeper
	Rand     *rand.Rand
	Logger   *zap.Logger
}

// Controller runs one cycle step per wake-up. It holds collaborators only;
// nothing it remembers in memory is trusted across a navigation.
type Controller struct {
	config   Config
	home     *url.URL
	queue    Queue
	supplier words.Supplier
	typist   *humanize.Typist
	behavior *browse.Behavior
	stats    StatsRecorder
	sleeper  humanize.Sleeper
	rng      *rand.Rand
	logger   *zap.Logger

	busy atomic.Bool
}

// New creates a controller
func New(config Config, deps Deps) (*Controller, error) {
	home, err := url.Parse(config.HomeURL)
	if err != nil || home.Host == "" {
		return nil, fmt.Errorf("invalid home URL %q", config.HomeURL)
	}
	if config.WordBatchSize <= 0 {
		return nil, fmt.Errorf("invalid word batch size %d", config.WordBatchSize)
	}
	if deps.Queue == nil || deps.Supplier == nil || deps.Typist == nil || deps.Rand == nil {
		return nil, errors.New("queue, supplier, typist and rand are required")
	}
	if deps.Sleeper == nil {
		deps.Sleeper = humanize.RealSleeper{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	return &Controller{
		config:   config,
		home:     home,
		queue:    deps.Queue,
		supplier: deps.Supplier,
		typist:   deps.Typist,
		behavior: deps.Behavior,
		stats:    deps.Stats,
		sleeper:  deps.Sleeper,
		rng:      deps.Rand,
		logger:   deps.Logger,
	}, nil
}

// Classify returns the state of a location relative to the configured home page
func (c *Controller) Classify(location *url.URL) State {
	return ClassifyPage(location, c.home)
}

// Wake runs exactly one cycle step for the page as it is now. Recoverable
// failures (word fetch, lost typing target) are logged and reported through
// the outcome with a nil error. Storage failures and context cancellation are
// returned as errors.
func (c *Controller) Wake(ctx context.Context, page Page) (Outcome, error) {
	if !c.busy.CompareAndSwap(false, true) {
		return OutcomeNone, ErrBusy
	}
	defer c.busy.Store(false)

	location, err := page.Location(ctx)
	if err != nil {
		return OutcomeNone, fmt.Errorf("failed to read location: %w", err)
	}

	state := c.Classify(location)
	logger := c.logger.With(
		zap.String("wake_id", uuid.NewString()),
		zap.Stringer("state", state),
		zap.String("url", location.String()),
	)
	logger.Debug("Woke up")

	// A detour's dwell time covers the settling wait
	if state == Detour {
		return c.leaveDetour(ctx, page, logger)
	}

	// Let the page's own scripts settle before acting
	if err := c.sleep(ctx, c.config.WakeDelay); err != nil {
		return OutcomeNone, err
	}

	if state == AwaitingSearch {
		return c.search(ctx, page, logger)
	}
	return c.returnHome(ctx, page, logger)
}

// search types and submits the next queued word
func (c *Controller) search(ctx context.Context, page Page, logger *zap.Logger) (Outcome, error) {
	if c.dailyLimitReached(ctx, logger) {
		return OutcomeHalted, nil
	}

	input, err := page.SearchInput(ctx)
	if err != nil {
		logger.Error("Search box not found, nothing to do", zap.Error(err))
		return OutcomeHalted, nil
	}

	record, ok, err := c.queue.Load(ctx)
	if err != nil {
		logger.Error("Cannot read word queue", zap.Error(err))
		return OutcomeHalted, err
	}

	if !ok || record.Exhausted() {
		record, ok, err = c.refill(ctx, logger)
		if err != nil || !ok {
			return OutcomeHalted, err
		}
	}

	word := record.Words[record.Cursor]
	logger = logger.With(
		zap.String("word", word),
		zap.Int("position", record.Cursor+1),
		zap.Int("batch_size", len(record.Words)),
	)

	// Advance before typing: a word cut off by an early navigation is skipped,
	// never repeated.
	if _, err := c.queue.Advance(ctx, record); err != nil {
		logger.Error("Cannot advance word queue", zap.Error(err))
		return OutcomeHalted, err
	}

	logger.Info("Typing search")
	if err := c.typist.Type(ctx, input, word); err != nil {
		if errors.Is(err, humanize.ErrTargetLost) {
			logger.Warn("Search box went away while typing", zap.Error(err))
			return OutcomeAborted, nil
		}
		return OutcomeAborted, err
	}

	if err := c.sleep(ctx, c.config.PreSubmitDelay); err != nil {
		return OutcomeAborted, err
	}

	c.recordStat(ctx, logger, persistence.StatSearchesSubmitted)
	if err := page.SubmitSearch(ctx); err != nil {
		logger.Warn("Submitting search failed", zap.Error(err))
		return OutcomeAborted, nil
	}

	logger.Info("Search submitted")
	return OutcomeSubmitted, nil
}

// refill replaces an empty or exhausted batch. ok is false when the fetch
// failed; the queue is cleared in that case and the wake-up should halt.
func (c *Controller) refill(ctx context.Context, logger *zap.Logger) (persistence.Record, bool, error) {
	logger.Info("Fetching new batch of words", zap.Int("count", c.config.WordBatchSize))

	batch, err := c.supplier.Fetch(ctx, c.config.WordBatchSize)
	if err != nil {
		if ctx.Err() != nil {
			return persistence.Record{}, false, ctx.Err()
		}
		logger.Warn("Could not fetch words, stopping this cycle", zap.Error(err))
		c.recordStat(ctx, logger, persistence.StatFetchFailures)
		if err := c.queue.Clear(ctx); err != nil {
			logger.Error("Cannot clear word queue", zap.Error(err))
			return persistence.Record{}, false, err
		}
		return persistence.Record{}, false, nil
	}

	record := persistence.Record{Words: batch, Cursor: 0}
	if err := c.queue.Save(ctx, record); err != nil {
		logger.Error("Cannot store new word batch", zap.Error(err))
		return persistence.Record{}, false, err
	}
	c.recordStat(ctx, logger, persistence.StatBatchesFetched)

	return record, true, nil
}

// returnHome browses the results, then waits and goes back to the search entry
func (c *Controller) returnHome(ctx context.Context, page Page, logger *zap.Logger) (Outcome, error) {
	if err := c.sleep(ctx, c.config.ResultsSettleDelay); err != nil {
		return OutcomeNone, err
	}

	if c.config.PostSearchEnabled && c.behavior != nil {
		clicked, err := c.behavior.Run(ctx, page)
		switch {
		case ctx.Err() != nil:
			return OutcomeAborted, ctx.Err()
		case err != nil:
			logger.Warn("Browsing results failed", zap.Error(err))
		case clicked:
			c.recordStat(ctx, logger, persistence.StatResultsClicked)
			return OutcomeClickedResult, nil
		}
	}

	delay := c.config.NextSearchDelay.Pick(c.rng)
	if humanize.Chance(c.rng, c.config.LongBreakProbability) {
		delay = c.config.LongBreakDelay.Pick(c.rng)
		logger.Info("Taking a long break", zap.Duration("delay", delay))
	} else {
		logger.Info("Waiting before next search", zap.Duration("delay", delay))
	}
	if err := c.sleeper.Sleep(ctx, delay); err != nil {
		return OutcomeAborted, err
	}

	if err := page.Navigate(ctx, c.home.String()); err != nil {
		return OutcomeAborted, fmt.Errorf("failed to navigate home: %w", err)
	}
	return OutcomeReturned, nil
}

// leaveDetour dwells on a third-party page, then goes back (or home)
func (c *Controller) leaveDetour(ctx context.Context, page Page, logger *zap.Logger) (Outcome, error) {
	if err := c.sleep(ctx, c.config.DwellTime); err != nil {
		return OutcomeNone, err
	}

	length, err := page.HistoryLength(ctx)
	if err == nil && length > 1 {
		err := page.GoBack(ctx)
		if err == nil {
			logger.Info("Left detour through history")
			return OutcomeLeftDetour, nil
		}
		if ctx.Err() != nil {
			return OutcomeAborted, ctx.Err()
		}
		logger.Warn("Going back failed, navigating home instead", zap.Error(err))
	}

	if err := page.Navigate(ctx, c.home.String()); err != nil {
		return OutcomeAborted, fmt.Errorf("failed to navigate home: %w", err)
	}
	logger.Info("Left detour to search entry")
	return OutcomeLeftDetour, nil
}

func (c *Controller) dailyLimitReached(ctx context.Context, logger *zap.Logger) bool {
	if c.config.DailySearchLimit <= 0 || c.stats == nil {
		return false
	}
	today, err := c.stats.TodayStats(ctx)
	if err != nil {
		logger.Debug("Cannot read daily stats, ignoring search limit", zap.Error(err))
		return false
	}
	if today.SearchesSubmitted < c.config.DailySearchLimit {
		return false
	}
	logger.Info("Daily search limit reached",
		zap.Int("limit", c.config.DailySearchLimit),
		zap.Int("submitted", today.SearchesSubmitted))
	return true
}

func (c *Controller) sleep(ctx context.Context, r humanize.Range) error {
	return humanize.SleepRange(ctx, c.sleeper, c.rng, r)
}

func (c *Controller) recordStat(ctx context.Context, logger *zap.Logger, field string) {
	if c.stats == nil {
		return
	}
	if err := c.stats.IncrementDailyStat(ctx, field); err != nil {
		logger.Debug("Failed to record daily stat", zap.String("stat", field), zap.Error(err))
	}
}
