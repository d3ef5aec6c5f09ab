package cycle

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/Nehilsa2/autosearch/browse"
	"github.com/Nehilsa2/autosearch/humanize"
	"github.com/Nehilsa2/autosearch/persistence"
)

const testHome = "https://search.test/"

// fakeTab is an in-memory browser tab with a history stack. Navigating to the
// home page creates a fresh search box, as a real page load would.
type fakeTab struct {
	mu sync.Mutex

	entries []string
	index   int

	input        *fakeInput
	noSearchBox  bool
	loseInputAt  int // search box detaches after this many characters; 0 disables
	results      int
	submitted    []string
	clicks       []string
	reloads      int
	navigateErr  error
	locationErrs int
}

func newFakeTab(start string) *fakeTab {
	tab := &fakeTab{results: 5}
	tab.load(start)
	return tab
}

func (t *fakeTab) load(rawURL string) {
	if len(t.entries) > 0 {
		t.entries = t.entries[:t.index+1]
	}
	t.entries = append(t.entries, rawURL)
	t.index = len(t.entries) - 1
	t.resetInput()
}

func (t *fakeTab) resetInput() {
	t.input = &fakeInput{failFrom: t.loseInputAt}
}

func (t *fakeTab) current() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.entries[t.index]
}

func (t *fakeTab) Location(context.Context) (*url.URL, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.locationErrs > 0 {
		t.locationErrs--
		return nil, errors.New("target closed")
	}
	return url.Parse(t.entries[t.index])
}

func (t *fakeTab) SearchInput(context.Context) (humanize.Target, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.noSearchBox {
		return nil, errors.New("element not found: #q")
	}
	return t.input, nil
}

func (t *fakeTab) SubmitSearch(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	query := t.input.value
	t.submitted = append(t.submitted, query)
	t.load(testHome + "search?q=" + url.QueryEscape(query))
	return nil
}

func (t *fakeTab) Navigate(_ context.Context, rawURL string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.navigateErr != nil {
		return t.navigateErr
	}
	t.load(rawURL)
	return nil
}

func (t *fakeTab) HistoryLength(context.Context) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries), nil
}

func (t *fakeTab) GoBack(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.index == 0 {
		return errors.New("no history")
	}
	t.index--
	t.resetInput()
	return nil
}

func (t *fakeTab) Reload(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reloads++
	t.resetInput()
	return nil
}

func (t *fakeTab) ScrollMetrics(context.Context) (browse.Metrics, error) {
	return browse.Metrics{ScrollHeight: 4000, ViewportHeight: 900}, nil
}

func (t *fakeTab) ScrollTo(context.Context, int, bool) error { return nil }

func (t *fakeTab) ResultCount(context.Context) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.results, nil
}

func (t *fakeTab) ClickResult(_ context.Context, i int) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	href := fmt.Sprintf("https://elsewhere.test/result/%d", i)
	t.clicks = append(t.clicks, href)
	t.load(href)
	return href, nil
}

type fakeInput struct {
	value    string
	events   int
	failFrom int
}

func (f *fakeInput) Focus(context.Context) error { return nil }

func (f *fakeInput) Clear(context.Context) error {
	f.value = ""
	return nil
}

func (f *fakeInput) AppendChar(_ context.Context, ch string) error {
	if f.failFrom > 0 && f.events >= f.failFrom {
		return errors.New("node is detached from document")
	}
	f.value += ch
	f.events++
	return nil
}

// memoryQueue is a Queue kept in memory, with switchable storage failure
type memoryQueue struct {
	mu      sync.Mutex
	record  *persistence.Record
	broken  bool
	history []int // every cursor value ever saved
}

func (q *memoryQueue) Load(context.Context) (persistence.Record, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.broken {
		return persistence.Record{}, false, fmt.Errorf("%w: disk I/O error", persistence.ErrStorageUnavailable)
	}
	if q.record == nil {
		return persistence.Record{}, false, nil
	}
	return persistence.Record{Words: append([]string(nil), q.record.Words...), Cursor: q.record.Cursor}, true, nil
}

func (q *memoryQueue) Save(_ context.Context, rec persistence.Record) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.broken {
		return fmt.Errorf("%w: disk I/O error", persistence.ErrStorageUnavailable)
	}
	if rec.Cursor < 0 || rec.Cursor > len(rec.Words) {
		return persistence.ErrInvalidRecord
	}
	q.record = &persistence.Record{Words: append([]string(nil), rec.Words...), Cursor: rec.Cursor}
	q.history = append(q.history, rec.Cursor)
	return nil
}

func (q *memoryQueue) Advance(ctx context.Context, rec persistence.Record) (persistence.Record, error) {
	next := persistence.Record{Words: rec.Words, Cursor: rec.Cursor + 1}
	if err := q.Save(ctx, next); err != nil {
		return rec, err
	}
	return next, nil
}

func (q *memoryQueue) Clear(context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.broken {
		return fmt.Errorf("%w: disk I/O error", persistence.ErrStorageUnavailable)
	}
	q.record = nil
	return nil
}

func (q *memoryQueue) snapshot() (persistence.Record, bool) {
	rec, ok, _ := q.Load(context.Background())
	return rec, ok
}

// fakeSupplier hands out prepared batches in order, then fails
type fakeSupplier struct {
	mu      sync.Mutex
	batches [][]string
	err     error
	calls   int
	counts  []int
}

func (s *fakeSupplier) Fetch(_ context.Context, count int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.counts = append(s.counts, count)
	if s.err != nil {
		return nil, s.err
	}
	if len(s.batches) == 0 {
		return nil, errors.New("no more batches")
	}
	batch := s.batches[0]
	s.batches = s.batches[1:]
	return batch, nil
}

type recordingSleeper struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waits = append(s.waits, d)
	return ctx.Err()
}

func (s *recordingSleeper) all() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.waits...)
}

// blockingSleeper parks the first Sleep call until released
type blockingSleeper struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newBlockingSleeper() *blockingSleeper {
	return &blockingSleeper{entered: make(chan struct{}), release: make(chan struct{})}
}

func (s *blockingSleeper) Sleep(ctx context.Context, _ time.Duration) error {
	first := false
	s.once.Do(func() { first = true })
	if !first {
		return ctx.Err()
	}
	close(s.entered)
	select {
	case <-s.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type fakeStats struct {
	mu     sync.Mutex
	counts map[string]int
}

func (s *fakeStats) IncrementDailyStat(_ context.Context, field string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.counts == nil {
		s.counts = make(map[string]int)
	}
	s.counts[field]++
	return nil
}

func (s *fakeStats) TodayStats(context.Context) (*persistence.DailyStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &persistence.DailyStats{
		Date:              "2026-01-01",
		SearchesSubmitted: s.counts[persistence.StatSearchesSubmitted],
		ResultsClicked:    s.counts[persistence.StatResultsClicked],
		BatchesFetched:    s.counts[persistence.StatBatchesFetched],
		FetchFailures:     s.counts[persistence.StatFetchFailures],
	}, nil
}

func (s *fakeStats) get(field string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[field]
}
