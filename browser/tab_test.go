package browser

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nehilsa2/autosearch/cycle"
	"github.com/Nehilsa2/autosearch/humanize"
)

var _ cycle.Page = (*Tab)(nil)

const homeHTML = `<!doctype html>
<html><body>
<form action="/search" method="get"><input id="q" name="q" type="search"></form>
</body></html>`

const formlessHTML = `<!doctype html>
<html><body>
<input id="q" type="search">
<script>
document.getElementById('q').addEventListener('keydown', e => {
	if (e.key === 'Enter') location.href = '/search?q=' + encodeURIComponent(e.target.value)
})
</script>
</body></html>`

func searchEngine(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, homeHTML)
	})
	mux.HandleFunc("/formless", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, formlessHTML)
	})
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<!doctype html><html><body style="height:4000px">
<h1>%s</h1>
<ol id="results">
<li><a href="/result/0" target="_blank">zero</a></li>
<li><a href="/result/1" target="_blank">one</a></li>
<li><a href="/result/2" target="_blank">two</a></li>
</ol></body></html>`, r.URL.Query().Get("q"))
	})
	mux.HandleFunc("/result/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<!doctype html><html><body>result</body></html>`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// startBrowser launches headless Chromium. These tests need a local browser
// and are skipped unless AUTOSEARCH_BROWSER_TESTS is set.
func startBrowser(t *testing.T) *Session {
	t.Helper()
	if os.Getenv("AUTOSEARCH_BROWSER_TESTS") == "" {
		t.Skip("set AUTOSEARCH_BROWSER_TESTS=1 to run browser tests")
	}

	opts := DefaultOptions()
	opts.Headless = true
	opts.SearchInputSelector = "#q"
	opts.ResultLinkSelector = "#results a"
	opts.NavigationTimeout = 10 * time.Second

	s, err := Start(context.Background(), opts, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

type noSleep struct{}

func (noSleep) Sleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

func TestTabSearchAndBrowse(t *testing.T) {
	srv := searchEngine(t)
	s := startBrowser(t)
	ctx := context.Background()

	tab, err := s.OpenTab(ctx, srv.URL+"/")
	require.NoError(t, err)

	loc, err := tab.Location(ctx)
	require.NoError(t, err)
	assert.Equal(t, "/", loc.Path)

	_, err = tab.page.Eval(`() => {
		window.inputEvents = 0
		document.addEventListener('input', () => window.inputEvents++)
	}`)
	require.NoError(t, err)

	box, err := tab.SearchInput(ctx)
	require.NoError(t, err)
	typist := humanize.NewTypist(humanize.TypingConfig{}, noSleep{}, rand.New(rand.NewSource(1)))
	require.NoError(t, typist.Type(ctx, box, "alpha"))

	// one input event per character, none for the clear
	events, err := tab.page.Eval(`() => window.inputEvents`)
	require.NoError(t, err)
	assert.Equal(t, len("alpha"), events.Value.Int())

	require.NoError(t, tab.SubmitSearch(ctx))

	loc, err = tab.Location(ctx)
	require.NoError(t, err)
	assert.Equal(t, "/search", loc.Path)
	assert.Equal(t, "alpha", loc.Query().Get("q"))

	metrics, err := tab.ScrollMetrics(ctx)
	require.NoError(t, err)
	assert.Greater(t, metrics.MaxY(), 0)
	require.NoError(t, tab.ScrollTo(ctx, 500, false))

	count, err := tab.ResultCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	href, err := tab.ClickResult(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/result/1", href)

	loc, err = tab.Location(ctx)
	require.NoError(t, err)
	assert.Equal(t, "/result/1", loc.Path, "result must open in the same tab")

	n, err := tab.HistoryLength(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 3)

	require.NoError(t, tab.GoBack(ctx))
	loc, err = tab.Location(ctx)
	require.NoError(t, err)
	assert.Equal(t, "/search", loc.Path)

	require.NoError(t, tab.Navigate(ctx, srv.URL+"/"))
	require.NoError(t, tab.Reload(ctx))
	loc, err = tab.Location(ctx)
	require.NoError(t, err)
	assert.Equal(t, "/", loc.Path)
}

func TestTabSubmitWithoutForm(t *testing.T) {
	srv := searchEngine(t)
	s := startBrowser(t)
	ctx := context.Background()

	tab, err := s.OpenTab(ctx, srv.URL+"/formless")
	require.NoError(t, err)

	box, err := tab.SearchInput(ctx)
	require.NoError(t, err)
	require.NoError(t, box.Clear(ctx))
	require.NoError(t, box.AppendChar(ctx, "b"))
	require.NoError(t, tab.SubmitSearch(ctx))

	loc, err := tab.Location(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b", loc.Query().Get("q"))
}

func TestTabSearchBoxLostAfterNavigation(t *testing.T) {
	srv := searchEngine(t)
	s := startBrowser(t)
	ctx := context.Background()

	tab, err := s.OpenTab(ctx, srv.URL+"/")
	require.NoError(t, err)
	box, err := tab.SearchInput(ctx)
	require.NoError(t, err)

	require.NoError(t, tab.Navigate(ctx, srv.URL+"/result/9"))
	assert.Error(t, box.AppendChar(ctx, "x"))

	_, err = tab.SearchInput(ctx)
	assert.ErrorIs(t, err, ErrNotFound)
}
