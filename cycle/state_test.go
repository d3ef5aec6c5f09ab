package cycle

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestClassifyPage(t *testing.T) {
	t.Parallel()

	home := mustParse(t, "https://www.bing.com/")

	tests := []struct {
		location string
		want     State
	}{
		{"https://www.bing.com/", AwaitingSearch},
		{"https://www.bing.com", AwaitingSearch},
		{"https://WWW.BING.COM/", AwaitingSearch},
		{"https://www.bing.com/search?q=alpha&form=QBLH", AwaitingReturn},
		{"https://www.bing.com/?toWww=1", AwaitingReturn},
		{"https://www.bing.com/images", AwaitingReturn},
		{"https://en.wikipedia.org/wiki/Alpha", Detour},
		{"https://bing.com/", Detour},
		{"about:blank", Detour},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.location, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ClassifyPage(mustParse(t, tt.location), home))
		})
	}
}

func TestClassifyPageIsIdempotent(t *testing.T) {
	t.Parallel()

	home := mustParse(t, "https://www.bing.com/")
	loc := mustParse(t, "https://www.bing.com/search?q=beta")

	first := ClassifyPage(loc, home)
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, ClassifyPage(loc, home))
	}
	assert.Equal(t, "https://www.bing.com/search?q=beta", loc.String(), "location must not be mutated")
}

func TestStateString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "awaiting_search", AwaitingSearch.String())
	assert.Equal(t, "awaiting_return", AwaitingReturn.String())
	assert.Equal(t, "detour", Detour.String())
	assert.Equal(t, "unknown", State(42).String())
}
