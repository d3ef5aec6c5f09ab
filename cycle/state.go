// Package cycle implements the search-cycle state machine. Every page load is
// a separate wake-up: the controller works out where it is from the URL alone,
// does one step, and leaves the rest to the next page load. The only state
// that crosses a navigation is the persisted word queue.
package cycle

import (
	"net/url"
	"strings"
)

// State is where a wake-up finds itself
type State int

const (
	// AwaitingSearch is the search-entry page: type and submit the next word
	AwaitingSearch State = iota
	// AwaitingReturn is a results page (or any other page of the engine)
	AwaitingReturn
	// Detour is a third-party page reached by clicking a result
	Detour
)

func (s State) String() string {
	switch s {
	case AwaitingSearch:
		return "awaiting_search"
	case AwaitingReturn:
		return "awaiting_return"
	case Detour:
		return "detour"
	default:
		return "unknown"
	}
}

// ClassifyPage derives the cycle state from the current location and the
// search-entry URL. It only looks at host, path and query.
func ClassifyPage(location, home *url.URL) State {
	if !strings.EqualFold(location.Hostname(), home.Hostname()) {
		return Detour
	}
	if (location.Path == "" || location.Path == "/") && location.RawQuery == "" {
		return AwaitingSearch
	}
	return AwaitingReturn
}
