// Package words fetches batches of candidate search words from a remote
// word-list service.
package words

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
)

// Fetch failures. Callers branch on these with errors.Is.
var (
	// ErrNetwork is returned when the request could not be delivered or the
	// response could not be read.
	ErrNetwork = errors.New("word source unreachable")

	// ErrTimeout is returned when the request exceeded its time budget.
	ErrTimeout = errors.New("word source timed out")

	// ErrProtocol is returned for a non-success status or a payload that is
	// not a usable JSON array of strings.
	ErrProtocol = errors.New("word source returned an unusable response")
)

const (
	// DefaultEndpoint is the public random word API used by default.
	DefaultEndpoint = "https://random-word-api.vercel.app/api"

	// DefaultTimeout bounds a single fetch.
	DefaultTimeout = 10 * time.Second

	maxBodyBytes = 1 << 20
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Supplier is the contract the search cycle needs from a word source.
type Supplier interface {
	Fetch(ctx context.Context, count int) ([]string, error)
}

// HTTPSupplier fetches words with a GET request to Endpoint?words=<count>.
type HTTPSupplier struct {
	endpoint *url.URL
	client   *http.Client
	timeout  time.Duration
}

// NewHTTPSupplier creates a supplier for endpoint. A non-positive timeout
// falls back to DefaultTimeout; a nil client uses http.DefaultClient.
func NewHTTPSupplier(endpoint string, timeout time.Duration, client *http.Client) (*HTTPSupplier, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid word source endpoint %q: %w", endpoint, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid word source endpoint %q: scheme must be http or https", endpoint)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPSupplier{endpoint: u, client: client, timeout: timeout}, nil
}

// Fetch requests count words. It never retries.
func (s *HTTPSupplier) Fetch(ctx context.Context, count int) ([]string, error) {
	if count <= 0 {
		return nil, fmt.Errorf("invalid word count %d", count)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.requestURL(count), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, fmt.Errorf("%w: status %d", ErrProtocol, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, classifyTransportError(ctx, err)
	}

	return decode(body)
}

func (s *HTTPSupplier) requestURL(count int) string {
	u := *s.endpoint
	q := u.Query()
	q.Set("words", strconv.Itoa(count))
	u.RawQuery = q.Encode()
	return u.String()
}

// decode parses a JSON array of strings, dropping blank entries
func decode(body []byte) ([]string, error) {
	var raw []string
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProtocol, err)
	}

	words := make([]string, 0, len(raw))
	for _, w := range raw {
		w = strings.TrimSpace(w)
		if w != "" {
			words = append(words, w)
		}
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("%w: no words in payload", ErrProtocol)
	}
	return words, nil
}

func classifyTransportError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %w", ErrNetwork, err)
}
