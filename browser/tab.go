package browser

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/Nehilsa2/autosearch/browse"
	"github.com/Nehilsa2/autosearch/humanize"
)

// ErrNotFound is returned when a selector matches nothing on the current page
var ErrNotFound = errors.New("element not found")

// Tab is a single browser tab. Every call takes the caller's context so a
// cancelled wake-up stops its in-flight CDP request.
type Tab struct {
	page   *rod.Page
	opts   Options
	logger *zap.Logger
}

func newTab(page *rod.Page, opts Options, logger *zap.Logger) *Tab {
	return &Tab{page: page, opts: opts, logger: logger}
}

func (t *Tab) with(ctx context.Context) *rod.Page {
	return t.page.Context(ctx)
}

// Location is the URL of the document currently shown in the tab
func (t *Tab) Location(ctx context.Context) (*url.URL, error) {
	info, err := t.with(ctx).Info()
	if err != nil {
		return nil, fmt.Errorf("read location: %w", err)
	}
	return url.Parse(info.URL)
}

// SearchInput finds the search text box without waiting for it to appear
func (t *Tab) SearchInput(ctx context.Context) (humanize.Target, error) {
	el, err := t.find(ctx, t.opts.SearchInputSelector)
	if err != nil {
		return nil, err
	}
	return &textBox{el: el}, nil
}

// SubmitSearch submits the form around the search box, or presses Enter in it
// when it has no form, and waits for the results page to load.
func (t *Tab) SubmitSearch(ctx context.Context) error {
	el, err := t.find(ctx, t.opts.SearchInputSelector)
	if err != nil {
		return err
	}

	return t.navigation(ctx, func(p *rod.Page) error {
		res, err := el.Context(p.GetContext()).Eval(`() => {
			const form = this.closest('form')
			if (!form) return false
			form.submit()
			return true
		}`)
		if err != nil {
			return fmt.Errorf("submit search: %w", err)
		}
		if res.Value.Bool() {
			return nil
		}

		t.logger.Debug("Search box has no form, pressing Enter")
		if err := el.Context(p.GetContext()).Focus(); err != nil {
			return fmt.Errorf("focus search box: %w", err)
		}
		return p.Keyboard.Press(input.Enter)
	})
}

// Navigate loads rawURL in the tab
func (t *Tab) Navigate(ctx context.Context, rawURL string) error {
	p := t.with(ctx).Timeout(t.opts.NavigationTimeout)
	defer p.CancelTimeout()

	if err := p.Navigate(rawURL); err != nil {
		return fmt.Errorf("navigate to %s: %w", rawURL, err)
	}
	if err := p.WaitLoad(); err != nil {
		return fmt.Errorf("wait for %s: %w", rawURL, err)
	}
	return nil
}

// HistoryLength is the number of entries in the tab's session history
func (t *Tab) HistoryLength(ctx context.Context) (int, error) {
	res, err := t.with(ctx).Eval(`() => history.length`)
	if err != nil {
		return 0, fmt.Errorf("read history length: %w", err)
	}
	return res.Value.Int(), nil
}

// GoBack moves one entry back in the session history
func (t *Tab) GoBack(ctx context.Context) error {
	return t.navigation(ctx, func(p *rod.Page) error {
		if err := p.NavigateBack(); err != nil {
			return fmt.Errorf("go back: %w", err)
		}
		return nil
	})
}

// Reload reloads the current document
func (t *Tab) Reload(ctx context.Context) error {
	p := t.with(ctx).Timeout(t.opts.NavigationTimeout)
	defer p.CancelTimeout()

	if err := p.Reload(); err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	return p.WaitLoad()
}

// ScrollMetrics reads the document height and the viewport height
func (t *Tab) ScrollMetrics(ctx context.Context) (browse.Metrics, error) {
	res, err := t.with(ctx).Eval(`() => ({
		scroll: document.documentElement.scrollHeight,
		viewport: window.innerHeight,
	})`)
	if err != nil {
		return browse.Metrics{}, fmt.Errorf("read scroll metrics: %w", err)
	}
	return browse.Metrics{
		ScrollHeight:   res.Value.Get("scroll").Int(),
		ViewportHeight: res.Value.Get("viewport").Int(),
	}, nil
}

// ScrollTo scrolls the window to vertical offset y
func (t *Tab) ScrollTo(ctx context.Context, y int, smooth bool) error {
	_, err := t.with(ctx).Eval(`(y, smooth) => window.scrollTo({top: y, behavior: smooth ? 'smooth' : 'auto'})`, y, smooth)
	if err != nil {
		return fmt.Errorf("scroll to %d: %w", y, err)
	}
	return nil
}

// ResultCount is the number of organic result links on the page
func (t *Tab) ResultCount(ctx context.Context) (int, error) {
	links, err := t.with(ctx).Elements(t.opts.ResultLinkSelector)
	if err != nil {
		return 0, fmt.Errorf("find results: %w", err)
	}
	return len(links), nil
}

// ClickResult clicks the i-th result link, forcing it to open in this tab
func (t *Tab) ClickResult(ctx context.Context, i int) (string, error) {
	links, err := t.with(ctx).Elements(t.opts.ResultLinkSelector)
	if err != nil {
		return "", fmt.Errorf("find results: %w", err)
	}
	if i < 0 || i >= len(links) {
		return "", fmt.Errorf("%w: result %d of %d", ErrNotFound, i, len(links))
	}

	var href string
	err = t.navigation(ctx, func(p *rod.Page) error {
		res, err := links[i].Context(p.GetContext()).Eval(`() => {
			this.removeAttribute('target')
			const href = this.href
			this.click()
			return href
		}`)
		if err != nil {
			return fmt.Errorf("click result %d: %w", i, err)
		}
		href = res.Value.Str()
		return nil
	})
	return href, err
}

// navigation runs action and waits for the page load it triggers
func (t *Tab) navigation(ctx context.Context, action func(p *rod.Page) error) error {
	p := t.with(ctx).Timeout(t.opts.NavigationTimeout)
	defer p.CancelTimeout()

	wait := p.WaitNavigation(proto.PageLifecycleEventNameLoad)
	if err := action(p); err != nil {
		return err
	}
	wait()
	return ctx.Err()
}

func (t *Tab) find(ctx context.Context, selector string) (*rod.Element, error) {
	has, el, err := t.with(ctx).Has(selector)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", selector, err)
	}
	if !has {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, selector)
	}
	return el, nil
}

func (t *Tab) waitLoad(ctx context.Context) error {
	p := t.with(ctx).Timeout(t.opts.NavigationTimeout)
	defer p.CancelTimeout()
	if err := p.WaitLoad(); err != nil {
		return fmt.Errorf("wait for load: %w", err)
	}
	return nil
}
