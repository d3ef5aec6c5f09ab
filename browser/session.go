// Package browser drives a Chromium tab over the DevTools protocol with go-rod
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
)

const (
	DefaultSearchInputSelector = "#sb_form_q"
	DefaultResultLinkSelector  = "#b_results li.b_algo h2 a"
	DefaultNavigationTimeout   = 45 * time.Second
)

// ErrNoTab is returned when a connected browser has no page target to drive
var ErrNoTab = errors.New("browser has no open tab")

// Options selects how the browser is obtained and how its pages are read
type Options struct {
	// ControlURL connects to an already running browser instead of launching one
	ControlURL  string `mapstructure:"controlURL"`
	Headless    bool   `mapstructure:"headless"`
	Bin         string `mapstructure:"bin"`
	UserDataDir string `mapstructure:"userDataDir"`

	SearchInputSelector string        `mapstructure:"searchInputSelector"`
	ResultLinkSelector  string        `mapstructure:"resultLinkSelector"`
	NavigationTimeout   time.Duration `mapstructure:"navigationTimeout"`
}

// DefaultOptions launches a visible browser with a throwaway profile
func DefaultOptions() Options {
	return Options{
		SearchInputSelector: DefaultSearchInputSelector,
		ResultLinkSelector:  DefaultResultLinkSelector,
		NavigationTimeout:   DefaultNavigationTimeout,
	}
}

// Session owns the browser connection and, when it launched the browser, the process
type Session struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	opts     Options
	logger   *zap.Logger
}

// Start connects to opts.ControlURL, or launches a new browser when it is empty
func Start(ctx context.Context, opts Options, logger *zap.Logger) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.SearchInputSelector == "" {
		opts.SearchInputSelector = DefaultSearchInputSelector
	}
	if opts.ResultLinkSelector == "" {
		opts.ResultLinkSelector = DefaultResultLinkSelector
	}
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = DefaultNavigationTimeout
	}

	s := &Session{opts: opts, logger: logger}

	controlURL := opts.ControlURL
	if controlURL == "" {
		l := launcher.New().
			Leakless(false).
			Headless(opts.Headless)
		if opts.Bin != "" {
			l = l.Bin(opts.Bin)
		}
		if opts.UserDataDir != "" {
			l = l.UserDataDir(opts.UserDataDir)
		}

		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch browser: %w", err)
		}
		s.launcher = l
		controlURL = u
		logger.Info("Browser launched", zap.Bool("headless", opts.Headless), zap.String("profile", opts.UserDataDir))
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("connect to browser: %w", err)
	}
	s.browser = b
	logger.Debug("Connected to browser", zap.String("control_url", controlURL))
	return s, nil
}

// OpenTab opens rawURL in a new tab and waits for it to load
func (s *Session) OpenTab(ctx context.Context, rawURL string) (*Tab, error) {
	page, err := s.browser.Context(ctx).Page(proto.TargetCreateTarget{URL: rawURL})
	if err != nil {
		return nil, fmt.Errorf("open tab: %w", err)
	}
	tab := newTab(page.Context(context.Background()), s.opts, s.logger)
	if err := tab.waitLoad(ctx); err != nil {
		return nil, err
	}
	return tab, nil
}

// FirstTab attaches to the first page target of the browser
func (s *Session) FirstTab(ctx context.Context) (*Tab, error) {
	pages, err := s.browser.Context(ctx).Pages()
	if err != nil {
		return nil, fmt.Errorf("list tabs: %w", err)
	}
	if pages.Empty() {
		return nil, ErrNoTab
	}
	return newTab(pages.First().Context(context.Background()), s.opts, s.logger), nil
}

// Close shuts down a launched browser. A browser reached through a control URL is left running.
func (s *Session) Close() error {
	if s.launcher == nil {
		return nil
	}
	var err error
	if s.browser != nil {
		err = s.browser.Close()
	}
	s.cleanup()
	return err
}

func (s *Session) cleanup() {
	if s.launcher == nil {
		return
	}
	s.launcher.Kill()
	if s.opts.UserDataDir == "" {
		s.launcher.Cleanup()
	}
}
