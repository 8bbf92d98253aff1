// Package browser renders viewer pages in headless Chrome so that the
// client-side source viewer has painted its rows before the page is parsed.
package browser

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"golang.org/x/sync/semaphore"

	"sonargap/internal/loader"
	"sonargap/internal/logging"
	"sonargap/internal/sonar"
)

// ErrWaitTimeout is wrapped by readiness waits that ran out of time.
var ErrWaitTimeout = errors.New("timed out waiting for selectors")

// Config holds browser configuration.
type Config struct {
	// Bin is the Chrome binary; empty lets rod find or download one.
	Bin string
	// DebuggerURL attaches to a running Chrome instead of launching one.
	DebuggerURL    string
	Headless       bool
	ViewportWidth  int
	ViewportHeight int
	UserAgent      string
	// Token is a SonarQube user token sent as basic auth.
	Token string

	LoadTimeout    time.Duration
	WaitTimeout    time.Duration
	WaitInterval   time.Duration
	MarkerTimeout  time.Duration
	MarkerInterval time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Headless:       true,
		ViewportWidth:  1280,
		ViewportHeight: 720,
		LoadTimeout:    20 * time.Second,
		WaitTimeout:    12 * time.Second,
		WaitInterval:   300 * time.Millisecond,
		MarkerTimeout:  3 * time.Second,
		MarkerInterval: 200 * time.Millisecond,
	}
}

// withDefaults fills zero values from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ViewportWidth <= 0 {
		c.ViewportWidth = d.ViewportWidth
	}
	if c.ViewportHeight <= 0 {
		c.ViewportHeight = d.ViewportHeight
	}
	if c.LoadTimeout <= 0 {
		c.LoadTimeout = d.LoadTimeout
	}
	if c.WaitTimeout <= 0 {
		c.WaitTimeout = d.WaitTimeout
	}
	if c.WaitInterval <= 0 {
		c.WaitInterval = d.WaitInterval
	}
	if c.MarkerTimeout <= 0 {
		c.MarkerTimeout = d.MarkerTimeout
	}
	if c.MarkerInterval <= 0 {
		c.MarkerInterval = d.MarkerInterval
	}
	return c
}

// Renderer loads viewer pages through Chrome, one page at a time.
type Renderer struct {
	cfg Config
	sem *semaphore.Weighted

	mu       sync.Mutex
	browser  *rod.Browser
	launched *launcher.Launcher
}

var _ loader.Source = (*Renderer)(nil)

// NewRenderer creates a renderer. Chrome is started lazily on first Load.
func NewRenderer(cfg Config) *Renderer {
	return &Renderer{
		cfg: cfg.withDefaults(),
		sem: semaphore.NewWeighted(1),
	}
}

// Start connects to Chrome, launching it when no debugger URL is configured.
func (r *Renderer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// If we already have a browser, verify it's still alive
	if r.browser != nil {
		if _, err := r.browser.Version(); err == nil {
			return nil
		}
		logging.BrowserWarn("stale browser connection detected, reconnecting")
		_ = r.browser.Close()
		r.browser = nil
	}

	controlURL := r.cfg.DebuggerURL
	if controlURL == "" {
		l := launcher.New().Headless(r.cfg.Headless)
		if r.cfg.Bin != "" {
			l = l.Bin(r.cfg.Bin)
		}
		launched, err := l.Launch()
		if err != nil {
			return fmt.Errorf("launch chrome: %w", err)
		}
		controlURL = launched
		r.launched = l
	}

	b := rod.New().ControlURL(controlURL).Context(ctx)
	if err := b.Connect(); err != nil {
		return fmt.Errorf("connect to chrome: %w", err)
	}
	r.browser = b
	logging.Browser("connected to chrome at %s", controlURL)
	return nil
}

// Shutdown closes Chrome, or only the connection when attached to a
// browser sonargap did not launch.
func (r *Renderer) Shutdown() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var err error
	if r.browser != nil {
		err = r.browser.Close()
		r.browser = nil
	}
	if r.launched != nil {
		r.launched.Cleanup()
		r.launched = nil
	}
	return err
}

func (r *Renderer) connected() *rod.Browser {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.browser
}

// Load renders rawURL and returns the painted document. It waits for the
// source viewer and its first row, then briefly for new-code markers; the
// marker wait never fails the load.
func (r *Renderer) Load(ctx context.Context, rawURL string) (*goquery.Document, error) {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer r.sem.Release(1)

	if r.connected() == nil {
		if err := r.Start(ctx); err != nil {
			return nil, err
		}
	}
	b := r.connected()
	if b == nil {
		return nil, errors.New("browser not connected")
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.LoadTimeout)
	defer cancel()
	timer := logging.StartTimer(logging.CategoryBrowser, "render "+rawURL)
	defer timer.StopWithThreshold(r.cfg.LoadTimeout / 2)

	incognito, err := b.Incognito()
	if err != nil {
		return nil, fmt.Errorf("incognito context: %w", err)
	}
	defer func() { _ = incognito.Close() }()

	page, err := incognito.Context(ctx).Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	defer func() { _ = page.Close() }()

	if err := r.preparePage(page); err != nil {
		return nil, err
	}
	if err := page.Navigate(rawURL); err != nil {
		return nil, fmt.Errorf("navigate: %w", err)
	}

	if err := r.waitFor(ctx, page, []string{sonar.SourceContainerSelector}, r.cfg.WaitTimeout, r.cfg.WaitInterval); err != nil {
		return nil, err
	}
	if err := r.waitFor(ctx, page, []string{sonar.SourceRowSelector}, r.cfg.WaitTimeout, r.cfg.WaitInterval); err != nil {
		return nil, err
	}
	if err := r.waitFor(ctx, page, sonar.ExplicitNewCodeSelectors, r.cfg.MarkerTimeout, r.cfg.MarkerInterval); err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		logging.BrowserDebug("no explicit new-code markers on %s within %v; continuing", rawURL, r.cfg.MarkerTimeout)
	}

	markup, err := page.HTML()
	if err != nil {
		return nil, fmt.Errorf("read rendered HTML: %w", err)
	}
	doc, err := loader.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, err
	}
	if u, err := url.Parse(rawURL); err == nil {
		doc.Url = u
	}
	return doc, nil
}

func (r *Renderer) preparePage(page *rod.Page) error {
	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             r.cfg.ViewportWidth,
		Height:            r.cfg.ViewportHeight,
		DeviceScaleFactor: 1.0,
		Mobile:            false,
	}).Call(page); err != nil {
		logging.BrowserWarn("failed to set viewport: %v", err)
	}

	if r.cfg.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: r.cfg.UserAgent}); err != nil {
			logging.BrowserWarn("failed to set user agent: %v", err)
		}
	}
	if r.cfg.Token != "" {
		if _, err := page.SetExtraHeaders([]string{"Authorization", basicAuth(r.cfg.Token)}); err != nil {
			return fmt.Errorf("set auth header: %w", err)
		}
	}
	return nil
}

func (r *Renderer) waitFor(ctx context.Context, page *rod.Page, selectors []string, timeout, interval time.Duration) error {
	err := pollUntil(ctx, timeout, interval, func() (bool, error) {
		for _, selector := range selectors {
			found, _, err := page.Has(selector)
			if err != nil {
				return false, err
			}
			if found {
				return true, nil
			}
		}
		return false, nil
	})
	if errors.Is(err, ErrWaitTimeout) {
		return fmt.Errorf("%w: %s", err, strings.Join(selectors, ", "))
	}
	return err
}

// pollUntil runs check every interval until it reports true, returns an
// error, ctx ends or timeout elapses (ErrWaitTimeout).
func pollUntil(ctx context.Context, timeout, interval time.Duration, check func() (bool, error)) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		ok, err := check()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return ErrWaitTimeout
		case <-ticker.C:
		}
	}
}

func basicAuth(token string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(token+":"))
}
