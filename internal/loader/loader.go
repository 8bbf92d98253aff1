// Package loader produces parsed viewer documents from files and HTTP.
package loader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"sonargap/internal/logging"
)

// Source loads the document behind a viewer URL.
type Source interface {
	Load(ctx context.Context, rawURL string) (*goquery.Document, error)
}

// DefaultUserAgent identifies sonargap to the SonarQube server.
const DefaultUserAgent = "Mozilla/5.0 (compatible; sonargap/1.0)"

// DefaultMaxBodyBytes is the largest page read when Config.MaxBodyBytes is zero.
const DefaultMaxBodyBytes int64 = 16 << 20

// ErrBodyTooLarge is returned for pages larger than the configured limit.
var ErrBodyTooLarge = errors.New("response body exceeds size limit")

// Config holds HTTP fetch settings.
type Config struct {
	UserAgent string
	// Token is a SonarQube user token, sent as the basic-auth user name.
	Token string
	// Timeout bounds one fetch; zero means no timeout beyond ctx.
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	// MaxBodyBytes caps a page's size; zero means DefaultMaxBodyBytes.
	MaxBodyBytes int64
}

// DefaultConfig paces requests at four per second and sets no timeout.
func DefaultConfig() Config {
	return Config{
		UserAgent:         DefaultUserAgent,
		RequestsPerSecond: 4,
		Burst:             2,
		MaxBodyBytes:      DefaultMaxBodyBytes,
	}
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request failed with status %d (%s)", e.StatusCode, http.StatusText(e.StatusCode))
}

// IsStatus reports whether err carries the given HTTP status code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

// HTTPLoader fetches viewer pages as served, without running scripts.
type HTTPLoader struct {
	client  *http.Client
	cfg     Config
	limiter *RateLimiter
}

// NewHTTPLoader creates a loader. A nil client uses http.DefaultClient.
func NewHTTPLoader(cfg Config, client *http.Client) *HTTPLoader {
	if client == nil {
		client = http.DefaultClient
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	return &HTTPLoader{
		client:  client,
		cfg:     cfg,
		limiter: NewRateLimiter(cfg.RequestsPerSecond, cfg.Burst),
	}
}

// Load fetches rawURL and parses the response body.
func (l *HTTPLoader) Load(ctx context.Context, rawURL string) (*goquery.Document, error) {
	if l.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.cfg.Timeout)
		defer cancel()
	}

	if err := l.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", l.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	if l.cfg.Token != "" {
		req.SetBasicAuth(l.cfg.Token, "")
	}

	timer := logging.StartTimer(logging.CategoryFetch, "fetch "+rawURL)
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()
	timer.Stop()

	if resp.StatusCode == http.StatusTooManyRequests {
		backoff := l.limiter.RecordRateLimit(resp.Header.Get("Retry-After"))
		logging.FetchWarn("rate limited by %s, backing off %v", req.URL.Host, backoff)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, l.cfg.MaxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) > l.cfg.MaxBodyBytes {
		return nil, fmt.Errorf("%s: %w (%d bytes)", rawURL, ErrBodyTooLarge, l.cfg.MaxBodyBytes)
	}

	doc, err := Parse(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	doc.Url = resp.Request.URL
	logging.FetchDebug("fetched %s (%s)", rawURL, resp.Header.Get("Content-Type"))
	return doc, nil
}

// Parse reads an HTML document.
func Parse(r io.Reader) (*goquery.Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return goquery.NewDocumentFromNode(root), nil
}

// LoadFile parses a saved viewer page. rawURL, when non-empty, is recorded as
// the document's address.
func LoadFile(path, rawURL string) (*goquery.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	doc, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if rawURL != "" {
		if u, err := url.Parse(rawURL); err == nil {
			doc.Url = u
		}
	}
	logging.FetchDebug("loaded %s", path)
	return doc, nil
}
