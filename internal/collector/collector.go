// Package collector builds coverage reports for every file linked from a
// SonarQube list view, one file at a time.
package collector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"sonargap/internal/coverage"
	"sonargap/internal/loader"
	"sonargap/internal/logging"
	"sonargap/internal/report"
)

// Result is the outcome of a batch run.
type Result struct {
	RunID   string             `json:"runId"`
	Reports []*coverage.Report `json:"reports"`
	Skipped []coverage.Failure `json:"skipped"`
}

// Collector runs batch collection. It is not safe for concurrent use.
type Collector struct {
	builder  *report.Builder
	registry *Registry
	fetch    loader.Source
	render   loader.Source
	progress Progress
	now      func() time.Time
	newRunID func() string
}

// Option configures a Collector.
type Option func(*Collector)

// WithRenderer sets the strategy tried after a failed fetch.
func WithRenderer(render loader.Source) Option {
	return func(c *Collector) { c.render = render }
}

// WithProgress sets the progress sink.
func WithProgress(p Progress) Option {
	return func(c *Collector) { c.progress = p }
}

// WithBuilder replaces the default report builder.
func WithBuilder(b *report.Builder) Option {
	return func(c *Collector) { c.builder = b }
}

// WithRunID overrides run id generation.
func WithRunID(gen func() string) Option {
	return func(c *Collector) { c.newRunID = gen }
}

// New creates a collector that loads files through fetch.
func New(fetch loader.Source, opts ...Option) *Collector {
	c := &Collector{
		builder:  report.NewBuilder(),
		fetch:    fetch,
		progress: NopProgress{},
		now:      time.Now,
		newRunID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.registry = NewRegistry(fetch)
	return c
}

// CollectCurrent builds the report for the page already in hand.
func (c *Collector) CollectCurrent(doc *goquery.Document, sourceURL string) (*coverage.Report, error) {
	return c.builder.Build(doc, sourceURL)
}

// CollectAll builds a report for each file linked from doc. Per-file failures
// are recorded in Result.Skipped and never abort the run. The only error is
// ErrNoFileLinks.
func (c *Collector) CollectAll(ctx context.Context, doc *goquery.Document, currentURL string) (*Result, error) {
	runID := c.newRunID()
	log := logging.WithRequestID(logging.CategoryCollect, runID)

	files, err := c.registry.Gather(ctx, doc, currentURL)
	if err != nil {
		log.Warn("no files to collect from %s", currentURL)
		return nil, err
	}
	log.Info("collecting %d files from %s", len(files), currentURL)

	current := selectedKey(currentURL)
	res := &Result{
		RunID:   runID,
		Reports: make([]*coverage.Report, 0, len(files)),
		Skipped: []coverage.Failure{},
	}
	progress := newTracker(c.progress, len(files), c.now())
	progress.start()

	for i, file := range files {
		if ctx.Err() != nil {
			log.Warn("run cancelled, skipping %d remaining files", len(files)-i)
			for _, rest := range files[i:] {
				res.Skipped = append(res.Skipped, failure(rest, ctx.Err(), nil))
				progress.advance(rest.Label + " (skipped)")
			}
			break
		}

		var inHand *goquery.Document
		if current != "" && file.Key == current {
			inHand = doc
		}
		rep, attempts, err := c.collectFile(ctx, inHand, file)
		if err == nil {
			res.Reports = append(res.Reports, rep)
			log.Debug("%s: %d uncovered lines", file.Label, rep.TotalUncoveredLines())
			progress.advance(file.Label)
			continue
		}

		f := failure(file, err, attempts)
		res.Skipped = append(res.Skipped, f)
		if f.NoNewCoverage() {
			log.Warn("no new coverage detected for %s (%s)", file.Label, file.Href)
			progress.advance(file.Label + " (no new code)")
		} else {
			log.Error("unable to build report for %s (%s): %v", file.Label, file.Href, err)
			progress.advance(file.Label + " (skipped)")
		}
	}

	progress.complete()
	log.Info("run finished: %d reports, %d skipped", len(res.Reports), len(res.Skipped))
	return res, nil
}

// collectFile tries the document in hand, then fetch, then render. It returns
// the first report built and otherwise the last error with one line per attempt.
// A no-coverage result outranks later load failures.
func (c *Collector) collectFile(ctx context.Context, inHand *goquery.Document, file FileLink) (*coverage.Report, []string, error) {
	var attempts []string
	var lastErr, noCoverage error

	if inHand != nil {
		rep, err := c.builder.Build(inHand, file.Href)
		if err == nil {
			return rep, nil, nil
		}
		attempts = append(attempts, "Current document: "+err.Error())
		lastErr = err
		if report.IsNoNewCoverage(err) {
			noCoverage = err
		}
	}

	strategies := []struct {
		name string
		src  loader.Source
	}{
		{"Fetch", c.fetch},
		{"Render", c.render},
	}
	for _, s := range strategies {
		if s.src == nil {
			continue
		}
		if ctx.Err() != nil && lastErr != nil {
			break
		}
		rep, err := c.loadAndBuild(ctx, s.src, file.Href)
		if err == nil {
			return rep, nil, nil
		}
		attempts = append(attempts, fmt.Sprintf("%s attempt: %v%s", s.name, err, accessHint(err)))
		lastErr = err
		if report.IsNoNewCoverage(err) {
			noCoverage = err
		}
	}

	if noCoverage != nil {
		return nil, attempts, noCoverage
	}
	if lastErr == nil {
		lastErr = errors.New("no document source configured")
	}
	return nil, attempts, lastErr
}

// accessHint points at the token settings when the server refused the request.
func accessHint(err error) string {
	if loader.IsStatus(err, http.StatusUnauthorized) || loader.IsStatus(err, http.StatusForbidden) {
		return " (set fetch.token or SONARGAP_TOKEN)"
	}
	return ""
}

func (c *Collector) loadAndBuild(ctx context.Context, src loader.Source, href string) (*coverage.Report, error) {
	doc, err := src.Load(ctx, href)
	if err != nil {
		return nil, err
	}
	return c.builder.Build(doc, href)
}

func failure(file FileLink, err error, attempts []string) coverage.Failure {
	reason := coverage.ReasonUnexpectedError
	if report.IsNoNewCoverage(err) {
		reason = coverage.ReasonNoNewCoverage
	}
	return coverage.Failure{
		URL:     file.Href,
		Label:   file.Label,
		Error:   file.Label + ": " + err.Error(),
		Details: strings.Join(attempts, "\n"),
		Reason:  reason,
	}
}

func selectedKey(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Query().Get("selected")
}
