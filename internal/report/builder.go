// Package report assembles coverage reports from parsed viewer pages.
package report

import (
	"fmt"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"

	"sonargap/internal/coverage"
	"sonargap/internal/logging"
	"sonargap/internal/sonar"
)

// Builder turns a viewer page into a coverage.Report.
type Builder struct {
	policy         RetryPolicy
	colorHeuristic bool
	now            func() time.Time
}

// Option configures a Builder.
type Option func(*Builder)

// WithRetryPolicy replaces DefaultRetryPolicy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(b *Builder) { b.policy = p }
}

// WithColorHeuristic enables the inline-tint detection strategy.
func WithColorHeuristic(enabled bool) Option {
	return func(b *Builder) { b.colorHeuristic = enabled }
}

// WithClock sets the time source for GeneratedAt.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) { b.now = now }
}

// NewBuilder creates a builder.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		policy: DefaultRetryPolicy(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build extracts the uncovered new-code lines of doc and wraps them with page
// metadata. sourceURL is the page's address; its query string drives the
// retry decision and metadata fallbacks.
//
// Errors: ErrNoSourceViewer when the page has no source viewer,
// *NoNewCoverageError when nothing qualifies even after the fallback pass.
func (b *Builder) Build(doc *goquery.Document, sourceURL string) (*coverage.Report, error) {
	analyzer := sonar.NewAnalyzer(doc)
	containers := analyzer.FindSourceContainers()
	if containers.Length() == 0 {
		return nil, ErrNoSourceViewer
	}

	u, err := url.Parse(sourceURL)
	if err != nil {
		return nil, fmt.Errorf("invalid source URL %q: %w", sourceURL, err)
	}

	opts := sonar.ExtractOptions{
		ColorHeuristic: b.colorHeuristic,
		DebugLabel:     debugLabel(u),
	}
	lines := analyzer.CollectUncoveredLines(containers, opts)
	stats, hasStats := analyzer.LastStats()

	if len(lines) == 0 && hasStats && b.policy.ShouldRetry(u, stats) {
		logging.ReportDebug("retrying %s with indicator fallback, stats: %+v", opts.DebugLabel, stats)
		opts.TreatIndicatorAsNewCode = true
		lines = analyzer.CollectUncoveredLines(containers, opts)
		stats, hasStats = analyzer.LastStats()
	}

	if len(lines) == 0 {
		return nil, &NoNewCoverageError{Stats: stats, HasStats: hasStats}
	}

	breadcrumbs := analyzer.BreadcrumbSegments()
	r := coverage.NewReport(
		resolveProjectName(breadcrumbs, u),
		resolveFilePath(breadcrumbs, u),
		u.String(),
		coverage.GroupLines(lines),
		b.now().UTC(),
	)
	logging.Report("built report for %s: %d uncovered lines in %d groups",
		r.FilePath(), r.TotalUncoveredLines(), len(r.Groups()))
	return r, nil
}
