package sonar

import (
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"sonargap/internal/coverage"
	"sonargap/internal/logging"
)

// Analyzer extracts uncovered new-code lines from one parsed viewer page.
// It is not safe for concurrent use.
type Analyzer struct {
	doc      *goquery.Document
	tooltips *TooltipIndex
	last     *Stats
}

// NewAnalyzer creates an analyzer over doc.
func NewAnalyzer(doc *goquery.Document) *Analyzer {
	var root *html.Node
	if doc != nil && len(doc.Nodes) > 0 {
		root = doc.Nodes[0]
	}
	return &Analyzer{doc: doc, tooltips: NewTooltipIndex(root)}
}

// FindSourceContainers returns the viewer regions holding source rows.
func (a *Analyzer) FindSourceContainers() *goquery.Selection {
	if a.doc == nil {
		return &goquery.Selection{}
	}
	return a.doc.Find(SourceContainerSelector)
}

// CollectUncoveredLines classifies every source row of containers and returns
// the uncovered new-code lines, de-duplicated by line number (first row wins)
// and sorted ascending. The pass's counters become LastStats.
func (a *Analyzer) CollectUncoveredLines(containers *goquery.Selection, opts ExtractOptions) []coverage.Line {
	parser := NewRowParser(a.tooltips)
	seen := make(map[int]bool)
	lines := make([]coverage.Line, 0)
	var stats Stats

	if containers != nil {
		containers.Each(func(_ int, container *goquery.Selection) {
			container.Find(SourceRowSelector).Each(func(_ int, row *goquery.Selection) {
				outcome := classify(parser.Snapshot(row), opts)
				stats = stats.record(outcome)
				if !outcome.included {
					return
				}

				number := outcome.snapshot.LineNumber
				if outcome.detection == DetectionStructuralFallback || outcome.detection == DetectionColorHeuristic {
					logging.ExtractDebug("[%s] treating indicator-only row %d as new code (%s)",
						opts.DebugLabel, number, outcome.detection)
				}
				if seen[number] {
					return
				}
				seen[number] = true
				lines = append(lines, coverage.Line{Number: number, Code: outcome.snapshot.CodeText})
			})
		})
	}

	if stats.UncoveredNewCodeRows == 0 {
		logging.ExtractDebug("[%s] no uncovered lines detected, %d tooltip ids looked up, stats snapshot: %+v",
			opts.DebugLabel, a.tooltips.Cached(), stats)
	}

	sort.SliceStable(lines, func(i, j int) bool { return lines[i].Number < lines[j].Number })
	a.last = &stats
	return lines
}

// LastStats returns the counters of the most recent CollectUncoveredLines call.
func (a *Analyzer) LastStats() (Stats, bool) {
	if a.last == nil {
		return Stats{}, false
	}
	return *a.last, true
}

// BreadcrumbSegments returns the trimmed, non-empty breadcrumb link texts.
func (a *Analyzer) BreadcrumbSegments() []string {
	if a.doc == nil {
		return nil
	}
	var segments []string
	a.doc.Find(BreadcrumbSelector).First().Find("li a").Each(func(_ int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			segments = append(segments, text)
		}
	})
	return segments
}
