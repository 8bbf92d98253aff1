package sonar

import (
	"os"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sonargap/internal/coverage"
)

func loadFixture(t *testing.T, name string) *goquery.Document {
	t.Helper()
	f, err := os.Open("testdata/" + name)
	require.NoError(t, err)
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	require.NoError(t, err)
	return doc
}

func parseDocument(t *testing.T, markup string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	require.NoError(t, err)
	return doc
}

func lineNumbers(lines []coverage.Line) []int {
	numbers := make([]int, len(lines))
	for i, l := range lines {
		numbers[i] = l.Number
	}
	return numbers
}

func TestCollectUncoveredLines_ExplicitMarkers(t *testing.T) {
	analyzer := NewAnalyzer(loadFixture(t, "viewer.html"))
	containers := analyzer.FindSourceContainers()
	require.Equal(t, 2, containers.Length())

	lines := analyzer.CollectUncoveredLines(containers, ExtractOptions{DebugLabel: "test-run"})

	want := []coverage.Line{
		{Number: 2, Code: "total := sum(entries)"},
		{Number: 3, Code: "if total < 0 {"},
		{Number: 6, Code: "log(total)"},
		{Number: 8, Code: "return total"},
	}
	if diff := cmp.Diff(want, lines); diff != "" {
		t.Errorf("lines mismatch (-want +got):\n%s", diff)
	}

	stats, ok := analyzer.LastStats()
	require.True(t, ok)
	wantStats := Stats{
		TotalRows:                   10,
		FilteredRows:                1,
		UncoveredIndicatorRows:      8,
		NewCodeMarkerRows:           7,
		UncoveredNewCodeRows:        5,
		IndicatorWithoutNewCodeRows: 2,
		NewCodeWithoutIndicatorRows: 1,
	}
	if diff := cmp.Diff(wantStats, stats); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}
}

func TestCollectUncoveredLines_StructuralFallback(t *testing.T) {
	analyzer := NewAnalyzer(loadFixture(t, "viewer.html"))
	containers := analyzer.FindSourceContainers()

	lines := analyzer.CollectUncoveredLines(containers, ExtractOptions{TreatIndicatorAsNewCode: true})
	assert.Equal(t, []int{2, 3, 6, 8, 9}, lineNumbers(lines))

	stats, ok := analyzer.LastStats()
	require.True(t, ok)
	assert.Equal(t, 1, stats.HeuristicNewCodeRows)
	assert.Equal(t, 6, stats.UncoveredNewCodeRows)
	assert.Equal(t, 1, stats.IndicatorWithoutNewCodeRows)
}

func TestCollectUncoveredLines_FilteredIndicatorRow(t *testing.T) {
	doc := parseDocument(t, `
    <html><body>
      <table class="source-viewer">
        <tbody>
          <tr data-line-number="10" class="it__source-line-filtered" data-test="filtered-row">
            <td class="status" aria-label="Line not covered"></td>
            <td class="it__source-line-code"><pre>const value = 1;</pre></td>
          </tr>
        </tbody>
      </table>
    </body></html>`)

	analyzer := NewAnalyzer(doc)
	containers := analyzer.FindSourceContainers()
	require.Equal(t, 1, containers.Length())

	primary := analyzer.CollectUncoveredLines(containers, ExtractOptions{})
	assert.Empty(t, primary)

	fallback := analyzer.CollectUncoveredLines(containers, ExtractOptions{TreatIndicatorAsNewCode: true})
	if diff := cmp.Diff([]coverage.Line{{Number: 10, Code: "const value = 1;"}}, fallback); diff != "" {
		t.Errorf("fallback mismatch (-want +got):\n%s", diff)
	}

	stats, _ := analyzer.LastStats()
	assert.Equal(t, 1, stats.HeuristicNewCodeRows)
	assert.Equal(t, 1, stats.UncoveredNewCodeRows)
}

func TestCollectUncoveredLines_Idempotent(t *testing.T) {
	analyzer := NewAnalyzer(loadFixture(t, "viewer.html"))
	containers := analyzer.FindSourceContainers()
	opts := ExtractOptions{TreatIndicatorAsNewCode: true}

	first := analyzer.CollectUncoveredLines(containers, opts)
	firstStats, _ := analyzer.LastStats()
	second := analyzer.CollectUncoveredLines(containers, opts)
	secondStats, _ := analyzer.LastStats()

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("second pass differs (-first +second):\n%s", diff)
	}
	assert.Equal(t, firstStats, secondStats)
}

func TestCollectUncoveredLines_DuplicateKeepsFirstRow(t *testing.T) {
	analyzer := NewAnalyzer(loadFixture(t, "viewer.html"))
	lines := analyzer.CollectUncoveredLines(analyzer.FindSourceContainers(), ExtractOptions{})

	require.NotEmpty(t, lines)
	assert.Equal(t, 2, lines[0].Number)
	assert.Equal(t, "total := sum(entries)", lines[0].Code)
}

func TestCollectUncoveredLines_ColorHeuristic(t *testing.T) {
	doc := parseDocument(t, `
    <div class="source-viewer"><table><tbody>
      <tr data-line-number="4" style="--line-background: rgb(200, 220, 250)">
        <td class="status" aria-label="Line not covered"></td>
        <td class="it__source-line-code"><pre>tinted()</pre></td>
      </tr>
      <tr data-line-number="5" style="background-color: rgba(200, 220, 250, 0)">
        <td class="status" aria-label="Line not covered"></td>
        <td class="it__source-line-code"><pre>transparent()</pre></td>
      </tr>
    </tbody></table></div>`)

	analyzer := NewAnalyzer(doc)
	containers := analyzer.FindSourceContainers()

	assert.Empty(t, analyzer.CollectUncoveredLines(containers, ExtractOptions{}))

	lines := analyzer.CollectUncoveredLines(containers, ExtractOptions{ColorHeuristic: true})
	assert.Equal(t, []int{4}, lineNumbers(lines))

	stats, _ := analyzer.LastStats()
	assert.Equal(t, 1, stats.ColorHeuristicRows)
	assert.Equal(t, 0, stats.HeuristicNewCodeRows)
	assert.Equal(t, 1, stats.IndicatorWithoutNewCodeRows)
}

func TestCollectUncoveredLines_NoContainers(t *testing.T) {
	analyzer := NewAnalyzer(parseDocument(t, `<html><body><p>nothing</p></body></html>`))

	_, ok := analyzer.LastStats()
	assert.False(t, ok)

	lines := analyzer.CollectUncoveredLines(analyzer.FindSourceContainers(), ExtractOptions{})
	assert.NotNil(t, lines)
	assert.Empty(t, lines)

	stats, ok := analyzer.LastStats()
	assert.True(t, ok)
	assert.Equal(t, Stats{}, stats)
}

func TestBreadcrumbSegments(t *testing.T) {
	analyzer := NewAnalyzer(loadFixture(t, "viewer.html"))
	assert.Equal(t, []string{"payments-service", "src", "ledger", "posting.go"}, analyzer.BreadcrumbSegments())

	empty := NewAnalyzer(parseDocument(t, `<p>no nav</p>`))
	assert.Empty(t, empty.BreadcrumbSegments())
}

func TestClassifyDetectionsAreExclusive(t *testing.T) {
	tests := []struct {
		name string
		snap RowSnapshot
		opts ExtractOptions
		want Detection
	}{
		{
			name: "explicit wins over everything",
			snap: RowSnapshot{LineNumber: 1, HasIndicator: true, HasExplicitMarker: true, HasColorHint: true},
			opts: ExtractOptions{TreatIndicatorAsNewCode: true, ColorHeuristic: true},
			want: DetectionExplicit,
		},
		{
			name: "fallback before color",
			snap: RowSnapshot{LineNumber: 1, HasIndicator: true, FallbackEligible: true, HasColorHint: true},
			opts: ExtractOptions{TreatIndicatorAsNewCode: true, ColorHeuristic: true},
			want: DetectionStructuralFallback,
		},
		{
			name: "fallback disabled",
			snap: RowSnapshot{LineNumber: 1, HasIndicator: true, FallbackEligible: true},
			want: DetectionNone,
		},
		{
			name: "color needs an indicator",
			snap: RowSnapshot{LineNumber: 1, HasColorHint: true},
			opts: ExtractOptions{ColorHeuristic: true},
			want: DetectionNone,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classify(tt.snap, tt.opts).detection)
		})
	}
}

func TestClassifyUnresolvedLineIsNotIncluded(t *testing.T) {
	outcome := classify(RowSnapshot{HasIndicator: true, HasExplicitMarker: true}, ExtractOptions{})
	assert.Equal(t, DetectionExplicit, outcome.detection)
	assert.False(t, outcome.included)

	stats := Stats{}.record(outcome)
	assert.Equal(t, 1, stats.TotalRows)
	assert.Equal(t, 0, stats.UncoveredNewCodeRows)
}
