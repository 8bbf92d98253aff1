package report

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sonargap/internal/coverage"
	"sonargap/internal/sonar"
)

const explicitRows = `
<div class="source-viewer"><table><tbody>
  <tr data-line-number="4">
    <td class="cov" aria-label="Line not covered"></td>
    <td class="it__source-line-code"><div data-testid="new-code-underline"></div><pre>a()</pre></td>
  </tr>
  <tr data-line-number="5">
    <td class="cov" aria-label="Line not covered"></td>
    <td class="it__source-line-code"><div data-testid="new-code-underline"></div><pre>b()</pre></td>
  </tr>
  <tr data-line-number="9">
    <td class="cov" aria-label="Line not covered"></td>
    <td class="it__source-line-code"><div data-testid="new-code-underline"></div><pre>c()</pre></td>
  </tr>
</tbody></table></div>`

const filteredRow = `
<table class="source-viewer"><tbody>
  <tr data-line-number="10" class="it__source-line-filtered">
    <td class="status" aria-label="Line not covered"></td>
    <td class="it__source-line-code"><pre>const value = 1;</pre></td>
  </tr>
</tbody></table>`

const breadcrumbs = `
<nav aria-label="Breadcrumbs"><ul>
  <li><a href="#">Payments</a></li>
  <li><a href="#">src</a></li>
  <li><a href="#">Ledger.ts</a></li>
</ul></nav>`

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func page(t *testing.T, parts ...string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<html><body>" + strings.Join(parts, "") + "</body></html>"))
	require.NoError(t, err)
	return doc
}

func newTestBuilder(opts ...Option) *Builder {
	return NewBuilder(append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)...)
}

func TestBuild_NoSourceViewer(t *testing.T) {
	_, err := newTestBuilder().Build(page(t, "<p>dashboard</p>"), "https://sonar.test/dashboard?id=proj")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoSourceViewer))
	assert.Contains(t, err.Error(), `Open a file-level "Measures" view`)
	assert.False(t, IsNoNewCoverage(err))
}

func TestBuild_GroupsAndBreadcrumbMetadata(t *testing.T) {
	r, err := newTestBuilder().Build(page(t, breadcrumbs, explicitRows), "https://sonar.test/code?id=acme%3Apayments")
	require.NoError(t, err)

	assert.Equal(t, "Payments", r.ProjectName())
	assert.Equal(t, "src/Ledger.ts", r.FilePath())
	assert.Equal(t, "https://sonar.test/code?id=acme%3Apayments", r.URL())
	assert.Equal(t, fixedNow, r.GeneratedAt())
	assert.Equal(t, 3, r.TotalUncoveredLines())

	want := []coverage.GroupDTO{
		{StartLine: 4, EndLine: 5, Lines: []coverage.Line{{Number: 4, Code: "a()"}, {Number: 5, Code: "b()"}}},
		{StartLine: 9, EndLine: 9, Lines: []coverage.Line{{Number: 9, Code: "c()"}}},
	}
	if diff := cmp.Diff(want, r.ToDTO().Groups); diff != "" {
		t.Errorf("groups mismatch (-want +got):\n%s", diff)
	}
}

func TestBuild_MetadataFallsBackToQuery(t *testing.T) {
	tests := []struct {
		name        string
		url         string
		wantProject string
		wantPath    string
	}{
		{
			name:        "selected and id",
			url:         "https://sonar.test/code?id=proj&selected=proj%3Asrc%2FFoo.ts",
			wantProject: "proj",
			wantPath:    "src/Foo.ts",
		},
		{
			name:        "double encoded selected",
			url:         "https://sonar.test/code?id=proj&selected=proj%253Alib%252Fbar.go",
			wantProject: "proj",
			wantPath:    "lib/bar.go",
		},
		{
			name:        "id with component",
			url:         "https://sonar.test/component_measures?id=proj%3Apkg%2Fmain.go",
			wantProject: "proj",
			wantPath:    "pkg/main.go",
		},
		{
			name:        "nothing to go on",
			url:         "https://sonar.test/code",
			wantProject: "SonarQube project",
			wantPath:    "Unknown file path",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := newTestBuilder().Build(page(t, explicitRows), tt.url)
			require.NoError(t, err)
			assert.Equal(t, tt.wantProject, r.ProjectName())
			assert.Equal(t, tt.wantPath, r.FilePath())
		})
	}
}

func TestBuild_RetriesWithFallbackOnNewCodeView(t *testing.T) {
	for _, rawURL := range []string{
		"https://sonar.test/component_measures?id=p&metric=new_coverage&selected=p%3Aa.ts",
		"https://sonar.test/code?id=p&view=list_new&selected=p%3Aa.ts",
		"https://sonar.test/code?id=p&pullRequest=42&selected=p%3Aa.ts",
	} {
		t.Run(rawURL, func(t *testing.T) {
			r, err := newTestBuilder().Build(page(t, filteredRow), rawURL)
			require.NoError(t, err)
			require.Equal(t, 1, r.TotalUncoveredLines())
			assert.Equal(t, []coverage.Line{{Number: 10, Code: "const value = 1;"}}, r.Groups()[0].Lines())
		})
	}
}

func TestBuild_NoRetryOutsideNewCodeView(t *testing.T) {
	_, err := newTestBuilder().Build(page(t, filteredRow), "https://sonar.test/code?id=p&metric=coverage")
	require.Error(t, err)

	var noCoverage *NoNewCoverageError
	require.True(t, errors.As(err, &noCoverage))
	assert.True(t, IsNoNewCoverage(err))
	assert.Equal(t, 1, noCoverage.Stats.IndicatorWithoutNewCodeRows)

	msg := err.Error()
	assert.True(t, strings.HasPrefix(msg, "No uncovered new-code lines detected (rows: 1, filtered: 1)"), msg)
	assert.Contains(t, msg, " · Indicators: 1, new-code markers: 0")
	assert.Contains(t, msg, "Matches: 0, indicator-only: 1, new-code-only: 0")
	assert.Contains(t, msg, "Heuristic matches: 0, color matches: 0")
}

func TestBuild_RetryDisabledByPolicy(t *testing.T) {
	policy := DefaultRetryPolicy()
	policy.Enabled = false

	_, err := newTestBuilder(WithRetryPolicy(policy)).Build(page(t, filteredRow),
		"https://sonar.test/code?id=p&metric=new_coverage")
	assert.True(t, IsNoNewCoverage(err))
}

func TestBuild_ColorHeuristic(t *testing.T) {
	tinted := `
<div class="source-viewer"><table><tbody>
  <tr data-line-number="3" style="--line-background: rgb(190, 215, 250)">
    <td class="status" aria-label="Line not covered"></td>
    <td class="it__source-line-code"><pre>tinted()</pre></td>
  </tr>
</tbody></table></div>`

	_, err := newTestBuilder().Build(page(t, tinted), "https://sonar.test/code?id=p")
	assert.True(t, IsNoNewCoverage(err))

	r, err := newTestBuilder(WithColorHeuristic(true)).Build(page(t, tinted), "https://sonar.test/code?id=p")
	require.NoError(t, err)
	assert.Equal(t, 1, r.TotalUncoveredLines())
}

func TestBuild_InvalidURL(t *testing.T) {
	_, err := newTestBuilder().Build(page(t, explicitRows), "://missing-scheme")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid source URL")
}

func TestRetryPolicy_Thresholds(t *testing.T) {
	scoped, err := url.Parse("https://sonar.test/code?metric=new_lines_to_cover")
	require.NoError(t, err)
	unscoped, err := url.Parse("https://sonar.test/code?metric=lines_to_cover")
	require.NoError(t, err)

	strict := RetryPolicy{Enabled: true, MinIndicatorOnlyRows: 3, MinFilteredRows: 2, MinIndicatorRows: 2}

	tests := []struct {
		name   string
		policy RetryPolicy
		u      *url.URL
		stats  sonar.Stats
		want   bool
	}{
		{"indicator-only evidence", DefaultRetryPolicy(), scoped, sonar.Stats{IndicatorWithoutNewCodeRows: 1}, true},
		{"filtered plus indicators", DefaultRetryPolicy(), scoped, sonar.Stats{FilteredRows: 1, UncoveredIndicatorRows: 1}, true},
		{"filtered without indicators", DefaultRetryPolicy(), scoped, sonar.Stats{FilteredRows: 4}, false},
		{"no evidence", DefaultRetryPolicy(), scoped, sonar.Stats{TotalRows: 20}, false},
		{"unscoped url", DefaultRetryPolicy(), unscoped, sonar.Stats{IndicatorWithoutNewCodeRows: 5}, false},
		{"strict below threshold", strict, scoped, sonar.Stats{IndicatorWithoutNewCodeRows: 2, FilteredRows: 1, UncoveredIndicatorRows: 9}, false},
		{"strict met", strict, scoped, sonar.Stats{IndicatorWithoutNewCodeRows: 3}, true},
		{"zero thresholds count as one", RetryPolicy{Enabled: true}, scoped, sonar.Stats{}, false},
		{"nil url", DefaultRetryPolicy(), nil, sonar.Stats{IndicatorWithoutNewCodeRows: 1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.policy.ShouldRetry(tt.u, tt.stats))
		})
	}
}

func TestIsNoNewCoverage_Wrapped(t *testing.T) {
	err := fmt.Errorf("Ledger.ts: %w", &NoNewCoverageError{})
	assert.True(t, IsNoNewCoverage(err))
	assert.Contains(t, err.Error(), `Ensure the "New Code" filter is active`)
	assert.False(t, IsNoNewCoverage(errors.New("boom")))
}
