package sonar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshotRow(t *testing.T, rowMarkup string, extra string) RowSnapshot {
	t.Helper()
	doc := parseDocument(t, "<html><body><table><tbody>"+rowMarkup+"</tbody></table>"+extra+"</body></html>")
	row := doc.Find("tr").First()
	require.Equal(t, 1, row.Length())
	return NewRowParser(NewTooltipIndex(doc.Nodes[0])).Snapshot(row)
}

func TestSnapshot_ExplicitMarkerIsNeverFallbackEligible(t *testing.T) {
	snap := snapshotRow(t, `
      <tr data-line-number="12" class="it__source-line-filtered">
        <td class="status" aria-label="Line not covered"></td>
        <td class="it__source-line-code"><div data-testid="new-code-underline"></div><pre>x()</pre></td>
      </tr>`, "")

	assert.True(t, snap.IsFiltered)
	assert.True(t, snap.HasIndicator)
	assert.True(t, snap.HasExplicitMarker)
	assert.False(t, snap.FallbackEligible)
}

func TestSnapshot_LineNumberCandidates(t *testing.T) {
	tests := []struct {
		name string
		row  string
		want int
	}{
		{
			name: "row attribute",
			row:  `<tr data-line-number="17"><td class="it__source-line-code">a</td></tr>`,
			want: 17,
		},
		{
			name: "digits inside noise",
			row:  `<tr data-line-number="L-0042"><td class="it__source-line-code">a</td></tr>`,
			want: 42,
		},
		{
			name: "nested cell",
			row:  `<tr data-line-number=""><td data-line="88">88</td><td class="it__source-line-code">a</td></tr>`,
			want: 88,
		},
		{
			name: "trigger label",
			row:  `<tr data-line-number="x"><td><button id="line-number-trigger-5" aria-label="Line 5">5</button></td></tr>`,
			want: 5,
		},
		{
			name: "row header text",
			row:  `<tr data-line-number="?"><th role="rowheader">301</th><td class="it__source-line-code">a</td></tr>`,
			want: 301,
		},
		{
			name: "unresolved",
			row:  `<tr data-line-number=""><td class="it__source-line-code">a</td></tr>`,
			want: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := snapshotRow(t, tt.row, "")
			assert.Equal(t, tt.want, snap.LineNumber)
			assert.Equal(t, tt.want > 0, snap.Resolved())
		})
	}
}

func TestSnapshot_CodeText(t *testing.T) {
	snap := snapshotRow(t,
		"<tr data-line-number=\"3\"><td class=\"it__source-line-code\"><pre>a&nbsp;b\r\nc\n</pre></td></tr>", "")
	assert.Equal(t, "a b\nc", snap.CodeText)

	noPre := snapshotRow(t, `<tr data-line-number="3"><td class="it__source-line-code"><span>x</span> := <span>1</span></td></tr>`, "")
	assert.Equal(t, "x := 1", noPre.CodeText)

	noCell := snapshotRow(t, `<tr data-line-number="3"><td>plain</td></tr>`, "")
	assert.Equal(t, "", noCell.CodeText)
}

func TestSnapshot_IndicatorSources(t *testing.T) {
	tests := []struct {
		name  string
		row   string
		extra string
		want  bool
	}{
		{
			name: "aria label",
			row:  `<tr data-line-number="1"><td aria-label="Line not covered"></td><td class="it__source-line-code">a</td></tr>`,
			want: true,
		},
		{
			name:  "described by tooltip",
			row:   `<tr data-line-number="1"><td><span aria-describedby="missing tip-1"></span></td><td class="it__source-line-code">a</td></tr>`,
			extra: `<div id="tip-1">  Line not covered by tests </div>`,
			want:  true,
		},
		{
			name: "german mixed case",
			row:  `<tr data-line-number="1"><td title="Zeile NICHT  abgedeckt"></td><td class="it__source-line-code">a</td></tr>`,
			want: true,
		},
		{
			name: "french accents",
			row:  `<tr data-line-number="1"><td data-status="Lígne non couvérte"></td><td class="it__source-line-code">a</td></tr>`,
			want: true,
		},
		{
			name: "data attribute value",
			row:  `<tr data-line-number="1"><td data-whatever="uncovered"></td><td class="it__source-line-code">a</td></tr>`,
			want: true,
		},
		{
			name: "own text",
			row:  `<tr data-line-number="1"><td><span>No coverage</span></td><td class="it__source-line-code">a</td></tr>`,
			want: true,
		},
		{
			name: "code text does not count",
			row:  `<tr data-line-number="1"><td class="it__source-line-number">1</td><td class="it__source-line-code">// not covered</td></tr>`,
			want: false,
		},
		{
			name: "covered",
			row:  `<tr data-line-number="1"><td aria-label="Line covered by 3 tests"></td><td class="it__source-line-code">a</td></tr>`,
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, snapshotRow(t, tt.row, tt.extra).HasIndicator)
		})
	}
}

func TestSnapshot_FallbackEligibility(t *testing.T) {
	tests := []struct {
		name string
		row  string
		want bool
	}{
		{
			name: "filtered by data attribute",
			row:  `<tr data-line-number="1" data-line-filtered="true"><td aria-label="Line not covered"></td><td class="it__source-line-code">a</td></tr>`,
			want: true,
		},
		{
			name: "indicator mentions new code",
			row:  `<tr data-line-number="1"><td aria-label="Line not covered (New Code)"></td><td class="it__source-line-code">a</td></tr>`,
			want: true,
		},
		{
			name: "structural fallback keyword",
			row:  `<tr data-line-number="1" data-purpose="new code scope"><td aria-label="Line not covered"></td><td class="it__source-line-code">a</td></tr>`,
			want: true,
		},
		{
			name: "no evidence",
			row:  `<tr data-line-number="1"><td aria-label="Line not covered"></td><td class="it__source-line-code">a</td></tr>`,
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := snapshotRow(t, tt.row, "")
			assert.False(t, snap.HasExplicitMarker)
			assert.Equal(t, tt.want, snap.FallbackEligible)
		})
	}
}

func TestSnapshot_DescriptiveElementsOutsideCodeCell(t *testing.T) {
	// No td besides the code cell: descriptive elements elsewhere in the row are scanned,
	// the one inside the code cell is not.
	snap := snapshotRow(t, `
      <tr data-line-number="7">
        <th><span role="img" aria-label="Line not covered"></span></th>
        <td class="it__source-line-code"><span aria-label="irrelevant"></span>a</td>
      </tr>`, "")
	assert.True(t, snap.HasIndicator)

	inside := snapshotRow(t, `
      <tr data-line-number="7">
        <td class="it__source-line-code" aria-label="Line not covered"><span aria-label="irrelevant"></span>a</td>
      </tr>`, "")
	assert.True(t, inside.HasIndicator, "falls back to the code cell when nothing else describes the row")
}

func TestSnapshot_ColorHint(t *testing.T) {
	tinted := snapshotRow(t, `<tr data-line-number="1"><td class="it__source-line-code" style="background-color: rgb(180, 210, 255)">a</td></tr>`, "")
	assert.True(t, tinted.HasColorHint)

	plain := snapshotRow(t, `<tr data-line-number="1" style="background: #fff"><td class="it__source-line-code">a</td></tr>`, "")
	assert.False(t, plain.HasColorHint)
}

func TestHasBlueTint(t *testing.T) {
	tests := []struct {
		color string
		want  bool
	}{
		{"", false},
		{"linear-gradient(to right, #fff, #00f)", true},
		{"rgb(200, 220, 250)", true},
		{"rgba(200, 220, 250, 0)", false},
		{"rgb(225, 236, 245)", false},
		{"rgb(10, 20, 90)", false},
		{"#0000ff", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, hasBlueTint(tt.color), tt.color)
	}
}

func TestInlineTint(t *testing.T) {
	assert.Equal(t, "rgb(1, 2, 3)", inlineTint(`color: red; --line-background: "rgb(1, 2, 3)"`))
	assert.Equal(t, "blue", inlineTint("Background-Color: blue"))
	assert.Equal(t, "", inlineTint("color: red"))
}

func TestTooltipIndexMemoises(t *testing.T) {
	doc := parseDocument(t, `<div id="a"> first </div><div id="empty"></div>`)
	index := NewTooltipIndex(doc.Nodes[0])

	text, ok := index.Resolve("a")
	assert.True(t, ok)
	assert.Equal(t, "first", text)

	_, ok = index.Resolve("a")
	assert.True(t, ok)
	_, ok = index.Resolve("empty")
	assert.False(t, ok)
	_, ok = index.Resolve("missing")
	assert.False(t, ok)

	assert.Equal(t, 3, index.Cached())

	var nilIndex *TooltipIndex
	_, ok = nilIndex.Resolve("a")
	assert.False(t, ok)
}

func TestNormalise(t *testing.T) {
	assert.Equal(t, "linea sin cobertura", normalise("  Línea \t SIN\ncobertura "))
	assert.Equal(t, "nicht abgedeckt", normalise("NICHT ABGEDECKT"))
	assert.Equal(t, "", normalise("   "))
}
