// Package sonar reads the SonarQube code viewer's rendered markup.
// It snapshots source rows, classifies them as uncovered and/or new code,
// and collects the uncovered new-code lines of a document.
package sonar

// Viewer markup contract. None of this is documented by SonarQube; the
// selectors track what the viewer renders today.
const (
	SourceContainerSelector = ".source-viewer"
	SourceRowSelector       = "tr[data-line-number]"
	CodeCellSelector        = "td.it__source-line-code"
	BreadcrumbSelector      = `nav[aria-label="Breadcrumbs"]`

	codeCellClass = "it__source-line-code"
	filteredClass = "it__source-line-filtered"
)

// ExplicitNewCodeSelectors match the viewer's explicit "new code" decorations.
var ExplicitNewCodeSelectors = []string{
	`[data-testid="new-code-underline"]`,
	`[data-testid*="new-code-line"]`,
	`[data-testid*="new-code-marker"]`,
	`[data-testid*="new-code-indicator"]`,
	`[data-test*="new-code-line"]`,
	`[data-qa*="new-code-line"]`,
	`[class*="new-code-underline"]`,
	`[class*="new-code-indicator"]`,
}

var indicatorTextAttributes = []string{
	"aria-label",
	"aria-labelledby",
	"aria-describedby",
	"title",
	"data-tooltip",
	"data-original-title",
	"data-help",
	"data-status",
	"data-indicator",
	"data-coverage",
}

// Attributes whose ids point at tooltip elements elsewhere in the document.
var tooltipReferenceAttributes = map[string]bool{
	"aria-labelledby":  true,
	"aria-describedby": true,
}

var structuralAttributes = []string{
	"class",
	"data-testid",
	"data-test",
	"data-test-id",
	"data-qa",
	"data-purpose",
	"data-role",
	"data-state",
	"data-line-status",
	"data-line-type",
	"data-diff-type",
	"data-filter",
	"role",
	"aria-label",
	"id",
}

// Used when a row has no non-code cells to scan.
const descriptiveSelector = `[aria-label], [aria-labelledby], [aria-describedby], [data-tooltip], ` +
	`[data-original-title], [data-help], [data-status], [data-indicator], [data-coverage], ` +
	`[role="img"], [role="status"]`

const lineTriggerSelector = `[id^="line-number-trigger-"], [aria-label*="Line"], [role="rowheader"]`

// indicatorKeywords are matched against normalised text (lower case, no diacritics).
var indicatorKeywords = []string{
	"not covered",
	"line not covered",
	"lines not covered",
	"no coverage",
	"missing coverage",
	"without coverage",
	"uncovered",
	"coverage missing",
	"kein test",
	"keine abdeckung",
	"nicht abgedeckt",
	"nicht gedeckt",
	"pas couvert",
	"non couvert",
	"sin cobertura",
	"sem cobertura",
	"cobertura ausente",
	"cobertura faltante",
	"not tested",
	"missing tests",
}

var explicitNewCodeKeywords = []string{
	"new-code-underline",
	"new-code-line",
	"new-code-marker",
	"new-code-indicator",
	"new-code-highlight",
	"new-code",
	"new_code",
	"newcode",
	"nc__line",
}

var fallbackKeywords = []string{
	"new code only",
	"new-code-only",
	"new code filter",
	"filtered new code",
	"new-code-filtered",
	"new code filtered",
	"new code scope",
	"new code range",
	"new code summary",
	"new code lines",
	"source-line-filtered",
	"line-filtered",
}
