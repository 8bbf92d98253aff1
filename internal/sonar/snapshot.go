package sonar

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

var digitsPattern = regexp.MustCompile(`\d+`)

// RowSnapshot is the neutral reading of one rendered source row.
type RowSnapshot struct {
	// LineNumber is 0 when no candidate could be parsed.
	LineNumber        int
	CodeText          string
	IsFiltered        bool
	HasIndicator      bool
	HasExplicitMarker bool
	// FallbackEligible is never true when HasExplicitMarker is.
	FallbackEligible bool
	// HasColorHint is only consulted by the color-heuristic detection.
	HasColorHint bool
}

// Resolved reports whether the row carried a usable line number.
func (s RowSnapshot) Resolved() bool {
	return s.LineNumber > 0
}

// RowParser snapshots rows of a single document.
type RowParser struct {
	tooltips *TooltipIndex
}

// NewRowParser returns a parser resolving tooltip references through tooltips.
// A nil index disables aria-describedby/aria-labelledby resolution.
func NewRowParser(tooltips *TooltipIndex) *RowParser {
	return &RowParser{tooltips: tooltips}
}

type indicatorAnalysis struct {
	hasIndicator bool
	normalised   []string
}

// Snapshot reads one row element.
func (p *RowParser) Snapshot(row *goquery.Selection) RowSnapshot {
	row = row.First()
	if row.Length() == 0 {
		return RowSnapshot{}
	}
	codeCell := row.Find(CodeCellSelector).First()
	scope := rowScope(row, codeCell)

	indicator := p.analyseIndicator(row, codeCell)
	explicit := hasExplicitMarker(scope)
	filtered := isFiltered(scope)

	return RowSnapshot{
		LineNumber:        resolveLineNumber(row),
		CodeText:          extractCodeText(codeCell),
		IsFiltered:        filtered,
		HasIndicator:      indicator.hasIndicator,
		HasExplicitMarker: explicit,
		FallbackEligible:  isFallbackEligible(scope, filtered, indicator, explicit),
		HasColorHint:      hasColorHint(scope),
	}
}

// rowScope is the row followed by its code cell, when present.
func rowScope(row, codeCell *goquery.Selection) []*goquery.Selection {
	if codeCell.Length() == 0 {
		return []*goquery.Selection{row}
	}
	return []*goquery.Selection{row, codeCell}
}

func (p *RowParser) analyseIndicator(row, codeCell *goquery.Selection) indicatorAnalysis {
	texts := newOrderedSet()
	for _, node := range findIndicatorNodes(row, codeCell) {
		p.collectIndicatorTexts(node, texts)
	}

	analysis := indicatorAnalysis{normalised: make([]string, 0, len(texts.values))}
	for _, text := range texts.values {
		folded := normalise(text)
		analysis.normalised = append(analysis.normalised, folded)
		if containsAny(folded, indicatorKeywords) {
			analysis.hasIndicator = true
		}
	}
	return analysis
}

// findIndicatorNodes picks the elements that may carry a "not covered" signal:
// every non-code cell with its descendants, else descriptive elements outside
// the code cell, else the code cell or the row itself.
func findIndicatorNodes(row, codeCell *goquery.Selection) []*html.Node {
	var nodes []*html.Node
	row.Find("td").Each(func(_ int, cell *goquery.Selection) {
		if cell.HasClass(codeCellClass) {
			return
		}
		nodes = append(nodes, cell.Nodes...)
		nodes = append(nodes, cell.Find("*").Nodes...)
	})
	if len(nodes) > 0 {
		return nodes
	}

	var codeNode *html.Node
	if codeCell.Length() > 0 {
		codeNode = codeCell.Get(0)
	}
	row.Find(descriptiveSelector).Each(func(_ int, s *goquery.Selection) {
		n := s.Get(0)
		if codeNode != nil && (n == codeNode || isDescendant(codeNode, n)) {
			return
		}
		nodes = append(nodes, n)
	})
	if len(nodes) > 0 {
		return nodes
	}

	if codeNode != nil {
		return []*html.Node{codeNode}
	}
	return []*html.Node{row.Get(0)}
}

func (p *RowParser) collectIndicatorTexts(node *html.Node, bucket *orderedSet) {
	for _, name := range indicatorTextAttributes {
		value, ok := attr(node, name)
		if !ok || value == "" {
			continue
		}
		if tooltipReferenceAttributes[name] {
			for _, id := range strings.Fields(value) {
				if text, ok := p.tooltips.Resolve(id); ok {
					bucket.add(text)
				}
			}
			continue
		}
		bucket.add(value)
	}

	for _, value := range datasetValues(node) {
		bucket.add(value)
	}
	bucket.add(strings.TrimSpace(nodeText(node)))
}

func hasExplicitMarker(scope []*goquery.Selection) bool {
	for _, s := range scope {
		if matchesAnySelector(s, ExplicitNewCodeSelectors) {
			return true
		}
	}
	for _, s := range scope {
		if hasStructuralKeyword(s.Get(0), explicitNewCodeKeywords) {
			return true
		}
	}
	return false
}

func matchesAnySelector(s *goquery.Selection, selectors []string) bool {
	for _, selector := range selectors {
		if s.Is(selector) || s.Find(selector).Length() > 0 {
			return true
		}
	}
	return false
}

func hasStructuralKeyword(node *html.Node, keywords []string) bool {
	for _, value := range structuralValues(node) {
		if containsAny(normalise(value), keywords) {
			return true
		}
	}
	return false
}

func structuralValues(node *html.Node) []string {
	values := newOrderedSet()
	for _, name := range structuralAttributes {
		if value, ok := attr(node, name); ok {
			values.add(value)
		}
	}
	for _, value := range datasetValues(node) {
		values.add(value)
	}
	return values.values
}

func isFiltered(scope []*goquery.Selection) bool {
	for _, s := range scope {
		if s.HasClass(filteredClass) {
			return true
		}
		node := s.Get(0)
		if v, _ := attr(node, "data-line-filtered"); v == "true" {
			return true
		}
		if v, _ := attr(node, "data-filtered"); v == "true" {
			return true
		}
	}
	return false
}

func isFallbackEligible(scope []*goquery.Selection, filtered bool, indicator indicatorAnalysis, explicit bool) bool {
	if explicit {
		return false
	}
	if filtered {
		return true
	}
	for _, text := range indicator.normalised {
		if strings.Contains(text, "new code") {
			return true
		}
	}
	for _, s := range scope {
		for _, value := range structuralValues(s.Get(0)) {
			if matchesFallbackKeyword(normalise(value)) {
				return true
			}
		}
	}
	return false
}

func matchesFallbackKeyword(value string) bool {
	if value == "" {
		return false
	}
	if strings.Contains(value, "new code") &&
		(strings.Contains(value, "filter") || strings.Contains(value, "only") || strings.Contains(value, "line")) {
		return true
	}
	return containsAny(value, fallbackKeywords)
}

func hasColorHint(scope []*goquery.Selection) bool {
	for _, s := range scope {
		style, _ := attr(s.Get(0), "style")
		if hasBlueTint(inlineTint(style)) {
			return true
		}
	}
	return false
}

func resolveLineNumber(row *goquery.Selection) int {
	candidates := newOrderedSet()
	addLineAttrs := func(n *html.Node) {
		if v, ok := attr(n, "data-line-number"); ok {
			candidates.add(v)
		}
		if v, ok := attr(n, "data-line"); ok {
			candidates.add(v)
		}
	}

	addLineAttrs(row.Get(0))
	row.Find("[data-line-number], [data-line]").Each(func(_ int, s *goquery.Selection) {
		addLineAttrs(s.Get(0))
	})
	row.Find(lineTriggerSelector).Each(func(_ int, s *goquery.Selection) {
		if v, ok := attr(s.Get(0), "aria-label"); ok {
			candidates.add(v)
		}
		candidates.add(strings.TrimSpace(s.Text()))
	})

	for _, candidate := range candidates.values {
		digits := digitsPattern.FindString(candidate)
		if digits == "" {
			continue
		}
		if n, err := strconv.Atoi(digits); err == nil {
			return n
		}
	}
	return 0
}

func extractCodeText(codeCell *goquery.Selection) string {
	if codeCell.Length() == 0 {
		return ""
	}
	target := codeCell.Find("pre").First()
	if target.Length() == 0 {
		target = codeCell
	}
	text := nodeText(target.Get(0))
	text = strings.ReplaceAll(text, "\u00a0", " ")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.TrimSuffix(text, "\n")
}

func attr(n *html.Node, key string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// datasetValues returns the non-empty data-* attribute values of n.
func datasetValues(n *html.Node) []string {
	if n == nil {
		return nil
	}
	var values []string
	for _, a := range n.Attr {
		if strings.HasPrefix(a.Key, "data-") && a.Val != "" {
			values = append(values, a.Val)
		}
	}
	return values
}

func isDescendant(ancestor, n *html.Node) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if p == ancestor {
			return true
		}
	}
	return false
}
