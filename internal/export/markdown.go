// Package export renders coverage reports as Markdown documents.
package export

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"sonargap/internal/coverage"
	"sonargap/internal/logging"
)

// ErrNoReports is returned when a bundle would contain no reports.
var ErrNoReports = errors.New("no coverage reports to export")

// Document is a rendered Markdown file.
type Document struct {
	FileName string
	Content  string
}

// Composer builds Markdown documents. The zero value is not usable; use NewComposer.
type Composer struct {
	now func() time.Time
}

// Option configures a Composer.
type Option func(*Composer)

// WithClock sets the time source used for file-name timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Composer) { c.now = now }
}

// NewComposer creates a composer.
func NewComposer(opts ...Option) *Composer {
	c := &Composer{now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Report renders a single report with the default composer.
func Report(r *coverage.Report) Document {
	return NewComposer().Report(r)
}

// Bundle renders several reports and the skipped files with the default composer.
func Bundle(reports []*coverage.Report, skipped []coverage.Failure) (Document, error) {
	return NewComposer().Bundle(reports, skipped)
}

// Report renders one report as a standalone document.
func (c *Composer) Report(r *coverage.Report) Document {
	name := ReportFileName(r.FilePath(), c.now(), "md")
	content := newSection(r, 1, "SonarQube Coverage Gaps 📉").render(true)
	logging.ExportDebug("rendered %s (%d blocks)", name, len(r.Groups()))
	return Document{FileName: name, Content: content}
}

// Bundle renders a rollup of reports followed by each report nested one
// level down. Skipped files are listed with their details.
func (c *Composer) Bundle(reports []*coverage.Report, skipped []coverage.Failure) (Document, error) {
	if len(reports) == 0 {
		return Document{}, ErrNoReports
	}

	var totalLines, totalBlocks int
	var projects []string
	seen := make(map[string]bool)
	for _, r := range reports {
		totalLines += r.TotalUncoveredLines()
		totalBlocks += len(r.Groups())
		if !seen[r.ProjectName()] {
			seen[r.ProjectName()] = true
			projects = append(projects, "`"+r.ProjectName()+"`")
		}
	}

	var b strings.Builder
	b.WriteString("# SonarQube Coverage Rollup 📈\n\n")
	fmt.Fprintf(&b, "- Files analysed: **%d**\n", len(reports))
	fmt.Fprintf(&b, "- Total uncovered lines: **%d**\n", totalLines)
	fmt.Fprintf(&b, "- Total uncovered blocks: **%d**\n", totalBlocks)
	fmt.Fprintf(&b, "- Projects: %s\n", strings.Join(projects, ", "))

	if len(skipped) > 0 {
		b.WriteString("\n> ⚠️ Some files could not be processed:\n")
		for _, s := range skipped {
			note := s.Error
			if note == "" {
				note = "Unknown error"
			}
			fmt.Fprintf(&b, "> - %s\n", note)
			if s.Details != "" {
				b.WriteString(">```text\n")
				for _, line := range strings.Split(s.Details, "\n") {
					fmt.Fprintf(&b, "> %s\n", line)
				}
				b.WriteString(">```\n")
			}
		}
	}

	b.WriteString("\n## File Overview\n")
	b.WriteString("| File | Project | Blocks | Lines |\n")
	b.WriteString("| :---- | :------ | ----: | ----: |\n")
	for _, r := range reports {
		fmt.Fprintf(&b, "| %s | %s | %d | %d |\n",
			escapeTableCell(r.FilePath()), escapeTableCell(r.ProjectName()), len(r.Groups()), r.TotalUncoveredLines())
	}

	b.WriteString("\n## Detailed Reports\n")
	for _, r := range reports {
		b.WriteString("\n")
		b.WriteString(newSection(r, 2, "📄 "+r.FilePath()).render(false))
		b.WriteString("\n")
	}
	b.WriteString("\n🚀 Share this bundle with your tooling or teammates to close the coverage gaps efficiently.")

	name := BundleFileName(c.now(), "md")
	logging.ExportDebug("rendered %s (%d reports, %d skipped)", name, len(reports), len(skipped))
	return Document{FileName: name, Content: b.String()}, nil
}

// ReportFileName names the export of the report for filePath.
func ReportFileName(filePath string, at time.Time, ext string) string {
	return fmt.Sprintf("sonar-coverage_%s_%s.%s", sanitiseFileName(filePath), fileTimestamp(at), ext)
}

// BundleFileName names the export of a batch run.
func BundleFileName(at time.Time, ext string) string {
	return fmt.Sprintf("sonar-coverage_bundle_%s.%s", fileTimestamp(at), ext)
}

func fileTimestamp(at time.Time) string {
	return sanitiseFileName(at.UTC().Format("2006-01-02T15:04:05.000Z07:00"))
}

// section renders one report at a given heading depth.
type section struct {
	report   *coverage.Report
	groups   []coverage.Group
	clusters []cluster
	level    int
	title    string
	language string
}

func newSection(r *coverage.Report, level int, title string) *section {
	groups := r.Groups()
	return &section{
		report:   r,
		groups:   groups,
		clusters: clusterGroups(groups),
		level:    level,
		title:    title,
		language: guessLanguage(r.FilePath()),
	}
}

func (s *section) heading(offset int, text string) string {
	depth := s.level + offset
	if depth > 6 {
		depth = 6
	}
	return strings.Repeat("#", depth) + " " + text
}

func (s *section) render(shareLine bool) string {
	r := s.report
	lines := []string{
		s.heading(0, s.title),
		"",
		"- **Project**: " + r.ProjectName(),
		"- **File**: `" + r.FilePath() + "`",
		"- **Generated**: " + r.GeneratedAt().UTC().Format("2006-01-02 15:04:05 MST"),
		"- **SonarQube page**: " + r.URL(),
		"",
		s.heading(1, "Quick Snapshot 📊"),
		fmt.Sprintf("- Uncovered new-code lines: **%d**", r.TotalUncoveredLines()),
		fmt.Sprintf("- Blocks captured: **%d**", len(s.groups)),
		"- Longest block: " + s.longestBlock(),
		fmt.Sprintf("- Hotspot groups: **%d**", len(s.clusters)),
		"",
		s.heading(2, "Testing Checklist ✅"),
		s.checklist(),
		"",
		s.heading(2, "Range Overview"),
		s.rangeTable(),
		"",
		s.heading(2, "Noteworthy Logic 📌"),
		s.noteworthy(),
		"",
		s.heading(1, "Code Gaps 🔍"),
	}
	for _, g := range s.groups {
		lines = append(lines, "- "+formatRange(g))
	}
	lines = append(lines, "")
	lines = append(lines, s.codeSections()...)
	lines = append(lines,
		"---",
		s.heading(1, "Ready-to-use Prompt 🤖"),
		"```text",
		s.prompt(),
		"```",
		"",
		s.heading(1, "Guidance & Constraints"),
		"- Review existing automated tests and documentation for reference patterns.",
		"- Keep code changes scoped to the impacted areas and their related test suites.",
		"- Deliver concrete test updates or code snippets that measurably improve coverage.",
		"",
	)
	if shareLine {
		lines = append(lines, "🚀 Share this report with your tooling or teammates to close the coverage gaps efficiently.")
	}
	return strings.Join(lines, "\n")
}

func (s *section) longestBlock() string {
	var longest *coverage.Group
	for i := range s.groups {
		if longest == nil || s.groups[i].Len() > longest.Len() {
			longest = &s.groups[i]
		}
	}
	if longest == nil {
		return "n/a"
	}
	return fmt.Sprintf("%s (%s)", formatRange(*longest), formatLinesCount(longest.Len()))
}

func (s *section) checklist() string {
	if len(s.clusters) == 0 {
		return "_No hotspots detected via clustering._"
	}
	items := make([]string, len(s.clusters))
	for i, c := range s.clusters {
		items[i] = fmt.Sprintf("- 🔥 %s · %d block(s), %s – %s",
			formatSpan(c.StartLine, c.EndLine), len(c.Groups), formatLinesCount(c.totalLines()), summariseCluster(c))
	}
	return strings.Join(items, "\n")
}

func (s *section) rangeTable() string {
	rows := []string{
		"| Range | Lines | Highlight |",
		"| :---- | ----: | :-------- |",
	}
	for _, g := range s.groups {
		rows = append(rows, fmt.Sprintf("| %s | %d | %s |", formatRange(g), g.Len(), escapeTableCell(summariseGroup(g))))
	}
	return strings.Join(rows, "\n")
}

// noteworthy lists up to eight blocks whose first line looks like logic
// rather than logging, or the first five blocks when none do.
func (s *section) noteworthy() string {
	var items []string
	for _, g := range s.groups {
		summary := summariseGroup(g)
		lower := strings.ToLower(summary)
		if summary == blankLine || strings.HasPrefix(lower, "log") || strings.HasPrefix(lower, "print") || len(lower) <= 3 {
			continue
		}
		items = append(items, fmt.Sprintf("- 📌 %s – %s", formatRange(g), summary))
		if len(items) == 8 {
			break
		}
	}
	if len(items) == 0 {
		for i, g := range s.groups {
			if i == 5 {
				break
			}
			items = append(items, fmt.Sprintf("- 📌 %s – %s", formatRange(g), summariseGroup(g)))
		}
	}
	return strings.Join(items, "\n")
}

func (s *section) codeSections() []string {
	fence := "```" + s.language
	var out []string
	for _, g := range s.groups {
		out = append(out,
			s.heading(2, "🔸 "+formatRange(g)),
			"",
			fence,
			buildSnippet(g),
			"```",
			"",
		)
	}
	return out
}

func (s *section) prompt() string {
	r := s.report
	lines := []string{
		"You are assisting with increasing automated test coverage based on SonarQube new-code analysis.",
		fmt.Sprintf("Focus on **%s** within project **%s**.", r.FilePath(), r.ProjectName()),
		fmt.Sprintf("Target the following %d uncovered block(s):", len(s.groups)),
	}
	for _, g := range s.groups {
		lines = append(lines, "  * "+formatRange(g))
	}
	lines = append(lines, "For each block, propose or implement tests that execute the code paths shown in the snippets above so SonarQube reports full coverage.")
	return strings.Join(lines, "\n")
}
