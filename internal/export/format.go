package export

import (
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"

	"sonargap/internal/coverage"
)

const (
	maxSummaryLength = 120

	// clusterGap is the widest run of covered lines two blocks of one cluster may straddle.
	clusterGap = 4
	blankLine  = "[blank line]"
)

var languageByExt = map[string]string{
	"ts":    "ts",
	"tsx":   "ts",
	"js":    "javascript",
	"jsx":   "javascript",
	"java":  "java",
	"kt":    "kotlin",
	"cs":    "csharp",
	"py":    "python",
	"rb":    "ruby",
	"php":   "php",
	"go":    "go",
	"cpp":   "cpp",
	"cc":    "cpp",
	"cxx":   "cpp",
	"hpp":   "cpp",
	"c":     "c",
	"h":     "c",
	"rs":    "rust",
	"swift": "swift",
	"css":   "css",
	"scss":  "css",
	"dart":  "dart",
	"scala": "scala",
	"sql":   "sql",
}

// guessLanguage maps a file extension to a code fence language, or "".
func guessLanguage(filePath string) string {
	ext := strings.TrimPrefix(path.Ext(filePath), ".")
	return languageByExt[strings.ToLower(ext)]
}

func formatSpan(start, end int) string {
	if start == end {
		return fmt.Sprintf("line %d", start)
	}
	return fmt.Sprintf("lines %d-%d", start, end)
}

func formatRange(g coverage.Group) string {
	return formatSpan(g.StartLine(), g.EndLine())
}

func formatLinesCount(n int) string {
	if n == 1 {
		return "1 line"
	}
	return fmt.Sprintf("%d lines", n)
}

// buildSnippet renders a block with a right-aligned line-number gutter.
func buildSnippet(g coverage.Group) string {
	width := len(strconv.Itoa(g.EndLine()))
	lines := g.Lines()
	out := make([]string, len(lines))
	for i, line := range lines {
		code := line.Code
		if code == "" {
			code = " "
		}
		out[i] = fmt.Sprintf("%*d| %s", width, line.Number, code)
	}
	return strings.Join(out, "\n")
}

func escapeTableCell(value string) string {
	value = strings.ReplaceAll(value, "|", `\|`)
	return strings.ReplaceAll(value, "\n", "<br />")
}

// summariseGroup returns the first non-blank line of the block, truncated.
func summariseGroup(g coverage.Group) string {
	for _, line := range g.Lines() {
		snippet := strings.TrimSpace(line.Code)
		if snippet == "" {
			continue
		}
		if runes := []rune(snippet); len(runes) > maxSummaryLength {
			return string(runes[:maxSummaryLength-3]) + "..."
		}
		return snippet
	}
	return blankLine
}

var (
	separatorRun = regexp.MustCompile(`[\\/]+`)
	unsafeRun    = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)
	underscores  = regexp.MustCompile(`_+`)
)

// sanitiseFileName turns s into a file-name fragment.
func sanitiseFileName(s string) string {
	s = separatorRun.ReplaceAllString(s, "_")
	s = unsafeRun.ReplaceAllString(s, "_")
	return underscores.ReplaceAllString(s, "_")
}

// cluster is a run of blocks separated by at most clusterGap covered lines.
type cluster struct {
	StartLine int
	EndLine   int
	Groups    []coverage.Group
}

func (c cluster) totalLines() int {
	return coverage.TotalLines(c.Groups)
}

func clusterGroups(groups []coverage.Group) []cluster {
	var clusters []cluster
	for _, g := range groups {
		if n := len(clusters); n > 0 && g.StartLine()-clusters[n-1].EndLine <= clusterGap {
			cur := &clusters[n-1]
			if g.EndLine() > cur.EndLine {
				cur.EndLine = g.EndLine()
			}
			cur.Groups = append(cur.Groups, g)
			continue
		}
		clusters = append(clusters, cluster{StartLine: g.StartLine(), EndLine: g.EndLine(), Groups: []coverage.Group{g}})
	}
	return clusters
}

func summariseCluster(c cluster) string {
	var unique []string
	seen := make(map[string]bool)
	for _, g := range c.Groups {
		s := summariseGroup(g)
		if s == blankLine || seen[s] {
			continue
		}
		seen[s] = true
		unique = append(unique, s)
	}
	switch len(unique) {
	case 0:
		return "Exercise the logic in this region."
	case 1:
		return unique[0]
	default:
		return unique[0] + " … " + unique[len(unique)-1]
	}
}
