package report

import (
	"errors"
	"fmt"
	"strings"

	"sonargap/internal/sonar"
)

// ErrNoSourceViewer means the page is not a file-level viewer page.
var ErrNoSourceViewer = errors.New(`Unable to locate the SonarQube source viewer. Open a file-level "Measures" view and try again.`)

// ErrNoNewCoverage matches every *NoNewCoverageError via errors.Is.
var ErrNoNewCoverage = errors.New("no uncovered new-code lines detected")

const noCoverageHint = `No uncovered new-code lines detected. Ensure the "New Code" filter is active or that this file has uncovered lines.`

// NoNewCoverageError reports a valid viewer page without uncovered new-code
// lines. It is informational rather than a malfunction.
type NoNewCoverageError struct {
	Stats    sonar.Stats
	HasStats bool
}

func (e *NoNewCoverageError) Error() string {
	if !e.HasStats {
		return noCoverageHint
	}
	s := e.Stats
	parts := []string{
		fmt.Sprintf("No uncovered new-code lines detected (rows: %d, filtered: %d)", s.TotalRows, s.FilteredRows),
		fmt.Sprintf("Indicators: %d, new-code markers: %d", s.UncoveredIndicatorRows, s.NewCodeMarkerRows),
		fmt.Sprintf("Matches: %d, indicator-only: %d, new-code-only: %d",
			s.UncoveredNewCodeRows, s.IndicatorWithoutNewCodeRows, s.NewCodeWithoutIndicatorRows),
		fmt.Sprintf("Heuristic matches: %d, color matches: %d", s.HeuristicNewCodeRows, s.ColorHeuristicRows),
	}
	return strings.Join(parts, " · ")
}

func (e *NoNewCoverageError) Is(target error) bool {
	return target == ErrNoNewCoverage
}

// IsNoNewCoverage reports whether err is, or wraps, the no-coverage condition.
func IsNoNewCoverage(err error) bool {
	return errors.Is(err, ErrNoNewCoverage)
}
