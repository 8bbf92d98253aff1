package report

import (
	"net/url"
	"strings"

	"sonargap/internal/sonar"
)

// RetryPolicy decides when a second extraction pass with the structural
// fallback is worth running. Thresholds below 1 count as 1.
type RetryPolicy struct {
	Enabled              bool
	MinIndicatorOnlyRows int
	MinFilteredRows      int
	MinIndicatorRows     int
}

// DefaultRetryPolicy retries on any latent evidence of excluded uncovered rows.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Enabled:              true,
		MinIndicatorOnlyRows: 1,
		MinFilteredRows:      1,
		MinIndicatorRows:     1,
	}
}

// ShouldRetry reports whether a fallback pass should follow an empty first
// pass with the given stats.
func (p RetryPolicy) ShouldRetry(u *url.URL, stats sonar.Stats) bool {
	if !p.Enabled || !IsNewCodeScoped(u) {
		return false
	}
	if stats.IndicatorWithoutNewCodeRows >= atLeastOne(p.MinIndicatorOnlyRows) {
		return true
	}
	return stats.FilteredRows >= atLeastOne(p.MinFilteredRows) &&
		stats.UncoveredIndicatorRows >= atLeastOne(p.MinIndicatorRows)
}

// IsNewCodeScoped reports whether the URL points at a "new code" view:
// a new_* metric, a view containing "new", or a pull request.
func IsNewCodeScoped(u *url.URL) bool {
	if u == nil {
		return false
	}
	q := u.Query()
	if strings.HasPrefix(q.Get("metric"), "new_") {
		return true
	}
	if strings.Contains(q.Get("view"), "new") {
		return true
	}
	return q.Has("pullRequest")
}

func atLeastOne(n int) int {
	if n < 1 {
		return 1
	}
	return n
}
