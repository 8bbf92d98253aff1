package coverage

// Reason classifies why a file was skipped in batch mode.
type Reason string

const (
	ReasonNoNewCoverage   Reason = "NO_NEW_COVERAGE"
	ReasonUnexpectedError Reason = "UNEXPECTED_ERROR"
)

// Failure records a file that produced no report.
type Failure struct {
	Success bool   `json:"success"` // always false
	URL     string `json:"url"`
	Label   string `json:"label"`
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	Reason  Reason `json:"reason,omitempty"`
}

// NoNewCoverage reports whether the file simply had nothing to report.
func (f Failure) NoNewCoverage() bool {
	return f.Reason == ReasonNoNewCoverage
}
