package sonar

// Detection names how a row came to be classified as new code.
type Detection int

const (
	DetectionNone Detection = iota
	DetectionExplicit
	DetectionStructuralFallback
	DetectionColorHeuristic
)

func (d Detection) String() string {
	switch d {
	case DetectionExplicit:
		return "explicit"
	case DetectionStructuralFallback:
		return "structural-fallback"
	case DetectionColorHeuristic:
		return "color-heuristic"
	default:
		return "none"
	}
}

// ExtractOptions tune one extraction pass.
type ExtractOptions struct {
	// TreatIndicatorAsNewCode enables the structural fallback for rows that
	// show an uncovered indicator but carry no explicit new-code marker.
	TreatIndicatorAsNewCode bool
	// ColorHeuristic accepts the viewer's blue inline tint as a new-code signal.
	ColorHeuristic bool
	// DebugLabel tags log entries of this pass.
	DebugLabel string
}

// Stats are diagnostic counters for one extraction pass.
type Stats struct {
	TotalRows                   int `json:"totalRows"`
	FilteredRows                int `json:"filteredRows"`
	UncoveredIndicatorRows      int `json:"uncoveredIndicatorRows"`
	NewCodeMarkerRows           int `json:"newCodeMarkerRows"`
	UncoveredNewCodeRows        int `json:"uncoveredNewCodeRows"`
	IndicatorWithoutNewCodeRows int `json:"indicatorWithoutNewCodeRows"`
	NewCodeWithoutIndicatorRows int `json:"newCodeWithoutIndicatorRows"`
	HeuristicNewCodeRows        int `json:"heuristicNewCodeRows"`
	ColorHeuristicRows          int `json:"colorHeuristicRows"`
}

// rowOutcome is the classification of a single row.
type rowOutcome struct {
	snapshot  RowSnapshot
	detection Detection
	included  bool
}

// classify decides how, if at all, a row counts as new code, and whether it
// is reported.
func classify(s RowSnapshot, opts ExtractOptions) rowOutcome {
	detection := DetectionNone
	switch {
	case s.HasExplicitMarker:
		detection = DetectionExplicit
	case opts.TreatIndicatorAsNewCode && s.HasIndicator && s.FallbackEligible:
		detection = DetectionStructuralFallback
	case opts.ColorHeuristic && s.HasIndicator && s.HasColorHint:
		detection = DetectionColorHeuristic
	}

	return rowOutcome{
		snapshot:  s,
		detection: detection,
		included:  s.Resolved() && s.HasIndicator && detection != DetectionNone,
	}
}

// record folds one row outcome into the counters.
func (st Stats) record(o rowOutcome) Stats {
	newCode := o.detection != DetectionNone

	st.TotalRows++
	if o.snapshot.IsFiltered {
		st.FilteredRows++
	}
	if o.snapshot.HasIndicator {
		st.UncoveredIndicatorRows++
	}
	if o.snapshot.HasExplicitMarker {
		st.NewCodeMarkerRows++
	}
	if o.snapshot.HasIndicator && !newCode {
		st.IndicatorWithoutNewCodeRows++
	}
	if newCode && !o.snapshot.HasIndicator {
		st.NewCodeWithoutIndicatorRows++
	}
	if o.included {
		st.UncoveredNewCodeRows++
		switch o.detection {
		case DetectionStructuralFallback:
			st.HeuristicNewCodeRows++
		case DetectionColorHeuristic:
			st.ColorHeuristicRows++
		}
	}
	return st
}
