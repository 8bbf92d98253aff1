package collector

import "time"

// PreparingLabel is the label of the progress update sent before the first file.
const PreparingLabel = "Preparing…"

// ProgressPayload describes the state of a batch run after an update.
type ProgressPayload struct {
	Processed int       `json:"processed"`
	Total     int       `json:"total"`
	Label     string    `json:"label"`
	StartedAt time.Time `json:"startedAt"`
}

// CompletePayload is sent once when a batch run finishes.
type CompletePayload struct {
	Processed int `json:"processed"`
	Total     int `json:"total"`
}

// Progress receives batch progress. Calls arrive on the collecting goroutine.
type Progress interface {
	Update(ProgressPayload)
	Complete(CompletePayload)
}

// NopProgress discards progress.
type NopProgress struct{}

func (NopProgress) Update(ProgressPayload)   {}
func (NopProgress) Complete(CompletePayload) {}

// tracker counts processed files and forwards payloads to a Progress.
type tracker struct {
	sink      Progress
	total     int
	processed int
	startedAt time.Time
}

func newTracker(sink Progress, total int, now time.Time) *tracker {
	if sink == nil {
		sink = NopProgress{}
	}
	return &tracker{sink: sink, total: total, startedAt: now}
}

func (t *tracker) start() {
	t.sink.Update(t.payload(PreparingLabel))
}

// advance marks one more file as processed; processed never exceeds total.
func (t *tracker) advance(label string) {
	if t.processed < t.total {
		t.processed++
	}
	t.sink.Update(t.payload(label))
}

func (t *tracker) complete() {
	t.sink.Complete(CompletePayload{Processed: t.processed, Total: t.total})
}

func (t *tracker) payload(label string) ProgressPayload {
	return ProgressPayload{
		Processed: t.processed,
		Total:     t.total,
		Label:     label,
		StartedAt: t.startedAt,
	}
}
