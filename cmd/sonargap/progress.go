package main

import (
	"fmt"
	"io"
	"time"

	"github.com/schollz/progressbar/v3"

	"sonargap/internal/collector"
)

// barProgress draws batch progress as a terminal progress bar.
type barProgress struct {
	w   io.Writer
	bar *progressbar.ProgressBar
}

var _ collector.Progress = (*barProgress)(nil)

func newBarProgress(w io.Writer) *barProgress {
	return &barProgress{w: w}
}

func (p *barProgress) Update(payload collector.ProgressPayload) {
	if p.bar == nil {
		p.bar = progressbar.NewOptions(payload.Total,
			progressbar.OptionSetWriter(p.w),
			progressbar.OptionSetDescription("Collecting files"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionThrottle(65*time.Millisecond),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionOnCompletion(func() {
				fmt.Fprintln(p.w)
			}),
		)
	}
	p.bar.Describe(payload.Label)
	_ = p.bar.Set(payload.Processed)
}

func (p *barProgress) Complete(payload collector.CompletePayload) {
	if p.bar == nil {
		return
	}
	_ = p.bar.Finish()
}
