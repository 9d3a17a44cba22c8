package progress

import (
	"fmt"
	"sync"
)

// Phase identifies which half of the range an update belongs to.
type Phase string

const (
	PhaseFetch Phase = "fetch"
	PhaseMerge Phase = "merge"
	PhaseDone  Phase = "done"
)

const fetchCeiling = 50.0

// Update is one progress report. Text is never empty.
type Update struct {
	Percent float64
	Text    string
	Phase   Phase
}

// Reporter accumulates progress for one ingestion session.
type Reporter struct {
	mu        sync.Mutex
	percent   float64
	queued    int
	merged    int
	lastPhase Phase
}

// NewReporter returns a reporter at 0%.
func NewReporter() *Reporter {
	return &Reporter{lastPhase: PhaseFetch}
}

// Reset returns the reporter to 0% for a new session.
func (r *Reporter) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.percent = 0
	r.queued = 0
	r.merged = 0
	r.lastPhase = PhaseFetch
}

// Fetched records fetch progress. percent is the fetcher's own estimate in
// the 0-50 range; values outside it are clamped.
func (r *Reporter) Fetched(percent float64, text string) Update {
	r.mu.Lock()
	defer r.mu.Unlock()
	if text == "" {
		text = "Loading data"
	}
	return r.advanceLocked(clamp(percent, 0, fetchCeiling), text, PhaseFetch)
}

// Queued adds n records to the merge workload.
func (r *Reporter) Queued(n int) {
	if n <= 0 {
		return
	}
	r.mu.Lock()
	r.queued += n
	r.mu.Unlock()
}

// Merged marks n queued records as processed.
func (r *Reporter) Merged(n int) Update {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.merged += n
	if r.merged > r.queued {
		r.queued = r.merged
	}
	ratio := 1.0
	if r.queued > 0 {
		ratio = float64(r.merged) / float64(r.queued)
	}
	text := fmt.Sprintf("Merged %d of %d records", r.merged, r.queued)
	return r.advanceLocked(fetchCeiling+ratio*(100-fetchCeiling), text, PhaseMerge)
}

// Complete jumps to 100%.
func (r *Reporter) Complete(text string) Update {
	r.mu.Lock()
	defer r.mu.Unlock()
	if text == "" {
		text = "Done"
	}
	return r.advanceLocked(100, text, PhaseDone)
}

func (r *Reporter) advanceLocked(percent float64, text string, phase Phase) Update {
	if percent > r.percent {
		r.percent = percent
	}
	if phase == PhaseDone || r.lastPhase != PhaseDone {
		r.lastPhase = phase
	}
	return Update{Percent: r.percent, Text: text, Phase: r.lastPhase}
}

func clamp(v, lo, hi float64) float64 {
	return max(lo, min(v, hi))
}
