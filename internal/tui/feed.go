package tui

import (
	"sync"

	"moodscope/internal/analysis"
)

// Feed hands results from the analysis tick to the monitor without ever
// blocking the tick. Only the newest undelivered result is kept.
type Feed struct {
	ch        chan analysis.AnalysisResult
	closeOnce sync.Once
	mu        sync.Mutex
	closed    bool
}

// NewFeed returns an open feed.
func NewFeed() *Feed {
	return &Feed{ch: make(chan analysis.AnalysisResult, 1)}
}

// Push replaces any pending result with r.
func (f *Feed) Push(r analysis.AnalysisResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	select {
	case <-f.ch:
	default:
	}
	f.ch <- r
}

// Results is the channel the monitor reads.
func (f *Feed) Results() <-chan analysis.AnalysisResult {
	return f.ch
}

// Close ends the feed; the monitor quits once it drains.
func (f *Feed) Close() {
	f.closeOnce.Do(func() {
		f.mu.Lock()
		f.closed = true
		close(f.ch)
		f.mu.Unlock()
	})
}
