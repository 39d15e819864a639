package transport

import (
	"errors"
	"time"

	"moodscope/internal/analysis"
	"moodscope/internal/log"
)

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("transport closed")

// Transport defines a generic interface for sending processed data or events.
// Implementations should be thread-safe, and Send must not block the caller
// for long since it runs on the analysis tick.
type Transport interface {
	Send(data any) error
	Close() error
}

// MessageTypeAnalysis tags per-frame analysis messages.
const MessageTypeAnalysis = "analysis"

// Message is the JSON form of one analysis result.
type Message struct {
	Type              string              `json:"type"`
	Timestamp         int64               `json:"timestamp"` // unix milliseconds
	Mood              analysis.Mood       `json:"mood"`
	Confidence        float64             `json:"confidence"`
	DominantFrequency float64             `json:"dominantFrequency"`
	Features          analysis.FeatureSet `json:"features"`
}

// NewMessage wraps r for the wire.
func NewMessage(r analysis.AnalysisResult, at time.Time) Message {
	return Message{
		Type:              MessageTypeAnalysis,
		Timestamp:         at.UnixMilli(),
		Mood:              r.Mood,
		Confidence:        r.MoodConfidence,
		DominantFrequency: r.DominantFrequency,
		Features:          r.Features,
	}
}

// Subscriber adapts t into a result callback. Send errors are logged and
// never reach the publisher. A nil now uses time.Now.
func Subscriber(t Transport, now func() time.Time) func(analysis.AnalysisResult) {
	if now == nil {
		now = time.Now
	}
	logger := log.Named("transport")
	var failures int
	return func(r analysis.AnalysisResult) {
		if err := t.Send(NewMessage(r, now())); err != nil {
			failures++
			// First failure, then every 100th.
			if failures%100 == 1 {
				logger.Warnf("send via %T failed (%d so far): %v", t, failures, err)
			}
			return
		}
		failures = 0
	}
}
