package transport

import (
	"sync"
	"time"

	"moodscope/internal/analysis"
	"moodscope/internal/log"
)

// LoggingTransport implements the Transport interface by logging results at
// most once per interval.
type LoggingTransport struct {
	log      *log.Logger
	interval time.Duration
	now      func() time.Time

	mu       sync.Mutex
	last     time.Time
	lastMood analysis.Mood
	seen     bool
	closed   bool
}

// NewLoggingTransport creates a LoggingTransport. A zero interval logs
// every message.
func NewLoggingTransport(interval time.Duration) *LoggingTransport {
	return &LoggingTransport{
		log:      log.Named("transport.log"),
		interval: interval,
		now:      time.Now,
	}
}

// Send logs data when the interval has elapsed or the mood changed.
// Unknown payloads are logged with %+v.
func (lt *LoggingTransport) Send(data any) error {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	if lt.closed {
		return ErrClosed
	}

	now := lt.now()
	msg, isMessage := data.(Message)
	moodChanged := isMessage && (!lt.seen || msg.Mood != lt.lastMood)
	if !moodChanged && lt.seen && now.Sub(lt.last) < lt.interval {
		return nil
	}
	lt.last = now
	lt.seen = true

	if !isMessage {
		lt.log.Infof("received %T: %+v", data, data)
		return nil
	}
	lt.lastMood = msg.Mood
	f := msg.Features
	lt.log.With("mood", msg.Mood.String()).Infof(
		"dominant=%.1fHz energy=%.3f rms=%.3f zcr=%.3f centroid=%.3f flatness=%.3f rolloff=%.3f",
		msg.DominantFrequency, f.Energy, f.RMS, f.ZCR, f.SpectralCentroid, f.SpectralFlatness, f.SpectralRolloff)
	return nil
}

// Close stops further logging.
func (lt *LoggingTransport) Close() error {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	if !lt.closed {
		lt.closed = true
		lt.log.Debugf("closed")
	}
	return nil
}

// Ensure LoggingTransport satisfies the interface at compile time.
var _ Transport = (*LoggingTransport)(nil)
