// SPDX-License-Identifier: MIT

// Package session runs the analysis loop: it pulls spectral frames from a
// source at a fixed rate, classifies them and publishes one result per
// available frame.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"moodscope/internal/analysis"
	"moodscope/internal/log"
	"moodscope/internal/observe"
	"moodscope/internal/publish"
)

// DefaultFrameInterval is one frame at 60 Hz.
const DefaultFrameInterval = time.Second / 60

var (
	ErrAlreadyRunning = errors.New("session already running")
	ErrNotRunning     = errors.New("session not running")
)

// Session owns a frame source, the analysis pipeline and the subscriber
// registry.
//
// Start, Stop and Run are lifecycle calls. Tick runs a single frame and is
// what Run calls on every tick; tests drive it directly. SetSensitivity,
// Sensitivity, Mood, Active and Subscribe are safe from any goroutine.
type Session struct {
	source    analysis.FrameSource
	pipeline  *analysis.Pipeline
	publisher *publish.Publisher
	metrics   *observe.Metrics
	log       *log.Logger
	clock     func() time.Time
	interval  time.Duration

	mu     sync.Mutex // guards stop
	active atomic.Bool
	stop   chan struct{}

	// tick serialises frames against Start and source disposal.
	tick sync.Mutex
	mood atomic.Uint32
}

// Option configures a Session.
type Option func(*Session)

// WithClock sets the time source handed to the classifier.
func WithClock(clock func() time.Time) Option {
	return func(s *Session) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithFrameInterval sets the period Run ticks at. Non-positive values keep
// the default.
func WithFrameInterval(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithMetrics records frames, transitions and subscriber activity.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Session) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithLogger replaces the session logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

// WithSensitivity sets the initial gain.
func WithSensitivity(v float64) Option {
	return func(s *Session) {
		s.pipeline.Sensitivity.Set(v)
	}
}

// New returns an inactive session over source.
func New(source analysis.FrameSource, opts ...Option) *Session {
	s := &Session{
		source:   source,
		pipeline: analysis.NewPipeline(),
		metrics:  observe.Discard(),
		log:      log.Named("session"),
		clock:    time.Now,
		interval: DefaultFrameInterval,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.publisher = publish.New(
		publish.WithFailureHandler(func(id uint64, err error) {
			s.log.Errorf("subscriber %d failed: %v", id, err)
			s.metrics.SubscriberFailed(context.Background())
		}),
		publish.WithSubscriberGauge(func(delta int) {
			s.metrics.Subscribers(context.Background(), delta)
		}),
	)
	s.publisher.Close()
	s.mood.Store(uint32(analysis.DefaultMood))
	return s
}

// Start acquires the source and opens delivery. The classifier restarts
// from calm. If the source cannot be acquired the session stays inactive
// and the wrapped acquisition error is returned.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active.Load() {
		return ErrAlreadyRunning
	}

	s.tick.Lock()
	defer s.tick.Unlock()

	if err := s.source.Initialize(); err != nil {
		if derr := s.source.Dispose(); derr != nil {
			s.log.Debugf("dispose after failed initialize: %v", derr)
		}
		return fmt.Errorf("start session: %w", err)
	}

	s.pipeline.Classifier.Reset()
	s.mood.Store(uint32(analysis.DefaultMood))
	s.stop = make(chan struct{})
	s.publisher.Open()
	s.active.Store(true)
	s.metrics.SessionActive(context.Background(), true)
	s.log.Infof("started (interval %s, sensitivity %.2f)", s.interval, s.Sensitivity())
	return nil
}

// Run ticks until ctx is done or Stop is called. It returns ErrNotRunning
// when the session has not been started.
func (s *Session) Run(ctx context.Context) error {
	s.mu.Lock()
	if !s.active.Load() {
		s.mu.Unlock()
		return ErrNotRunning
	}
	stop := s.stop
	s.mu.Unlock()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-stop:
			return nil
		case <-ticker.C:
			s.Tick()
		}
	}
}

// Tick analyses the current frame and publishes the result. It reports
// whether a result was produced; an inactive session or a source with no
// frame yields false.
func (s *Session) Tick() bool {
	if !s.active.Load() {
		return false
	}

	published := s.frame()

	// Stop may have been called from a subscriber while the lock was held.
	if !s.active.Load() && s.tick.TryLock() {
		s.disposeLocked()
		s.tick.Unlock()
	}
	return published
}

func (s *Session) frame() bool {
	s.tick.Lock()
	defer s.tick.Unlock()

	if !s.active.Load() {
		return false
	}

	frame, ok := s.source.Frame()
	if !ok {
		return false
	}

	started := time.Now()
	prev := s.pipeline.Classifier.State().Current
	result := s.pipeline.Process(frame, s.clock())

	ctx := context.Background()
	if result.Mood != prev {
		s.mood.Store(uint32(result.Mood))
		s.metrics.Transition(ctx, result.Mood)
		s.log.Debugf("mood %s -> %s", prev, result.Mood)
	}

	s.publisher.Publish(result)
	s.metrics.Frame(ctx, time.Since(started))
	return true
}

// Stop halts delivery and releases the source. No callback starts after
// Stop returns. It never waits for a frame in progress, so it is safe to
// call from inside a subscriber. Calling Stop on an inactive session does
// nothing.
func (s *Session) Stop() error {
	s.mu.Lock()
	if !s.active.Load() {
		s.mu.Unlock()
		return nil
	}
	s.publisher.Close()
	s.active.Store(false)
	close(s.stop)
	s.metrics.SessionActive(context.Background(), false)
	s.mu.Unlock()

	s.log.Infof("stopped")

	// A frame in progress disposes on its way out.
	if !s.tick.TryLock() {
		return nil
	}
	defer s.tick.Unlock()
	return s.disposeLocked()
}

func (s *Session) disposeLocked() error {
	if s.active.Load() {
		return nil // restarted in between
	}
	if err := s.source.Dispose(); err != nil {
		s.log.Warnf("dispose source: %v", err)
		return fmt.Errorf("dispose source: %w", err)
	}
	return nil
}

// Subscribe registers fn for every subsequent result.
func (s *Session) Subscribe(fn publish.Callback) publish.Unsubscribe {
	return s.publisher.Subscribe(fn)
}

// Subscribers returns the number of registered callbacks.
func (s *Session) Subscribers() int {
	return s.publisher.Len()
}

// SetSensitivity stores v clamped to [0,1]; it applies from the next frame.
func (s *Session) SetSensitivity(v float64) {
	s.pipeline.Sensitivity.Set(v)
}

// Sensitivity returns the current gain.
func (s *Session) Sensitivity() float64 {
	return s.pipeline.Sensitivity.Get()
}

// Active reports whether the session is running.
func (s *Session) Active() bool {
	return s.active.Load()
}

// Mood returns the most recently committed mood.
func (s *Session) Mood() analysis.Mood {
	return analysis.Mood(s.mood.Load())
}
