// SPDX-License-Identifier: MIT

// Package observe holds the OpenTelemetry instruments recorded by the
// analysis session and the provider that exports them to Prometheus.
//
// Tests should build Metrics over their own MeterProvider with NewMetrics;
// Discard returns instruments bound to a no-op provider.
package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"moodscope/internal/analysis"
)

// meterName is the instrumentation scope for all moodscope metrics.
const meterName = "moodscope"

// frameBuckets are histogram boundaries in seconds. A frame normally takes
// well under a millisecond.
var frameBuckets = []float64{
	0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025,
}

// Metrics holds every instrument. The OTel types handle their own
// synchronisation.
type Metrics struct {
	// FramesAnalysed counts frames that produced a published result.
	FramesAnalysed metric.Int64Counter

	// MoodTransitions counts committed mood changes, by the mood entered.
	MoodTransitions metric.Int64Counter

	// SubscriberFailures counts callbacks that panicked.
	SubscriberFailures metric.Int64Counter

	// FrameDuration tracks time from frame pull to last delivery.
	FrameDuration metric.Float64Histogram

	ActiveSubscribers metric.Int64UpDownCounter
	ActiveSessions    metric.Int64UpDownCounter
}

// NewMetrics creates all instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.FramesAnalysed, err = m.Int64Counter("moodscope.frames.analysed",
		metric.WithDescription("Frames analysed and published."),
	); err != nil {
		return nil, err
	}
	if met.MoodTransitions, err = m.Int64Counter("moodscope.mood.transitions",
		metric.WithDescription("Committed mood changes by the mood entered."),
	); err != nil {
		return nil, err
	}
	if met.SubscriberFailures, err = m.Int64Counter("moodscope.subscriber.failures",
		metric.WithDescription("Subscriber callbacks that failed during delivery."),
	); err != nil {
		return nil, err
	}
	if met.FrameDuration, err = m.Float64Histogram("moodscope.frame.duration",
		metric.WithDescription("Time to analyse and deliver one frame."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(frameBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ActiveSubscribers, err = m.Int64UpDownCounter("moodscope.active_subscribers",
		metric.WithDescription("Registered result subscribers."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("moodscope.active_sessions",
		metric.WithDescription("Sessions currently analysing."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// Discard returns Metrics that record nothing.
func Discard() *Metrics {
	met, err := NewMetrics(noop.NewMeterProvider())
	if err != nil {
		panic("observe: noop metrics: " + err.Error())
	}
	return met
}

// Frame records one analysed frame.
func (m *Metrics) Frame(ctx context.Context, took time.Duration) {
	m.FramesAnalysed.Add(ctx, 1)
	m.FrameDuration.Record(ctx, took.Seconds())
}

// Transition records entry into mood.
func (m *Metrics) Transition(ctx context.Context, mood analysis.Mood) {
	m.MoodTransitions.Add(ctx, 1, metric.WithAttributes(attribute.String("mood", mood.String())))
}

// SubscriberFailed records one failed delivery.
func (m *Metrics) SubscriberFailed(ctx context.Context) {
	m.SubscriberFailures.Add(ctx, 1)
}

// Subscribers adjusts the subscriber gauge by delta.
func (m *Metrics) Subscribers(ctx context.Context, delta int) {
	m.ActiveSubscribers.Add(ctx, int64(delta))
}

// SessionActive adjusts the session gauge.
func (m *Metrics) SessionActive(ctx context.Context, active bool) {
	if active {
		m.ActiveSessions.Add(ctx, 1)
		return
	}
	m.ActiveSessions.Add(ctx, -1)
}
