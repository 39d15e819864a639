// SPDX-License-Identifier: MIT
package publish

import (
	"sync"
	"testing"

	"moodscope/internal/analysis"
)

func result(energy float64) analysis.AnalysisResult {
	return analysis.AnalysisResult{Features: analysis.FeatureSet{Energy: energy}, MoodConfidence: 1}
}

func TestPublishDeliversInSubscriptionOrder(t *testing.T) {
	p := New()
	var order []int
	for i := range 4 {
		p.Subscribe(func(analysis.AnalysisResult) { order = append(order, i) })
	}

	if got := p.Publish(result(0.5)); got != 4 {
		t.Fatalf("Publish delivered to %d, want 4", got)
	}
	for i, v := range order {
		if v != i {
			t.Fatalf("delivery order = %v, want 0..3", order)
		}
	}
}

func TestPublishEveryoneSeesSameValue(t *testing.T) {
	p := New()
	var seen []float64
	for range 3 {
		p.Subscribe(func(r analysis.AnalysisResult) { seen = append(seen, r.Features.Energy) })
	}
	p.Publish(result(0.25))

	for _, e := range seen {
		if e != 0.25 {
			t.Errorf("subscriber saw energy %f, want 0.25", e)
		}
	}
}

func TestPublishWithNoSubscribers(t *testing.T) {
	p := New()
	if got := p.Publish(result(1)); got != 0 {
		t.Errorf("Publish() = %d, want 0", got)
	}
}

func TestPanickingSubscriberIsIsolated(t *testing.T) {
	var failures []uint64
	p := New(WithFailureHandler(func(id uint64, err error) {
		if err == nil {
			t.Error("failure handler called with nil error")
		}
		failures = append(failures, id)
	}))

	calls := 0
	p.Subscribe(func(analysis.AnalysisResult) { calls++ })
	p.Subscribe(func(analysis.AnalysisResult) { panic("consumer bug") })
	p.Subscribe(func(analysis.AnalysisResult) { calls++ })

	if got := p.Publish(result(0.1)); got != 2 {
		t.Errorf("Publish() = %d, want 2 successful deliveries", got)
	}
	if calls != 2 {
		t.Errorf("healthy subscribers ran %d times, want 2", calls)
	}
	if len(failures) != 1 || failures[0] != 2 {
		t.Errorf("failures = %v, want [2]", failures)
	}
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	p := New()
	a, b := 0, 0
	unsubA := p.Subscribe(func(analysis.AnalysisResult) { a++ })
	p.Subscribe(func(analysis.AnalysisResult) { b++ })

	unsubA()
	unsubA()
	p.Publish(result(0))

	if a != 0 || b != 1 {
		t.Errorf("a=%d b=%d, want a=0 b=1", a, b)
	}
	if p.Len() != 1 {
		t.Errorf("Len() = %d, want 1", p.Len())
	}
}

func TestSameCallbackSubscribedTwice(t *testing.T) {
	p := New()
	calls := 0
	fn := func(analysis.AnalysisResult) { calls++ }
	first := p.Subscribe(fn)
	p.Subscribe(fn)

	first()
	p.Publish(result(0))
	if calls != 1 {
		t.Errorf("calls = %d, want exactly the second registration to remain", calls)
	}
}

func TestUnsubscribeFromWithinCallback(t *testing.T) {
	p := New()
	selfCalls, laterCalls := 0, 0

	var unsubSelf Unsubscribe
	unsubSelf = p.Subscribe(func(analysis.AnalysisResult) {
		selfCalls++
		unsubSelf()
	})
	p.Subscribe(func(analysis.AnalysisResult) { laterCalls++ })

	p.Publish(result(0))
	p.Publish(result(0))

	if selfCalls != 1 {
		t.Errorf("self-removing subscriber ran %d times, want 1", selfCalls)
	}
	if laterCalls != 2 {
		t.Errorf("later subscriber ran %d times, want 2", laterCalls)
	}
}

func TestRemovingAnotherDuringDeliveryTakesEffectNextFrame(t *testing.T) {
	p := New()
	victimCalls := 0

	var unsubVictim Unsubscribe
	p.Subscribe(func(analysis.AnalysisResult) { unsubVictim() })
	unsubVictim = p.Subscribe(func(analysis.AnalysisResult) { victimCalls++ })

	p.Publish(result(0))
	p.Publish(result(0))

	// The first frame was snapshotted before the removal.
	if victimCalls != 1 {
		t.Errorf("victim ran %d times, want 1", victimCalls)
	}
}

func TestSubscribeDuringDeliveryStartsNextFrame(t *testing.T) {
	p := New()
	lateCalls := 0
	added := false
	p.Subscribe(func(analysis.AnalysisResult) {
		if !added {
			added = true
			p.Subscribe(func(analysis.AnalysisResult) { lateCalls++ })
		}
	})

	p.Publish(result(0))
	if lateCalls != 0 {
		t.Errorf("subscriber added mid-delivery ran on the same frame")
	}
	p.Publish(result(0))
	if lateCalls != 1 {
		t.Errorf("lateCalls = %d, want 1", lateCalls)
	}
}

func TestCompactionKeepsOrderAndHandles(t *testing.T) {
	p := New()
	var order []int
	unsubs := make([]Unsubscribe, 10)
	for i := range unsubs {
		unsubs[i] = p.Subscribe(func(analysis.AnalysisResult) { order = append(order, i) })
	}

	// Remove enough to force compaction, then use stale and live handles.
	for _, i := range []int{0, 2, 4, 6, 8, 1} {
		unsubs[i]()
	}
	unsubs[0]()
	unsubs[7]()

	p.Publish(result(0))
	want := []int{3, 5, 9}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestCloseAndOpen(t *testing.T) {
	p := New()
	calls := 0
	p.Subscribe(func(analysis.AnalysisResult) { calls++ })

	p.Close()
	if !p.Closed() {
		t.Error("Closed() = false after Close")
	}
	if got := p.Publish(result(0)); got != 0 || calls != 0 {
		t.Errorf("closed publisher delivered %d", got)
	}

	p.Open()
	p.Publish(result(0))
	if calls != 1 {
		t.Errorf("calls = %d after reopen, want 1", calls)
	}
}

func TestCloseFromWithinCallbackStopsRemainingDeliveries(t *testing.T) {
	p := New()
	after := 0
	p.Subscribe(func(analysis.AnalysisResult) { p.Close() })
	p.Subscribe(func(analysis.AnalysisResult) { after++ })

	if got := p.Publish(result(0)); got != 1 {
		t.Errorf("Publish() = %d, want 1", got)
	}
	if after != 0 {
		t.Errorf("callback ran after Close")
	}
}

func TestNilCallback(t *testing.T) {
	p := New()
	unsub := p.Subscribe(nil)
	unsub()
	if p.Len() != 0 {
		t.Errorf("Len() = %d, want 0", p.Len())
	}
}

func TestSubscriberGauge(t *testing.T) {
	level := 0
	p := New(WithSubscriberGauge(func(delta int) { level += delta }))

	a := p.Subscribe(func(analysis.AnalysisResult) {})
	b := p.Subscribe(func(analysis.AnalysisResult) {})
	a()
	a()
	if level != 1 {
		t.Errorf("gauge = %d, want 1", level)
	}
	b()
	if level != 0 {
		t.Errorf("gauge = %d, want 0", level)
	}
}

func TestConcurrentSubscribeAndPublish(t *testing.T) {
	p := New()
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				unsub := p.Subscribe(func(analysis.AnalysisResult) {})
				unsub()
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for range 200 {
			p.Publish(result(0.3))
		}
	}()

	wg.Wait()
	<-done
	if p.Len() != 0 {
		t.Errorf("Len() = %d, want 0", p.Len())
	}
}
