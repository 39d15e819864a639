// SPDX-License-Identifier: MIT
/*
Package publish fans analysis results out to in-process subscribers.

The registry is an arena of id-tagged slots kept in subscription order.
Publish copies the live callbacks into a snapshot under the lock and delivers
outside it, so callbacks may subscribe or unsubscribe (themselves or others)
while a frame is being delivered. A panicking callback is recovered and
reported; delivery continues with the next one.
*/
package publish

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"moodscope/internal/analysis"
)

// Callback receives one result per frame.
type Callback func(analysis.AnalysisResult)

// Unsubscribe removes the callback it was returned for. Calling it more than
// once has no further effect.
type Unsubscribe func()

// FailureHandler is told about every callback that panicked.
type FailureHandler func(id uint64, err error)

type slot struct {
	id   uint64
	fn   Callback
	live bool
}

// Publisher is safe for concurrent Subscribe, Unsubscribe and Publish, but
// results are delivered in the order Publish is called, so a single
// goroutine should drive it.
type Publisher struct {
	mu     sync.Mutex
	slots  []slot
	nextID uint64
	live   int

	closed    atomic.Bool
	onFailure FailureHandler
	onChange  func(delta int)
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithFailureHandler installs a handler invoked for each recovered panic.
func WithFailureHandler(h FailureHandler) Option {
	return func(p *Publisher) {
		p.onFailure = h
	}
}

// WithSubscriberGauge reports every change in the number of live
// subscribers as +1 or -1.
func WithSubscriberGauge(fn func(delta int)) Option {
	return func(p *Publisher) {
		p.onChange = fn
	}
}

// New returns an open, empty Publisher.
func New(opts ...Option) *Publisher {
	p := &Publisher{}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Subscribe appends fn to the registry. A nil fn is ignored and the returned
// Unsubscribe is a no-op.
func (p *Publisher) Subscribe(fn Callback) Unsubscribe {
	if fn == nil {
		return func() {}
	}

	p.mu.Lock()
	p.nextID++
	id := p.nextID
	p.slots = append(p.slots, slot{id: id, fn: fn, live: true})
	p.live++
	p.mu.Unlock()

	p.changed(+1)

	var once sync.Once
	return func() {
		once.Do(func() { p.remove(id) })
	}
}

// remove marks the slot dead and compacts the arena once dead slots
// outnumber live ones. Compaction keeps subscription order, so ids stay
// sorted and lookups can binary search.
func (p *Publisher) remove(id uint64) {
	p.mu.Lock()
	i := sort.Search(len(p.slots), func(i int) bool { return p.slots[i].id >= id })
	if i == len(p.slots) || p.slots[i].id != id || !p.slots[i].live {
		p.mu.Unlock()
		return
	}
	p.slots[i].live = false
	p.slots[i].fn = nil
	p.live--
	if dead := len(p.slots) - p.live; dead > p.live {
		p.compact()
	}
	p.mu.Unlock()

	p.changed(-1)
}

func (p *Publisher) compact() {
	kept := p.slots[:0]
	for _, s := range p.slots {
		if s.live {
			kept = append(kept, s)
		}
	}
	for i := len(kept); i < len(p.slots); i++ {
		p.slots[i] = slot{}
	}
	p.slots = kept
}

// Len returns the number of live subscribers.
func (p *Publisher) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.live
}

// Publish delivers result to every callback registered when the call began,
// in subscription order. It returns the number of callbacks that completed
// without panicking. A closed publisher delivers nothing, and closing it
// from inside a callback stops delivery to the callbacks after it.
func (p *Publisher) Publish(result analysis.AnalysisResult) int {
	if p.closed.Load() {
		return 0
	}

	snapshot := p.snapshot()
	delivered := 0
	for _, s := range snapshot {
		if p.closed.Load() {
			break
		}
		if p.deliver(s, result) {
			delivered++
		}
	}
	return delivered
}

func (p *Publisher) snapshot() []slot {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]slot, 0, p.live)
	for _, s := range p.slots {
		if s.live {
			out = append(out, s)
		}
	}
	return out
}

func (p *Publisher) deliver(s slot, result analysis.AnalysisResult) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			if p.onFailure != nil {
				p.onFailure(s.id, fmt.Errorf("subscriber %d panicked: %v", s.id, r))
			}
		}
	}()
	s.fn(result)
	return true
}

// Close stops all further delivery until Open is called. Subscriptions are
// kept.
func (p *Publisher) Close() {
	p.closed.Store(true)
}

// Open re-enables delivery after Close.
func (p *Publisher) Open() {
	p.closed.Store(false)
}

// Closed reports whether delivery is currently disabled.
func (p *Publisher) Closed() bool {
	return p.closed.Load()
}

func (p *Publisher) changed(delta int) {
	if p.onChange != nil {
		p.onChange(delta)
	}
}
