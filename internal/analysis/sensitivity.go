// SPDX-License-Identifier: MIT
package analysis

import (
	"math"
	"sync/atomic"
)

// DefaultSensitivity is the gain a new session starts with.
const DefaultSensitivity = 0.5

// Sensitivity is the single global gain applied to energy. Set and Get are
// safe across goroutines; the last write wins.
type Sensitivity struct {
	bits atomic.Uint64
}

// NewSensitivity returns a control initialised to the clamped value.
func NewSensitivity(initial float64) *Sensitivity {
	s := &Sensitivity{}
	s.Set(initial)
	return s
}

// Set stores v clamped to [0,1]. NaN is stored as 0.
func (s *Sensitivity) Set(v float64) {
	if math.IsNaN(v) {
		v = 0
	}
	s.bits.Store(math.Float64bits(clamp01(v)))
}

// Get returns the current gain.
func (s *Sensitivity) Get() float64 {
	return math.Float64frombits(s.bits.Load())
}
