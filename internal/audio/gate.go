// SPDX-License-Identifier: MIT
package audio

import (
	"math"
	"sync/atomic"
)

// Gate is a peak-detecting noise gate. A closed gate turns the captured
// window into silence so background hiss does not drive the mood.
type Gate struct {
	enabled   atomic.Bool
	threshold atomic.Int32 // absolute amplitude (0-2147483647)
}

// NewGate returns an enabled gate with the given threshold.
func NewGate(threshold float64) *Gate {
	g := &Gate{}
	g.Enable()
	g.SetThreshold(threshold)
	return g
}

func (g *Gate) Enable() {
	g.enabled.Store(true)
}

func (g *Gate) Disable() {
	g.enabled.Store(false)
}

func (g *Gate) Enabled() bool {
	return g.enabled.Load()
}

// SetThreshold adjusts the gate threshold.
// The value is in the range of 0.0-1.0 where 0=always open, 1=always closed.
func (g *Gate) SetThreshold(threshold float64) {
	if threshold < 0.0 || math.IsNaN(threshold) {
		threshold = 0.0
	}
	if threshold > 1.0 {
		threshold = 1.0
	}
	g.threshold.Store(int32(threshold * float64(math.MaxInt32)))
}

// Threshold returns the current threshold as a fraction of full scale.
func (g *Gate) Threshold() float64 {
	return float64(g.threshold.Load()) / float64(math.MaxInt32)
}

// Open reports whether buffer passes the gate. A disabled gate is always
// open.
func (g *Gate) Open(buffer []int32) bool {
	if !g.enabled.Load() {
		return true
	}
	return peakAmplitude(buffer) > g.threshold.Load()
}

// peakAmplitude returns max |sample| without branching per sample.
// math.MinInt32 saturates to math.MaxInt32.
func peakAmplitude(buffer []int32) int32 {
	var maxAmplitude int32
	for _, sample := range buffer {
		mask := sample >> 31
		amplitude := (sample ^ mask) - mask
		amplitude ^= amplitude >> 31 // abs(MinInt32) wraps negative
		diff := amplitude - maxAmplitude
		maxAmplitude += (diff & (diff >> 31)) ^ diff
	}
	return maxAmplitude
}
