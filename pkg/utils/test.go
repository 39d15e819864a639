// Package utils holds signal and frame fixtures shared by package tests.
package utils

import (
	"math"
	"sync"
)

// MockTransport implements the transport interface for testing. It keeps
// every payload it was handed, in order.
type MockTransport struct {
	mu       sync.Mutex
	Sent     []any
	SendErr  error
	Closed   int
	CloseErr error
}

// Send stores the data for later inspection instead of transmitting.
func (m *MockTransport) Send(data any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendErr != nil {
		return m.SendErr
	}
	m.Sent = append(m.Sent, data)
	return nil
}

// Close counts calls and returns CloseErr.
func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed++
	return m.CloseErr
}

// Messages returns a copy of everything sent so far.
func (m *MockTransport) Messages() []any {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]any, len(m.Sent))
	copy(out, m.Sent)
	return out
}

// GenerateSineWave returns size samples of a sine at frequency Hz with the
// given peak amplitude in [-1,1].
func GenerateSineWave(size int, sampleRate, frequency, amplitude float64) []float64 {
	buffer := make([]float64, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = math.Sin(2*math.Pi*frequency*t) * amplitude
	}
	return buffer
}

// GenerateComplexWave returns a 440 Hz fundamental plus two harmonics.
func GenerateComplexWave(size int, sampleRate float64) []float64 {
	buffer := make([]float64, size)
	for i := range buffer {
		tm := float64(i) / sampleRate
		buffer[i] = math.Sin(2*math.Pi*440*tm)*0.5 +
			math.Sin(2*math.Pi*880*tm)*0.3 +
			math.Sin(2*math.Pi*1320*tm)*0.2
	}
	return buffer
}

// ConstantBins returns n bins all set to value.
func ConstantBins(n int, value uint8) []uint8 {
	bins := make([]uint8, n)
	for i := range bins {
		bins[i] = value
	}
	return bins
}

// HalfBins returns n bins where the lower half [0, n/2) is 255 and the rest 0.
func HalfBins(n int) []uint8 {
	bins := make([]uint8, n)
	for i := 0; i < n/2; i++ {
		bins[i] = 255
	}
	return bins
}

// SpikeBins returns n bins that are zero except for value at each index.
func SpikeBins(n int, value uint8, at ...int) []uint8 {
	bins := make([]uint8, n)
	for _, i := range at {
		if i >= 0 && i < n {
			bins[i] = value
		}
	}
	return bins
}

// FindPeakBin returns the index of the largest magnitude in
// [startBin, endBin], keeping the first on ties.
func FindPeakBin(magnitudes []uint8, startBin, endBin int) int {
	if len(magnitudes) == 0 {
		return 0
	}

	if startBin < 0 {
		startBin = 0
	}

	if endBin >= len(magnitudes) {
		endBin = len(magnitudes) - 1
	}

	peakBin := startBin
	peakValue := magnitudes[startBin]

	for bin := startBin + 1; bin <= endBin; bin++ {
		if magnitudes[bin] > peakValue {
			peakValue = magnitudes[bin]
			peakBin = bin
		}
	}

	return peakBin
}

// SliceSource is a scripted frame source. Each Frame call returns the next
// entry; nil entries report "no frame yet". After the script runs out the
// last entry repeats.
type SliceSource struct {
	mu         sync.Mutex
	Frames     [][]uint8
	SampleRate float64
	Size       int
	InitErr    error

	next      int
	Inits     int
	Disposals int
	Pulls     int
}

// Initialize records the call and returns InitErr.
func (s *SliceSource) Initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Inits++
	return s.InitErr
}

// Next returns the next scripted bins and whether they are present.
func (s *SliceSource) Next() ([]uint8, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Pulls++
	if len(s.Frames) == 0 {
		return nil, false
	}
	i := s.next
	if i >= len(s.Frames) {
		i = len(s.Frames) - 1
	} else {
		s.next++
	}
	bins := s.Frames[i]
	return bins, bins != nil
}

// Dispose counts calls.
func (s *SliceSource) Dispose() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Disposals++
	return nil
}
