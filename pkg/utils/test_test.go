// SPDX-License-Identifier: MIT
package utils

import (
	"errors"
	"math"
	"testing"
)

func TestMockTransport(t *testing.T) {
	mt := &MockTransport{}
	for _, v := range []any{1, "two", 3.0} {
		if err := mt.Send(v); err != nil {
			t.Fatalf("Send(%v) error = %v", v, err)
		}
	}
	if got := len(mt.Messages()); got != 3 {
		t.Errorf("Messages() len = %d, want 3", got)
	}

	mt.SendErr = errors.New("boom")
	if err := mt.Send(4); err == nil {
		t.Error("expected SendErr to be returned")
	}
	if got := len(mt.Messages()); got != 3 {
		t.Errorf("failed send must not be recorded, len = %d", got)
	}

	_ = mt.Close()
	_ = mt.Close()
	if mt.Closed != 2 {
		t.Errorf("Closed = %d, want 2", mt.Closed)
	}
}

func TestGenerateSineWave(t *testing.T) {
	tests := []struct {
		name       string
		size       int
		sampleRate float64
		frequency  float64
	}{
		{"A4 Note", 1024, 44100, 440.0},
		{"Middle C", 1024, 44100, 261.63},
		{"Low Sample Rate", 1024, 8000, 440.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := GenerateSineWave(tt.size, tt.sampleRate, tt.frequency, 0.5)
			if len(result) != tt.size {
				t.Fatalf("buffer size = %d, want %d", len(result), tt.size)
			}

			crossings := 0
			for i := 1; i < len(result); i++ {
				if (result[i-1] < 0) != (result[i] < 0) {
					crossings++
				}
				if math.Abs(result[i]) > 0.5+1e-9 {
					t.Fatalf("sample %d = %f exceeds amplitude", i, result[i])
				}
			}

			// Two crossings per cycle.
			expected := 2 * float64(tt.size) * tt.frequency / tt.sampleRate
			if math.Abs(float64(crossings)-expected) > 2 {
				t.Errorf("crossings = %d, want about %.1f", crossings, expected)
			}
		})
	}
}

func TestGenerateComplexWave(t *testing.T) {
	result := GenerateComplexWave(512, 44100)
	hasNonZero := false
	for _, v := range result {
		if v != 0 {
			hasNonZero = true
			break
		}
	}
	if !hasNonZero {
		t.Error("GenerateComplexWave() produced all zeros")
	}
}

func TestBinBuilders(t *testing.T) {
	half := HalfBins(8)
	want := []uint8{255, 255, 255, 255, 0, 0, 0, 0}
	for i := range want {
		if half[i] != want[i] {
			t.Fatalf("HalfBins(8) = %v, want %v", half, want)
		}
	}

	spike := SpikeBins(6, 200, 2, 4, 99)
	if spike[2] != 200 || spike[4] != 200 || spike[0] != 0 {
		t.Errorf("SpikeBins = %v", spike)
	}

	for _, v := range ConstantBins(5, 7) {
		if v != 7 {
			t.Fatalf("ConstantBins value = %d, want 7", v)
		}
	}
}

func TestFindPeakBin(t *testing.T) {
	tests := []struct {
		name       string
		magnitudes []uint8
		start, end int
		want       int
	}{
		{"Empty", nil, 0, 10, 0},
		{"Single spike", SpikeBins(16, 90, 5), 0, 15, 5},
		{"Tie keeps first", SpikeBins(16, 90, 3, 9), 0, 15, 3},
		{"Restricted range", SpikeBins(16, 90, 3, 9), 4, 15, 9},
		{"Clamped range", SpikeBins(4, 1, 3), -5, 50, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FindPeakBin(tt.magnitudes, tt.start, tt.end); got != tt.want {
				t.Errorf("FindPeakBin() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSliceSourceScript(t *testing.T) {
	src := &SliceSource{Frames: [][]uint8{nil, {1}, {2}}}

	if _, ok := src.Next(); ok {
		t.Error("first scripted entry is nil and must report no frame")
	}
	if bins, ok := src.Next(); !ok || bins[0] != 1 {
		t.Errorf("second entry = %v, %v", bins, ok)
	}
	for range 3 {
		if bins, ok := src.Next(); !ok || bins[0] != 2 {
			t.Errorf("last entry must repeat, got %v, %v", bins, ok)
		}
	}
	if src.Pulls != 5 {
		t.Errorf("Pulls = %d, want 5", src.Pulls)
	}
}
