// SPDX-License-Identifier: MIT
package analysis

import (
	"math"
	"testing"

	"moodscope/pkg/utils"
)

func TestDominantFrequency(t *testing.T) {
	const (
		n  = 1024
		sr = 44100.0
	)

	tests := []struct {
		name  string
		frame *SpectralFrame
		want  float64
	}{
		{"No frame yet", nil, 0},
		{"Empty bins", &SpectralFrame{SampleRate: sr, TransformSize: n}, 0},
		{"Missing transform size", &SpectralFrame{Bins: utils.SpikeBins(n, 255, 10), SampleRate: sr}, 0},
		{"Spike at k", &SpectralFrame{Bins: utils.SpikeBins(n, 180, 100), SampleRate: sr, TransformSize: n}, 100 * sr / (2 * n)},
		{"Tie keeps lowest index", &SpectralFrame{Bins: utils.SpikeBins(n, 180, 300, 40, 700), SampleRate: sr, TransformSize: n}, 40 * sr / (2 * n)},
		{"Silent frame reports bin zero", &SpectralFrame{Bins: make([]uint8, n), SampleRate: sr, TransformSize: n}, 0},
		{"Different sample rate", &SpectralFrame{Bins: utils.SpikeBins(256, 9, 64), SampleRate: 48000, TransformSize: 256}, 64 * 48000.0 / 512},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DominantFrequency(tt.frame); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("DominantFrequency() = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestPeakBinLinearScan(t *testing.T) {
	bins := []uint8{3, 9, 9, 1, 9}
	if got := PeakBin(bins); got != 1 {
		t.Errorf("PeakBin = %d, want 1", got)
	}
	if got := PeakBin(nil); got != 0 {
		t.Errorf("PeakBin(nil) = %d, want 0", got)
	}
}
