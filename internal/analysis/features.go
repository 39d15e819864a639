// SPDX-License-Identifier: MIT
package analysis

import "math"

// Fixed extraction constants. They are tuned empirically against the byte
// spectra produced by the capture analyser and are not runtime settings.
const (
	// NoiseFloor is subtracted from the mean normalized magnitude before the
	// energy gain is applied.
	NoiseFloor = 0.03

	// energyGain scales the floor-adjusted mean before sensitivity.
	energyGain = 2.0

	// zeroCrossingLevel is the raw byte value treated as the zero line.
	zeroCrossingLevel = 128

	// flatnessMinLevel excludes near-empty bins from the flatness means.
	flatnessMinLevel = 0.01

	// rolloffFraction is the share of total magnitude below the rolloff bin.
	rolloffFraction = 0.85

	byteScale = 1.0 / 255.0
)

// Extract computes the six descriptors for one frame at gain g. Every
// feature is a single pass over the bins, so the cost is O(N) with no
// allocations. Silent frames produce zeros rather than NaN.
func Extract(frame SpectralFrame, gain float64) FeatureSet {
	bins := frame.Bins
	n := len(bins)
	if n == 0 {
		return FeatureSet{}
	}
	invN := 1.0 / float64(n)

	var (
		sum         float64 // Σ a_i
		sumSquares  float64 // Σ a_i²
		weightedSum float64 // Σ i·a_i
		rawTotal    int     // Σ m_i

		flatCount  int
		flatSum    float64
		flatLogSum float64

		crossings int
		prevSign  = sign(int(bins[0]) - zeroCrossingLevel)
	)

	for i, m := range bins {
		a := float64(m) * byteScale
		sum += a
		sumSquares += a * a
		weightedSum += float64(i) * a
		rawTotal += int(m)

		if a > flatnessMinLevel {
			flatCount++
			flatSum += a
			flatLogSum += math.Log(a)
		}

		if i > 0 {
			s := sign(int(m) - zeroCrossingLevel)
			if s != prevSign {
				crossings++
			}
			prevSign = s
		}
	}

	mean := sum * invN

	features := FeatureSet{
		Energy: clamp01(math.Max(0, mean-NoiseFloor) * energyGain * gain),
		RMS:    math.Sqrt(sumSquares * invN),
		ZCR:    float64(crossings) * invN,
	}

	if sum > 0 {
		features.SpectralCentroid = (weightedSum / sum) * invN
	}

	if flatCount > 0 {
		c := float64(flatCount)
		geometric := math.Exp(flatLogSum / c)
		arithmetic := flatSum / c
		features.SpectralFlatness = geometric / arithmetic
	}

	features.SpectralRolloff = rolloff(bins, rawTotal) * invN

	return features
}

// rolloff returns the first bin index at which the running raw sum reaches
// rolloffFraction of total. A silent frame never reaches the threshold and
// reports 0.
func rolloff(bins []uint8, total int) float64 {
	if total == 0 {
		return 0
	}
	threshold := rolloffFraction * float64(total)
	cumulative := 0
	for i, m := range bins {
		cumulative += int(m)
		if float64(cumulative) >= threshold {
			return float64(i)
		}
	}
	return 0
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
