// SPDX-License-Identifier: MIT
package analysis

// DominantFrequency returns the frequency in Hz of the loudest bin, using
// maxBin × sampleRate / (transformSize × 2). The scan keeps the first strict
// improvement, so the lowest index wins ties. A nil or empty frame, or one
// without a transform size, yields 0.
func DominantFrequency(frame *SpectralFrame) float64 {
	if frame == nil || len(frame.Bins) == 0 || frame.TransformSize <= 0 {
		return 0
	}
	return float64(PeakBin(frame.Bins)) * frame.SampleRate / (float64(frame.TransformSize) * 2)
}

// PeakBin returns the index of the first maximum in bins, or 0 when empty.
func PeakBin(bins []uint8) int {
	peak := 0
	for i := 1; i < len(bins); i++ {
		if bins[i] > bins[peak] {
			peak = i
		}
	}
	return peak
}
