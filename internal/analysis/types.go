// SPDX-License-Identifier: MIT
package analysis

import "fmt"

// SpectralFrame is one magnitude-per-bin snapshot handed over by a
// FrameSource. Bins holds byte magnitudes in [0,255]; its length is fixed for
// the lifetime of a source.
type SpectralFrame struct {
	Bins       []uint8
	SampleRate float64

	// TransformSize is the number of bins the transform produced, which is
	// half the FFT length (fft_size/2). It is not the FFT length itself.
	// DominantFrequency divides by 2*TransformSize so that bin k maps to
	// k*SampleRate/fft_size, the bin's centre frequency.
	TransformSize int
}

// FeatureSet holds the six per-frame descriptors. Values are created fresh
// for every frame and passed by value.
type FeatureSet struct {
	Energy           float64 `json:"energy"`
	RMS              float64 `json:"rms"`
	ZCR              float64 `json:"zcr"`
	SpectralCentroid float64 `json:"spectralCentroid"`
	SpectralFlatness float64 `json:"spectralFlatness"`
	SpectralRolloff  float64 `json:"spectralRolloff"`
}

// Mood is the discrete label assigned to a frame.
type Mood uint8

const (
	Calm Mood = iota
	Happy
	Energetic
	Melancholic
)

// DefaultMood is the mood a classifier starts from after a reset.
const DefaultMood = Calm

// String returns the lower-case name used on the wire.
func (m Mood) String() string {
	switch m {
	case Calm:
		return "calm"
	case Happy:
		return "happy"
	case Energetic:
		return "energetic"
	case Melancholic:
		return "melancholic"
	default:
		return "unknown"
	}
}

// ParseMood converts a wire name back into a Mood.
func ParseMood(name string) (Mood, error) {
	switch name {
	case "calm":
		return Calm, nil
	case "happy":
		return Happy, nil
	case "energetic":
		return Energetic, nil
	case "melancholic":
		return Melancholic, nil
	default:
		return DefaultMood, fmt.Errorf("unknown mood %q", name)
	}
}

// MarshalText implements encoding.TextMarshaler so moods serialize by name.
func (m Mood) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mood) UnmarshalText(text []byte) error {
	parsed, err := ParseMood(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// AnalysisResult is delivered to subscribers once per analysed frame.
type AnalysisResult struct {
	Features          FeatureSet `json:"features"`
	Mood              Mood       `json:"mood"`
	MoodConfidence    float64    `json:"moodConfidence"`
	DominantFrequency float64    `json:"dominantFrequency"`
}
