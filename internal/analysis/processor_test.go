package analysis

import (
	"testing"
	"time"

	"moodscope/pkg/utils"
)

func TestPipelineProcessHalfFrame(t *testing.T) {
	p := NewPipeline()
	p.Sensitivity.Set(1.0)

	frame := SpectralFrame{Bins: utils.HalfBins(testBins), SampleRate: 44100, TransformSize: testBins}
	result := p.Process(frame, time.Unix(0, 0))

	if !approx(result.Features.Energy, 0.94) {
		t.Errorf("Energy = %f, want 0.94", result.Features.Energy)
	}
	if result.Mood != Calm {
		t.Errorf("Mood = %v, want calm", result.Mood)
	}
	if result.MoodConfidence != 1.0 {
		t.Errorf("MoodConfidence = %f, want 1.0", result.MoodConfidence)
	}
	// Bins 0..31 tie at 255, so bin 0 wins.
	if result.DominantFrequency != 0 {
		t.Errorf("DominantFrequency = %f, want 0", result.DominantFrequency)
	}
}

func TestPipelineDefaultSensitivity(t *testing.T) {
	p := NewPipeline()
	if got := p.Sensitivity.Get(); got != DefaultSensitivity {
		t.Errorf("default sensitivity = %f, want %f", got, DefaultSensitivity)
	}
}
