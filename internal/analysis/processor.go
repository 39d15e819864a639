// SPDX-License-Identifier: MIT
package analysis

import "time"

// FrameSource is the capture and transform collaborator the analysis loop
// pulls from. Implementations own the device (or file) and the transform.
type FrameSource interface {
	// Initialize acquires the audio source and transform resources. A non-nil
	// error describes why acquisition failed (permission denied, no device).
	Initialize() error

	// Frame returns the current spectral snapshot, or false when nothing is
	// available yet. The returned Bins must not be modified by the caller and
	// are only valid until the next call.
	Frame() (SpectralFrame, bool)

	// Dispose releases the source and transform. It must be safe to call more
	// than once and before Initialize.
	Dispose() error
}

// Pipeline bundles the per-frame stages: extraction with the current gain,
// classification against the injected timestamp, and dominant frequency
// estimation. It holds no frame data between calls.
type Pipeline struct {
	Sensitivity *Sensitivity
	Classifier  *Classifier
}

// NewPipeline returns a pipeline at the default sensitivity and mood.
func NewPipeline() *Pipeline {
	return &Pipeline{
		Sensitivity: NewSensitivity(DefaultSensitivity),
		Classifier:  NewClassifier(),
	}
}

// Process runs one frame through every stage. Confidence is fixed at 1.0.
func (p *Pipeline) Process(frame SpectralFrame, now time.Time) AnalysisResult {
	features := Extract(frame, p.Sensitivity.Get())
	mood, confidence := p.Classifier.Classify(features, now)
	return AnalysisResult{
		Features:          features,
		Mood:              mood,
		MoodConfidence:    confidence,
		DominantFrequency: DominantFrequency(&frame),
	}
}
