// SPDX-License-Identifier: MIT
package analysis

import "time"

// Classification breakpoints.
const (
	silenceEnergy = 0.03

	energeticEnergy = 0.3
	energeticZCR    = 0.2

	happyEnergy   = 0.2
	happyCentroid = 0.3

	melancholicFlatness = 0.15
	melancholicEnergy   = 0.15

	// DebounceInterval is the dwell time a mood must hold before a different
	// candidate may replace it.
	DebounceInterval = 100 * time.Millisecond

	// fixedConfidence is reported for every frame until graded confidence
	// exists.
	fixedConfidence = 1.0
)

// MoodState is the classifier's persistent state.
type MoodState struct {
	Current        Mood
	LastTransition time.Time
}

// Classifier is a Moore machine over the four moods. The state changes only
// through Classify and Reset, and only from the frame loop.
type Classifier struct {
	state    MoodState
	debounce time.Duration
}

// NewClassifier returns a classifier in the default mood.
func NewClassifier() *Classifier {
	return &Classifier{
		state:    MoodState{Current: DefaultMood},
		debounce: DebounceInterval,
	}
}

// Reset returns to the default mood with no recorded transition, so the
// first differing candidate after a reset commits immediately.
func (c *Classifier) Reset() {
	c.state = MoodState{Current: DefaultMood}
}

// State returns a copy of the current state.
func (c *Classifier) State() MoodState {
	return c.state
}

// Classify maps the features to a mood. A candidate that differs from the
// current mood is committed only when more than the debounce interval has
// elapsed since the last committed transition; now is supplied by the caller.
func (c *Classifier) Classify(f FeatureSet, now time.Time) (Mood, float64) {
	candidate := Candidate(f, c.state.Current)
	if candidate != c.state.Current && c.elapsed(now) > c.debounce {
		c.state.Current = candidate
		c.state.LastTransition = now
	}
	return c.state.Current, fixedConfidence
}

// elapsed treats a zero LastTransition as "long ago". A clock that moves
// backwards yields a negative duration, which never passes the debounce, so
// LastTransition cannot decrease.
func (c *Classifier) elapsed(now time.Time) time.Duration {
	if c.state.LastTransition.IsZero() {
		return c.debounce + 1
	}
	return now.Sub(c.state.LastTransition)
}

// Candidate applies the transition rules in priority order without any
// debounce. Near-silent frames keep the current mood.
func Candidate(f FeatureSet, current Mood) Mood {
	switch {
	case f.Energy < silenceEnergy:
		return current
	case f.Energy > energeticEnergy && f.ZCR > energeticZCR:
		return Energetic
	case f.Energy > happyEnergy && f.SpectralCentroid > happyCentroid:
		return Happy
	case f.SpectralFlatness > melancholicFlatness && f.Energy < melancholicEnergy:
		return Melancholic
	default:
		return Calm
	}
}
