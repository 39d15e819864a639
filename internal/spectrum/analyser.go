// SPDX-License-Identifier: MIT
package spectrum

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"

	"moodscope/pkg/bitint"
)

const (
	DefaultSmoothing = 0.8
	DefaultMinDB     = -100.0
	DefaultMaxDB     = -30.0

	MinSize = 32
	MaxSize = 32768
)

// Config describes the transform. Zero smoothing disables averaging across
// calls.
type Config struct {
	Size      int // Samples per transform, a power of two.
	Smoothing float64
	MinDB     float64
	MaxDB     float64
	Window    WindowFunc
}

// DefaultConfig returns the analyser settings used when nothing is
// configured.
func DefaultConfig(size int) Config {
	return Config{
		Size:      size,
		Smoothing: DefaultSmoothing,
		MinDB:     DefaultMinDB,
		MaxDB:     DefaultMaxDB,
		Window:    Blackman,
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.Size < MinSize || c.Size > MaxSize || !bitint.IsPowerOfTwo(c.Size) {
		return fmt.Errorf("fft size must be a power of 2 in [%d, %d], got %d", MinSize, MaxSize, c.Size)
	}
	if c.Smoothing < 0 || c.Smoothing > 1 || math.IsNaN(c.Smoothing) {
		return fmt.Errorf("smoothing must be in [0, 1], got %f", c.Smoothing)
	}
	if !(c.MinDB < c.MaxDB) {
		return fmt.Errorf("min dB (%.1f) must be below max dB (%.1f)", c.MinDB, c.MaxDB)
	}
	return nil
}

// workspace holds the buffers reused on every call.
type workspace struct {
	input     []float64    // windowed samples
	fftOutput []complex128 // size/2 + 1 coefficients
	smoothed  []float64    // smoothed linear magnitude per bin
	window    []float64
}

// Analyser turns a window of time-domain samples into byte-scaled magnitude
// bins the way a browser analyser node does: window, transform, normalise by
// the transform size, smooth over time, convert to decibels and map the
// configured decibel range onto [0, 255].
//
// An Analyser keeps smoothing state between calls and is not safe for
// concurrent use.
type Analyser struct {
	cfg       Config
	fft       *fourier.FFT
	workspace workspace
	byteScale float64
}

// NewAnalyser pre-allocates every buffer the transform needs.
func NewAnalyser(cfg Config) (*Analyser, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	coeffs := make([]float64, cfg.Size)
	applyWindow(coeffs, cfg.Window)

	return &Analyser{
		cfg: cfg,
		fft: fourier.NewFFT(cfg.Size),
		workspace: workspace{
			input:     make([]float64, cfg.Size),
			fftOutput: make([]complex128, cfg.Size/2+1),
			smoothed:  make([]float64, cfg.Size/2),
			window:    coeffs,
		},
		byteScale: 255 / (cfg.MaxDB - cfg.MinDB),
	}, nil
}

// Size returns the number of samples consumed per transform.
func (a *Analyser) Size() int {
	return a.cfg.Size
}

// Bins returns the number of magnitudes written per transform.
func (a *Analyser) Bins() int {
	return a.cfg.Size / 2
}

// Analyse writes Bins() magnitudes into dst. Samples are expected in
// [-1, 1]; a short input is zero padded and extra samples are ignored.
// dst must hold at least Bins() bytes.
func (a *Analyser) Analyse(samples []float64, dst []uint8) {
	ws := &a.workspace
	for i := range ws.input {
		if i < len(samples) {
			ws.input[i] = samples[i] * ws.window[i]
		} else {
			ws.input[i] = 0
		}
	}

	a.fft.Coefficients(ws.fftOutput, ws.input)

	norm := 1 / float64(a.cfg.Size)
	tau := a.cfg.Smoothing
	for k := range ws.smoothed {
		mag := cmplx.Abs(ws.fftOutput[k]) * norm
		s := tau*ws.smoothed[k] + (1-tau)*mag
		if math.IsNaN(s) || math.IsInf(s, 0) {
			s = 0
		}
		ws.smoothed[k] = s
		dst[k] = a.toByte(s)
	}
}

func (a *Analyser) toByte(mag float64) uint8 {
	if mag <= 0 {
		return 0
	}
	db := 20 * math.Log10(mag)
	v := math.Floor(a.byteScale * (db - a.cfg.MinDB))
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	}
	return uint8(v)
}

// Reset clears the smoothing history.
func (a *Analyser) Reset() {
	clear(a.workspace.smoothed)
}

// BinFrequency returns the centre frequency of bin k in Hz.
func (a *Analyser) BinFrequency(k int, sampleRate float64) float64 {
	if k < 0 || k >= a.Bins() {
		return 0
	}
	return float64(k) * sampleRate / float64(a.cfg.Size)
}
