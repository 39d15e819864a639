// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-audio/wav"

	"moodscope/internal/analysis"
	"moodscope/internal/config"
	"moodscope/internal/log"
	"moodscope/internal/spectrum"
)

// ErrNotWAV is returned when the file is not a readable PCM WAV.
var ErrNotWAV = errors.New("not a valid WAV file")

// Clock returns the current time. Sources take one so tests can step time.
type Clock func() time.Time

// WAVSource is a FrameSource that replays a WAV file at real-time speed.
// The file is decoded and downmixed to mono once, at Initialize; each Frame
// analyses the window ending at the playhead implied by the elapsed time.
type WAVSource struct {
	path  string
	loop  bool
	clock Clock
	log   *log.Logger

	analyser *spectrum.Analyser
	gate     *Gate
	scratch  []float64
	peakBuf  []int32
	bins     []uint8

	mu         sync.Mutex
	samples    []float64
	sampleRate float64
	started    time.Time
}

var _ analysis.FrameSource = (*WAVSource)(nil)

// NewWAVSource prepares a replay of cfg.WAVPath. A nil clock uses
// time.Now.
func NewWAVSource(cfg config.AudioConfig, clock Clock) (*WAVSource, error) {
	if cfg.WAVPath == "" {
		return nil, errors.New("wav path is empty")
	}
	analyser, err := newAnalyser(cfg)
	if err != nil {
		return nil, err
	}
	if clock == nil {
		clock = time.Now
	}

	gate := NewGate(cfg.GateThreshold)
	if !cfg.GateEnabled {
		gate.Disable()
	}

	return &WAVSource{
		path:     cfg.WAVPath,
		loop:     cfg.WAVLoop,
		clock:    clock,
		log:      log.Named("wav").With("path", cfg.WAVPath),
		analyser: analyser,
		gate:     gate,
		scratch:  make([]float64, analyser.Size()),
		peakBuf:  make([]int32, analyser.Size()),
		bins:     make([]uint8, analyser.Bins()),
	}, nil
}

// Initialize decodes the whole file and starts the playhead at zero.
func (w *WAVSource) Initialize() error {
	samples, rate, err := decodeMono(w.path)
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.samples = samples
	w.sampleRate = rate
	w.started = w.clock()
	w.mu.Unlock()
	w.analyser.Reset()

	w.log.Infof("replaying %.1fs at %.0f Hz (loop=%v, %.1f Hz per bin)",
		float64(len(samples))/rate, rate, w.loop, w.analyser.BinFrequency(1, rate))
	return nil
}

// decodeMono reads a PCM WAV and averages its channels into [-1, 1] floats.
func decodeMono(path string) ([]float64, float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, 0, fmt.Errorf("%s: %w", path, ErrNotWAV)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("decode wav: %w", err)
	}
	if buf.Format == nil || buf.Format.NumChannels < 1 || buf.Format.SampleRate <= 0 {
		return nil, 0, fmt.Errorf("%s: missing format: %w", path, ErrNotWAV)
	}

	channels := buf.Format.NumChannels
	depth := buf.SourceBitDepth
	if depth <= 0 {
		depth = int(dec.BitDepth)
	}
	if depth <= 0 || depth > 32 {
		return nil, 0, fmt.Errorf("%s: unsupported bit depth %d", path, depth)
	}
	fullScale := float64(int64(1) << (depth - 1))

	frames := len(buf.Data) / channels
	if frames == 0 {
		return nil, 0, fmt.Errorf("%s: no audio frames", path)
	}
	mono := make([]float64, frames)
	for i := range mono {
		var sum float64
		for ch := range channels {
			sum += float64(buf.Data[i*channels+ch])
		}
		mono[i] = sum / float64(channels) / fullScale
	}
	return mono, float64(buf.Format.SampleRate), nil
}

// Frame analyses the window ending at the playhead. Without looping it
// reports false once the file has played out; it also reports false before
// Initialize.
func (w *WAVSource) Frame() (analysis.SpectralFrame, bool) {
	w.mu.Lock()
	samples, rate, started := w.samples, w.sampleRate, w.started
	w.mu.Unlock()

	if len(samples) == 0 {
		return analysis.SpectralFrame{}, false
	}

	elapsed := w.clock().Sub(started)
	if elapsed < 0 {
		elapsed = 0
	}
	pos := int(elapsed.Seconds() * rate)
	if pos > len(samples) {
		if !w.loop {
			return analysis.SpectralFrame{}, false
		}
		pos %= len(samples)
	}

	w.fillWindow(samples, pos)
	for i, v := range w.scratch {
		w.peakBuf[i] = int32(v * float64(1<<31-1))
	}

	if w.gate.Open(w.peakBuf) {
		w.analyser.Analyse(w.scratch, w.bins)
	} else {
		clear(w.bins)
	}

	return analysis.SpectralFrame{
		Bins:          w.bins,
		SampleRate:    rate,
		TransformSize: w.analyser.Bins(),
	}, true
}

// fillWindow copies the len(scratch) samples ending at pos. Before the start
// of the file the window is zero padded, or wraps when looping.
func (w *WAVSource) fillWindow(samples []float64, pos int) {
	size := len(w.scratch)
	start := pos - size
	for i := range w.scratch {
		idx := start + i
		switch {
		case idx >= 0:
			w.scratch[i] = samples[idx]
		case w.loop && len(samples) >= size:
			w.scratch[i] = samples[idx+len(samples)]
		default:
			w.scratch[i] = 0
		}
	}
}

// Dispose drops the decoded audio. It is idempotent.
func (w *WAVSource) Dispose() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.samples = nil
	return nil
}

// NewSource builds the FrameSource selected by cfg.Source.
func NewSource(cfg config.AudioConfig, clock Clock) (analysis.FrameSource, error) {
	switch cfg.Source {
	case config.SourceWAV:
		return NewWAVSource(cfg, clock)
	case config.SourceDevice, "":
		return NewCapture(cfg)
	default:
		return nil, fmt.Errorf("unknown audio source %q", cfg.Source)
	}
}
