// SPDX-License-Identifier: MIT
/*
Package audio provides the frame sources that feed the analysis pipeline:
live capture from a PortAudio input device and real-time replay of a WAV file.

Both sources keep the latest fft_size mono samples and run the spectrum
analyser on the tick goroutine when a frame is pulled, so the audio callback
only downmixes and copies. All buffers are allocated up front.
*/
package audio

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/gordonklaus/portaudio"

	"moodscope/internal/analysis"
	"moodscope/internal/config"
	"moodscope/internal/log"
	"moodscope/internal/spectrum"
)

// inputStream is the part of *portaudio.Stream the capture source uses.
type inputStream interface {
	Start() error
	Stop() error
	Close() error
}

var paOpenStream = func(params portaudio.StreamParameters, callback func(in []int32)) (inputStream, error) {
	stream, err := portaudio.OpenStream(params, callback)
	if err != nil {
		return nil, err
	}
	return stream, nil
}

const int32Scale = 1.0 / float64(1<<31)

// Capture is a FrameSource backed by a PortAudio input stream.
type Capture struct {
	cfg      config.AudioConfig
	log      *log.Logger
	analyser *spectrum.Analyser
	gate     *Gate

	// Shared between the audio callback and Frame.
	mu       sync.Mutex
	window   []float64 // latest samples, oldest first
	received bool
	gateOpen bool

	mono    []float64 // callback-side downmix buffer
	scratch []float64 // tick-side copy of window
	bins    []uint8

	life   sync.Mutex
	stream inputStream
}

var _ analysis.FrameSource = (*Capture)(nil)

// NewCapture prepares a capture source. No device is touched until
// Initialize.
func NewCapture(cfg config.AudioConfig) (*Capture, error) {
	analyser, err := newAnalyser(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.InputChannels < 1 {
		return nil, fmt.Errorf("input channels must be positive, got %d", cfg.InputChannels)
	}
	if cfg.FramesPerBuffer < 1 {
		return nil, fmt.Errorf("frames per buffer must be positive, got %d", cfg.FramesPerBuffer)
	}

	gate := NewGate(cfg.GateThreshold)
	if !cfg.GateEnabled {
		gate.Disable()
	}

	return &Capture{
		cfg:      cfg,
		log:      log.Named("capture"),
		analyser: analyser,
		gate:     gate,
		window:   make([]float64, analyser.Size()),
		mono:     make([]float64, cfg.FramesPerBuffer),
		scratch:  make([]float64, analyser.Size()),
		bins:     make([]uint8, analyser.Bins()),
	}, nil
}

// Gate exposes the noise gate for runtime adjustment.
func (c *Capture) Gate() *Gate {
	return c.gate
}

// Initialize acquires the input device and starts the stream. Calling it
// on a running capture is a no-op.
func (c *Capture) Initialize() error {
	c.life.Lock()
	defer c.life.Unlock()

	if c.stream != nil {
		return nil
	}

	if err := Initialize(); err != nil {
		return err
	}

	device, err := InputDevice(c.cfg.InputDevice)
	if err != nil {
		_ = Terminate()
		return fmt.Errorf("acquire input device: %w", err)
	}

	latency := device.DefaultHighInputLatency
	if c.cfg.LowLatency {
		latency = device.DefaultLowInputLatency
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: c.cfg.InputChannels,
			Latency:  latency,
		},
		FramesPerBuffer: c.cfg.FramesPerBuffer,
		SampleRate:      c.cfg.SampleRate,
	}

	c.reset()

	stream, err := paOpenStream(params, c.process)
	if err != nil {
		_ = Terminate()
		return fmt.Errorf("open input stream on %q: %w", device.Name, err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = Terminate()
		return fmt.Errorf("start input stream on %q: %w", device.Name, err)
	}

	c.stream = stream
	c.log.Infof("capturing from %q (%d ch, %.0f Hz, %d frames, latency %s, %.1f Hz per bin)",
		device.Name, c.cfg.InputChannels, c.cfg.SampleRate, c.cfg.FramesPerBuffer, latency,
		c.analyser.BinFrequency(1, c.cfg.SampleRate))
	return nil
}

func (c *Capture) reset() {
	c.mu.Lock()
	clear(c.window)
	c.received = false
	c.gateOpen = false
	c.mu.Unlock()
	c.analyser.Reset()
}

// process is the PortAudio callback. It runs on the audio thread and must
// not allocate.
func (c *Capture) process(in []int32) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	channels := c.cfg.InputChannels
	frames := min(len(in)/channels, len(c.mono))
	for i := range frames {
		var sum float64
		for ch := range channels {
			sum += float64(in[i*channels+ch])
		}
		c.mono[i] = sum * int32Scale / float64(channels)
	}
	open := c.gate.Open(in)

	c.mu.Lock()
	pushWindow(c.window, c.mono[:frames])
	c.received = true
	c.gateOpen = open
	c.mu.Unlock()
}

// pushWindow slides samples into the end of window, dropping the oldest.
func pushWindow(window, samples []float64) {
	n := len(samples)
	if n >= len(window) {
		copy(window, samples[n-len(window):])
		return
	}
	copy(window, window[n:])
	copy(window[len(window)-n:], samples)
}

// Frame analyses the most recent window. It reports false until the first
// callback has delivered audio. The returned bins are reused by the next
// call.
func (c *Capture) Frame() (analysis.SpectralFrame, bool) {
	c.mu.Lock()
	if !c.received {
		c.mu.Unlock()
		return analysis.SpectralFrame{}, false
	}
	copy(c.scratch, c.window)
	open := c.gateOpen
	c.mu.Unlock()

	if open {
		c.analyser.Analyse(c.scratch, c.bins)
	} else {
		clear(c.bins)
	}

	return analysis.SpectralFrame{
		Bins:          c.bins,
		SampleRate:    c.cfg.SampleRate,
		TransformSize: c.analyser.Bins(),
	}, true
}

// Dispose stops the stream and releases PortAudio. It is safe to call more
// than once and before Initialize.
func (c *Capture) Dispose() error {
	c.life.Lock()
	defer c.life.Unlock()

	if c.stream == nil {
		return nil
	}

	var errs []error
	if err := c.stream.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stop input stream: %w", err))
	}
	if err := c.stream.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close input stream: %w", err))
	}
	if err := Terminate(); err != nil {
		errs = append(errs, err)
	}
	c.stream = nil
	c.log.Debugf("input stream released")
	return errors.Join(errs...)
}

// newAnalyser builds the spectrum analyser described by cfg.
func newAnalyser(cfg config.AudioConfig) (*spectrum.Analyser, error) {
	win, err := spectrum.ParseWindowFunc(cfg.FFTWindow)
	if err != nil {
		return nil, err
	}
	return spectrum.NewAnalyser(spectrum.Config{
		Size:      cfg.FFTSize,
		Smoothing: cfg.Smoothing,
		MinDB:     cfg.MinDecibels,
		MaxDB:     cfg.MaxDecibels,
		Window:    win,
	})
}

