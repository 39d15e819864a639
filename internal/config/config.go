// SPDX-License-Identifier: MIT
package config

import "time"

// Defaults and limits for the analysis pipeline. The mood breakpoints are not
// configurable and live with the classifier.
const (
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"

	SourceDevice = "device" // live PortAudio capture
	SourceWAV    = "wav"    // real-time replay of a WAV file

	DefaultSource          = SourceDevice
	DefaultDeviceID        = MinDeviceID // system default input
	DefaultChannels        = 1
	DefaultFramesPerBuffer = 512
	DefaultSampleRate      = 44100
	DefaultFFTSize         = 2048
	DefaultFFTWindow       = "blackman"
	DefaultSmoothing       = 0.8
	DefaultMinDecibels     = -100.0
	DefaultMaxDecibels     = -30.0
	DefaultGateThreshold   = 0.001

	DefaultSensitivity = 0.5
	DefaultFrameRate   = 60.0

	DefaultWebSocketAddr   = ":8080"
	DefaultUDPTarget       = "127.0.0.1:9090"
	DefaultUDPSendInterval = 33 * time.Millisecond
	DefaultLogInterval     = time.Second
	DefaultMetricsAddr     = ":9464"

	MinDeviceID     = -1
	MinSampleRate   = 8000
	MaxSampleRate   = 192000
	MaxBufferFrames = 8192
	MinFFTSize      = 32
	MaxFFTSize      = 32768
	MaxChannels     = 32
	MaxFrameRate    = 240.0
)

// Config is the full runtime configuration, loaded from YAML and overridden
// by the environment and command line.
type Config struct {
	Debug     bool            `yaml:"debug"`
	LogLevel  string          `yaml:"log_level"`
	LogFormat string          `yaml:"log_format"`        // "text" or "json"
	Command   string          `yaml:"command,omitempty"` // one-off command instead of running, e.g. "list"
	TUIMode   bool            `yaml:"tui"`               // show the terminal monitor
	Audio     AudioConfig     `yaml:"audio"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Transport TransportConfig `yaml:"transport"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// AudioConfig selects the frame source and shapes its spectrum.
type AudioConfig struct {
	Source          string  `yaml:"source"`            // "device" or "wav"
	InputDevice     int     `yaml:"input_device"`      // PortAudio device index, -1 for the default input
	SampleRate      float64 `yaml:"sample_rate"`       // Hz; ignored for WAV, which uses the file's rate
	FramesPerBuffer int     `yaml:"frames_per_buffer"` // PortAudio callback size
	LowLatency      bool    `yaml:"low_latency"`
	InputChannels   int     `yaml:"input_channels"` // downmixed to mono
	FFTSize         int     `yaml:"fft_size"`       // samples per transform; bins = fft_size/2
	FFTWindow       string  `yaml:"fft_window"`
	Smoothing       float64 `yaml:"smoothing"`    // time constant in [0, 1]
	MinDecibels     float64 `yaml:"min_decibels"` // maps to byte 0
	MaxDecibels     float64 `yaml:"max_decibels"` // maps to byte 255
	GateEnabled     bool    `yaml:"gate_enabled"`
	GateThreshold   float64 `yaml:"gate_threshold"` // fraction of full scale
	WAVPath         string  `yaml:"wav_path"`
	WAVLoop         bool    `yaml:"wav_loop"`
}

// AnalysisConfig holds the runtime-adjustable analysis settings.
type AnalysisConfig struct {
	Sensitivity float64 `yaml:"sensitivity"` // initial energy gain in [0, 1]
	FrameRate   float64 `yaml:"frame_rate"`  // frames analysed per second
}

// TransportConfig enables the outbound fan-out of results.
type TransportConfig struct {
	WebSocketEnabled bool          `yaml:"websocket_enabled"`
	WebSocketAddr    string        `yaml:"websocket_addr"`
	UDPEnabled       bool          `yaml:"udp_enabled"`
	UDPTargetAddress string        `yaml:"udp_target_address"`
	UDPSendInterval  time.Duration `yaml:"udp_send_interval"`
	LogResults       bool          `yaml:"log_results"`
	LogInterval      time.Duration `yaml:"log_interval"`
}

// MetricsConfig controls the Prometheus scrape endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// NewConfig returns a Config populated with built-in defaults.
func NewConfig() *Config {
	return &Config{
		LogLevel:  DefaultLogLevel,
		LogFormat: DefaultLogFormat,
		Audio: AudioConfig{
			Source:          DefaultSource,
			InputDevice:     DefaultDeviceID,
			SampleRate:      DefaultSampleRate,
			FramesPerBuffer: DefaultFramesPerBuffer,
			InputChannels:   DefaultChannels,
			FFTSize:         DefaultFFTSize,
			FFTWindow:       DefaultFFTWindow,
			Smoothing:       DefaultSmoothing,
			MinDecibels:     DefaultMinDecibels,
			MaxDecibels:     DefaultMaxDecibels,
			GateEnabled:     true,
			GateThreshold:   DefaultGateThreshold,
		},
		Analysis: AnalysisConfig{
			Sensitivity: DefaultSensitivity,
			FrameRate:   DefaultFrameRate,
		},
		Transport: TransportConfig{
			WebSocketAddr:    DefaultWebSocketAddr,
			UDPTargetAddress: DefaultUDPTarget,
			UDPSendInterval:  DefaultUDPSendInterval,
			LogInterval:      DefaultLogInterval,
		},
		Metrics: MetricsConfig{
			Addr: DefaultMetricsAddr,
		},
	}
}

// FrameInterval converts the frame rate into a tick period.
func (a AnalysisConfig) FrameInterval() time.Duration {
	rate := a.FrameRate
	if rate <= 0 {
		rate = DefaultFrameRate
	}
	return time.Duration(float64(time.Second) / rate)
}
