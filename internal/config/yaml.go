// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"math"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"moodscope/internal/log"
	"moodscope/pkg/bitint"
)

// Candidates searched, in order, when no path is given.
var defaultPaths = []string{
	"moodscope.yaml",
	"config.yaml",
}

// LoadConfig loads configuration from the YAML file at path. If path is empty,
// it searches the default locations and falls back to built-in defaults when
// none exist. Environment overrides are applied after the file and the result
// is validated.
func LoadConfig(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		for _, candidate := range defaultPaths {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		log.Debugf("configuration: loaded %s", path)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks every section and reports all problems at once.
func (c *Config) Validate() error {
	var errs []error

	if _, ok := log.ParseLevel(c.LogLevel); !ok {
		errs = append(errs, fmt.Errorf("log_level %q is not a known level", c.LogLevel))
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log_format must be text or json, got %q", c.LogFormat))
	}

	errs = append(errs, c.Audio.validate()...)
	errs = append(errs, c.Analysis.validate()...)
	errs = append(errs, c.Transport.validate()...)

	if c.Metrics.Enabled {
		if err := validateListenAddr("metrics.addr", c.Metrics.Addr); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (a *AudioConfig) validate() []error {
	var errs []error

	switch a.Source {
	case SourceDevice:
		if a.InputDevice < MinDeviceID {
			errs = append(errs, fmt.Errorf("audio.input_device must be >= %d, got %d", MinDeviceID, a.InputDevice))
		}
		if a.SampleRate < MinSampleRate || a.SampleRate > MaxSampleRate {
			errs = append(errs, fmt.Errorf("audio.sample_rate must be in [%d, %d], got %.0f", MinSampleRate, MaxSampleRate, a.SampleRate))
		}
		if a.FramesPerBuffer <= 0 || a.FramesPerBuffer > MaxBufferFrames {
			errs = append(errs, fmt.Errorf("audio.frames_per_buffer must be in [1, %d], got %d", MaxBufferFrames, a.FramesPerBuffer))
		}
		if a.InputChannels < 1 || a.InputChannels > MaxChannels {
			errs = append(errs, fmt.Errorf("audio.input_channels must be in [1, %d], got %d", MaxChannels, a.InputChannels))
		}
	case SourceWAV:
		if a.WAVPath == "" {
			errs = append(errs, errors.New("audio.wav_path must be set when audio.source is wav"))
		}
	default:
		errs = append(errs, fmt.Errorf("audio.source must be %q or %q, got %q", SourceDevice, SourceWAV, a.Source))
	}

	if a.FFTSize < MinFFTSize || a.FFTSize > MaxFFTSize || !bitint.IsPowerOfTwo(a.FFTSize) {
		errs = append(errs, fmt.Errorf("audio.fft_size must be a power of 2 in [%d, %d], got %d", MinFFTSize, MaxFFTSize, a.FFTSize))
	}
	if !inUnit(a.Smoothing) {
		errs = append(errs, fmt.Errorf("audio.smoothing must be in [0, 1], got %f", a.Smoothing))
	}
	if !(a.MinDecibels < a.MaxDecibels) {
		errs = append(errs, fmt.Errorf("audio.min_decibels (%.1f) must be below audio.max_decibels (%.1f)", a.MinDecibels, a.MaxDecibels))
	}
	if !inUnit(a.GateThreshold) {
		errs = append(errs, fmt.Errorf("audio.gate_threshold must be in [0, 1], got %f", a.GateThreshold))
	}
	return errs
}

func (a *AnalysisConfig) validate() []error {
	var errs []error
	if !inUnit(a.Sensitivity) {
		errs = append(errs, fmt.Errorf("analysis.sensitivity must be in [0, 1], got %f", a.Sensitivity))
	}
	if !(a.FrameRate > 0 && a.FrameRate <= MaxFrameRate) {
		errs = append(errs, fmt.Errorf("analysis.frame_rate must be in (0, %.0f], got %f", MaxFrameRate, a.FrameRate))
	}
	return errs
}

func (t *TransportConfig) validate() []error {
	var errs []error
	if t.WebSocketEnabled {
		if err := validateListenAddr("transport.websocket_addr", t.WebSocketAddr); err != nil {
			errs = append(errs, err)
		}
	}
	if t.UDPEnabled {
		if _, _, err := net.SplitHostPort(t.UDPTargetAddress); err != nil {
			errs = append(errs, fmt.Errorf("transport.udp_target_address %q appears invalid: %w", t.UDPTargetAddress, err))
		}
		if t.UDPSendInterval <= 0 {
			errs = append(errs, errors.New("transport.udp_send_interval must be positive when UDP is enabled"))
		}
	}
	if t.LogResults && t.LogInterval < 0 {
		errs = append(errs, errors.New("transport.log_interval must not be negative"))
	}
	return errs
}

func validateListenAddr(field, addr string) error {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return fmt.Errorf("%s %q appears invalid: %w", field, addr, err)
	}
	return nil
}

func inUnit(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}

// applyEnvOverrides reads ENV_* variables over whatever the file set.
// Malformed values are logged and ignored.
func (c *Config) applyEnvOverrides() {
	// ENV_DEBUG
	envBool("ENV_DEBUG", &c.Debug)
	// ENV_LOG_LEVEL, ENV_LOG_FORMAT
	envString("ENV_LOG_LEVEL", &c.LogLevel)
	envString("ENV_LOG_FORMAT", &c.LogFormat)

	// ENV_AUDIO_{...}
	envString("ENV_AUDIO_SOURCE", &c.Audio.Source)
	envInt("ENV_AUDIO_DEVICE", &c.Audio.InputDevice)
	envFloat("ENV_AUDIO_SAMPLE_RATE", &c.Audio.SampleRate)
	envInt("ENV_AUDIO_FFT_SIZE", &c.Audio.FFTSize)
	envString("ENV_AUDIO_WAV_PATH", &c.Audio.WAVPath)

	// ENV_SENSITIVITY, ENV_FRAME_RATE
	envFloat("ENV_SENSITIVITY", &c.Analysis.Sensitivity)
	envFloat("ENV_FRAME_RATE", &c.Analysis.FrameRate)

	// ENV_WS_{...}
	envBool("ENV_WS_ENABLED", &c.Transport.WebSocketEnabled)
	envString("ENV_WS_ADDR", &c.Transport.WebSocketAddr)

	// ENV_UDP_{...}
	envBool("ENV_UDP_ENABLED", &c.Transport.UDPEnabled)
	envString("ENV_UDP_TARGET_ADDRESS", &c.Transport.UDPTargetAddress)
	envDuration("ENV_UDP_SEND_INTERVAL", &c.Transport.UDPSendInterval)

	// ENV_METRICS_{...}
	envBool("ENV_METRICS_ENABLED", &c.Metrics.Enabled)
	envString("ENV_METRICS_ADDR", &c.Metrics.Addr)
}

func envString(key string, dst *string) {
	if val, ok := os.LookupEnv(key); ok {
		*dst = val
		log.Debugf("configuration: overriding from %s: %s", key, val)
	}
}

func envBool(key string, dst *bool) {
	if val, ok := os.LookupEnv(key); ok {
		b, err := strconv.ParseBool(val)
		if err != nil {
			log.Warnf("configuration: ignoring %s=%q: %v", key, val, err)
			return
		}
		*dst = b
		log.Debugf("configuration: overriding from %s: %v", key, b)
	}
}

func envInt(key string, dst *int) {
	if val, ok := os.LookupEnv(key); ok {
		n, err := strconv.Atoi(val)
		if err != nil {
			log.Warnf("configuration: ignoring %s=%q: %v", key, val, err)
			return
		}
		*dst = n
		log.Debugf("configuration: overriding from %s: %d", key, n)
	}
}

func envFloat(key string, dst *float64) {
	if val, ok := os.LookupEnv(key); ok {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			log.Warnf("configuration: ignoring %s=%q: %v", key, val, err)
			return
		}
		*dst = f
		log.Debugf("configuration: overriding from %s: %g", key, f)
	}
}

func envDuration(key string, dst *time.Duration) {
	if val, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(val)
		if err != nil {
			log.Warnf("configuration: ignoring %s=%q: %v", key, val, err)
			return
		}
		*dst = d
		log.Debugf("configuration: overriding from %s: %s", key, d)
	}
}
