package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"moodscope/internal/config"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		check func(t *testing.T, cfg *config.Config)
	}{
		{
			name: "Defaults",
			args: nil,
			check: func(t *testing.T, cfg *config.Config) {
				if cfg.Command != CommandRun {
					t.Errorf("Command = %q, want %q", cfg.Command, CommandRun)
				}
				if cfg.Audio.Source != config.SourceDevice {
					t.Errorf("Source = %q, want device", cfg.Audio.Source)
				}
				if cfg.Analysis.Sensitivity != config.DefaultSensitivity {
					t.Errorf("Sensitivity = %v, want default", cfg.Analysis.Sensitivity)
				}
			},
		},
		{
			name: "List command",
			args: []string{"list"},
			check: func(t *testing.T, cfg *config.Config) {
				if cfg.Command != CommandList {
					t.Errorf("Command = %q, want %q", cfg.Command, CommandList)
				}
			},
		},
		{
			name: "Analysis flags",
			args: []string{"--sensitivity", "0.7", "--frame-rate", "30", "--fft-size", "1024", "--tui"},
			check: func(t *testing.T, cfg *config.Config) {
				if cfg.Analysis.Sensitivity != 0.7 {
					t.Errorf("Sensitivity = %v, want 0.7", cfg.Analysis.Sensitivity)
				}
				if cfg.Analysis.FrameRate != 30 {
					t.Errorf("FrameRate = %v, want 30", cfg.Analysis.FrameRate)
				}
				if cfg.Audio.FFTSize != 1024 {
					t.Errorf("FFTSize = %d, want 1024", cfg.Audio.FFTSize)
				}
				if !cfg.TUIMode {
					t.Errorf("TUIMode = false, want true")
				}
			},
		},
		{
			name: "Device flags",
			args: []string{"-d", "3", "-s", "48000", "-c", "2", "-l", "-v"},
			check: func(t *testing.T, cfg *config.Config) {
				if cfg.Audio.InputDevice != 3 || cfg.Audio.SampleRate != 48000 || cfg.Audio.InputChannels != 2 {
					t.Errorf("audio = %+v", cfg.Audio)
				}
				if !cfg.Audio.LowLatency {
					t.Errorf("LowLatency = false, want true")
				}
				if cfg.LogLevel != "debug" || !cfg.Debug {
					t.Errorf("verbose did not enable debug logging")
				}
			},
		},
		{
			name: "WAV flag switches source",
			args: []string{"--wav", "song.wav", "--loop"},
			check: func(t *testing.T, cfg *config.Config) {
				if cfg.Audio.Source != config.SourceWAV || cfg.Audio.WAVPath != "song.wav" || !cfg.Audio.WAVLoop {
					t.Errorf("audio = %+v", cfg.Audio)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := parse(tt.args)
			if err != nil {
				t.Fatalf("parse(%v) failed: %v", tt.args, err)
			}
			if cfg == nil {
				t.Fatalf("parse(%v) returned no config", tt.args)
			}
			tt.check(t, cfg)
		})
	}
}

func TestParseFlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "moodscope.yaml")
	content := "analysis:\n  sensitivity: 0.2\n  frame_rate: 20\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := parse([]string{"--config", path, "--sensitivity", "0.9"})
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if cfg.Analysis.Sensitivity != 0.9 {
		t.Errorf("Sensitivity = %v, want flag value 0.9", cfg.Analysis.Sensitivity)
	}
	if cfg.Analysis.FrameRate != 20 {
		t.Errorf("FrameRate = %v, want file value 20", cfg.Analysis.FrameRate)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"Sensitivity out of range", []string{"--sensitivity", "1.5"}},
		{"Bad FFT size", []string{"--fft-size", "1000"}},
		{"Missing config file", []string{"--config", filepath.Join(t.TempDir(), "missing.yaml")}},
		{"Unknown flag", []string{"--no-such-flag"}},
		{"Unexpected argument", []string{"extra"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parse(tt.args); err == nil {
				t.Errorf("parse(%v) succeeded, want error", tt.args)
			}
		})
	}
}

func TestParseVersion(t *testing.T) {
	cfg, err := parse([]string{"--version"})
	if err != nil {
		t.Fatalf("parse(--version) failed: %v", err)
	}
	if cfg != nil {
		t.Errorf("--version returned a config to run")
	}
}
