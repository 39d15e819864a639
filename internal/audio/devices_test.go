package audio

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/gordonklaus/portaudio"
)

var fakeDevices = []*portaudio.DeviceInfo{
	{
		Name:                    "Built-in Microphone",
		HostApi:                 &portaudio.HostApiInfo{Name: "Core Audio"},
		MaxInputChannels:        2,
		DefaultSampleRate:       48000,
		DefaultLowInputLatency:  3 * time.Millisecond,
		DefaultHighInputLatency: 12 * time.Millisecond,
	},
	{
		Name:              "Built-in Output",
		MaxOutputChannels: 2,
		DefaultSampleRate: 44100,
	},
	{
		Name:              "USB Interface",
		MaxInputChannels:  4,
		MaxOutputChannels: 4,
		DefaultSampleRate: 96000,
	},
}

// withFakePortAudio swaps the PortAudio seams for the duration of the test.
func withFakePortAudio(t *testing.T, devices []*portaudio.DeviceInfo, def *portaudio.DeviceInfo) {
	t.Helper()
	origDevices, origDefault := paLibDevicesFunc, paLibDefaultInputDeviceFunc
	t.Cleanup(func() {
		paLibDevicesFunc, paLibDefaultInputDeviceFunc = origDevices, origDefault
	})

	paLibDevicesFunc = func() ([]*portaudio.DeviceInfo, error) { return devices, nil }
	paLibDefaultInputDeviceFunc = func() (*portaudio.DeviceInfo, error) {
		if def == nil {
			return nil, fmt.Errorf("no default input")
		}
		return def, nil
	}
}

func TestHostDevices(t *testing.T) {
	withFakePortAudio(t, fakeDevices, fakeDevices[0])

	devices, err := HostDevices()
	if err != nil {
		t.Fatalf("HostDevices error: %v", err)
	}
	if len(devices) != len(fakeDevices) {
		t.Fatalf("len = %d, want %d", len(devices), len(fakeDevices))
	}
	for i, d := range devices {
		if d.ID != i {
			t.Errorf("Device ID mismatch: got %d, want %d", d.ID, i)
		}
		if d.Name == "" {
			t.Errorf("Device %d has empty name", i)
		}
	}
	if !devices[0].IsDefaultInput || devices[2].IsDefaultInput {
		t.Errorf("default input marking wrong: %+v", devices)
	}
	if devices[0].HostAPI != "Core Audio" {
		t.Errorf("HostAPI = %q", devices[0].HostAPI)
	}

	kinds := []string{"Input", "Output", "Input/Output"}
	for i, want := range kinds {
		if got := devices[i].Kind(); got != want {
			t.Errorf("device %d Kind() = %q, want %q", i, got, want)
		}
	}
}

func TestHostDevices_paDevicesError(t *testing.T) {
	orig := paDevicesFunc
	defer func() { paDevicesFunc = orig }()
	paDevicesFunc = func() ([]*portaudio.DeviceInfo, error) {
		return nil, fmt.Errorf("mock error")
	}

	_, err := HostDevices()
	if err == nil || !strings.Contains(err.Error(), "mock error") {
		t.Errorf("expected mock error, got %v", err)
	}
}

func TestInputDevice(t *testing.T) {
	withFakePortAudio(t, fakeDevices, fakeDevices[0])

	t.Run("Default", func(t *testing.T) {
		dev, err := InputDevice(DefaultDeviceID)
		if err != nil || dev.Name != "Built-in Microphone" {
			t.Errorf("InputDevice(-1) = %v, %v", dev, err)
		}
	})

	t.Run("Valid input device", func(t *testing.T) {
		dev, err := InputDevice(2)
		if err != nil {
			t.Fatalf("InputDevice(2) error: %v", err)
		}
		if dev.Name != "USB Interface" {
			t.Errorf("Name = %q", dev.Name)
		}
	})

	tests := []struct {
		name   string
		id     int
		substr string
	}{
		{"Negative ID", -2, "invalid device ID"},
		{"Too high ID", len(fakeDevices) + 10, "invalid device ID"},
		{"Non-input device", 1, "does not support input"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := InputDevice(tt.id)
			if err == nil {
				t.Errorf("Expected error for ID %d", tt.id)
			} else if !strings.Contains(err.Error(), tt.substr) {
				t.Errorf("Error = %q, want substring %q", err.Error(), tt.substr)
			}
		})
	}
}

func TestInputDevice_paDevicesError(t *testing.T) {
	orig := paDevicesFunc
	defer func() { paDevicesFunc = orig }()
	paDevicesFunc = func() ([]*portaudio.DeviceInfo, error) {
		return nil, fmt.Errorf("mock error")
	}

	_, err := InputDevice(DefaultDeviceID)
	if err == nil || !strings.Contains(err.Error(), "mock error") {
		t.Errorf("expected mock error, got %v", err)
	}
}

func TestInputDevice_paDefaultInputDeviceError(t *testing.T) {
	withFakePortAudio(t, fakeDevices, nil)

	_, err := InputDevice(DefaultDeviceID)
	if err == nil || !strings.Contains(err.Error(), "no default input") {
		t.Errorf("expected default input error, got %v", err)
	}
}

func TestErrorInitialize(t *testing.T) {
	orig := paLibInitialize
	defer func() { paLibInitialize = orig }()

	paLibInitialize = func() error { return nil }
	if err := Initialize(); err != nil {
		t.Errorf("expected nil, got %v", err)
	}

	paLibInitialize = func() error { return fmt.Errorf("mock init error") }
	if err := Initialize(); err == nil || !strings.Contains(err.Error(), "mock init error") {
		t.Errorf("expected mock init error, got %v", err)
	}
}

func TestErrorTerminate(t *testing.T) {
	orig := paLibTerminate
	defer func() { paLibTerminate = orig }()

	paLibTerminate = func() error { return nil }
	if err := Terminate(); err != nil {
		t.Errorf("expected nil, got %v", err)
	}

	paLibTerminate = func() error { return fmt.Errorf("mock term error") }
	if err := Terminate(); err == nil || !strings.Contains(err.Error(), "mock term error") {
		t.Errorf("expected mock term error, got %v", err)
	}
}

func TestNilDevices(t *testing.T) {
	withFakePortAudio(t, nil, nil)

	devices, err := paDevices()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if devices == nil {
		t.Errorf("expected empty slice, got nil")
	}
}

func TestPortAudioNotInitialized(t *testing.T) {
	orig := paLibDevicesFunc
	defer func() { paLibDevicesFunc = orig }()
	paLibDevicesFunc = func() ([]*portaudio.DeviceInfo, error) {
		return nil, fmt.Errorf("PortAudio not initialized")
	}

	devices, err := paDevices()
	if err == nil || !strings.Contains(err.Error(), "PortAudio not initialized") {
		t.Errorf("expected 'PortAudio not initialized' error, got %v", err)
	}
	if devices != nil {
		t.Errorf("expected devices to be nil on error, got %v", devices)
	}
}

func TestListDevices(t *testing.T) {
	withFakePortAudio(t, fakeDevices, fakeDevices[0])

	var buf bytes.Buffer
	if err := ListDevices(&buf); err != nil {
		t.Fatalf("ListDevices error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"[0] Built-in Microphone (Input) [default input]",
		"[1] Built-in Output (Output)",
		"Host API: Core Audio",
		"Latency: Low=3.00ms, High=12.00ms",
		"Default sample rate: 96000 Hz",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
