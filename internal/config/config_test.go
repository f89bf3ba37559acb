package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cwsl/sdrcore/internal/window"
)

func TestLoadAppliesDefaultsToEmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.yaml")
	if err := os.WriteFile(path, []byte(""), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Radio.Driver != "simulated" {
		t.Errorf("Radio.Driver = %q, want simulated", cfg.Radio.Driver)
	}
	if cfg.Radio.SampleRateHz != 2_000_000 {
		t.Errorf("Radio.SampleRateHz = %v, want 2e6", cfg.Radio.SampleRateHz)
	}
	if cfg.Ring.Name != "sdrcore-spectrum" || cfg.Ring.Slots != 64 || cfg.Ring.FFTSize != 4096 || cfg.Ring.Channels != 1 {
		t.Errorf("Ring defaults = %+v", cfg.Ring)
	}
	if cfg.Ring.Window != window.BlackmanHarris {
		t.Errorf("Ring.Window = %q, want %q", cfg.Ring.Window, window.BlackmanHarris)
	}
	if cfg.Control.SocketPath != "/tmp/sdrcore-control.sock" {
		t.Errorf("Control.SocketPath = %q", cfg.Control.SocketPath)
	}
	if cfg.Control.BlockTimeout != 3*time.Second || cfg.Control.StatusInterval != time.Second {
		t.Errorf("Control timeouts = %+v", cfg.Control)
	}
	if cfg.Fanout.Addr != ":8090" || cfg.Fanout.Path != "/ws/spectrum" {
		t.Errorf("Fanout defaults = %+v", cfg.Fanout)
	}
	if cfg.Recorder.QueueDepth != 8 || cfg.Recorder.BlockSamples != 4096 {
		t.Errorf("Recorder defaults = %+v", cfg.Recorder)
	}
	if cfg.Scanner.Window != window.Hann || cfg.Scanner.Averages != 4 {
		t.Errorf("Scanner defaults = %+v", cfg.Scanner)
	}
	if cfg.Scanner.Settle != 50*time.Millisecond || cfg.Scanner.Dwell != 200*time.Millisecond {
		t.Errorf("Scanner settle/dwell = %+v", cfg.Scanner)
	}
	if cfg.Metrics.Addr != ":9090" {
		t.Errorf("Metrics.Addr = %q", cfg.Metrics.Addr)
	}
	if cfg.MQTT.Interval != 10*time.Second {
		t.Errorf("MQTT.Interval = %v", cfg.MQTT.Interval)
	}
}

func TestLoadPreservesExplicitValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	body := `
radio:
  driver: uhd
  center_hz: 433920000
ring:
  fft_size: 8192
  channels: 2
fanout:
  enabled: true
  addr: ":9999"
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Radio.Driver != "uhd" {
		t.Errorf("Radio.Driver = %q, want uhd", cfg.Radio.Driver)
	}
	if cfg.Radio.CenterHz != 433920000 {
		t.Errorf("Radio.CenterHz = %v", cfg.Radio.CenterHz)
	}
	if cfg.Ring.FFTSize != 8192 || cfg.Ring.Channels != 2 {
		t.Errorf("Ring overrides = %+v", cfg.Ring)
	}
	if !cfg.Fanout.Enabled || cfg.Fanout.Addr != ":9999" {
		t.Errorf("Fanout overrides = %+v", cfg.Fanout)
	}
	// Untouched fields still pick up defaults alongside explicit overrides.
	if cfg.Ring.Name != "sdrcore-spectrum" {
		t.Errorf("Ring.Name default not applied: %q", cfg.Ring.Name)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/path/sdrcore.yaml"); err == nil {
		t.Fatal("expected error for a missing config file")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(path, []byte("radio: [this is not a map"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for malformed YAML")
	}
}
