// Package config loads the daemon/recorder/scanner YAML configuration,
// one nested sub-struct per subsystem with yaml tags.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cwsl/sdrcore/internal/window"
)

// Config is the top-level configuration document.
type Config struct {
	Radio     RadioConfig     `yaml:"radio"`
	Ring      RingConfig      `yaml:"ring"`
	Control   ControlConfig   `yaml:"control"`
	Fanout    FanoutConfig    `yaml:"fanout"`
	Recorder  RecorderConfig  `yaml:"recorder"`
	Scanner   ScannerConfig   `yaml:"scanner"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
}

// RadioConfig selects and configures the receiver backend.
type RadioConfig struct {
	Driver       string  `yaml:"driver"` // "simulated", "uhd", "soapy"
	Args         string  `yaml:"args"`
	CenterHz     float64 `yaml:"center_hz"`
	SampleRateHz float64 `yaml:"sample_rate_hz"`
	BandwidthHz  float64 `yaml:"bandwidth_hz"`
	GainDB       float64 `yaml:"gain_db"`
	AntennaPort  string  `yaml:"antenna_port"`
}

// RingConfig sizes the shared-memory spectrum ring.
type RingConfig struct {
	Name         string      `yaml:"name"`
	Slots        uint32      `yaml:"slots"`
	FFTSize      uint32      `yaml:"fft_size"`
	Channels     uint32      `yaml:"channels"`
	Window       window.Kind `yaml:"window"`
	CoherentGain bool        `yaml:"coherent_gain"`
}

// ControlConfig points at the control socket.
type ControlConfig struct {
	SocketPath     string        `yaml:"socket_path"`
	BlockTimeout   time.Duration `yaml:"block_timeout"`
	StatusInterval time.Duration `yaml:"status_interval"`
}

// FanoutConfig configures the WebSocket fan-out HTTP listener.
type FanoutConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Path    string `yaml:"path"`
}

// RecorderConfig configures the IQ recorder.
type RecorderConfig struct {
	QueueDepth   int `yaml:"queue_depth"`
	BlockSamples int `yaml:"block_samples"`
}

// ScannerConfig configures default scan parameters; individual scans
// may override via CLI flags.
type ScannerConfig struct {
	Window     window.Kind   `yaml:"window"`
	Averages   int           `yaml:"averages"`
	Settle     time.Duration `yaml:"settle"`
	Dwell      time.Duration `yaml:"dwell"`
}

// MetricsConfig configures the Prometheus /metrics listener.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// MQTTConfig configures the optional status heartbeat publisher.
type MQTTConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Broker   string        `yaml:"broker"`
	Username string        `yaml:"username"`
	Password string        `yaml:"password"`
	Topic    string        `yaml:"topic"`
	Interval time.Duration `yaml:"interval"`
}

// Load reads and parses a YAML config file, applying a default to each
// field applyDefaults covers when that field is left at its zero value.
// Center frequency, gain, bandwidth, antenna, driver args, the boolean
// flags (including ring.coherent_gain) and the MQTT broker settings have
// no default and stay zero when omitted.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Radio.Driver == "" {
		c.Radio.Driver = "simulated"
	}
	if c.Radio.SampleRateHz == 0 {
		c.Radio.SampleRateHz = 2_000_000
	}
	if c.Ring.Name == "" {
		c.Ring.Name = "sdrcore-spectrum"
	}
	if c.Ring.Slots == 0 {
		c.Ring.Slots = 64
	}
	if c.Ring.FFTSize == 0 {
		c.Ring.FFTSize = 4096
	}
	if c.Ring.Channels == 0 {
		c.Ring.Channels = 1
	}
	if c.Ring.Window == "" {
		c.Ring.Window = window.BlackmanHarris
	}
	if c.Control.SocketPath == "" {
		c.Control.SocketPath = "/tmp/sdrcore-control.sock"
	}
	if c.Control.BlockTimeout == 0 {
		c.Control.BlockTimeout = 3 * time.Second
	}
	if c.Control.StatusInterval == 0 {
		c.Control.StatusInterval = time.Second
	}
	if c.Fanout.Addr == "" {
		c.Fanout.Addr = ":8090"
	}
	if c.Fanout.Path == "" {
		c.Fanout.Path = "/ws/spectrum"
	}
	if c.Recorder.QueueDepth == 0 {
		c.Recorder.QueueDepth = 8
	}
	if c.Recorder.BlockSamples == 0 {
		c.Recorder.BlockSamples = int(c.Ring.FFTSize)
	}
	if c.Scanner.Window == "" {
		c.Scanner.Window = window.Hann
	}
	if c.Scanner.Averages == 0 {
		c.Scanner.Averages = 4
	}
	// Settle time varies widely across PLL/tuner hardware, so it is
	// configurable with a conservative default rather than a constant.
	if c.Scanner.Settle == 0 {
		c.Scanner.Settle = 50 * time.Millisecond
	}
	if c.Scanner.Dwell == 0 {
		c.Scanner.Dwell = 200 * time.Millisecond
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9090"
	}
	if c.MQTT.Interval == 0 {
		c.MQTT.Interval = 10 * time.Second
	}
}
