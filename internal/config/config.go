package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// SerialConfig selects the serial line used as the output transport.
type SerialConfig struct {
	Device string `yaml:"device"`
	Baud   int    `yaml:"baud"`
	// Buffer is the batch size in bytes; 0 writes every message straight through.
	Buffer int `yaml:"buffer"`
}

// OutputConfig controls how messages are encoded.
type OutputConfig struct {
	// Port, when set, sends to a MIDI output port matching this name instead
	// of the serial device.
	Port          string `yaml:"port,omitempty"`
	Channel       int    `yaml:"channel"`
	RunningStatus bool   `yaml:"running_status"`
}

// InputConfig tunes which input the monitor connects to.
type InputConfig struct {
	Preferred []string `yaml:"preferred"`
	Excluded  []string `yaml:"excluded"`
}

// MetricsConfig enables the Prometheus endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `yaml:"addr,omitempty"`
}

// Config is the main configuration structure
type Config struct {
	Serial  SerialConfig  `yaml:"serial"`
	Output  OutputConfig  `yaml:"output"`
	Input   InputConfig   `yaml:"input"`
	Metrics MetricsConfig `yaml:"metrics"`
	Debug   bool          `yaml:"debug"`
}

// Default returns a config with sensible defaults
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			Device: "/dev/ttyACM0",
			Baud:   31250,
		},
		Output: OutputConfig{
			Channel: 1,
		},
		Input: InputConfig{
			Preferred: []string{"Launchkey", "Novation"},
			Excluded:  []string{"Midi Through", "Through Port", "Dummy"},
		},
	}
}

// DefaultPath returns ~/.config/lou-midi/config.yaml
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "lou-midi", "config.yaml"), nil
}

// Load reads the config at path over the defaults. A missing file is not an
// error. The result is not validated; call Validate once any overrides are
// applied.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects values no transport can work with.
func (c *Config) Validate() error {
	if c.Output.Channel < 1 || c.Output.Channel > 16 {
		return fmt.Errorf("output.channel %d out of range 1-16", c.Output.Channel)
	}
	if c.Output.Port == "" && c.Serial.Baud <= 0 {
		return fmt.Errorf("serial.baud must be positive, got %d", c.Serial.Baud)
	}
	if c.Serial.Buffer < 0 {
		return fmt.Errorf("serial.buffer must not be negative, got %d", c.Serial.Buffer)
	}
	return nil
}

// Save writes the config to path, creating its directory.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
