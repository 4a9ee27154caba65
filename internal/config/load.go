// internal/config/load.go
package config

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Default returns the configuration of a freshly powered-on module:
// one enabled channel at 4 mA, timing on, slave id 1.
func Default() *Config {
	cfg := &Config{
		Device: DeviceConfig{
			SlaveID: 1,
			Serial: SerialConfig{
				Baud:     9600,
				Parity:   "N",
				DataBits: 8,
				StopBits: 1,
			},
		},
		Timing: TimingConfig{
			Enabled:          true,
			BaseDelayMs:      DefaultBaseDelayMs,
			JitterMs:         DefaultJitterMs,
			UpdateIntervalMs: DefaultUpdateIntervalMs,
		},
		Noise: NoiseConfig{Kind: "gaussian"},
		Channels: []ChannelConfig{
			{Enabled: true, Start: 0, Target: 1.0, RatePerMin: DefaultRatePerMin},
		},
		Hub: HubConfig{
			DropRate:        DefaultDropRate,
			DropDurationS:   DefaultDropDurationS,
			AffectedChannel: 1,
		},
		Logging: LoggingConfig{Level: "info"},
	}
	return cfg
}

// Load reads, defaults and validates a YAML file.
// A missing file is not an error: Default() is returned.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	return Parse(raw)
}

// Parse decodes YAML on top of Default(), then normalizes and validates.
func Parse(raw []byte) (*Config, error) {
	cfg := Default()
	cfg.Channels = nil

	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}
	if len(cfg.Channels) == 0 {
		cfg.Channels = Default().Channels
	}

	if err := Validate(cfg); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	Normalize(cfg)
	return cfg, nil
}

// Save writes cfg atomically (temp file + rename).
func Save(path string, cfg *Config) error {
	if err := Validate(cfg); err != nil {
		return errors.Wrap(err, "refusing to save invalid config")
	}

	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "encode config")
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".config-*.yaml")
	if err != nil {
		return errors.Wrap(err, "create temp config")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return errors.Wrap(err, "write config")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close config")
	}
	return errors.Wrapf(os.Rename(tmp.Name(), path), "replace %s", path)
}
