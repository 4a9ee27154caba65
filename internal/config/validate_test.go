// internal/config/validate_test.go
package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// helper to build a valid config quickly
func valid(channels int) *Config {
	cfg := Default()
	cfg.Channels = nil
	for i := 0; i < channels; i++ {
		cfg.Channels = append(cfg.Channels, ChannelConfig{
			Enabled:    true,
			Start:      0,
			Target:     1.0,
			RatePerMin: 6,
		})
	}
	return cfg
}

// ---- tests ----

func TestValidate_Default(t *testing.T) {
	if err := Validate(Default()); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestValidate_Rejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"slave id zero", func(c *Config) { c.Device.SlaveID = 0 }, "slave_id"},
		{"slave id too high", func(c *Config) { c.Device.SlaveID = 248 }, "slave_id"},
		{"odd baud", func(c *Config) { c.Device.Serial.Port = "/dev/ttyUSB0"; c.Device.Serial.Baud = 1234 }, "baud"},
		{"bad parity", func(c *Config) { c.Device.Serial.Port = "/dev/ttyUSB0"; c.Device.Serial.Parity = "X" }, "parity"},
		{"negative jitter", func(c *Config) { c.Timing.JitterMs = -1 }, "jitter_ms"},
		{"noise too high", func(c *Config) { c.Noise.Percent = 51 }, "percent"},
		{"noise kind", func(c *Config) { c.Noise.Kind = "pink" }, "noise kind"},
		{"no channels", func(c *Config) { c.Channels = nil }, "at least one"},
		{"nine channels", func(c *Config) { c.Channels = valid(9).Channels }, "module has 8"},
		{"start above full scale", func(c *Config) { c.Channels[0].Start = 1.7 }, "start"},
		{"negative target", func(c *Config) { c.Channels[0].Target = -0.1 }, "target"},
		{"zero rate", func(c *Config) { c.Channels[0].RatePerMin = 0 }, "rate_per_min"},
		{"affected out of range", func(c *Config) { c.Hub.AffectedChannel = 3 }, "affected_channel"},
		{"affected disabled", func(c *Config) { c.Hub.Enabled = true; c.Channels[0].Enabled = false }, "disabled"},
		{"zero drop rate", func(c *Config) { c.Hub.DropRate = 0 }, "drop_rate"},
		{"zero drop duration", func(c *Config) { c.Hub.DropDurationS = 0 }, "drop_duration_s"},
		{"log level", func(c *Config) { c.Logging.Level = "chatty" }, "level"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid(2)
			tc.mutate(cfg)
			err := Validate(cfg)
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestValidate_DoesNotMutate(t *testing.T) {
	cfg := valid(1)
	cfg.Noise.Kind = "Uniform"
	cfg.Timing.UpdateIntervalMs = 1

	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Noise.Kind != "Uniform" || cfg.Timing.UpdateIntervalMs != 1 {
		t.Fatalf("Validate mutated config: %+v", cfg)
	}
}

func TestNormalize(t *testing.T) {
	cfg := valid(1)
	cfg.Device.Serial = SerialConfig{Port: "/dev/ttyS0", Parity: "e"}
	cfg.Noise.Kind = ""
	cfg.Timing.UpdateIntervalMs = 1

	Normalize(cfg)

	s := cfg.Device.Serial
	if s.Baud != 9600 || s.Parity != "E" || s.DataBits != 8 || s.StopBits != 1 {
		t.Fatalf("serial got=%+v", s)
	}
	if cfg.Timing.UpdateIntervalMs != MinUpdateIntervalMs {
		t.Fatalf("update interval got=%d want=%d", cfg.Timing.UpdateIntervalMs, MinUpdateIntervalMs)
	}
	if cfg.Noise.Kind != "gaussian" {
		t.Fatalf("noise kind got=%q", cfg.Noise.Kind)
	}
}

func TestParse(t *testing.T) {
	raw := []byte(`
device:
  slave_id: 5
  tcp:
    listen: ":5020"
timing:
  enabled: false
noise:
  percent: 1.5
  kind: uniform
  seed: 42
channels:
  - enabled: true
    start: 0.2
    target: 1.2
    rate_per_min: 12
    auto_start: true
  - enabled: false
    start: 0
    target: 0
    rate_per_min: 1
hub:
  affected_channel: 1
  drop_rate: 0.2
  drop_duration_s: 3
  trigger_slave_id: 9
  trigger_register: 16
  trigger_value: 1
`)
	cfg, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse err=%v", err)
	}
	if cfg.Device.SlaveID != 5 || cfg.Device.TCP.Listen != ":5020" {
		t.Fatalf("device got=%+v", cfg.Device)
	}
	if cfg.Timing.Enabled {
		t.Fatalf("timing.enabled not overridden")
	}
	// Omitted fields keep their defaults.
	if cfg.Timing.BaseDelayMs != DefaultBaseDelayMs {
		t.Fatalf("base delay got=%d want=%d", cfg.Timing.BaseDelayMs, DefaultBaseDelayMs)
	}
	if cfg.Noise.Seed == nil || *cfg.Noise.Seed != 42 {
		t.Fatalf("seed got=%v", cfg.Noise.Seed)
	}
	if len(cfg.Channels) != 2 || !cfg.Channels[0].AutoStart || cfg.Channels[1].Enabled {
		t.Fatalf("channels got=%+v", cfg.Channels)
	}
	if cfg.Hub.TriggerSlaveID != 9 || cfg.Hub.TriggerRegister != 16 {
		t.Fatalf("hub got=%+v", cfg.Hub)
	}
}

func TestParse_UnknownField(t *testing.T) {
	if _, err := Parse([]byte("device:\n  slave: 3\n")); err == nil {
		t.Fatalf("expected error for unknown field")
	}
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte("device:\n  slave_id: 0\n"))
	if err == nil || !strings.Contains(err.Error(), "invalid config") {
		t.Fatalf("expected wrapped validation error, got %v", err)
	}
}

func TestLoad_MissingFileGivesDefault(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load err=%v", err)
	}
	if cfg.Device.SlaveID != 1 || len(cfg.Channels) != 1 {
		t.Fatalf("default got=%+v", cfg)
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sim.yaml")

	cfg := valid(3)
	cfg.Device.SlaveID = 12
	cfg.Device.Serial.Baud = 38400
	cfg.Device.Serial.Parity = "O"

	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save err=%v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load err=%v", err)
	}
	if got.Device.SlaveID != 12 || got.Device.Serial.Baud != 38400 || got.Device.Serial.Parity != "O" {
		t.Fatalf("device got=%+v", got.Device)
	}
	if len(got.Channels) != 3 {
		t.Fatalf("channels got=%d want=3", len(got.Channels))
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Fatalf("temp file left behind: %d entries", len(entries))
	}
}

func TestSave_RejectsInvalid(t *testing.T) {
	cfg := valid(1)
	cfg.Device.SlaveID = 0
	if err := Save(filepath.Join(t.TempDir(), "x.yaml"), cfg); err == nil {
		t.Fatalf("expected error")
	}
}
