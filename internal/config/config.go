// internal/config/config.go
package config

type Config struct {
	Device   DeviceConfig    `yaml:"device"`
	Timing   TimingConfig    `yaml:"timing"`
	Noise    NoiseConfig     `yaml:"noise"`
	Channels []ChannelConfig `yaml:"channels"`
	Hub      HubConfig       `yaml:"hub"`
	Logging  LoggingConfig   `yaml:"logging"`
}

// ---- DEVICE ----

type DeviceConfig struct {
	SlaveID uint8        `yaml:"slave_id"`
	Serial  SerialConfig `yaml:"serial"`
	TCP     TCPConfig    `yaml:"tcp"`
}

// SerialConfig is the RTU line. An empty port disables the serial listener.
type SerialConfig struct {
	Port     string `yaml:"port"`
	Baud     int    `yaml:"baud"`
	Parity   string `yaml:"parity"` // N, E, O
	DataBits int    `yaml:"data_bits"`
	StopBits int    `yaml:"stop_bits"`
}

// TCPConfig enables the TCP listener when Listen is set (e.g. ":5020").
type TCPConfig struct {
	Listen string `yaml:"listen"`
}

// ---- TIMING ----

type TimingConfig struct {
	Enabled          bool `yaml:"enabled"`
	BaseDelayMs      int  `yaml:"base_delay_ms"`
	JitterMs         int  `yaml:"jitter_ms"`
	UpdateIntervalMs int  `yaml:"update_interval_ms"`
}

// ---- NOISE ----

type NoiseConfig struct {
	Percent float64 `yaml:"percent"`
	Kind    string  `yaml:"kind"` // gaussian | uniform
	Seed    *int64  `yaml:"seed"`
}

// ---- CHANNELS ----

type ChannelConfig struct {
	Enabled    bool    `yaml:"enabled"`
	Start      float64 `yaml:"start"`
	Target     float64 `yaml:"target"`
	RatePerMin float64 `yaml:"rate_per_min"`
	AutoStart  bool    `yaml:"auto_start"`
}

// ---- HUB ----

type HubConfig struct {
	Enabled         bool    `yaml:"enabled"`
	DropRate        float64 `yaml:"drop_rate"` // units per second
	DropDurationS   float64 `yaml:"drop_duration_s"`
	AffectedChannel int     `yaml:"affected_channel"`
	TriggerSlaveID  uint8   `yaml:"trigger_slave_id"`
	TriggerRegister uint16  `yaml:"trigger_register"`
	TriggerValue    uint16  `yaml:"trigger_value"`
}

// ---- LOGGING ----

type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}
