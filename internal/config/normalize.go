// internal/config/normalize.go
package config

import "strings"

const (
	DefaultBaseDelayMs      = 10
	DefaultJitterMs         = 2
	DefaultUpdateIntervalMs = 100
	MinUpdateIntervalMs     = 10
	DefaultRatePerMin       = 6.0
	DefaultDropRate         = 0.1
	DefaultDropDurationS    = 5.0
)

// Normalize applies post-validation normalization.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	// ---- serial line ----
	s := &cfg.Device.Serial
	if s.Baud == 0 {
		s.Baud = 9600
	}
	s.Parity = strings.ToUpper(s.Parity)
	if s.Parity == "" {
		s.Parity = "N"
	}
	if s.DataBits == 0 {
		s.DataBits = 8
	}
	if s.StopBits == 0 {
		s.StopBits = 1
	}

	// ---- driver cadence ----
	if cfg.Timing.UpdateIntervalMs < MinUpdateIntervalMs {
		cfg.Timing.UpdateIntervalMs = MinUpdateIntervalMs
	}

	// ---- noise ----
	cfg.Noise.Kind = strings.ToLower(cfg.Noise.Kind)
	if cfg.Noise.Kind == "" {
		cfg.Noise.Kind = "gaussian"
	}

	cfg.Logging.Level = strings.ToLower(cfg.Logging.Level)
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}
