// internal/config/validate.go
package config

import (
	"fmt"
	"strings"

	"github.com/tamzrod/analog-sim/internal/regmap"
	"github.com/tamzrod/analog-sim/internal/sensor"
)

// MaxSlaveID is the highest individually addressable unit on a serial bus.
const MaxSlaveID = 247

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	// ------------------------------------------------------------
	// DEVICE
	// ------------------------------------------------------------

	if cfg.Device.SlaveID < 1 || cfg.Device.SlaveID > MaxSlaveID {
		return fmt.Errorf("device: slave_id %d outside 1..%d", cfg.Device.SlaveID, MaxSlaveID)
	}

	if s := cfg.Device.Serial; s.Port != "" {
		if _, ok := regmap.BaudCode(s.Baud); !ok && s.Baud != 0 {
			return fmt.Errorf("device.serial: unsupported baud %d", s.Baud)
		}
		if _, ok := regmap.ParityCode(strings.ToUpper(s.Parity)); !ok && s.Parity != "" {
			return fmt.Errorf("device.serial: parity %q must be N, E or O", s.Parity)
		}
		if s.DataBits != 0 && (s.DataBits < 7 || s.DataBits > 8) {
			return fmt.Errorf("device.serial: data_bits %d must be 7 or 8", s.DataBits)
		}
		if s.StopBits != 0 && (s.StopBits < 1 || s.StopBits > 2) {
			return fmt.Errorf("device.serial: stop_bits %d must be 1 or 2", s.StopBits)
		}
	}

	// ------------------------------------------------------------
	// TIMING
	// ------------------------------------------------------------

	if cfg.Timing.BaseDelayMs < 0 || cfg.Timing.JitterMs < 0 {
		return fmt.Errorf("timing: base_delay_ms and jitter_ms must be >= 0")
	}
	if cfg.Timing.UpdateIntervalMs < 0 {
		return fmt.Errorf("timing: update_interval_ms must be >= 0")
	}

	// ------------------------------------------------------------
	// NOISE
	// ------------------------------------------------------------

	if cfg.Noise.Percent < 0 || cfg.Noise.Percent > sensor.MaxNoisePercent {
		return fmt.Errorf("noise: percent %v outside 0..%v", cfg.Noise.Percent, sensor.MaxNoisePercent)
	}
	if cfg.Noise.Kind != "" {
		if _, err := sensor.ParseNoiseKind(strings.ToLower(cfg.Noise.Kind)); err != nil {
			return fmt.Errorf("noise: %w", err)
		}
	}

	// ------------------------------------------------------------
	// CHANNELS
	// ------------------------------------------------------------

	if len(cfg.Channels) == 0 {
		return fmt.Errorf("channels: at least one channel required")
	}
	if len(cfg.Channels) > regmap.Channels {
		return fmt.Errorf("channels: %d configured, module has %d", len(cfg.Channels), regmap.Channels)
	}

	for i, ch := range cfg.Channels {
		n := i + 1
		if ch.Start < 0 || ch.Start > sensor.DefaultFullScale {
			return fmt.Errorf("channel %d: start %v outside 0..%v", n, ch.Start, sensor.DefaultFullScale)
		}
		if ch.Target < 0 || ch.Target > sensor.DefaultFullScale {
			return fmt.Errorf("channel %d: target %v outside 0..%v", n, ch.Target, sensor.DefaultFullScale)
		}
		if ch.RatePerMin <= 0 {
			return fmt.Errorf("channel %d: rate_per_min must be > 0", n)
		}
	}

	// ------------------------------------------------------------
	// HUB
	// ------------------------------------------------------------

	h := cfg.Hub
	if h.AffectedChannel < 1 || h.AffectedChannel > len(cfg.Channels) {
		return fmt.Errorf("hub: affected_channel %d outside 1..%d", h.AffectedChannel, len(cfg.Channels))
	}
	if !cfg.Channels[h.AffectedChannel-1].Enabled {
		return fmt.Errorf("hub: affected_channel %d is disabled", h.AffectedChannel)
	}
	if h.DropRate <= 0 {
		return fmt.Errorf("hub: drop_rate must be > 0")
	}
	if h.DropDurationS <= 0 {
		return fmt.Errorf("hub: drop_duration_s must be > 0")
	}

	// ------------------------------------------------------------
	// LOGGING
	// ------------------------------------------------------------

	switch strings.ToLower(cfg.Logging.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging: unknown level %q", cfg.Logging.Level)
	}

	return nil
}
