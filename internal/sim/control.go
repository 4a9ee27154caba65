// internal/sim/control.go
package sim

import (
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/tamzrod/analog-sim/internal/config"
	"github.com/tamzrod/analog-sim/internal/hub"
	"github.com/tamzrod/analog-sim/internal/process"
	"github.com/tamzrod/analog-sim/internal/regmap"
	"github.com/tamzrod/analog-sim/internal/sensor"
)

// ErrInvalidChannel is returned by control calls naming a channel that is
// not configured or not enabled.
var ErrInvalidChannel = errors.New("sim: invalid channel")

// --------------------
// channel control
// --------------------

func (s *Sim) StartChannel(ch int) error {
	p, err := s.proc(ch)
	if err != nil {
		return err
	}
	p.Start()
	s.log.Info("channel started", zap.Int("channel", ch))
	return nil
}

func (s *Sim) StopChannel(ch int) error {
	p, err := s.proc(ch)
	if err != nil {
		return err
	}
	p.Stop()
	s.log.Info("channel stopped", zap.Int("channel", ch))
	return nil
}

// ResetChannel snaps the channel back to its start value and stops it.
func (s *Sim) ResetChannel(ch int) error {
	p, err := s.proc(ch)
	if err != nil {
		return err
	}
	p.Reset()
	s.dev.Refresh()
	s.log.Info("channel reset", zap.Int("channel", ch))
	return nil
}

// SetTarget clamps v to the channel range.
func (s *Sim) SetTarget(ch int, v float64) error {
	p, err := s.proc(ch)
	if err != nil {
		return err
	}
	p.SetTarget(v)
	return nil
}

// SetRate takes a per-minute rate; non-positive rates are ignored.
func (s *Sim) SetRate(ch int, perMin float64) error {
	p, err := s.proc(ch)
	if err != nil {
		return err
	}
	if perMin <= 0 {
		s.log.Warn("rate rejected", zap.Int("channel", ch), zap.Float64("rate_per_min", perMin))
		return nil
	}
	p.SetRate(perMin)
	return nil
}

// SetPressure forces the current value and makes it visible on the bus immediately.
func (s *Sim) SetPressure(ch int, v float64) error {
	p, err := s.proc(ch)
	if err != nil {
		return err
	}
	p.SetValue(v)
	s.dev.Refresh()
	return nil
}

func (s *Sim) SetFault(ch int, f sensor.FaultMode) error {
	sn, err := s.sensor(ch)
	if err != nil {
		return err
	}
	sn.SetFault(f)
	s.dev.Refresh()
	s.log.Info("fault set", zap.Int("channel", ch), zap.Stringer("fault", f))
	return nil
}

// SetNoise updates percent and/or distribution; nil leaves a field unchanged.
func (s *Sim) SetNoise(ch int, percent *float64, kind *sensor.NoiseKind) error {
	sn, err := s.sensor(ch)
	if err != nil {
		return err
	}
	sn.SetNoiseConfig(percent, kind)
	s.dev.Refresh()
	return nil
}

// --------------------
// disturbance hub
// --------------------

func (s *Sim) Trigger(req hub.Request) (hub.Outcome, error) {
	out, err := s.hub.Trigger(req)
	if errors.Is(err, hub.ErrInvalidChannel) {
		return out, ErrInvalidChannel
	}
	return out, err
}

func (s *Sim) TriggerRise(target float64) error {
	err := s.hub.TriggerRise(target)
	if errors.Is(err, hub.ErrInvalidChannel) {
		return ErrInvalidChannel
	}
	return err
}

func (s *Sim) SetDropRate(rate float64) { s.hub.SetDropRate(rate) }

func (s *Sim) SetAffected(ch int) error {
	if err := s.hub.SetAffected(ch); err != nil {
		return ErrInvalidChannel
	}
	return nil
}

// --------------------
// device configuration
// --------------------

// SetDataType is ignored for channels outside 1..8 or unknown codes.
func (s *Sim) SetDataType(ch int, dataType uint16) error {
	if ch < 1 || ch > regmap.Channels {
		return ErrInvalidChannel
	}
	s.dev.SetDataType(ch, dataType)
	return nil
}

// SetDeviceAddress stores the address and writes it through to the config
// file. It takes effect as the bus address on the next start.
func (s *Sim) SetDeviceAddress(addr uint16) error {
	s.dev.SetDeviceAddress(addr)
	if s.dev.DeviceAddress() != addr {
		return nil
	}
	if addr > config.MaxSlaveID {
		s.log.Warn("device address not persisted: outside serial unit range", zap.Uint16("address", addr))
		return nil
	}
	return s.persist(func(c *config.Config) { c.Device.SlaveID = uint8(addr) })
}

// SetUARTParams stores the codes and writes the decoded line settings through.
func (s *Sim) SetUARTParams(parity, baud uint8) error {
	s.dev.SetUARTParams(parity, baud)
	rate, letter := s.dev.UARTParams()
	return s.persist(func(c *config.Config) {
		c.Device.Serial.Baud = rate
		c.Device.Serial.Parity = letter
	})
}

func (s *Sim) SetTimingEnabled(on bool) {
	s.dev.SetTimingEnabled(on)
	s.log.Info("timing model toggled", zap.Bool("enabled", on))
}

// Channels is the number of configured channel slots.
func (s *Sim) Channels() int { return len(s.procs) }

// --------------------
// helpers
// --------------------

func (s *Sim) proc(ch int) (*process.Process, error) {
	if ch < 1 || ch > len(s.procs) || s.procs[ch-1] == nil {
		s.log.Warn("invalid channel", zap.Int("channel", ch))
		return nil, ErrInvalidChannel
	}
	return s.procs[ch-1], nil
}

func (s *Sim) sensor(ch int) (*sensor.Sensor, error) {
	if ch < 1 || ch > len(s.sensors) || s.sensors[ch-1] == nil {
		s.log.Warn("invalid channel", zap.Int("channel", ch))
		return nil, ErrInvalidChannel
	}
	return s.sensors[ch-1], nil
}

func (s *Sim) persist(mutate func(*config.Config)) error {
	s.cfgMu.Lock()
	defer s.cfgMu.Unlock()

	mutate(s.cfg)
	if s.cfgPath == "" {
		return nil
	}
	if err := config.Save(s.cfgPath, s.cfg); err != nil {
		s.log.Error("config write-through failed", zap.String("path", s.cfgPath), zap.Error(err))
		return err
	}
	s.log.Info("config saved", zap.String("path", s.cfgPath))
	return nil
}

type uartCodes struct {
	parity uint8
	baud   uint8
}

// baudParityCodes maps the configured line settings onto register codes.
func baudParityCodes(c config.SerialConfig) (uartCodes, bool) {
	b, ok := regmap.BaudCode(c.Baud)
	if !ok {
		return uartCodes{}, false
	}
	p, ok := regmap.ParityCode(strings.ToUpper(c.Parity))
	if !ok {
		return uartCodes{}, false
	}
	return uartCodes{parity: p, baud: b}, true
}
