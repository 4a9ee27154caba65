// internal/sensor/sensor.go
package sensor

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"
)

// Transducer and register geometry.
// These values mirror the emulated 4–20 mA input module and MUST NOT be configurable.
const (
	MinCurrentMA = 4.0
	MaxCurrentMA = 20.0

	// OpenCircuitMA is what the input stage sees on a broken loop.
	OpenCircuitMA = 0.0

	// OverRangeMA is the out-of-band current a defective transmitter drives.
	OverRangeMA = 25.0

	MaxRegister = 32767

	// DefaultFullScale is the upper range value of the default 0–1.6 bar transmitter.
	DefaultFullScale = 1.6

	// MaxNoisePercent bounds the configurable noise magnitude.
	MaxNoisePercent = 50.0
)

// OverRangeRegister is the register value reported under FaultOverRange.
// It is deliberately outside [0, MaxRegister].
var OverRangeRegister = currentToRegister(OverRangeMA)

// FaultMode is the simulated fault state of a channel.
type FaultMode uint8

const (
	FaultNone FaultMode = iota
	FaultOpenCircuit
	FaultOverRange
)

func (f FaultMode) String() string {
	switch f {
	case FaultNone:
		return "none"
	case FaultOpenCircuit:
		return "open-circuit"
	case FaultOverRange:
		return "over-range"
	default:
		return fmt.Sprintf("fault(%d)", uint8(f))
	}
}

// ParseFault accepts the names printed by String plus the short aliases used on the console.
func ParseFault(s string) (FaultMode, error) {
	switch s {
	case "", "none", "ok":
		return FaultNone, nil
	case "open-circuit", "open", "wire-break":
		return FaultOpenCircuit, nil
	case "over-range", "over", "defect":
		return FaultOverRange, nil
	}
	return FaultNone, fmt.Errorf("sensor: unknown fault mode %q", s)
}

// NoiseKind selects the noise distribution.
type NoiseKind uint8

const (
	NoiseGaussian NoiseKind = iota
	NoiseUniform
)

func (k NoiseKind) String() string {
	if k == NoiseUniform {
		return "uniform"
	}
	return "gaussian"
}

// ParseNoiseKind maps a config/console string to a NoiseKind.
func ParseNoiseKind(s string) (NoiseKind, error) {
	switch s {
	case "", "gaussian":
		return NoiseGaussian, nil
	case "uniform":
		return NoiseUniform, nil
	}
	return NoiseGaussian, fmt.Errorf("sensor: unknown noise kind %q", s)
}

// Config is the construction-time configuration of one channel.
type Config struct {
	Channel      int
	NoisePercent float64
	Noise        NoiseKind

	// Seed makes the noise stream reproducible. The channel number is added
	// so channels sharing a seed still get independent streams.
	// nil means a time-seeded stream.
	Seed *int64

	// FullScale is the upper range value in physical units. Zero means DefaultFullScale.
	FullScale float64
}

// Reading is the unrounded result of one Update.
type Reading struct {
	True      float64
	Measured  float64
	CurrentMA float64
	Register  uint16
}

// State is a display snapshot.
type State struct {
	Channel   int
	True      float64
	Measured  float64
	CurrentMA float64
	Register  uint16
	Fault     FaultMode
	NoisePct  float64
	Noise     NoiseKind
}

// Sensor simulates one 4–20 mA pressure transmitter channel.
type Sensor struct {
	channel   int
	fullScale float64

	mu       sync.Mutex
	noisePct float64
	noise    NoiseKind
	fault    FaultMode
	rng      *rand.Rand
	last     Reading
}

// New validates cfg and builds a sensor whose initial reading corresponds to 0 (4 mA).
func New(cfg Config) (*Sensor, error) {
	if cfg.Channel < 1 {
		return nil, fmt.Errorf("sensor: channel %d must be >= 1", cfg.Channel)
	}
	if cfg.FullScale == 0 {
		cfg.FullScale = DefaultFullScale
	}
	if cfg.FullScale < 0 || math.IsNaN(cfg.FullScale) || math.IsInf(cfg.FullScale, 0) {
		return nil, fmt.Errorf("sensor: channel %d: invalid full scale %v", cfg.Channel, cfg.FullScale)
	}
	if cfg.NoisePercent < 0 || cfg.NoisePercent > MaxNoisePercent {
		return nil, fmt.Errorf("sensor: channel %d: noise percent %v outside 0..%v", cfg.Channel, cfg.NoisePercent, MaxNoisePercent)
	}
	if cfg.Noise != NoiseGaussian && cfg.Noise != NoiseUniform {
		return nil, errors.New("sensor: invalid noise kind")
	}

	var src rand.Source
	if cfg.Seed != nil {
		src = rand.NewSource(*cfg.Seed + int64(cfg.Channel))
	} else {
		src = rand.NewSource(time.Now().UnixNano() + int64(cfg.Channel))
	}

	return &Sensor{
		channel:   cfg.Channel,
		fullScale: cfg.FullScale,
		noisePct:  cfg.NoisePercent,
		noise:     cfg.Noise,
		rng:       rand.New(src),
		last:      Reading{CurrentMA: MinCurrentMA},
	}, nil
}

func (s *Sensor) Channel() int { return s.channel }

func (s *Sensor) FullScale() float64 { return s.fullScale }

// Update feeds a new true value through the fault, noise and transducer stages.
func (s *Sensor) Update(trueValue float64) Reading {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.last = s.evalLocked(s.clamp(trueValue))
	return s.last
}

// evalLocked runs the fault, noise and transducer stages on an already clamped value.
func (s *Sensor) evalLocked(trueValue float64) Reading {
	r := Reading{True: trueValue}

	switch s.fault {
	case FaultOpenCircuit:
		r.Measured = 0
		r.CurrentMA = OpenCircuitMA
		r.Register = 0
	case FaultOverRange:
		r.Measured = r.True
		r.CurrentMA = OverRangeMA
		r.Register = OverRangeRegister
	default:
		r.Measured = s.addNoise(r.True)
		r.CurrentMA = s.valueToCurrent(r.Measured)
		r.Register = currentToRegister(r.CurrentMA)
	}
	return r
}

// RegisterValue returns the register encoding of the last reading.
func (s *Sensor) RegisterValue() uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last.Register
}

// State returns a rounded snapshot for display. It never mutates the sensor.
func (s *Sensor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		Channel:   s.channel,
		True:      round(s.last.True, 4),
		Measured:  round(s.last.Measured, 4),
		CurrentMA: round(s.last.CurrentMA, 2),
		Register:  s.last.Register,
		Fault:     s.fault,
		NoisePct:  s.noisePct,
		Noise:     s.noise,
	}
}

// SetFault re-evaluates the last true value, so the fault shows immediately
// even while the owning process is stopped.
func (s *Sensor) SetFault(f FaultMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fault = f
	s.last = s.evalLocked(s.last.True)
}

// SetNoiseConfig updates whichever fields are non-nil. Percent is clamped to 0..MaxNoisePercent.
func (s *Sensor) SetNoiseConfig(percent *float64, kind *NoiseKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if percent != nil {
		s.noisePct = math.Max(0, math.Min(MaxNoisePercent, *percent))
	}
	if kind != nil {
		s.noise = *kind
	}
	s.last = s.evalLocked(s.last.True)
}

func (s *Sensor) clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(s.fullScale, v))
}

// addNoise applies multiplicative noise. Gaussian sigma is a third of the
// percentage so that ±p% covers ~99.7% of samples.
func (s *Sensor) addNoise(v float64) float64 {
	if s.noisePct <= 0 {
		return v
	}
	f := s.noisePct / 100

	var n float64
	switch s.noise {
	case NoiseUniform:
		n = (s.rng.Float64()*2 - 1) * f
	default:
		n = s.rng.NormFloat64() * (f / 3)
	}
	return s.clamp(v * (1 + n))
}

func (s *Sensor) valueToCurrent(v float64) float64 {
	return MinCurrentMA + (v/s.fullScale)*(MaxCurrentMA-MinCurrentMA)
}

// currentToRegister maps the 4–20 mA span onto 0..MaxRegister.
// Only the out-of-band over-range current escapes the clamp.
func currentToRegister(ma float64) uint16 {
	ratio := (ma - MinCurrentMA) / (MaxCurrentMA - MinCurrentMA)
	v := math.Round(ratio * MaxRegister)
	if ma == OverRangeMA {
		return uint16(v)
	}
	if v < 0 {
		return 0
	}
	if v > MaxRegister {
		return MaxRegister
	}
	return uint16(v)
}

// RegisterToValue inverts the transducer chain for a register read back by a controller.
func RegisterToValue(reg uint16, fullScale float64) float64 {
	return float64(reg) / MaxRegister * fullScale
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
