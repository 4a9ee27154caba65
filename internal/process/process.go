// internal/process/process.go
package process

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/tamzrod/analog-sim/internal/sensor"
)

// AtTargetEpsilon is the absolute tolerance for IsAtTarget.
const AtTargetEpsilon = 0.001

// Config is the per-channel simulation setup.
type Config struct {
	Start      float64
	Target     float64
	RatePerMin float64
}

// State is a display snapshot.
type State struct {
	Channel    int
	Start      float64
	Target     float64
	Current    float64
	RatePerMin float64
	Running    bool
	AtTarget   bool
}

// Setpoint is the raw target/rate pair the hub snapshots and restores verbatim.
type Setpoint struct {
	Target     float64
	RatePerSec float64
}

// Process ramps one physical quantity toward a target at a fixed rate
// and pushes every new value into its sensor.
type Process struct {
	sensor *sensor.Sensor
	max    float64

	mu         sync.Mutex
	start      float64
	target     float64
	ratePerSec float64
	current    float64
	running    bool
	lastUpdate time.Time

	now func() time.Time
}

// New validates cfg against the sensor's range and primes the sensor with the start value.
func New(s *sensor.Sensor, cfg Config) (*Process, error) {
	if s == nil {
		return nil, errors.New("process: sensor required")
	}
	max := s.FullScale()
	if cfg.Start < 0 || cfg.Start > max {
		return nil, fmt.Errorf("process: channel %d: start %v outside 0..%v", s.Channel(), cfg.Start, max)
	}
	if cfg.Target < 0 || cfg.Target > max {
		return nil, fmt.Errorf("process: channel %d: target %v outside 0..%v", s.Channel(), cfg.Target, max)
	}
	if cfg.RatePerMin <= 0 {
		return nil, fmt.Errorf("process: channel %d: rate must be > 0, got %v", s.Channel(), cfg.RatePerMin)
	}

	p := &Process{
		sensor:     s,
		max:        max,
		start:      cfg.Start,
		target:     cfg.Target,
		ratePerSec: cfg.RatePerMin / 60,
		current:    cfg.Start,
		now:        time.Now,
	}
	p.lastUpdate = p.now()
	s.Update(p.current)
	return p, nil
}

func (p *Process) Channel() int { return p.sensor.Channel() }

func (p *Process) Sensor() *sensor.Sensor { return p.sensor }

// Update advances the value by rate × elapsed wall time without overshooting the target.
// No-op while stopped.
func (p *Process) Update() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}

	now := p.now()
	dt := now.Sub(p.lastUpdate).Seconds()
	p.lastUpdate = now
	if dt < 0 {
		dt = 0
	}

	step := p.ratePerSec * dt
	switch {
	case p.current < p.target:
		p.current = math.Min(p.current+step, p.target)
	case p.current > p.target:
		p.current = math.Max(p.current-step, p.target)
	}

	p.sensor.Update(p.current)
}

// Start resumes the ramp. The timestamp is reset so a long pause is not
// applied as a single jump.
func (p *Process) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.running = true
	p.lastUpdate = p.now()
}

func (p *Process) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.running = false
}

// Reset snaps back to the start value and stops.
func (p *Process) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = p.start
	p.running = false
	p.sensor.Update(p.current)
}

func (p *Process) SetTarget(v float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.target = p.clamp(v)
}

// SetRate takes a per-minute rate.
func (p *Process) SetRate(perMin float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ratePerSec = perMin / 60
}

// SetValue forces the current value (clamped) and pushes it to the sensor immediately.
func (p *Process) SetValue(v float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = p.clamp(v)
	p.sensor.Update(p.current)
}

func (p *Process) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Process) IsAtTarget() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.atTargetLocked()
}

// Current returns the unrounded current value.
func (p *Process) Current() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Setpoint returns target and per-second rate together with the current value,
// all read under one lock.
func (p *Process) Setpoint() (Setpoint, float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Setpoint{Target: p.target, RatePerSec: p.ratePerSec}, p.current
}

// Override applies a temporary target and per-second rate and starts the ramp atomically.
func (p *Process) Override(target, ratePerSec float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.target = p.clamp(target)
	p.ratePerSec = ratePerSec
	p.running = true
	p.lastUpdate = p.now()
}

// Restore puts back a saved setpoint verbatim and stops the ramp atomically.
func (p *Process) Restore(sp Setpoint) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.target = sp.Target
	p.ratePerSec = sp.RatePerSec
	p.running = false
}

func (p *Process) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return State{
		Channel:    p.sensor.Channel(),
		Start:      round(p.start, 3),
		Target:     round(p.target, 3),
		Current:    round(p.current, 4),
		RatePerMin: round(p.ratePerSec*60, 3),
		Running:    p.running,
		AtTarget:   p.atTargetLocked(),
	}
}

func (p *Process) atTargetLocked() bool {
	return math.Abs(p.current-p.target) < AtTargetEpsilon
}

func (p *Process) clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(p.max, v))
}

func round(v float64, places int) float64 {
	s := math.Pow(10, float64(places))
	return math.Round(v*s) / s
}
