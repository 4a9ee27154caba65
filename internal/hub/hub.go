// internal/hub/hub.go
package hub

import (
	"errors"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tamzrod/analog-sim/internal/process"
)

const (
	// MinDropRate is substituted for non-positive drop rates (units per second).
	MinDropRate = 0.01

	// DefaultRestoreBuffer is added to the computed disturbance duration before
	// the setpoint is restored, so the ramp reliably reaches its endpoint first.
	DefaultRestoreBuffer = 500 * time.Millisecond
)

var (
	ErrInvalidChannel = errors.New("hub: invalid channel")
	ErrClosed         = errors.New("hub: closed")
)

// Outcome tells the caller which way a Trigger call toggled the hub.
type Outcome int

const (
	OutcomeStarted Outcome = iota + 1
	OutcomeStopped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeStarted:
		return "started"
	case OutcomeStopped:
		return "stopped"
	}
	return "none"
}

// Config is the hub's static setup.
type Config struct {
	DropRate     float64 // units per second
	DropDuration time.Duration
	Affected     int // 1-based channel

	// Bus write that fires a disturbance when observed.
	TriggerSlaveID  uint8
	TriggerRegister uint16
	TriggerValue    uint16

	RestoreBuffer time.Duration
	Logger        *zap.Logger
}

// Request overrides the configured defaults for one Trigger call.
// Target wins over Duration when both are set. A non-positive Duration falls
// back to the configured drop duration.
type Request struct {
	Target   *float64
	Duration *time.Duration
	Rate     *float64
	Channel  *int
}

// State is a read-only snapshot for the control plane.
type State struct {
	Running         bool
	Active          bool
	ActiveChannel   int
	DropRate        float64
	DropDuration    time.Duration
	Affected        int
	TriggerSlaveID  uint8
	TriggerRegister uint16
	TriggerValue    uint16
}

// stopper is the part of *time.Timer the hub needs.
type stopper interface {
	Stop() bool
}

type stored struct {
	channel  int
	setpoint process.Setpoint
}

// Hub injects time-bounded disturbances into one process at a time.
type Hub struct {
	procs []*process.Process
	bus   *Bus
	log   *zap.Logger

	triggerSlave uint8
	triggerReg   uint16
	triggerVal   uint16
	buffer       time.Duration

	mu       sync.Mutex
	running  bool
	closed   bool
	active   bool
	stored   *stored
	dropRate float64
	dropDur  time.Duration
	affected int
	timer    stopper
	gen      uint64
	wg       sync.WaitGroup

	schedule func(d time.Duration, f func()) stopper
}

// New builds a hub over procs; procs[i] is channel i+1, nil for a disabled channel.
func New(procs []*process.Process, cfg Config) (*Hub, error) {
	if len(procs) == 0 {
		return nil, errors.New("hub: at least one process required")
	}
	if !validChannel(procs, cfg.Affected) {
		return nil, ErrInvalidChannel
	}
	if cfg.DropDuration <= 0 {
		return nil, errors.New("hub: drop duration must be > 0")
	}
	if cfg.RestoreBuffer <= 0 {
		cfg.RestoreBuffer = DefaultRestoreBuffer
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Hub{
		procs:        procs,
		bus:          NewBus(),
		log:          log,
		triggerSlave: cfg.TriggerSlaveID,
		triggerReg:   cfg.TriggerRegister,
		triggerVal:   cfg.TriggerValue,
		buffer:       cfg.RestoreBuffer,
		dropRate:     math.Max(MinDropRate, cfg.DropRate),
		dropDur:      cfg.DropDuration,
		affected:     cfg.Affected,
		schedule: func(d time.Duration, f func()) stopper {
			return time.AfterFunc(d, f)
		},
	}, nil
}

// Events is the subscription point for hub notifications.
func (h *Hub) Events() *Bus { return h.bus }

// Start enables bus-write watching.
func (h *Hub) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed || h.running {
		return
	}
	h.running = true
	h.log.Info("hub monitoring started",
		zap.Uint8("trigger_slave_id", h.triggerSlave),
		zap.Uint16("trigger_register", h.triggerReg),
		zap.Uint16("trigger_value", h.triggerVal),
	)
}

// Close stops watching and cancels a pending restoration.
// No restoration runs after Close returns.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	h.running = false
	h.cancelTimerLocked()
	h.mu.Unlock()

	h.wg.Wait()
	h.log.Info("hub monitoring stopped")
}

// Trigger starts a disturbance, or cancels the active one.
func (h *Hub) Trigger(req Request) (Outcome, error) {
	h.mu.Lock()

	if h.closed {
		h.mu.Unlock()
		return 0, ErrClosed
	}

	if h.active {
		ev := h.cancelLocked()
		h.mu.Unlock()
		h.bus.Publish(ev)
		return OutcomeStopped, nil
	}

	h.active = true

	ch := h.affected
	if req.Channel != nil {
		ch = *req.Channel
	}
	if !validChannel(h.procs, ch) {
		h.active = false
		h.mu.Unlock()
		h.log.Error("trigger rejected: invalid channel", zap.Int("channel", ch))
		return 0, ErrInvalidChannel
	}
	p := h.procs[ch-1]

	rate := h.dropRate
	if req.Rate != nil {
		rate = math.Max(MinDropRate, *req.Rate)
	}

	sp, current := p.Setpoint()
	full := p.Sensor().FullScale()

	var endpoint float64
	var dur time.Duration
	switch {
	case req.Target != nil:
		endpoint = clamp(*req.Target, full)
		dur = seconds(math.Abs(current-endpoint) / rate)
	case req.Duration != nil && *req.Duration > 0:
		dur = *req.Duration
		endpoint = clamp(current-rate*dur.Seconds(), full)
	default:
		dur = h.dropDur
		endpoint = clamp(current-rate*dur.Seconds(), full)
	}

	h.stored = &stored{channel: ch, setpoint: sp}
	p.Override(endpoint, rate)

	h.gen++
	gen := h.gen
	h.wg.Add(1)
	h.timer = h.schedule(dur+h.buffer, func() {
		defer h.wg.Done()
		h.restore(gen)
	})
	h.mu.Unlock()

	h.log.Info("disturbance started",
		zap.Int("channel", ch),
		zap.Float64("from", current),
		zap.Float64("to", endpoint),
		zap.Float64("rate", rate),
		zap.Duration("duration", dur),
	)

	ev := newEvent(EventStarted, ch)
	ev.From = current
	ev.To = endpoint
	ev.Rate = rate
	ev.Duration = dur
	h.bus.Publish(ev)

	return OutcomeStarted, nil
}

// TriggerRise drives the affected process up to target and starts it.
func (h *Hub) TriggerRise(target float64) error {
	h.mu.Lock()
	ch := h.affected
	closed := h.closed
	h.mu.Unlock()

	if closed {
		return ErrClosed
	}
	if !validChannel(h.procs, ch) {
		return ErrInvalidChannel
	}

	p := h.procs[ch-1]
	from := p.Current()
	p.SetTarget(target)
	p.Start()

	sp, _ := p.Setpoint()
	h.log.Info("pressure rise", zap.Int("channel", ch), zap.Float64("from", from), zap.Float64("to", sp.Target))

	ev := newEvent(EventRise, ch)
	ev.From = from
	ev.To = sp.Target
	h.bus.Publish(ev)
	return nil
}

// ObserveWrite inspects a bus write addressed to any unit and fires Trigger
// when it matches the configured trigger register and value.
func (h *Hub) ObserveWrite(unit uint8, addr uint16, values []uint16) {
	h.mu.Lock()
	running := h.running
	h.mu.Unlock()

	if !running || unit != h.triggerSlave {
		return
	}
	if h.triggerReg < addr || int(h.triggerReg-addr) >= len(values) {
		return
	}
	if values[h.triggerReg-addr] != h.triggerVal {
		return
	}

	h.log.Info("bus trigger observed", zap.Uint8("unit", unit), zap.Uint16("register", h.triggerReg))
	if _, err := h.Trigger(Request{}); err != nil {
		h.log.Warn("bus trigger failed", zap.Error(err))
	}
}

// SetDropRate sets the default drop rate; non-positive input becomes MinDropRate.
func (h *Hub) SetDropRate(rate float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropRate = math.Max(MinDropRate, rate)
	h.log.Info("drop rate set", zap.Float64("rate", h.dropRate))
}

// SetAffected changes the default channel. Invalid channels are rejected.
func (h *Hub) SetAffected(ch int) error {
	if !validChannel(h.procs, ch) {
		return ErrInvalidChannel
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.affected = ch
	return nil
}

func (h *Hub) IsActive() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.active
}

func (h *Hub) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	st := State{
		Running:         h.running,
		Active:          h.active,
		DropRate:        h.dropRate,
		DropDuration:    h.dropDur,
		Affected:        h.affected,
		TriggerSlaveID:  h.triggerSlave,
		TriggerRegister: h.triggerReg,
		TriggerValue:    h.triggerVal,
	}
	if h.stored != nil {
		st.ActiveChannel = h.stored.channel
	}
	return st
}

// restore runs on the timer. A stale generation means the disturbance was
// cancelled after the timer fired but before the lock was acquired.
func (h *Hub) restore(gen uint64) {
	h.mu.Lock()
	if h.closed || !h.active || gen != h.gen || h.stored == nil {
		h.mu.Unlock()
		return
	}

	s := h.stored
	h.active = false
	h.stored = nil
	h.timer = nil
	h.procs[s.channel-1].Restore(s.setpoint)
	h.mu.Unlock()

	h.log.Info("disturbance restored", zap.Int("channel", s.channel), zap.Float64("target", s.setpoint.Target))

	ev := newEvent(EventRestored, s.channel)
	ev.Target = s.setpoint.Target
	h.bus.Publish(ev)
}

// cancelLocked ends the active disturbance early and returns the event to publish.
func (h *Hub) cancelLocked() Event {
	h.cancelTimerLocked()
	h.gen++

	s := h.stored
	h.active = false
	h.stored = nil

	ev := newEvent(EventStopped, 0)
	if s == nil {
		return ev
	}

	h.procs[s.channel-1].Restore(s.setpoint)
	h.log.Info("disturbance stopped", zap.Int("channel", s.channel))

	ev.Channel = s.channel
	ev.Target = s.setpoint.Target
	return ev
}

func (h *Hub) cancelTimerLocked() {
	if h.timer == nil {
		return
	}
	if h.timer.Stop() {
		h.wg.Done()
	}
	h.timer = nil
}

func validChannel(procs []*process.Process, ch int) bool {
	return ch >= 1 && ch <= len(procs) && procs[ch-1] != nil
}

func clamp(v, full float64) float64 {
	return math.Max(0, math.Min(full, v))
}

func seconds(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}
