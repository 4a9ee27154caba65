// internal/sim/sim.go
package sim

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goburrow/serial"
	"go.uber.org/zap"

	"github.com/tamzrod/analog-sim/internal/config"
	"github.com/tamzrod/analog-sim/internal/device"
	"github.com/tamzrod/analog-sim/internal/hub"
	"github.com/tamzrod/analog-sim/internal/process"
	"github.com/tamzrod/analog-sim/internal/sensor"
	"github.com/tamzrod/analog-sim/internal/server"
	"github.com/tamzrod/analog-sim/internal/timing"
)

// FaultBackoff is the pause after a failed driver iteration.
const FaultBackoff = 100 * time.Millisecond

// Options wires a Sim.
type Options struct {
	Config *config.Config

	// ConfigPath receives write-through saves of the device address and
	// UART parameters. Empty disables persistence.
	ConfigPath string

	Logger *zap.Logger
}

// Sim owns every component of one emulated module.
type Sim struct {
	log      *zap.Logger
	interval time.Duration

	sensors []*sensor.Sensor // index = channel-1, nil when disabled
	procs   []*process.Process
	timer   *timing.Timer
	dev     *device.Device
	hub     *hub.Hub
	srv     *server.Server

	hubEnabled bool

	cfgMu   sync.Mutex
	cfg     *config.Config
	cfgPath string

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New builds the component graph from a validated, normalized config.
func New(opts Options) (*Sim, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, errors.New("sim: config required")
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	kind, err := sensor.ParseNoiseKind(strings.ToLower(cfg.Noise.Kind))
	if err != nil {
		return nil, err
	}

	s := &Sim{
		log:        log,
		interval:   time.Duration(cfg.Timing.UpdateIntervalMs) * time.Millisecond,
		sensors:    make([]*sensor.Sensor, len(cfg.Channels)),
		procs:      make([]*process.Process, len(cfg.Channels)),
		hubEnabled: cfg.Hub.Enabled,
		cfg:        cfg,
		cfgPath:    opts.ConfigPath,
	}
	if s.interval < config.MinUpdateIntervalMs*time.Millisecond {
		s.interval = config.MinUpdateIntervalMs * time.Millisecond
	}

	// ---- channels ----
	for i, ch := range cfg.Channels {
		if !ch.Enabled {
			continue
		}
		sn, err := sensor.New(sensor.Config{
			Channel:      i + 1,
			NoisePercent: cfg.Noise.Percent,
			Noise:        kind,
			Seed:         cfg.Noise.Seed,
		})
		if err != nil {
			return nil, err
		}
		p, err := process.New(sn, process.Config{
			Start:      ch.Start,
			Target:     ch.Target,
			RatePerMin: ch.RatePerMin,
		})
		if err != nil {
			return nil, err
		}
		s.sensors[i] = sn
		s.procs[i] = p
	}

	// ---- device ----
	s.timer = timing.New(timing.Config{
		Base:   time.Duration(cfg.Timing.BaseDelayMs) * time.Millisecond,
		Jitter: time.Duration(cfg.Timing.JitterMs) * time.Millisecond,
		Seed:   cfg.Noise.Seed,
	})

	s.dev, err = device.New(s.sensors, device.Config{
		SlaveID:       cfg.Device.SlaveID,
		Timer:         s.timer,
		TimingEnabled: cfg.Timing.Enabled,
		Logger:        log.Named("device"),
	})
	if err != nil {
		return nil, err
	}
	if code, ok := baudParityCodes(cfg.Device.Serial); ok {
		s.dev.SetUARTParams(code.parity, code.baud)
	}
	s.dev.Refresh()

	// ---- hub ----
	s.hub, err = hub.New(s.procs, hub.Config{
		DropRate:        cfg.Hub.DropRate,
		DropDuration:    time.Duration(cfg.Hub.DropDurationS * float64(time.Second)),
		Affected:        cfg.Hub.AffectedChannel,
		TriggerSlaveID:  cfg.Hub.TriggerSlaveID,
		TriggerRegister: cfg.Hub.TriggerRegister,
		TriggerValue:    cfg.Hub.TriggerValue,
		Logger:          log.Named("hub"),
	})
	if err != nil {
		return nil, fmt.Errorf("sim: hub: %w", err)
	}

	// ---- protocol server ----
	s.srv = server.New(log.Named("server"))
	s.srv.Mount(s.dev, s.dev.Units()...)
	if s.hubEnabled {
		s.srv.OnWrite(s.hub.ObserveWrite)
	}

	return s, nil
}

// Start auto-starts configured channels, opens the listeners and launches
// the periodic driver. ctx bounds the driver's lifetime.
func (s *Sim) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return errors.New("sim: already started")
	}

	s.cfgMu.Lock()
	dc := s.cfg.Device
	channels := s.cfg.Channels
	s.cfgMu.Unlock()

	if dc.TCP.Listen != "" {
		if err := s.srv.ListenTCP(dc.TCP.Listen); err != nil {
			return fmt.Errorf("sim: listen tcp %s: %w", dc.TCP.Listen, err)
		}
	}
	if dc.Serial.Port != "" {
		if err := s.srv.ListenRTU(SerialConfig(dc.Serial)); err != nil {
			s.srv.Close()
			return fmt.Errorf("sim: open %s: %w", dc.Serial.Port, err)
		}
	}
	if dc.TCP.Listen == "" && dc.Serial.Port == "" {
		s.log.Warn("no transport configured; register map reachable from the console only")
	}

	for i, ch := range channels {
		if ch.AutoStart && s.procs[i] != nil {
			s.procs[i].Start()
			s.log.Info("channel auto-started", zap.Int("channel", i+1))
		}
	}

	if s.hubEnabled {
		s.hub.Start()
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(ctx, s.done)

	s.log.Info("simulation started",
		zap.Uint8("slave_id", s.dev.SlaveID()),
		zap.Duration("update_interval", s.interval),
		zap.Bool("timing", s.dev.TimingEnabled()),
	)
	return nil
}

// Stop cancels the driver, waits for it to exit, cancels any pending hub
// restoration and closes the listeners.
func (s *Sim) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	s.hub.Close()
	s.srv.Close()
	s.log.Info("simulation stopped")
}

// run is the periodic driver: every process steps, then the register map refreshes.
func (s *Sim) run(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.step(); err != nil {
				s.log.Error("update loop fault", zap.Error(err))
				select {
				case <-ctx.Done():
					return
				case <-time.After(FaultBackoff):
				}
			}
		}
	}
}

// step runs one driver iteration and turns a panic into an error.
func (s *Sim) step() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sim: update panicked: %v", r)
		}
	}()

	for _, p := range s.procs {
		if p != nil {
			p.Update()
		}
	}
	s.dev.Refresh()
	return nil
}

// Device exposes the register map, e.g. for an in-process protocol client.
func (s *Sim) Device() *device.Device { return s.dev }

// Events is the hub's event bus.
func (s *Sim) Events() *hub.Bus { return s.hub.Events() }

// SerialConfig converts the config's serial section for the RTU listener.
func SerialConfig(c config.SerialConfig) *serial.Config {
	return &serial.Config{
		Address:  c.Port,
		BaudRate: c.Baud,
		DataBits: c.DataBits,
		StopBits: c.StopBits,
		Parity:   c.Parity,
		Timeout:  time.Second,
	}
}
