// internal/device/device.go
package device

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/tamzrod/analog-sim/internal/regmap"
	"github.com/tamzrod/analog-sim/internal/sensor"
)

// Bank selects one of the two register spaces.
type Bank uint8

const (
	// InputRegisters hold the process values (FC 4). Read-only from the bus.
	InputRegisters Bank = iota
	// HoldingRegisters hold the configuration words (FC 3/6/16).
	HoldingRegisters
)

func (b Bank) String() string {
	if b == InputRegisters {
		return "input"
	}
	return "holding"
}

// MaxReadQuantity is the protocol limit for one register read.
const MaxReadQuantity = 125

var (
	ErrIllegalAddress = errors.New("device: illegal data address")
	ErrIllegalValue   = errors.New("device: illegal data value")
	ErrReadOnly       = errors.New("device: register bank is read-only")
)

// Delayer is the latency model applied before every bus read.
type Delayer interface {
	Delay() float64
}

// RegisterSource is what Refresh pulls process values from.
type RegisterSource interface {
	Channel() int
	RegisterValue() uint16
}

// Config is the construction-time device configuration.
type Config struct {
	SlaveID       uint8
	Timer         Delayer
	TimingEnabled bool
	Logger        *zap.Logger
}

// Device is the bus-visible register map of the module.
type Device struct {
	slaveID uint8
	sources []RegisterSource
	timer   Delayer
	timing  atomic.Bool
	log     *zap.Logger

	mu        sync.Mutex
	input     [regmap.Channels]uint16
	dataTypes [regmap.Channels]uint16
	uart      uint16
	address   uint16
	version   uint16
}

// New builds the register map with power-on defaults.
// sensors[i] backs channel i+1; nil entries and slots past len(sensors) read 0.
func New(sensors []*sensor.Sensor, cfg Config) (*Device, error) {
	if len(sensors) > regmap.Channels {
		return nil, fmt.Errorf("device: %d channels configured, module has %d", len(sensors), regmap.Channels)
	}
	if !regmap.ValidDeviceAddress(uint16(cfg.SlaveID)) {
		return nil, fmt.Errorf("device: slave id %d out of range", cfg.SlaveID)
	}

	sources := make([]RegisterSource, len(sensors))
	backed := 0
	for i, s := range sensors {
		if s != nil {
			sources[i] = s
			backed++
		}
	}

	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	d := &Device{
		slaveID: cfg.SlaveID,
		sources: sources,
		timer:   cfg.Timer,
		log:     log,
		uart:    regmap.DefaultUARTWord,
		address: uint16(cfg.SlaveID),
		version: regmap.FirmwareVersion,
	}
	for i := range d.dataTypes {
		d.dataTypes[i] = regmap.DefaultDataType
	}
	d.timing.Store(cfg.TimingEnabled)

	log.Info("device initialized", zap.Uint8("slave_id", cfg.SlaveID), zap.Int("channels", backed))
	return d, nil
}

// SlaveID is the bus address the device was started with.
func (d *Device) SlaveID() uint8 { return d.slaveID }

// Units lists every bus address this register map answers to.
func (d *Device) Units() []uint8 {
	return []uint8{d.slaveID, regmap.BroadcastAddress}
}

// Refresh copies every sensor's register value into the process-value bank.
// Unbacked slots are forced to 0 on every call.
func (d *Device) Refresh() {
	var next [regmap.Channels]uint16
	for i, s := range d.sources {
		if s != nil {
			next[i] = s.RegisterValue()
		}
	}

	d.mu.Lock()
	d.input = next
	d.mu.Unlock()
}

// Read serves a bus read. The simulated latency is spent before the register
// lock is taken so a slow read never stalls Refresh.
func (d *Device) Read(bank Bank, addr, count uint16) ([]uint16, error) {
	if d.timing.Load() && d.timer != nil {
		d.timer.Delay()
	}

	if count == 0 || count > MaxReadQuantity {
		return nil, ErrIllegalValue
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]uint16, count)
	for i := range out {
		a := uint32(addr) + uint32(i)
		if a > 0xFFFF {
			return nil, ErrIllegalAddress
		}
		v, ok := d.getLocked(bank, uint16(a))
		if !ok {
			return nil, ErrIllegalAddress
		}
		out[i] = v
	}
	return out, nil
}

// Write serves a bus write. Writes are immediate.
// Every address must be mapped; out-of-range values are dropped without failing the transaction.
func (d *Device) Write(bank Bank, addr uint16, values []uint16) error {
	if bank == InputRegisters {
		return ErrReadOnly
	}
	if len(values) == 0 {
		return ErrIllegalValue
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for i := range values {
		a := uint32(addr) + uint32(i)
		if a > 0xFFFF {
			return ErrIllegalAddress
		}
		if _, ok := d.getLocked(bank, uint16(a)); !ok {
			return ErrIllegalAddress
		}
	}

	for i, v := range values {
		d.putLocked(addr+uint16(i), v)
	}
	return nil
}

func (d *Device) getLocked(bank Bank, a uint16) (uint16, bool) {
	if bank == InputRegisters {
		if a <= regmap.InputEnd {
			return d.input[a-regmap.InputBase], true
		}
		return 0, false
	}

	switch {
	case a >= regmap.DataTypeBase && a <= regmap.DataTypeEnd:
		return d.dataTypes[a-regmap.DataTypeBase], true
	case a == regmap.UARTParams:
		return d.uart, true
	case a == regmap.DeviceAddress:
		return d.address, true
	case a == regmap.SoftwareVersion:
		return d.version, true
	}
	return 0, false
}

// putLocked applies one holding write with the same validation as the mutators.
func (d *Device) putLocked(a, v uint16) {
	switch {
	case a >= regmap.DataTypeBase && a <= regmap.DataTypeEnd:
		d.setDataTypeLocked(int(a-regmap.DataTypeBase)+1, v)
	case a == regmap.UARTParams:
		p, b := regmap.UnpackUART(v)
		d.setUARTLocked(p, b)
	case a == regmap.DeviceAddress:
		d.setAddressLocked(v)
	case a == regmap.SoftwareVersion:
		d.log.Warn("write to software version ignored", zap.Uint16("value", v))
	}
}

// SetTimingEnabled toggles the read latency model at runtime.
func (d *Device) SetTimingEnabled(on bool) { d.timing.Store(on) }

func (d *Device) TimingEnabled() bool { return d.timing.Load() }
