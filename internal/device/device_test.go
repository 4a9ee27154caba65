// internal/device/device_test.go
package device

import (
	"errors"
	"testing"
	"time"

	"github.com/tamzrod/analog-sim/internal/regmap"
	"github.com/tamzrod/analog-sim/internal/sensor"
	"github.com/tamzrod/analog-sim/internal/timing"
)

// ---- fakes ----

// blockingDelayer parks the read until released.
type blockingDelayer struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingDelayer) Delay() float64 {
	b.entered <- struct{}{}
	<-b.release
	return 0
}

type countingDelayer struct{ calls int }

func (c *countingDelayer) Delay() float64 { c.calls++; return 0 }

// ---- helpers ----

func newSensors(t *testing.T, n int) []*sensor.Sensor {
	t.Helper()
	out := make([]*sensor.Sensor, n)
	for i := range out {
		s, err := sensor.New(sensor.Config{Channel: i + 1})
		if err != nil {
			t.Fatalf("sensor.New() err=%v", err)
		}
		out[i] = s
	}
	return out
}

func newDevice(t *testing.T, sensors []*sensor.Sensor, cfg Config) *Device {
	t.Helper()
	if cfg.SlaveID == 0 {
		cfg.SlaveID = 1
	}
	d, err := New(sensors, cfg)
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}
	return d
}

// ---- tests ----

func TestRefresh_CopiesSensorRegisters(t *testing.T) {
	sensors := newSensors(t, 2)
	d := newDevice(t, sensors, Config{})

	sensors[0].Update(0.8)
	sensors[1].Update(1.6)
	d.Refresh()

	vals, err := d.Read(InputRegisters, 0, 8)
	if err != nil {
		t.Fatalf("Read err=%v", err)
	}
	if diff := int(vals[0]) - 16383; diff < -1 || diff > 1 {
		t.Fatalf("ch1 got=%d want=16383±1", vals[0])
	}
	if vals[1] != sensor.MaxRegister {
		t.Fatalf("ch2 got=%d want=%d", vals[1], sensor.MaxRegister)
	}
	for i := 2; i < 8; i++ {
		if vals[i] != 0 {
			t.Fatalf("unbacked ch%d got=%d want=0", i+1, vals[i])
		}
	}
}

func TestRefresh_ZeroesUnbackedSlotsEveryCycle(t *testing.T) {
	d := newDevice(t, newSensors(t, 1), Config{})

	d.mu.Lock()
	d.input[5] = 1234
	d.mu.Unlock()

	d.Refresh()
	if got := d.ProcessValues()[5]; got != 0 {
		t.Fatalf("slot 6 not cleared: %d", got)
	}
}

func TestDefaults(t *testing.T) {
	d := newDevice(t, newSensors(t, 2), Config{SlaveID: 5})

	dt, err := d.Read(HoldingRegisters, regmap.DataTypeBase, 8)
	if err != nil {
		t.Fatalf("read data types err=%v", err)
	}
	for i, v := range dt {
		if v != regmap.DataType4To20mA {
			t.Fatalf("ch%d data type got=%d want=4-20mA", i+1, v)
		}
	}

	checks := map[uint16]uint16{
		regmap.UARTParams:      0x0000,
		regmap.DeviceAddress:   5,
		regmap.SoftwareVersion: 0x0064,
	}
	for addr, want := range checks {
		v, err := d.Read(HoldingRegisters, addr, 1)
		if err != nil {
			t.Fatalf("read %#04x err=%v", addr, err)
		}
		if v[0] != want {
			t.Fatalf("register %#04x got=%#04x want=%#04x", addr, v[0], want)
		}
	}
}

func TestRead_UnmappedAddress(t *testing.T) {
	d := newDevice(t, newSensors(t, 1), Config{})

	if _, err := d.Read(InputRegisters, 0x0007, 2); !errors.Is(err, ErrIllegalAddress) {
		t.Fatalf("read past input bank err=%v", err)
	}
	if _, err := d.Read(HoldingRegisters, 0x1006, 4); !errors.Is(err, ErrIllegalAddress) {
		t.Fatalf("read across gap err=%v", err)
	}
	if _, err := d.Read(HoldingRegisters, 0x3000, 1); !errors.Is(err, ErrIllegalAddress) {
		t.Fatalf("read unmapped err=%v", err)
	}
	if _, err := d.Read(InputRegisters, 0, 0); !errors.Is(err, ErrIllegalValue) {
		t.Fatalf("zero quantity err=%v", err)
	}
}

func TestWrite_InputBankReadOnly(t *testing.T) {
	d := newDevice(t, newSensors(t, 1), Config{})

	if err := d.Write(InputRegisters, 0, []uint16{1}); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("expected ErrReadOnly, got %v", err)
	}
}

func TestWrite_ValidatesLikeMutators(t *testing.T) {
	d := newDevice(t, newSensors(t, 1), Config{SlaveID: 3})

	// data type 9 is silently dropped, channel 2 accepts 0.
	if err := d.Write(HoldingRegisters, regmap.DataTypeBase, []uint16{9, 0}); err != nil {
		t.Fatalf("write err=%v", err)
	}
	dt := d.DataTypes()
	if dt[0] != regmap.DataType4To20mA || dt[1] != regmap.DataType0To5V {
		t.Fatalf("data types got=%v", dt)
	}

	if err := d.Write(HoldingRegisters, regmap.DeviceAddress, []uint16{300}); err != nil {
		t.Fatalf("write err=%v", err)
	}
	if d.DeviceAddress() != 3 {
		t.Fatalf("invalid address stored: %d", d.DeviceAddress())
	}

	if err := d.Write(HoldingRegisters, regmap.SoftwareVersion, []uint16{999}); err != nil {
		t.Fatalf("write err=%v", err)
	}
	if v, _ := d.Read(HoldingRegisters, regmap.SoftwareVersion, 1); v[0] != regmap.FirmwareVersion {
		t.Fatalf("version overwritten: %d", v[0])
	}

	if err := d.Write(HoldingRegisters, 0x1FFF, []uint16{1}); !errors.Is(err, ErrIllegalAddress) {
		t.Fatalf("unmapped write err=%v", err)
	}
}

func TestWrite_UnmappedTailRejectsWholeWrite(t *testing.T) {
	d := newDevice(t, newSensors(t, 1), Config{})

	if err := d.Write(HoldingRegisters, regmap.DataTypeEnd, []uint16{1, 1}); !errors.Is(err, ErrIllegalAddress) {
		t.Fatalf("expected ErrIllegalAddress, got %v", err)
	}
	if got := d.DataTypes()[7]; got != regmap.DefaultDataType {
		t.Fatalf("partial write applied: %d", got)
	}
}

func TestConfigMutators(t *testing.T) {
	d := newDevice(t, newSensors(t, 2), Config{SlaveID: 3})

	d.SetUARTParams(regmap.ParityOdd, regmap.Baud38400)
	d.SetDataType(2, regmap.DataTypeRaw)
	d.SetDataType(9, regmap.DataTypeRaw) // ignored
	d.SetDataType(1, 7)                  // ignored
	d.SetDeviceAddress(10)
	d.SetDeviceAddress(0) // ignored

	st := d.ConfigState()
	if st.SlaveID != 3 || st.DeviceAddress != 10 {
		t.Fatalf("ids got=%+v", st)
	}
	if st.BaudRate != 38400 || st.Parity != "O" {
		t.Fatalf("uart got=%d/%s", st.BaudRate, st.Parity)
	}
	if st.SoftwareVersion != "V1.00" {
		t.Fatalf("version got=%s", st.SoftwareVersion)
	}
	if st.DataTypes[0] != regmap.DataType4To20mA || st.DataTypes[1] != regmap.DataTypeRaw {
		t.Fatalf("data types got=%v", st.DataTypes)
	}

	v, _ := d.Read(HoldingRegisters, regmap.UARTParams, 1)
	if v[0] != 0x0203 {
		t.Fatalf("uart word got=%#04x want=0x0203", v[0])
	}
}

func TestConfigState_UnknownUARTCodesFallBack(t *testing.T) {
	d := newDevice(t, newSensors(t, 1), Config{})

	d.SetUARTParams(9, 9)
	baud, parity := d.UARTParams()
	if baud != regmap.DefaultBaud || parity != regmap.DefaultParity {
		t.Fatalf("fallback got=%d/%s", baud, parity)
	}
}

func TestRead_AppliesTimingDelay(t *testing.T) {
	tm := timing.New(timing.Config{Base: 5 * time.Millisecond, Jitter: time.Millisecond})
	d := newDevice(t, newSensors(t, 1), Config{Timer: tm, TimingEnabled: true})

	start := time.Now()
	if _, err := d.Read(InputRegisters, 0, 1); err != nil {
		t.Fatalf("Read err=%v", err)
	}
	if elapsed := time.Since(start); elapsed < 4*time.Millisecond {
		t.Fatalf("read too fast: %v", elapsed)
	}
	if got := tm.Stats().Summary().TotalRequests; got != 1 {
		t.Fatalf("timer recorded %d requests, want 1", got)
	}
}

func TestRead_TimingDisabled(t *testing.T) {
	c := &countingDelayer{}
	d := newDevice(t, newSensors(t, 1), Config{Timer: c, TimingEnabled: false})

	d.Read(InputRegisters, 0, 1)
	if c.calls != 0 {
		t.Fatalf("delay applied while disabled")
	}

	d.SetTimingEnabled(true)
	d.Read(InputRegisters, 0, 1)
	if c.calls != 1 {
		t.Fatalf("delay not applied after enabling")
	}
}

func TestWrite_NoDelay(t *testing.T) {
	c := &countingDelayer{}
	d := newDevice(t, newSensors(t, 1), Config{Timer: c, TimingEnabled: true})

	d.Write(HoldingRegisters, regmap.DeviceAddress, []uint16{7})
	if c.calls != 0 {
		t.Fatalf("write must not be delayed")
	}
}

func TestRead_DelayDoesNotBlockRefresh(t *testing.T) {
	b := &blockingDelayer{entered: make(chan struct{}), release: make(chan struct{})}
	sensors := newSensors(t, 1)
	d := newDevice(t, sensors, Config{Timer: b, TimingEnabled: true})

	got := make(chan []uint16, 1)
	go func() {
		v, _ := d.Read(InputRegisters, 0, 1)
		got <- v
	}()

	<-b.entered

	// Read is parked inside the latency; Refresh must still complete.
	sensors[0].Update(1.6)
	done := make(chan struct{})
	go func() {
		d.Refresh()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Refresh blocked by an in-flight read delay")
	}

	close(b.release)
	v := <-got
	if v[0] != sensor.MaxRegister {
		t.Fatalf("read returned stale data: %d", v[0])
	}
}

func TestUnits_IncludeBroadcast(t *testing.T) {
	d := newDevice(t, newSensors(t, 1), Config{SlaveID: 9})

	units := d.Units()
	if len(units) != 2 || units[0] != 9 || units[1] != regmap.BroadcastAddress {
		t.Fatalf("units got=%v", units)
	}
}

func TestNew_NilSensorLeavesSlotUnbacked(t *testing.T) {
	sensors := newSensors(t, 2)
	sensors[1].Update(1.6)
	d := newDevice(t, []*sensor.Sensor{nil, sensors[1]}, Config{})

	d.Refresh()
	pv := d.ProcessValues()
	if pv[0] != 0 || pv[1] != sensor.MaxRegister {
		t.Fatalf("process values got=%v", pv[:2])
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(newSensors(t, 9), Config{SlaveID: 1}); err == nil {
		t.Fatalf("expected error for 9 channels")
	}
	if _, err := New(newSensors(t, 1), Config{SlaveID: 0}); err == nil {
		t.Fatalf("expected error for slave id 0")
	}
}
