// internal/console/commands_test.go
package console

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tamzrod/analog-sim/internal/hub"
	"github.com/tamzrod/analog-sim/internal/regmap"
	"github.com/tamzrod/analog-sim/internal/sensor"
	"github.com/tamzrod/analog-sim/internal/sim"
)

// ---- fake controller ----

type call struct {
	name string
	ch   int
	v    float64
}

type fakeCtrl struct {
	calls    []call
	channels int
	req      hub.Request
	fault    sensor.FaultMode
	noisePct *float64
	kind     *sensor.NoiseKind
	parity   uint8
	baud     uint8
	saveErr  error
	timing   bool
}

func (f *fakeCtrl) check(name string, ch int, v float64) error {
	f.calls = append(f.calls, call{name, ch, v})
	if ch < 1 || ch > f.channels {
		return sim.ErrInvalidChannel
	}
	return nil
}

func (f *fakeCtrl) StartChannel(ch int) error           { return f.check("start", ch, 0) }
func (f *fakeCtrl) StopChannel(ch int) error            { return f.check("stop", ch, 0) }
func (f *fakeCtrl) ResetChannel(ch int) error           { return f.check("reset", ch, 0) }
func (f *fakeCtrl) SetTarget(ch int, v float64) error   { return f.check("target", ch, v) }
func (f *fakeCtrl) SetRate(ch int, v float64) error     { return f.check("rate", ch, v) }
func (f *fakeCtrl) SetPressure(ch int, v float64) error { return f.check("pressure", ch, v) }
func (f *fakeCtrl) SetAffected(ch int) error            { return f.check("affected", ch, 0) }

func (f *fakeCtrl) SetFault(ch int, m sensor.FaultMode) error {
	f.fault = m
	return f.check("fault", ch, 0)
}

func (f *fakeCtrl) SetNoise(ch int, pct *float64, kind *sensor.NoiseKind) error {
	f.noisePct, f.kind = pct, kind
	return f.check("noise", ch, 0)
}

func (f *fakeCtrl) Trigger(req hub.Request) (hub.Outcome, error) {
	f.req = req
	if req.Channel != nil && *req.Channel > f.channels {
		return 0, sim.ErrInvalidChannel
	}
	return hub.OutcomeStarted, nil
}

func (f *fakeCtrl) TriggerRise(v float64) error { return f.check("rise", 1, v) }
func (f *fakeCtrl) SetDropRate(v float64)       { f.calls = append(f.calls, call{"droprate", 0, v}) }

func (f *fakeCtrl) SetDataType(ch int, dt uint16) error {
	return f.check("datatype", ch, float64(dt))
}

func (f *fakeCtrl) SetDeviceAddress(a uint16) error {
	f.calls = append(f.calls, call{"addr", 0, float64(a)})
	return f.saveErr
}

func (f *fakeCtrl) SetUARTParams(p, b uint8) error {
	f.parity, f.baud = p, b
	return f.saveErr
}

func (f *fakeCtrl) SetTimingEnabled(on bool) { f.timing = on }

func (f *fakeCtrl) Snapshot() sim.Snapshot {
	return sim.Snapshot{
		Channels: []sim.ChannelSnapshot{{Channel: 1, Enabled: true}},
		Config:   regmap.ConfigState{BaudRate: 19200, Parity: "E"},
		Hub:      hub.State{DropRate: 0.25},
	}
}

func (f *fakeCtrl) last(t *testing.T) call {
	t.Helper()
	if len(f.calls) == 0 {
		t.Fatalf("no call recorded")
	}
	return f.calls[len(f.calls)-1]
}

// ---- tests ----

func TestExecute_ChannelCommands(t *testing.T) {
	f := &fakeCtrl{channels: 2}

	cases := []struct {
		line string
		want call
	}{
		{"start 1", call{"start", 1, 0}},
		{"STOP 2", call{"stop", 2, 0}},
		{"reset 1", call{"reset", 1, 0}},
		{"target 1 0.8", call{"target", 1, 0.8}},
		{"rate 2 12", call{"rate", 2, 12}},
		{"pressure 1 1.5", call{"pressure", 1, 1.5}},
		{"rise 1.2", call{"rise", 1, 1.2}},
		{"datatype 2 4", call{"datatype", 2, 4}},
		{"affected 2", call{"affected", 2, 0}},
	}
	for _, tc := range cases {
		res := Execute(f, tc.line)
		if !res.OK {
			t.Fatalf("%q rejected: %s", tc.line, res.Message)
		}
		if got := f.last(t); got != tc.want {
			t.Fatalf("%q got=%+v want=%+v", tc.line, got, tc.want)
		}
	}
}

func TestExecute_Rejections(t *testing.T) {
	f := &fakeCtrl{channels: 2}

	lines := []string{
		"",
		"jump 1",
		"start",
		"start x",
		"start 3",
		"target 1 abc",
		"rate 1 0",
		"fault 1 melted",
		"noise 1 80",
		"noise 1 2 pink",
		"datatype 1 9",
		"addr 0",
		"addr 256",
		"uart X 9600",
		"uart N 1234",
		"timing maybe",
		"trigger target",
		"trigger foo=1",
		"trigger duration=-2",
		"trigger ch=5",
	}
	for _, l := range lines {
		if res := Execute(f, l); res.OK {
			t.Fatalf("%q accepted: %s", l, res.Message)
		}
	}
}

func TestExecute_InvalidChannelMessage(t *testing.T) {
	f := &fakeCtrl{channels: 1}

	res := Execute(f, "start 4")
	if res.OK || !strings.Contains(res.Message, "channel 4 is not available") {
		t.Fatalf("result got=%+v", res)
	}
}

func TestExecute_Trigger(t *testing.T) {
	f := &fakeCtrl{channels: 3}

	res := Execute(f, "trigger target=0.4 duration=2.5 rate=0.05 ch=3")
	if !res.OK || res.Message != "disturbance started" {
		t.Fatalf("result got=%+v", res)
	}
	r := f.req
	if r.Target == nil || *r.Target != 0.4 {
		t.Fatalf("target got=%v", r.Target)
	}
	if r.Duration == nil || *r.Duration != 2500*time.Millisecond {
		t.Fatalf("duration got=%v", r.Duration)
	}
	if r.Rate == nil || *r.Rate != 0.05 || r.Channel == nil || *r.Channel != 3 {
		t.Fatalf("request got=%+v", r)
	}

	Execute(f, "trigger")
	if f.req.Target != nil || f.req.Duration != nil || f.req.Channel != nil {
		t.Fatalf("bare trigger carried overrides: %+v", f.req)
	}
}

func TestExecute_FaultAndNoise(t *testing.T) {
	f := &fakeCtrl{channels: 1}

	if res := Execute(f, "fault 1 open"); !res.OK || f.fault != sensor.FaultOpenCircuit {
		t.Fatalf("fault open got=%+v mode=%v", res, f.fault)
	}
	if res := Execute(f, "fault 1 over"); !res.OK || f.fault != sensor.FaultOverRange {
		t.Fatalf("fault over got=%+v mode=%v", res, f.fault)
	}

	if res := Execute(f, "noise 1 2.5 uniform"); !res.OK {
		t.Fatalf("noise rejected: %s", res.Message)
	}
	if f.noisePct == nil || *f.noisePct != 2.5 || f.kind == nil || *f.kind != sensor.NoiseUniform {
		t.Fatalf("noise got=%v %v", f.noisePct, f.kind)
	}

	Execute(f, "noise 1 1")
	if f.kind != nil {
		t.Fatalf("kind changed without being named")
	}
}

func TestExecute_UART(t *testing.T) {
	f := &fakeCtrl{channels: 1}

	res := Execute(f, "uart E 19200")
	if !res.OK || f.parity != regmap.ParityEven || f.baud != regmap.Baud19200 {
		t.Fatalf("uart got=%+v p=%d b=%d", res, f.parity, f.baud)
	}
	if res.Message != "uart 19200 E" {
		t.Fatalf("message got=%q", res.Message)
	}

	// raw codes
	if res := Execute(f, "uart 2 5"); !res.OK || f.parity != regmap.ParityOdd || f.baud != regmap.Baud115200 {
		t.Fatalf("uart codes got=%+v p=%d b=%d", res, f.parity, f.baud)
	}
}

func TestExecute_SaveFailureReported(t *testing.T) {
	f := &fakeCtrl{channels: 1, saveErr: errors.New("disk full")}

	res := Execute(f, "addr 5")
	if res.OK || !strings.Contains(res.Message, "disk full") {
		t.Fatalf("result got=%+v", res)
	}
}

func TestExecute_DropRateAndTiming(t *testing.T) {
	f := &fakeCtrl{channels: 1}

	if res := Execute(f, "droprate 0.25"); !res.OK || res.Message != "drop rate 0.25/s" {
		t.Fatalf("droprate got=%+v", res)
	}
	if res := Execute(f, "timing on"); !res.OK || !f.timing {
		t.Fatalf("timing on got=%+v", res)
	}
	Execute(f, "timing off")
	if f.timing {
		t.Fatalf("timing still on")
	}
}

func TestModel_EnterRunsCommand(t *testing.T) {
	f := &fakeCtrl{channels: 1}
	m := NewModel(f, nil)

	m.textInput.SetValue("start 1")
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)

	if !m.result.OK || m.textInput.Value() != "" {
		t.Fatalf("result got=%+v input=%q", m.result, m.textInput.Value())
	}
	if f.last(t).name != "start" {
		t.Fatalf("command not executed")
	}
	if !strings.Contains(m.View(), "ch") {
		t.Fatalf("view missing table header")
	}
}

func TestModel_EventHistory(t *testing.T) {
	f := &fakeCtrl{channels: 1}
	m := NewModel(f, nil)

	for i := 0; i < maxEvents+2; i++ {
		next, _ := m.Update(eventMsg(hub.Event{Type: hub.EventRise, Channel: 1, To: 1.2}))
		m = next.(Model)
	}
	if len(m.history) != maxEvents {
		t.Fatalf("history len got=%d want=%d", len(m.history), maxEvents)
	}
	if !strings.Contains(m.history[0], "pressure rise") {
		t.Fatalf("history entry got=%q", m.history[0])
	}
}

func TestSparkline(t *testing.T) {
	if got := sparkline([]float64{1, 1, 1}, 10); got != "▁▁▁" {
		t.Fatalf("flat got=%q", got)
	}
	if got := sparkline([]float64{0, 10}, 10); got != "▁█" {
		t.Fatalf("range got=%q", got)
	}
	if got := []rune(sparkline(make([]float64, 50), 40)); len(got) != 40 {
		t.Fatalf("len got=%d want=40", len(got))
	}
}
