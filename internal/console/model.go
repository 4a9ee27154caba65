// internal/console/model.go
package console

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tamzrod/analog-sim/internal/hub"
	"github.com/tamzrod/analog-sim/internal/regmap"
	"github.com/tamzrod/analog-sim/internal/sensor"
	"github.com/tamzrod/analog-sim/internal/sim"
)

// RefreshInterval is the dashboard repaint cadence.
const RefreshInterval = 250 * time.Millisecond

const maxEvents = 6

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	headerStyle  = lipgloss.NewStyle().Underline(true)
	changedStyle = lipgloss.NewStyle().Reverse(true)
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	activeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	faultStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

type tickMsg time.Time

type eventMsg hub.Event

// Model is the bubbletea dashboard over a Controller.
type Model struct {
	ctrl   Controller
	events <-chan hub.Event

	snap      sim.Snapshot
	prevRegs  [regmap.Channels]uint16
	textInput textinput.Model
	result    Result
	history   []string

	width, height int
}

// NewModel builds the dashboard. events may be nil.
func NewModel(c Controller, events <-chan hub.Event) Model {
	ti := textinput.New()
	ti.Placeholder = "e.g. start 1 | trigger target=0.4 | fault 2 open | help"
	ti.Focus()
	ti.CharLimit = 120
	ti.Width = 80

	return Model{
		ctrl:      c,
		events:    events,
		snap:      c.Snapshot(),
		textInput: ti,
		result:    Result{OK: true, Message: "Type help for commands. Esc or Ctrl+C quits."},
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, doTick(), m.waitEvent())
}

func doTick() tea.Cmd {
	return tea.Tick(RefreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) waitEvent() tea.Cmd {
	if m.events == nil {
		return nil
	}
	ch := m.events
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return eventMsg(ev)
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			line := strings.TrimSpace(m.textInput.Value())
			if line == "quit" || line == "exit" {
				return m, tea.Quit
			}
			if line != "" {
				m.result = Execute(m.ctrl, line)
				m.textInput.SetValue("")
				m.prevRegs = m.snap.Registers
				m.snap = m.ctrl.Snapshot()
			}
			return m, nil
		}

	case tickMsg:
		m.prevRegs = m.snap.Registers
		m.snap = m.ctrl.Snapshot()
		return m, doTick()

	case eventMsg:
		m.history = append(m.history, describe(hub.Event(msg)))
		if len(m.history) > maxEvents {
			m.history = m.history[len(m.history)-maxEvents:]
		}
		return m, m.waitEvent()

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	}

	m.textInput, cmd = m.textInput.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	var b strings.Builder
	s := m.snap

	b.WriteString(titleStyle.Render(fmt.Sprintf(
		"--- 8-ch analog input module  slave=%d  addr=%d  %d %s  fw %s ---",
		s.Config.SlaveID, s.Config.DeviceAddress, s.Config.BaudRate, s.Config.Parity, s.Config.SoftwareVersion,
	)))
	b.WriteString("\n\n")

	b.WriteString(headerStyle.Render(fmt.Sprintf("%-3s %-8s %-8s %-8s %-8s %-7s %-6s %-8s %-10s",
		"ch", "true", "measured", "target", "rate/m", "mA", "reg", "fault", "type")))
	b.WriteString("\n")

	for _, c := range s.Channels {
		if !c.Enabled {
			b.WriteString(fmt.Sprintf("%-3d %s\n", c.Channel, "(disabled)"))
			continue
		}
		run := " "
		if c.Process.Running {
			run = ">"
		}
		reg := s.Registers[c.Channel-1]
		line := fmt.Sprintf("%-3d %-8.4f %-8.4f %-8.3f %-8.3f %-7.2f %-6d %-8s %-10s%s",
			c.Channel, c.Sensor.True, c.Sensor.Measured, c.Process.Target, c.Process.RatePerMin,
			c.Sensor.CurrentMA, reg, c.Sensor.Fault, regmap.DataTypeName(s.Config.DataTypes[c.Channel-1]), run)

		switch {
		case c.Sensor.Fault != sensor.FaultNone:
			line = faultStyle.Render(line)
		case reg != m.prevRegs[c.Channel-1]:
			line = changedStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	// ---- timing ----
	t := s.Timing
	timing := "off"
	if s.TimingEnabled {
		timing = "on"
	}
	b.WriteString(fmt.Sprintf("\ntiming %s  avg %.2f ms  min %.2f  max %.2f  jitter %.2f  requests %d\n",
		timing, t.AvgMs, t.MinMs, t.MaxMs, t.JitterMs, t.TotalRequests))
	if len(s.Histogram) > 0 {
		b.WriteString("latency " + sparkline(s.Histogram, 40) + "\n")
	}

	// ---- hub ----
	h := s.Hub
	hubLine := fmt.Sprintf("hub ch=%d drop=%.3f/s for %s  watch unit=%d reg=%#04x val=%d",
		h.Affected, h.DropRate, h.DropDuration, h.TriggerSlaveID, h.TriggerRegister, h.TriggerValue)
	if h.Active {
		hubLine += activeStyle.Render(fmt.Sprintf("  DISTURBANCE ACTIVE on ch %d", h.ActiveChannel))
	}
	b.WriteString(hubLine + "\n")
	for _, e := range m.history {
		b.WriteString("  " + e + "\n")
	}

	// ---- prompt ----
	status := okStyle.Render(m.result.Message)
	if !m.result.OK {
		status = errStyle.Render(m.result.Message)
	}
	b.WriteString(fmt.Sprintf("\n%s\n%s\n", m.textInput.View(), status))
	return b.String()
}

// describe renders one hub event for the history pane.
func describe(e hub.Event) string {
	at := e.At.Format("15:04:05")
	switch e.Type {
	case hub.EventStarted:
		return fmt.Sprintf("%s ch%d disturbance %.3f -> %.3f at %.3f/s (%s)", at, e.Channel, e.From, e.To, e.Rate, e.Duration.Round(time.Millisecond))
	case hub.EventStopped:
		return fmt.Sprintf("%s ch%d disturbance cancelled, target %.3f restored", at, e.Channel, e.Target)
	case hub.EventRestored:
		return fmt.Sprintf("%s ch%d restored to target %.3f (stopped)", at, e.Channel, e.Target)
	case hub.EventRise:
		return fmt.Sprintf("%s ch%d pressure rise %.3f -> %.3f", at, e.Channel, e.From, e.To)
	}
	return fmt.Sprintf("%s %s", at, e.Type)
}

var sparks = []rune("▁▂▃▄▅▆▇█")

// sparkline renders the newest n samples scaled between their min and max.
func sparkline(samples []float64, n int) string {
	if len(samples) > n {
		samples = samples[len(samples)-n:]
	}
	lo, hi := samples[0], samples[0]
	for _, v := range samples {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	out := make([]rune, len(samples))
	for i, v := range samples {
		idx := 0
		if hi > lo {
			idx = int((v - lo) / (hi - lo) * float64(len(sparks)-1))
		}
		out[i] = sparks[idx]
	}
	return string(out)
}
