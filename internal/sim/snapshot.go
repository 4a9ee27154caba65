// internal/sim/snapshot.go
package sim

import (
	"github.com/tamzrod/analog-sim/internal/hub"
	"github.com/tamzrod/analog-sim/internal/process"
	"github.com/tamzrod/analog-sim/internal/regmap"
	"github.com/tamzrod/analog-sim/internal/sensor"
	"github.com/tamzrod/analog-sim/internal/timing"
)

// ChannelSnapshot is one channel's process and sensor state.
// Enabled is false for configured-but-disabled slots; the states are then zero.
type ChannelSnapshot struct {
	Channel int
	Enabled bool
	Process process.State
	Sensor  sensor.State
}

// Snapshot is a side-effect-free view of the whole module for the control plane.
type Snapshot struct {
	Channels      []ChannelSnapshot
	Registers     [regmap.Channels]uint16
	Config        regmap.ConfigState
	TimingEnabled bool
	Timing        timing.Summary
	Histogram     []float64
	Hub           hub.State
}

func (s *Sim) Snapshot() Snapshot {
	snap := Snapshot{
		Channels:      make([]ChannelSnapshot, len(s.procs)),
		Registers:     s.dev.ProcessValues(),
		Config:        s.dev.ConfigState(),
		TimingEnabled: s.dev.TimingEnabled(),
		Timing:        s.timer.Stats().Summary(),
		Histogram:     s.timer.Stats().Histogram(),
		Hub:           s.hub.State(),
	}
	for i, p := range s.procs {
		cs := ChannelSnapshot{Channel: i + 1}
		if p != nil {
			cs.Enabled = true
			cs.Process = p.State()
			cs.Sensor = s.sensors[i].State()
		}
		snap.Channels[i] = cs
	}
	return snap
}
