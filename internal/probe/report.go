// internal/probe/report.go
package probe

import (
	"errors"

	"github.com/tamzrod/analog-sim/internal/regmap"
	"github.com/tamzrod/analog-sim/internal/sensor"
)

// Report is a poll result decoded back into physical units.
type Report struct {
	Registers [regmap.Channels]uint16
	Values    [regmap.Channels]float64
	Config    regmap.ConfigState
	HasConfig bool
}

// Decode interprets a successful poll of DefaultReads.
// Configuration words are optional; process values are not.
func Decode(res PollResult, fullScale float64) (Report, error) {
	var r Report
	if res.Err != nil {
		return r, res.Err
	}

	pv, ok := res.Block(4, regmap.InputBase)
	if !ok || len(pv.Registers) < regmap.Channels {
		return r, errors.New("probe: process-value block missing")
	}
	for i := 0; i < regmap.Channels; i++ {
		r.Registers[i] = pv.Registers[i]
		r.Values[i] = sensor.RegisterToValue(pv.Registers[i], fullScale)
	}

	dt, okDT := res.Block(3, regmap.DataTypeBase)
	uart, okU := res.Block(3, regmap.UARTParams)
	addr, okA := res.Block(3, regmap.DeviceAddress)
	ver, okV := res.Block(3, regmap.SoftwareVersion)
	if okDT && okU && okA && okV && len(dt.Registers) >= regmap.Channels {
		var types [regmap.Channels]uint16
		copy(types[:], dt.Registers)
		r.Config = regmap.Decode(res.Unit, addr.Registers[0], uart.Registers[0], ver.Registers[0], types)
		r.HasConfig = true
	}
	return r, nil
}
