// internal/console/commands.go
package console

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tamzrod/analog-sim/internal/hub"
	"github.com/tamzrod/analog-sim/internal/regmap"
	"github.com/tamzrod/analog-sim/internal/sensor"
	"github.com/tamzrod/analog-sim/internal/sim"
)

// Controller is the control surface the console drives.
type Controller interface {
	StartChannel(ch int) error
	StopChannel(ch int) error
	ResetChannel(ch int) error
	SetTarget(ch int, v float64) error
	SetRate(ch int, perMin float64) error
	SetPressure(ch int, v float64) error
	SetFault(ch int, f sensor.FaultMode) error
	SetNoise(ch int, percent *float64, kind *sensor.NoiseKind) error

	Trigger(req hub.Request) (hub.Outcome, error)
	TriggerRise(target float64) error
	SetDropRate(rate float64)
	SetAffected(ch int) error

	SetDataType(ch int, dataType uint16) error
	SetDeviceAddress(addr uint16) error
	SetUARTParams(parity, baud uint8) error
	SetTimingEnabled(on bool)

	Snapshot() sim.Snapshot
}

// Result is the structured outcome of one command.
type Result struct {
	OK      bool
	Message string
}

func ok(format string, args ...any) Result {
	return Result{OK: true, Message: fmt.Sprintf(format, args...)}
}

func rejected(format string, args ...any) Result {
	return Result{OK: false, Message: fmt.Sprintf(format, args...)}
}

// Help lists the command language.
const Help = `start|stop|reset N        channel ramp control
target N V | rate N V/min | pressure N V
trigger [target=V] [duration=S] [rate=V/s] [ch=N]   toggle disturbance
rise V | droprate V/s | affected N
fault N none|open|over | noise N PCT [gaussian|uniform]
datatype N 0..4 | addr 1..255 | uart PARITY BAUD | timing on|off`

// Execute parses and runs one command line against c.
func Execute(c Controller, line string) Result {
	parts := strings.Fields(strings.TrimSpace(line))
	if len(parts) == 0 {
		return rejected("empty command")
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		return ok("%s", Help)

	case "start", "stop", "reset":
		ch, err := channelArg(args, 1)
		if err != nil {
			return rejected("%s: %v", cmd, err)
		}
		var fn func(int) error
		switch cmd {
		case "start":
			fn = c.StartChannel
		case "stop":
			fn = c.StopChannel
		default:
			fn = c.ResetChannel
		}
		if err := fn(ch); err != nil {
			return channelError(cmd, ch, err)
		}
		return ok("channel %d: %s", ch, cmd)

	case "target", "rate", "pressure":
		ch, err := channelArg(args, 2)
		if err != nil {
			return rejected("%s: %v", cmd, err)
		}
		v, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return rejected("%s: invalid value %q", cmd, args[1])
		}
		var fn func(int, float64) error
		switch cmd {
		case "target":
			fn = c.SetTarget
		case "rate":
			if v <= 0 {
				return rejected("rate: must be > 0")
			}
			fn = c.SetRate
		default:
			fn = c.SetPressure
		}
		if err := fn(ch, v); err != nil {
			return channelError(cmd, ch, err)
		}
		return ok("channel %d: %s %v", ch, cmd, v)

	case "trigger":
		req, err := parseTrigger(args)
		if err != nil {
			return rejected("trigger: %v", err)
		}
		out, err := c.Trigger(req)
		if err != nil {
			return rejected("trigger: %v", err)
		}
		return ok("disturbance %s", out)

	case "rise":
		v, err := floatArg(args)
		if err != nil {
			return rejected("rise: %v", err)
		}
		if err := c.TriggerRise(v); err != nil {
			return rejected("rise: %v", err)
		}
		return ok("pressure rise to %v", v)

	case "droprate":
		v, err := floatArg(args)
		if err != nil {
			return rejected("droprate: %v", err)
		}
		c.SetDropRate(v)
		return ok("drop rate %v/s", c.Snapshot().Hub.DropRate)

	case "affected":
		ch, err := channelArg(args, 1)
		if err != nil {
			return rejected("affected: %v", err)
		}
		if err := c.SetAffected(ch); err != nil {
			return channelError(cmd, ch, err)
		}
		return ok("hub affects channel %d", ch)

	case "fault":
		ch, err := channelArg(args, 2)
		if err != nil {
			return rejected("fault: %v", err)
		}
		f, err := sensor.ParseFault(strings.ToLower(args[1]))
		if err != nil {
			return rejected("fault: %v", err)
		}
		if err := c.SetFault(ch, f); err != nil {
			return channelError(cmd, ch, err)
		}
		return ok("channel %d: fault %s", ch, f)

	case "noise":
		ch, err := channelArg(args, 2)
		if err != nil {
			return rejected("noise: %v", err)
		}
		pct, err := strconv.ParseFloat(args[1], 64)
		if err != nil || pct < 0 || pct > sensor.MaxNoisePercent {
			return rejected("noise: percent must be 0..%v", sensor.MaxNoisePercent)
		}
		var kind *sensor.NoiseKind
		if len(args) > 2 {
			k, err := sensor.ParseNoiseKind(strings.ToLower(args[2]))
			if err != nil {
				return rejected("noise: %v", err)
			}
			kind = &k
		}
		if err := c.SetNoise(ch, &pct, kind); err != nil {
			return channelError(cmd, ch, err)
		}
		return ok("channel %d: noise %v%%", ch, pct)

	case "datatype":
		ch, err := channelArg(args, 2)
		if err != nil {
			return rejected("datatype: %v", err)
		}
		dt, err := strconv.ParseUint(args[1], 0, 16)
		if err != nil || !regmap.ValidDataType(uint16(dt)) {
			return rejected("datatype: code must be 0..%d", regmap.MaxDataType)
		}
		if err := c.SetDataType(ch, uint16(dt)); err != nil {
			return channelError(cmd, ch, err)
		}
		return ok("channel %d: data type %s", ch, regmap.DataTypeName(uint16(dt)))

	case "addr":
		if len(args) != 1 {
			return rejected("addr: usage addr N")
		}
		a, err := strconv.ParseUint(args[0], 0, 16)
		if err != nil || !regmap.ValidDeviceAddress(uint16(a)) {
			return rejected("addr: address must be %d..%d", regmap.MinDeviceAddress, regmap.MaxDeviceAddress)
		}
		if err := c.SetDeviceAddress(uint16(a)); err != nil {
			return rejected("addr: stored but not saved: %v", err)
		}
		return ok("device address %d (applies on restart)", a)

	case "uart":
		if len(args) != 2 {
			return rejected("uart: usage uart PARITY BAUD")
		}
		p, err := parityArg(args[0])
		if err != nil {
			return rejected("uart: %v", err)
		}
		b, err := baudArg(args[1])
		if err != nil {
			return rejected("uart: %v", err)
		}
		if err := c.SetUARTParams(p, b); err != nil {
			return rejected("uart: stored but not saved: %v", err)
		}
		st := c.Snapshot().Config
		return ok("uart %d %s", st.BaudRate, st.Parity)

	case "timing":
		if len(args) != 1 {
			return rejected("timing: usage timing on|off")
		}
		switch strings.ToLower(args[0]) {
		case "on":
			c.SetTimingEnabled(true)
		case "off":
			c.SetTimingEnabled(false)
		default:
			return rejected("timing: usage timing on|off")
		}
		return ok("timing %s", strings.ToLower(args[0]))
	}

	return rejected("unknown command %q (try help)", cmd)
}

// --------------------
// argument helpers
// --------------------

func channelArg(args []string, want int) (int, error) {
	if len(args) < want {
		return 0, fmt.Errorf("expected %d argument(s)", want)
	}
	ch, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("invalid channel %q", args[0])
	}
	return ch, nil
}

func floatArg(args []string) (float64, error) {
	if len(args) != 1 {
		return 0, errors.New("expected one value")
	}
	v, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value %q", args[0])
	}
	return v, nil
}

func channelError(cmd string, ch int, err error) Result {
	if errors.Is(err, sim.ErrInvalidChannel) {
		return rejected("%s: channel %d is not available", cmd, ch)
	}
	return rejected("%s: %v", cmd, err)
}

// parseTrigger reads key=value overrides.
func parseTrigger(args []string) (hub.Request, error) {
	var req hub.Request
	for _, a := range args {
		k, v, found := strings.Cut(a, "=")
		if !found {
			return req, fmt.Errorf("expected key=value, got %q", a)
		}
		switch strings.ToLower(k) {
		case "target":
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return req, fmt.Errorf("invalid target %q", v)
			}
			req.Target = &f
		case "duration":
			f, err := strconv.ParseFloat(v, 64)
			if err != nil || f <= 0 {
				return req, fmt.Errorf("invalid duration %q", v)
			}
			d := time.Duration(f * float64(time.Second))
			req.Duration = &d
		case "rate":
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return req, fmt.Errorf("invalid rate %q", v)
			}
			req.Rate = &f
		case "ch", "channel":
			n, err := strconv.Atoi(v)
			if err != nil {
				return req, fmt.Errorf("invalid channel %q", v)
			}
			req.Channel = &n
		default:
			return req, fmt.Errorf("unknown option %q", k)
		}
	}
	return req, nil
}

// parityArg accepts a code (0..2) or a letter (N/E/O).
func parityArg(s string) (uint8, error) {
	if p, ok := regmap.ParityCode(strings.ToUpper(s)); ok {
		return p, nil
	}
	n, err := strconv.ParseUint(s, 0, 8)
	if err != nil || n > uint64(regmap.ParityOdd) {
		return 0, fmt.Errorf("invalid parity %q", s)
	}
	return uint8(n), nil
}

// baudArg accepts a code (0..5) or a rate (9600).
func baudArg(s string) (uint8, error) {
	n, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid baud %q", s)
	}
	if c, ok := regmap.BaudCode(int(n)); ok {
		return c, nil
	}
	if n <= 0xFF {
		if _, ok := regmap.BaudRate(uint8(n)); ok {
			return uint8(n), nil
		}
	}
	return 0, fmt.Errorf("invalid baud %q", s)
}
