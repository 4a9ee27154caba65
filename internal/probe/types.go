// internal/probe/types.go
package probe

import (
	"time"

	"github.com/tamzrod/analog-sim/internal/regmap"
)

// ReadBlock describes one register read.
// Geometry only: no semantics.
type ReadBlock struct {
	FC       uint8
	Address  uint16
	Quantity uint16
}

// BlockResult is the raw result of a single read.
type BlockResult struct {
	FC        uint8
	Address   uint16
	Quantity  uint16
	Registers []uint16
	Latency   time.Duration
}

// PollResult is a snapshot produced by one poll cycle.
type PollResult struct {
	Unit   uint8
	At     time.Time
	Blocks []BlockResult
	Err    error // non-nil means the poll cycle failed
}

// Block returns the result that starts at addr for fc, if present.
func (r PollResult) Block(fc uint8, addr uint16) (BlockResult, bool) {
	for _, b := range r.Blocks {
		if b.FC == fc && b.Address == addr {
			return b, true
		}
	}
	return BlockResult{}, false
}

// DefaultReads covers the process values and every configuration word of the module.
func DefaultReads() []ReadBlock {
	return []ReadBlock{
		{FC: 4, Address: regmap.InputBase, Quantity: regmap.Channels},
		{FC: 3, Address: regmap.DataTypeBase, Quantity: regmap.Channels},
		{FC: 3, Address: regmap.UARTParams, Quantity: 1},
		{FC: 3, Address: regmap.DeviceAddress, Quantity: 1},
		{FC: 3, Address: regmap.SoftwareVersion, Quantity: 1},
	}
}
