// internal/probe/probe.go
package probe

import (
	"errors"
	"fmt"
	"time"

	"github.com/tamzrod/analog-sim/internal/timing"
)

// Client abstracts the register reads the probe needs.
type Client interface {
	ReadHoldingRegisters(addr, qty uint16) ([]uint16, error) // FC 3
	ReadInputRegisters(addr, qty uint16) ([]uint16, error)   // FC 4
	Close() error
}

// Factory opens a fresh client. One attempt per call.
type Factory func() (Client, error)

// Config is the minimal runtime config the probe needs.
type Config struct {
	Unit     uint8
	Interval time.Duration
	Reads    []ReadBlock

	// StatsCapacity sizes the latency ring; <= 0 means timing.DefaultCapacity.
	StatsCapacity int
}

// Probe is a clock-driven reader that measures the emulator's response latency.
type Probe struct {
	cfg     Config
	client  Client
	factory Factory
	stats   *timing.Stats
}

// New creates a probe with immutable config.
// client may be nil when factory is set; the first poll then connects.
func New(cfg Config, client Client, factory Factory) (*Probe, error) {
	if cfg.Interval <= 0 {
		return nil, errors.New("probe: interval must be > 0")
	}
	if len(cfg.Reads) == 0 {
		return nil, errors.New("probe: at least one read block required")
	}
	for _, rb := range cfg.Reads {
		if rb.FC != 3 && rb.FC != 4 {
			return nil, fmt.Errorf("probe: unsupported function code %d", rb.FC)
		}
	}
	if client == nil && factory == nil {
		return nil, errors.New("probe: client or factory required")
	}
	return &Probe{
		cfg:     cfg,
		client:  client,
		factory: factory,
		stats:   timing.NewStats(cfg.StatsCapacity),
	}, nil
}

// Stats holds the round-trip latency of every successful read.
func (p *Probe) Stats() *timing.Stats { return p.stats }

// PollOnce performs exactly one poll cycle.
// All-or-nothing: any failure aborts the cycle and drops the connection,
// so the next cycle reconnects through the factory.
func (p *Probe) PollOnce() PollResult {
	res := PollResult{
		Unit: p.cfg.Unit,
		At:   time.Now(),
	}

	if p.client == nil {
		c, err := p.factory()
		if err != nil {
			res.Err = err
			return res
		}
		p.client = c
	}

	blocks := make([]BlockResult, 0, len(p.cfg.Reads))

	for _, rb := range p.cfg.Reads {
		var (
			regs []uint16
			err  error
		)

		start := time.Now()
		switch rb.FC {
		case 3:
			regs, err = p.client.ReadHoldingRegisters(rb.Address, rb.Quantity)
		case 4:
			regs, err = p.client.ReadInputRegisters(rb.Address, rb.Quantity)
		}
		elapsed := time.Since(start)

		if err != nil {
			res.Err = err
			p.drop()
			return res
		}

		p.stats.Record(float64(elapsed) / float64(time.Millisecond))
		blocks = append(blocks, BlockResult{
			FC: rb.FC, Address: rb.Address, Quantity: rb.Quantity,
			Registers: regs, Latency: elapsed,
		})
	}

	// Commit only if all reads succeeded
	res.Blocks = blocks
	return res
}

// Close releases the current client.
func (p *Probe) Close() error {
	if p.client == nil {
		return nil
	}
	err := p.client.Close()
	p.client = nil
	return err
}

func (p *Probe) drop() {
	if p.factory == nil {
		return
	}
	_ = p.Close()
}
