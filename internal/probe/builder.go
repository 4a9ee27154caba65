// internal/probe/builder.go
package probe

import (
	"time"

	pmodbus "github.com/tamzrod/analog-sim/internal/probe/modbus"
)

// BuildConfig is everything cmd/probe collects from flags.
type BuildConfig struct {
	Endpoint string
	Serial   *pmodbus.SerialConfig
	Unit     uint8
	Timeout  time.Duration
	Interval time.Duration
	Reads    []ReadBlock // empty => DefaultReads()
}

// Build constructs a Probe and wires the client lifecycle.
// The connection is reused while healthy; after a failed cycle the probe
// drops it and the factory reconnects on a future tick.
func Build(bc BuildConfig) (*Probe, func() error, error) {
	// client factory: ONE attempt per call
	factory := func() (Client, error) {
		return pmodbus.New(pmodbus.Config{
			Endpoint: bc.Endpoint,
			Serial:   bc.Serial,
			UnitID:   bc.Unit,
			Timeout:  bc.Timeout,
		})
	}

	// initial client (fail fast at startup)
	client, err := factory()
	if err != nil {
		return nil, nil, err
	}

	reads := bc.Reads
	if len(reads) == 0 {
		reads = DefaultReads()
	}

	p, err := New(
		Config{
			Unit:     bc.Unit,
			Interval: bc.Interval,
			Reads:    reads,
		},
		client,
		factory,
	)
	if err != nil {
		client.Close()
		return nil, nil, err
	}

	return p, p.Close, nil
}
