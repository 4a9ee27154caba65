// internal/timing/timer.go
package timing

import (
	"math/rand"
	"sync"
	"time"
)

// Config describes the response latency of the emulated device.
type Config struct {
	Base   time.Duration
	Jitter time.Duration // uniform ±Jitter around Base

	// Seed makes the jitter sequence reproducible; nil means time-seeded.
	Seed *int64

	// Capacity of the latency ring; <= 0 means DefaultCapacity.
	Capacity int
}

// Timer simulates the firmware's request handling latency.
type Timer struct {
	base   time.Duration
	jitter time.Duration

	mu  sync.Mutex
	rng *rand.Rand

	stats *Stats

	// sleep is swapped in tests.
	sleep func(time.Duration)
}

func New(cfg Config) *Timer {
	var src rand.Source
	if cfg.Seed != nil {
		src = rand.NewSource(*cfg.Seed)
	} else {
		src = rand.NewSource(time.Now().UnixNano())
	}
	if cfg.Base < 0 {
		cfg.Base = 0
	}
	if cfg.Jitter < 0 {
		cfg.Jitter = -cfg.Jitter
	}
	return &Timer{
		base:   cfg.Base,
		jitter: cfg.Jitter,
		rng:    rand.New(src),
		stats:  NewStats(cfg.Capacity),
		sleep:  time.Sleep,
	}
}

// Delay blocks for base±jitter, records the measured wall time and returns it in milliseconds.
func (t *Timer) Delay() float64 {
	d := t.PeekDelay()

	start := time.Now()
	t.sleep(d)
	elapsed := float64(time.Since(start)) / float64(time.Millisecond)

	t.stats.Record(elapsed)
	return elapsed
}

// PeekDelay draws from the same distribution as Delay without waiting or recording.
func (t *Timer) PeekDelay() time.Duration {
	t.mu.Lock()
	var j time.Duration
	if t.jitter > 0 {
		j = time.Duration((t.rng.Float64()*2 - 1) * float64(t.jitter))
	}
	t.mu.Unlock()

	d := t.base + j
	if d < 0 {
		return 0
	}
	return d
}

func (t *Timer) Base() time.Duration   { return t.base }
func (t *Timer) Jitter() time.Duration { return t.jitter }

// Stats exposes the latency ring for snapshots.
func (t *Timer) Stats() *Stats { return t.stats }
