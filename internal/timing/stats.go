// internal/timing/stats.go
package timing

import (
	"math"
	"sync"
)

// DefaultCapacity is the number of latency samples kept for derived statistics.
const DefaultCapacity = 100

// Summary holds derived latency statistics in milliseconds.
type Summary struct {
	AvgMs         float64
	MinMs         float64
	MaxMs         float64
	JitterMs      float64 // population standard deviation
	TotalRequests uint64
}

// Stats is a bounded ring of recorded latencies plus an all-time request counter.
type Stats struct {
	mu    sync.Mutex
	buf   []float64
	next  int
	full  bool
	total uint64
}

// NewStats returns an empty ring. capacity <= 0 means DefaultCapacity.
func NewStats(capacity int) *Stats {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Stats{buf: make([]float64, capacity)}
}

// Record appends one sample, evicting the oldest once the ring is full.
// The total counter is never reduced by eviction.
func (s *Stats) Record(ms float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buf[s.next] = ms
	s.next++
	if s.next == len(s.buf) {
		s.next = 0
		s.full = true
	}
	s.total++
}

// Summary computes statistics over the buffered samples.
// All derived values are zero when nothing has been recorded.
func (s *Stats) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := Summary{TotalRequests: s.total}
	samples := s.samplesLocked()
	if len(samples) == 0 {
		return out
	}

	minV, maxV, sum := samples[0], samples[0], 0.0
	for _, v := range samples {
		sum += v
		minV = math.Min(minV, v)
		maxV = math.Max(maxV, v)
	}
	avg := sum / float64(len(samples))

	var variance float64
	for _, v := range samples {
		variance += (v - avg) * (v - avg)
	}
	variance /= float64(len(samples))

	out.AvgMs = round2(avg)
	out.MinMs = round2(minV)
	out.MaxMs = round2(maxV)
	out.JitterMs = round2(math.Sqrt(variance))
	return out
}

// Histogram returns the buffered samples, oldest first.
func (s *Stats) Histogram() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.samplesLocked()
}

// Len reports how many samples are currently buffered.
func (s *Stats) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.full {
		return len(s.buf)
	}
	return s.next
}

func (s *Stats) samplesLocked() []float64 {
	if !s.full {
		out := make([]float64, s.next)
		copy(out, s.buf[:s.next])
		return out
	}
	out := make([]float64, 0, len(s.buf))
	out = append(out, s.buf[s.next:]...)
	out = append(out, s.buf[:s.next]...)
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
