package host

import (
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/uozer7050/coopad/internal/metrics"
)

// jitterWindow is how many inter-arrival samples feed the jitter estimate.
const jitterWindow = 50

// The wire protocol is one-way with no acknowledgments, so true round-trip
// latency cannot be measured here. Displayed rate and jitter are derived
// from local inter-packet arrival timing only.
type slotStats struct {
	windowStart time.Time
	windowCount uint64
	lastArrival time.Time
	samples     [jitterWindow]float64 // inter-arrival gaps, milliseconds
	sampleCount int
	sampleNext  int

	rateHz       float64
	jitterMs     float64
	totalPackets uint64
}

// SlotTelemetry is one slot's aggregated stats for status queries.
type SlotTelemetry struct {
	Slot     int     `json:"slot"`
	RateHz   float64 `json:"rate_hz"`
	JitterMs float64 `json:"jitter_ms"`
	Packets  uint64  `json:"packets"`
}

// Telemetry tracks per-slot receive rate and inter-arrival jitter. Record
// is called from the receive pipeline; Aggregate from the periodic task.
type Telemetry struct {
	mu    sync.Mutex
	slots []slotStats
}

func NewTelemetry(slots int) *Telemetry {
	return &Telemetry{slots: make([]slotStats, slots)}
}

// Record notes one forwarded packet for the slot.
func (t *Telemetry) Record(slot int, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := &t.slots[slot]
	if s.windowStart.IsZero() {
		s.windowStart = now
	}
	if !s.lastArrival.IsZero() {
		gap := float64(now.Sub(s.lastArrival)) / float64(time.Millisecond)
		s.samples[s.sampleNext] = gap
		s.sampleNext = (s.sampleNext + 1) % jitterWindow
		if s.sampleCount < jitterWindow {
			s.sampleCount++
		}
	}
	s.lastArrival = now
	s.windowCount++
	s.totalPackets++
}

// Aggregate folds the current windows into rate/jitter figures and
// publishes them as gauges.
func (t *Telemetry) Aggregate(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.slots {
		s := &t.slots[i]
		if elapsed := now.Sub(s.windowStart); elapsed > 0 && !s.windowStart.IsZero() {
			s.rateHz = float64(s.windowCount) / elapsed.Seconds()
		} else {
			s.rateHz = 0
		}
		s.windowStart = now
		s.windowCount = 0
		s.jitterMs = stddev(s.samples[:s.sampleCount])

		label := strconv.Itoa(i)
		metrics.SlotRateHz.WithLabelValues(label).Set(s.rateHz)
		metrics.SlotJitterMillis.WithLabelValues(label).Set(s.jitterMs)
	}
}

// Snapshot returns the last aggregated stats per slot.
func (t *Telemetry) Snapshot() []SlotTelemetry {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]SlotTelemetry, len(t.slots))
	for i := range t.slots {
		out[i] = SlotTelemetry{
			Slot:     i,
			RateHz:   t.slots[i].rateHz,
			JitterMs: t.slots[i].jitterMs,
			Packets:  t.slots[i].totalPackets,
		}
	}
	return out
}

func stddev(samples []float64) float64 {
	if len(samples) < 2 {
		return 0
	}
	var sum float64
	for _, v := range samples {
		sum += v
	}
	mean := sum / float64(len(samples))
	var sq float64
	for _, v := range samples {
		d := v - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(samples)-1))
}
