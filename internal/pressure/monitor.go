// Package pressure samples memory utilization at pipeline checkpoints and
// queues pressure events for the memory manager. The monitor never mutates
// manager or placement state itself: it only enqueues, and the main
// execution thread drains the queue at defined checkpoints.
package pressure

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Event records one watermark breach. Events live in an in-memory queue
// drained at checkpoints and are never retained beyond the session.
type Event struct {
	Timestamp    time.Time
	UsedFraction float64
}

// Monitor compares sampled used fractions against the active tier's
// high-watermark. Sampling is cooperative (checkpoint-driven); Start adds an
// optional background ticker that samples through a caller-supplied usage
// function but still only enqueues.
type Monitor struct {
	mu        sync.Mutex
	watermark float64
	queue     []Event
	total     uint64

	log      zerolog.Logger
	stopOnce sync.Once
	stopCh   chan struct{}
}

// New returns a Monitor with the given high-watermark (0.85-0.95 depending
// on tier).
func New(watermark float64, log zerolog.Logger) *Monitor {
	return &Monitor{
		watermark: watermark,
		log:       log,
		stopCh:    make(chan struct{}),
	}
}

// SetWatermark replaces the watermark, e.g. after a tier demotion.
func (m *Monitor) SetWatermark(w float64) {
	m.mu.Lock()
	m.watermark = w
	m.mu.Unlock()
}

// Sample records usedFraction and enqueues a pressure event when it exceeds
// the watermark. It reports whether the watermark was breached.
func (m *Monitor) Sample(usedFraction float64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if usedFraction <= m.watermark {
		return false
	}
	m.queue = append(m.queue, Event{Timestamp: time.Now(), UsedFraction: usedFraction})
	m.total++
	m.log.Debug().Float64("used_fraction", usedFraction).Float64("watermark", m.watermark).Msg("memory pressure sampled")
	return true
}

// Drain returns all queued events and clears the queue.
func (m *Monitor) Drain() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	evs := m.queue
	m.queue = nil
	return evs
}

// Total reports the number of events observed over the session.
func (m *Monitor) Total() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.total
}

// Start launches a background sampler polling usage at the given interval.
// The goroutine only enqueues events; it never touches manager state.
func (m *Monitor) Start(interval time.Duration, usage func() float64) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-m.stopCh:
				return
			case <-ticker.C:
				m.Sample(usage())
			}
		}
	}()
}

// Stop halts the background sampler. Safe to call multiple times, and safe
// to call when Start was never used.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}
