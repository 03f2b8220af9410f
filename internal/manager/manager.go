package manager

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"memgov/internal/chunk"
	"memgov/internal/offload"
	"memgov/internal/pressure"
	"memgov/internal/reclaim"
	"memgov/internal/tier"
	"memgov/pkg/types"
)

// Manager owns all memory-governance state for one process: the active
// tier, the buffer pool, the placement policy and the pressure monitor.
type Manager struct {
	mu sync.Mutex

	profile     tier.Profile
	baseProfile tier.Profile
	snapshot    types.CapacitySnapshot

	marginBytes  uint64
	debounce     time.Duration
	cleanupEvery int

	pool      *reclaim.Pool
	reclaimer *reclaim.Reclaimer
	policy    *offload.Policy
	chunker   *chunk.Processor
	monitor   *pressure.Monitor

	publisher EventPublisher
	usage     func() float64
	log       zerolog.Logger
	start     time.Time

	demotions      uint64
	cleanups       uint64
	reclaimedBytes uint64

	// decisions holds the timestamps of coalesced pressure decisions
	// inside the active profile's rolling window.
	decisions    []time.Time
	lastDecision time.Time

	closeOnce sync.Once
}

// NewWithConfig wires the full subsystem from a selected profile and the
// capacity snapshot it was selected from.
func NewWithConfig(cfg Config) *Manager {
	c := cfg.withDefaults()

	m := &Manager{
		profile:      c.Profile,
		baseProfile:  c.Profile,
		snapshot:     c.Snapshot,
		marginBytes:  c.MarginBytes,
		debounce:     c.Debounce,
		cleanupEvery: c.CleanupEvery,
		publisher:    c.Publisher,
		usage:        c.Usage,
		log:          c.Log,
		start:        time.Now(),
	}

	m.pool = reclaim.NewPool()
	m.reclaimer = reclaim.New(m.pool, c.Log)
	m.policy = offload.New(offload.Config{
		BudgetBytes:     c.Snapshot.FreeBytes,
		MarginBytes:     c.MarginBytes,
		Tier:            string(c.Profile.Name),
		Sequential:      c.Profile.Sequential,
		OffloadResident: c.Profile.EnableOffload,
		Mover:           c.Mover,
		Cleanup:         m.runCleanup,
		Log:             c.Log,
	})
	m.reclaimer.AddHook("offload_idle", m.policy.EmergencyOffload)
	m.chunker = chunk.NewProcessor(m.pool, c.Log)
	m.monitor = pressure.New(c.Profile.HighWatermark, c.Log)

	m.publisher.Publish(Event{
		Name: EventTierSelected,
		Tier: string(c.Profile.Name),
		Fields: map[string]interface{}{
			"free_bytes":  c.Snapshot.FreeBytes,
			"total_bytes": c.Snapshot.TotalBytes,
			"device":      c.Snapshot.DeviceName,
		},
	})
	return m
}

// ActiveProfile returns the profile currently in force.
func (m *Manager) ActiveProfile() tier.Profile {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.profile
}

// BaseProfile returns the profile selected at construction, before any
// demotions.
func (m *Manager) BaseProfile() tier.Profile {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.baseProfile
}

// usedFraction computes the current accelerator used fraction. A Usage
// override wins; otherwise the snapshot plus live placement and pool
// accounting approximates it.
func (m *Manager) usedFraction() float64 {
	if m.usage != nil {
		return m.usage()
	}
	m.mu.Lock()
	snap := m.snapshot
	m.mu.Unlock()
	if snap.TotalBytes == 0 {
		return 0
	}
	used := snap.UsedBytes + m.policy.UsedBytes() + m.pool.CachedBytes()
	return float64(used) / float64(snap.TotalBytes)
}

// runCleanup performs one emergency cleanup pass and records its yield.
// It is invoked on pressure events and before placement retries; it
// never raises.
func (m *Manager) runCleanup() uint64 {
	freed := m.reclaimer.Run()
	m.mu.Lock()
	m.cleanups++
	m.reclaimedBytes += freed
	tierName := string(m.profile.Name)
	m.mu.Unlock()
	m.publisher.Publish(Event{
		Name: EventCleanup,
		Tier: tierName,
		Fields: map[string]interface{}{
			"reclaimed_bytes": freed,
		},
	})
	return freed
}

// StartBackgroundSampling polls the used fraction on interval; samples
// above the watermark queue pressure events that the next checkpoint
// drains.
func (m *Manager) StartBackgroundSampling(interval time.Duration) {
	m.monitor.Start(interval, m.usedFraction)
}

// Status assembles the full status report.
func (m *Manager) Status() types.StatusResponse {
	m.mu.Lock()
	profile := m.profile
	base := m.baseProfile
	snap := m.snapshot
	margin := m.marginBytes
	demotions := m.demotions
	cleanups := m.cleanups
	reclaimed := m.reclaimedBytes
	start := m.start
	m.mu.Unlock()

	return types.StatusResponse{
		Tier:                 string(profile.Name),
		BaseTier:             string(base.Name),
		Snapshot:             snap,
		AcceleratorUsedBytes: m.policy.UsedBytes(),
		BudgetBytes:          snap.FreeBytes,
		MarginBytes:          margin,
		UsedFraction:         m.usedFraction(),
		Placements:           m.policy.Placements(),
		PressureEventsTotal:  m.monitor.Total(),
		DemotionsTotal:       demotions,
		CleanupsTotal:        cleanups,
		ReclaimedBytesTotal:  reclaimed,
		UptimeSeconds:        int64(time.Since(start).Seconds()),
		ServerTimeUnix:       time.Now().Unix(),
	}
}

// Close stops background sampling, offloads every placement and drops
// pooled buffers. Safe to call more than once.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		m.monitor.Stop()
		m.policy.Teardown()
		m.pool.Compact()
	})
}
