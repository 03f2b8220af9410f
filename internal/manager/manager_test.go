package manager

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"memgov/internal/chunk"
	"memgov/internal/tier"
	"memgov/pkg/types"
)

func mustProfile(t *testing.T, n tier.Name) tier.Profile {
	t.Helper()
	p, ok := tier.ByName(n)
	if !ok {
		t.Fatalf("unknown tier %q", n)
	}
	return p
}

func testSnapshot() types.CapacitySnapshot {
	return types.CapacitySnapshot{
		TotalBytes: 16 << 30,
		UsedBytes:  2 << 30,
		FreeBytes:  14 << 30,
		DeviceID:   0,
		DeviceName: "test-accelerator",
		Timestamp:  time.Now(),
	}
}

func newTestManager(t *testing.T, n tier.Name, usage func() float64) (*Manager, *MemoryPublisher) {
	t.Helper()
	pub := NewMemoryPublisher()
	m := NewWithConfig(Config{
		Profile:   mustProfile(t, n),
		Snapshot:  testSnapshot(),
		Debounce:  time.Second,
		Publisher: pub,
		Usage:     usage,
		Log:       zerolog.Nop(),
	})
	t.Cleanup(m.Close)
	return m, pub
}

func TestCoalescedEventsDemoteOnce(t *testing.T) {
	frac := 0.5
	m, pub := newTestManager(t, tier.Balanced, func() float64 { return frac })

	// Three raw breaches land inside one debounce interval.
	for i := 0; i < 3; i++ {
		if !m.monitor.Sample(0.95) {
			t.Fatalf("sample %d did not breach", i)
		}
	}
	m.Checkpoint("test")

	if got := m.ActiveProfile().Name; got != tier.Low {
		t.Fatalf("tier = %s, want %s", got, tier.Low)
	}
	st := m.Status()
	if st.DemotionsTotal != 1 {
		t.Fatalf("demotions = %d, want 1", st.DemotionsTotal)
	}
	if st.CleanupsTotal != 3 {
		t.Fatalf("cleanups = %d, want 3 (one per raw event)", st.CleanupsTotal)
	}
	if n := len(pub.Named(EventPressure)); n != 3 {
		t.Fatalf("pressure events = %d, want 3", n)
	}
	if n := len(pub.Named(EventTierDemoted)); n != 1 {
		t.Fatalf("demotion events = %d, want 1", n)
	}

	// Quiet checkpoints leave the tier alone.
	m.Checkpoint("idle")
	if got := m.ActiveProfile().Name; got != tier.Low {
		t.Fatalf("tier after idle checkpoint = %s, want %s", got, tier.Low)
	}
}

func TestDemoteAfterCountsDecisions(t *testing.T) {
	pub := NewMemoryPublisher()
	m := NewWithConfig(Config{
		Profile:   mustProfile(t, tier.High),
		Snapshot:  testSnapshot(),
		Debounce:  10 * time.Millisecond,
		Publisher: pub,
		Usage:     func() float64 { return 0.5 },
		Log:       zerolog.Nop(),
	})
	defer m.Close()

	m.monitor.Sample(0.99)
	m.Checkpoint("first")
	if got := m.ActiveProfile().Name; got != tier.High {
		t.Fatalf("demoted after one decision, tier = %s", got)
	}

	time.Sleep(20 * time.Millisecond)
	m.monitor.Sample(0.99)
	m.Checkpoint("second")
	if got := m.ActiveProfile().Name; got != tier.Balanced {
		t.Fatalf("tier = %s, want %s after two decisions", got, tier.Balanced)
	}
}

func TestDemotionStopsAtFloor(t *testing.T) {
	m, pub := newTestManager(t, tier.Emergency, func() float64 { return 0.5 })

	for i := 0; i < 5; i++ {
		m.monitor.Sample(0.99)
		m.Checkpoint("flood")
	}
	if got := m.ActiveProfile().Name; got != tier.Emergency {
		t.Fatalf("tier = %s, want %s", got, tier.Emergency)
	}
	if st := m.Status(); st.DemotionsTotal != 0 {
		t.Fatalf("demotions = %d, want 0 at floor", st.DemotionsTotal)
	}
	if n := len(pub.Named(EventTierDemoted)); n != 0 {
		t.Fatalf("demotion events = %d, want 0", n)
	}
}

func TestResetRestoresBaseTier(t *testing.T) {
	m, pub := newTestManager(t, tier.Balanced, func() float64 { return 0.5 })

	m.monitor.Sample(0.95)
	m.Checkpoint("test")
	if got := m.ActiveProfile().Name; got != tier.Low {
		t.Fatalf("tier = %s, want %s before reset", got, tier.Low)
	}

	m.Reset()
	if got := m.ActiveProfile().Name; got != tier.Balanced {
		t.Fatalf("tier = %s, want %s after reset", got, tier.Balanced)
	}
	if n := len(pub.Named(EventTierReset)); n != 1 {
		t.Fatalf("reset events = %d, want 1", n)
	}
}

func TestConfigureRuntimeKnobs(t *testing.T) {
	m, _ := newTestManager(t, tier.Balanced, func() float64 { return 0.5 })
	rs := m.ConfigureRuntime()
	if rs.Tier != string(tier.Balanced) || rs.Resolution != 512 || rs.BatchSize != 1 {
		t.Fatalf("unexpected settings: %+v", rs)
	}
	if rs.EnableOffload {
		t.Fatal("balanced must not offload")
	}
	if !strings.Contains(rs.AllocatorConf, "max_split_size_mb:512") ||
		!strings.Contains(rs.AllocatorConf, "garbage_collection_threshold:0.8") {
		t.Fatalf("allocator conf = %q", rs.AllocatorConf)
	}
	if rs.CleanupInterval != defaultCleanupEvery {
		t.Fatalf("cleanup interval = %d, want %d", rs.CleanupInterval, defaultCleanupEvery)
	}

	m2, _ := newTestManager(t, tier.Emergency, func() float64 { return 0.5 })
	rs2 := m2.ConfigureRuntime()
	if !rs2.EnableOffload || !rs2.Sequential {
		t.Fatalf("emergency settings: %+v", rs2)
	}
	if !strings.Contains(rs2.AllocatorConf, "max_split_size_mb:64") ||
		!strings.Contains(rs2.AllocatorConf, "garbage_collection_threshold:0.6") {
		t.Fatalf("allocator conf = %q", rs2.AllocatorConf)
	}
}

func TestWithChunkedSessionFailure(t *testing.T) {
	m, _ := newTestManager(t, tier.Low, func() float64 { return 0.5 })

	data := make([]float32, 64)
	_, err := m.WithChunked(context.Background(), "decode", data,
		func(ctx context.Context, in []float32) ([]float32, error) {
			return nil, chunk.ErrResourceExhausted
		})
	if !IsSessionFailure(err) {
		t.Fatalf("want session failure, got %v", err)
	}
	if !errors.Is(err, chunk.ErrResourceExhausted) {
		t.Fatalf("cause not preserved: %v", err)
	}

	// The manager survives a fatal session.
	out, err := m.WithChunked(context.Background(), "decode", data,
		func(ctx context.Context, in []float32) ([]float32, error) {
			return in, nil
		})
	if err != nil {
		t.Fatalf("follow-up session failed: %v", err)
	}
	if len(out) != len(data) {
		t.Fatalf("output length = %d, want %d", len(out), len(data))
	}
}

func TestWithOffloadBracket(t *testing.T) {
	m, _ := newTestManager(t, tier.UltraLow, func() float64 { return 0.5 })
	ctx := context.Background()

	if err := m.RegisterComponent(ctx, "text_encoder", 1<<30, types.DeviceHost); err != nil {
		t.Fatalf("register: %v", err)
	}

	var seen uint64
	err := m.WithOffload(ctx, "text_encoder", func(ctx context.Context) error {
		seen = m.Status().AcceleratorUsedBytes
		return nil
	})
	if err != nil {
		t.Fatalf("with offload: %v", err)
	}
	if seen != 1<<30 {
		t.Fatalf("resident bytes during fn = %d, want %d", seen, uint64(1<<30))
	}
	if got := m.Status().AcceleratorUsedBytes; got != 0 {
		t.Fatalf("resident bytes after fn = %d, want 0", got)
	}
}

func TestStatusReport(t *testing.T) {
	m, _ := newTestManager(t, tier.High, func() float64 { return 0.42 })
	st := m.Status()
	if st.Tier != string(tier.High) || st.BaseTier != string(tier.High) {
		t.Fatalf("tiers = %s/%s", st.Tier, st.BaseTier)
	}
	if st.UsedFraction != 0.42 {
		t.Fatalf("used fraction = %v", st.UsedFraction)
	}
	if st.BudgetBytes != testSnapshot().FreeBytes {
		t.Fatalf("budget = %d", st.BudgetBytes)
	}
}
