package reclaim

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestPoolReuse(t *testing.T) {
	p := NewPool()
	a := p.Get(1024)
	if len(a) != 1024 {
		t.Fatalf("expected len 1024 got %d", len(a))
	}
	p.Put(a)
	if p.CachedBytes() != 1024*4 {
		t.Fatalf("expected 4096 cached bytes got %d", p.CachedBytes())
	}
	b := p.Get(512)
	if cap(b) < 1024 {
		t.Fatalf("expected reuse of cached buffer, got cap %d", cap(b))
	}
	if p.CachedBytes() != 0 {
		t.Fatalf("cache should be empty after reuse")
	}
}

func TestPoolCompact(t *testing.T) {
	p := NewPool()
	p.Put(make([]float32, 100))
	p.Put(make([]float32, 50))
	released := p.Compact()
	if released != 150*4 {
		t.Fatalf("expected 600 bytes released got %d", released)
	}
	if p.Compact() != 0 {
		t.Fatalf("second compact with no intervening Put must release 0")
	}
}

func TestReclaimerIdempotent(t *testing.T) {
	pool := NewPool()
	pool.Put(make([]float32, 256))
	r := New(pool, zerolog.Nop())

	first := r.Run()
	if first != 256*4 {
		t.Fatalf("expected first run to reclaim 1024 bytes, got %d", first)
	}
	if second := r.Run(); second != 0 {
		t.Fatalf("second consecutive run must return 0, got %d", second)
	}
}

func TestReclaimerHooks(t *testing.T) {
	r := New(nil, zerolog.Nop())
	calls := 0
	r.AddHook("evict", func() uint64 {
		calls++
		if calls == 1 {
			return 4096
		}
		return 0
	})
	if got := r.Run(); got != 4096 {
		t.Fatalf("expected hook bytes 4096 got %d", got)
	}
	if got := r.Run(); got != 0 {
		t.Fatalf("idempotent hook should yield 0 on second run, got %d", got)
	}
}

func TestReclaimerNeverRaises(t *testing.T) {
	r := New(nil, zerolog.Nop())
	r.AddHook("bad", func() uint64 { panic("boom") })
	r.AddHook("good", func() uint64 { return 8 })
	if got := r.Run(); got != 8 {
		t.Fatalf("panicking hook must contribute 0, got total %d", got)
	}
}
