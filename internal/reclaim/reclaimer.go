package reclaim

import (
	"runtime"
	"runtime/debug"
	"sync"

	"github.com/rs/zerolog"
)

// hook is a named reclamation source registered by another component, e.g.
// the offload policy's emergency eviction.
type hook struct {
	name string
	run  func() uint64
}

// Reclaimer is the forced, synchronous memory-reclamation routine. Run blocks
// until every source has been asked to release memory; it never fails, and a
// second consecutive call with no intervening allocation returns 0.
type Reclaimer struct {
	mu    sync.Mutex
	pool  *Pool
	hooks []hook
	log   zerolog.Logger
}

// New returns a Reclaimer compacting the given pool. pool may be nil.
func New(pool *Pool, log zerolog.Logger) *Reclaimer {
	return &Reclaimer{pool: pool, log: log}
}

// AddHook registers an additional reclamation source. Hooks must be
// idempotent: with nothing to release they return 0.
func (r *Reclaimer) AddHook(name string, fn func() uint64) {
	r.mu.Lock()
	r.hooks = append(r.hooks, hook{name: name, run: fn})
	r.mu.Unlock()
}

// Run releases unreferenced scratch buffers, compacts the pool, invokes every
// registered hook, and requests garbage collection. It returns the total
// bytes reclaimed and never raises; a panicking hook contributes 0.
func (r *Reclaimer) Run() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	var reclaimed uint64
	if r.pool != nil {
		reclaimed += r.pool.Compact()
	}
	for _, h := range r.hooks {
		reclaimed += r.runHook(h)
	}

	runtime.GC()
	debug.FreeOSMemory()

	r.log.Debug().Uint64("reclaimed_bytes", reclaimed).Msg("emergency cleanup completed")
	return reclaimed
}

func (r *Reclaimer) runHook(h hook) (n uint64) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Warn().Str("hook", h.name).Interface("panic", rec).Msg("cleanup hook panicked")
			n = 0
		}
	}()
	return h.run()
}
