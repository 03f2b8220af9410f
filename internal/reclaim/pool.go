// Package reclaim provides the scratch-buffer pool standing in for the
// accelerator memory pool, and the synchronous emergency cleanup routine
// that compacts it.
package reclaim

import "sync"

// elemSize is the byte size of one pooled element (float32).
const elemSize = 4

// Pool caches scratch buffers between chunk and placement operations so their
// cost is visible and reclaimable. Get prefers a cached buffer large enough
// for the request; Put returns a buffer to the cache; Compact drops every
// cached buffer and reports the bytes released.
type Pool struct {
	mu          sync.Mutex
	free        [][]float32
	cachedBytes uint64
}

// NewPool returns an empty pool.
func NewPool() *Pool {
	return &Pool{}
}

// Get returns a buffer of length n, reusing a cached one when possible.
func (p *Pool) Get(n int) []float32 {
	if n <= 0 {
		return nil
	}
	p.mu.Lock()
	for i, buf := range p.free {
		if cap(buf) >= n {
			p.free = append(p.free[:i], p.free[i+1:]...)
			p.cachedBytes -= uint64(cap(buf)) * elemSize
			p.mu.Unlock()
			return buf[:n]
		}
	}
	p.mu.Unlock()
	return make([]float32, n)
}

// Put returns a buffer to the cache for reuse.
func (p *Pool) Put(buf []float32) {
	if cap(buf) == 0 {
		return
	}
	p.mu.Lock()
	p.free = append(p.free, buf[:0])
	p.cachedBytes += uint64(cap(buf)) * elemSize
	p.mu.Unlock()
}

// Compact drops all cached buffers and returns the number of bytes released.
// A second call with no intervening Put returns 0.
func (p *Pool) Compact() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	released := p.cachedBytes
	p.free = nil
	p.cachedBytes = 0
	return released
}

// CachedBytes reports the bytes currently held in the cache.
func (p *Pool) CachedBytes() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cachedBytes
}
