// Package offload governs which model components reside on which memory
// tier and when they move. Model code never touches device placement
// directly: every accelerator stay is a scoped acquisition through
// WithAccelerator with guaranteed release on every exit path.
package offload

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"memgov/pkg/types"
)

// Mover performs component data movement between memory tiers. The numeric
// copies themselves are external; implementations report success or a
// target-device allocation failure.
type Mover interface {
	ToAccelerator(ctx context.Context, componentID string, sizeBytes uint64) error
	ToHost(ctx context.Context, componentID string, sizeBytes uint64) error
}

// NopMover is the default Mover; it treats every move as instant.
type NopMover struct{}

func (NopMover) ToAccelerator(context.Context, string, uint64) error { return nil }
func (NopMover) ToHost(context.Context, string, uint64) error        { return nil }

// placement tracks one registered component. Mutated only by the Policy.
type placement struct {
	id         string
	rest       types.Device
	current    types.Device
	sizeBytes  uint64
	lastAccess time.Time
	inFlight   bool
}

// Config carries Policy construction parameters.
type Config struct {
	// BudgetBytes is the accelerator memory available to placements
	// (freeBytes at session start).
	BudgetBytes uint64
	// MarginBytes is the safety margin kept free inside the budget.
	MarginBytes uint64
	// Tier, Sequential and OffloadResident mirror the active profile.
	Tier            string
	Sequential      bool
	OffloadResident bool
	Mover           Mover
	// Cleanup is the emergency cleanup entry point, invoked before the
	// single placement retry. May be nil.
	Cleanup func() uint64
	Log     zerolog.Logger
}

// Policy tracks a placement per registered component and enforces the
// accelerator budget and, when the tier demands it, exclusive placement.
type Policy struct {
	mu          sync.Mutex
	placements  map[string]*placement
	usedBytes   uint64
	budgetBytes uint64
	marginBytes uint64
	tier        string
	sequential  bool
	offloadAll  bool

	// token serializes accelerator occupancy when sequential is set.
	token   chan struct{}
	mover   Mover
	cleanup func() uint64
	log     zerolog.Logger
}

// New returns a Policy with no registered components.
func New(cfg Config) *Policy {
	if cfg.Mover == nil {
		cfg.Mover = NopMover{}
	}
	return &Policy{
		placements:  make(map[string]*placement),
		budgetBytes: cfg.BudgetBytes,
		marginBytes: cfg.MarginBytes,
		tier:        cfg.Tier,
		sequential:  cfg.Sequential,
		offloadAll:  cfg.OffloadResident,
		token:       make(chan struct{}, 1),
		mover:       cfg.Mover,
		cleanup:     cfg.Cleanup,
		log:         cfg.Log,
	}
}

// Register adds a component with the given rest device. Components resting
// on the accelerator are pinned immediately unless the active tier offloads
// resident components too.
func (p *Policy) Register(ctx context.Context, id string, sizeBytes uint64, rest types.Device) error {
	if rest != types.DeviceHost && rest != types.DeviceAccelerator {
		rest = types.DeviceHost
	}
	p.mu.Lock()
	if _, exists := p.placements[id]; exists {
		p.mu.Unlock()
		return duplicateComponentError{id: id}
	}
	pl := &placement{id: id, rest: rest, current: types.DeviceHost, sizeBytes: sizeBytes}
	p.placements[id] = pl
	pin := rest == types.DeviceAccelerator && !p.offloadAll
	p.mu.Unlock()

	p.log.Debug().Str("component", id).Uint64("size_bytes", sizeBytes).Str("rest", string(rest)).Msg("component registered")
	if pin {
		return p.place(ctx, pl)
	}
	return nil
}

// WithAccelerator runs fn while the component occupies the accelerator.
// Host-rest components (and all components when the tier offloads resident
// ones) are moved over only for the bracketed duration and moved back on
// every exit path, including error and panic paths. Resident components are
// pinned on first use and fn runs directly.
func (p *Policy) WithAccelerator(ctx context.Context, id string, fn func(ctx context.Context) error) error {
	p.mu.Lock()
	pl, ok := p.placements[id]
	if !ok {
		p.mu.Unlock()
		return unknownComponentError{id: id}
	}
	bracketed := pl.rest == types.DeviceHost || p.offloadAll
	sequential := p.sequential
	p.mu.Unlock()

	if !bracketed {
		if err := p.pinIfNeeded(ctx, pl); err != nil {
			return err
		}
		p.markInFlight(pl, true)
		defer p.markInFlight(pl, false)
		return fn(ctx)
	}

	if sequential {
		select {
		case p.token <- struct{}{}:
			defer func() { <-p.token }()
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := p.place(ctx, pl); err != nil {
		return err
	}
	p.markInFlight(pl, true)
	defer func() {
		p.markInFlight(pl, false)
		p.release(pl)
	}()
	return fn(ctx)
}

// pinIfNeeded places a resident component permanently on its first use.
func (p *Policy) pinIfNeeded(ctx context.Context, pl *placement) error {
	p.mu.Lock()
	pinned := pl.current == types.DeviceAccelerator
	p.mu.Unlock()
	if pinned {
		return nil
	}
	return p.place(ctx, pl)
}

// place moves a component to the accelerator, enforcing the budget minus the
// safety margin. On failure it triggers emergency cleanup and retries once;
// a second failure is fatal.
func (p *Policy) place(ctx context.Context, pl *placement) error {
	var reason error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			p.log.Warn().Str("component", pl.id).Err(reason).Msg("placement failed, running emergency cleanup before retry")
			if p.cleanup != nil {
				p.cleanup()
			}
		}
		p.mu.Lock()
		if p.usedBytes+pl.sizeBytes+p.marginBytes > p.budgetBytes {
			p.mu.Unlock()
			reason = errBudgetExceeded
			continue
		}
		// Reserve before moving so concurrent placements cannot oversubscribe.
		p.usedBytes += pl.sizeBytes
		p.mu.Unlock()

		if err := p.mover.ToAccelerator(ctx, pl.id, pl.sizeBytes); err != nil {
			p.mu.Lock()
			p.usedBytes -= pl.sizeBytes
			p.mu.Unlock()
			reason = err
			continue
		}
		p.mu.Lock()
		pl.current = types.DeviceAccelerator
		pl.lastAccess = time.Now()
		p.mu.Unlock()
		return nil
	}
	p.mu.Lock()
	tier := p.tier
	p.mu.Unlock()
	return placementError{component: pl.id, sizeBytes: pl.sizeBytes, tier: tier, reason: reason}
}

// release moves a bracketed component back to host memory. Best effort: the
// accounting always unwinds even when the mover reports an error.
func (p *Policy) release(pl *placement) {
	if err := p.mover.ToHost(context.Background(), pl.id, pl.sizeBytes); err != nil {
		p.log.Warn().Str("component", pl.id).Err(err).Msg("move back to host reported an error")
	}
	p.mu.Lock()
	if pl.current == types.DeviceAccelerator {
		pl.current = types.DeviceHost
		p.usedBytes -= pl.sizeBytes
	}
	p.mu.Unlock()
}

func (p *Policy) markInFlight(pl *placement, v bool) {
	p.mu.Lock()
	pl.inFlight = v
	if v {
		pl.lastAccess = time.Now()
	}
	p.mu.Unlock()
}

// SetTier applies a new tier's placement knobs. When the new tier offloads
// resident components, idle accelerator-resident ones are moved back to host
// so subsequent uses follow the bracketed pattern.
func (p *Policy) SetTier(tier string, sequential, offloadResident bool) {
	p.mu.Lock()
	p.tier = tier
	p.sequential = sequential
	p.offloadAll = offloadResident
	var demoted []*placement
	if offloadResident {
		for _, pl := range p.placements {
			if pl.rest == types.DeviceAccelerator && pl.current == types.DeviceAccelerator && !pl.inFlight {
				demoted = append(demoted, pl)
			}
		}
	}
	p.mu.Unlock()
	for _, pl := range demoted {
		p.release(pl)
	}
}

// EmergencyOffload moves idle accelerator-resident components back to host
// and returns the bytes freed. Registered as an emergency cleanup hook.
func (p *Policy) EmergencyOffload() uint64 {
	p.mu.Lock()
	var idle []*placement
	for _, pl := range p.placements {
		if pl.current == types.DeviceAccelerator && !pl.inFlight {
			idle = append(idle, pl)
		}
	}
	p.mu.Unlock()
	var freed uint64
	for _, pl := range idle {
		freed += pl.sizeBytes
		p.release(pl)
	}
	return freed
}

// UnwindAll moves every idle component off the accelerator. Used on
// cooperative abort so a canceled session never leaves the accelerator in a
// partially-offloaded, undefined state; in-flight components unwind through
// their own bracket defers as the stack unwinds.
func (p *Policy) UnwindAll() {
	p.EmergencyOffload()
}

// UsedBytes reports accelerator bytes currently held by placements.
func (p *Policy) UsedBytes() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.usedBytes
}

// Placements returns a read-only snapshot of all registered components,
// sorted by component id.
func (p *Policy) Placements() []types.PlacementStatus {
	p.mu.Lock()
	out := make([]types.PlacementStatus, 0, len(p.placements))
	for _, pl := range p.placements {
		var last int64
		if !pl.lastAccess.IsZero() {
			last = pl.lastAccess.Unix()
		}
		out = append(out, types.PlacementStatus{
			ComponentID:    pl.id,
			RestDevice:     string(pl.rest),
			CurrentDevice:  string(pl.current),
			SizeBytes:      pl.sizeBytes,
			LastAccessUnix: last,
			InFlight:       pl.inFlight,
		})
	}
	p.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ComponentID < out[j].ComponentID })
	return out
}

// Teardown unwinds placements and forgets all components.
func (p *Policy) Teardown() {
	p.UnwindAll()
	p.mu.Lock()
	p.placements = make(map[string]*placement)
	p.usedBytes = 0
	p.mu.Unlock()
}
