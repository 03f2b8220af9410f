// Package probe detects accelerator and host memory capacity. Detection is
// read-only, has no persistent side effects, and is safe to call repeatedly;
// failures degrade to a host-only sentinel snapshot instead of erroring.
package probe

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/mem"

	"memgov/pkg/types"
)

// DeviceMemory is a single accelerator's memory state as reported by a Backend.
type DeviceMemory struct {
	Index      int
	Name       string
	TotalBytes uint64
	UsedBytes  uint64
	FreeBytes  uint64
}

// Backend queries accelerator memory. Implementations must be read-only.
type Backend interface {
	Query(ctx context.Context) ([]DeviceMemory, error)
}

// Prober turns backend queries into capacity snapshots.
type Prober struct {
	backend Backend
	hostMem func() (total, used, available uint64, err error)
	log     zerolog.Logger
}

// Option configures a Prober.
type Option func(*Prober)

// WithBackend replaces the default nvidia-smi backend (used by tests).
func WithBackend(b Backend) Option {
	return func(p *Prober) { p.backend = b }
}

// WithLogger sets the probe logger.
func WithLogger(l zerolog.Logger) Option {
	return func(p *Prober) { p.log = l }
}

// New returns a Prober using the nvidia-smi backend and gopsutil host memory.
func New(opts ...Option) *Prober {
	p := &Prober{
		backend: &smiBackend{},
		hostMem: hostMemory,
		log:     zerolog.Nop(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Detect queries the accelerator and returns a fresh capacity snapshot. On
// query failure or when no accelerator is present it returns a host-only
// sentinel (DeviceID -1, Unavailable true) rather than failing.
func (p *Prober) Detect(ctx context.Context) types.CapacitySnapshot {
	devices, err := p.backend.Query(ctx)
	if err != nil || len(devices) == 0 {
		if err != nil {
			p.log.Debug().Err(err).Msg("accelerator query failed, falling back to host memory")
		}
		return p.hostSnapshot()
	}
	// Sessions run on a single device; take the first one, matching the
	// launch layer's device selection.
	d := devices[0]
	return types.CapacitySnapshot{
		TotalBytes: d.TotalBytes,
		UsedBytes:  d.UsedBytes,
		FreeBytes:  d.FreeBytes,
		DeviceID:   d.Index,
		DeviceName: d.Name,
		Timestamp:  time.Now(),
	}
}

func (p *Prober) hostSnapshot() types.CapacitySnapshot {
	total, used, avail, err := p.hostMem()
	if err != nil {
		p.log.Warn().Err(err).Msg("host memory query failed")
	}
	return types.CapacitySnapshot{
		TotalBytes:  total,
		UsedBytes:   used,
		FreeBytes:   avail,
		DeviceID:    -1,
		Unavailable: true,
		Timestamp:   time.Now(),
	}
}

func hostMemory() (total, used, available uint64, err error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, 0, 0, err
	}
	return vm.Total, vm.Used, vm.Available, nil
}
