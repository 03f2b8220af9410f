package manager

import (
	"time"

	"github.com/rs/zerolog"

	"memgov/internal/offload"
	"memgov/internal/tier"
	"memgov/pkg/types"
)

// Defaults applied when corresponding Config fields are unset.
const (
	defaultDebounce     = 500 * time.Millisecond
	defaultMarginBytes  = 512 << 20
	defaultCleanupEvery = 3
)

// Config encapsulates all tunables for Manager construction.
type Config struct {
	// Profile is the tier selected for this session.
	Profile tier.Profile
	// Snapshot is the capacity snapshot the tier was selected from; its
	// free bytes become the placement budget.
	Snapshot types.CapacitySnapshot
	// MarginBytes is the safety margin kept free inside the budget.
	MarginBytes uint64
	// Debounce coalesces pressure events into one demotion decision.
	Debounce time.Duration
	// CleanupEvery is the stage cadence hint surfaced via ConfigureRuntime.
	CleanupEvery int
	// Publisher receives telemetry events; nil drops them.
	Publisher EventPublisher
	// Mover performs component data movement; nil uses a no-op mover.
	Mover offload.Mover
	// Usage overrides the used-fraction source sampled at checkpoints.
	Usage func() float64
	Log   zerolog.Logger
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.Debounce <= 0 {
		out.Debounce = defaultDebounce
	}
	if out.MarginBytes == 0 {
		out.MarginBytes = defaultMarginBytes
	}
	if out.CleanupEvery <= 0 {
		out.CleanupEvery = defaultCleanupEvery
	}
	if out.Publisher == nil {
		out.Publisher = noopPublisher{}
	}
	return out
}
