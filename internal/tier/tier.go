package tier

import "time"

// Name identifies one of the closed set of resource profiles.
type Name string

const (
	Emergency    Name = "emergency"
	UltraMinimal Name = "ultra_minimal"
	UltraLow     Name = "ultra_low"
	Low          Name = "low"
	Balanced     Name = "balanced"
	High         Name = "high"
	Maximum      Name = "maximum"
)

// Profile is an immutable bundle of resource knobs for one tier. A new
// Profile value replaces the active one on demotion; fields are never
// mutated in place.
type Profile struct {
	Name                     Name
	Resolution               int
	SequenceLength           int
	BatchSize                int
	InferenceSteps           int
	ChunkCount               int
	EnableOffload            bool
	EnablePrecisionReduction bool
	AllocatorSplitSizeMB     int
	Sequential               bool

	// HighWatermark is the used-fraction above which pressure events fire.
	HighWatermark float64
	// DemoteAfter is the number of coalesced pressure decisions within
	// PressureWindow that trigger a demotion.
	DemoteAfter int
	// PressureWindow is the rolling window DemoteAfter is counted over.
	PressureWindow time.Duration

	// freeAtLeast is the inclusive lower freeBytes bound for selection.
	freeAtLeast uint64
}

const gib = uint64(1) << 30

// profiles is ordered most conservative first. Knobs are monotonic: a more
// conservative tier never allows more resource usage than a richer one.
var profiles = []Profile{
	{Name: Emergency, Resolution: 128, SequenceLength: 8, BatchSize: 1, InferenceSteps: 10, ChunkCount: 16,
		EnableOffload: true, EnablePrecisionReduction: true, AllocatorSplitSizeMB: 64, Sequential: true,
		HighWatermark: 0.85, DemoteAfter: 1, PressureWindow: 10 * time.Second, freeAtLeast: 0},
	{Name: UltraMinimal, Resolution: 192, SequenceLength: 12, BatchSize: 1, InferenceSteps: 15, ChunkCount: 12,
		EnableOffload: true, EnablePrecisionReduction: true, AllocatorSplitSizeMB: 96, Sequential: true,
		HighWatermark: 0.85, DemoteAfter: 1, PressureWindow: 10 * time.Second, freeAtLeast: 4 * gib},
	{Name: UltraLow, Resolution: 256, SequenceLength: 16, BatchSize: 1, InferenceSteps: 20, ChunkCount: 8,
		EnableOffload: true, EnablePrecisionReduction: true, AllocatorSplitSizeMB: 128, Sequential: true,
		HighWatermark: 0.88, DemoteAfter: 1, PressureWindow: 10 * time.Second, freeAtLeast: 6 * gib},
	{Name: Low, Resolution: 384, SequenceLength: 32, BatchSize: 1, InferenceSteps: 25, ChunkCount: 6,
		EnableOffload: true, EnablePrecisionReduction: true, AllocatorSplitSizeMB: 256, Sequential: true,
		HighWatermark: 0.90, DemoteAfter: 1, PressureWindow: 10 * time.Second, freeAtLeast: 8 * gib},
	{Name: Balanced, Resolution: 512, SequenceLength: 64, BatchSize: 1, InferenceSteps: 30, ChunkCount: 4,
		EnableOffload: false, EnablePrecisionReduction: true, AllocatorSplitSizeMB: 512, Sequential: false,
		HighWatermark: 0.92, DemoteAfter: 1, PressureWindow: 10 * time.Second, freeAtLeast: 12 * gib},
	{Name: High, Resolution: 704, SequenceLength: 96, BatchSize: 2, InferenceSteps: 40, ChunkCount: 2,
		EnableOffload: false, EnablePrecisionReduction: false, AllocatorSplitSizeMB: 768, Sequential: false,
		HighWatermark: 0.94, DemoteAfter: 2, PressureWindow: 20 * time.Second, freeAtLeast: 16 * gib},
	{Name: Maximum, Resolution: 960, SequenceLength: 128, BatchSize: 4, InferenceSteps: 50, ChunkCount: 1,
		EnableOffload: false, EnablePrecisionReduction: false, AllocatorSplitSizeMB: 1024, Sequential: false,
		HighWatermark: 0.95, DemoteAfter: 3, PressureWindow: 30 * time.Second, freeAtLeast: 24 * gib},
}

// Profiles returns the tier table ordered most conservative first.
func Profiles() []Profile {
	out := make([]Profile, len(profiles))
	copy(out, profiles)
	return out
}

// ByName looks up a profile by tier name.
func ByName(n Name) (Profile, bool) {
	for _, p := range profiles {
		if p.Name == n {
			return p, true
		}
	}
	return Profile{}, false
}

// index returns the position of n in the conservative-first ordering, or -1.
func index(n Name) int {
	for i, p := range profiles {
		if p.Name == n {
			return i
		}
	}
	return -1
}

// Next returns the next more conservative profile, or false when n is
// already the floor (emergency) or unknown. Demotion walks this chain and
// never promotes.
func Next(n Name) (Profile, bool) {
	i := index(n)
	if i <= 0 {
		return Profile{}, false
	}
	return profiles[i-1], true
}

// MoreConservative reports whether a is strictly more conservative than b.
func MoreConservative(a, b Name) bool {
	ia, ib := index(a), index(b)
	return ia >= 0 && ib >= 0 && ia < ib
}
