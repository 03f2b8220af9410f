package types

import "time"

// Device identifies a memory tier a component can live on.
type Device string

const (
	DeviceAccelerator Device = "accelerator"
	DeviceHost        Device = "host"
	DeviceNone        Device = "none"
)

// CapacitySnapshot is a point-in-time view of accelerator (or, when no
// accelerator is usable, host) memory. Snapshots are created fresh on each
// probe and never mutated.
type CapacitySnapshot struct {
	// Total memory on the device in bytes.
	TotalBytes uint64 `json:"total_bytes"`
	// Memory currently in use in bytes.
	UsedBytes uint64 `json:"used_bytes"`
	// Memory currently free in bytes.
	FreeBytes uint64 `json:"free_bytes"`
	// Device index as reported by the driver; -1 when no accelerator was queryable.
	DeviceID int `json:"device_id"`
	// Human-readable device name, empty for the host fallback.
	DeviceName string `json:"device_name,omitempty"`
	// True when the snapshot describes host memory because the accelerator
	// was absent or could not be queried.
	Unavailable bool `json:"device_unavailable,omitempty"`
	// When the probe ran.
	Timestamp time.Time `json:"timestamp"`
}

// UsedFraction returns used/total, or 0 when total is unknown.
func (s CapacitySnapshot) UsedFraction() float64 {
	if s.TotalBytes == 0 {
		return 0
	}
	return float64(s.UsedBytes) / float64(s.TotalBytes)
}

// PlacementStatus summarizes one registered component for /status.
type PlacementStatus struct {
	// Component identifier from the manifest.
	// example: transformer
	ComponentID string `json:"component_id"`
	// Device the component rests on between uses.
	RestDevice string `json:"rest_device"`
	// Device the component currently occupies.
	CurrentDevice string `json:"current_device"`
	// Component size in bytes.
	SizeBytes uint64 `json:"size_bytes"`
	// Last time the component was acquired (unix seconds, 0 if never).
	LastAccessUnix int64 `json:"last_access_unix,omitempty"`
	// True while the component is inside a bracketed acquisition.
	InFlight bool `json:"in_flight,omitempty"`
}

// RuntimeSettings is the concrete-knob view of the active tier returned by
// GET /tier and by MemoryManager.ConfigureRuntime.
type RuntimeSettings struct {
	// Active tier name.
	// example: balanced
	Tier string `json:"tier"`
	// Output resolution in pixels.
	// example: 512
	Resolution int `json:"resolution"`
	// Maximum sequence (frame) length.
	SequenceLength int `json:"sequence_length"`
	// Batch size per step.
	BatchSize int `json:"batch_size"`
	// Diffusion/inference step count.
	InferenceSteps int `json:"inference_steps"`
	// Number of pieces large tensor ops are split into.
	ChunkCount int `json:"chunk_count"`
	// Whether components follow the offload (host-rest) pattern.
	EnableOffload bool `json:"enable_offload"`
	// Whether reduced-precision math is requested.
	EnablePrecisionReduction bool `json:"enable_precision_reduction"`
	// Allocator split size knob in MB.
	AllocatorSplitSizeMB int `json:"allocator_split_size_mb"`
	// Serialized allocator configuration string for the execution layer.
	AllocatorConf string `json:"allocator_conf"`
	// Whether only one component may be accelerator-resident at a time.
	Sequential bool `json:"sequential"`
	// Run EmergencyCleanup every N pipeline stages (caller cadence hint).
	CleanupInterval int `json:"cleanup_interval"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Active tier name.
	// example: balanced
	Tier string `json:"tier"`
	// Tier selected at session start (Reset target).
	BaseTier string `json:"base_tier"`
	// Capacity snapshot the session was configured from.
	Snapshot CapacitySnapshot `json:"snapshot"`
	// Accelerator bytes currently held by registered components.
	AcceleratorUsedBytes uint64 `json:"accelerator_used_bytes"`
	// Accelerator byte budget for placements.
	BudgetBytes uint64 `json:"budget_bytes"`
	// Safety margin kept free inside the budget.
	MarginBytes uint64 `json:"margin_bytes"`
	// Most recent observed used fraction.
	UsedFraction float64 `json:"used_fraction"`
	// Registered component placements.
	Placements []PlacementStatus `json:"placements"`
	// Total raw pressure events observed.
	PressureEventsTotal uint64 `json:"pressure_events_total"`
	// Total tier demotions applied.
	DemotionsTotal uint64 `json:"demotions_total"`
	// Total emergency cleanup runs.
	CleanupsTotal uint64 `json:"cleanups_total"`
	// Total bytes reclaimed by emergency cleanup.
	ReclaimedBytesTotal uint64 `json:"reclaimed_bytes_total"`
	// Uptime of the session in seconds.
	UptimeSeconds int64 `json:"uptime_seconds"`
	// Server time in unix seconds.
	ServerTimeUnix int64 `json:"server_time_unix"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: unknown tier override
	Error string `json:"error"`
	// HTTP status code.
	// example: 400
	Code int `json:"code"`
}
