package manager

import (
	"fmt"

	"memgov/pkg/types"
)

// ConfigureRuntime derives the working settings for the active tier.
// The allocator conf string follows the accelerator allocator's
// "key:value,key:value" format.
func (m *Manager) ConfigureRuntime() types.RuntimeSettings {
	m.mu.Lock()
	p := m.profile
	every := m.cleanupEvery
	m.mu.Unlock()

	gcThreshold := 0.8
	if p.EnableOffload {
		// Offloading tiers collect more aggressively to keep headroom
		// for transfers.
		gcThreshold = 0.6
	}

	return types.RuntimeSettings{
		Tier:                     string(p.Name),
		Resolution:               p.Resolution,
		SequenceLength:           p.SequenceLength,
		BatchSize:                p.BatchSize,
		InferenceSteps:           p.InferenceSteps,
		ChunkCount:               p.ChunkCount,
		EnableOffload:            p.EnableOffload,
		EnablePrecisionReduction: p.EnablePrecisionReduction,
		AllocatorSplitSizeMB:     p.AllocatorSplitSizeMB,
		AllocatorConf: fmt.Sprintf("max_split_size_mb:%d,garbage_collection_threshold:%.1f",
			p.AllocatorSplitSizeMB, gcThreshold),
		Sequential:      p.Sequential,
		CleanupInterval: every,
	}
}
