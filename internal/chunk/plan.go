// Package chunk bounds peak memory for large tensor operations by splitting
// the processing dimension into sequential, bounded-size pieces.
package chunk

import "fmt"

// Plan describes how a tensor's processing dimension is split. Plans are
// derived per call and not persisted.
type Plan struct {
	TotalElements int
	ChunkCount    int
	Sizes         []int
}

// PlanChunks splits total elements into count pieces using ceiling-division
// sizing: the first total mod count chunks get one extra element, the rest
// get floor(total/count), so max(size) - min(size) <= 1 and the sizes always
// sum to total. count is clamped to total so no chunk is empty unless the
// input itself is empty.
func PlanChunks(total, count int) (Plan, error) {
	if total < 0 {
		return Plan{}, fmt.Errorf("negative element count %d", total)
	}
	if count < 1 {
		return Plan{}, fmt.Errorf("chunk count must be at least 1, got %d", count)
	}
	if total == 0 {
		return Plan{TotalElements: 0, ChunkCount: 0}, nil
	}
	if count > total {
		count = total
	}
	base := total / count
	extra := total % count
	sizes := make([]int, count)
	for i := range sizes {
		sizes[i] = base
		if i < extra {
			sizes[i]++
		}
	}
	return Plan{TotalElements: total, ChunkCount: count, Sizes: sizes}, nil
}
