package chunk

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"memgov/internal/reclaim"
)

// Op is a stateless per-chunk mapping. It must not require cross-chunk
// context (full-dimension normalization is unsupported); honoring that is
// the caller's responsibility.
type Op func(ctx context.Context, chunk []float32) ([]float32, error)

// Processor applies an Op chunk by chunk, staging each chunk through the
// scratch pool so its buffer is released immediately after the chunk's
// output is produced.
type Processor struct {
	pool *reclaim.Pool
	log  zerolog.Logger
}

// NewProcessor returns a Processor. pool may be nil, in which case ops see
// subslices of the input directly.
func NewProcessor(pool *reclaim.Pool, log zerolog.Logger) *Processor {
	return &Processor{pool: pool, log: log}
}

// Process splits data into chunkCount pieces and applies op to each in
// original order, appending outputs to an order-preserving accumulator.
// With chunkCount 1 the result is identical to an unchunked application of
// op. If a chunk's op reports resource exhaustion, the whole operation is
// retried once with the chunk count doubled; a second exhaustion (or a
// failing retry) is fatal.
func (p *Processor) Process(ctx context.Context, data []float32, chunkCount int, op Op) ([]float32, error) {
	if len(data) == 0 {
		return op(ctx, data)
	}
	plan, err := PlanChunks(len(data), chunkCount)
	if err != nil {
		return nil, err
	}

	out, err := p.run(ctx, data, plan, op)
	if err == nil {
		return out, nil
	}
	if !errors.Is(err, ErrResourceExhausted) {
		return nil, err
	}

	retryCount := plan.ChunkCount * 2
	if retryCount > len(data) {
		retryCount = len(data)
	}
	p.log.Warn().Int("chunk_count", plan.ChunkCount).Int("retry_chunk_count", retryCount).
		Msg("chunk op exhausted resources, retrying with halved chunk size")
	retryPlan, err2 := PlanChunks(len(data), retryCount)
	if err2 != nil {
		return nil, err2
	}
	out, err2 = p.run(ctx, data, retryPlan, op)
	if err2 != nil {
		return nil, processingFailureError{totalElements: len(data), chunkCount: retryCount, err: err2}
	}
	return out, nil
}

func (p *Processor) run(ctx context.Context, data []float32, plan Plan, op Op) ([]float32, error) {
	out := make([]float32, 0, len(data))
	off := 0
	for _, size := range plan.Sizes {
		// Cooperative cancellation between chunks.
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		in := data[off : off+size]
		if p.pool != nil {
			stage := p.pool.Get(size)
			copy(stage, in)
			res, err := op(ctx, stage)
			if err != nil {
				p.pool.Put(stage)
				return nil, err
			}
			out = append(out, res...)
			p.pool.Put(stage)
		} else {
			res, err := op(ctx, in)
			if err != nil {
				return nil, err
			}
			out = append(out, res...)
		}
		off += size
	}
	return out, nil
}
