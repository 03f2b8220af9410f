package manager

import (
	"context"

	"memgov/internal/chunk"
	"memgov/pkg/types"
)

// RegisterComponent declares a component the placement policy will manage.
func (m *Manager) RegisterComponent(ctx context.Context, id string, sizeBytes uint64, rest types.Device) error {
	return m.policy.Register(ctx, id, sizeBytes, rest)
}

// WithChunked runs op over data in tier-sized chunks. A failure that
// survives the retry is fatal for the session but leaves the manager
// usable. Every call ends at a pressure checkpoint.
func (m *Manager) WithChunked(ctx context.Context, name string, data []float32, op chunk.Op) ([]float32, error) {
	m.mu.Lock()
	p := m.profile
	m.mu.Unlock()

	out, err := m.chunker.Process(ctx, data, p.ChunkCount, op)
	m.Checkpoint("chunked:" + name)
	if err != nil {
		if chunk.IsProcessingFailure(err) {
			return nil, sessionError{tier: p.Name, op: name, size: uint64(len(data)) * 4, err: err}
		}
		return nil, err
	}
	return out, nil
}

// WithOffload brackets fn with placement of the named component on the
// accelerator. Placement failures surface unchanged; the component is
// back at rest when fn returns, whatever the outcome.
func (m *Manager) WithOffload(ctx context.Context, id string, fn func(ctx context.Context) error) error {
	err := m.policy.WithAccelerator(ctx, id, fn)
	m.Checkpoint("offload:" + id)
	return err
}
