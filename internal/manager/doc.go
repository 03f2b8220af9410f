// Package manager orchestrates adaptive memory management for one inference
// session: it owns the active tier profile, exposes the chunking and offload
// primitives model-execution code is allowed to use, and applies the
// demotion policy when memory pressure is observed. It is structured into
// small files by concern:
//
//   - manager.go: core Manager type, constructor, getters, Status.
//   - config.go: Config and package defaults.
//   - runtime.go: ConfigureRuntime knob derivation.
//   - ops.go: WithChunked/WithOffload/RegisterComponent entry points.
//   - demote.go: checkpoints, pressure handling, demotion, Reset.
//   - events.go: telemetry event types and publishers.
//   - eventpub_memory.go: in-memory publisher for tests.
//   - errors.go: fatal session error wrapping.
//
// A session runs as one logical sequential thread of control. The pressure
// monitor's background sampler only enqueues events; all state changes
// happen on the calling thread when a checkpoint drains the queue.
package manager
