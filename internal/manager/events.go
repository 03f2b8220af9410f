package manager

import "github.com/rs/zerolog"

// Event names published by the manager.
const (
	EventTierSelected = "tier_selected"
	EventTierDemoted  = "tier_demoted"
	EventTierReset    = "tier_reset"
	EventPressure     = "memory_pressure"
	EventCleanup      = "cleanup_completed"
)

// Event is a single telemetry record.
type Event struct {
	Name   string
	Tier   string
	Fields map[string]interface{}
}

// EventPublisher receives manager telemetry. Implementations must be
// safe for concurrent use and must not block.
type EventPublisher interface {
	Publish(ev Event)
}

type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}

// ZerologPublisher emits each event as a structured log line.
type ZerologPublisher struct {
	Log zerolog.Logger
}

func (p ZerologPublisher) Publish(ev Event) {
	e := p.Log.Info().Str("event", ev.Name).Str("tier", ev.Tier)
	for k, v := range ev.Fields {
		e = e.Interface(k, v)
	}
	e.Msg("memgov event")
}

// FanoutPublisher forwards each event to every wrapped publisher.
type FanoutPublisher []EventPublisher

func (f FanoutPublisher) Publish(ev Event) {
	for _, p := range f {
		p.Publish(ev)
	}
}
