package manager

import (
	"time"

	"memgov/internal/tier"
)

// Checkpoint samples memory usage and services any queued pressure
// events. Each raw event triggers a cleanup pass; raw events inside one
// debounce interval coalesce into a single demotion decision, and once
// the rolling window holds enough decisions the tier is demoted one
// step. Demotion bottoms out at the most conservative tier.
func (m *Manager) Checkpoint(stage string) {
	m.monitor.Sample(m.usedFraction())
	events := m.monitor.Drain()
	if len(events) == 0 {
		return
	}

	m.mu.Lock()
	tierName := string(m.profile.Name)
	m.mu.Unlock()

	for _, ev := range events {
		m.publisher.Publish(Event{
			Name: EventPressure,
			Tier: tierName,
			Fields: map[string]interface{}{
				"used_fraction": ev.UsedFraction,
				"stage":         stage,
			},
		})
		m.runCleanup()
	}

	m.mu.Lock()
	for _, ev := range events {
		if m.lastDecision.IsZero() || ev.Timestamp.Sub(m.lastDecision) >= m.debounce {
			m.decisions = append(m.decisions, ev.Timestamp)
			m.lastDecision = ev.Timestamp
		}
	}
	cutoff := time.Now().Add(-m.profile.PressureWindow)
	kept := m.decisions[:0]
	for _, t := range m.decisions {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	m.decisions = kept

	var demoted *tier.Profile
	if len(m.decisions) >= m.profile.DemoteAfter {
		if next, ok := tier.Next(m.profile.Name); ok {
			m.profile = next
			m.demotions++
			m.decisions = nil
			m.lastDecision = time.Time{}
			demoted = &next
		} else {
			// Already at the floor; reset the count so the window does
			// not re-trigger on every checkpoint.
			m.decisions = nil
		}
	}
	m.mu.Unlock()

	if demoted != nil {
		m.applyProfile(*demoted)
		m.publisher.Publish(Event{
			Name: EventTierDemoted,
			Tier: string(demoted.Name),
			Fields: map[string]interface{}{
				"from":  tierName,
				"stage": stage,
			},
		})
		m.log.Warn().
			Str("from", tierName).
			Str("to", string(demoted.Name)).
			Str("stage", stage).
			Msg("memory pressure demotion")
	}
}

// Reset restores the tier selected at construction. Demotion never
// reverses on its own; this is the only way back up.
func (m *Manager) Reset() {
	m.mu.Lock()
	from := string(m.profile.Name)
	base := m.baseProfile
	m.profile = base
	m.decisions = nil
	m.lastDecision = time.Time{}
	m.mu.Unlock()

	m.applyProfile(base)
	m.publisher.Publish(Event{
		Name: EventTierReset,
		Tier: string(base.Name),
		Fields: map[string]interface{}{
			"from": from,
		},
	})
}

// applyProfile pushes a profile change into the monitor and the
// placement policy.
func (m *Manager) applyProfile(p tier.Profile) {
	m.monitor.SetWatermark(p.HighWatermark)
	m.policy.SetTier(string(p.Name), p.Sequential, p.EnableOffload)
}
