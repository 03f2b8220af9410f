package tier

import (
	"fmt"

	"memgov/pkg/types"
)

// Conflict describes an explicit override that disagrees with detected
// capacity. It is a warning, not an error: the override still wins.
type Conflict struct {
	Override Name
	Detected Name
}

func (c *Conflict) String() string {
	return fmt.Sprintf("tier override %q conflicts with detected capacity (would select %q)", c.Override, c.Detected)
}

// Select maps a capacity snapshot to a profile. A non-empty override wins
// unconditionally; when it disagrees with what detection would have picked,
// a non-nil Conflict is returned alongside. Select is a pure function with
// no side effects.
func Select(snap types.CapacitySnapshot, override Name) (Profile, *Conflict, error) {
	detected := fromFree(snap.FreeBytes)
	if override == "" {
		return detected, nil, nil
	}
	p, ok := ByName(override)
	if !ok {
		return Profile{}, nil, fmt.Errorf("unknown tier override %q", override)
	}
	if p.Name != detected.Name {
		return p, &Conflict{Override: p.Name, Detected: detected.Name}, nil
	}
	return p, nil, nil
}

// fromFree applies the ordered breakpoint table on freeBytes. Boundaries are
// half-open and inclusive on the lower (more conservative) side, so exactly
// 8 GiB free selects low, not ultra_low.
func fromFree(free uint64) Profile {
	for i := len(profiles) - 1; i >= 0; i-- {
		if free >= profiles[i].freeAtLeast {
			return profiles[i]
		}
	}
	return profiles[0]
}
