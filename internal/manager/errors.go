package manager

import (
	"errors"
	"fmt"

	"memgov/internal/tier"
)

// sessionError marks a processing session that failed after the retry
// budget was exhausted. The session is fatal; the manager stays usable.
type sessionError struct {
	tier tier.Name
	op   string
	size uint64
	err  error
}

func (e sessionError) Error() string {
	return fmt.Sprintf("session %q failed at tier %s (payload %d bytes): %v", e.op, e.tier, e.size, e.err)
}

func (e sessionError) Unwrap() error { return e.err }

// IsSessionFailure reports whether err is a fatal session failure.
func IsSessionFailure(err error) bool {
	var se sessionError
	return errors.As(err, &se)
}
