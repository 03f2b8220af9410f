package offload

import (
	"errors"
	"fmt"
)

// placementError is fatal: a component could not be placed on the
// accelerator even after emergency cleanup and one retry. It aborts the
// session and names the component and its size.
type placementError struct {
	component string
	sizeBytes uint64
	tier      string
	reason    error
}

func (e placementError) Error() string {
	return fmt.Sprintf("placement of component %q (%d bytes) failed at tier %q: %v", e.component, e.sizeBytes, e.tier, e.reason)
}

func (e placementError) Unwrap() error { return e.reason }

// IsPlacementFailure reports whether err is a fatal placement failure.
func IsPlacementFailure(err error) bool {
	var pe placementError
	return errors.As(err, &pe)
}

type unknownComponentError struct{ id string }

func (e unknownComponentError) Error() string { return "unknown component: " + e.id }

// IsUnknownComponent reports whether err indicates an unregistered component id.
func IsUnknownComponent(err error) bool {
	var ue unknownComponentError
	return errors.As(err, &ue)
}

type duplicateComponentError struct{ id string }

func (e duplicateComponentError) Error() string { return "component already registered: " + e.id }

// IsDuplicateComponent reports whether err indicates a repeated registration.
func IsDuplicateComponent(err error) bool {
	var de duplicateComponentError
	return errors.As(err, &de)
}

// errBudgetExceeded is the internal reason recorded when the accelerator
// budget minus the safety margin cannot fit a component.
var errBudgetExceeded = errors.New("accelerator budget exceeded")
