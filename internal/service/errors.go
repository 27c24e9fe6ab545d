package service

import "errors"

// Domain error taxonomy. Handlers map these to HTTP status codes via
// errors.Is; nothing below this layer is ever shown to a client directly.
var (
	// ErrInvalidTransition is returned when an operation is attempted from a
	// lifecycle state that does not permit it, including retries of an
	// already-applied transition.
	ErrInvalidTransition = errors.New("invalid lifecycle transition")

	// ErrInvalidQuantity covers zero, negative, and out-of-range quantity
	// arguments.
	ErrInvalidQuantity = errors.New("invalid quantity")

	// ErrCapacityExceeded means a linear-capacity reservation would overfill
	// the location.
	ErrCapacityExceeded = errors.New("location capacity exceeded")

	// ErrSlotOccupied means a slot-mode reservation lost to an existing
	// occupant, including an occupant belonging to another tenant.
	ErrSlotOccupied = errors.New("slot already occupied")

	// ErrNotFound is returned for missing lots and locations, and for lots the
	// caller's tenant is not allowed to see.
	ErrNotFound = errors.New("not found")
)
