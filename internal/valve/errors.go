package valve

import "errors"

// Domain errors for the valve package.
var (
	// ErrUnknownValve is returned when a name is not registered with the State.
	ErrUnknownValve = errors.New("valve: unknown valve")

	// ErrInvalidValve is returned when registering an empty or duplicate name.
	ErrInvalidValve = errors.New("valve: invalid valve")

	// ErrInvalidAction is returned for an action other than OPEN or CLOSE.
	ErrInvalidAction = errors.New("valve: invalid action")
)
