package sequence

import "errors"

// Domain errors for the sequence package.
//
// None of these are fatal. Each leaves the Sequencer in the state it was in
// before the failing call.
var (
	// ErrNoSteps is returned when sending with no steps authored at all.
	ErrNoSteps = errors.New("sequence: no steps authored")

	// ErrEmptyPlan is returned when every authored step selects no valves.
	ErrEmptyPlan = errors.New("sequence: no valves selected in any step")

	// ErrInvalidDuration is returned for a timed step shorter than 1 ms.
	ErrInvalidDuration = errors.New("sequence: invalid step duration")

	// ErrNotSent is returned when running without a successfully sent plan.
	ErrNotSent = errors.New("sequence: plan not sent")

	// ErrSequenceBusy is returned when sending or running while a plan is
	// running or a controller acknowledgement is outstanding.
	ErrSequenceBusy = errors.New("sequence: busy")

	// ErrNotRunning is returned by Advance and Stop outside a run.
	ErrNotRunning = errors.New("sequence: not running")

	// ErrSinkUnavailable is returned when the controller fails to acknowledge.
	ErrSinkUnavailable = errors.New("sequence: controller unavailable")

	// ErrSuperseded is returned when steps were edited, or panic was pressed,
	// while a send or run acknowledgement was outstanding.
	ErrSuperseded = errors.New("sequence: superseded while awaiting controller")

	// ErrSequenceNotFound is returned when a saved sequence ID does not exist.
	ErrSequenceNotFound = errors.New("sequence: saved sequence not found")

	// ErrSequenceExists is returned when a saved sequence name is already taken.
	ErrSequenceExists = errors.New("sequence: saved sequence name already exists")

	// ErrRunNotFound is returned when a run ID does not exist.
	ErrRunNotFound = errors.New("sequence: run not found")

	// ErrInvalidName is returned when a saved sequence has an empty or over-long name.
	ErrInvalidName = errors.New("sequence: invalid name")
)
