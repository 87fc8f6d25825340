package sequence

import (
	"time"

	"github.com/nerrad567/flowbench-core/internal/valve"
)

// State is the Sequencer lifecycle state.
type State string

// Sequencer states.
const (
	StateIdle       State = "idle"
	StatePlanEdited State = "plan_edited"
	StateSent       State = "sent"
	StateRunning    State = "running"
	StateComplete   State = "complete"
	StateAborted    State = "aborted"
)

// Severity classifies a status message.
type Severity string

// Status severities.
const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// ValveAction targets one valve.
type ValveAction struct {
	Valve  string       `json:"valve" yaml:"valve"`
	Action valve.Action `json:"action" yaml:"action"`
}

// Step is one operator-authored entry. Actions may name a valve more than
// once; the last entry wins. Duration is in seconds and ignored for hold
// steps.
type Step struct {
	Actions  []ValveAction `json:"actions" yaml:"actions"`
	Duration float64       `json:"duration" yaml:"duration"`
	Hold     bool          `json:"hold" yaml:"hold"`
}

// CompiledStep is a validated step of a Plan. Exactly one of DurationMS and
// Hold is set.
type CompiledStep struct {
	Position   int
	Actions    []ValveAction
	DurationMS int
	Hold       bool
}

// Delay returns the step duration, or zero for a hold step.
func (s CompiledStep) Delay() time.Duration {
	return time.Duration(s.DurationMS) * time.Millisecond
}

// Snapshot is a point-in-time view of the Sequencer.
type Snapshot struct {
	State State `json:"state"`

	// Step is the 1-based position of the executing step, 0 when not running.
	Step int `json:"step"`

	// StepCount is the length of the running plan, else of the sent plan.
	StepCount int `json:"step_count"`

	Sent       bool           `json:"sent"`
	Holding    bool           `json:"holding"`
	Authored   int            `json:"authored"`
	RunID      string         `json:"run_id,omitempty"`
	Valves     []valve.Status `json:"valves"`
	LastChange time.Time      `json:"last_change"`
}
