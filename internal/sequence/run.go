package sequence

import (
	"context"
	"time"
)

// RunStatus is the outcome of a run.
type RunStatus string

// Run statuses.
const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunStopped   RunStatus = "stopped"
	RunAborted   RunStatus = "aborted"
)

// Run records one execution of a sent plan.
type Run struct {
	ID        string     `json:"id"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	Status    RunStatus  `json:"status"`
	StepCount int        `json:"step_count"`

	// StepsReached is the highest 1-based step position entered.
	StepsReached int     `json:"steps_reached"`
	Plan         Payload `json:"plan"`
}

// RunRecorder persists run history. Failures are logged and never affect
// the run itself.
type RunRecorder interface {
	CreateRun(ctx context.Context, run *Run) error
	UpdateRun(ctx context.Context, run *Run) error
}
