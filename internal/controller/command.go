package controller

import (
	"github.com/google/uuid"

	"github.com/nerrad567/flowbench-core/internal/profile"
	"github.com/nerrad567/flowbench-core/internal/sequence"
	"github.com/nerrad567/flowbench-core/internal/valve"
)

// CommandType names a controller command.
type CommandType string

// Commands understood by the bench controller firmware.
const (
	CmdSetValve     CommandType = "SET_VALVE"
	CmdPanic        CommandType = "PANIC"
	CmdLoadSequence CommandType = "LOAD_SEQUENCE"
	CmdRunSequence  CommandType = "RUN_SEQUENCE"
)

// Ack statuses.
const (
	AckOK    = "ok"
	AckError = "error"
)

// Command is the JSON envelope published to the controller.
type Command struct {
	ID       string            `json:"id"`
	Cmd      CommandType       `json:"cmd"`
	Valve    string            `json:"valve,omitempty"`
	Action   valve.Action      `json:"action,omitempty"`
	Profile  *MotionProfile    `json:"profile,omitempty"`
	Sequence *sequence.Payload `json:"sequence,omitempty"`
}

// Ack is the controller's reply to a command.
type Ack struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// MotionProfile is the waypoint table a servo valve steps through.
type MotionProfile struct {
	Kind       profile.Kind `json:"kind"`
	IntervalMS int          `json:"interval_ms"`
	Points     []float64    `json:"points"`
}

func newCommand(cmd CommandType) Command {
	return Command{ID: uuid.NewString(), Cmd: cmd}
}
