package controller

import (
	"context"
	"sync"

	"github.com/nerrad567/flowbench-core/internal/sequence"
	"github.com/nerrad567/flowbench-core/internal/valve"
)

// loopbackHistory bounds the number of commands Loopback remembers.
const loopbackHistory = 256

// Loopback is a CommandSink that acknowledges every command locally. It is
// the transport when no bench controller is attached.
type Loopback struct {
	mu       sync.Mutex
	sent     []Command
	logger   Logger
	profiles map[string]servoProfiles
}

var _ sequence.CommandSink = (*Loopback)(nil)

// NewLoopback returns a loopback sink. Servo profiles are generated as
// they would be for the real controller so the log shows the same payloads.
func NewLoopback(valves []ValveSpec, logger Logger) (*Loopback, error) {
	profiles, err := buildProfiles(valves)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Loopback{logger: logger, profiles: profiles}, nil
}

// SendValveCommand records SET_VALVE.
func (l *Loopback) SendValveCommand(_ context.Context, name string, action valve.Action) error {
	cmd := newCommand(CmdSetValve)
	cmd.Valve = name
	cmd.Action = action
	if p, ok := l.profiles[name]; ok {
		mp := p.close
		if action.Opens() {
			mp = p.open
		}
		cmd.Profile = &mp
	}
	l.record(cmd)
	return nil
}

// SendPanic records PANIC.
func (l *Loopback) SendPanic(context.Context) error {
	l.record(newCommand(CmdPanic))
	return nil
}

// SendSequence records LOAD_SEQUENCE.
func (l *Loopback) SendSequence(_ context.Context, payload sequence.Payload) error {
	cmd := newCommand(CmdLoadSequence)
	cmd.Sequence = &payload
	l.record(cmd)
	return nil
}

// RunSequence records RUN_SEQUENCE.
func (l *Loopback) RunSequence(context.Context) error {
	l.record(newCommand(CmdRunSequence))
	return nil
}

// Sent returns a copy of the most recent commands, oldest first.
func (l *Loopback) Sent() []Command {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Command, len(l.sent))
	copy(out, l.sent)
	return out
}

func (l *Loopback) record(cmd Command) {
	l.mu.Lock()
	if len(l.sent) == loopbackHistory {
		l.sent = append(l.sent[:0], l.sent[1:]...)
	}
	l.sent = append(l.sent, cmd)
	l.mu.Unlock()
	l.logger.Info("loopback controller command", "cmd", cmd.Cmd, "id", cmd.ID, "valve", cmd.Valve, "action", cmd.Action)
}
