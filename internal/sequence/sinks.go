package sequence

import (
	"context"
	"sync"

	"github.com/nerrad567/flowbench-core/internal/valve"
)

// CommandSink is the outbound channel to the bench controller.
//
// SendSequence and RunSequence return only once the controller has
// acknowledged or failed. SendValveCommand and SendPanic may return as soon
// as the command is on its way.
type CommandSink interface {
	SendValveCommand(ctx context.Context, name string, action valve.Action) error
	SendPanic(ctx context.Context) error
	SendSequence(ctx context.Context, payload Payload) error
	RunSequence(ctx context.Context) error
}

// EventSink observes the Sequencer. Calls are made synchronously while the
// Sequencer holds its lock, in the order the transitions happen.
// Implementations must not block and must not call back into the Sequencer.
type EventSink interface {
	valve.Observer
	OnSequenceStatus(message string, severity Severity)
}

// MultiSink fans events out to several sinks in order.
type MultiSink struct {
	mu    sync.RWMutex
	sinks []EventSink
}

// NewMultiSink creates a fan-out over sinks. Nil entries are skipped.
func NewMultiSink(sinks ...EventSink) *MultiSink {
	m := &MultiSink{}
	for _, s := range sinks {
		m.Add(s)
	}
	return m
}

// Add appends a sink. Sinks added while a run is in progress receive
// events from the next transition on.
func (m *MultiSink) Add(s EventSink) {
	if s == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sinks = append(m.sinks, s)
}

// OnValveStateChanged implements EventSink.
func (m *MultiSink) OnValveStateChanged(valves []valve.Status) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.sinks {
		snap := make([]valve.Status, len(valves))
		copy(snap, valves)
		s.OnValveStateChanged(snap)
	}
}

// OnSequenceStatus implements EventSink.
func (m *MultiSink) OnSequenceStatus(message string, severity Severity) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.sinks {
		s.OnSequenceStatus(message, severity)
	}
}

// Logger defines the logging interface used by the Sequencer.
// This allows the sequence package to log without depending on a concrete logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// noopEvents discards events.
type noopEvents struct{}

func (noopEvents) OnValveStateChanged([]valve.Status) {}
func (noopEvents) OnSequenceStatus(string, Severity)  {}
