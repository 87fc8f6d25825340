package telemetry

import (
	"time"

	"github.com/nerrad567/flowbench-core/internal/sequence"
	"github.com/nerrad567/flowbench-core/internal/valve"
)

// Reading is one sample of every pressure sensor, in bar, in the order the
// sensors are configured.
type Reading struct {
	At        time.Time `json:"at"`
	Pressures []float64 `json:"pressures"`
}

// PressureObserver receives pressure readings.
type PressureObserver interface {
	OnPressure(r Reading)
}

// PressureObserverFunc adapts a function to PressureObserver.
type PressureObserverFunc func(r Reading)

// OnPressure calls f(r).
func (f PressureObserverFunc) OnPressure(r Reading) { f(r) }

// Logger is the logging interface used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

var (
	_ sequence.EventSink = (*Recorder)(nil)
	_ sequence.EventSink = (*InfluxSink)(nil)
	_ sequence.EventSink = (*Journal)(nil)
	_ sequence.EventSink = (*LogSink)(nil)
	_ PressureObserver   = (*Recorder)(nil)
	_ PressureObserver   = (*InfluxSink)(nil)
	_ PressureObserver   = (*Journal)(nil)
	_ valve.Observer     = (*Recorder)(nil)
)
