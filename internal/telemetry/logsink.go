package telemetry

import (
	"github.com/nerrad567/flowbench-core/internal/sequence"
	"github.com/nerrad567/flowbench-core/internal/valve"
)

// LogSink mirrors sequencer events into the structured log.
type LogSink struct {
	logger Logger
}

// NewLogSink returns a LogSink writing to logger.
func NewLogSink(logger Logger) *LogSink {
	if logger == nil {
		logger = noopLogger{}
	}
	return &LogSink{logger: logger}
}

// OnValveStateChanged logs the open valves at debug level.
func (s *LogSink) OnValveStateChanged(valves []valve.Status) {
	open := make([]string, 0, len(valves))
	for _, v := range valves {
		if v.Open {
			open = append(open, v.Name)
		}
	}
	s.logger.Debug("valve state changed", "open", open)
}

// OnSequenceStatus logs message at a level matching severity.
func (s *LogSink) OnSequenceStatus(message string, severity sequence.Severity) {
	switch severity {
	case sequence.SeverityError:
		s.logger.Error(message, "component", "sequencer")
	case sequence.SeverityWarning:
		s.logger.Warn(message, "component", "sequencer")
	default:
		s.logger.Info(message, "component", "sequencer", "severity", severity)
	}
}
