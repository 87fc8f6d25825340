package telemetry

import (
	"time"

	"github.com/nerrad567/flowbench-core/internal/sequence"
	"github.com/nerrad567/flowbench-core/internal/valve"
)

// PointWriter is the subset of *influxdb.Client InfluxSink writes through.
type PointWriter interface {
	WriteValveState(benchID, valveName string, open bool, ts time.Time)
	WriteSequenceStatus(benchID, severity, message string, ts time.Time)
	WritePressure(benchID, sensor string, bar float64, ts time.Time)
}

// InfluxSink writes bench events as InfluxDB points.
type InfluxSink struct {
	writer  PointWriter
	benchID string
	sensors []string
	now     func() time.Time
}

// NewInfluxSink returns a sink tagging every point with benchID. sensors
// names the pressure readings positionally.
func NewInfluxSink(writer PointWriter, benchID string, sensors []string) *InfluxSink {
	return &InfluxSink{
		writer:  writer,
		benchID: benchID,
		sensors: append([]string(nil), sensors...),
		now:     time.Now,
	}
}

// OnValveStateChanged writes one valve_state point per valve.
func (s *InfluxSink) OnValveStateChanged(valves []valve.Status) {
	ts := s.now()
	for _, v := range valves {
		s.writer.WriteValveState(s.benchID, v.Name, v.Open, ts)
	}
}

// OnSequenceStatus writes a sequence_status point.
func (s *InfluxSink) OnSequenceStatus(message string, severity sequence.Severity) {
	s.writer.WriteSequenceStatus(s.benchID, string(severity), message, s.now())
}

// OnPressure writes one pressure point per named sensor. Extra values
// without a configured sensor name are dropped.
func (s *InfluxSink) OnPressure(r Reading) {
	ts := r.At
	if ts.IsZero() {
		ts = s.now()
	}
	for i, bar := range r.Pressures {
		if i >= len(s.sensors) {
			return
		}
		s.writer.WritePressure(s.benchID, s.sensors[i], bar, ts)
	}
}
