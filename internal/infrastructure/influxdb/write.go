package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementValveState     = "valve_state"
	MeasurementSequenceStatus = "sequence_status"
	MeasurementPressure       = "pressure"
)

// ValveStatePoint builds a valve_state point. position is 1 when open so
// the series can be plotted alongside pressures.
func ValveStatePoint(benchID, valveName string, open bool, ts time.Time) *write.Point {
	position := 0
	if open {
		position = 1
	}
	return write.NewPoint(
		MeasurementValveState,
		map[string]string{"bench": benchID, "valve": valveName},
		map[string]interface{}{"open": open, "position": position},
		ts,
	)
}

// SequenceStatusPoint builds a sequence_status point.
func SequenceStatusPoint(benchID, severity, message string, ts time.Time) *write.Point {
	return write.NewPoint(
		MeasurementSequenceStatus,
		map[string]string{"bench": benchID, "severity": severity},
		map[string]interface{}{"message": message},
		ts,
	)
}

// PressurePoint builds a pressure point.
func PressurePoint(benchID, sensor string, bar float64, ts time.Time) *write.Point {
	return write.NewPoint(
		MeasurementPressure,
		map[string]string{"bench": benchID, "sensor": sensor},
		map[string]interface{}{"bar": bar},
		ts,
	)
}

// WriteValveState records one valve's state.
func (c *Client) WriteValveState(benchID, valveName string, open bool, ts time.Time) {
	c.write(ValveStatePoint(benchID, valveName, open, ts))
}

// WriteSequenceStatus records a sequencer status message.
func (c *Client) WriteSequenceStatus(benchID, severity, message string, ts time.Time) {
	c.write(SequenceStatusPoint(benchID, severity, message, ts))
}

// WritePressure records one sensor reading in bar.
func (c *Client) WritePressure(benchID, sensor string, bar float64, ts time.Time) {
	c.write(PressurePoint(benchID, sensor, bar, ts))
}

func (c *Client) write(point *write.Point) {
	if !c.IsConnected() {
		return
	}
	c.queued.Add(1)
	c.writeAPI.WritePoint(point)
}
