// Package telemetry records what happens on the bench.
//
// Every recorder here is a sequence.EventSink and/or a PressureObserver and
// is attached to the sequencer through a sequence.MultiSink:
//
//	Recorder    CSV files, one for pressures and one for valve states
//	InfluxSink  time-series points in InfluxDB
//	Journal     append-only CBOR journal of every event
//	LogSink     status messages mirrored into the structured log
//
// Ingest subscribes to the controller's pressure topic and fans readings
// out to PressureObservers.
package telemetry
