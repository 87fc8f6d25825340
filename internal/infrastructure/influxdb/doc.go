// Package influxdb writes FlowBench test-bench telemetry to InfluxDB v2.
//
// Three measurements are written, all tagged with the bench ID:
//
//	valve_state      tags: bench, valve       fields: open (bool), position (0|1)
//	sequence_status  tags: bench, severity    fields: message
//	pressure         tags: bench, sensor      fields: bar
//
// Writes are non-blocking and batched according to the influxdb section of
// config.yaml (batch_size, flush_interval). Asynchronous write failures are
// delivered to the SetOnError callback.
//
// Usage:
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WritePressure("bench-1", "P1_Pressurant_bar", 12.4, time.Now())
package influxdb
