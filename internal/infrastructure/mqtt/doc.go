// Package mqtt provides the MQTT client FlowBench Core uses to talk to the
// bench controller.
//
// The controller firmware sits behind a Mosquitto broker. Core publishes
// commands on flowbench/command/{bench} and the controller answers on
// flowbench/ack/{bench}; pressure readings stream in on
// flowbench/telemetry/{bench}/pressure.
//
//	FlowBench Core ↔ MQTT Broker ↔ Bench Controller
//
// This package manages:
//   - Connection with auto-reconnect and subscription restore
//   - Publishing with QoS and payload size limits
//   - Last Will and Testament on flowbench/system/status
//
// Usage:
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.BenchAck("bench-1"), 1,
//	    func(topic string, payload []byte) error {
//	        return handleAck(payload)
//	    })
package mqtt
