// Package controller implements sequence.CommandSink for the bench
// controller.
//
// MQTTSink publishes JSON commands on flowbench/command/{bench} and waits for
// acknowledgements on flowbench/ack/{bench}:
//
//	core ──{"id","cmd":"LOAD_SEQUENCE","sequence":{...}}──▶ controller
//	core ◀──{"id","status":"ok"}─────────────────────────── controller
//
// Only LOAD_SEQUENCE and RUN_SEQUENCE wait for an ack. SET_VALVE and PANIC
// return once the broker has accepted the publish; the controller drives
// valves without further confirmation.
//
// Loopback acknowledges everything in-process and is used when no broker
// is configured.
package controller
