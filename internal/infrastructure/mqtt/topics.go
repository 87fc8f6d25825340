package mqtt

import "fmt"

// Topic prefixes for the FlowBench MQTT hierarchy.
//
// Bench controller topics are keyed by bench ID:
//
//	flowbench/command/{bench}             core -> controller
//	flowbench/ack/{bench}                 controller -> core
//	flowbench/telemetry/{bench}/pressure  controller -> core
const (
	// TopicPrefix is the base for all FlowBench topics.
	TopicPrefix = "flowbench"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "flowbench/system"
)

// Topics provides builders for FlowBench MQTT topics.
//
//	topics := mqtt.Topics{}
//	cmd := topics.BenchCommand("bench-1")
//	// Returns: "flowbench/command/bench-1"
type Topics struct{}

// BenchCommand returns the topic the core publishes controller commands on.
//
// Example: flowbench/command/bench-1
func (Topics) BenchCommand(benchID string) string {
	return fmt.Sprintf("%s/command/%s", TopicPrefix, benchID)
}

// BenchAck returns the topic the controller acknowledges commands on.
//
// Example: flowbench/ack/bench-1
func (Topics) BenchAck(benchID string) string {
	return fmt.Sprintf("%s/ack/%s", TopicPrefix, benchID)
}

// BenchPressure returns the topic carrying pressure sensor readings.
//
// Example: flowbench/telemetry/bench-1/pressure
func (Topics) BenchPressure(benchID string) string {
	return fmt.Sprintf("%s/telemetry/%s/pressure", TopicPrefix, benchID)
}

// SystemStatus returns the system status topic.
//
// Example: flowbench/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllBenchAcks returns a pattern matching acknowledgements from every bench.
//
// Pattern: flowbench/ack/+
func (Topics) AllBenchAcks() string {
	return fmt.Sprintf("%s/ack/+", TopicPrefix)
}

// AllBenchPressure returns a pattern matching pressure readings from every bench.
//
// Pattern: flowbench/telemetry/+/pressure
func (Topics) AllBenchPressure() string {
	return fmt.Sprintf("%s/telemetry/+/pressure", TopicPrefix)
}

// AllTopics returns a pattern matching all FlowBench topics.
//
// Pattern: flowbench/#
func (Topics) AllTopics() string {
	return TopicPrefix + "/#"
}
