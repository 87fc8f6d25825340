// Package config loads config.yaml, applies FLOWBENCH_* environment
// overrides and validates the result.
//
// The bench section is authoritative for valve names and their order. Every
// valve snapshot, CSV header and API listing follows that order, so
// reordering valves in the file changes recorded column layout.
//
// Secrets (JWT secret, MQTT password, InfluxDB token) belong in the
// environment rather than the file. Load refuses to return a config without
// a JWT secret of at least 32 characters.
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return fmt.Errorf("loading config: %w", err)
//	}
//	names := cfg.ValveNames()
package config
