// Package api implements the HTTP REST API and WebSocket server for FlowBench Core.
//
// This package provides:
//   - REST endpoints for manual valve control, sequence authoring and execution
//   - Saved sequence library and run history backed by the sequence repository
//   - CSV recording control and motion profile previews
//   - WebSocket hub broadcasting valve, status and pressure events
//   - JWT bearer authentication with ticket-based WebSocket auth
//
// # Architecture
//
// The server wraps a single sequence.Sequencer. Handlers call it directly;
// the Hub is registered as one of the sequencer's event sinks and as a
// pressure observer, so every valve change, status message and reading
// reaches subscribed WebSocket clients.
//
// # Security
//
// Control routes require an operator token (see IssueToken). POST /panic,
// health and metrics are unauthenticated.
// WebSocket connections use single-use tickets to keep tokens out of URLs.
//
// # Graceful Degradation
//
// The library, run history and recording routes answer 503 when their
// backing component is not configured. Controller failures surface as 502
// while the local valve state still reflects the operator's command.
package api
