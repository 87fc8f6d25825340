package controller

import "errors"

var (
	// ErrAckTimeout is returned when the controller does not acknowledge a
	// command within the configured ack timeout.
	ErrAckTimeout = errors.New("controller: acknowledgement timed out")

	// ErrNacked is returned when the controller rejects a command.
	ErrNacked = errors.New("controller: command rejected")

	// ErrClosed is returned for commands issued after Close.
	ErrClosed = errors.New("controller: sink closed")

	// ErrInvalidConfig is returned by NewMQTTSink for an unusable configuration.
	ErrInvalidConfig = errors.New("controller: invalid configuration")
)
