package telemetry

import "errors"

var (
	// ErrAlreadyRecording is returned by Recorder.Start while a recording is active.
	ErrAlreadyRecording = errors.New("telemetry: already recording")

	// ErrMalformedReading is returned for a pressure message that cannot be decoded.
	ErrMalformedReading = errors.New("telemetry: malformed pressure reading")

	// ErrJournalClosed is returned when appending to a closed journal.
	ErrJournalClosed = errors.New("telemetry: journal closed")
)
