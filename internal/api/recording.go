package api

import (
	"net/http"

	"github.com/nerrad567/flowbench-core/internal/audit"
)

// recordingResponse reports the recorder state.
type recordingResponse struct {
	Active    bool `json:"active"`
	Recording any  `json:"recording,omitempty"`
}

// handleGetRecording reports whether a CSV recording is in progress.
func (s *Server) handleGetRecording(w http.ResponseWriter, _ *http.Request) {
	if s.recorder == nil {
		writeUnavailable(w, "recording is not configured")
		return
	}
	resp := recordingResponse{}
	if rec, ok := s.recorder.Current(); ok {
		resp.Active = true
		resp.Recording = rec
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleStartRecording opens a new pair of CSV files.
func (s *Server) handleStartRecording(w http.ResponseWriter, r *http.Request) {
	if s.recorder == nil {
		writeUnavailable(w, "recording is not configured")
		return
	}

	rec, err := s.recorder.Start()
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	// Seed the valve file with the current vector so the log starts complete.
	s.recorder.OnValveStateChanged(s.sequencer.Valves())

	s.auditLog(r, audit.ActionRecordingStart, "", map[string]any{"pressure_file": rec.PressurePath})
	s.logger.Info("recording started",
		"pressure_file", rec.PressurePath,
		"valve_file", rec.ValvePath,
		"operator", operatorFromContext(r.Context()),
	)
	writeJSON(w, http.StatusCreated, recordingResponse{Active: true, Recording: rec})
}

// handleStopRecording closes the active recording. Stopping when nothing is
// recorded succeeds with active=false.
func (s *Server) handleStopRecording(w http.ResponseWriter, r *http.Request) {
	if s.recorder == nil {
		writeUnavailable(w, "recording is not configured")
		return
	}

	wasActive := s.recorder.Active()
	rec, err := s.recorder.Stop()
	if err != nil {
		s.logger.Error("closing recording", "error", err)
		writeInternalError(w, "failed to close recording files")
		return
	}

	resp := recordingResponse{}
	if wasActive {
		resp.Recording = rec
		s.auditLog(r, audit.ActionRecordingStop, "", map[string]any{"pressure_file": rec.PressurePath})
		s.logger.Info("recording stopped", "pressure_file", rec.PressurePath, "valve_file", rec.ValvePath)
	}
	writeJSON(w, http.StatusOK, resp)
}
