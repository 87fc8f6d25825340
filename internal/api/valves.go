package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/flowbench-core/internal/audit"
	"github.com/nerrad567/flowbench-core/internal/valve"
)

// setValveRequest is the body of PUT /valves/{name}.
type setValveRequest struct {
	Open *bool `json:"open"`
}

// setValveResponse reports a manual valve change.
type setValveResponse struct {
	Name     string `json:"name"`
	Open     bool   `json:"open"`
	Previous bool   `json:"previous"`
}

// handleListValves returns the valve vector in registration order.
func (s *Server) handleListValves(w http.ResponseWriter, _ *http.Request) {
	valves := s.sequencer.Valves()
	writeJSON(w, http.StatusOK, map[string]any{
		"valves": valves,
		"count":  len(valves),
	})
}

// handleSetValve drives one valve by hand. The local state changes even
// when the controller is unreachable, in which case the response is 502.
func (s *Server) handleSetValve(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req setValveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Open == nil {
		writeBadRequest(w, "open is required")
		return
	}

	ctx, cancel := s.commandContext(r)
	defer cancel()

	prev, err := s.sequencer.SetValve(ctx, name, *req.Open)
	if errors.Is(err, valve.ErrUnknownValve) {
		writeNotFound(w, "valve not found")
		return
	}
	s.auditLog(r, audit.ActionValve, name, map[string]any{"open": *req.Open, "previous": prev})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.logger.Info("manual valve command",
		"valve", name,
		"open", *req.Open,
		"operator", operatorFromContext(r.Context()),
	)
	writeJSON(w, http.StatusOK, setValveResponse{Name: name, Open: *req.Open, Previous: prev})
}

// handleToggleValve flips one valve, the equivalent of the bench panel's
// toggle buttons. Controller failures answer 502 as for PUT.
func (s *Server) handleToggleValve(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	ctx, cancel := s.commandContext(r)
	defer cancel()

	open, err := s.sequencer.Toggle(ctx, name)
	if errors.Is(err, valve.ErrUnknownValve) {
		writeNotFound(w, "valve not found")
		return
	}
	s.auditLog(r, audit.ActionValve, name, map[string]any{"open": open, "previous": !open, "toggle": true})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.logger.Info("manual valve toggle",
		"valve", name,
		"open", open,
		"operator", operatorFromContext(r.Context()),
	)
	writeJSON(w, http.StatusOK, setValveResponse{Name: name, Open: open, Previous: !open})
}
