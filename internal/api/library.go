package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/flowbench-core/internal/audit"
	"github.com/nerrad567/flowbench-core/internal/sequence"
)

// maxRunsLimit caps the limit query parameter of GET /runs.
const maxRunsLimit = 500

// librarySaveRequest is the body of POST /library and PUT /library/{id}.
// Omitting steps saves the steps currently in the editor.
type librarySaveRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Steps       []sequence.Step `json:"steps"`
}

// handleListLibrary returns every saved sequence.
func (s *Server) handleListLibrary(w http.ResponseWriter, r *http.Request) {
	if s.library == nil {
		writeUnavailable(w, "sequence library is not configured")
		return
	}

	saved, err := s.library.List(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if saved == nil {
		saved = []sequence.Saved{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sequences": saved,
		"count":     len(saved),
	})
}

// handleCreateLibrary saves a named sequence.
func (s *Server) handleCreateLibrary(w http.ResponseWriter, r *http.Request) {
	if s.library == nil {
		writeUnavailable(w, "sequence library is not configured")
		return
	}

	var req librarySaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	seq := &sequence.Saved{
		Name:        req.Name,
		Description: req.Description,
		Steps:       req.Steps,
	}
	if seq.Steps == nil {
		seq.Steps = s.sequencer.Steps()
	}

	if err := s.library.Create(r.Context(), seq); err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.auditLog(r, audit.ActionLibrarySave, seq.ID, map[string]any{"name": seq.Name, "steps": len(seq.Steps)})
	s.logger.Info("sequence saved", "id", seq.ID, "name", seq.Name, "steps", len(seq.Steps))
	writeJSON(w, http.StatusCreated, seq)
}

// handleGetLibrary returns one saved sequence.
func (s *Server) handleGetLibrary(w http.ResponseWriter, r *http.Request) {
	if s.library == nil {
		writeUnavailable(w, "sequence library is not configured")
		return
	}

	seq, err := s.library.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, seq)
}

// handleUpdateLibrary replaces a saved sequence.
func (s *Server) handleUpdateLibrary(w http.ResponseWriter, r *http.Request) {
	if s.library == nil {
		writeUnavailable(w, "sequence library is not configured")
		return
	}

	var req librarySaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	existing, err := s.library.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	existing.Name = req.Name
	existing.Description = req.Description
	if req.Steps != nil {
		existing.Steps = req.Steps
	}

	if err := s.library.Update(r.Context(), existing); err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.auditLog(r, audit.ActionLibraryUpdate, existing.ID, map[string]any{"name": existing.Name, "steps": len(existing.Steps)})
	writeJSON(w, http.StatusOK, existing)
}

// handleDeleteLibrary removes a saved sequence.
func (s *Server) handleDeleteLibrary(w http.ResponseWriter, r *http.Request) {
	if s.library == nil {
		writeUnavailable(w, "sequence library is not configured")
		return
	}

	id := chi.URLParam(r, "id")
	if err := s.library.Delete(r.Context(), id); err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.auditLog(r, audit.ActionLibraryDelete, id, nil)
	s.logger.Info("sequence deleted", "id", id)
	w.WriteHeader(http.StatusNoContent)
}

// handleLoadLibrary replaces the editor contents with a saved sequence.
// Like any edit, this invalidates a sent plan.
func (s *Server) handleLoadLibrary(w http.ResponseWriter, r *http.Request) {
	if s.library == nil {
		writeUnavailable(w, "sequence library is not configured")
		return
	}

	seq, err := s.library.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if err := s.sequencer.SetSteps(seq.Steps); err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.auditLog(r, audit.ActionLibraryLoad, seq.ID, map[string]any{"name": seq.Name})
	s.logger.Info("sequence loaded", "id", seq.ID, "name", seq.Name)
	writeJSON(w, http.StatusOK, s.sequencer.Status())
}

// handleListRuns returns run history, newest first. Query: limit.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.library == nil {
		writeUnavailable(w, "run history is not configured")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = min(n, maxRunsLimit)
	}

	runs, err := s.library.ListRuns(r.Context(), limit)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if runs == nil {
		runs = []sequence.Run{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"runs":  runs,
		"count": len(runs),
	})
}

// handleGetRun returns one run record.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.library == nil {
		writeUnavailable(w, "run history is not configured")
		return
	}

	run, err := s.library.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}
