package api

import (
	"encoding/json"
	"net/http"

	"github.com/nerrad567/flowbench-core/internal/audit"
	"github.com/nerrad567/flowbench-core/internal/sequence"
)

// setStepsRequest is the body of PUT /sequence/steps.
type setStepsRequest struct {
	Steps []sequence.Step `json:"steps"`
}

// sequenceResponse is the body of GET /sequence.
type sequenceResponse struct {
	Status sequence.Snapshot `json:"status"`
	Steps  []sequence.Step   `json:"steps"`
	Plan   *sequence.Payload `json:"plan,omitempty"`
}

// handleGetSequence returns the sequencer state, the authored steps and the
// live sent plan.
func (s *Server) handleGetSequence(w http.ResponseWriter, _ *http.Request) {
	resp := sequenceResponse{
		Status: s.sequencer.Status(),
		Steps:  s.sequencer.Steps(),
	}
	if plan := s.sequencer.SentPlan(); plan != nil {
		payload := plan.Payload()
		resp.Plan = &payload
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleSetSteps replaces the authored steps.
func (s *Server) handleSetSteps(w http.ResponseWriter, r *http.Request) {
	var req setStepsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Steps == nil {
		req.Steps = []sequence.Step{}
	}

	if err := s.sequencer.SetSteps(req.Steps); err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.auditLog(r, audit.ActionSteps, "", map[string]any{"steps": len(req.Steps)})
	writeJSON(w, http.StatusOK, s.sequencer.Status())
}

// handleSendSequence compiles the authored steps and sends the plan to the
// controller, waiting for its acknowledgement.
func (s *Server) handleSendSequence(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.commandContext(r)
	defer cancel()

	plan, err := s.sequencer.Send(ctx)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.auditLog(r, audit.ActionSend, "", map[string]any{"steps": plan.StepCount(), "total_ms": plan.TotalDurationMS()})
	s.logger.Info("sequence sent via API",
		"steps", plan.StepCount(),
		"operator", operatorFromContext(r.Context()),
	)
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   s.sequencer.Status(),
		"plan":     plan.Payload(),
		"total_ms": plan.TotalDurationMS(),
	})
}

// handleRunSequence starts the sent plan.
func (s *Server) handleRunSequence(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.commandContext(r)
	defer cancel()

	if err := s.sequencer.Run(ctx); err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.auditLog(r, audit.ActionRun, "", nil)
	s.logger.Info("sequence run via API", "operator", operatorFromContext(r.Context()))
	writeJSON(w, http.StatusAccepted, s.sequencer.Status())
}

// handleStopSequence ends the running plan without moving any valve.
func (s *Server) handleStopSequence(w http.ResponseWriter, r *http.Request) {
	if err := s.sequencer.Stop(); err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.auditLog(r, audit.ActionStop, "", nil)
	writeJSON(w, http.StatusOK, s.sequencer.Status())
}

// handleAdvanceSequence leaves the current step early.
func (s *Server) handleAdvanceSequence(w http.ResponseWriter, r *http.Request) {
	if err := s.sequencer.Advance(); err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.auditLog(r, audit.ActionAdvance, "", nil)
	writeJSON(w, http.StatusOK, s.sequencer.Status())
}

// handlePanic closes every valve and aborts whatever is in progress. It
// never fails: a controller that cannot be reached only produces a warning
// on the status channel.
func (s *Server) handlePanic(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.commandContext(r)
	defer cancel()

	s.sequencer.Panic(ctx)
	s.auditLog(r, audit.ActionPanic, "", map[string]any{"remote_addr": r.RemoteAddr})

	s.logger.Warn("panic pressed",
		"remote_addr", r.RemoteAddr,
		"request_id", r.Context().Value(ctxKeyRequestID),
	)
	writeJSON(w, http.StatusOK, s.sequencer.Status())
}
