package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/nerrad567/flowbench-core/internal/audit"
)

// auditChanSize is the buffer size for the async action log channel.
// Entries beyond this are dropped so a slow disk never delays a valve command.
const auditChanSize = 256

// auditLog enqueues an operator action for asynchronous write (best-effort).
func (s *Server) auditLog(r *http.Request, action, target string, details map[string]any) {
	if s.auditRepo == nil {
		return
	}

	source := "api"
	operator := operatorFromContext(r.Context())
	if operator == "" {
		source = "anonymous"
	}
	entry := &audit.Entry{
		Action:   action,
		Target:   target,
		Operator: operator,
		Source:   source,
		Details:  details,
	}

	select {
	case s.auditCh <- entry:
	default:
		s.logger.Warn("action log channel full, dropping entry", "action", action)
	}
}

// drainAuditLog writes queued entries serially until ctx is cancelled, then
// flushes whatever is left.
func (s *Server) drainAuditLog(ctx context.Context) {
	defer close(s.auditDone)
	for {
		select {
		case entry := <-s.auditCh:
			s.writeAudit(entry)
		case <-ctx.Done():
			s.flushAudit()
			return
		}
	}
}

// flushAudit writes every queued entry without blocking for more.
func (s *Server) flushAudit() {
	for {
		select {
		case entry := <-s.auditCh:
			s.writeAudit(entry)
		default:
			return
		}
	}
}

func (s *Server) writeAudit(entry *audit.Entry) {
	if err := s.auditRepo.Create(context.Background(), entry); err != nil {
		s.logger.Error("action log write failed", "action", entry.Action, "error", err)
	}
}

// handleListAudit returns recorded operator actions.
//
// Query parameters:
//   - action: filter by action (valve, send, run, panic, ...)
//   - operator: filter by token subject
//   - limit: max results (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	if s.auditRepo == nil {
		writeUnavailable(w, "action log not configured")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Action:   q.Get("action"),
		Operator: q.Get("operator"),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeBadRequest(w, "offset must be a non-negative integer")
			return
		}
		filter.Offset = n
	}

	result, err := s.auditRepo.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list operator actions", "error", err)
		writeInternalError(w, "failed to list operator actions")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
