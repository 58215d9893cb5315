package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"geekbudget/internal/core"
	"geekbudget/internal/log"
	"geekbudget/internal/services"
	"geekbudget/internal/sources"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status, httpStatus := "ready", http.StatusOK
	checks := map[string]any{
		"rate_limiter": map[string]any{"active_clients": s.rateLimiter.ActiveClients(), "status": "ok"},
	}
	switch {
	case s.ready == nil:
		checks["store"] = "not_configured"
	default:
		if err := s.ready(ctx); err != nil {
			checks["store"] = "failed: " + err.Error()
			status, httpStatus = "not_ready", http.StatusServiceUnavailable
		} else {
			checks["store"] = "ok"
		}
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

func (s *Server) handleBudgetMatrix(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	req, err := ParseMatrixRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	m, err := s.views.BudgetMatrix(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, "Failed to build budget matrix", log.OpBuildMatrix, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleAggregationTables(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	req, err := ParseTableRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	tables, err := s.views.AggregationTables(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, "Failed to build aggregation tables", log.OpBuildTables, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tables": tables})
}

func (s *Server) handleSaveCell(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	edit, err := DecodeCellEdit(r)
	if err != nil {
		if errors.Is(err, core.ErrInvalidAmount) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.views.SaveBudgetCell(r.Context(), edit)
	if err != nil {
		s.writeServiceError(w, r, "Failed to save budget cell", log.OpSaveCell, err)
		return
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]any{
		"record":  res.Record,
		"created": res.Created,
		"matrix":  res.Matrix,
	})
}

// writeServiceError maps service errors to status codes; only unexpected
// failures are logged at error level.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, msg, op string, err error) {
	status, text := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.NewStructuredLogger(log.FromContext(r.Context())).LogError(r.Context(), msg, err, op, nil)
	} else {
		log.FromContext(r.Context()).DebugContext(r.Context(), msg, log.FieldError, err, log.FieldStatusCode, status)
	}
	writeError(w, status, text)
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrSuperseded):
		return http.StatusConflict, services.ErrSuperseded.Error()
	case errors.Is(err, core.ErrInvalidAmount):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, core.ErrInvalidInterval), errors.Is(err, core.ErrEmptyAccount):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, core.ErrUnknownAccount), errors.Is(err, sources.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "upstream timeout"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method || (method == http.MethodGet && r.Method == http.MethodHead) {
		return true
	}
	w.Header().Set("Allow", method)
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	return false
}
