package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"muxmonitor/internal/storage"
)

func (h *Handler) findingsDisabled(w http.ResponseWriter) bool {
	if h.Findings != nil {
		return false
	}
	writeJSON(w, http.StatusServiceUnavailable, errorResponse{Ok: false, Code: "findings_disabled", Message: "findings log is not configured"})
	return true
}

func (h *Handler) handleFindingsList(w http.ResponseWriter, r *http.Request) {
	if h.findingsDisabled(w) {
		return
	}
	q := r.URL.Query()
	filter := storage.FindingFilter{Status: q.Get("status"), Table: q.Get("table"), Limit: 200}
	if raw := q.Get("treated"); raw != "" {
		treated, err := strconv.ParseBool(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Ok: false, Code: "invalid_request", Message: "treated must be true or false"})
			return
		}
		filter.Treated = &treated
	}
	if raw := q.Get("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil && limit >= 0 {
			filter.Limit = limit
		}
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout())
	defer cancel()
	findings, err := h.Findings.ListFindings(ctx, filter)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "findings": findings})
}

type treatedRequest struct {
	Treated bool `json:"treated"`
}

func (h *Handler) handleFindingTreated(w http.ResponseWriter, r *http.Request) {
	if h.findingsDisabled(w) {
		return
	}
	var req treatedRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout())
	defer cancel()
	if err := h.Findings.SetTreated(ctx, chi.URLParam(r, "id"), req.Treated); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
