package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"muxmonitor/internal/monitoring"
	"muxmonitor/internal/records"
)

func (h *Handler) handleMeteringPreview(w http.ResponseWriter, r *http.Request) {
	var in records.MeteringInput
	if err := decodeJSON(r, &in); err != nil {
		writeBadRequest(w, err)
		return
	}
	report, err := h.Service.PreviewMetering(in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "report": report})
}

func (h *Handler) handleMeteringSave(w http.ResponseWriter, r *http.Request) {
	var in records.MeteringInput
	if err := decodeJSON(r, &in); err != nil {
		writeBadRequest(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout())
	defer cancel()
	res, err := h.Service.SaveMetering(ctx, in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "result": res})
}

func (h *Handler) handleMeteringList(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Ok: false, Code: "invalid_request", Message: "limit must be a non-negative integer"})
			return
		}
		limit = parsed
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout())
	defer cancel()
	table, err := h.Service.ListMetering(ctx, limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "table": table})
}

func (h *Handler) handleMeteringSeries(w http.ResponseWriter, r *http.Request) {
	from, to, err := dateRange(r, true)
	if err != nil {
		h.writeError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout())
	defer cancel()
	points, err := h.Service.MeteringSeries(ctx, from, to, r.URL.Query()["param"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "points": points})
}

func (h *Handler) handleChecklistPreview(w http.ResponseWriter, r *http.Request) {
	var in monitoring.ChecklistInput
	if err := decodeJSON(r, &in); err != nil {
		writeBadRequest(w, err)
		return
	}
	agg, err := h.Service.PreviewChecklist(in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "checklist": agg})
}

func (h *Handler) handleChecklistSave(w http.ResponseWriter, r *http.Request) {
	var in monitoring.ChecklistInput
	if err := decodeJSON(r, &in); err != nil {
		writeBadRequest(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout())
	defer cancel()
	res, err := h.Service.SaveChecklist(ctx, in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "result": res})
}

func (h *Handler) handleChecklistList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout())
	defer cancel()
	table, err := h.Service.ListChecklist(ctx)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "table": table})
}

// dateRange reads from/to query dates. Without required, absent bounds come back zero.
func dateRange(r *http.Request, required bool) (time.Time, time.Time, error) {
	q := r.URL.Query()
	parse := func(key string) (time.Time, error) {
		raw := strings.TrimSpace(q.Get(key))
		if raw == "" {
			if required {
				return time.Time{}, fmt.Errorf("%w: %s is required", records.ErrInvalidField, key)
			}
			return time.Time{}, nil
		}
		t, err := records.ParseDate(raw)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %s: %v", records.ErrInvalidField, key, err)
		}
		return t, nil
	}
	from, err := parse("from")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := parse("to")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return from, to, nil
}
