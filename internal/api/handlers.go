package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	tablestore "muxmonitor"
	"muxmonitor/internal/classify"
	"muxmonitor/internal/monitoring"
	"muxmonitor/internal/records"
	"muxmonitor/internal/rules"
	"muxmonitor/internal/storage"
)

// FindingStore is the findings log; nil disables the /findings routes.
type FindingStore interface {
	ListFindings(ctx context.Context, filter storage.FindingFilter) ([]storage.Finding, error)
	SetTreated(ctx context.Context, id string, treated bool) error
}

type Handler struct {
	Service  *monitoring.Service
	Findings FindingStore
	Logger   *slog.Logger
	Timeout  time.Duration
}

type errorResponse struct {
	Ok      bool                `json:"ok"`
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Details []rules.ErrorDetail `json:"details"`
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.handleHealth)
	r.Get("/tables", h.handleListTables)
	r.Post("/vswr", h.handleVSWR)
	r.Post("/classify", h.handleClassify)
	r.Get("/rules/thresholds", h.handleThresholds)
	r.Get("/rules/checklist", h.handleChecklistRules)
	r.Route("/metering", func(r chi.Router) {
		r.Post("/", h.handleMeteringSave)
		r.Get("/", h.handleMeteringList)
		r.Post("/preview", h.handleMeteringPreview)
		r.Get("/series", h.handleMeteringSeries)
		r.Get("/export", h.handleMeteringExport)
	})
	r.Route("/checklist", func(r chi.Router) {
		r.Post("/", h.handleChecklistSave)
		r.Get("/", h.handleChecklistList)
		r.Post("/preview", h.handleChecklistPreview)
		r.Get("/export", h.handleChecklistExport)
	})
	r.Get("/findings", h.handleFindingsList)
	r.Post("/findings/{id}/treated", h.handleFindingTreated)
}

func (h *Handler) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.Default()
	}
	return h.Logger
}

func (h *Handler) timeout() time.Duration {
	if h.Timeout <= 0 {
		return 15 * time.Second
	}
	return h.Timeout
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout())
	defer cancel()
	if err := h.Service.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false, "store": "unavailable", "message": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "store": "ok", "rules": h.Service.Rules().Version})
}

func (h *Handler) handleListTables(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout())
	defer cancel()
	names, err := h.Service.ListTables(ctx)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "tables": names})
}

type vswrRequest struct {
	Forward   float64 `json:"forward"`
	Reflected float64 `json:"reflected"`
}

type vswrResponse struct {
	Ok       bool     `json:"ok"`
	VSWR     *float64 `json:"vswr"`
	Infinite bool     `json:"infinite"`
}

func (h *Handler) handleVSWR(w http.ResponseWriter, r *http.Request) {
	var req vswrRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	v, err := classify.VSWR(req.Forward, req.Reflected)
	if err != nil {
		h.writeError(w, err)
		return
	}
	resp := vswrResponse{Ok: true, Infinite: classify.IsInfinite(v)}
	if !resp.Infinite {
		resp.VSWR = &v
	}
	writeJSON(w, http.StatusOK, resp)
}

type classifyRequest struct {
	Readings []classify.Reading `json:"readings"`
}

func (h *Handler) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	if len(req.Readings) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Ok: false, Code: "missing_required_field", Message: "readings are required",
			Details: []rules.ErrorDetail{{Field: "readings", Problem: "is empty"}}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "report": h.Service.Classify(req.Readings)})
}

func (h *Handler) handleThresholds(w http.ResponseWriter, r *http.Request) {
	b := h.Service.Rules()
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":          true,
		"version":     b.Version,
		"fingerprint": b.Fingerprint(),
		"fallback":    b.Fallback,
		"parameters":  b.Parameters,
	})
}

func (h *Handler) handleChecklistRules(w http.ResponseWriter, r *http.Request) {
	b := h.Service.Rules()
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":     true,
		"shifts": h.Service.ChecklistLayout().Shifts,
		"items":  b.Checklist,
	})
}

// writeError maps domain errors onto HTTP status codes.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var fieldErr *records.FieldError
	switch {
	case errors.As(err, &fieldErr):
		code := "invalid_field"
		if errors.Is(err, records.ErrMissingRequiredField) {
			code = "missing_required_field"
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Ok: false, Code: code, Message: err.Error(), Details: fieldDetails(fieldErr)})
	case errors.Is(err, classify.ErrNegativePower):
		writeJSON(w, http.StatusBadRequest, errorResponse{Ok: false, Code: "negative_power", Message: err.Error()})
	case errors.Is(err, records.ErrInvalidRange), errors.Is(err, records.ErrInvalidField):
		writeJSON(w, http.StatusBadRequest, errorResponse{Ok: false, Code: "invalid_request", Message: err.Error()})
	case errors.Is(err, monitoring.ErrConflict):
		writeJSON(w, http.StatusConflict, errorResponse{Ok: false, Code: "conflict", Message: err.Error()})
	case errors.Is(err, monitoring.ErrUnknownKind), errors.Is(err, storage.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Ok: false, Code: "not_found", Message: err.Error()})
	case errors.Is(err, tablestore.ErrStoreUnavailable):
		h.logger().Error("store unavailable", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, errorResponse{Ok: false, Code: "store_unavailable", Message: "table store unavailable, record not saved"})
	default:
		h.logger().Error("request failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Ok: false, Code: "internal", Message: "internal error"})
	}
}

func fieldDetails(e *records.FieldError) []rules.ErrorDetail {
	details := make([]rules.ErrorDetail, 0, len(e.Missing)+len(e.Invalid))
	for _, f := range e.Missing {
		details = append(details, rules.ErrorDetail{Field: f, Problem: "is required"})
	}
	invalid := make([]string, 0, len(e.Invalid))
	for f := range e.Invalid {
		invalid = append(invalid, f)
	}
	sort.Strings(invalid)
	for _, f := range invalid {
		details = append(details, rules.ErrorDetail{Field: f, Problem: e.Invalid[f]})
	}
	return details
}

func writeBadRequest(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Ok: false, Code: "invalid_json", Message: err.Error()})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return errors.New("invalid json payload")
		}
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
