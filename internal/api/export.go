package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	tablestore "muxmonitor"
	"muxmonitor/internal/export"
	"muxmonitor/internal/monitoring"
	"muxmonitor/internal/records"
)

func exportFormat(r *http.Request) (string, error) {
	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
	switch format {
	case "":
		return export.FormatXLSX, nil
	case export.FormatXLSX, export.FormatPDF:
		return format, nil
	}
	return "", fmt.Errorf("%w: format must be xlsx or pdf", records.ErrInvalidField)
}

func (h *Handler) handleMeteringExport(w http.ResponseWriter, r *http.Request) {
	format, err := exportFormat(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	from, to, err := dateRange(r, true)
	if err != nil {
		h.writeError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout())
	defer cancel()
	table, err := h.Service.LoadTable(ctx, monitoring.KindMetering)
	if err != nil {
		h.writeError(w, err)
		return
	}
	schema := h.Service.MeteringLayout().Schema
	table, err = export.FilterDateRange(table, schema, from, to)
	if err != nil {
		h.writeError(w, err)
		return
	}
	records.SortByTime(table.Rows, records.MeteringTime, false)
	title := fmt.Sprintf("Laporan Metering %s s/d %s", from.Format(records.DateLayout), to.Format(records.DateLayout))
	h.sendExport(w, table, schema, format, title, export.MeteringFilename(from, to, format))
}

func (h *Handler) handleChecklistExport(w http.ResponseWriter, r *http.Request) {
	format, err := exportFormat(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	from, to, err := dateRange(r, false)
	if err != nil {
		h.writeError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout())
	defer cancel()
	table, err := h.Service.LoadTable(ctx, monitoring.KindChecklist)
	if err != nil {
		h.writeError(w, err)
		return
	}
	schema := h.Service.ChecklistLayout().Schema
	if !from.IsZero() || !to.IsZero() {
		if from.IsZero() {
			from = time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)
		}
		if to.IsZero() {
			to = time.Now().UTC()
		}
		if table, err = export.FilterDateRange(table, schema, from, to); err != nil {
			h.writeError(w, err)
			return
		}
	}
	h.sendExport(w, table, schema, format, "Catatan Harian MUX TVRI", export.ChecklistFilename(format))
}

func (h *Handler) sendExport(w http.ResponseWriter, table tablestore.Table, schema records.Schema, format, title, filename string) {
	var (
		data []byte
		err  error
	)
	switch format {
	case export.FormatPDF:
		data, err = export.PDF(export.Document{Title: title, Table: table, Schema: schema, GeneratedAt: time.Now().UTC()})
	default:
		data, err = export.XLSX(table, schema)
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.logger().Info("export generated",
		slog.String("file", filename),
		slog.Int("rows", len(table.Rows)),
		slog.String("size", humanize.Bytes(uint64(len(data)))),
	)
	w.Header().Set("Content-Type", export.ContentType(format))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
