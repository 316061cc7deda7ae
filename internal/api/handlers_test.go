package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/xuri/excelize/v2"

	tablestore "muxmonitor"
	"muxmonitor/internal/monitoring"
	"muxmonitor/internal/rules"
	"muxmonitor/internal/storage"
)

type failingStore struct {
	*tablestore.MemoryStore
}

func (f failingStore) WriteTable(context.Context, tablestore.Table) error {
	return errors.New("sheet quota exceeded")
}

type memoryFindings struct {
	items []storage.Finding
}

func (m *memoryFindings) ListFindings(_ context.Context, filter storage.FindingFilter) ([]storage.Finding, error) {
	out := []storage.Finding{}
	for _, f := range m.items {
		if filter.Status != "" && f.Status != filter.Status {
			continue
		}
		if filter.Treated != nil && f.Treated != *filter.Treated {
			continue
		}
		out = append(out, f)
	}
	return out, nil
}

func (m *memoryFindings) SetTreated(_ context.Context, id string, treated bool) error {
	for i := range m.items {
		if m.items[i].ID == id {
			m.items[i].Treated = treated
			return nil
		}
	}
	return storage.ErrNotFound
}

func newTestRouter(t *testing.T, store tablestore.TableStore, findings FindingStore) http.Handler {
	t.Helper()
	bundle, err := rules.LoadOrDefault("")
	if err != nil {
		t.Fatalf("load rules: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := monitoring.NewService(monitoring.Deps{Store: store, Rules: bundle, Logger: logger}, monitoring.Options{})
	h := &Handler{Service: svc, Findings: findings, Logger: logger}
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func meteringBody(power float64) map[string]any {
	return map[string]any{
		"date": "2024-03-01", "slot": "06:00",
		"power": power, "vswr": 1.1, "cn": 42, "margin": 22,
		"voltageR": 220, "voltageS": 220, "voltageT": 220, "txTemperature": 19,
		"channels": []map[string]any{{"name": "TVRI JAMBI", "status": "OK", "bitrate": 3.1}},
		"operator": "Budi",
	}
}

func TestHandleVSWR(t *testing.T) {
	router := newTestRouter(t, tablestore.NewMemoryStore(), nil)
	cases := []struct {
		name     string
		body     map[string]any
		status   int
		infinite bool
	}{
		{"finite", map[string]any{"forward": 100, "reflected": 25}, http.StatusOK, false},
		{"infinite", map[string]any{"forward": 100, "reflected": 100}, http.StatusOK, true},
		{"negative", map[string]any{"forward": -1, "reflected": 0}, http.StatusBadRequest, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, router, http.MethodPost, "/vswr", tc.body)
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, rec.Code, rec.Body.String())
			}
			if tc.status != http.StatusOK {
				return
			}
			var resp vswrResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Infinite != tc.infinite || (resp.VSWR == nil) != tc.infinite {
				t.Fatalf("unexpected response %#v", resp)
			}
		})
	}
}

func TestHandleClassifyUnknownParameter(t *testing.T) {
	router := newTestRouter(t, tablestore.NewMemoryStore(), nil)
	rec := do(t, router, http.MethodPost, "/classify", map[string]any{"readings": []map[string]any{{"name": "vswrr", "value": 1.1}}})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"Unclassified"`) {
		t.Fatalf("expected Unclassified result, got %s", rec.Body.String())
	}
}

func TestMeteringSaveAndList(t *testing.T) {
	router := newTestRouter(t, tablestore.NewMemoryStore(), nil)
	for _, p := range []float64{11000, 10500} {
		if rec := do(t, router, http.MethodPost, "/metering", meteringBody(p)); rec.Code != http.StatusOK {
			t.Fatalf("save: %d %s", rec.Code, rec.Body.String())
		}
	}
	if rec := do(t, router, http.MethodGet, "/tables", nil); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Sheet1") {
		t.Fatalf("tables: %d %s", rec.Code, rec.Body.String())
	}
	rec := do(t, router, http.MethodGet, "/metering?limit=5", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: %d", rec.Code)
	}
	var resp struct {
		Table tablestore.Table `json:"table"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Table.Rows) != 1 || resp.Table.Rows[0]["POWER OUTPUT (WATT)"] != "10500" {
		t.Fatalf("unexpected rows %#v", resp.Table.Rows)
	}
}

func TestMeteringSaveErrors(t *testing.T) {
	body := meteringBody(11000)
	delete(body, "operator")
	router := newTestRouter(t, tablestore.NewMemoryStore(), nil)
	rec := do(t, router, http.MethodPost, "/metering", body)
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "missing_required_field") {
		t.Fatalf("expected missing field 400, got %d %s", rec.Code, rec.Body.String())
	}

	failing := newTestRouter(t, failingStore{tablestore.NewMemoryStore()}, nil)
	rec = do(t, failing, http.MethodPost, "/metering", meteringBody(11000))
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 on write failure, got %d", rec.Code)
	}
}

func TestChecklistPreviewAndSave(t *testing.T) {
	router := newTestRouter(t, tablestore.NewMemoryStore(), nil)
	body := map[string]any{
		"date": "2024-03-01", "shift": "Shift 1: 00.00 - 08.00", "operator": "Sari",
		"conditions": map[string]string{"UPS": "Trouble"},
	}
	rec := do(t, router, http.MethodPost, "/checklist/preview", body)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Trouble") {
		t.Fatalf("preview: %d %s", rec.Code, rec.Body.String())
	}
	if rec = do(t, router, http.MethodPost, "/checklist", body); rec.Code != http.StatusOK {
		t.Fatalf("save: %d %s", rec.Code, rec.Body.String())
	}
	rec = do(t, router, http.MethodGet, "/checklist/export?format=xlsx", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("export: %d %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Header().Get("Content-Disposition"), "catatan_harian_mux_tvri.xlsx") {
		t.Fatalf("unexpected disposition %q", rec.Header().Get("Content-Disposition"))
	}
}

func TestMeteringExportRequiresRange(t *testing.T) {
	router := newTestRouter(t, tablestore.NewMemoryStore(), nil)
	if rec := do(t, router, http.MethodGet, "/metering/export?format=pdf", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without range, got %d", rec.Code)
	}
	rec := do(t, router, http.MethodGet, "/metering/export?format=pdf&from=2024-03-01&to=2024-03-07", nil)
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "application/pdf" {
		t.Fatalf("expected pdf export, got %d %q", rec.Code, rec.Header().Get("Content-Type"))
	}
}

func TestMeteringExportOldestFirst(t *testing.T) {
	router := newTestRouter(t, tablestore.NewMemoryStore(), nil)
	for _, date := range []string{"2024-03-05", "2024-03-01", "2024-03-03"} {
		body := meteringBody(11000)
		body["date"] = date
		if rec := do(t, router, http.MethodPost, "/metering", body); rec.Code != http.StatusOK {
			t.Fatalf("save %s: %d %s", date, rec.Code, rec.Body.String())
		}
	}
	rec := do(t, router, http.MethodGet, "/metering/export?format=xlsx&from=2024-03-01&to=2024-03-07", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("export: %d %s", rec.Code, rec.Body.String())
	}
	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows("Sheet1")
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	got := []string{}
	for _, row := range rows[1:] {
		got = append(got, row[0])
	}
	want := []string{"2024-03-01", "2024-03-03", "2024-03-05"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("expected rows %v, got %v", want, got)
	}
}

func TestFindingsRoutes(t *testing.T) {
	disabled := newTestRouter(t, tablestore.NewMemoryStore(), nil)
	if rec := do(t, disabled, http.MethodGet, "/findings", nil); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when findings disabled, got %d", rec.Code)
	}

	findings := &memoryFindings{items: []storage.Finding{
		{ID: "a", Status: "Trouble"},
		{ID: "b", Status: "Warning"},
	}}
	router := newTestRouter(t, tablestore.NewMemoryStore(), findings)
	rec := do(t, router, http.MethodGet, "/findings?status=Trouble&treated=false", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"id":"a"`) || strings.Contains(rec.Body.String(), `"id":"b"`) {
		t.Fatalf("unexpected findings response %d %s", rec.Code, rec.Body.String())
	}
	if rec = do(t, router, http.MethodPost, "/findings/a/treated", map[string]any{"treated": true}); rec.Code != http.StatusOK {
		t.Fatalf("treated: %d", rec.Code)
	}
	if !findings.items[0].Treated {
		t.Fatalf("finding not marked treated")
	}
	if rec = do(t, router, http.MethodPost, "/findings/zzz/treated", map[string]any{"treated": true}); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown finding, got %d", rec.Code)
	}
}
