package monitoring

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	tablestore "muxmonitor"
	"muxmonitor/internal/bus"
	"muxmonitor/internal/records"
	"muxmonitor/internal/rules"
	"muxmonitor/internal/storage"
)

type flakyStore struct {
	*tablestore.MemoryStore
	readErr   error
	writeErr  error
	reads     int
	onReread  func()
	writes    int
	lastWrite tablestore.Table
}

func (f *flakyStore) ReadTable(ctx context.Context, name string) (tablestore.Table, error) {
	f.reads++
	if f.reads == 2 && f.onReread != nil {
		f.onReread()
	}
	if f.readErr != nil {
		return tablestore.Table{}, f.readErr
	}
	return f.MemoryStore.ReadTable(ctx, name)
}

func (f *flakyStore) WriteTable(ctx context.Context, t tablestore.Table) error {
	f.writes++
	if f.writeErr != nil {
		return f.writeErr
	}
	f.lastWrite = t
	return f.MemoryStore.WriteTable(ctx, t)
}

type recorder struct {
	mu    sync.Mutex
	calls map[string][]storage.Finding
	err   error
}

func (r *recorder) ReplaceFindings(_ context.Context, table, key string, findings []storage.Finding) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.calls == nil {
		r.calls = map[string][]storage.Finding{}
	}
	r.calls[table+"/"+key] = findings
	return r.err
}

type fakeBus struct {
	subjects []string
	err      error
}

func (b *fakeBus) Publish(subject string, _ any) error {
	b.subjects = append(b.subjects, subject)
	return b.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(t *testing.T, store tablestore.TableStore, opts Options, rec FindingRecorder, pub Publisher) *Service {
	t.Helper()
	bundle, err := rules.LoadOrDefault("")
	if err != nil {
		t.Fatalf("load rules: %v", err)
	}
	return NewService(Deps{Store: store, Rules: bundle, Findings: rec, Bus: pub, Logger: quietLogger()}, opts)
}

func f(v float64) *float64 { return &v }

func meteringInput(date, slot string, power float64) records.MeteringInput {
	return records.MeteringInput{
		Date: date, Slot: slot,
		Power: f(power), VSWR: f(1.1), CN: f(30), Margin: f(12),
		VoltageR: f(220), VoltageS: f(220), VoltageT: f(220), TxTemperature: f(24),
		Operator: "Budi",
	}
}

func TestSaveMeteringReplacesSameSlot(t *testing.T) {
	store := &flakyStore{MemoryStore: tablestore.NewMemoryStore()}
	pub := &fakeBus{}
	svc := newTestService(t, store, Options{}, nil, pub)
	ctx := context.Background()

	if _, err := svc.SaveMetering(ctx, meteringInput("2024-03-01", "06:00", 11000)); err != nil {
		t.Fatalf("first save: %v", err)
	}
	res, err := svc.SaveMetering(ctx, meteringInput("2024-03-01", "06:00", 10500))
	if err != nil {
		t.Fatalf("second save: %v", err)
	}
	if !res.Replaced || res.Rows != 1 || res.Key != "2024-03-01_06:00" {
		t.Fatalf("unexpected result %#v", res)
	}
	table, err := store.MemoryStore.ReadTable(ctx, "Sheet1")
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(table.Rows) != 1 || table.Rows[0][records.ColPower] != "10500" {
		t.Fatalf("expected single row with newest power, got %#v", table.Rows)
	}
	if len(pub.subjects) != 2 || pub.subjects[0] != bus.SubjectMeteringSaved {
		t.Fatalf("unexpected events %v", pub.subjects)
	}
}

func TestSaveMeteringMissingFieldWritesNothing(t *testing.T) {
	store := &flakyStore{MemoryStore: tablestore.NewMemoryStore()}
	svc := newTestService(t, store, Options{}, nil, nil)
	in := meteringInput("2024-03-01", "06:00", 11000)
	in.Margin = nil
	if _, err := svc.SaveMetering(context.Background(), in); !errors.Is(err, records.ErrMissingRequiredField) {
		t.Fatalf("expected ErrMissingRequiredField, got %v", err)
	}
	if store.reads != 0 || store.writes != 0 {
		t.Fatalf("store touched on invalid input: reads=%d writes=%d", store.reads, store.writes)
	}
}

func TestSaveAbortsWhenStoreUnreadable(t *testing.T) {
	store := &flakyStore{MemoryStore: tablestore.NewMemoryStore(), readErr: errors.New("connection refused")}
	svc := newTestService(t, store, Options{}, nil, nil)
	_, err := svc.SaveMetering(context.Background(), meteringInput("2024-03-01", "06:00", 11000))
	if !errors.Is(err, tablestore.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if store.writes != 0 {
		t.Fatalf("table must not be overwritten after a failed read")
	}
}

func TestSaveDegradesWhenConfigured(t *testing.T) {
	store := &flakyStore{MemoryStore: tablestore.NewMemoryStore(), readErr: errors.New("timeout")}
	svc := newTestService(t, store, Options{DegradeUnreadable: true}, nil, nil)
	res, err := svc.SaveMetering(context.Background(), meteringInput("2024-03-01", "06:00", 11000))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if !res.Degraded || store.writes != 1 || len(store.lastWrite.Rows) != 1 {
		t.Fatalf("expected degraded single-row write, got %#v", res)
	}
}

func TestSaveSurfacesWriteFailure(t *testing.T) {
	store := &flakyStore{MemoryStore: tablestore.NewMemoryStore(), writeErr: errors.New("quota exceeded")}
	pub := &fakeBus{}
	svc := newTestService(t, store, Options{}, nil, pub)
	_, err := svc.SaveMetering(context.Background(), meteringInput("2024-03-01", "06:00", 11000))
	if !errors.Is(err, tablestore.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if len(pub.subjects) != 0 {
		t.Fatalf("no event expected after failed write")
	}
}

func TestOptimisticSaveDetectsConcurrentWriter(t *testing.T) {
	mem := tablestore.NewMemoryStore()
	store := &flakyStore{MemoryStore: mem}
	store.onReread = func() {
		_ = mem.WriteTable(context.Background(), tablestore.Table{
			Name:    "Sheet1",
			Columns: []string{records.ColDate, records.ColSlot},
			Rows:    []tablestore.Row{{records.ColDate: "2024-02-29", records.ColSlot: "22:00"}},
		})
	}
	svc := newTestService(t, store, Options{Optimistic: true}, nil, nil)
	_, err := svc.SaveMetering(context.Background(), meteringInput("2024-03-01", "06:00", 11000))
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if store.writes != 0 {
		t.Fatalf("conflicting save must not write")
	}
}

func TestSaveMeteringRecordsFindings(t *testing.T) {
	rec := &recorder{err: errors.New("db down")}
	svc := newTestService(t, tablestore.NewMemoryStore(), Options{}, rec, nil)
	in := meteringInput("2024-03-01", "10:00", 11000)
	in.VSWR = f(1.9)
	res, err := svc.SaveMetering(context.Background(), in)
	if err != nil {
		t.Fatalf("save must succeed when findings fail: %v", err)
	}
	if res.Report == nil || res.Report.Findings == 0 {
		t.Fatalf("expected at least one finding in report, got %#v", res.Report)
	}
	got := rec.calls["Sheet1/2024-03-01_10:00"]
	if len(got) != res.Report.Findings || got[0].Operator != "Budi" {
		t.Fatalf("unexpected recorded findings %#v", got)
	}
}

func TestConcurrentSavesKeepEveryRecord(t *testing.T) {
	store := tablestore.NewMemoryStore()
	svc := newTestService(t, store, Options{}, nil, nil)
	var wg sync.WaitGroup
	for _, slot := range records.DefaultSlots {
		wg.Add(1)
		go func(slot string) {
			defer wg.Done()
			if _, err := svc.SaveMetering(context.Background(), meteringInput("2024-03-01", slot, 11000)); err != nil {
				t.Errorf("save %s: %v", slot, err)
			}
		}(slot)
	}
	wg.Wait()
	table, err := store.ReadTable(context.Background(), "Sheet1")
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(table.Rows) != len(records.DefaultSlots) {
		t.Fatalf("expected %d rows, got %d", len(records.DefaultSlots), len(table.Rows))
	}
}

func TestSaveChecklist(t *testing.T) {
	store := tablestore.NewMemoryStore()
	rec := &recorder{}
	svc := newTestService(t, store, Options{}, rec, nil)
	in := ChecklistInput{
		ChecklistHeader: records.ChecklistHeader{Date: "2024-03-01", Shift: records.DefaultShifts[0], Operator: "Sari"},
		Conditions:      map[string]string{"UPS": "warning"},
	}
	res, err := svc.SaveChecklist(context.Background(), in)
	if err != nil {
		t.Fatalf("save checklist: %v", err)
	}
	if res.Checklist == nil || len(res.Checklist.Attention()) != 1 {
		t.Fatalf("expected one attention entry, got %#v", res.Checklist)
	}
	if _, err := svc.SaveChecklist(context.Background(), in); err != nil {
		t.Fatalf("resave: %v", err)
	}
	table, _ := store.ReadTable(context.Background(), "CATATAN_HARIAN")
	if len(table.Rows) != 1 || table.Rows[0][records.ConditionColumn("UPS")] != "Warning" {
		t.Fatalf("unexpected checklist table %#v", table.Rows)
	}

	in.Conditions = map[string]string{"UPS": "broken"}
	if _, err := svc.SaveChecklist(context.Background(), in); !errors.Is(err, records.ErrInvalidField) {
		t.Fatalf("expected ErrInvalidField, got %v", err)
	}
}

func TestSaveChecklistRejectsUnknownEquipment(t *testing.T) {
	store := tablestore.NewMemoryStore()
	rec := &recorder{}
	svc := newTestService(t, store, Options{}, rec, nil)
	in := ChecklistInput{
		ChecklistHeader: records.ChecklistHeader{Date: "2024-03-01", Shift: records.DefaultShifts[0], Operator: "Sari"},
		Conditions:      map[string]string{"Ups": "Trouble", "UPS": "Warning"},
	}
	_, err := svc.SaveChecklist(context.Background(), in)
	if !errors.Is(err, records.ErrInvalidField) {
		t.Fatalf("expected ErrInvalidField, got %v", err)
	}
	var fe *records.FieldError
	if !errors.As(err, &fe) || fe.Invalid[records.ConditionColumn("Ups")] == "" {
		t.Fatalf("expected the unknown item to be named, got %v", err)
	}
	if _, err := store.ReadTable(context.Background(), "CATATAN_HARIAN"); !errors.Is(err, tablestore.ErrTableNotFound) {
		t.Fatalf("expected nothing written, got %v", err)
	}
	if len(rec.calls) != 0 {
		t.Fatalf("expected no findings recorded, got %#v", rec.calls)
	}
	if _, err := svc.PreviewChecklist(in); !errors.Is(err, records.ErrInvalidField) {
		t.Fatalf("expected preview to reject the unknown item, got %v", err)
	}
}

func TestListingAndSeries(t *testing.T) {
	svc := newTestService(t, tablestore.NewMemoryStore(), Options{}, nil, nil)
	ctx := context.Background()
	for _, in := range []records.MeteringInput{
		meteringInput("2024-03-01", "06:00", 1),
		meteringInput("2024-03-02", "02:00", 2),
		meteringInput("2024-03-01", "22:00", 3),
	} {
		if _, err := svc.SaveMetering(ctx, in); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	list, err := svc.ListMetering(ctx, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list.Rows) != 2 || list.Rows[0][records.ColPower] != "2" || list.Rows[1][records.ColPower] != "3" {
		t.Fatalf("unexpected listing order %#v", list.Rows)
	}

	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	points, err := svc.MeteringSeries(ctx, day, day, []string{records.ColPower})
	if err != nil {
		t.Fatalf("series: %v", err)
	}
	if len(points) != 2 || points[0].Values[records.ColPower] != 1 || points[1].Values[records.ColPower] != 3 {
		t.Fatalf("unexpected series %#v", points)
	}
	if _, err := svc.MeteringSeries(ctx, day.AddDate(0, 0, 1), day, nil); !errors.Is(err, records.ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
}

func TestLoadTableDegradesToEmpty(t *testing.T) {
	store := &flakyStore{MemoryStore: tablestore.NewMemoryStore(), readErr: tablestore.ErrStoreUnavailable}
	svc := newTestService(t, store, Options{}, nil, nil)
	table, err := svc.LoadTable(context.Background(), KindChecklist)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(table.Rows) != 0 || len(table.Columns) == 0 {
		t.Fatalf("expected empty aligned table, got %#v", table)
	}
}
