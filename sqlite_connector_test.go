package tablestore

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func newTestSQLite(t *testing.T) *SQLiteConnector {
	t.Helper()
	store, err := newSQLiteConnector(StoreConfig{Type: "sqlite", Path: ":memory:"})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteReadMissingTable(t *testing.T) {
	store := newTestSQLite(t)
	_, err := store.ReadTable(context.Background(), "Sheet1")
	if !errors.Is(err, ErrTableNotFound) {
		t.Fatalf("expected ErrTableNotFound, got %v", err)
	}
}

func TestSQLiteWriteReadRoundTrip(t *testing.T) {
	store := newTestSQLite(t)
	ctx := context.Background()
	table := Table{
		Name:    "Sheet1",
		Columns: []string{"TANGGAL", "WAKTU", "POWER OUTPUT (WATT)"},
		Rows: []Row{
			{"TANGGAL": "2024-03-01", "WAKTU": "06:00", "POWER OUTPUT (WATT)": "11000"},
			{"TANGGAL": "2024-03-01", "WAKTU": "10:00", "POWER OUTPUT (WATT)": "10500"},
		},
	}
	if err := store.WriteTable(ctx, table); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := store.ReadTable(ctx, "Sheet1")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !reflect.DeepEqual(got.Columns, table.Columns) {
		t.Fatalf("unexpected columns: %#v", got.Columns)
	}
	if !reflect.DeepEqual(got.Rows, table.Rows) {
		t.Fatalf("unexpected rows: %#v", got.Rows)
	}
}

func TestSQLiteWriteReplacesWholeTable(t *testing.T) {
	store := newTestSQLite(t)
	ctx := context.Background()
	first := Table{Name: "CATATAN_HARIAN", Columns: []string{"A", "B"}, Rows: []Row{{"A": "1", "B": "2"}, {"A": "3", "B": "4"}}}
	second := Table{Name: "CATATAN_HARIAN", Columns: []string{"A"}, Rows: []Row{{"A": "9"}}}
	if err := store.WriteTable(ctx, first); err != nil {
		t.Fatalf("write first: %v", err)
	}
	if err := store.WriteTable(ctx, second); err != nil {
		t.Fatalf("write second: %v", err)
	}
	got, err := store.ReadTable(ctx, "CATATAN_HARIAN")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got.Rows) != 1 || got.Rows[0]["A"] != "9" {
		t.Fatalf("expected full replacement, got %#v", got.Rows)
	}
	if _, ok := got.Rows[0]["B"]; ok {
		t.Fatalf("dropped column should not be read back")
	}
}

func TestSQLiteListTables(t *testing.T) {
	store := newTestSQLite(t)
	ctx := context.Background()
	for _, name := range []string{"Sheet1", "CATATAN_HARIAN"} {
		if err := store.WriteTable(ctx, Table{Name: name, Columns: []string{"A"}}); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	names, err := store.ListTables(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !reflect.DeepEqual(names, []string{"CATATAN_HARIAN", "Sheet1"}) {
		t.Fatalf("unexpected tables: %#v", names)
	}
	empty, err := store.ReadTable(ctx, "Sheet1")
	if err != nil {
		t.Fatalf("header-only table should exist: %v", err)
	}
	if len(empty.Rows) != 0 || len(empty.Columns) != 1 {
		t.Fatalf("unexpected header-only table: %#v", empty)
	}
}
