package records

import (
	"reflect"
	"testing"

	tablestore "muxmonitor"
)

func f(v float64) *float64 { return &v }

func sampleInput(date, slot string, power float64) MeteringInput {
	return MeteringInput{
		Date: date, Slot: slot,
		Power: f(power), VSWR: f(1.1), CN: f(30), Margin: f(12),
		VoltageR: f(220), VoltageS: f(221), VoltageT: f(219), TxTemperature: f(24),
		Channels: []ChannelReading{{Name: "RTV", Status: "ok", Bitrate: f(2.5)}},
		Operator: "Budi",
	}
}

func TestMergeAppendNewestWins(t *testing.T) {
	layout := NewMeteringLayout("Sheet1", nil, nil)
	table := tablestore.Table{Name: "Sheet1"}

	first, err := layout.Assemble(sampleInput("2024-03-01", "06:00", 11000))
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	table = MergeAppend(layout.Schema, table, first)

	second, err := layout.Assemble(sampleInput("2024-03-01", "06:00", 10500))
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	table = MergeAppend(layout.Schema, table, second)

	if len(table.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(table.Rows))
	}
	if got := table.Rows[0][ColPower]; got != "10500" {
		t.Fatalf("expected newest power 10500, got %q", got)
	}
	if !reflect.DeepEqual(table.Columns, layout.Schema.Columns) {
		t.Fatalf("columns drifted: %v", table.Columns)
	}
}

func TestMergeAppendIsIdempotent(t *testing.T) {
	layout := NewMeteringLayout("Sheet1", nil, nil)
	rec, err := layout.Assemble(sampleInput("2024-03-02", "10:00", 9000))
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	once := MergeAppend(layout.Schema, tablestore.Table{}, rec)
	twice := MergeAppend(layout.Schema, once, rec)
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("second merge changed the table")
	}
}

func TestMergeAppendKeepsOtherRowsInOrder(t *testing.T) {
	s := MeteringSchema("Sheet1", []string{"RTV"})
	existing := tablestore.Table{
		Name:    "Sheet1",
		Columns: []string{ColDate, ColSlot, ColPower, "DUP_LEGACY"},
		Rows: []tablestore.Row{
			{ColDate: "2024-03-01 00:00:00", ColSlot: "02:00", ColPower: "1", "DUP_LEGACY": "x"},
			{ColDate: "2024-03-01", ColSlot: "06:00", ColPower: "2"},
			{ColDate: "2024-03-01", ColSlot: "10:00", ColPower: "3"},
		},
	}
	rec := tablestore.Row{ColDate: "2024-03-01", ColSlot: "06:00", ColPower: "20"}
	out := MergeAppend(s, existing, rec)

	if len(out.Rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(out.Rows))
	}
	order := []string{out.Rows[0][ColPower], out.Rows[1][ColPower], out.Rows[2][ColPower]}
	if !reflect.DeepEqual(order, []string{"1", "3", "20"}) {
		t.Fatalf("unexpected row order %v", order)
	}
	if out.Rows[0][ColDate] != "2024-03-01" {
		t.Fatalf("expected canonical date, got %q", out.Rows[0][ColDate])
	}
	if out.Columns[len(out.Columns)-1] != "DUP_LEGACY" || out.Rows[2]["DUP_LEGACY"] != "" {
		t.Fatalf("legacy column not preserved: %v", out.Columns)
	}
	for i, row := range out.Rows {
		if len(row) != len(out.Columns) {
			t.Fatalf("row %d has %d fields, want %d", i, len(row), len(out.Columns))
		}
	}
	if CountKey(s, out, "2024-03-01_06:00") != 1 {
		t.Fatalf("expected exactly one row for the replaced key")
	}
}

func TestChecklistKeyIncludesOperator(t *testing.T) {
	s := ChecklistSchema("CATATAN_HARIAN", []string{"UPS"})
	a := tablestore.Row{ColChecklistDate: "2024-03-01", ColChecklistShift: DefaultShifts[0], ColChecklistOperator: "Budi"}
	b := tablestore.Row{ColChecklistDate: "2024-03-01", ColChecklistShift: DefaultShifts[0], ColChecklistOperator: "Sari"}
	out := MergeAppend(s, MergeAppend(s, tablestore.Table{}, a), b)
	if len(out.Rows) != 2 {
		t.Fatalf("expected 2 rows for different operators, got %d", len(out.Rows))
	}
	if out.Rows[0][ConditionColumn("UPS")] != "" {
		t.Fatalf("expected blank fill for an unassessed item, got %q", out.Rows[0][ConditionColumn("UPS")])
	}
}

func TestChecklistLegacyRowGetsBlankNewItem(t *testing.T) {
	s := ChecklistSchema("CATATAN_HARIAN", []string{"UPS", "GENSET"})
	legacy := tablestore.Table{
		Name:    "CATATAN_HARIAN",
		Columns: []string{ColChecklistDate, ColChecklistShift, ColChecklistOperator, ConditionColumn("UPS"), RecommendationColumn("UPS")},
		Rows: []tablestore.Row{{
			ColChecklistDate: "2024-02-28", ColChecklistShift: DefaultShifts[1], ColChecklistOperator: "Budi",
			ConditionColumn("UPS"): "Trouble", RecommendationColumn("UPS"): "Ganti baterai",
		}},
	}
	out := Align(s, legacy)
	row := out.Rows[0]
	if row[ConditionColumn("UPS")] != "Trouble" {
		t.Fatalf("stored condition changed: %q", row[ConditionColumn("UPS")])
	}
	if v, ok := row[ConditionColumn("GENSET")]; !ok || v != "" {
		t.Fatalf("expected blank GENSET condition, got %q (present=%v)", v, ok)
	}
}

func TestFieldErrorMessageIsStable(t *testing.T) {
	fe := &FieldError{
		Missing: []string{ColOperator},
		Invalid: map[string]string{ColVSWR: "must be finite", ColCN: "is not a number", ColDate: "is not a recognisable date"},
	}
	want := "record rejected: missing " + ColOperator + "; " +
		ColCN + " is not a number; " + ColDate + " is not a recognisable date; " + ColVSWR + " must be finite"
	for i := 0; i < 20; i++ {
		if got := fe.Error(); got != want {
			t.Fatalf("unexpected message:\n got %q\nwant %q", got, want)
		}
	}
}

func TestSortByTime(t *testing.T) {
	rows := []tablestore.Row{
		{ColDate: "2024-03-02", ColSlot: "06:00"},
		{ColDate: "unknown", ColSlot: "06:00"},
		{ColDate: "2024-03-01", ColSlot: "22:00"},
		{ColDate: "2024-03-01", ColSlot: "02:00"},
	}
	order := func() []string {
		out := []string{}
		for _, r := range rows {
			out = append(out, r[ColDate]+" "+r[ColSlot])
		}
		return out
	}
	SortByTime(rows, MeteringTime, false)
	want := []string{"2024-03-01 02:00", "2024-03-01 22:00", "2024-03-02 06:00", "unknown 06:00"}
	if !reflect.DeepEqual(order(), want) {
		t.Fatalf("oldest first: got %v", order())
	}
	SortByTime(rows, MeteringTime, true)
	want = []string{"2024-03-02 06:00", "2024-03-01 22:00", "2024-03-01 02:00", "unknown 06:00"}
	if !reflect.DeepEqual(order(), want) {
		t.Fatalf("newest first: got %v", order())
	}
}

func TestNormalizeDate(t *testing.T) {
	cases := map[string]string{
		"2024-03-01":          "2024-03-01",
		" 2024-03-01 ":        "2024-03-01",
		"2024-03-01 00:00:00": "2024-03-01",
		"2024-03-01T00:00:00": "2024-03-01",
	}
	for in, want := range cases {
		got, err := NormalizeDate(in)
		if err != nil || got != want {
			t.Fatalf("NormalizeDate(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := NormalizeDate("not a date"); err == nil {
		t.Fatalf("expected error for garbage date")
	}
}
