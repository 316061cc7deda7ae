package records

import (
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"

	tablestore "muxmonitor"
)

// NaturalKey joins the identity fields of row with "_"; dates are canonicalised first.
func NaturalKey(s Schema, row tablestore.Row) string {
	parts := make([]string, len(s.Key))
	for i, col := range s.Key {
		v := row[col]
		if col == s.DateColumn {
			parts[i] = canonicalDate(v)
		} else {
			parts[i] = strings.TrimSpace(v)
		}
	}
	return strings.Join(parts, "_")
}

// Align lays existing out on the schema: schema columns first, then any extra
// legacy columns in their stored order. Every row gets every column.
func Align(s Schema, existing tablestore.Table) tablestore.Table {
	name := existing.Name
	if name == "" {
		name = s.Name
	}
	columns := append([]string(nil), s.Columns...)
	for _, col := range existing.Columns {
		if !lo.Contains(columns, col) {
			columns = append(columns, col)
		}
	}
	out := tablestore.Table{Name: name, Columns: columns, Rows: make([]tablestore.Row, 0, len(existing.Rows)+1)}
	for _, row := range existing.Rows {
		out.Rows = append(out.Rows, fill(s, columns, row))
	}
	return out
}

func fill(s Schema, columns []string, row tablestore.Row) tablestore.Row {
	out := make(tablestore.Row, len(columns))
	for _, col := range columns {
		v, ok := row[col]
		if !ok {
			v = s.Default(col)
		}
		if col == s.DateColumn && v != "" {
			v = canonicalDate(v)
		}
		out[col] = v
	}
	return out
}

// MergeAppend drops every existing row sharing rec's natural key and appends rec.
// Untouched rows keep their relative order. An empty or absent table yields a single-row table.
func MergeAppend(s Schema, existing tablestore.Table, rec tablestore.Row) tablestore.Table {
	aligned := Align(s, existing)
	newRow := fill(s, aligned.Columns, rec)
	key := NaturalKey(s, newRow)
	kept := lo.Filter(aligned.Rows, func(row tablestore.Row, _ int) bool {
		return NaturalKey(s, row) != key
	})
	aligned.Rows = append(kept, newRow)
	return aligned
}

// CountKey reports how many rows of t carry key.
func CountKey(s Schema, t tablestore.Table, key string) int {
	return lo.CountBy(t.Rows, func(row tablestore.Row) bool {
		return NaturalKey(s, row) == key
	})
}

// SortByTime orders rows chronologically, or newest first when newestFirst is set.
// Rows whose time cannot be read go last in either order.
func SortByTime(rows []tablestore.Row, at func(tablestore.Row) (time.Time, bool), newestFirst bool) {
	sort.SliceStable(rows, func(i, j int) bool {
		ti, okI := at(rows[i])
		tj, okJ := at(rows[j])
		if okI != okJ {
			return okI
		}
		if newestFirst {
			return ti.After(tj)
		}
		return ti.Before(tj)
	})
}
