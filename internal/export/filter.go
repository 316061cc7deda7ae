package export

import (
	"fmt"
	"time"

	"github.com/samber/lo"

	tablestore "muxmonitor"
	"muxmonitor/internal/records"
)

const (
	FormatXLSX = "xlsx"
	FormatPDF  = "pdf"
)

// FilterDateRange keeps rows whose date falls within [from, to]. Rows with an
// unreadable date are dropped.
func FilterDateRange(table tablestore.Table, schema records.Schema, from, to time.Time) (tablestore.Table, error) {
	from, to = day(from), day(to)
	if from.After(to) {
		return tablestore.Table{}, records.ErrInvalidRange
	}
	out := tablestore.Table{Name: table.Name, Columns: table.Columns}
	out.Rows = lo.Filter(table.Rows, func(row tablestore.Row, _ int) bool {
		d, err := records.ParseDate(row[schema.DateColumn])
		if err != nil {
			return false
		}
		return !d.Before(from) && !d.After(to)
	})
	return out, nil
}

func MeteringFilename(from, to time.Time, format string) string {
	return fmt.Sprintf("metering_%s_to_%s.%s", from.Format(records.DateLayout), to.Format(records.DateLayout), format)
}

func ChecklistFilename(format string) string {
	return "catatan_harian_mux_tvri." + format
}

// ContentType maps an export format to its MIME type.
func ContentType(format string) string {
	switch format {
	case FormatPDF:
		return "application/pdf"
	default:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
}

func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
