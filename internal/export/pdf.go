package export

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/phpdave11/gofpdf"

	tablestore "muxmonitor"
	"muxmonitor/internal/records"
)

const fontFamily = "Helvetica"

// Document is a printable listing of table rows, one block per record.
type Document struct {
	Title       string
	Summary     []string
	Table       tablestore.Table
	Schema      records.Schema
	GeneratedAt time.Time
}

// PDF renders doc on A4 portrait pages. Empty cells are left out of each record block.
func PDF(doc Document) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(14, 14, 14)
	pdf.SetAutoPageBreak(true, 14)
	pdf.SetTitle(doc.Title, true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	text := func(s string) string { return tr(safeText(s)) }

	generated := doc.GeneratedAt
	if generated.IsZero() {
		generated = time.Now().UTC()
	}
	pdf.SetFooterFunc(func() {
		pdf.SetY(-10)
		pdf.SetFont(fontFamily, "", 8)
		pdf.SetTextColor(120, 120, 120)
		pdf.CellFormat(0, 5, fmt.Sprintf("%s - %d", generated.Format("2006-01-02 15:04"), pdf.PageNo()), "", 0, "R", false, 0, "")
	})

	pdf.AddPage()
	pdf.SetFont(fontFamily, "B", 15)
	pdf.CellFormat(0, 9, text(doc.Title), "", 1, "L", false, 0, "")
	pdf.SetFont(fontFamily, "", 10)
	pdf.SetTextColor(60, 60, 60)
	pdf.CellFormat(0, 6, fmt.Sprintf("Records: %d", len(doc.Table.Rows)), "", 1, "L", false, 0, "")
	for _, line := range doc.Summary {
		pdf.MultiCell(0, 5, text(line), "", "L", false)
	}
	pdf.Ln(3)

	if len(doc.Table.Rows) == 0 {
		pdf.SetTextColor(90, 90, 90)
		pdf.MultiCell(0, 5, "(no records)", "", "L", false)
	}
	for i, row := range doc.Table.Rows {
		pdf.SetFont(fontFamily, "B", 11)
		pdf.SetTextColor(20, 20, 20)
		pdf.CellFormat(0, 7, text(fmt.Sprintf("#%d  %s", i+1, heading(doc.Schema, row))), "B", 1, "L", false, 0, "")
		pdf.SetFont(fontFamily, "", 9)
		pdf.SetTextColor(30, 30, 30)
		for _, col := range doc.Table.Columns {
			if isKey(doc.Schema, col) {
				continue
			}
			v := strings.TrimSpace(row[col])
			if v == "" {
				continue
			}
			pdf.SetFont(fontFamily, "B", 9)
			pdf.CellFormat(62, 4.8, text(col), "", 0, "L", false, 0, "")
			pdf.SetFont(fontFamily, "", 9)
			pdf.MultiCell(0, 4.8, text(v), "", "L", false)
		}
		pdf.Ln(2)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func heading(schema records.Schema, row tablestore.Row) string {
	parts := make([]string, 0, len(schema.Key))
	for _, col := range schema.Key {
		if v := strings.TrimSpace(row[col]); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " / ")
}

func isKey(schema records.Schema, col string) bool {
	for _, k := range schema.Key {
		if k == col {
			return true
		}
	}
	return false
}

func safeText(s string) string {
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\t", " ")
	return strings.TrimSpace(s)
}
