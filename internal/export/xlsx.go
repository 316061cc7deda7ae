package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	tablestore "muxmonitor"
	"muxmonitor/internal/records"
)

const maxSheetName = 31

// XLSX renders table as a single-sheet workbook. Numeric schema columns are written as numbers.
func XLSX(table tablestore.Table, schema records.Schema) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := sheetName(table.Name)
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#DDEBF7"}},
	})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return nil, fmt.Errorf("stream writer: %w", err)
	}
	header := make([]interface{}, len(table.Columns))
	for i, col := range table.Columns {
		header[i] = excelize.Cell{StyleID: headerStyle, Value: col}
	}
	if err := sw.SetRow("A1", header); err != nil {
		return nil, err
	}
	for r, row := range table.Rows {
		values := make([]interface{}, len(table.Columns))
		for c, col := range table.Columns {
			values[c] = cellValue(schema, col, row[col])
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return nil, err
		}
		if err := sw.SetRow(cell, values); err != nil {
			return nil, err
		}
	}
	if err := sw.Flush(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func cellValue(schema records.Schema, col, raw string) interface{} {
	if schema.IsNumeric(col) {
		if v, ok := records.ParseNumber(raw); ok {
			return v
		}
	}
	return raw
}

func sheetName(name string) string {
	name = strings.Map(func(r rune) rune {
		if strings.ContainsRune(`:\/?*[]`, r) {
			return '_'
		}
		return r
	}, strings.TrimSpace(name))
	if name == "" {
		return "Sheet1"
	}
	if len([]rune(name)) > maxSheetName {
		name = string([]rune(name)[:maxSheetName])
	}
	return name
}
