// file: sheets_connector.go
package tablestore

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// SheetsConnector maps each table onto one worksheet of a spreadsheet.
// Row 1 holds the header.
type SheetsConnector struct {
	cfg     StoreConfig
	service *sheets.Service
}

func newSheetsConnector(cfg StoreConfig) (*SheetsConnector, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("spreadsheet id is required")
	}
	opts := []option.ClientOption{}
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint), option.WithoutAuthentication())
	}
	return newSheetsConnectorWithOptions(context.Background(), cfg, opts...)
}

func newSheetsConnectorWithOptions(ctx context.Context, cfg StoreConfig, opts ...option.ClientOption) (*SheetsConnector, error) {
	service, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets client: %w", err)
	}
	return &SheetsConnector{cfg: cfg, service: service}, nil
}

func (c *SheetsConnector) TestConnection(ctx context.Context) error {
	_, err := c.service.Spreadsheets.Get(c.cfg.SpreadsheetID).Fields("spreadsheetId").Context(ctx).Do()
	if err != nil {
		return unavailable("ping sheets", err)
	}
	return nil
}

func (c *SheetsConnector) ListTables(ctx context.Context) ([]string, error) {
	doc, err := c.service.Spreadsheets.Get(c.cfg.SpreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return nil, unavailable("list sheets", err)
	}
	results := make([]string, 0, len(doc.Sheets))
	for _, sh := range doc.Sheets {
		if sh.Properties != nil {
			results = append(results, sh.Properties.Title)
		}
	}
	return results, nil
}

func (c *SheetsConnector) ReadTable(ctx context.Context, name string) (Table, error) {
	if strings.TrimSpace(name) == "" {
		return Table{}, errors.New("table name is empty")
	}
	resp, err := c.service.Spreadsheets.Values.Get(c.cfg.SpreadsheetID, quoteSheet(name)).Context(ctx).Do()
	if isMissingSheet(err) {
		return Table{}, notFound(name)
	}
	if err != nil {
		return Table{}, unavailable("read sheet", err)
	}
	return tableFromValues(name, resp.Values), nil
}

// WriteTable writes from A1 first and clears what the previous content left
// beyond the new extent afterwards, so a failed write never leaves the sheet blank.
// Values go in RAW: numbers are sent as number cells, everything else stays
// literal text so dates and time slots read back exactly as keyed.
func (c *SheetsConnector) WriteTable(ctx context.Context, table Table) error {
	if strings.TrimSpace(table.Name) == "" {
		return errors.New("table name is empty")
	}
	values := valuesFromTable(table)
	update := c.service.Spreadsheets.Values.Update(c.cfg.SpreadsheetID, quoteSheet(table.Name)+"!A1", &sheets.ValueRange{Values: values})
	_, err := update.ValueInputOption("RAW").Context(ctx).Do()
	if isMissingSheet(err) {
		if err := c.addSheet(ctx, table.Name); err != nil {
			return err
		}
		update = c.service.Spreadsheets.Values.Update(c.cfg.SpreadsheetID, quoteSheet(table.Name)+"!A1", &sheets.ValueRange{Values: values})
		_, err = update.ValueInputOption("RAW").Context(ctx).Do()
	}
	if err != nil {
		return unavailable("write sheet", err)
	}

	width := len(table.Columns)
	height := len(values)
	for _, rng := range []string{
		fmt.Sprintf("%s!A%d:ZZZ", quoteSheet(table.Name), height+1),
		fmt.Sprintf("%s!%s1:ZZZ", quoteSheet(table.Name), columnLetter(width+1)),
	} {
		_, err := c.service.Spreadsheets.Values.Clear(c.cfg.SpreadsheetID, rng, &sheets.ClearValuesRequest{}).Context(ctx).Do()
		if err != nil {
			return unavailable("clear stale sheet range", err)
		}
	}
	return nil
}

func (c *SheetsConnector) addSheet(ctx context.Context, name string) error {
	req := &sheets.BatchUpdateSpreadsheetRequest{Requests: []*sheets.Request{{
		AddSheet: &sheets.AddSheetRequest{Properties: &sheets.SheetProperties{Title: name}},
	}}}
	if _, err := c.service.Spreadsheets.BatchUpdate(c.cfg.SpreadsheetID, req).Context(ctx).Do(); err != nil {
		return unavailable("add sheet", err)
	}
	return nil
}

func (c *SheetsConnector) Close() error {
	return nil
}

func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

func isMissingSheet(err error) bool {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return false
	}
	if gerr.Code == http.StatusNotFound {
		return true
	}
	return gerr.Code == http.StatusBadRequest && strings.Contains(gerr.Message, "Unable to parse range")
}

// columnLetter converts a 1-based column index to A1 notation.
func columnLetter(n int) string {
	if n < 1 {
		return "A"
	}
	var out []byte
	for n > 0 {
		n--
		out = append([]byte{byte('A' + n%26)}, out...)
		n /= 26
	}
	return string(out)
}

func tableFromValues(name string, values [][]interface{}) Table {
	table := Table{Name: name, Columns: []string{}, Rows: []Row{}}
	if len(values) == 0 {
		return table
	}
	for _, cell := range values[0] {
		table.Columns = append(table.Columns, formatCell(cell))
	}
	for _, raw := range values[1:] {
		row := make(Row, len(table.Columns))
		for i, col := range table.Columns {
			if i < len(raw) && raw[i] != nil {
				row[col] = formatCell(raw[i])
			} else {
				row[col] = ""
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return table
}

func valuesFromTable(t Table) [][]interface{} {
	values := make([][]interface{}, 0, len(t.Rows)+1)
	header := make([]interface{}, len(t.Columns))
	for i, col := range t.Columns {
		header[i] = col
	}
	values = append(values, header)
	for _, row := range t.Rows {
		line := make([]interface{}, len(t.Columns))
		for i, col := range t.Columns {
			line[i] = sheetCell(row[col])
		}
		values = append(values, line)
	}
	return values
}

// sheetCell sends a value as a number only when it reads back as the same text.
func sheetCell(v string) interface{} {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return v
	}
	if strconv.FormatFloat(f, 'f', -1, 64) != v {
		return v
	}
	return f
}

func formatCell(v interface{}) string {
	if f, ok := v.(float64); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}
