// file: connector.go
package tablestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"
)

const (
	defaultLayoutPrefix = "sheet"
	defaultTimeout      = 15 * time.Second
)

var (
	ErrTableNotFound    = errors.New("table not found")
	ErrStoreUnavailable = errors.New("table store unavailable")
)

// TableStore is a named-table backend. WriteTable replaces the whole table.
type TableStore interface {
	TestConnection(ctx context.Context) error

	ListTables(ctx context.Context) ([]string, error)

	ReadTable(ctx context.Context, name string) (Table, error)

	WriteTable(ctx context.Context, table Table) error

	Close() error
}

type StoreConfig struct {
	Type     string // sqlite | postgres | mysql | mssql | sheets | http | memory
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	// Path is the sqlite database file.
	Path string
	// Prefix names the layout tables of the SQL backends (<prefix>_columns, <prefix>_rows).
	Prefix string

	SpreadsheetID   string
	CredentialsFile string
	Endpoint        string

	BaseURL string
	Token   string

	Timeout time.Duration
}

func (c StoreConfig) CallTimeout() time.Duration {
	if c.Timeout <= 0 {
		return defaultTimeout
	}
	return c.Timeout
}

type Row map[string]string

type Table struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

func (t Table) Empty() bool {
	return len(t.Rows) == 0
}

func (t Table) Clone() Table {
	out := Table{Name: t.Name, Columns: append([]string(nil), t.Columns...), Rows: make([]Row, len(t.Rows))}
	for i, row := range t.Rows {
		cp := make(Row, len(row))
		for k, v := range row {
			cp[k] = v
		}
		out.Rows[i] = cp
	}
	return out
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}

func notFound(name string) error {
	return fmt.Errorf("%w: %q", ErrTableNotFound, name)
}

// dialect captures what differs between the SQL backends sharing the generic layout.
type dialect struct {
	name        string
	quote       func(string) string
	placeholder func(n int) string
	maxSegments int
	ddl         func(l layoutNames) []string
}

type layoutNames struct {
	columns    string
	rows       string
	columnsRaw string
	rowsRaw    string
}

type schemaState struct {
	mu    sync.Mutex
	ready bool
}

type baseConnector struct {
	cfg     StoreConfig
	db      *sql.DB
	dialect dialect
	layout  layoutNames
	schema  *schemaState
}

func newBaseConnector(cfg StoreConfig, db *sql.DB, d dialect) (baseConnector, error) {
	prefix := strings.TrimSpace(cfg.Prefix)
	if prefix == "" {
		prefix = defaultLayoutPrefix
	}
	columns, _, err := quoteQualified(prefix+"_columns", d.maxSegments, d.quote)
	if err != nil {
		return baseConnector{}, fmt.Errorf("invalid %s layout prefix: %w", d.name, err)
	}
	rows, _, err := quoteQualified(prefix+"_rows", d.maxSegments, d.quote)
	if err != nil {
		return baseConnector{}, fmt.Errorf("invalid %s layout prefix: %w", d.name, err)
	}
	return baseConnector{
		cfg:     cfg,
		db:      db,
		dialect: d,
		layout: layoutNames{
			columns:    columns,
			rows:       rows,
			columnsRaw: prefix + "_columns",
			rowsRaw:    prefix + "_rows",
		},
		schema: &schemaState{},
	}, nil
}

func (b *baseConnector) Close() error {
	if b.db == nil {
		return nil
	}
	return b.db.Close()
}

func (b *baseConnector) TestConnection(ctx context.Context) error {
	if err := b.db.PingContext(ctx); err != nil {
		return unavailable("ping "+b.dialect.name, err)
	}
	return nil
}

func (b *baseConnector) ensureSchema(ctx context.Context) error {
	b.schema.mu.Lock()
	defer b.schema.mu.Unlock()
	if b.schema.ready {
		return nil
	}
	for _, stmt := range b.dialect.ddl(b.layout) {
		if _, err := b.db.ExecContext(ctx, stmt); err != nil {
			return unavailable("create "+b.dialect.name+" layout", err)
		}
	}
	b.schema.ready = true
	return nil
}

func (b *baseConnector) ListTables(ctx context.Context) ([]string, error) {
	if err := b.ensureSchema(ctx); err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT DISTINCT sheet FROM %s ORDER BY sheet", b.layout.columns)
	rows, err := b.db.QueryContext(ctx, query)
	if err != nil {
		return nil, unavailable("list "+b.dialect.name+" tables", err)
	}
	defer rows.Close()
	results := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, unavailable("scan "+b.dialect.name+" table name", err)
		}
		results = append(results, name)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate "+b.dialect.name+" tables", err)
	}
	return results, nil
}

func (b *baseConnector) ReadTable(ctx context.Context, name string) (Table, error) {
	if strings.TrimSpace(name) == "" {
		return Table{}, errors.New("table name is empty")
	}
	if err := b.ensureSchema(ctx); err != nil {
		return Table{}, err
	}
	columns, err := b.readColumns(ctx, name)
	if err != nil {
		return Table{}, err
	}
	rows, err := b.readRows(ctx, name)
	if err != nil {
		return Table{}, err
	}
	table := Table{Name: name, Columns: columns, Rows: rows}
	if len(table.Columns) == 0 && len(table.Rows) == 0 {
		return Table{}, notFound(name)
	}
	return table, nil
}

// readColumns and readRows close their cursor before returning; sqlite runs on a single connection.
func (b *baseConnector) readColumns(ctx context.Context, name string) ([]string, error) {
	query := fmt.Sprintf("SELECT name FROM %s WHERE sheet = %s ORDER BY col_no", b.layout.columns, b.dialect.placeholder(1))
	rows, err := b.db.QueryContext(ctx, query, name)
	if err != nil {
		return nil, unavailable("query "+b.dialect.name+" columns", err)
	}
	defer rows.Close()
	columns := []string{}
	for rows.Next() {
		var col string
		if err := rows.Scan(&col); err != nil {
			return nil, unavailable("scan "+b.dialect.name+" column", err)
		}
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate "+b.dialect.name+" columns", err)
	}
	return columns, nil
}

func (b *baseConnector) readRows(ctx context.Context, name string) ([]Row, error) {
	query := fmt.Sprintf("SELECT data FROM %s WHERE sheet = %s ORDER BY row_no", b.layout.rows, b.dialect.placeholder(1))
	rows, err := b.db.QueryContext(ctx, query, name)
	if err != nil {
		return nil, unavailable("query "+b.dialect.name+" rows", err)
	}
	defer rows.Close()
	results := []Row{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, unavailable("scan "+b.dialect.name+" row", err)
		}
		row := Row{}
		if err := json.Unmarshal([]byte(data), &row); err != nil {
			return nil, fmt.Errorf("decode %s row of %q: %w", b.dialect.name, name, err)
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate "+b.dialect.name+" rows", err)
	}
	return results, nil
}

func (b *baseConnector) WriteTable(ctx context.Context, table Table) error {
	if strings.TrimSpace(table.Name) == "" {
		return errors.New("table name is empty")
	}
	if err := b.ensureSchema(ctx); err != nil {
		return err
	}
	ph := b.dialect.placeholder
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("begin "+b.dialect.name+" write", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, target := range []string{b.layout.columns, b.layout.rows} {
		stmt := fmt.Sprintf("DELETE FROM %s WHERE sheet = %s", target, ph(1))
		if _, err := tx.ExecContext(ctx, stmt, table.Name); err != nil {
			return unavailable("clear "+b.dialect.name+" table", err)
		}
	}

	colStmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (sheet, col_no, name) VALUES (%s, %s, %s)", b.layout.columns, ph(1), ph(2), ph(3)))
	if err != nil {
		return unavailable("prepare "+b.dialect.name+" column insert", err)
	}
	defer colStmt.Close()
	for i, col := range table.Columns {
		if _, err := colStmt.ExecContext(ctx, table.Name, i, col); err != nil {
			return unavailable("insert "+b.dialect.name+" column", err)
		}
	}

	rowStmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (sheet, row_no, data) VALUES (%s, %s, %s)", b.layout.rows, ph(1), ph(2), ph(3)))
	if err != nil {
		return unavailable("prepare "+b.dialect.name+" row insert", err)
	}
	defer rowStmt.Close()
	for i, row := range table.Rows {
		payload := make(map[string]string, len(table.Columns))
		for _, col := range table.Columns {
			payload[col] = row[col]
		}
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode %s row: %w", b.dialect.name, err)
		}
		if _, err := rowStmt.ExecContext(ctx, table.Name, i, string(data)); err != nil {
			return unavailable("insert "+b.dialect.name+" row", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return unavailable("commit "+b.dialect.name+" write", err)
	}
	return nil
}

func questionPlaceholder(int) string { return "?" }

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*$`)

func splitIdentifier(ident string) ([]string, error) {
	trimmed := strings.TrimSpace(ident)
	if trimmed == "" {
		return nil, errors.New("identifier is empty")
	}
	parts := strings.Split(trimmed, ".")
	for _, part := range parts {
		if part == "" {
			return nil, errors.New("identifier contains empty segment")
		}
		if !identPattern.MatchString(part) {
			return nil, fmt.Errorf("identifier segment %q is invalid", part)
		}
	}
	return parts, nil
}

func quoteQualified(ident string, maxSegments int, quote func(string) string) (string, []string, error) {
	parts, err := splitIdentifier(ident)
	if err != nil {
		return "", nil, err
	}
	if maxSegments > 0 && len(parts) > maxSegments {
		return "", nil, fmt.Errorf("identifier %q has too many segments", ident)
	}
	quoted := make([]string, len(parts))
	for i, part := range parts {
		quoted[i] = quote(part)
	}
	return strings.Join(quoted, "."), parts, nil
}
