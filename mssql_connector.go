// file: mssql_connector.go
package tablestore

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	_ "github.com/microsoft/go-mssqldb"
)

type MSSQLConnector struct {
	baseConnector
}

var mssqlDialect = dialect{
	name:        "mssql",
	quote:       func(s string) string { return "[" + s + "]" },
	placeholder: func(n int) string { return "@p" + strconv.Itoa(n) },
	maxSegments: 2,
	ddl: func(l layoutNames) []string {
		return []string{
			fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NULL CREATE TABLE %s (sheet NVARCHAR(191) NOT NULL, col_no INT NOT NULL, name NVARCHAR(400) NOT NULL, PRIMARY KEY (sheet, col_no))", qualifyMSSQL(l.columnsRaw), l.columns),
			fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NULL CREATE TABLE %s (sheet NVARCHAR(191) NOT NULL, row_no INT NOT NULL, data NVARCHAR(MAX) NOT NULL, PRIMARY KEY (sheet, row_no))", qualifyMSSQL(l.rowsRaw), l.rows),
		}
	},
}

func newMSSQLConnector(cfg StoreConfig) (*MSSQLConnector, error) {
	if cfg.Port == 0 {
		cfg.Port = 1433
	}
	user := url.QueryEscape(cfg.User)
	pass := url.QueryEscape(cfg.Password)
	sslMode := strings.ToLower(strings.TrimSpace(cfg.SSLMode))
	encrypt := "true"
	if sslMode == "disable" {
		encrypt = "disable"
	}
	dsn := fmt.Sprintf("sqlserver://%s:%s@%s:%d?database=%s&encrypt=%s", user, pass, cfg.Host, cfg.Port, cfg.Database, encrypt)
	db, err := openDatabase("sqlserver", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mssql connection: %w", err)
	}
	base, err := newBaseConnector(cfg, db, mssqlDialect)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &MSSQLConnector{base}, nil
}

// qualifyMSSQL adds the default dbo schema to an unqualified layout table.
func qualifyMSSQL(table string) string {
	schema, name, err := parseMSSQLTable(table)
	if err != nil {
		return table
	}
	return schema + "." + name
}

func parseMSSQLTable(table string) (string, string, error) {
	_, parts, err := quoteQualified(table, 2, func(s string) string { return "[" + s + "]" })
	if err != nil {
		return "", "", fmt.Errorf("invalid mssql table: %w", err)
	}
	if len(parts) == 1 {
		return "dbo", parts[0], nil
	}
	return parts[0], parts[1], nil
}
