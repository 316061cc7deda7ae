// file: sqlite_connector.go
package tablestore

import (
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

const defaultSQLitePath = "muxmonitor.db"

type SQLiteConnector struct {
	baseConnector
}

var sqliteDialect = dialect{
	name:        "sqlite",
	quote:       func(s string) string { return "\"" + s + "\"" },
	placeholder: questionPlaceholder,
	maxSegments: 1,
	ddl: func(l layoutNames) []string {
		return []string{
			fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (sheet TEXT NOT NULL, col_no INTEGER NOT NULL, name TEXT NOT NULL, PRIMARY KEY (sheet, col_no))", l.columns),
			fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (sheet TEXT NOT NULL, row_no INTEGER NOT NULL, data TEXT NOT NULL, PRIMARY KEY (sheet, row_no))", l.rows),
		}
	},
}

func newSQLiteConnector(cfg StoreConfig) (*SQLiteConnector, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		path = defaultSQLitePath
	}
	db, err := openDatabase("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One connection: keeps :memory: databases shared and serialises writers.
	db.SetMaxOpenConns(1)
	base, err := newBaseConnector(cfg, db, sqliteDialect)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteConnector{base}, nil
}
