// file: postgres_connector.go
package tablestore

import (
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
)

type PostgresConnector struct {
	baseConnector
}

var postgresDialect = dialect{
	name:        "postgres",
	quote:       func(s string) string { return "\"" + s + "\"" },
	placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
	maxSegments: 2,
	ddl: func(l layoutNames) []string {
		return []string{
			fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (sheet TEXT NOT NULL, col_no INTEGER NOT NULL, name TEXT NOT NULL, PRIMARY KEY (sheet, col_no))", l.columns),
			fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (sheet TEXT NOT NULL, row_no INTEGER NOT NULL, data TEXT NOT NULL, PRIMARY KEY (sheet, row_no))", l.rows),
		}
	},
}

func newPostgresConnector(cfg StoreConfig) (*PostgresConnector, error) {
	if cfg.Port == 0 {
		cfg.Port = 5432
	}
	sslMode := strings.ToLower(strings.TrimSpace(cfg.SSLMode))
	if sslMode == "" {
		sslMode = "disable"
	}
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, sslMode)
	db, err := openDatabase("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}
	base, err := newBaseConnector(cfg, db, postgresDialect)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresConnector{base}, nil
}
