// file: factory.go
package tablestore

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

func NewStore(cfg StoreConfig) (TableStore, error) {
	if strings.TrimSpace(cfg.Type) == "" {
		return nil, errors.New("store type is required")
	}
	switch strings.ToLower(cfg.Type) {
	case "sqlite":
		return newSQLiteConnector(cfg)
	case "mysql":
		return newMySQLConnector(cfg)
	case "postgres", "postgresql":
		return newPostgresConnector(cfg)
	case "mssql", "sqlserver":
		return newMSSQLConnector(cfg)
	case "sheets", "gsheets":
		return newSheetsConnector(cfg)
	case "http":
		return newHTTPConnector(cfg)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported store type %q", cfg.Type)
	}
}

func openDatabase(driverName, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}
	return db, nil
}
