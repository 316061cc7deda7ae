// file: mysql_connector.go
package tablestore

import (
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
)

type MySQLConnector struct {
	baseConnector
}

var mysqlDialect = dialect{
	name:        "mysql",
	quote:       func(s string) string { return "`" + s + "`" },
	placeholder: questionPlaceholder,
	maxSegments: 2,
	ddl: func(l layoutNames) []string {
		return []string{
			fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (sheet VARCHAR(191) NOT NULL, col_no INT NOT NULL, name TEXT NOT NULL, PRIMARY KEY (sheet, col_no)) CHARACTER SET utf8mb4", l.columns),
			fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (sheet VARCHAR(191) NOT NULL, row_no INT NOT NULL, data LONGTEXT NOT NULL, PRIMARY KEY (sheet, row_no)) CHARACTER SET utf8mb4", l.rows),
		}
	},
}

func newMySQLConnector(cfg StoreConfig) (*MySQLConnector, error) {
	if cfg.Port == 0 {
		cfg.Port = 3306
	}
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4", cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database)
	sslMode := strings.ToLower(strings.TrimSpace(cfg.SSLMode))
	if sslMode == "disable" {
		dsn += "&tls=false"
	} else if sslMode != "" {
		dsn += "&tls=true"
	}
	db, err := openDatabase("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql connection: %w", err)
	}
	base, err := newBaseConnector(cfg, db, mysqlDialect)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &MySQLConnector{base}, nil
}
