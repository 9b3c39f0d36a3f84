package sqldb

import (
	"database/sql"
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
)

const (
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

// Dialector returns the gorm dialector for cfg. SQLite opens cfg.Path; the
// server drivers open cfg.DSN through database/sql.
func Dialector(cfg Config) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "", DriverSQLite:
		return sqlite.Open(cfg.Path), nil
	case DriverMySQL:
		db, err := sql.Open("mysql", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("sqldb: %w", err)
		}
		return mysql.New(mysql.Config{Conn: db}), nil
	case DriverPostgres:
		db, err := sql.Open("postgres", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("sqldb: %w", err)
		}
		return postgres.New(postgres.Config{Conn: db}), nil
	}
	return nil, fmt.Errorf("sqldb: unknown driver %q", cfg.Driver)
}
