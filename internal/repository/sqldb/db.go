// Package sqldb stores reports through database/sql, for deployments on
// MySQL or a local SQLite file, and keeps the local report journal.
package sqldb

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// DB is a database/sql handle that remembers its dialect
type DB struct {
	*sql.DB
	driver string
}

// OpenSQLite opens (creating if needed) a SQLite database file
func OpenSQLite(ctx context.Context, path string) (*DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite database path is required")
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)

	return finishOpen(ctx, db, DriverSQLite)
}

// OpenMySQL connects to MySQL. parseTime is forced on so DATETIME columns
// scan into time.Time.
func OpenMySQL(ctx context.Context, dsn string) (*DB, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create mysql connector: %w", err)
	}

	return finishOpen(ctx, sql.OpenDB(connector), DriverMySQL)
}

func finishOpen(ctx context.Context, db *sql.DB, driver string) (*DB, error) {
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &DB{DB: db, driver: driver}, nil
}

// Driver returns the dialect name
func (db *DB) Driver() string {
	return db.driver
}

// Ping verifies database connectivity
func (db *DB) Ping(ctx context.Context) error {
	return db.PingContext(ctx)
}
