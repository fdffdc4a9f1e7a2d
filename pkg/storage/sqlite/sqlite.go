// Package sqlite provides a SQLite-backed storage driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3" // register the "sqlite3" database/sql driver

	"github.com/eduspark/portal/pkg/storage/sqldriver"
)

// Driver implements storage.Driver using SQLite.
type Driver struct {
	*sqldriver.Driver
}

// NewDriver opens the SQLite database at dbPath. The dbPath can be a file
// path or ":memory:" for an in-memory database.
func NewDriver(ctx context.Context, dbPath string) (*Driver, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return &Driver{Driver: sqldriver.New(db, sqldriver.SQLite{})}, nil
}
