package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Open opens the local record database at path, creating its directory when
// needed. ":memory:" opens a private in-memory database.
func Open(path string) (*sql.DB, error) {
	dsn := strings.TrimPrefix(strings.TrimSpace(path), "file:")
	if dsn == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	maxOpen := 4
	if dsn == ":memory:" {
		// Each connection to :memory: is a separate database.
		maxOpen = 1
	} else {
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite directory: %w", err)
			}
		}
		dsn += "?_busy_timeout=5000&_journal_mode=WAL"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}
