package db

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"

	_ "github.com/mattn/go-sqlite3"

	"github.com/tordrt/metamind/internal/schema"
)

// sqliteMagic is the 16-byte header every SQLite 3 database file starts with.
var sqliteMagic = []byte("SQLite format 3\x00")

// IsSQLiteFile reports whether data starts with the SQLite 3 file header.
func IsSQLiteFile(data []byte) bool {
	return bytes.HasPrefix(data, sqliteMagic)
}

// SQLiteClient manages a read-only connection to a SQLite database
type SQLiteClient struct {
	db       *sql.DB
	tempPath string
}

// NewSQLiteClient opens the SQLite database at path read-only
func NewSQLiteClient(ctx context.Context, path string) (*SQLiteClient, error) {
	db, err := openReadOnly(ctx, path, false)
	if err != nil {
		return nil, err
	}
	return &SQLiteClient{db: db}, nil
}

// OpenSQLiteBytes opens an uploaded database file. The bytes are copied to a private
// temp file that is removed again by Close; the caller's data is never written.
func OpenSQLiteBytes(ctx context.Context, data []byte) (*SQLiteClient, error) {
	if !IsSQLiteFile(data) {
		return nil, schema.NewUnreadable("input is not a SQLite database file", nil)
	}

	f, err := os.CreateTemp("", "metamind-*.sqlite")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	path := f.Name()

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return nil, fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("failed to close temp file: %w", err)
	}

	db, err := openReadOnly(ctx, path, true)
	if err != nil {
		_ = os.Remove(path)
		return nil, schema.NewUnreadable("failed to open database file", err)
	}

	return &SQLiteClient{db: db, tempPath: path}, nil
}

func openReadOnly(ctx context.Context, path string, immutable bool) (*sql.DB, error) {
	dsn := "file:" + (&url.URL{Path: path}).EscapedPath() + "?mode=ro"
	if immutable {
		dsn += "&immutable=1"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A header-valid but corrupt file only fails on first read.
	var tableCount int
	if err := db.QueryRowContext(ctx, "SELECT count(*) FROM sqlite_master").Scan(&tableCount); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to read database catalog: %w", err)
	}

	return db, nil
}

// Close closes the database connection and removes any temp copy
func (c *SQLiteClient) Close() error {
	err := c.db.Close()
	if c.tempPath != "" {
		if rmErr := os.Remove(c.tempPath); rmErr != nil && err == nil {
			err = fmt.Errorf("failed to remove temp file: %w", rmErr)
		}
	}
	return err
}

// GetDB returns the underlying database connection
func (c *SQLiteClient) GetDB() *sql.DB {
	return c.db
}
