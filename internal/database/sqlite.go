// Package database persists run history in SQLite.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"xb-go/internal/database/migrations"
	"xb-go/internal/xb"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteHistory implements xb.History on a SQLite database.
type SQLiteHistory struct {
	db   *sql.DB
	path string
}

var _ xb.History = (*SQLiteHistory)(nil)

// NewSQLiteHistory opens path (or ":memory:") and migrates it to the latest
// schema.
func NewSQLiteHistory(path string) (*SQLiteHistory, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating %s: %w", path, err)
	}
	return &SQLiteHistory{db: db, path: path}, nil
}

// OpenConnection opens and configures a SQLite connection.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}
	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return db, nil
}

// Record inserts rec, or replaces the row with the same ID.
func (s *SQLiteHistory) Record(ctx context.Context, rec xb.RunRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, op, kind, archive_key, size_bytes, swept, started_at, finished_at, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			op = excluded.op,
			kind = excluded.kind,
			archive_key = excluded.archive_key,
			size_bytes = excluded.size_bytes,
			swept = excluded.swept,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at,
			error = excluded.error`,
		rec.ID, rec.Op, rec.Kind, rec.Key, rec.Size, rec.Swept,
		rec.Started.UnixMilli(), rec.Finished.UnixMilli(), rec.Error)
	if err != nil {
		return fmt.Errorf("recording run %s: %w", rec.ID, err)
	}
	return nil
}

// Recent returns up to limit runs, newest first.
func (s *SQLiteHistory) Recent(ctx context.Context, limit int) ([]xb.RunRecord, error) {
	if limit <= 0 {
		limit = xb.DefaultListingSize
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, op, kind, archive_key, size_bytes, swept, started_at, finished_at, error
		FROM runs
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var out []xb.RunRecord
	for rows.Next() {
		var rec xb.RunRecord
		var started, finished int64
		if err := rows.Scan(&rec.ID, &rec.Op, &rec.Kind, &rec.Key, &rec.Size, &rec.Swept, &started, &finished, &rec.Error); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		rec.Started = time.UnixMilli(started).UTC()
		rec.Finished = time.UnixMilli(finished).UTC()
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	return out, nil
}

// Path returns the database file path (or ":memory:").
func (s *SQLiteHistory) Path() string {
	return s.path
}

// CheckMigrations verifies the schema is up to date.
func (s *SQLiteHistory) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// Close closes the database connection.
func (s *SQLiteHistory) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
