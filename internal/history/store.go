// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package history persists which files were stamped, failed, or merely seen,
// so batch sweeps only touch new files and the watcher ignores its own writes.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/watermark-hook/pkg/types"
)

const dbFile = "history.db"

// Store manages the history SQLite database.
type Store struct {
	db       *sql.DB
	stateDir string
}

// NewStore opens or creates stateDir/history.db and its schema.
func NewStore(stateDir string) (*Store, error) {
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	dbPath := filepath.Join(stateDir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, stateDir: stateDir}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Key returns the form of p that history rows are keyed by: absolute, with
// symlinks resolved when the file exists. Record, Get and Replace apply it,
// so callers holding relative or symlinked paths see the same rows.
func Key(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		abs = filepath.Clean(p)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS files (
			path TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			mod_time TEXT,
			size INTEGER,
			message TEXT,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_files_status ON files(status)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

const upsertFile = `INSERT INTO files (path, status, mod_time, size, message, updated_at)
	 VALUES (?, ?, ?, ?, ?, ?)
	 ON CONFLICT(path) DO UPDATE SET
		status=excluded.status, mod_time=excluded.mod_time, size=excluded.size,
		message=excluded.message, updated_at=excluded.updated_at`

// Record inserts or replaces the row for rec.Path.
func (s *Store) Record(ctx context.Context, rec types.FileRecord) error {
	rec.Path = Key(rec.Path)
	if _, err := s.db.ExecContext(ctx, upsertFile, recordArgs(rec)...); err != nil {
		return fmt.Errorf("recording %s: %w", rec.Path, err)
	}
	return nil
}

// Get returns the record for path. ok is false when none exists.
func (s *Store) Get(ctx context.Context, path string) (rec types.FileRecord, ok bool, err error) {
	path = Key(path)
	row := s.db.QueryRowContext(ctx,
		`SELECT path, status, mod_time, size, message, updated_at FROM files WHERE path = ?`, path)
	rec, err = scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.FileRecord{}, false, nil
	}
	if err != nil {
		return types.FileRecord{}, false, fmt.Errorf("reading %s: %w", path, err)
	}
	return rec, true, nil
}

// ListOptions filters List.
type ListOptions struct {
	// Statuses restricts the result to these statuses; empty means all.
	Statuses []types.FileStatus
}

// List returns records ordered by path.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]types.FileRecord, error) {
	query := `SELECT path, status, mod_time, size, message, updated_at FROM files`
	var args []any
	if len(opts.Statuses) > 0 {
		query += ` WHERE status IN (?` + strings.Repeat(",?", len(opts.Statuses)-1) + `)`
		for _, st := range opts.Statuses {
			args = append(args, string(st))
		}
	}
	query += ` ORDER BY path`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing history: %w", err)
	}
	defer rows.Close()

	var out []types.FileRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Known returns the set of paths that are done: stamped and rescanned, or
// recorded by a populate run. Failed and stamped-only files are not included
// so they are retried.
func (s *Store) Known(ctx context.Context) (map[string]bool, error) {
	recs, err := s.List(ctx, ListOptions{Statuses: []types.FileStatus{types.StatusWatermarked, types.StatusKnown}})
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(recs))
	for _, r := range recs {
		known[r.Path] = true
	}
	return known, nil
}

// Remove deletes the rows for paths.
func (s *Store) Remove(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `DELETE FROM files WHERE path = ?`)
	if err != nil {
		return fmt.Errorf("preparing delete: %w", err)
	}
	defer stmt.Close()

	for _, p := range paths {
		if _, err := stmt.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("removing %s: %w", p, err)
		}
	}
	return tx.Commit()
}

// Replace discards all history and stores recs in its place.
func (s *Store) Replace(ctx context.Context, recs []types.FileRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM files`); err != nil {
		return fmt.Errorf("clearing history: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, upsertFile)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range recs {
		rec.Path = Key(rec.Path)
		if _, err := stmt.ExecContext(ctx, recordArgs(rec)...); err != nil {
			return fmt.Errorf("inserting %s: %w", rec.Path, err)
		}
	}
	return tx.Commit()
}

func recordArgs(rec types.FileRecord) []any {
	updated := rec.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	return []any{
		rec.Path,
		string(rec.Status),
		formatTime(rec.ModTime),
		rec.Size,
		rec.Message,
		formatTime(updated),
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (types.FileRecord, error) {
	var (
		rec              types.FileRecord
		status           string
		modTime, updated sql.NullString
		size             sql.NullInt64
		message          sql.NullString
	)
	if err := row.Scan(&rec.Path, &status, &modTime, &size, &message, &updated); err != nil {
		return types.FileRecord{}, err
	}
	rec.Status = types.FileStatus(status)
	rec.Size = size.Int64
	rec.Message = message.String
	rec.ModTime = parseTime(modTime.String)
	rec.UpdatedAt = parseTime(updated.String)
	return rec, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
