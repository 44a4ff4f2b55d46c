// Package history stores task run records in SQLite.
package history

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // registers the sqlite3 driver with database/sql

	"github.com/go-ports/vsotask/internal/models"
)

// ErrNotFound is returned by Get when no run matches the ID prefix.
var ErrNotFound = errors.New("run not found")

// ErrAmbiguous is returned by Get when an ID prefix matches several runs.
var ErrAmbiguous = errors.New("run ID prefix is ambiguous")

const schemaVersion = "1"

// timeFormat has a fixed width so started_at sorts lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

// DB wraps a *sql.DB with the path it was opened from.
type DB struct {
	db   *sql.DB
	path string
}

// Open opens (or creates) the SQLite database at path and initialises the schema.
func Open(path string) (*DB, error) {
	sqldb, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("history.Open: %w", err)
	}
	d := &DB{db: sqldb, path: path}
	if err := d.createSchema(); err != nil {
		_ = sqldb.Close()
		return nil, fmt.Errorf("history.Open createSchema: %w", err)
	}
	return d, nil
}

// Path returns the database file path.
func (d *DB) Path() string { return d.path }

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// ---------------------------------------------------------------------------
// Schema
// ---------------------------------------------------------------------------

func (d *DB) createSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			rowid       INTEGER PRIMARY KEY AUTOINCREMENT,
			id          TEXT UNIQUE NOT NULL,
			kind        TEXT NOT NULL,
			command     TEXT NOT NULL,
			exit_code   INTEGER NOT NULL,
			status      TEXT NOT NULL,
			message     TEXT,
			started_at  TEXT NOT NULL,
			duration_ms INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS runs_started_at ON runs(started_at)`,
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	}

	for _, s := range stmts {
		if _, err := d.db.Exec(s); err != nil {
			return fmt.Errorf("createSchema exec: %w\nSQL: %s", err, s)
		}
	}

	if _, ok, err := d.GetMeta("schema_version"); err != nil {
		return err
	} else if !ok {
		return d.SetMeta("schema_version", schemaVersion)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Runs
// ---------------------------------------------------------------------------

// Insert stores a finished run.
func (d *DB) Insert(r *models.Run) error {
	_, err := d.db.Exec(`
		INSERT INTO runs (id, kind, command, exit_code, status, message, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Kind, r.Command, r.ExitCode, r.Status, r.Message,
		r.StartedAt.UTC().Format(timeFormat), r.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("history.Insert: %w", err)
	}
	return nil
}

// List returns up to limit runs, newest first, optionally filtered by kind.
// A limit of zero or less returns every run.
func (d *DB) List(limit int, kind string) ([]*models.Run, error) {
	q := `SELECT id, kind, command, exit_code, status, message, started_at, duration_ms FROM runs`
	var args []any
	if kind != "" {
		q += ` WHERE kind = ?`
		args = append(args, kind)
	}
	q += ` ORDER BY started_at DESC, rowid DESC`
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := d.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("history.List: %w", err)
	}
	defer rows.Close()
	return scanRuns(rows)
}

// Get returns the run whose ID starts with prefix.
func (d *DB) Get(prefix string) (*models.Run, error) {
	rows, err := d.db.Query(`
		SELECT id, kind, command, exit_code, status, message, started_at, duration_ms
		FROM runs WHERE id LIKE ? LIMIT 2`, prefix+"%")
	if err != nil {
		return nil, fmt.Errorf("history.Get: %w", err)
	}
	defer rows.Close()
	runs, err := scanRuns(rows)
	if err != nil {
		return nil, err
	}
	switch len(runs) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, prefix)
	case 1:
		return runs[0], nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrAmbiguous, prefix)
	}
}

// Count returns the number of stored runs.
func (d *DB) Count() (int, error) {
	var n int
	err := d.db.QueryRow(`SELECT COUNT(*) FROM runs`).Scan(&n)
	return n, err
}

// Prune deletes runs started before `before` and returns how many were removed.
func (d *DB) Prune(before time.Time) (int, error) {
	res, err := d.db.Exec(`DELETE FROM runs WHERE started_at < ?`, before.UTC().Format(timeFormat))
	if err != nil {
		return 0, fmt.Errorf("history.Prune: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// ---------------------------------------------------------------------------
// Meta
// ---------------------------------------------------------------------------

// GetMeta reads a value from the meta table.
func (d *DB) GetMeta(key string) (string, bool, error) {
	var val string
	err := d.db.QueryRow(`SELECT value FROM meta WHERE key = ?`, key).Scan(&val)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// SetMeta writes a value to the meta table.
func (d *DB) SetMeta(key, value string) error {
	_, err := d.db.Exec(
		`INSERT INTO meta (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	return err
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func scanRuns(rows *sql.Rows) ([]*models.Run, error) {
	var runs []*models.Run
	for rows.Next() {
		var (
			r       models.Run
			message sql.NullString
			started string
			durMS   int64
		)
		if err := rows.Scan(&r.ID, &r.Kind, &r.Command, &r.ExitCode, &r.Status, &message, &started, &durMS); err != nil {
			return nil, err
		}
		t, err := time.Parse(timeFormat, started)
		if err != nil {
			return nil, fmt.Errorf("history: bad started_at %q: %w", started, err)
		}
		r.Message = message.String
		r.StartedAt = t
		r.Duration = time.Duration(durMS) * time.Millisecond
		runs = append(runs, &r)
	}
	return runs, rows.Err()
}
