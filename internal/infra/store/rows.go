package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"  // postgres driver
	_ "modernc.org/sqlite" // pure-Go sqlite driver (no CGO required)

	"github.com/matchd-io/matchd/internal/domain"
)

// Supported row-tier drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// rowTier is the durable relational tier. SQLite under the data dir is the
// default; a postgres DSN switches the driver and the placeholder style.
type rowTier struct {
	db     *sql.DB
	driver string
}

func openRows(dataDir string, cfg Config) (*rowTier, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DriverSQLite
	}

	var db *sql.DB
	var err error
	switch driver {
	case DriverSQLite:
		dsn := cfg.DSN
		if dsn == "" {
			dsn = filepath.Join(dataDir, "results.db") + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"
		}
		db, err = sql.Open("sqlite", dsn)
	case DriverPostgres:
		if cfg.DSN == "" {
			return nil, errors.New("postgres row store needs a dsn")
		}
		db, err = sql.Open("postgres", cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// SQLite is single-writer
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	t := &rowTier{db: db, driver: driver}
	if err := t.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return t, nil
}

func (t *rowTier) close() error {
	return t.db.Close()
}

func (t *rowTier) ping(ctx context.Context) error {
	return t.db.PingContext(ctx)
}

// migrate runs idempotent schema migrations. The SQL here sticks to the
// dialect intersection of sqlite and postgres.
func (t *rowTier) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS job_results (
			job_id          TEXT PRIMARY KEY,
			status          TEXT NOT NULL,
			result_json     TEXT,
			file_path       TEXT,
			priority        TEXT NOT NULL DEFAULT '',
			processing_time REAL NOT NULL DEFAULT 0,
			error           TEXT NOT NULL DEFAULT '',
			created_at      INTEGER NOT NULL,
			updated_at      INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_job_results_updated ON job_results(updated_at)`,
	}

	for _, m := range migrations {
		if _, err := t.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// upsert inserts or replaces the record for rec.JobID.
func (t *rowTier) upsert(ctx context.Context, rec domain.StoredResult) error {
	query := t.rebind(
		`INSERT INTO job_results
			(job_id, status, result_json, file_path, priority, processing_time, error, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(job_id) DO UPDATE SET
			status=excluded.status,
			result_json=excluded.result_json,
			file_path=excluded.file_path,
			priority=excluded.priority,
			processing_time=excluded.processing_time,
			error=excluded.error,
			updated_at=excluded.updated_at`)

	_, err := t.db.ExecContext(ctx, query,
		rec.JobID, string(rec.Status), nullableText(rec.Payload), nullableString(rec.FilePath),
		rec.Priority, rec.ProcessingTime, rec.Error, rec.CreatedAt.Unix(), rec.UpdatedAt.Unix())
	return err
}

// get returns the record for jobID, or domain.ErrResultNotFound.
func (t *rowTier) get(ctx context.Context, jobID string) (*domain.StoredResult, error) {
	row := t.db.QueryRowContext(ctx, t.rebind(
		`SELECT job_id, status, result_json, file_path, priority, processing_time, error, created_at, updated_at
		 FROM job_results WHERE job_id = ?`), jobID)
	return scanResult(row)
}

// recent returns the latest records, newest first.
func (t *rowTier) recent(ctx context.Context, limit int) ([]domain.StoredResult, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := t.db.QueryContext(ctx, t.rebind(
		`SELECT job_id, status, result_json, file_path, priority, processing_time, error, created_at, updated_at
		 FROM job_results ORDER BY updated_at DESC LIMIT ?`), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.StoredResult
	for rows.Next() {
		rec, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanResult(s scanner) (*domain.StoredResult, error) {
	var rec domain.StoredResult
	var status string
	var resultJSON, filePath sql.NullString
	var createdAt, updatedAt int64

	err := s.Scan(&rec.JobID, &status, &resultJSON, &filePath,
		&rec.Priority, &rec.ProcessingTime, &rec.Error, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrResultNotFound
	}
	if err != nil {
		return nil, err
	}

	rec.Status = domain.JobStatus(status)
	if resultJSON.Valid {
		rec.Payload = []byte(resultJSON.String)
	}
	rec.FilePath = filePath.String
	rec.CreatedAt = time.Unix(createdAt, 0)
	rec.UpdatedAt = time.Unix(updatedAt, 0)
	return &rec, nil
}

// rebind rewrites ? placeholders to $n for postgres.
func (t *rowTier) rebind(query string) string {
	if t.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func nullableText(payload []byte) sql.NullString {
	if len(payload) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(payload), Valid: true}
}

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
