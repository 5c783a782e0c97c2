package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"commentreview/internal/domain"

	_ "github.com/mattn/go-sqlite3"
)

func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path))
	if err != nil {
		return nil, err
	}
	// Workers write cache entries concurrently; one connection keeps sqlite
	// from returning SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id           TEXT PRIMARY KEY,
		kind         TEXT NOT NULL,
		input_path   TEXT NOT NULL,
		output_path  TEXT DEFAULT '',
		fingerprint  TEXT DEFAULT '',
		rows         INTEGER DEFAULT 0,
		failed_rows  INTEGER DEFAULT 0,
		status       TEXT NOT NULL,
		error        TEXT DEFAULT '',
		started_at   DATETIME NOT NULL,
		finished_at  DATETIME
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_runs_fingerprint ON runs(fingerprint);

	CREATE TABLE IF NOT EXISTS llm_responses (
		cache_key  TEXT PRIMARY KEY,
		reply      TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// InsertRun records a run as started.
func InsertRun(db *sql.DB, run domain.Run) error {
	_, err := db.Exec(
		`INSERT INTO runs (id, kind, input_path, output_path, fingerprint, status, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Kind, run.Input, run.Output, run.Fingerprint, run.Status, run.StartedAt.UTC(),
	)
	return err
}

// FinishRun stores the outcome of a run.
func FinishRun(db *sql.DB, run domain.Run) error {
	res, err := db.Exec(
		`UPDATE runs SET output_path = ?, rows = ?, failed_rows = ?, status = ?, error = ?, finished_at = ?
		 WHERE id = ?`,
		run.Output, run.Rows, run.FailedRows, run.Status, run.Error, run.FinishedAt.UTC(), run.ID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s not found", run.ID)
	}
	return nil
}

// ListRuns returns the most recent runs first.
func ListRuns(db *sql.DB, limit int) ([]domain.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.Query(
		`SELECT id, kind, input_path, output_path, fingerprint, rows, failed_rows, status, error, started_at, finished_at
		 FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []domain.Run
	for rows.Next() {
		var r domain.Run
		var finished sql.NullTime
		if err := rows.Scan(&r.ID, &r.Kind, &r.Input, &r.Output, &r.Fingerprint, &r.Rows, &r.FailedRows, &r.Status, &r.Error, &r.StartedAt, &finished); err != nil {
			return nil, err
		}
		if finished.Valid {
			r.FinishedAt = finished.Time
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// CompletedRunExists reports whether a completed run already consumed the
// input with this fingerprint.
func CompletedRunExists(db *sql.DB, fingerprint string) (bool, error) {
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM runs WHERE fingerprint = ? AND status = ?`, fingerprint, domain.RunStatusCompleted).Scan(&count)
	return count > 0, err
}

// ResponseCache stores raw model replies for llm.CachingCompleter.
type ResponseCache struct {
	DB *sql.DB
}

func (c ResponseCache) GetResponse(ctx context.Context, key string) (string, bool, error) {
	var reply string
	err := c.DB.QueryRowContext(ctx, `SELECT reply FROM llm_responses WHERE cache_key = ?`, key).Scan(&reply)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return reply, true, nil
}

func (c ResponseCache) PutResponse(ctx context.Context, key, reply string) error {
	_, err := c.DB.ExecContext(ctx,
		`INSERT INTO llm_responses (cache_key, reply, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(cache_key) DO UPDATE SET reply = excluded.reply, created_at = excluded.created_at`,
		key, reply, time.Now().UTC())
	return err
}
