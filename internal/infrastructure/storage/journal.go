package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"StationScraper/internal/domain"
	"StationScraper/internal/ports"
)

// SQLiteJournal keeps an audit trail of batch runs in a local SQLite file.
type SQLiteJournal struct {
	db *sql.DB
}

var _ ports.RunJournal = (*SQLiteJournal)(nil)

// RunSummary is one row of batch_runs.
type RunSummary struct {
	RunID      string    `json:"runId"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Stations   int       `json:"stations"`
	Done       int       `json:"done"`
	Failed     int       `json:"failed"`
}

// OpenSQLiteJournal opens (or creates) the database at path and ensures the schema exists.
func OpenSQLiteJournal(path string) (*SQLiteJournal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("journal: ensure dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("journal: open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: schema: %w", err)
	}
	return &SQLiteJournal{db: db}, nil
}

func initSchema(db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS batch_runs (
    run_id TEXT PRIMARY KEY,
    started_at INTEGER NOT NULL,
    finished_at INTEGER NOT NULL,
    stations INTEGER NOT NULL,
    done INTEGER NOT NULL,
    failed INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS station_results (
    run_id TEXT NOT NULL REFERENCES batch_runs(run_id),
    station_id INTEGER NOT NULL,
    done INTEGER NOT NULL,
    state TEXT NOT NULL,
    error TEXT,
    PRIMARY KEY (run_id, station_id)
);
CREATE INDEX IF NOT EXISTS idx_batch_runs_finished_at ON batch_runs(finished_at);`
	_, err := db.Exec(schema)
	return err
}

// Close closes the underlying database.
func (j *SQLiteJournal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// RecordRun stores the run summary and every station result in one transaction.
func (j *SQLiteJournal) RecordRun(ctx context.Context, run domain.BatchRun) error {
	if j == nil || j.db == nil {
		return nil
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin journal tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	done, failed := run.Counts()
	query, args, err := sq.Insert("batch_runs").
		Columns("run_id", "started_at", "finished_at", "stations", "done", "failed").
		Values(run.ID, run.StartedAt.UnixMilli(), run.FinishedAt.UnixMilli(), len(run.Results), done, failed).
		ToSql()
	if err != nil {
		return fmt.Errorf("build run insert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}

	if len(run.Results) > 0 {
		insert := sq.Insert("station_results").Columns("run_id", "station_id", "done", "state", "error")
		for _, res := range run.Results {
			var errText any
			if res.Error != "" {
				errText = res.Error
			}
			insert = insert.Values(run.ID, res.StationID, res.Done, string(res.State), errText)
		}
		query, args, err = insert.ToSql()
		if err != nil {
			return fmt.Errorf("build result insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert results of run %s: %w", run.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit journal tx: %w", err)
	}
	return nil
}

// RecentRuns returns up to limit run summaries, newest first.
func (j *SQLiteJournal) RecentRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if j == nil || j.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}

	query, args, err := sq.Select("run_id", "started_at", "finished_at", "stations", "done", "failed").
		From("batch_runs").
		OrderBy("finished_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build recent runs query: %w", err)
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query recent runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var (
			summary           RunSummary
			started, finished int64
		)
		if err := rows.Scan(&summary.RunID, &started, &finished, &summary.Stations, &summary.Done, &summary.Failed); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		summary.StartedAt = time.UnixMilli(started).UTC()
		summary.FinishedAt = time.UnixMilli(finished).UTC()
		out = append(out, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

// StationResults returns the per-station outcomes recorded for runID.
func (j *SQLiteJournal) StationResults(ctx context.Context, runID string) ([]domain.BatchResult, error) {
	if j == nil || j.db == nil {
		return nil, nil
	}

	query, args, err := sq.Select("station_id", "done", "state", "error").
		From("station_results").
		Where(sq.Eq{"run_id": runID}).
		OrderBy("station_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build station results query: %w", err)
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query station results: %w", err)
	}
	defer rows.Close()

	var out []domain.BatchResult
	for rows.Next() {
		var (
			res     domain.BatchResult
			state   string
			errText sql.NullString
		)
		if err := rows.Scan(&res.StationID, &res.Done, &state, &errText); err != nil {
			return nil, fmt.Errorf("scan station result: %w", err)
		}
		res.State = domain.StationState(state)
		res.Error = errText.String
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}
