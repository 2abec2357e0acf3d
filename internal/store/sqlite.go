package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/newslake/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	run_date    TEXT NOT NULL,
	mode        TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running',
	started_at  DATETIME NOT NULL,
	finished_at DATETIME
);

CREATE TABLE IF NOT EXISTS run_stages (
	id            TEXT PRIMARY KEY,
	run_id        TEXT NOT NULL REFERENCES runs(id),
	stage         TEXT NOT NULL,
	partition_key TEXT NOT NULL DEFAULT '',
	rows_in       INTEGER NOT NULL DEFAULT 0,
	rows_out      INTEGER NOT NULL DEFAULT 0,
	malformed     INTEGER NOT NULL DEFAULT 0,
	status        TEXT NOT NULL,
	error         TEXT NOT NULL DEFAULT '',
	started_at    DATETIME NOT NULL,
	finished_at   DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_run_date ON runs(run_date);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_run_stages_run_id ON run_stages(run_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, runDate string, mode model.RunMode) (*model.Run, error) {
	run := &model.Run{
		ID:        uuid.New().String(),
		RunDate:   runDate,
		Mode:      mode,
		Status:    model.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, run_date, mode, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.RunDate, string(run.Mode), string(run.Status), run.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}
	return run, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, status model.RunStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, finished_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("sqlite: run %s not found", runID)
	}
	return nil
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, run_date, mode, status, started_at, finished_at FROM runs WHERE id = ?`,
		runID,
	)
	run, err := scanRunSQL(row)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %s", runID)
	}
	return run, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_date, mode, status, started_at, finished_at
		 FROM runs ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		run, err := scanRunSQL(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		runs = append(runs, *run)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs")
}

func (s *SQLiteStore) RecordStage(ctx context.Context, rec model.StageRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO run_stages
		 (id, run_id, stage, partition_key, rows_in, rows_out, malformed, status, error, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.RunID, string(rec.Stage), rec.PartitionKey,
		rec.RowsIn, rec.RowsOut, rec.Malformed, rec.Status, rec.Error,
		rec.StartedAt, rec.FinishedAt,
	)
	return eris.Wrapf(err, "sqlite: record stage %s", rec.Stage)
}

func (s *SQLiteStore) ListStages(ctx context.Context, runID string) ([]model.StageRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, stage, partition_key, rows_in, rows_out, malformed, status, error, started_at, finished_at
		 FROM run_stages WHERE run_id = ? ORDER BY started_at`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list stages for %s", runID)
	}
	defer rows.Close()

	var stages []model.StageRecord
	for rows.Next() {
		var rec model.StageRecord
		var stage string
		if err := rows.Scan(&rec.ID, &rec.RunID, &stage, &rec.PartitionKey,
			&rec.RowsIn, &rec.RowsOut, &rec.Malformed, &rec.Status, &rec.Error,
			&rec.StartedAt, &rec.FinishedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan stage")
		}
		rec.Stage = model.Stage(stage)
		stages = append(stages, rec)
	}
	return stages, eris.Wrapf(rows.Err(), "sqlite: list stages for %s", runID)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRunSQL(row rowScanner) (*model.Run, error) {
	var run model.Run
	var mode, status string
	var finished sql.NullTime
	if err := row.Scan(&run.ID, &run.RunDate, &mode, &status, &run.StartedAt, &finished); err != nil {
		return nil, err
	}
	run.Mode = model.RunMode(mode)
	run.Status = model.RunStatus(status)
	if finished.Valid {
		t := finished.Time
		run.FinishedAt = &t
	}
	return &run, nil
}
