package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/newslake/internal/model"
)

// Querier is the subset of pgxpool.Pool the store uses. pgxmock satisfies it
// for unit tests.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Querier
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 5
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	run_date    TEXT NOT NULL,
	mode        TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running',
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS run_stages (
	id            TEXT PRIMARY KEY,
	run_id        TEXT NOT NULL REFERENCES runs(id),
	stage         TEXT NOT NULL,
	partition_key TEXT NOT NULL DEFAULT '',
	rows_in       BIGINT NOT NULL DEFAULT 0,
	rows_out      BIGINT NOT NULL DEFAULT 0,
	malformed     BIGINT NOT NULL DEFAULT 0,
	status        TEXT NOT NULL,
	error         TEXT NOT NULL DEFAULT '',
	started_at    TIMESTAMPTZ NOT NULL,
	finished_at   TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_run_date ON runs(run_date);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_run_stages_run_id ON run_stages(run_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, runDate string, mode model.RunMode) (*model.Run, error) {
	run := &model.Run{
		ID:        uuid.New().String(),
		RunDate:   runDate,
		Mode:      mode,
		Status:    model.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, run_date, mode, status, started_at) VALUES ($1, $2, $3, $4, $5)`,
		run.ID, run.RunDate, string(run.Mode), string(run.Status), run.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}
	return run, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, status model.RunStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, finished_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: run %s not found", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, run_date, mode, status, started_at, finished_at FROM runs WHERE id = $1`,
		runID,
	)
	run, err := scanRunPG(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Errorf("postgres: run %s not found", runID)
		}
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return run, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, run_date, mode, status, started_at, finished_at
		 FROM runs ORDER BY started_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		run, err := scanRunPG(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *run)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs")
}

func (s *PostgresStore) RecordStage(ctx context.Context, rec model.StageRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO run_stages
		 (id, run_id, stage, partition_key, rows_in, rows_out, malformed, status, error, started_at, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		rec.ID, rec.RunID, string(rec.Stage), rec.PartitionKey,
		rec.RowsIn, rec.RowsOut, rec.Malformed, rec.Status, rec.Error,
		rec.StartedAt, rec.FinishedAt,
	)
	return eris.Wrapf(err, "postgres: record stage %s", rec.Stage)
}

func (s *PostgresStore) ListStages(ctx context.Context, runID string) ([]model.StageRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, run_id, stage, partition_key, rows_in, rows_out, malformed, status, error, started_at, finished_at
		 FROM run_stages WHERE run_id = $1 ORDER BY started_at`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list stages for %s", runID)
	}
	defer rows.Close()

	var stages []model.StageRecord
	for rows.Next() {
		var rec model.StageRecord
		var stage string
		if err := rows.Scan(&rec.ID, &rec.RunID, &stage, &rec.PartitionKey,
			&rec.RowsIn, &rec.RowsOut, &rec.Malformed, &rec.Status, &rec.Error,
			&rec.StartedAt, &rec.FinishedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan stage")
		}
		rec.Stage = model.Stage(stage)
		stages = append(stages, rec)
	}
	return stages, eris.Wrapf(rows.Err(), "postgres: list stages for %s", runID)
}

func scanRunPG(row pgx.Row) (*model.Run, error) {
	var run model.Run
	var mode, status string
	var finished *time.Time
	if err := row.Scan(&run.ID, &run.RunDate, &mode, &status, &run.StartedAt, &finished); err != nil {
		return nil, err
	}
	run.Mode = model.RunMode(mode)
	run.Status = model.RunStatus(status)
	run.FinishedAt = finished
	return &run, nil
}
