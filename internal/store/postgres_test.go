package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/newslake/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_CreateRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs(pgxmock.AnyArg(), "2026-08-29", "incremental", "running", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run, err := s.CreateRun(context.Background(), "2026-08-29", model.RunModeIncremental)
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusRunning, run.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CompleteRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET status`).
		WithArgs("failed", pgxmock.AnyArg(), "missing-run").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.CompleteRun(context.Background(), "missing-run", model.RunStatusFailed)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, run_date, mode, status, started_at, finished_at FROM runs WHERE id = \$1`).
		WithArgs("nonexistent-run").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRun(context.Background(), "nonexistent-run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	started := time.Now().UTC()
	finished := started.Add(time.Minute)
	rows := pgxmock.NewRows([]string{"id", "run_date", "mode", "status", "started_at", "finished_at"}).
		AddRow("run-2", "2026-08-29", "incremental", "complete", started, &finished).
		AddRow("run-1", "2026-08-28", "backfill", "failed", started.Add(-time.Hour), nil)

	mock.ExpectQuery(`SELECT id, run_date, mode, status, started_at, finished_at\s+FROM runs ORDER BY started_at DESC`).
		WithArgs(50).
		WillReturnRows(rows)

	runs, err := s.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, model.RunStatusComplete, runs[0].Status)
	require.NotNil(t, runs[0].FinishedAt)
	assert.Nil(t, runs[1].FinishedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RecordStage(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO run_stages`).
		WithArgs(pgxmock.AnyArg(), "run-1", "silver", "fecha_particion=2026-08-29",
			int64(10), int64(8), int64(2), "complete", "",
			pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	now := time.Now().UTC()
	err := s.RecordStage(context.Background(), model.StageRecord{
		RunID:        "run-1",
		Stage:        model.StageSilver,
		PartitionKey: "fecha_particion=2026-08-29",
		RowsIn:       10,
		RowsOut:      8,
		Malformed:    2,
		Status:       "complete",
		StartedAt:    now,
		FinishedAt:   now.Add(time.Second),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListStages(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	rows := pgxmock.NewRows([]string{"id", "run_id", "stage", "partition_key", "rows_in", "rows_out", "malformed", "status", "error", "started_at", "finished_at"}).
		AddRow("st-1", "run-1", "bronze", "fecha_particion=2026-08-29", int64(5), int64(5), int64(0), "complete", "", now, now.Add(time.Second))

	mock.ExpectQuery(`SELECT .+ FROM run_stages WHERE run_id = \$1`).
		WithArgs("run-1").
		WillReturnRows(rows)

	stages, err := s.ListStages(context.Background(), "run-1")
	require.NoError(t, err)
	require.Len(t, stages, 1)
	assert.Equal(t, model.StageBronze, stages[0].Stage)
	assert.Equal(t, int64(5), stages[0].RowsOut)
	assert.NoError(t, mock.ExpectationsWereMet())
}
