package model

import "time"

// RunStatus tracks pipeline run lifecycle.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// RunMode distinguishes a same-day run from a historical backfill.
type RunMode string

const (
	RunModeIncremental RunMode = "incremental"
	RunModeBackfill    RunMode = "backfill"
)

// Stage names the pipeline stages recorded in run metadata.
type Stage string

const (
	StageExtract Stage = "extract"
	StageBronze  Stage = "bronze"
	StageSilver  Stage = "silver"
	StageGold    Stage = "gold"
)

// Run is one pipeline invocation for a single partition date.
type Run struct {
	ID         string     `json:"id"`
	RunDate    string     `json:"run_date"`
	Mode       RunMode    `json:"mode"`
	Status     RunStatus  `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// StageRecord is one stage of one run: counts, timings, and outcome.
type StageRecord struct {
	ID           string    `json:"id"`
	RunID        string    `json:"run_id"`
	Stage        Stage     `json:"stage"`
	PartitionKey string    `json:"partition_key"`
	RowsIn       int64     `json:"rows_in"`
	RowsOut      int64     `json:"rows_out"`
	Malformed    int64     `json:"malformed"`
	Status       string    `json:"status"`
	Error        string    `json:"error,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
}

// Duration returns the stage's wall-clock duration.
func (s StageRecord) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}
