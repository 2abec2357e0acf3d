package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/newslake/internal/model"
	"github.com/sells-group/newslake/internal/store"
	"github.com/sells-group/newslake/pkg/newsapi"
)

// Options configures a Pipeline.
type Options struct {
	LakeRoot string
	Extract  ExtractOptions
}

// RunOptions configures a single invocation.
type RunOptions struct {
	// Date is the partition date (YYYY-MM-DD). Empty means today (UTC).
	Date string
	Mode model.RunMode
}

// RunReport summarizes a completed run for the CLI.
type RunReport struct {
	RunID  string              `json:"run_id" yaml:"run_id"`
	Date   string              `json:"date" yaml:"date"`
	Status model.RunStatus     `json:"status" yaml:"status"`
	Stages []model.StageRecord `json:"stages" yaml:"stages"`
}

// Pipeline orchestrates one extract-bronze-silver-gold batch over the lake.
type Pipeline struct {
	extractor *Extractor
	store     store.Store
	bronze    *Bronze
	silver    *Silver
	gold      *Gold
	opts      Options
}

// New creates a Pipeline, opening the lake tables for all three layers.
func New(client newsapi.Client, st store.Store, opts Options) (*Pipeline, error) {
	bronze, err := NewBronze(opts.LakeRoot)
	if err != nil {
		return nil, err
	}
	silver, err := NewSilver(opts.LakeRoot)
	if err != nil {
		return nil, err
	}
	gold, err := NewGold(opts.LakeRoot)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		extractor: NewExtractor(client, opts.Extract),
		store:     st,
		bronze:    bronze,
		silver:    silver,
		gold:      gold,
		opts:      opts,
	}, nil
}

// Run executes the full pipeline for one partition date. Stages run strictly
// in sequence; a storage-commit failure aborts the failing stage and the
// remainder of the run, leaving previously committed partitions intact.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) (*RunReport, error) {
	runDate := opts.Date
	if runDate == "" {
		runDate = time.Now().UTC().Format(model.DateLayout)
	}
	if _, err := time.Parse(model.DateLayout, runDate); err != nil {
		return nil, eris.Wrapf(err, "pipeline: invalid run date %q", runDate)
	}
	mode := opts.Mode
	if mode == "" {
		mode = model.RunModeIncremental
	}

	log := zap.L().With(zap.String("run_date", runDate), zap.String("mode", string(mode)))
	log.Info("pipeline: starting run")

	run, err := p.store.CreateRun(ctx, runDate, mode)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create run")
	}
	report := &RunReport{RunID: run.ID, Date: runDate, Status: model.RunStatusRunning}

	trackStage := func(stage model.Stage, partitionKey string, fn func() (rowsIn, rowsOut, malformed int64, err error)) error {
		rec := model.StageRecord{
			RunID:        run.ID,
			Stage:        stage,
			PartitionKey: partitionKey,
			StartedAt:    time.Now().UTC(),
		}
		rowsIn, rowsOut, malformed, stageErr := fn()
		rec.RowsIn = rowsIn
		rec.RowsOut = rowsOut
		rec.Malformed = malformed
		rec.FinishedAt = time.Now().UTC()

		if stageErr != nil {
			rec.Status = "failed"
			rec.Error = stageErr.Error()
			log.Error("pipeline: stage failed",
				zap.String("stage", string(stage)),
				zap.String("partition", partitionKey),
				zap.Error(stageErr),
			)
		} else {
			rec.Status = "complete"
			log.Info("pipeline: stage complete",
				zap.String("stage", string(stage)),
				zap.String("partition", partitionKey),
				zap.Int64("rows_in", rowsIn),
				zap.Int64("rows_out", rowsOut),
				zap.Int64("malformed", malformed),
				zap.Int64("duration_ms", rec.Duration().Milliseconds()),
			)
		}

		if recErr := p.store.RecordStage(ctx, rec); recErr != nil {
			log.Warn("pipeline: failed to record stage", zap.String("stage", string(stage)), zap.Error(recErr))
		}
		report.Stages = append(report.Stages, rec)
		return stageErr
	}

	fail := func(err error) (*RunReport, error) {
		report.Status = model.RunStatusFailed
		if stErr := p.store.CompleteRun(ctx, run.ID, model.RunStatusFailed); stErr != nil {
			log.Warn("pipeline: failed to mark run failed", zap.Error(stErr))
		}
		return report, err
	}

	datePartition := model.PartitionDateColumn + "=" + runDate

	// Extract. Endpoint failures already degraded to empty inside the
	// extractor, so this stage never fails the run.
	var extracted *ExtractResult
	_ = trackStage(model.StageExtract, datePartition, func() (int64, int64, int64, error) {
		extracted = p.extractor.Extract(ctx)
		rowsOut := int64(len(extracted.Articles) + len(extracted.Sources))
		return rowsOut, rowsOut, extracted.MalformedArticles + extracted.MalformedSources, nil
	})

	// Bronze: raw articles append under the date partition.
	if err := trackStage(model.StageBronze, datePartition, func() (int64, int64, int64, error) {
		res, commitErr := p.bronze.WriteArticles(ctx, extracted.Articles, runDate)
		if commitErr != nil {
			return int64(len(extracted.Articles)), 0, 0, commitErr
		}
		return int64(len(extracted.Articles)), res.Rows, 0, nil
	}); err != nil {
		return fail(err)
	}

	// Bronze: source catalog, full refresh per touched category.
	if err := trackStage(model.StageBronze, model.PartitionCategoryColumn, func() (int64, int64, int64, error) {
		res, commitErr := p.bronze.WriteSources(ctx, extracted.Sources)
		if commitErr != nil {
			return int64(len(extracted.Sources)), 0, 0, commitErr
		}
		return int64(len(extracted.Sources)), res.Rows, 0, nil
	}); err != nil {
		return fail(err)
	}

	// Silver: read bronze back, enrich, overwrite the date partition.
	if err := trackStage(model.StageSilver, datePartition, func() (int64, int64, int64, error) {
		articles, readErr := p.bronze.ReadArticles(ctx, runDate)
		if readErr != nil {
			return 0, 0, 0, readErr
		}
		sources, readErr := p.bronze.ReadSources(ctx)
		if readErr != nil {
			return 0, 0, 0, readErr
		}
		enriched := Enrich(articles, sources, runDate)
		res, commitErr := p.silver.Write(ctx, enriched, runDate)
		if commitErr != nil {
			return int64(len(articles)), 0, 0, commitErr
		}
		return int64(len(articles)), res.Rows, 0, nil
	}); err != nil {
		return fail(err)
	}

	// Gold: full recomputation over all of silver history.
	if err := trackStage(model.StageGold, "", func() (int64, int64, int64, error) {
		enriched, readErr := p.silver.Read(ctx)
		if readErr != nil {
			return 0, 0, 0, readErr
		}
		metrics := Aggregate(enriched, time.Now().UTC())
		res, commitErr := p.gold.Write(ctx, metrics)
		if commitErr != nil {
			return int64(len(enriched)), 0, 0, commitErr
		}
		return int64(len(enriched)), res.Rows, 0, nil
	}); err != nil {
		return fail(err)
	}

	report.Status = model.RunStatusComplete
	if err := p.store.CompleteRun(ctx, run.ID, model.RunStatusComplete); err != nil {
		log.Warn("pipeline: failed to mark run complete", zap.Error(err))
	}
	log.Info("pipeline: run complete", zap.String("run_id", run.ID))
	return report, nil
}
