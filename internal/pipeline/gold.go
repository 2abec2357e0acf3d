package pipeline

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/newslake/internal/lake"
	"github.com/sells-group/newslake/internal/model"
)

// Aggregate counts enriched articles per source name over the full silver
// history. The unknown-source bucket participates like any other group.
// Output is sorted by source name so recomputations are byte-stable; an
// empty input yields an empty output.
func Aggregate(enriched []model.EnrichedArticle, computedAt time.Time) []model.SourceCountMetric {
	counts := make(map[string]int64, len(enriched))
	for _, e := range enriched {
		counts[e.SourceName]++
	}

	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	metrics := make([]model.SourceCountMetric, 0, len(names))
	for _, name := range names {
		metrics = append(metrics, model.SourceCountMetric{
			SourceName:   name,
			ArticleCount: counts[name],
			ComputedAt:   computedAt,
		})
	}
	return metrics
}

// Gold persists the source-count metrics, recomputed wholesale each run.
type Gold struct {
	table *lake.Table
}

// NewGold opens the gold table under the lake root.
func NewGold(lakeRoot string) (*Gold, error) {
	table, err := lake.Open(lake.TablePath(lakeRoot, layerGold, systemName, entityMetrics))
	if err != nil {
		return nil, eris.Wrap(err, "gold: open table")
	}
	return &Gold{table: table}, nil
}

// Write replaces the entire metrics table with the new aggregation.
func (g *Gold) Write(ctx context.Context, metrics []model.SourceCountMetric) (*lake.WriteResult, error) {
	rows := make([]lake.Row, 0, len(metrics))
	for _, m := range metrics {
		rows = append(rows, m.Row())
	}
	res, err := g.table.Commit(ctx, rows, lake.CommitOptions{Mode: lake.ModeOverwriteTable})
	return res, eris.Wrap(err, "gold: commit")
}

// Read returns the current metrics table.
func (g *Gold) Read(ctx context.Context) ([]model.SourceCountMetric, error) {
	rows, err := g.table.Read(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "gold: read")
	}
	metrics := make([]model.SourceCountMetric, 0, len(rows))
	for _, row := range rows {
		metrics = append(metrics, model.MetricFromRow(row))
	}
	return metrics, nil
}
