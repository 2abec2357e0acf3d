package pipeline

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/newslake/internal/lake"
	"github.com/sells-group/newslake/internal/model"
)

// Table layout under the lake root.
const (
	systemName = "news"

	layerBronze = "bronze"
	layerSilver = "silver"
	layerGold   = "gold"

	entityTopStories = "top_stories"
	entitySources    = "sources"
	entityEnriched   = "enriched_articles"
	entityMetrics    = "source_counts"
)

// Bronze persists raw extracted records. Articles accumulate append-only per
// run date; sources are full-refresh per category partition.
type Bronze struct {
	articles *lake.Table
	sources  *lake.Table
}

// NewBronze opens the bronze tables under the lake root.
func NewBronze(lakeRoot string) (*Bronze, error) {
	articles, err := lake.Open(lake.TablePath(lakeRoot, layerBronze, systemName, entityTopStories))
	if err != nil {
		return nil, eris.Wrap(err, "bronze: open articles table")
	}
	sources, err := lake.Open(lake.TablePath(lakeRoot, layerBronze, systemName, entitySources))
	if err != nil {
		return nil, eris.Wrap(err, "bronze: open sources table")
	}
	return &Bronze{articles: articles, sources: sources}, nil
}

// WriteArticles appends raw articles under the run-date partition. Bronze
// keeps every record ever ingested, so re-running a date accumulates
// duplicates; deduplication happens in silver.
func (b *Bronze) WriteArticles(ctx context.Context, articles []model.ArticleRecord, runDate string) (*lake.WriteResult, error) {
	rows := make([]lake.Row, 0, len(articles))
	for _, a := range articles {
		rows = append(rows, a.Row(runDate))
	}
	res, err := b.articles.Commit(ctx, rows, lake.CommitOptions{
		Mode:        lake.ModeAppend,
		PartitionBy: []string{model.PartitionDateColumn},
	})
	return res, eris.Wrap(err, "bronze: commit articles")
}

// WriteSources overwrites the category partitions present in the extracted
// set. Each run is authoritative for the categories it touches; untouched
// category partitions keep their previous contents.
func (b *Bronze) WriteSources(ctx context.Context, sources []model.SourceRecord) (*lake.WriteResult, error) {
	rows := make([]lake.Row, 0, len(sources))
	for _, s := range sources {
		rows = append(rows, s.Row())
	}
	res, err := b.sources.Commit(ctx, rows, lake.CommitOptions{
		Mode:        lake.ModeOverwritePartition,
		PartitionBy: []string{model.PartitionCategoryColumn},
	})
	return res, eris.Wrap(err, "bronze: commit sources")
}

// ReadArticles returns the bronze articles for one run-date partition.
func (b *Bronze) ReadArticles(ctx context.Context, runDate string) ([]model.ArticleRecord, error) {
	rows, err := b.articles.ReadPartition(ctx, model.PartitionDateColumn, runDate)
	if err != nil {
		return nil, eris.Wrapf(err, "bronze: read articles for %s", runDate)
	}
	articles := make([]model.ArticleRecord, 0, len(rows))
	for _, row := range rows {
		articles = append(articles, model.ArticleFromRow(row))
	}
	return articles, nil
}

// ReadSources returns the full bronze source catalog across all categories.
func (b *Bronze) ReadSources(ctx context.Context) ([]model.SourceRecord, error) {
	rows, err := b.sources.Read(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "bronze: read sources")
	}
	sources := make([]model.SourceRecord, 0, len(rows))
	for _, row := range rows {
		sources = append(sources, model.SourceFromRow(row))
	}
	return sources, nil
}
