package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/newslake/internal/model"
	"github.com/sells-group/newslake/pkg/newsapi"
)

// ExtractOptions carries the corpus filters shared by both endpoints. The
// sources call reuses the article call's language and locale so the two
// streams describe the same corpus.
type ExtractOptions struct {
	Locale   string
	Language string
	Limit    int
}

// ExtractResult is the parsed output of one extraction: both record streams
// plus malformed counts for run metadata.
type ExtractResult struct {
	Articles          []model.ArticleRecord
	Sources           []model.SourceRecord
	MalformedArticles int64
	MalformedSources  int64
	FetchedAt         time.Time
}

// Extractor pulls top stories and the source catalog from the news API and
// parses them into bronze records.
type Extractor struct {
	client newsapi.Client
	opts   ExtractOptions
}

// NewExtractor creates an Extractor over the given API client.
func NewExtractor(client newsapi.Client, opts ExtractOptions) *Extractor {
	return &Extractor{client: client, opts: opts}
}

// Extract fetches both endpoints concurrently. A failed endpoint (after the
// client's retries are exhausted) degrades to an empty record set with a
// warning; extraction itself never fails the run.
func (e *Extractor) Extract(ctx context.Context) *ExtractResult {
	log := zap.L().With(zap.String("component", "extractor"))
	result := &ExtractResult{FetchedAt: time.Now().UTC()}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		res, err := e.client.TopStories(gCtx, newsapi.TopStoriesOptions{
			Locale:   e.opts.Locale,
			Language: e.opts.Language,
			Limit:    e.opts.Limit,
		})
		if err != nil {
			log.Warn("extract: top stories failed, degrading to empty", zap.Error(err))
			return nil
		}
		for _, w := range res.Articles {
			rec, parseErr := ParseArticle(w, res.FetchedAt)
			if parseErr != nil {
				result.MalformedArticles++
				log.Warn("extract: malformed article", zap.Error(parseErr))
				continue
			}
			result.Articles = append(result.Articles, rec)
		}
		return nil
	})

	g.Go(func() error {
		res, err := e.client.Sources(gCtx, newsapi.SourcesOptions{
			Language: e.opts.Language,
			Locale:   e.opts.Locale,
		})
		if err != nil {
			log.Warn("extract: sources failed, degrading to empty", zap.Error(err))
			return nil
		}
		for _, w := range res.Sources {
			recs, parseErr := ParseSource(w, res.FetchedAt)
			if parseErr != nil {
				result.MalformedSources++
				log.Warn("extract: malformed source", zap.Error(parseErr))
				continue
			}
			result.Sources = append(result.Sources, recs...)
		}
		return nil
	})

	// Goroutines only return nil; failures degrade per-endpoint.
	_ = g.Wait()

	log.Info("extract: complete",
		zap.Int("articles", len(result.Articles)),
		zap.Int("sources", len(result.Sources)),
		zap.Int64("malformed_articles", result.MalformedArticles),
		zap.Int64("malformed_sources", result.MalformedSources),
	)
	return result
}
