package pipeline

import (
	"context"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/newslake/internal/lake"
	"github.com/sells-group/newslake/internal/model"
)

// Enrich turns a run's raw articles and the source catalog into the silver
// schema. The steps run in order because later ones depend on columns the
// earlier ones produce:
//
//  1. deduplicate by uuid, last occurrence wins (rows keep the position of
//     the uuid's first appearance, so output order is stable across re-runs)
//  2. rename to the target schema
//  3. derive short_title from the rune-length threshold
//  4. fill empty descriptions with the sentinel
//  5. derive source_domain from the URL authority
//  6. left-join sources on normalized domain
//  7. fill unmatched source fields with sentinels
//
// Pure function: no I/O, deterministic for a given input ordering. An empty
// article input yields an empty output.
func Enrich(articles []model.ArticleRecord, sources []model.SourceRecord, runDate string) []model.EnrichedArticle {
	if len(articles) == 0 {
		return nil
	}

	latest := make(map[string]model.ArticleRecord, len(articles))
	order := make([]string, 0, len(articles))
	for _, a := range articles {
		if _, seen := latest[a.UUID]; !seen {
			order = append(order, a.UUID)
		}
		latest[a.UUID] = a
	}

	// First source record per normalized domain wins the join.
	byDomain := make(map[string]model.SourceRecord, len(sources))
	for _, s := range sources {
		key := NormalizeDomain(s.Domain)
		if key == "" {
			continue
		}
		if _, ok := byDomain[key]; !ok {
			byDomain[key] = s
		}
	}

	enriched := make([]model.EnrichedArticle, 0, len(order))
	for _, uuid := range order {
		a := latest[uuid]

		e := model.EnrichedArticle{
			UUID:          a.UUID,
			Title:         a.Title,
			ShortTitle:    model.IsShortTitle(a.Title),
			Description:   a.Description,
			URL:           a.URL,
			PublishedAt:   a.PublishedAt,
			Categories:    a.Categories,
			Language:      a.Language,
			IngestedAt:    a.IngestedAt,
			PartitionDate: runDate,
		}
		if e.Description == "" {
			e.Description = model.DescriptionSentinel
		}

		e.SourceDomain = DeriveDomain(a.URL)
		if src, ok := byDomain[NormalizeDomain(e.SourceDomain)]; ok {
			e.SourceName = src.Name
			e.SourceCategory = src.Category
		}
		if e.SourceName == "" {
			e.SourceName = model.UnknownSourceSentinel
		}
		if e.SourceCategory == "" {
			e.SourceCategory = model.UncategorizedSentinel
		}

		enriched = append(enriched, e)
	}
	return enriched
}

// DeriveDomain extracts the authority component from an article URL. An
// unparseable or missing URL yields an empty domain, never an error. The
// host comes back lowercased with any www. prefix stripped.
func DeriveDomain(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		u, err = url.Parse("https://" + rawURL)
		if err != nil || u.Host == "" {
			return ""
		}
	}
	return NormalizeDomain(u.Host)
}

// NormalizeDomain canonicalizes a domain for matching: lowercase, scheme and
// path stripped if present, leading www. removed.
func NormalizeDomain(domain string) string {
	d := strings.ToLower(strings.TrimSpace(domain))
	if i := strings.Index(d, "://"); i >= 0 {
		d = d[i+3:]
	}
	if i := strings.IndexByte(d, '/'); i >= 0 {
		d = d[:i]
	}
	return strings.TrimPrefix(d, "www.")
}

// Silver persists enriched articles, one overwritten partition per run date.
type Silver struct {
	table *lake.Table
}

// NewSilver opens the silver table under the lake root.
func NewSilver(lakeRoot string) (*Silver, error) {
	table, err := lake.Open(lake.TablePath(lakeRoot, layerSilver, systemName, entityEnriched))
	if err != nil {
		return nil, eris.Wrap(err, "silver: open table")
	}
	return &Silver{table: table}, nil
}

// Write replaces the run date's partition with the enriched set. Re-running
// a date recomputes and replaces exactly that partition; historical
// partitions stay untouched.
func (s *Silver) Write(ctx context.Context, enriched []model.EnrichedArticle, runDate string) (*lake.WriteResult, error) {
	if len(enriched) == 0 {
		zap.L().Warn("silver: no enriched articles for partition", zap.String(model.PartitionDateColumn, runDate))
	}
	rows := make([]lake.Row, 0, len(enriched))
	for _, e := range enriched {
		rows = append(rows, e.Row())
	}
	res, err := s.table.Commit(ctx, rows, lake.CommitOptions{
		Mode:        lake.ModeOverwritePartition,
		PartitionBy: []string{model.PartitionDateColumn},
	})
	return res, eris.Wrap(err, "silver: commit")
}

// Read returns the full silver history across all partitions.
func (s *Silver) Read(ctx context.Context) ([]model.EnrichedArticle, error) {
	rows, err := s.table.Read(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "silver: read")
	}
	enriched := make([]model.EnrichedArticle, 0, len(rows))
	for _, row := range rows {
		enriched = append(enriched, model.EnrichedFromRow(row))
	}
	return enriched, nil
}
