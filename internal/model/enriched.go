package model

import "time"

// EnrichedArticle is a silver-layer row: a deduplicated article joined with
// its source and normalized to the stable target schema. Unique by UUID
// within a partition.
type EnrichedArticle struct {
	UUID           string    `json:"uuid"`
	Title          string    `json:"title"`
	ShortTitle     bool      `json:"short_title"`
	Description    string    `json:"description"`
	URL            string    `json:"url"`
	PublishedAt    time.Time `json:"published_at"`
	SourceDomain   string    `json:"source_domain"`
	SourceName     string    `json:"source_name"`
	SourceCategory string    `json:"source_category"`
	Categories     []string  `json:"categories"`
	Language       string    `json:"language"`
	IngestedAt     time.Time `json:"ingested_at"`
	PartitionDate  string    `json:"fecha_particion"`
}

// Row converts the record to a lake row.
func (e EnrichedArticle) Row() map[string]any {
	return map[string]any{
		"uuid":              e.UUID,
		"title":             e.Title,
		"short_title":       e.ShortTitle,
		"description":       e.Description,
		"url":               e.URL,
		"published_at":      e.PublishedAt.UTC().Format(time.RFC3339),
		"source_domain":     e.SourceDomain,
		"source_name":       e.SourceName,
		"source_category":   e.SourceCategory,
		"categories":        e.Categories,
		"language":          e.Language,
		"ingested_at":       e.IngestedAt.UTC().Format(time.RFC3339),
		PartitionDateColumn: e.PartitionDate,
	}
}

// EnrichedFromRow rebuilds an EnrichedArticle from a lake row.
func EnrichedFromRow(row map[string]any) EnrichedArticle {
	return EnrichedArticle{
		UUID:           rowString(row, "uuid"),
		Title:          rowString(row, "title"),
		ShortTitle:     rowBool(row, "short_title"),
		Description:    rowString(row, "description"),
		URL:            rowString(row, "url"),
		PublishedAt:    rowTime(row, "published_at"),
		SourceDomain:   rowString(row, "source_domain"),
		SourceName:     rowString(row, "source_name"),
		SourceCategory: rowString(row, "source_category"),
		Categories:     rowStrings(row, "categories"),
		Language:       rowString(row, "language"),
		IngestedAt:     rowTime(row, "ingested_at"),
		PartitionDate:  rowString(row, PartitionDateColumn),
	}
}

// SourceCountMetric is a gold-layer row: article count per source name,
// recomputed over the full silver history on each run.
type SourceCountMetric struct {
	SourceName   string    `json:"source_name"`
	ArticleCount int64     `json:"article_count"`
	ComputedAt   time.Time `json:"computed_at"`
}

// Row converts the metric to a lake row.
func (m SourceCountMetric) Row() map[string]any {
	return map[string]any{
		"source_name":   m.SourceName,
		"article_count": m.ArticleCount,
		"computed_at":   m.ComputedAt.UTC().Format(time.RFC3339),
	}
}

// MetricFromRow rebuilds a SourceCountMetric from a lake row.
func MetricFromRow(row map[string]any) SourceCountMetric {
	return SourceCountMetric{
		SourceName:   rowString(row, "source_name"),
		ArticleCount: rowInt64(row, "article_count"),
		ComputedAt:   rowTime(row, "computed_at"),
	}
}
