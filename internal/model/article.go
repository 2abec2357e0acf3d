package model

import (
	"time"
	"unicode/utf8"
)

// Partition column names. These are directory-encoded into the lake layout
// (key=value segments) and must stay stable for compatibility with the
// existing lake.
const (
	// PartitionDateColumn partitions article tables by run date (YYYY-MM-DD).
	PartitionDateColumn = "fecha_particion"

	// PartitionCategoryColumn partitions the sources table by category.
	PartitionCategoryColumn = "categories"
)

// Sentinels used by the silver enrichment rules.
const (
	// DescriptionSentinel replaces a null or empty article description.
	DescriptionSentinel = "no description"

	// UnknownSourceSentinel fills source_name and is the gold bucket for
	// articles whose domain matched no known source.
	UnknownSourceSentinel = "unknown source"

	// UncategorizedSentinel is the partition bucket for sources without a
	// category and the source_category fill for unmatched articles.
	UncategorizedSentinel = "uncategorized"
)

// ShortTitleThreshold is the title length (in runes) below which an article
// is flagged short_title. A title of exactly this length is not short.
const ShortTitleThreshold = 40

// DateLayout is the canonical partition-date format.
const DateLayout = "2006-01-02"

// ArticleRecord is a raw article as ingested into the bronze layer.
// UUID is the natural key; bronze keeps every record ever ingested.
type ArticleRecord struct {
	UUID        string    `json:"uuid"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"published_at"`
	Source      string    `json:"source"`
	Categories  []string  `json:"categories"`
	Language    string    `json:"language"`
	Locale      string    `json:"locale"`
	IngestedAt  time.Time `json:"ingested_at"`
}

// Row converts the record to a lake row, tagged with its partition date.
func (a ArticleRecord) Row(partitionDate string) map[string]any {
	return map[string]any{
		"uuid":              a.UUID,
		"title":             a.Title,
		"description":       a.Description,
		"url":               a.URL,
		"published_at":      a.PublishedAt.UTC().Format(time.RFC3339),
		"source":            a.Source,
		"categories":        a.Categories,
		"language":          a.Language,
		"locale":            a.Locale,
		"ingested_at":       a.IngestedAt.UTC().Format(time.RFC3339),
		PartitionDateColumn: partitionDate,
	}
}

// ArticleFromRow rebuilds an ArticleRecord from a lake row. Unknown or
// mistyped fields yield zero values; they never fail the read.
func ArticleFromRow(row map[string]any) ArticleRecord {
	return ArticleRecord{
		UUID:        rowString(row, "uuid"),
		Title:       rowString(row, "title"),
		Description: rowString(row, "description"),
		URL:         rowString(row, "url"),
		PublishedAt: rowTime(row, "published_at"),
		Source:      rowString(row, "source"),
		Categories:  rowStrings(row, "categories"),
		Language:    rowString(row, "language"),
		Locale:      rowString(row, "locale"),
		IngestedAt:  rowTime(row, "ingested_at"),
	}
}

// IsShortTitle reports whether a title falls under the short-title threshold.
func IsShortTitle(title string) bool {
	return utf8.RuneCountInString(title) < ShortTitleThreshold
}

func rowString(row map[string]any, key string) string {
	s, _ := row[key].(string)
	return s
}

func rowTime(row map[string]any, key string) time.Time {
	s, _ := row[key].(string)
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func rowStrings(row map[string]any, key string) []string {
	switch v := row[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func rowBool(row map[string]any, key string) bool {
	b, _ := row[key].(bool)
	return b
}

func rowInt64(row map[string]any, key string) int64 {
	switch v := row[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}
