package model

import "time"

// SourceRecord is a news source as ingested into the bronze layer. Each run's
// extracted set is authoritative for the category partitions it touches
// (full-refresh semantics).
type SourceRecord struct {
	Domain     string    `json:"domain"`
	Name       string    `json:"name"`
	Category   string    `json:"category"`
	Language   string    `json:"language"`
	Locale     string    `json:"locale"`
	IngestedAt time.Time `json:"ingested_at"`
}

// PartitionCategory returns the category partition bucket for this source,
// mapping an empty category to the uncategorized sentinel.
func (s SourceRecord) PartitionCategory() string {
	if s.Category == "" {
		return UncategorizedSentinel
	}
	return s.Category
}

// Row converts the record to a lake row.
func (s SourceRecord) Row() map[string]any {
	return map[string]any{
		"domain":                s.Domain,
		"name":                  s.Name,
		"category":              s.Category,
		"language":              s.Language,
		"locale":                s.Locale,
		"ingested_at":           s.IngestedAt.UTC().Format(time.RFC3339),
		PartitionCategoryColumn: s.PartitionCategory(),
	}
}

// SourceFromRow rebuilds a SourceRecord from a lake row.
func SourceFromRow(row map[string]any) SourceRecord {
	return SourceRecord{
		Domain:     rowString(row, "domain"),
		Name:       rowString(row, "name"),
		Category:   rowString(row, "category"),
		Language:   rowString(row, "language"),
		Locale:     rowString(row, "locale"),
		IngestedAt: rowTime(row, "ingested_at"),
	}
}
