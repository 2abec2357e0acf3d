package pipeline

import (
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/newslake/internal/model"
	"github.com/sells-group/newslake/pkg/newsapi"
)

// ParseArticle converts a wire article into an ArticleRecord, validating the
// required fields. A missing uuid, title, or url makes the record malformed.
// Optional fields degrade to zero values and never fail the parse.
func ParseArticle(w newsapi.Article, ingestedAt time.Time) (model.ArticleRecord, error) {
	switch {
	case w.UUID == "":
		return model.ArticleRecord{}, eris.New("parse: article missing uuid")
	case w.Title == "":
		return model.ArticleRecord{}, eris.Errorf("parse: article %s missing title", w.UUID)
	case w.URL == "":
		return model.ArticleRecord{}, eris.Errorf("parse: article %s missing url", w.UUID)
	}

	return model.ArticleRecord{
		UUID:        w.UUID,
		Title:       w.Title,
		Description: w.Description,
		URL:         w.URL,
		PublishedAt: parseWireTime(w.PublishedAt),
		Source:      w.Source,
		Categories:  w.Categories,
		Language:    w.Language,
		Locale:      w.Locale,
		IngestedAt:  ingestedAt,
	}, nil
}

// ParseSource converts a wire source into bronze SourceRecords, one per
// category so each lands in its category partition. A source without
// categories yields a single record with an empty category, which the lake
// layout buckets under the uncategorized partition. A missing domain makes
// the record malformed.
func ParseSource(w newsapi.Source, ingestedAt time.Time) ([]model.SourceRecord, error) {
	if w.Domain == "" {
		return nil, eris.Errorf("parse: source %q missing domain", w.Name)
	}

	categories := w.Categories
	if len(categories) == 0 {
		categories = []string{""}
	}

	records := make([]model.SourceRecord, 0, len(categories))
	for _, cat := range categories {
		records = append(records, model.SourceRecord{
			Domain:     w.Domain,
			Name:       w.Name,
			Category:   cat,
			Language:   w.Language,
			Locale:     w.Locale,
			IngestedAt: ingestedAt,
		})
	}
	return records, nil
}

// parseWireTime accepts the API's RFC3339 timestamps (with or without
// fractional seconds). Anything unparseable becomes the zero time.
func parseWireTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
