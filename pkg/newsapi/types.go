package newsapi

import "time"

// Article is the wire representation of one article from the top-stories
// endpoint. Fields pass through unvalidated; the strict parse into the
// pipeline's record types happens downstream.
type Article struct {
	UUID        string   `json:"uuid"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Snippet     string   `json:"snippet"`
	URL         string   `json:"url"`
	ImageURL    string   `json:"image_url"`
	Language    string   `json:"language"`
	PublishedAt string   `json:"published_at"`
	Source      string   `json:"source"`
	Categories  []string `json:"categories"`
	Locale      string   `json:"locale"`
}

// Source is the wire representation of one source from the sources endpoint.
type Source struct {
	SourceID   string   `json:"source_id"`
	Domain     string   `json:"domain"`
	Name       string   `json:"name"`
	Language   string   `json:"language"`
	Locale     string   `json:"locale"`
	Categories []string `json:"categories"`
}

// TopStoriesOptions filters the top-stories request.
type TopStoriesOptions struct {
	Locale   string
	Language string
	Limit    int
}

// SourcesOptions filters the sources request. Language and locale must match
// the article extraction's filters so both streams describe the same corpus.
type SourcesOptions struct {
	Language string
	Locale   string
}

// TopStoriesResult holds extracted articles plus extraction metadata.
type TopStoriesResult struct {
	Articles  []Article
	FetchedAt time.Time
}

// SourcesResult holds extracted sources plus extraction metadata.
type SourcesResult struct {
	Sources   []Source
	FetchedAt time.Time
}

type articlesEnvelope struct {
	Data []Article `json:"data"`
}

type sourcesEnvelope struct {
	Data []Source `json:"data"`
}
