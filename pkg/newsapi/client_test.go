package newsapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/newslake/internal/resilience"
)

func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2,
	}
}

func TestTopStories(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/news/top", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "us", r.URL.Query().Get("locale"))
		assert.Equal(t, "en", r.URL.Query().Get("language"))
		assert.Equal(t, "3", r.URL.Query().Get("limit"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"meta": {"found": 1, "returned": 1, "limit": 3, "page": 1},
			"data": [{
				"uuid": "a1b2",
				"title": "Markets rally",
				"description": "Stocks climbed.",
				"url": "https://news.example.com/markets",
				"published_at": "2026-08-29T09:00:00.000000Z",
				"source": "example.com",
				"categories": ["business"],
				"language": "en",
				"locale": "us"
			}]
		}`))
	}))
	defer srv.Close()

	c := NewClient("test-token", WithBaseURL(srv.URL), WithRetry(fastRetry()))
	res, err := c.TopStories(context.Background(), TopStoriesOptions{Locale: "us", Language: "en", Limit: 3})
	require.NoError(t, err)
	require.Len(t, res.Articles, 1)
	assert.Equal(t, "a1b2", res.Articles[0].UUID)
	assert.Equal(t, "Markets rally", res.Articles[0].Title)
	assert.Equal(t, []string{"business"}, res.Articles[0].Categories)
	assert.False(t, res.FetchedAt.IsZero())
}

func TestSources_CarriesLocaleFilters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/news/sources", r.URL.Path)
		assert.Equal(t, "en", r.URL.Query().Get("language"))
		assert.Equal(t, "us", r.URL.Query().Get("locale"))
		_, _ = w.Write([]byte(`{"data": [{"source_id": "ex", "domain": "news.example.com", "language": "en", "locale": "us", "categories": ["tech"]}]}`))
	}))
	defer srv.Close()

	c := NewClient("t", WithBaseURL(srv.URL), WithRetry(fastRetry()))
	res, err := c.Sources(context.Background(), SourcesOptions{Language: "en", Locale: "us"})
	require.NoError(t, err)
	require.Len(t, res.Sources, 1)
	assert.Equal(t, "news.example.com", res.Sources[0].Domain)
}

func TestClient_RetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"data": []}`))
	}))
	defer srv.Close()

	c := NewClient("t", WithBaseURL(srv.URL), WithRetry(fastRetry()))
	res, err := c.TopStories(context.Background(), TopStoriesOptions{})
	require.NoError(t, err)
	assert.Empty(t, res.Articles)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_DoesNotRetryClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient("bad", WithBaseURL(srv.URL), WithRetry(fastRetry()))
	_, err := c.TopStories(context.Background(), TopStoriesOptions{})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_ExhaustedRetriesSurfaceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient("t", WithBaseURL(srv.URL), WithRetry(fastRetry()))
	_, err := c.Sources(context.Background(), SourcesOptions{})
	require.Error(t, err)
}

func TestClient_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	c := NewClient("t", WithBaseURL(srv.URL), WithRetry(fastRetry()))
	_, err := c.TopStories(context.Background(), TopStoriesOptions{})
	require.Error(t, err)
}
