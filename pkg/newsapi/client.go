// Package newsapi provides a client for The News API top-stories and
// sources endpoints.
package newsapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/newslake/internal/resilience"
)

// DefaultBaseURL is the production API root.
const DefaultBaseURL = "https://api.thenewsapi.com/v1"

// Client defines The News API operations used by the pipeline.
type Client interface {
	// TopStories fetches the current top stories.
	TopStories(ctx context.Context, opts TopStoriesOptions) (*TopStoriesResult, error)
	// Sources fetches the source catalog.
	Sources(ctx context.Context, opts SourcesOptions) (*SourcesResult, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(baseURL string) Option {
	return func(c *httpClient) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.hc = hc
	}
}

// WithRetry overrides the retry configuration.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

// WithRateLimit sets the request rate limit.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *httpClient) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

type httpClient struct {
	token   string
	baseURL string
	hc      *http.Client
	retry   resilience.RetryConfig
	limiter *rate.Limiter
}

// NewClient creates a News API client with a bounded request timeout,
// a rate limiter, and bounded retries on transient failures.
func NewClient(token string, opts ...Option) Client {
	c := &httpClient{
		token:   token,
		baseURL: DefaultBaseURL,
		hc:      &http.Client{Timeout: 30 * time.Second},
		retry:   resilience.DefaultRetryConfig(),
		limiter: rate.NewLimiter(2, 2),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) TopStories(ctx context.Context, opts TopStoriesOptions) (*TopStoriesResult, error) {
	params := url.Values{}
	if opts.Locale != "" {
		params.Set("locale", opts.Locale)
	}
	if opts.Language != "" {
		params.Set("language", opts.Language)
	}
	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(opts.Limit))
	}

	var env articlesEnvelope
	if err := c.get(ctx, "/news/top", params, &env); err != nil {
		return nil, eris.Wrap(err, "newsapi: top stories")
	}
	return &TopStoriesResult{Articles: env.Data, FetchedAt: time.Now().UTC()}, nil
}

func (c *httpClient) Sources(ctx context.Context, opts SourcesOptions) (*SourcesResult, error) {
	params := url.Values{}
	if opts.Language != "" {
		params.Set("language", opts.Language)
	}
	if opts.Locale != "" {
		params.Set("locale", opts.Locale)
	}

	var env sourcesEnvelope
	if err := c.get(ctx, "/news/sources", params, &env); err != nil {
		return nil, eris.Wrap(err, "newsapi: sources")
	}
	return &SourcesResult{Sources: env.Data, FetchedAt: time.Now().UTC()}, nil
}

// get performs an authenticated GET with rate limiting and retry, decoding
// the response body into out.
func (c *httpClient) get(ctx context.Context, path string, params url.Values, out any) error {
	cfg := c.retry
	if cfg.OnRetry == nil {
		cfg.OnRetry = resilience.RetryLogger("newsapi", path)
	}

	body, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) ([]byte, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "rate limiter wait")
		}
		return c.doOnce(ctx, path, params)
	})
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrapf(err, "decode response from %s", path)
	}
	return nil
}

func (c *httpClient) doOnce(ctx context.Context, path string, params url.Values) ([]byte, error) {
	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrapf(err, "build request for %s", path)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "request %s", path)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrapf(err, "read response from %s", path)
	}

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("http %d from %s", resp.StatusCode, path)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	return body, nil
}
