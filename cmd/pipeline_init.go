package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/newslake/internal/pipeline"
	"github.com/sells-group/newslake/internal/resilience"
	"github.com/sells-group/newslake/internal/store"
	"github.com/sells-group/newslake/pkg/newsapi"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return store.NewSQLite(cfg.Store.Path)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

type pipelineEnv struct {
	Pipeline *pipeline.Pipeline
	Store    store.Store
}

func (e *pipelineEnv) Close() {
	_ = e.Store.Close()
}

// initPipeline sets up the store, the API client, and the lake tables.
// Callers should defer env.Close().
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	if err := cfg.Validate("run"); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	client := newsapi.NewClient(cfg.API.Token,
		newsapi.WithBaseURL(cfg.API.BaseURL),
		newsapi.WithRateLimit(cfg.API.RateLimitRPS, cfg.API.RateLimitBurst),
		newsapi.WithRetry(resilience.FromConfig(cfg.API.MaxAttempts, cfg.API.InitialBackoffMs, cfg.API.MaxBackoffMs)),
	)

	p, err := pipeline.New(client, st, pipeline.Options{
		LakeRoot: cfg.Lake.Root,
		Extract: pipeline.ExtractOptions{
			Locale:   cfg.Extract.Locale,
			Language: cfg.Extract.Language,
			Limit:    cfg.Extract.Limit,
		},
	})
	if err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "open lake tables")
	}

	return &pipelineEnv{Pipeline: p, Store: st}, nil
}
