package cmd

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jfelder/chronicle-harvester/internal/batch"
	"github.com/jfelder/chronicle-harvester/internal/cache"
	cachefs "github.com/jfelder/chronicle-harvester/internal/cache/fs"
	cachegcs "github.com/jfelder/chronicle-harvester/internal/cache/gcs"
	cachemem "github.com/jfelder/chronicle-harvester/internal/cache/memory"
	"github.com/jfelder/chronicle-harvester/internal/catalog"
	"github.com/jfelder/chronicle-harvester/internal/fetcher"
	"github.com/jfelder/chronicle-harvester/internal/progress"
	"github.com/jfelder/chronicle-harvester/internal/progress/sinks"
	"github.com/jfelder/chronicle-harvester/internal/ratelimit"
)

// app assembles the long-lived services a command needs. Exactly one limiter
// and one cache handle exist per process; everything downstream receives
// them by injection.
type app struct {
	limiter      *ratelimit.Limiter
	store        cache.Cache
	searcher     *catalog.Searcher
	fetcher      *fetcher.Fetcher
	orchestrator *batch.Orchestrator
	hub          *progress.Hub
}

// newApp builds the component graph from the loaded config. It fails fast if
// any service cannot be initialized.
func newApp(ctx context.Context) (*app, error) {
	limiter := ratelimit.New(ratelimit.Config{
		Requests: cfg.RateLimit.Requests,
		Period:   cfg.RatePeriod(),
	})

	store, err := buildCache(ctx)
	if err != nil {
		return nil, err
	}

	searcher, err := catalog.New(limiter, catalog.Config{
		SearchBaseURL: cfg.Archive.SearchURL,
		MediaType:     cfg.Archive.MediaType,
		Timeout:       cfg.Timeout(),
		Retry:         cfg.RetryPolicy(),
		UserAgent:     cfg.Archive.UserAgent,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("build catalog searcher: %w", err)
	}

	itemFetcher, err := fetcher.New(limiter, store, fetcher.Config{
		DownloadBaseURL: cfg.Archive.DownloadURL,
		Timeout:         cfg.Timeout(),
		Retry:           cfg.RetryPolicy(),
		UserAgent:       cfg.Archive.UserAgent,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("build item fetcher: %w", err)
	}

	hub, err := buildHub(ctx)
	if err != nil {
		return nil, err
	}

	orchestrator, err := batch.New(itemFetcher, cfg.Batch.Workers, hub, logger)
	if err != nil {
		return nil, fmt.Errorf("build orchestrator: %w", err)
	}

	return &app{
		limiter:      limiter,
		store:        store,
		searcher:     searcher,
		fetcher:      itemFetcher,
		orchestrator: orchestrator,
		hub:          hub,
	}, nil
}

// close flushes the progress hub; sinks flush and close behind it.
func (a *app) close(ctx context.Context) {
	if err := a.hub.Close(ctx); err != nil {
		logger.Warn("progress hub close failed")
	}
}

func buildCache(ctx context.Context) (cache.Cache, error) {
	switch cfg.Cache.Backend {
	case "fs":
		store, err := cachefs.New(cachefs.Config{BaseDir: cfg.Cache.Dir})
		if err != nil {
			return nil, fmt.Errorf("build fs cache: %w", err)
		}
		return store, nil
	case "gcs":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create gcs client: %w", err)
		}
		store, err := cachegcs.New(client, cachegcs.Config{
			Bucket: cfg.Cache.Bucket,
			Prefix: cfg.Cache.Prefix,
		})
		if err != nil {
			return nil, fmt.Errorf("build gcs cache: %w", err)
		}
		return store, nil
	case "memory":
		return cachemem.New(), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
}

// buildHub wires the configured progress sinks. The hub itself is always
// created so the orchestrator can emit unconditionally.
func buildHub(ctx context.Context) (*progress.Hub, error) {
	var sinkList []progress.Sink

	if cfg.Progress.LogEvents {
		sinkList = append(sinkList, sinks.NewLogSink(logger))
	}

	promSink, err := sinks.NewPrometheusSink(prometheus.DefaultRegisterer)
	if err != nil {
		return nil, fmt.Errorf("build prometheus sink: %w", err)
	}
	sinkList = append(sinkList, promSink)

	if cfg.Progress.DSN != "" {
		storeSink, err := sinks.NewStoreSink(ctx, cfg.Progress.DSN, logger)
		if err != nil {
			return nil, fmt.Errorf("build store sink: %w", err)
		}
		sinkList = append(sinkList, storeSink)
	}

	if cfg.Progress.PubSubProject != "" && cfg.Progress.PubSubTopic != "" {
		psSink, err := sinks.NewPubSubSink(ctx, cfg.Progress.PubSubProject, cfg.Progress.PubSubTopic)
		if err != nil {
			return nil, fmt.Errorf("build pubsub sink: %w", err)
		}
		sinkList = append(sinkList, psSink)
	}

	return progress.NewHub(progress.Config{Logger: logger}, sinkList...), nil
}
