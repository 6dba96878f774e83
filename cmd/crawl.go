package cmd

import (
	"context"
	"fmt"
	"time"

	gstorage "cloud.google.com/go/storage"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/footdata/understat-crawler/internal/clock/system"
	"github.com/footdata/understat-crawler/internal/config"
	"github.com/footdata/understat-crawler/internal/crawl"
	"github.com/footdata/understat-crawler/internal/extract"
	collyfetcher "github.com/footdata/understat-crawler/internal/fetcher/colly"
	"github.com/footdata/understat-crawler/internal/fetcher/throttle"
	"github.com/footdata/understat-crawler/internal/logging"
	"github.com/footdata/understat-crawler/internal/ops"
	"github.com/footdata/understat-crawler/internal/pipeline"
	"github.com/footdata/understat-crawler/internal/policy/ratelimit"
	"github.com/footdata/understat-crawler/internal/progress"
	"github.com/footdata/understat-crawler/internal/progress/sinks"
	"github.com/footdata/understat-crawler/internal/stage"
	"github.com/footdata/understat-crawler/internal/storage/gcs"
	"github.com/footdata/understat-crawler/internal/storage/local"
	"github.com/footdata/understat-crawler/internal/storage/memory"
)

func newCrawlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crawl",
		Short: "Runs one full crawl",
		Long: `Fetches every configured league/season page, derives the team, player,
and match identities they reference, and crawls those pages in bounded
concurrent batches. Each page's extracted JSON is persisted to the
configured blob store.`,
		RunE: runCrawl,
	}
}

func runCrawl(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	runID, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generate run id: %w", err)
	}
	logger.Info("starting crawl",
		zap.String("run_id", runID.String()),
		zap.Strings("leagues", cfg.Crawler.Leagues),
		zap.Strings("seasons", cfg.Crawler.Seasons),
		zap.Int("batch_size", cfg.Crawler.BatchSize),
	)

	registry := prometheus.NewRegistry()
	promSink, err := sinks.NewPrometheusSink(registry)
	if err != nil {
		return err
	}
	hub := progress.NewHub(progress.Config{Logger: logger}, sinks.NewLogSink(logger), promSink)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := hub.Close(closeCtx); err != nil {
			logger.Warn("progress hub close failed", zap.Error(err))
		}
	}()

	store, err := buildBlobStore(ctx, cfg)
	if err != nil {
		return err
	}

	if cfg.Server.Enabled {
		srv := ops.NewServer(ops.Config{Port: cfg.Server.Port}, ops.Router(registry), logger)
		srv.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("ops server shutdown failed", zap.Error(err))
			}
		}()
	}

	clk := system.New()
	transport := collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.Crawler.UserAgent,
		Timeout:   cfg.Timeout(),
	})
	limiter := ratelimit.New(ratelimit.Config{
		RPS:   cfg.Crawler.RateLimitRPS,
		Burst: cfg.Crawler.RateLimitBurst,
	})
	fetcher := throttle.New(transport, throttle.Policy{
		Sentinel:        cfg.Throttle.Sentinel,
		MinDelaySeconds: cfg.Throttle.MinDelaySeconds,
		MaxDelaySeconds: cfg.Throttle.MaxDelaySeconds,
		MaxAttempts:     cfg.Throttle.MaxAttempts,
	}, clk, limiter, hub, runID, logger)

	driver := stage.NewDriver(
		stage.Config{BaseURL: cfg.Crawler.BaseURL, RunID: runID},
		fetcher,
		extract.New(),
		store,
		clk,
		hub,
		logger,
	)
	pipe, err := pipeline.New(driver, pipeline.Config{
		Leagues:   cfg.Crawler.Leagues,
		Seasons:   cfg.Seasons(),
		BatchSize: cfg.Crawler.BatchSize,
		RunID:     runID,
	}, clk, hub, logger)
	if err != nil {
		return err
	}

	if err := pipe.Run(ctx); err != nil {
		return fmt.Errorf("crawl run %s: %w", runID, err)
	}
	logger.Info("crawl finished", zap.String("run_id", runID.String()))
	return nil
}

func buildBlobStore(ctx context.Context, cfg config.Config) (crawl.BlobStore, error) {
	switch cfg.Storage.Provider {
	case config.ProviderLocal:
		store, err := local.New(local.Config{RootDir: cfg.Storage.RootDir})
		if err != nil {
			return nil, fmt.Errorf("init local storage: %w", err)
		}
		return store, nil
	case config.ProviderMemory:
		return memory.NewBlobStore(), nil
	case config.ProviderGCS:
		client, err := gstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("init gcs client: %w", err)
		}
		store, err := gcs.New(client, gcs.Config{Bucket: cfg.Storage.GCSBucket})
		if err != nil {
			return nil, fmt.Errorf("init gcs storage: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.Storage.Provider)
	}
}
