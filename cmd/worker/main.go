package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"catchup-agent/internal/infra/feed"
	"catchup-agent/internal/infra/fetcher"
	workerPkg "catchup-agent/internal/infra/worker"
	"catchup-agent/internal/observability/logging"
	"catchup-agent/internal/resilience/retry"
	"catchup-agent/internal/usecase/ingest"

	"github.com/robfig/cron/v3"
)

func main() {
	logger := initLogger()

	workerMetrics := workerPkg.NewWorkerMetrics()
	workerMetrics.MustRegister()

	workerConfig, err := workerPkg.LoadConfigFromEnv(logger, workerMetrics)
	if err != nil {
		logger.Error("failed to load worker configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("worker configuration loaded",
		slog.String("cron_schedule", workerConfig.CronSchedule),
		slog.String("timezone", workerConfig.Timezone),
		slog.Duration("crawl_timeout", workerConfig.CrawlTimeout),
		slog.Int("health_port", workerConfig.HealthPort))

	artifactPath := os.Getenv("RSS_ARTIFACT_PATH")
	if artifactPath == "" {
		artifactPath = "data/rss-cache.json"
	}
	sources := loadRSSSources()
	if len(sources) == 0 {
		logger.Warn("no RSS_SOURCES configured, materialisation runs will produce an empty artifact")
	}

	fetchSvc := ingest.NewFetchService(
		&http.Client{Timeout: 15 * time.Second},
		func(client *http.Client, userAgent string, retryCfg retry.Config) ingest.FeedFetcher {
			return feed.NewFetcherWithRetry(client, userAgent, retryCfg)
		},
		fetcher.NewReadabilityFetcher(fetcher.DefaultConfig()),
		280,
	)
	materialiser := ingest.NewMaterialiser(fetchSvc)
	materialiseCfg := ingest.DefaultMaterialiseConfig(artifactPath)
	materialiseCfg.Sources = sources
	materialiseCfg.Timeout = workerConfig.CrawlTimeout

	healthServer := workerPkg.NewHealthServer(":"+strconv.Itoa(workerConfig.HealthPort), logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := healthServer.Start(ctx); err != nil && err != http.ErrServerClosed {
			logger.Error("health server failed", slog.Any("error", err))
		}
	}()

	loc, err := time.LoadLocation(workerConfig.Timezone)
	if err != nil {
		logger.Error("invalid timezone, falling back to UTC", slog.Any("error", err))
		loc = time.UTC
	}

	scheduler := cron.New(cron.WithLocation(loc))
	_, err = scheduler.AddFunc(workerConfig.CronSchedule, func() {
		runMaterialisation(ctx, logger, materialiser, materialiseCfg, workerMetrics)
	})
	if err != nil {
		logger.Error("failed to schedule materialisation job", slog.Any("error", err))
		os.Exit(1)
	}

	scheduler.Start()
	healthServer.SetReady(true)
	logger.Info("worker started", slog.String("cron_schedule", workerConfig.CronSchedule))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down worker")
	healthServer.SetReady(false)
	cancel()

	stopCtx := scheduler.Stop()
	<-stopCtx.Done()
}

func runMaterialisation(ctx context.Context, logger *slog.Logger, m *ingest.Materialiser, cfg ingest.MaterialiseConfig, metrics *workerPkg.WorkerMetrics) {
	start := time.Now()
	err := m.Run(ctx, cfg)
	duration := time.Since(start)
	metrics.RecordJobDuration(duration.Seconds())

	if err != nil {
		metrics.RecordJobRun("failure")
		logger.Error("materialisation run failed", slog.Any("error", err), slog.Duration("duration", duration))
		return
	}
	metrics.RecordJobRun("success")
	metrics.RecordFeedsProcessed(len(cfg.Sources))
	metrics.RecordLastSuccess()
	logger.Info("materialisation run succeeded", slog.Duration("duration", duration))
}

func initLogger() *slog.Logger {
	logger := logging.NewLogger()
	slog.SetDefault(logger)
	return logger
}

// loadRSSSources parses RSS_SOURCES as a comma-separated "name=url" list.
// An empty or malformed entry is skipped rather than failing startup, since
// a single bad feed shouldn't keep the whole worker from booting.
func loadRSSSources() []ingest.Source {
	raw := os.Getenv("RSS_SOURCES")
	if raw == "" {
		return nil
	}
	var sources []ingest.Source
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		name, url, ok := strings.Cut(entry, "=")
		if !ok || name == "" || url == "" {
			continue
		}
		sources = append(sources, ingest.Source{Name: name, URL: url})
	}
	return sources
}
