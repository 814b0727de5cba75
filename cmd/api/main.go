package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"catchup-agent/internal/common/pagination"
	"catchup-agent/internal/domain/entity"
	pgRepo "catchup-agent/internal/infra/adapter/persistence/postgres"
	"catchup-agent/internal/infra/db"
	"catchup-agent/internal/infra/feed"
	"catchup-agent/internal/infra/fetcher"
	"catchup-agent/internal/infra/llm"

	hhttp "catchup-agent/internal/handler/http"
	"catchup-agent/internal/handler/http/conversation"
	"catchup-agent/internal/handler/http/middleware"
	"catchup-agent/internal/handler/http/requestid"
	"catchup-agent/internal/handler/http/rsscache"
	"catchup-agent/internal/handler/http/visitor"
	"catchup-agent/internal/observability/logging"
	"catchup-agent/internal/observability/tracing"

	appconfig "catchup-agent/internal/pkg/config"
	"catchup-agent/internal/resilience/retry"
	"catchup-agent/internal/usecase/agent"
	convUC "catchup-agent/internal/usecase/conversation"
	"catchup-agent/internal/usecase/ingest"

	"golang.org/x/time/rate"
)

func main() {
	logger := initLogger()

	cfg, err := appconfig.LoadAppConfigFromEnv()
	if err != nil {
		logger.Error("failed to load app configuration", slog.Any("error", err))
		os.Exit(1)
	}

	database := db.Open()
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}()
	if err := db.MigrateUp(database); err != nil {
		logger.Error("failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}

	gateway, err := llm.BuildGatewayFromEnv()
	if err != nil {
		logger.Error("failed to configure LLM gateway", slog.Any("error", err))
		os.Exit(1)
	}

	convStore := pgRepo.NewConversationRepo(database)
	titleCache := llm.NewCachingClient(gateway, 256, 10*time.Minute)
	convSvc := convUC.NewService(convStore, titleCache, cfg.MaxHistoryMessages)

	registry := agent.NewRegistry()
	agent.RegisterRSSTools(registry, func() (entity.Artifact, error) { return ingest.ReadArtifact(cfg.ArtifactPath) })
	agent.RegisterDocumentTools(registry)
	loop := agent.NewLoop(gateway, registry, systemPrompt)

	llmOpts := llm.Options{
		Temperature: cfg.LLMTemperature,
		MaxTokens:   cfg.LLMMaxTokens,
		Timeout:     cfg.LLMRequestTimeout,
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
	materialiseCfg := ingest.DefaultMaterialiseConfig(cfg.ArtifactPath)
	materialiseCfg.Sources = loadRSSSources()
	materialiseCfg.Timeout = cfg.LLMRequestTimeout

	mux := http.NewServeMux()

	mux.Handle("GET /health", &hhttp.HealthHandler{DB: database, Version: getVersion()})
	mux.Handle("GET /ready", &hhttp.ReadyHandler{DB: database})
	mux.Handle("GET /live", &hhttp.LiveHandler{})
	mux.Handle("GET /metrics", hhttp.MetricsHandler())

	conversation.Register(mux, convSvc, loop, llmOpts, pagination.LoadFromEnv(), logger)
	rsscache.Register(mux, materialiser, materialiseCfg, logger)

	corsCfg, err := middleware.LoadCORSConfig()
	if err != nil {
		logger.Warn("CORS configuration not set, falling back to configured origins", slog.Any("error", err))
		corsCfg = &middleware.CORSConfig{AllowedOrigins: cfg.CORSAllowedOrigins}
	}

	throttle := middleware.NewVisitorThrottle(rate.Limit(5), 10)

	var handler http.Handler = mux
	handler = throttle.Limit(func(r *http.Request) string { return visitor.FromContext(r.Context()) })(handler)
	handler = visitor.Middleware(cfg.VisitorCookieSecure)(handler)
	handler = hhttp.LimitRequestBody(cfg.MaxUploadBytes)(handler)
	handler = hhttp.MetricsMiddleware(handler)
	handler = hhttp.Logging(logger)(handler)
	handler = hhttp.Recover(logger)(handler)
	handler = middleware.CORS(*corsCfg)(handler)
	handler = tracing.Middleware(handler)
	handler = requestid.Middleware(handler)

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // streaming chat responses can run long; bounded per-request instead
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("api server listening", slog.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("api server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
	}
}

const systemPrompt = `You are the catch-up agent: you help a visitor get caught up on the news ` +
	`in their configured RSS feeds and answer questions about documents they've uploaded. ` +
	`Use the available tools rather than guessing at article contents.`

func initLogger() *slog.Logger {
	logger := logging.NewLogger()
	slog.SetDefault(logger)
	return logger
}

func getVersion() string {
	if v := os.Getenv("APP_VERSION"); v != "" {
		return v
	}
	return "dev"
}

// loadRSSSources parses RSS_SOURCES as a comma-separated "name=url" list.
// An empty or malformed entry is skipped rather than failing startup, since
// a single bad feed shouldn't keep the whole agent from booting.
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
