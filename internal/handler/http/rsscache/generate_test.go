package rsscache_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"catchup-agent/internal/handler/http/rsscache"
	"catchup-agent/internal/resilience/retry"
	"catchup-agent/internal/usecase/ingest"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func nopFetcherFactory(client *http.Client, userAgent string, retryCfg retry.Config) ingest.FeedFetcher {
	return nil
}

func TestGenerateHandler_Success(t *testing.T) {
	fetchSvc := ingest.NewFetchService(http.DefaultClient, nopFetcherFactory, nil, 0)
	materialiser := ingest.NewMaterialiser(fetchSvc)
	cfg := ingest.DefaultMaterialiseConfig(filepath.Join(t.TempDir(), "rss-cache.json"))

	h := rsscache.GenerateHandler{Materialiser: materialiser, Config: cfg, Logger: discardLogger()}

	req := httptest.NewRequest(http.MethodPost, "/agent/rss-cache/generate", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", rec.Code, rec.Body.String())
	}
}

func TestGenerateHandler_TimesOut(t *testing.T) {
	fetchSvc := ingest.NewFetchService(http.DefaultClient, nopFetcherFactory, nil, 0)
	materialiser := ingest.NewMaterialiser(fetchSvc)
	cfg := ingest.DefaultMaterialiseConfig(filepath.Join(t.TempDir(), "rss-cache.json"))
	cfg.Timeout = time.Nanosecond

	h := rsscache.GenerateHandler{Materialiser: materialiser, Config: cfg, Logger: discardLogger()}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/agent/rss-cache/generate", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusGatewayTimeout {
		t.Fatalf("status = %d, want 504, body=%s", rec.Code, rec.Body.String())
	}
}
