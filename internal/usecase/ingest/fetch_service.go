// Package ingest implements the parallel feed fetcher (C2) and the daily
// cache materialiser (C3) that together keep the RSS artifact fresh.
package ingest

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"catchup-agent/internal/domain/entity"
	"catchup-agent/internal/observability/metrics"
	"catchup-agent/internal/resilience/retry"
	"catchup-agent/internal/usecase/fetch"

	"golang.org/x/sync/errgroup"
)

// Source names one configured RSS feed.
type Source struct {
	Name string
	URL  string
}

// FetchConfig bounds a parallel fetch batch.
type FetchConfig struct {
	MaxWorkers int
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
	UserAgent  string
}

// DefaultFetchConfig returns sane defaults for a production batch.
func DefaultFetchConfig() FetchConfig {
	return FetchConfig{
		MaxWorkers: 10,
		Timeout:    15 * time.Second,
		MaxRetries: 3,
		RetryDelay: 2 * time.Second,
		UserAgent:  "catchup-agent/1.0",
	}
}

func (c FetchConfig) retryConfig() retry.Config {
	return retry.Config{
		MaxAttempts:    c.MaxRetries + 1,
		InitialDelay:   c.RetryDelay,
		MaxDelay:       30 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
	}
}

// FeedFetcher retrieves and parses one feed. Satisfied by *feed.Fetcher.
type FeedFetcher interface {
	Fetch(ctx context.Context, name, url string) ([]entity.Article, error)
}

// FetcherFactory builds a FeedFetcher bound to a particular retry policy and
// HTTP client; this lets FetchService honour a caller-supplied FetchConfig
// without hardwiring a single global retry preset.
type FetcherFactory func(client *http.Client, userAgent string, retryCfg retry.Config) FeedFetcher

// FetchService runs a parallel batch fetch across many sources (C2).
type FetchService struct {
	httpClient       *http.Client
	newFetcher       FetcherFactory
	contentFetcher   fetch.ContentFetcher
	contentThreshold int
}

// NewFetchService builds a FetchService. contentFetcher may be nil to disable
// content enrichment (§4.12).
func NewFetchService(httpClient *http.Client, newFetcher FetcherFactory, contentFetcher fetch.ContentFetcher, contentThreshold int) *FetchService {
	return &FetchService{
		httpClient:       httpClient,
		newFetcher:       newFetcher,
		contentFetcher:   contentFetcher,
		contentThreshold: contentThreshold,
	}
}

// FetchAll retrieves every source concurrently, bounded by cfg.MaxWorkers.
// Every source yields exactly one FetchOutcome regardless of success; no
// single source failure aborts the batch.
func (s *FetchService) FetchAll(ctx context.Context, sources []Source, cfg FetchConfig) entity.AggregatedResult {
	outcomes := make([]entity.FetchOutcome, len(sources))
	sem := make(chan struct{}, max(cfg.MaxWorkers, 1))
	eg, egCtx := errgroup.WithContext(ctx)

	fetcher := s.newFetcher(s.httpClient, cfg.UserAgent, cfg.retryConfig())

	for i, src := range sources {
		i, src := i, src
		eg.Go(func() error {
			outcomes[i] = s.fetchOne(egCtx, fetcher, src, cfg.Timeout, sem)
			return nil
		})
	}
	// errgroup.Go's functions never return an error here; every failure is
	// captured per-source in the outcome instead of aborting the batch.
	_ = eg.Wait()

	return aggregate(outcomes)
}

// fetchOne holds one sem slot for the feed fetch itself, then releases it
// before enrich acquires slots from the same pool — so the feed-fetch and
// content-enrichment stages never hold two slots at once per source, and
// total concurrent outbound requests across both stages stays bounded to
// the pool's capacity instead of multiplying.
func (s *FetchService) fetchOne(ctx context.Context, fetcher FeedFetcher, src Source, timeout time.Duration, sem chan struct{}) entity.FetchOutcome {
	fetchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	sem <- struct{}{}
	start := time.Now()
	articles, err := fetcher.Fetch(fetchCtx, src.Name, src.URL)
	<-sem
	if err != nil {
		metrics.RecordFeedCrawlError(src.Name, "fetch_failed")
		slog.Warn("feed fetch failed",
			slog.String("source", src.Name),
			slog.String("url", src.URL),
			slog.Any("error", err))
		return entity.FetchOutcome{
			URL:       src.URL,
			Success:   false,
			Error:     err.Error(),
			FetchTime: time.Now(),
		}
	}

	s.enrich(ctx, articles, sem)

	metrics.RecordFeedCrawl(src.Name, time.Since(start), int64(len(articles)))
	return entity.FetchOutcome{
		URL:       src.URL,
		Success:   true,
		Articles:  articles,
		FetchTime: time.Now(),
	}
}

// enrich attempts to replace any article's short description with a fetched
// full-article body, per §4.12 content enrichment. It never returns an error;
// failures silently keep the RSS description. sem is the same pool FetchAll
// bounds its per-source fetches with, so enrichment fetches draw from the
// same budget rather than a separate one layered on top of it.
func (s *FetchService) enrich(ctx context.Context, articles []entity.Article, sem chan struct{}) {
	if s.contentFetcher == nil {
		return
	}
	var wg sync.WaitGroup
	for i := range articles {
		if len(articles[i].Description) >= s.contentThreshold {
			continue
		}
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			full, err := s.contentFetcher.FetchContent(ctx, articles[i].Link)
			if err != nil || len(full) <= len(articles[i].Description) {
				return
			}
			articles[i].Description = full
		}()
	}
	wg.Wait()
}

func aggregate(outcomes []entity.FetchOutcome) entity.AggregatedResult {
	result := entity.AggregatedResult{
		TotalSources: len(outcomes),
		Outcomes:     outcomes,
		FetchTime:    time.Now(),
	}
	for _, o := range outcomes {
		if o.Success {
			result.SuccessfulSources++
			result.TotalArticles += len(o.Articles)
		} else {
			result.FailedSources++
		}
	}
	return result
}
