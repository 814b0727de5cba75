package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"catchup-agent/internal/domain/entity"
	"catchup-agent/internal/observability/metrics"
)

// epochSentinel orders articles with an unparseable or missing pub_date
// after every article that has one, without needing a separate nil check
// at every comparison site.
var epochSentinel = time.Unix(0, 0).UTC()

// MaterialiseConfig bounds a single cache materialisation run.
type MaterialiseConfig struct {
	Sources      []Source
	FetchConfig  FetchConfig
	MaxArticles  int           // K, default 200
	ArtifactPath string        // well-known destination path
	Timeout      time.Duration // hard wall-clock cap for the on-demand path
}

// DefaultMaterialiseConfig fills in the non-source fields with production defaults.
func DefaultMaterialiseConfig(artifactPath string) MaterialiseConfig {
	return MaterialiseConfig{
		FetchConfig:  DefaultFetchConfig(),
		MaxArticles:  200,
		ArtifactPath: artifactPath,
		Timeout:      60 * time.Second,
	}
}

// Materialiser runs C2 against the configured sources and atomically rewrites
// the RSS artifact consumed by the serving path (C5).
type Materialiser struct {
	fetchService *FetchService
}

// NewMaterialiser builds a Materialiser bound to a FetchService.
func NewMaterialiser(fetchService *FetchService) *Materialiser {
	return &Materialiser{fetchService: fetchService}
}

// Run executes one materialisation pass: fetch every source, rank and cap the
// union of successful articles, and atomically replace the artifact file.
// It never blocks past ctx's deadline; callers that need a hard wall-clock
// limit should pass a context built with RunWithTimeout instead.
func (m *Materialiser) Run(ctx context.Context, cfg MaterialiseConfig) error {
	start := time.Now()

	aggregated := m.fetchService.FetchAll(ctx, cfg.Sources, cfg.FetchConfig)

	articles := aggregated.SuccessfulArticles()
	sortByPubDateDesc(articles)
	if max := cfg.MaxArticles; max > 0 && len(articles) > max {
		articles = articles[:max]
	}

	artifact := entity.Artifact{
		Summary: entity.ArtifactSummary{
			TotalSources:      aggregated.TotalSources,
			SuccessfulSources: aggregated.SuccessfulSources,
			FailedSources:     aggregated.FailedSources,
			TotalArticles:     len(articles),
			GeneratedAt:       time.Now().UTC(),
		},
		Articles: articles,
	}

	if err := writeArtifactAtomically(cfg.ArtifactPath, artifact); err != nil {
		metrics.RecordCacheMaterialise("failure", time.Since(start))
		return fmt.Errorf("write artifact: %w", err)
	}

	metrics.RecordCacheMaterialise("success", time.Since(start))
	slog.Info("rss cache materialised",
		slog.Int("total_sources", artifact.Summary.TotalSources),
		slog.Int("successful_sources", artifact.Summary.SuccessfulSources),
		slog.Int("total_articles", artifact.Summary.TotalArticles),
		slog.Duration("took", time.Since(start)))
	return nil
}

// RunOnDemand runs one materialisation pass bounded by cfg.Timeout. Exceeding
// the deadline yields entity.ErrMaterialiseTimeout as a distinguished failure
// kind, separate from any other materialisation error.
func (m *Materialiser) RunOnDemand(ctx context.Context, cfg MaterialiseConfig) error {
	start := time.Now()

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- m.Run(runCtx, cfg) }()

	select {
	case err := <-done:
		if runCtx.Err() != nil {
			metrics.RecordCacheMaterialise("timeout", time.Since(start))
			return entity.ErrMaterialiseTimeout
		}
		return err
	case <-runCtx.Done():
		metrics.RecordCacheMaterialise("timeout", time.Since(start))
		return entity.ErrMaterialiseTimeout
	}
}

// sortByPubDateDesc orders articles by parsed pub_date descending; articles
// with no parseable date sort last, stable relative to their original order.
func sortByPubDateDesc(articles []entity.Article) {
	sort.SliceStable(articles, func(i, j int) bool {
		return pubDateOrSentinel(articles[i]).After(pubDateOrSentinel(articles[j]))
	})
}

func pubDateOrSentinel(a entity.Article) time.Time {
	if a.PubDate == nil {
		return epochSentinel
	}
	return *a.PubDate
}

// writeArtifactAtomically serialises artifact to JSON and replaces dest via a
// temp-file-then-rename in the same directory, so readers never observe a
// partially written file.
func writeArtifactAtomically(dest string, artifact entity.Artifact) error {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".artifact-*.json.tmp")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	enc := json.NewEncoder(tmp)
	if err := enc.Encode(artifact); err != nil {
		tmp.Close()
		return fmt.Errorf("encode artifact: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp artifact: %w", err)
	}

	return os.Rename(tmpPath, dest)
}

// ReadArtifact loads the most recently materialised artifact from path.
// It returns entity.ErrCacheMissing if the file has not been generated yet.
func ReadArtifact(path string) (entity.Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return entity.Artifact{}, entity.ErrCacheMissing
		}
		return entity.Artifact{}, fmt.Errorf("read artifact: %w", err)
	}

	var artifact entity.Artifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return entity.Artifact{}, fmt.Errorf("decode artifact: %w", err)
	}
	return artifact, nil
}
