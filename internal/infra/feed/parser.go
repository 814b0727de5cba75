// Package feed parses RSS/Atom feeds into normalised Articles and fetches
// them from a source URL with retry and circuit-breaker protection.
package feed

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"catchup-agent/internal/domain/entity"
	"catchup-agent/internal/resilience/circuitbreaker"
	"catchup-agent/internal/resilience/retry"

	"github.com/mmcdole/gofeed"
	"github.com/sony/gobreaker"
)

// Parser decodes raw feed bytes into entity.Article values, resolving the
// description/author/category preference order documented in the data model.
type Parser struct{}

// NewParser returns a Parser. Stateless; safe to share.
func NewParser() *Parser { return &Parser{} }

// ParseFeed maps a parsed gofeed.Feed into an ordered list of Articles tagged
// with the given source label. Entries missing title or link are skipped.
// Malformed documents that partially parse still yield whatever entries gofeed
// recovered.
func (p *Parser) ParseFeed(parsed *gofeed.Feed, source string) []entity.Article {
	if parsed == nil {
		return nil
	}
	articles := make([]entity.Article, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item.Title == "" || item.Link == "" {
			continue
		}
		articles = append(articles, entity.Article{
			Title:       item.Title,
			Link:        item.Link,
			Description: resolveDescription(item),
			PubDate:     item.PublishedParsed,
			Author:      resolveAuthor(item),
			Source:      source,
			Categories:  resolveCategories(item),
		})
	}
	return articles
}

// resolveDescription implements the `summary > description > first content
// value` preference order. gofeed normalises both RSS <description> and Atom
// <summary> into Item.Description, so the remaining preference is Description
// over Content.
func resolveDescription(item *gofeed.Item) string {
	if item.Description != "" {
		return item.Description
	}
	return item.Content
}

// resolveAuthor implements the `author > author/name` preference order.
func resolveAuthor(item *gofeed.Item) string {
	if item.Author != nil && item.Author.Name != "" {
		return item.Author.Name
	}
	if len(item.Authors) > 0 && item.Authors[0].Name != "" {
		return item.Authors[0].Name
	}
	return ""
}

// resolveCategories preserves the order categories appeared in the source document.
func resolveCategories(item *gofeed.Item) []string {
	if len(item.Categories) == 0 {
		return nil
	}
	cats := make([]string, len(item.Categories))
	copy(cats, item.Categories)
	return cats
}

// Fetcher retrieves a single feed over HTTP and parses it, wrapped with retry
// and circuit-breaker protection.
type Fetcher struct {
	client         *http.Client
	parser         *Parser
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
	userAgent      string
}

// NewFetcher builds a Fetcher using the given HTTP client and user agent, with
// the default feed-fetch retry policy.
func NewFetcher(client *http.Client, userAgent string) *Fetcher {
	return NewFetcherWithRetry(client, userAgent, retry.FeedFetchConfig())
}

// NewFetcherWithRetry builds a Fetcher with a caller-supplied retry policy,
// letting the parallel fetcher (C2) drive max_retries/retry_delay from its
// own FetchConfig.
func NewFetcherWithRetry(client *http.Client, userAgent string, retryConfig retry.Config) *Fetcher {
	return &Fetcher{
		client:         client,
		parser:         NewParser(),
		circuitBreaker: circuitbreaker.New(circuitbreaker.FeedFetchConfig()),
		retryConfig:    retryConfig,
		userAgent:      userAgent,
	}
}

// Fetch retrieves and parses the feed at url, returning its label as Source.
// Hard parse errors return an empty slice and the error; partial parses
// still return whatever gofeed recovered even when it also reports an error,
// per the bozo-tolerant contract.
func (f *Fetcher) Fetch(ctx context.Context, name, url string) ([]entity.Article, error) {
	var articles []entity.Article

	retryErr := retry.WithBackoff(ctx, f.retryConfig, func() error {
		result, err := f.circuitBreaker.Execute(func() (interface{}, error) {
			return f.doFetch(ctx, name, url)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				slog.Warn("feed fetch circuit breaker open, request rejected",
					slog.String("url", url),
					slog.String("state", f.circuitBreaker.State().String()))
			}
			return err
		}
		articles = result.([]entity.Article)
		return nil
	})
	if retryErr != nil {
		return nil, retryErr
	}
	return articles, nil
}

func (f *Fetcher) doFetch(ctx context.Context, name, url string) ([]entity.Article, error) {
	fp := gofeed.NewParser()
	fp.UserAgent = f.userAgent
	fp.Client = f.client

	parsed, err := fp.ParseURLWithContext(url, ctx)
	if parsed == nil {
		if err != nil {
			return nil, err
		}
		return nil, errors.New("empty feed response")
	}
	// gofeed reports malformed-but-partial documents through err while still
	// returning whatever it recovered; prefer the partial result.
	articles := f.parser.ParseFeed(parsed, name)
	if err != nil && len(articles) == 0 {
		return nil, err
	}
	return articles, nil
}
