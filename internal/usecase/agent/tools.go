package agent

import (
	"context"
	"errors"
	"sort"
	"strings"

	"catchup-agent/internal/domain/entity"
)

// defaultMaxArticles and defaultTopK mirror the tool argument defaults named
// in the RSS tool contracts: filter_rss_news defaults to 50/10, the others
// follow the same "50 unless told otherwise" convention.
const (
	defaultMaxArticles = 50
	defaultTopK        = 10
	maxRelevanceScore  = 10
)

// ArtifactReader loads the most recently materialised RSS artifact. Satisfied
// by ingest.ReadArtifact bound to a fixed path.
type ArtifactReader func() (entity.Artifact, error)

// RegisterRSSTools wires fetch_rss_news, filter_rss_news, and
// search_rss_by_keywords into registry, all backed by readArtifact.
func RegisterRSSTools(registry *Registry, readArtifact ArtifactReader) {
	registry.Register(
		"fetch_rss_news",
		"Fetch the latest cached RSS articles across all configured sources.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"max_articles":  map[string]any{"type": "integer", "description": "Maximum number of articles to return"},
				"sources_limit": map[string]any{"type": "integer", "description": "Maximum number of distinct sources to include"},
			},
		},
		fetchRSSNewsHandler(readArtifact),
	)

	registry.Register(
		"filter_rss_news",
		"Search cached RSS articles by a free-text query, ranked by relevance.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query":        map[string]any{"type": "string", "description": "Free-text search query"},
				"max_articles": map[string]any{"type": "integer", "description": "Maximum number of articles to consider, default 50"},
				"top_k":        map[string]any{"type": "integer", "description": "Maximum number of ranked results to return, default 10"},
			},
			"required": []string{"query"},
		},
		filterRSSNewsHandler(readArtifact),
	)

	registry.Register(
		"search_rss_by_keywords",
		"Return every cached RSS article whose title or description contains any of the given keywords.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"keywords":     map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				"max_articles": map[string]any{"type": "integer", "description": "Maximum number of articles to consider, default 50"},
			},
			"required": []string{"keywords"},
		},
		searchRSSByKeywordsHandler(readArtifact),
	)
}

func fetchRSSNewsHandler(readArtifact ArtifactReader) entity.ToolHandler {
	return func(ctx context.Context, arguments map[string]any) (any, error) {
		artifact, err := readArtifact()
		if err != nil {
			if errors.Is(err, entity.ErrCacheMissing) {
				return map[string]any{
					"success": false,
					"note":    "RSS cache has not been generated yet; the scheduled materialisation job must run first.",
				}, nil
			}
			return nil, err
		}

		maxArticles := intArg(arguments, "max_articles", defaultMaxArticles)
		sourcesLimit := intArg(arguments, "sources_limit", 0)

		articles := artifact.Articles
		if sourcesLimit > 0 {
			articles = limitBySources(articles, sourcesLimit)
		}
		articles = capArticles(articles, maxArticles)

		return map[string]any{
			"success": true,
			"summary": map[string]any{
				"total_sources":      artifact.Summary.TotalSources,
				"successful_sources": artifact.Summary.SuccessfulSources,
				"failed_sources":     artifact.Summary.FailedSources,
				"total_articles":     artifact.Summary.TotalArticles,
				"generated_at":       artifact.Summary.GeneratedAt,
				"status_message":     statusMessage(artifact.Summary),
			},
			"articles": articles,
			"note":     "",
		}, nil
	}
}

func statusMessage(summary entity.ArtifactSummary) string {
	if summary.FailedSources == 0 {
		return "all sources fetched successfully"
	}
	return "some sources failed to fetch; results may be incomplete"
}

// rankedArticle is an Article annotated with its relevance score for
// filter_rss_news's response shape.
type rankedArticle struct {
	entity.Article
	RelevanceScore  int    `json:"relevance_score"`
	RelevanceReason string `json:"relevance_reason"`
}

func filterRSSNewsHandler(readArtifact ArtifactReader) entity.ToolHandler {
	return func(ctx context.Context, arguments map[string]any) (any, error) {
		query, _ := arguments["query"].(string)
		if strings.TrimSpace(query) == "" {
			return map[string]any{"success": false, "note": "query is required"}, nil
		}

		artifact, err := readArtifact()
		if err != nil {
			if errors.Is(err, entity.ErrCacheMissing) {
				return map[string]any{"success": false, "note": "RSS cache has not been generated yet."}, nil
			}
			return nil, err
		}

		maxArticles := intArg(arguments, "max_articles", defaultMaxArticles)
		topK := intArg(arguments, "top_k", defaultTopK)

		candidates := capArticles(artifact.Articles, maxArticles)
		tokens := tokenize(query)

		ranked := make([]rankedArticle, 0, len(candidates))
		for _, a := range candidates {
			score := scoreArticle(a, tokens)
			if score <= 0 {
				continue
			}
			if score > maxRelevanceScore {
				score = maxRelevanceScore
			}
			ranked = append(ranked, rankedArticle{
				Article:         a,
				RelevanceScore:  score,
				RelevanceReason: "keyword matches in title and description",
			})
		}

		sort.SliceStable(ranked, func(i, j int) bool {
			return ranked[i].RelevanceScore > ranked[j].RelevanceScore
		})
		if topK > 0 && len(ranked) > topK {
			ranked = ranked[:topK]
		}

		return map[string]any{
			"success":  true,
			"query":    query,
			"articles": ranked,
		}, nil
	}
}

func searchRSSByKeywordsHandler(readArtifact ArtifactReader) entity.ToolHandler {
	return func(ctx context.Context, arguments map[string]any) (any, error) {
		keywords := stringSliceArg(arguments, "keywords")
		if len(keywords) == 0 {
			return map[string]any{"success": false, "note": "keywords is required"}, nil
		}

		artifact, err := readArtifact()
		if err != nil {
			if errors.Is(err, entity.ErrCacheMissing) {
				return map[string]any{"success": false, "note": "RSS cache has not been generated yet."}, nil
			}
			return nil, err
		}

		maxArticles := intArg(arguments, "max_articles", defaultMaxArticles)
		candidates := capArticles(artifact.Articles, maxArticles)

		lowerKeywords := make([]string, len(keywords))
		for i, k := range keywords {
			lowerKeywords[i] = strings.ToLower(k)
		}

		matches := make([]entity.Article, 0, len(candidates))
		for _, a := range candidates {
			if matchesAnyKeyword(a, lowerKeywords) {
				matches = append(matches, a)
			}
		}

		return map[string]any{
			"success":  true,
			"keywords": keywords,
			"articles": matches,
		}, nil
	}
}

// scoreArticle computes 3*(title contains token) + 1*(description contains
// token) over the lowercased fields, summed across every query token. Each
// token contributes at most once per field regardless of how many times it
// occurs there.
func scoreArticle(a entity.Article, tokens []string) int {
	title := strings.ToLower(a.Title)
	description := strings.ToLower(a.Description)

	score := 0
	for _, tok := range tokens {
		if tok == "" {
			continue
		}
		if strings.Contains(title, tok) {
			score += 3
		}
		if strings.Contains(description, tok) {
			score++
		}
	}
	return score
}

func matchesAnyKeyword(a entity.Article, lowerKeywords []string) bool {
	title := strings.ToLower(a.Title)
	description := strings.ToLower(a.Description)
	for _, k := range lowerKeywords {
		if k == "" {
			continue
		}
		if strings.Contains(title, k) || strings.Contains(description, k) {
			return true
		}
	}
	return false
}

func tokenize(query string) []string {
	return strings.Fields(strings.ToLower(query))
}

func capArticles(articles []entity.Article, max int) []entity.Article {
	if max > 0 && len(articles) > max {
		return articles[:max]
	}
	return articles
}

func limitBySources(articles []entity.Article, limit int) []entity.Article {
	seen := make(map[string]bool, limit)
	out := make([]entity.Article, 0, len(articles))
	for _, a := range articles {
		if !seen[a.Source] {
			if len(seen) >= limit {
				continue
			}
			seen[a.Source] = true
		}
		out = append(out, a)
	}
	return out
}

func intArg(arguments map[string]any, key string, def int) int {
	v, ok := arguments[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return def
	}
}

func stringSliceArg(arguments map[string]any, key string) []string {
	v, ok := arguments[key]
	if !ok {
		return nil
	}
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
