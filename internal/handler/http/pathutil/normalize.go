package pathutil

import (
	"regexp"
	"strings"
)

// PathPattern represents a regex pattern and its corresponding normalized template.
type PathPattern struct {
	Pattern  *regexp.Regexp
	Template string
}

// pathPatterns defines the list of patterns for dynamic routes.
// Patterns are evaluated in order from most specific to least specific.
// Pre-compiled at initialization for optimal performance (<1μs per operation).
var pathPatterns = []*PathPattern{
	// Conversation routes with IDs
	{Pattern: regexp.MustCompile(`^/conversations/\d+$`), Template: "/conversations/:id"},
	{Pattern: regexp.MustCompile(`^/conversations/\d+/messages$`), Template: "/conversations/:id/messages"},
	{Pattern: regexp.MustCompile(`^/conversations/\d+/stream$`), Template: "/conversations/:id/stream"},
}

// NormalizePath normalizes dynamic URL paths to prevent metrics label cardinality explosion.
// It converts paths with IDs (e.g., /articles/123) to template format (e.g., /articles/:id).
// Static paths and search endpoints remain unchanged.
//
// Performance: <1μs per operation (pre-compiled regex patterns)
//
// Examples:
//
//	NormalizePath("/conversations/123")          // "/conversations/:id"
//	NormalizePath("/conversations/123/messages") // "/conversations/:id/messages"
//	NormalizePath("/health")                     // "/health" (unchanged)
//	NormalizePath("/metrics")                    // "/metrics" (unchanged)
//	NormalizePath("/unknown/path/123")           // "/unknown/path/123" (no match, return original)
//
// Query parameters and trailing slashes are handled:
//
//	NormalizePath("/conversations/123?page=1")   // "/conversations/:id"
//	NormalizePath("/conversations/123/")         // "/conversations/:id"
func NormalizePath(path string) string {
	// Strip query parameters if present
	if idx := strings.IndexByte(path, '?'); idx != -1 {
		path = path[:idx]
	}

	// Strip trailing slash if present (except for root path)
	if len(path) > 1 && path[len(path)-1] == '/' {
		path = path[:len(path)-1]
	}

	// Try to match against known patterns
	for _, p := range pathPatterns {
		if p.Pattern.MatchString(path) {
			return p.Template
		}
	}

	// No match found, return original path
	// This is safe - static paths like /health, /metrics, /auth/token
	// and search endpoints like /articles/search will pass through unchanged
	return path
}

// GetExpectedCardinality returns the expected number of unique path labels
// after normalization. This is useful for capacity planning and monitoring.
//
// Expected cardinality calculation:
//   - Static endpoints: ~6-8 (health, metrics, conversations list, etc.)
//   - Template endpoints: ~3 (conversations/:id and its subpaths)
//   - Total: ~10-15 unique path labels
func GetExpectedCardinality() int {
	// Count template patterns
	templateCount := len(pathPatterns)

	// Estimate static endpoints
	staticCount := 6 // /health, /metrics, /conversations, etc.

	// Total expected cardinality
	return templateCount + staticCount
}
