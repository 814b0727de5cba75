package http

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"catchup-agent/internal/handler/http/requestid"
	"catchup-agent/internal/handler/http/respond"
	"catchup-agent/internal/handler/http/responsewriter"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// Logging returns middleware that logs HTTP requests with structured logging.
// It captures request details, response status, size, and processing duration.
// The middleware also extracts and logs the trace ID from the OpenTelemetry span context
// to enable correlation between logs and distributed traces.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Wrap ResponseWriter to record status code and size
			wrapped := responsewriter.Wrap(w)

			// Process request
			next.ServeHTTP(wrapped, r)

			// Extract request ID
			reqID := requestid.FromContext(r.Context())

			// Extract trace ID from OpenTelemetry span context
			span := trace.SpanFromContext(r.Context())
			traceID := span.SpanContext().TraceID().String()

			// Calculate processing duration
			duration := time.Since(start)

			// Log request completion with structured fields
			logger.Info("request completed",
				slog.String("request_id", reqID),
				slog.String("trace_id", traceID),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("query", r.URL.RawQuery),
				slog.String("remote_addr", r.RemoteAddr),
				slog.String("user_agent", r.Header.Get("User-Agent")),
				slog.Int("status", wrapped.StatusCode()),
				slog.Int("bytes", wrapped.BytesWritten()),
				slog.Duration("duration", duration),
				slog.String("duration_ms", fmt.Sprintf("%.2f", duration.Seconds()*1000)),
			)
		})
	}
}

// Recover returns middleware that catches panics and logs them with structured logging.
// It prevents the server from crashing and returns a 500 Internal Server Error response.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					// リクエストID を取得
					reqID := requestid.FromContext(r.Context())

					// スタックトレースを取得
					stack := string(debug.Stack())

					// エラーレスポンスを返す
					respond.SafeError(
						w,
						http.StatusInternalServerError,
						fmt.Errorf("internal error"),
					)

					// 構造化ログで記録
					logger.Error("panic recovered",
						slog.String("request_id", reqID),
						slog.String("method", r.Method),
						slog.String("path", r.URL.Path),
						slog.Any("panic", rec),
						slog.String("stack", stack),
					)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// LimitRequestBody returns middleware that limits the size of request bodies to prevent DoS attacks.
func LimitRequestBody(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// visitorLimiter pairs a token-bucket limiter with the time it was last touched,
// so periodicCleanup can evict visitors that have gone idle.
type visitorLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// VisitorThrottle rate-limits requests per visitor (rather than per IP) using a
// token-bucket per key. One bucket is created lazily on first use and reused
// for the visitor's lifetime; idle buckets are evicted periodically.
type VisitorThrottle struct {
	mu        sync.Mutex
	visitors  map[string]*visitorLimiter
	rate      rate.Limit
	burst     int
	lastClean time.Time
	idleAfter time.Duration
}

// NewVisitorThrottle creates a token-bucket throttle allowing `r` requests per
// second per visitor, with bursts up to `burst`.
func NewVisitorThrottle(r rate.Limit, burst int) *VisitorThrottle {
	return &VisitorThrottle{
		visitors:  make(map[string]*visitorLimiter),
		rate:      r,
		burst:     burst,
		lastClean: time.Now(),
		idleAfter: 10 * time.Minute,
	}
}

// KeyFunc extracts the throttle key (visitor tag, falling back to IP) from a request.
type KeyFunc func(r *http.Request) string

// Limit applies per-visitor throttling. keyFn determines the bucket key for a
// request; if it returns "", the client IP is used instead.
func (t *VisitorThrottle) Limit(keyFn KeyFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFn(r)
			if key == "" {
				key = extractIP(r)
			}

			t.periodicCleanup()

			if !t.allow(key) {
				respond.SafeError(w, http.StatusTooManyRequests, fmt.Errorf("rate limit exceeded"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (t *VisitorThrottle) allow(key string) bool {
	t.mu.Lock()
	v, ok := t.visitors[key]
	if !ok {
		v = &visitorLimiter{limiter: rate.NewLimiter(t.rate, t.burst)}
		t.visitors[key] = v
	}
	v.lastSeen = time.Now()
	t.mu.Unlock()

	return v.limiter.Allow()
}

// periodicCleanup evicts visitor buckets that have been idle past idleAfter.
func (t *VisitorThrottle) periodicCleanup() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if time.Since(t.lastClean) < t.idleAfter {
		return
	}
	t.lastClean = time.Now()

	cutoff := time.Now().Add(-t.idleAfter)
	for key, v := range t.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(t.visitors, key)
		}
	}
}

// extractIP extracts the client IP address from the HTTP request.
// It checks X-Forwarded-For and X-Real-IP headers before falling back to RemoteAddr.
func extractIP(r *http.Request) string {
	// X-Forwarded-For ヘッダーを優先（リバースプロキシ経由の場合）
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// 最初のIPアドレスを使用（クライアントのIP）
		if ip := parseFirstIP(xff); ip != "" {
			return ip
		}
	}

	// X-Real-IP ヘッダーを確認
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		if ip := net.ParseIP(xri); ip != nil {
			return ip.String()
		}
	}

	// RemoteAddr から取得（最後の手段）
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// parseFirstIP parses the first IP address from a comma-separated list.
func parseFirstIP(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == ',' {
			ip := net.ParseIP(s[:i])
			if ip != nil {
				return ip.String()
			}
			return ""
		}
	}
	// カンマがない場合は全体をパース
	if ip := net.ParseIP(s); ip != nil {
		return ip.String()
	}
	return ""
}
