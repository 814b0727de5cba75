package http

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// TestMetricsMiddleware_PathNormalization tests that the metrics middleware
// properly normalizes paths to prevent cardinality explosion.
func TestMetricsMiddleware_PathNormalization(t *testing.T) {
	handler := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}))

	tests := []struct {
		name string
		path string
	}{
		{name: "conversation with ID should be normalized", path: "/conversations/123"},
		{name: "static endpoint should remain unchanged", path: "/health"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.path, nil)
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			if w.Code != http.StatusOK {
				t.Errorf("Expected status 200, got %d", w.Code)
			}
			// Verifying actual Prometheus label values is covered by
			// pathutil/normalize_test.go; this test just ensures the
			// middleware doesn't panic or swallow the response.
		})
	}
}

// TestMetricsMiddleware_StatusCodes tests that different status codes flow through.
func TestMetricsMiddleware_StatusCodes(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
	}{
		{"success 200", http.StatusOK},
		{"created 201", http.StatusCreated},
		{"bad request 400", http.StatusBadRequest},
		{"not found 404", http.StatusNotFound},
		{"server error 500", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
			}))

			req := httptest.NewRequest("GET", "/conversations/123", nil)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.statusCode {
				t.Errorf("Expected status %d, got %d", tt.statusCode, w.Code)
			}
		})
	}
}

// TestMetricsMiddleware_RequestSize tests that a request with a body doesn't break the middleware.
func TestMetricsMiddleware_RequestSize(t *testing.T) {
	handler := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusOK)
	}))

	body := strings.NewReader(`{"title":"New chat"}`)
	req := httptest.NewRequest("POST", "/conversations", body)
	req.Header.Set("Content-Type", "application/json")
	req.ContentLength = int64(body.Len())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
}

// TestMetricsMiddleware_ResponseSize tests that response bytes pass through untouched.
func TestMetricsMiddleware_ResponseSize(t *testing.T) {
	responseBody := []byte(`{"id":123,"title":"New chat"}`)

	handler := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(responseBody)
	}))

	req := httptest.NewRequest("GET", "/conversations/123", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Body.Len() != len(responseBody) {
		t.Errorf("Expected response size %d, got %d", len(responseBody), w.Body.Len())
	}
}

// TestResponseWriter tests the custom responseWriter wrapper.
func TestResponseWriter(t *testing.T) {
	w := httptest.NewRecorder()
	rw := &responseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}

	rw.WriteHeader(http.StatusCreated)
	if rw.statusCode != http.StatusCreated {
		t.Errorf("Expected status code %d, got %d", http.StatusCreated, rw.statusCode)
	}

	data := []byte("test response")
	n, err := rw.Write(data)
	if err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
	if n != len(data) {
		t.Errorf("Expected to write %d bytes, wrote %d", len(data), n)
	}
	if rw.size != len(data) {
		t.Errorf("Expected size %d, got %d", len(data), rw.size)
	}
}

// TestMetricsMiddleware_Integration exercises a handful of representative routes end to end.
func TestMetricsMiddleware_Integration(t *testing.T) {
	handler := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}))

	testRequests := []struct {
		method string
		path   string
	}{
		{"GET", "/conversations/123"},
		{"GET", "/conversations/456"},
		{"GET", "/health"},
		{"GET", "/metrics"},
	}

	for _, tr := range testRequests {
		req := httptest.NewRequest(tr.method, tr.path, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("Request %s %s failed with status %d", tr.method, tr.path, rec.Code)
		}
	}
}

// BenchmarkMetricsMiddleware benchmarks the complete middleware with normalization.
func BenchmarkMetricsMiddleware(b *testing.B) {
	handler := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	paths := []string{
		"/conversations/123",
		"/health",
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		path := paths[i%len(paths)]
		req := httptest.NewRequest("GET", path, nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
	}
}

func TestMetricsHandler(t *testing.T) {
	handler := MetricsHandler()

	if handler == nil {
		t.Fatal("MetricsHandler() returned nil")
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status OK; got %v", rr.Code)
	}

	body := rr.Body.String()
	if body == "" {
		t.Error("metrics endpoint returned empty body")
	}
}
