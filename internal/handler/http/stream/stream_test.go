package stream

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"catchup-agent/internal/usecase/agent"
)

func TestServe_WritesFramesInOrder(t *testing.T) {
	events := make(chan agent.Event, 4)
	events <- agent.Event{Kind: agent.EventDelta, Text: "hello"}
	events <- agent.Event{Kind: agent.EventToolCall, ToolName: "fetch_rss_news", ToolID: "call_1"}
	events <- agent.Event{Kind: agent.EventToolResult, ToolName: "fetch_rss_news", ToolID: "call_1", Result: "ok"}
	events <- agent.Event{Kind: agent.EventDone}
	close(events)

	rec := httptest.NewRecorder()
	if err := Serve(rec, events); err != nil {
		t.Fatalf("Serve err=%v", err)
	}

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}
	if cc := rec.Header().Get("Cache-Control"); cc != "no-cache" {
		t.Errorf("Cache-Control = %q, want no-cache", cc)
	}

	body := rec.Body.String()
	for _, want := range []string{"event: delta", "event: tool_call", "event: tool_result", "event: done"} {
		if !strings.Contains(body, want) {
			t.Errorf("missing %q in body:\n%s", want, body)
		}
	}

	deltaPos := strings.Index(body, "event: delta")
	donePos := strings.Index(body, "event: done")
	if deltaPos < 0 || donePos < 0 || deltaPos > donePos {
		t.Errorf("expected delta before done, body:\n%s", body)
	}
}

func TestServe_ErrorEventCarriesMessage(t *testing.T) {
	events := make(chan agent.Event, 1)
	events <- agent.Event{Kind: agent.EventError, Err: errTest("provider timeout")}
	close(events)

	rec := httptest.NewRecorder()
	if err := Serve(rec, events); err != nil {
		t.Fatalf("Serve err=%v", err)
	}

	body := rec.Body.String()
	if !strings.Contains(body, "event: error") || !strings.Contains(body, "provider timeout") {
		t.Errorf("missing error frame in body:\n%s", body)
	}
}

func TestServe_NoFlusher(t *testing.T) {
	events := make(chan agent.Event)
	close(events)

	w := &nonFlusher{header: http.Header{}}
	if err := Serve(w, events); err == nil {
		t.Fatal("expected error for non-flusher ResponseWriter")
	}
}

type errTest string

func (e errTest) Error() string { return string(e) }

// nonFlusher is a ResponseWriter that does not implement http.Flusher.
type nonFlusher struct {
	header http.Header
}

func (n *nonFlusher) Header() http.Header         { return n.header }
func (n *nonFlusher) Write(b []byte) (int, error) { return len(b), nil }
func (n *nonFlusher) WriteHeader(int)             {}
