// Package stream renders an agent run onto an HTTP response as a
// server-sent-event stream: one frame per usecase/agent.Event, flushed
// immediately so a browser EventSource sees tokens as they arrive.
package stream

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"catchup-agent/internal/usecase/agent"
)

// frame is the wire shape of a single SSE data payload. Kind mirrors
// agent.EventKind one-for-one so the frontend can switch on it directly.
type frame struct {
	Kind          string         `json:"type"`
	Content       string         `json:"content,omitempty"`
	ToolName      string         `json:"tool_name,omitempty"`
	ToolArguments map[string]any `json:"tool_arguments,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// Serve drains events until the channel closes, writing one SSE frame per
// event. It returns an error if the ResponseWriter does not support
// flushing, since without it the client would see nothing until the
// entire response body was buffered.
func Serve(w http.ResponseWriter, events <-chan agent.Event) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return fmt.Errorf("stream: response writer does not support flushing")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for ev := range events {
		if err := writeFrame(w, toFrame(ev)); err != nil {
			slog.Warn("stream: failed to write frame", slog.Any("error", err))
			return err
		}
		flusher.Flush()
	}
	return nil
}

func toFrame(ev agent.Event) frame {
	f := frame{Kind: string(ev.Kind)}

	switch ev.Kind {
	case agent.EventThinking, agent.EventDelta:
		f.Content = ev.Text
	case agent.EventToolCall:
		f.ToolName = ev.ToolName
		f.ToolArguments = ev.ToolArgs
		f.Content = fmt.Sprintf("Calling %s…", ev.ToolName)
	case agent.EventToolResult:
		f.ToolName = ev.ToolName
		f.Content = resultToString(ev.Result)
		if ev.IsError {
			f.Metadata = map[string]any{"error": true}
		}
	case agent.EventDone:
		if ev.SoftLimit {
			f.Metadata = map[string]any{"soft_limit": true}
		}
	case agent.EventError:
		if ev.Err != nil {
			f.Content = ev.Err.Error()
		}
	}
	return f
}

func resultToString(result any) string {
	if s, ok := result.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", result)
}

func writeFrame(w http.ResponseWriter, f frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", f.Kind, data); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}
