package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"catchup-agent/internal/domain/entity"
	"catchup-agent/internal/handler/http/respond"
	"catchup-agent/internal/handler/http/stream"
	"catchup-agent/internal/handler/http/visitor"
	"catchup-agent/internal/infra/llm"
	"catchup-agent/internal/usecase/agent"
	convUC "catchup-agent/internal/usecase/conversation"
)

// StreamHandler drives one chat turn through the agent loop and renders it
// as an SSE response. The conversation ID comes from the path; the turn's
// message body is the request JSON per spec.
type StreamHandler struct {
	Svc     *convUC.Service
	Loop    *agent.Loop
	LLMOpts llm.Options
	Logger  *slog.Logger
}

func (h StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		respond.SafeError(w, http.StatusUnprocessableEntity, errors.New("invalid id"))
		return
	}

	var req struct {
		Message         string `json:"message"`
		ThinkingEnabled bool   `json:"thinking_enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.SafeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	if req.Message == "" {
		respond.SafeError(w, http.StatusUnprocessableEntity, &entity.ValidationError{Field: "message", Message: "is required"})
		return
	}

	visitorID := visitor.FromContext(r.Context())
	if _, err := h.Svc.Get(r.Context(), id, visitorID); errors.Is(err, entity.ErrNotFound) {
		respond.SafeError(w, http.StatusNotFound, errors.New("not found or access denied"))
		return
	} else if err != nil {
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}

	history, err := h.Svc.History(r.Context(), id, visitorID)
	if err != nil {
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}

	if _, err := h.Svc.AppendMessage(r.Context(), id, visitorID, entity.RoleUser, req.Message, false); err != nil {
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}
	history = append(history, llm.Message{Role: llm.RoleUser, Content: req.Message})

	ctx, cancel := context.WithTimeout(r.Context(), defaultStreamTimeout)
	defer cancel()

	events := h.Loop.Run(ctx, history, h.LLMOpts)

	var assistantText, thinkingText string
	relay := make(chan agent.Event)
	go func() {
		defer close(relay)
		for ev := range events {
			switch ev.Kind {
			case agent.EventDelta:
				assistantText += ev.Text
			case agent.EventThinking:
				thinkingText += ev.Text
			}
			relay <- ev
		}
	}()

	if err := stream.Serve(w, relay); err != nil {
		h.Logger.Warn("chat stream ended early", slog.Int64("conversation_id", id), slog.Any("error", err))
		return
	}

	content := entity.EncodeContent(assistantText, thinkingText, req.ThinkingEnabled)
	if _, err := h.Svc.AppendMessage(context.Background(), id, visitorID, entity.RoleAssistant, content, req.ThinkingEnabled); err != nil {
		h.Logger.Error("failed to persist assistant turn", slog.Int64("conversation_id", id), slog.Any("error", err))
	}
}
