package conversation

import (
	"log/slog"
	"net/http"
	"time"

	"catchup-agent/internal/common/pagination"
	"catchup-agent/internal/infra/llm"
	"catchup-agent/internal/usecase/agent"
	convUC "catchup-agent/internal/usecase/conversation"
)

// Register wires conversation, message, and streaming chat routes onto mux.
// visitor.Middleware must already be in the handler chain above mux so that
// visitor.FromContext has a value by the time these handlers run.
func Register(mux *http.ServeMux, svc *convUC.Service, loop *agent.Loop, llmOpts llm.Options, paginationCfg pagination.Config, logger *slog.Logger) {
	mux.Handle("POST   /conversations", CreateHandler{Svc: svc})
	mux.Handle("GET    /conversations", ListHandler{Svc: svc, PaginationCfg: paginationCfg})
	mux.Handle("GET    /conversations/", GetHandler{Svc: svc})
	mux.Handle("DELETE /conversations/", DeleteHandler{Svc: svc})
	mux.Handle("PUT    /conversations/{id}/title", UpdateTitleHandler{Svc: svc})
	mux.Handle("POST   /conversations/{id}/generate-title", GenerateTitleHandler{Svc: svc})
	mux.Handle("GET    /conversations/{id}/messages", MessagesHandler{Svc: svc})
	mux.Handle("POST   /conversations/{id}/stream", StreamHandler{Svc: svc, Loop: loop, LLMOpts: llmOpts, Logger: logger})
}

// defaultStreamTimeout bounds a single chat turn so a stalled provider
// cannot hold a connection (and its goroutine) open indefinitely.
const defaultStreamTimeout = 2 * time.Minute
