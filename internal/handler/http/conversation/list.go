package conversation

import (
	"net/http"
	"strconv"

	"catchup-agent/internal/common/pagination"
	"catchup-agent/internal/domain/entity"
	"catchup-agent/internal/handler/http/respond"
	"catchup-agent/internal/handler/http/visitor"
	"catchup-agent/internal/repository"
	convUC "catchup-agent/internal/usecase/conversation"
)

// ListHandler serves GET /conversations?skip&limit&conversation_type. The
// endpoint is offset-based rather than page-based, so only PaginationCfg's
// DefaultLimit/MaxLimit bounds are reused; Page/DefaultPage don't apply.
type ListHandler struct {
	Svc           *convUC.Service
	PaginationCfg pagination.Config
}

func (h ListHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	cfg := h.PaginationCfg
	if cfg.MaxLimit == 0 {
		cfg = pagination.DefaultConfig()
	}
	q := r.URL.Query()

	skip, err := parseNonNegativeInt(q.Get("skip"), 0)
	if err != nil {
		respond.SafeError(w, http.StatusUnprocessableEntity, &entity.ValidationError{Field: "skip", Message: "must be a non-negative integer"})
		return
	}
	limit, err := parseNonNegativeInt(q.Get("limit"), cfg.DefaultLimit)
	if err != nil || limit > cfg.MaxLimit {
		respond.SafeError(w, http.StatusUnprocessableEntity, &entity.ValidationError{Field: "limit", Message: "must be a non-negative integer within the configured maximum"})
		return
	}

	convType := entity.ConversationType(q.Get("conversation_type"))
	if convType != "" && convType != entity.ConversationChat && convType != entity.ConversationAgent {
		respond.SafeError(w, http.StatusUnprocessableEntity, &entity.ValidationError{Field: "conversation_type", Message: "must be \"chat\" or \"agent\""})
		return
	}

	conversations, err := h.Svc.List(r.Context(), visitor.FromContext(r.Context()), repository.ConversationListFilter{
		Type:   convType,
		Offset: skip,
		Limit:  limit,
	})
	if err != nil {
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}
	respond.JSON(w, http.StatusOK, toDTOList(conversations))
}

func parseNonNegativeInt(raw string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, entity.ErrInvalidInput
	}
	return n, nil
}
