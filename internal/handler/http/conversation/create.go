package conversation

import (
	"encoding/json"
	"net/http"

	"catchup-agent/internal/domain/entity"
	"catchup-agent/internal/handler/http/respond"
	"catchup-agent/internal/handler/http/visitor"
	convUC "catchup-agent/internal/usecase/conversation"
)

type CreateHandler struct{ Svc *convUC.Service }

func (h CreateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
		Type  string `json:"type"`
	}
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err.Error() != "EOF" {
			respond.SafeError(w, http.StatusUnprocessableEntity, err)
			return
		}
	}

	convType := entity.ConversationType(req.Type)
	if convType != "" && convType != entity.ConversationChat && convType != entity.ConversationAgent {
		respond.SafeError(w, http.StatusUnprocessableEntity, &entity.ValidationError{Field: "type", Message: "must be \"chat\" or \"agent\""})
		return
	}

	conv, err := h.Svc.Create(r.Context(), visitor.FromContext(r.Context()), convType, req.Title)
	if err != nil {
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}
	respond.JSON(w, http.StatusCreated, toDTO(conv))
}
