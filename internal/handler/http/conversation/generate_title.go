package conversation

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"catchup-agent/internal/domain/entity"
	"catchup-agent/internal/handler/http/respond"
	"catchup-agent/internal/handler/http/visitor"
	convUC "catchup-agent/internal/usecase/conversation"
)

type GenerateTitleHandler struct{ Svc *convUC.Service }

// ServeHTTP derives a short title from first_message and persists it onto
// the conversation. GenerateTitle never errors - on LLM failure it falls
// back to a truncated prefix of the message - so the only failure modes
// here are a malformed path/body or an ownership mismatch on persist.
func (h GenerateTitleHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		respond.SafeError(w, http.StatusUnprocessableEntity, errors.New("invalid id"))
		return
	}

	var req struct {
		FirstMessage string `json:"first_message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.SafeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	if req.FirstMessage == "" {
		respond.SafeError(w, http.StatusUnprocessableEntity, &entity.ValidationError{Field: "first_message", Message: "is required"})
		return
	}

	visitorID := visitor.FromContext(r.Context())
	title := h.Svc.GenerateTitle(r.Context(), req.FirstMessage)

	err = h.Svc.UpdateTitle(r.Context(), id, visitorID, title)
	if errors.Is(err, entity.ErrNotFound) {
		respond.SafeError(w, http.StatusNotFound, errors.New("not found or access denied"))
		return
	}
	if err != nil {
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]string{"title": title})
}
