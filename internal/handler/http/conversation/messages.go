package conversation

import (
	"errors"
	"net/http"
	"strconv"

	"catchup-agent/internal/domain/entity"
	"catchup-agent/internal/handler/http/respond"
	"catchup-agent/internal/handler/http/visitor"
	convUC "catchup-agent/internal/usecase/conversation"
)

type MessagesHandler struct{ Svc *convUC.Service }

func (h MessagesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		respond.SafeError(w, http.StatusUnprocessableEntity, errors.New("invalid id"))
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

	messages, err := h.Svc.Messages(r.Context(), id, visitorID)
	if err != nil {
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}
	respond.JSON(w, http.StatusOK, toMessageDTOList(messages))
}
