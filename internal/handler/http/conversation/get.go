package conversation

import (
	"errors"
	"net/http"

	"catchup-agent/internal/domain/entity"
	"catchup-agent/internal/handler/http/pathutil"
	"catchup-agent/internal/handler/http/respond"
	"catchup-agent/internal/handler/http/visitor"
	convUC "catchup-agent/internal/usecase/conversation"
)

type GetHandler struct{ Svc *convUC.Service }

func (h GetHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, err := pathutil.ExtractID(r.URL.Path, "/conversations/")
	if err != nil {
		respond.SafeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	conv, err := h.Svc.Get(r.Context(), id, visitor.FromContext(r.Context()))
	if errors.Is(err, entity.ErrNotFound) {
		respond.SafeError(w, http.StatusNotFound, errors.New("not found or access denied"))
		return
	}
	if err != nil {
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}
	respond.JSON(w, http.StatusOK, toDTO(conv))
}
