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

type UpdateTitleHandler struct{ Svc *convUC.Service }

func (h UpdateTitleHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		respond.SafeError(w, http.StatusUnprocessableEntity, errors.New("invalid id"))
		return
	}

	var req struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.SafeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	if req.Title == "" {
		respond.SafeError(w, http.StatusUnprocessableEntity, &entity.ValidationError{Field: "title", Message: "is required"})
		return
	}

	err = h.Svc.UpdateTitle(r.Context(), id, visitor.FromContext(r.Context()), req.Title)
	if errors.Is(err, entity.ErrNotFound) {
		respond.SafeError(w, http.StatusNotFound, errors.New("not found or access denied"))
		return
	}
	if err != nil {
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
