// Package rsscache exposes the on-demand RSS cache materialisation trigger
// (C2 run outside its normal schedule) over HTTP.
package rsscache

import (
	"errors"
	"log/slog"
	"net/http"

	"catchup-agent/internal/domain/entity"
	"catchup-agent/internal/handler/http/respond"
	"catchup-agent/internal/usecase/ingest"
)

// GenerateHandler runs one materialisation pass synchronously, bounded by
// cfg.Timeout, and reports its outcome.
type GenerateHandler struct {
	Materialiser *ingest.Materialiser
	Config       ingest.MaterialiseConfig
	Logger       *slog.Logger
}

func (h GenerateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	err := h.Materialiser.RunOnDemand(r.Context(), h.Config)
	if errors.Is(err, entity.ErrMaterialiseTimeout) {
		respond.SafeError(w, http.StatusGatewayTimeout, err)
		return
	}
	if err != nil {
		h.Logger.Error("on-demand rss cache generation failed", slog.Any("error", err))
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Register wires the generate endpoint onto mux.
func Register(mux *http.ServeMux, materialiser *ingest.Materialiser, cfg ingest.MaterialiseConfig, logger *slog.Logger) {
	mux.Handle("POST   /agent/rss-cache/generate", GenerateHandler{Materialiser: materialiser, Config: cfg, Logger: logger})
}
