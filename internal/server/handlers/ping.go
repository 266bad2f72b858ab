package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ThatCatDev/tanrenai/estimator/internal/handler"
	"github.com/ThatCatDev/tanrenai/estimator/internal/logging"
	"github.com/ThatCatDev/tanrenai/estimator/pkg/api"
)

// PingHandler handles GET /ping.
type PingHandler struct {
	Handler handler.Handler
	Timeout time.Duration
	Log     logrus.FieldLogger
}

func (h *PingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.Timeout)
		defer cancel()
	}

	log := logging.OrDiscard(h.Log)
	if err := h.Handler.Ping(ctx); err != nil {
		log.WithError(err).Warn("ping failed")
		writeError(w, r, log, http.StatusServiceUnavailable, "handler_unavailable", err.Error())
		return
	}
	writeJSON(w, log, http.StatusOK, api.PingResponse{Status: "ok"})
}
