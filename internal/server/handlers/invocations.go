package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ThatCatDev/tanrenai/estimator/internal/handler"
	"github.com/ThatCatDev/tanrenai/estimator/internal/logging"
)

// InvocationsHandler handles POST /invocations.
type InvocationsHandler struct {
	Handler         handler.Handler
	MaxPayloadBytes int64
	Timeout         time.Duration
	Log             logrus.FieldLogger
}

func (h *InvocationsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := logging.OrDiscard(h.Log).WithField("request_id", RequestID(r.Context()))

	body, err := h.readBody(w, r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, log, http.StatusRequestEntityTooLarge, "payload_too_large",
				fmt.Sprintf("payload exceeds %d bytes", tooLarge.Limit))
			return
		}
		writeError(w, r, log, http.StatusBadRequest, "invalid_request", "failed to read request body: "+err.Error())
		return
	}

	ctx := r.Context()
	if h.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.Timeout)
		defer cancel()
	}

	resp, err := h.Handler.Invoke(ctx, &handler.Request{
		ID:          RequestID(r.Context()),
		ContentType: r.Header.Get("Content-Type"),
		Accept:      r.Header.Get("Accept"),
		Body:        body,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			log.WithError(err).Warn("invocation timed out")
			writeError(w, r, log, http.StatusGatewayTimeout, "timeout", fmt.Sprintf("handler did not answer within %s", h.Timeout))
			return
		}
		log.WithError(err).Error("invocation failed")
		writeError(w, r, log, http.StatusInternalServerError, "handler_error", err.Error())
		return
	}

	status := resp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	if resp.ContentType != "" {
		w.Header().Set("Content-Type", resp.ContentType)
	}
	w.WriteHeader(status)
	if _, err := w.Write(resp.Body); err != nil {
		log.WithError(err).Debug("write response")
	}
}

func (h *InvocationsHandler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	reader := io.Reader(r.Body)
	if h.MaxPayloadBytes > 0 {
		reader = http.MaxBytesReader(w, r.Body, h.MaxPayloadBytes)
	}
	return io.ReadAll(reader)
}
