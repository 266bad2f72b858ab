package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/ThatCatDev/tanrenai/estimator/internal/logging"
	"github.com/ThatCatDev/tanrenai/estimator/pkg/api"
)

// RequestIDHeader carries the per-request id in both directions.
const RequestIDHeader = "X-Request-Id"

type requestIDKey struct{}

// WithRequestID stores id in ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the id stored by WithRequestID, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// writeJSON sends v as the response body. The status line is already out
// when encoding fails, so the error is only logged.
func writeJSON(w http.ResponseWriter, log logrus.FieldLogger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.OrDiscard(log).WithError(err).Debug("write response")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, log logrus.FieldLogger, status int, errType, message string) {
	writeJSON(w, log, status, api.ErrorResponse{
		Error: api.ErrorDetail{
			Message:   message,
			Type:      errType,
			RequestID: RequestID(r.Context()),
		},
	})
}
