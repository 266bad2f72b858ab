package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ThatCatDev/tanrenai/estimator/internal/server/handlers"
	"github.com/ThatCatDev/tanrenai/estimator/pkg/api"
)

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.Handle("GET /ping", &handlers.PingHandler{
		Handler: s.handler,
		Timeout: s.cfg.Timeout(),
		Log:     s.log,
	})
	mux.Handle("POST /invocations", &handlers.InvocationsHandler{
		Handler:         s.handler,
		MaxPayloadBytes: s.cfg.MaxPayloadBytes(),
		Timeout:         s.cfg.Timeout(),
		Log:             s.log,
	})
	mux.Handle("GET /execution-parameters", &handlers.ExecutionParametersHandler{
		Params: api.ExecutionParameters{
			MaxConcurrentTransforms: s.cfg.MaxConcurrentTransforms,
			BatchStrategy:           "MULTI_RECORD",
			MaxPayloadInMB:          s.cfg.MaxPayloadMB,
		},
		Log: s.log,
	})
}

// statusRecorder captures the status code for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(handlers.RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(handlers.RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(handlers.WithRequestID(r.Context(), id)))
	})
}

func withLogging(log logrus.FieldLogger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		entry := log.WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     rec.status,
			"elapsed":    time.Since(start).Round(time.Microsecond),
			"request_id": handlers.RequestID(r.Context()),
		})
		// Health probes arrive every few seconds; keep them out of info logs.
		if r.URL.Path == "/ping" {
			entry.Debug("request")
			return
		}
		entry.Info("request")
	})
}
