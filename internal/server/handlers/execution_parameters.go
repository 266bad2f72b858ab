package handlers

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/ThatCatDev/tanrenai/estimator/pkg/api"
)

// ExecutionParametersHandler handles GET /execution-parameters.
type ExecutionParametersHandler struct {
	Params api.ExecutionParameters
	Log    logrus.FieldLogger
}

func (h *ExecutionParametersHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.Log, http.StatusOK, h.Params)
}
