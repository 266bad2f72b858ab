// Package api holds the JSON bodies the model server exchanges with clients.
package api

// PingResponse is returned by GET /ping.
type PingResponse struct {
	Status string `json:"status"`
}

// ExecutionParameters is returned by GET /execution-parameters and tells
// batch transform how to call the container.
type ExecutionParameters struct {
	MaxConcurrentTransforms int    `json:"MaxConcurrentTransforms"`
	BatchStrategy           string `json:"BatchStrategy"`
	MaxPayloadInMB          int    `json:"MaxPayloadInMB"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Message   string `json:"message"`
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`
}
