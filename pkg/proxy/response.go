package proxy

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// ErrorDetail is the error body shared with the backend.
type ErrorDetail struct {
	Detail string `json:"detail"`
}

// WriteJSON writes body as JSON with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// WriteDetail writes {"detail": message} with the given status code.
func WriteDetail(w http.ResponseWriter, statusCode int, message string) {
	WriteJSON(w, statusCode, ErrorDetail{Detail: message})
}

// WriteRawJSON writes an already encoded JSON document unchanged.
func WriteRawJSON(w http.ResponseWriter, statusCode int, body json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if _, err := w.Write(body); err != nil {
		slog.Debug("failed to write response", "error", err)
	}
}
