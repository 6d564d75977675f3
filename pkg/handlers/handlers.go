// Package handlers provides shared HTTP response helpers for domain handlers.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/JaimeStill/nexus/pkg/middleware"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// RespondJSON writes data as a JSON body with the given status code.
func RespondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// RespondError logs err against the request and writes an ErrorBody.
// Client errors carry err's message. Server errors log the cause and
// answer with the status text only.
func RespondError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, status int, err error) {
	body := ErrorBody{
		Error:     err.Error(),
		RequestID: middleware.RequestIDFrom(r.Context()),
	}

	attrs := []any{
		"method", r.Method,
		"path", r.URL.Path,
		"status", status,
		"error", err,
	}
	if body.RequestID != "" {
		attrs = append(attrs, "request_id", body.RequestID)
	}

	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "handler error", attrs...)
		body.Error = http.StatusText(status)
	} else {
		logger.WarnContext(r.Context(), "request rejected", attrs...)
	}

	RespondJSON(w, status, body)
}
