// Package api provides HTTP handlers for the game API.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/fweigel/mordspiel/internal/apperr"
)

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// errorBody is the sanitized error payload. Detail only appears when the
// server runs with APP_DEBUG on.
type errorBody struct {
	Error  string      `json:"error"`
	Code   apperr.Code `json:"code"`
	Detail string      `json:"detail,omitempty"`
}

// statusFor maps the error taxonomy onto HTTP statuses.
func statusFor(code apperr.Code) int {
	switch code {
	case apperr.CodeValidation:
		return http.StatusBadRequest
	case apperr.CodeNotFound:
		return http.StatusNotFound
	case apperr.CodeInactiveSession:
		return http.StatusConflict
	case apperr.CodeUpstreamUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeAppError logs the full error and returns the sanitized version.
func writeAppError(w http.ResponseWriter, r *http.Request, err error, debug bool) {
	code := apperr.CodeOf(err)
	status := statusFor(code)

	logFn := slog.Error
	if status < http.StatusInternalServerError {
		logFn = slog.Warn
	}
	logFn("Request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"code", code,
		"error", err)

	body := errorBody{Error: apperr.MessageOf(err), Code: code}
	if debug {
		var appErr *apperr.Error
		if errors.As(err, &appErr) && appErr.Err != nil {
			body.Detail = appErr.Err.Error()
		}
	}
	JSON(w, status, body)
}

// decodeJSON reads a JSON request body into v.
func decodeJSON(r *http.Request, v interface{}) error {
	defer func() {
		_ = r.Body.Close()
	}()
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return apperr.Wrap(apperr.CodeValidation, "invalid JSON body", err)
	}
	return nil
}
