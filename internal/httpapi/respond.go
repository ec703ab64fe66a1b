package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/MrEthical07/accesshub"
)

type response struct {
	Data  any            `json:"data,omitempty"`
	Error *errorResponse `json:"error,omitempty"`
}

type errorResponse struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Fields  []accesshub.FieldError `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent; nothing meaningful can be done if encoding fails.
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, response{Error: &errorResponse{Code: code, Message: message}})
}

// writeEngineError maps the engine's error taxonomy onto HTTP statuses.
func writeEngineError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var valErr *accesshub.ValidationError
	switch {
	case errors.As(err, &valErr):
		writeJSON(w, http.StatusBadRequest, response{Error: &errorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "request validation failed",
			Fields:  valErr.Fields,
		}})
	case errors.Is(err, accesshub.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", "invalid input")
	case errors.Is(err, accesshub.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid email or password")
	case errors.Is(err, accesshub.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized")
	case errors.Is(err, accesshub.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "not found")
	case errors.Is(err, accesshub.ErrConflict):
		writeError(w, http.StatusConflict, "ALREADY_EXISTS", "an account with this email already exists")
	case errors.Is(err, accesshub.ErrRateLimited):
		w.Header().Set("Retry-After", "60")
		writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many attempts")
	case errors.Is(err, accesshub.ErrDeliveryFailed):
		writeError(w, http.StatusBadGateway, "DELIVERY_FAILED", "could not deliver the one-time code")
	case errors.Is(err, accesshub.ErrUnavailable), errors.Is(err, accesshub.ErrEngineNotReady):
		writeError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "service temporarily unavailable")
	default:
		logger.ErrorContext(r.Context(), "unmapped engine error",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "an internal error occurred")
	}
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", "invalid request body")
		return false
	}
	return true
}
