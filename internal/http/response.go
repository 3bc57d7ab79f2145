package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"finbot/internal/core"
	"finbot/internal/intake"
	"finbot/internal/ledger"
	"finbot/internal/log"
	"finbot/internal/services"
	"finbot/internal/sheets"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to encode response", log.FieldError, err)
	}
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case core.IsValidationError(err),
		errors.Is(err, services.ErrBadRequest),
		errors.Is(err, intake.ErrEmptyInput),
		errors.Is(err, intake.ErrNotPending):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, intake.ErrNothingParsed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, sheets.ErrNotConfigured):
		return http.StatusServiceUnavailable
	case errors.Is(err, intake.ErrParserUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError logs and writes err. Server errors hide their message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	logger := log.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Request failed", log.FieldStatusCode, status, log.FieldError, err)
		if status == http.StatusInternalServerError {
			msg = http.StatusText(status)
		}
	} else {
		logger.WarnContext(r.Context(), "Request rejected", log.FieldStatusCode, status, log.FieldError, err)
	}
	writeJSON(w, r, status, errorResponse{Error: msg})
}
