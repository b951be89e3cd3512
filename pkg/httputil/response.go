// Package httputil writes the JSON envelope every API response uses.
package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/Maharab24/Bottle-Collection/pkg/errors"
	"github.com/Maharab24/Bottle-Collection/pkg/logger"
	"github.com/Maharab24/Bottle-Collection/pkg/validator"
)

// Response is the envelope: exactly one of Data and Error is set.
type Response struct {
	Data  any            `json:"data,omitempty"`
	Error *ErrorResponse `json:"error,omitempty"`
}

type ErrorResponse struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// genericMessages replace the text of errors that are not *AppError, so
// internals never reach the client.
var genericMessages = map[int]string{
	http.StatusNotFound:           "resource not found",
	http.StatusConflict:           "resource changed concurrently",
	http.StatusServiceUnavailable: "a dependency is unavailable",
}

// WriteJSON encodes v with status. Encoding errors are dropped; the header
// is already on the wire.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteData(w http.ResponseWriter, status int, data any) {
	WriteJSON(w, status, Response{Data: data})
}

// WriteError maps err onto a status and error body. Validation errors get a
// per-field breakdown. Failures of 500 and up are logged with the request
// logger when there is one, else with fallback.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	body := &ErrorResponse{RequestID: logger.CorrelationIDFromContext(r.Context())}

	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		body.Code, body.Message, body.Fields = "VALIDATION_ERROR", "request validation failed", valErr.Fields()
		WriteJSON(w, http.StatusBadRequest, Response{Error: body})
		return
	}

	status := apperrors.HTTPStatus(err)
	body.Code = apperrors.Code(err)
	body.Message = publicMessage(err, status)

	if status >= http.StatusInternalServerError {
		l := logger.FromContext(r.Context())
		if l == slog.Default() && fallback != nil {
			l = fallback
		}
		l.ErrorContext(r.Context(), "request failed",
			slog.String("error", err.Error()),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", status),
		)
	}
	WriteJSON(w, status, Response{Error: body})
}

func publicMessage(err error, status int) string {
	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr.Message
	case status == http.StatusBadRequest:
		return err.Error()
	}
	if msg, ok := genericMessages[status]; ok {
		return msg
	}
	return "an internal error occurred"
}

// WriteBadRequest reports a malformed body or parameter as INVALID_INPUT.
func WriteBadRequest(w http.ResponseWriter, r *http.Request, message string) {
	WriteJSON(w, http.StatusBadRequest, Response{Error: &ErrorResponse{
		Code:      "INVALID_INPUT",
		Message:   message,
		RequestID: logger.CorrelationIDFromContext(r.Context()),
	}})
}
