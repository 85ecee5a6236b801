package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"yoyaku/internal/core"
	"yoyaku/internal/export"
	applog "yoyaku/internal/log"
	"yoyaku/internal/middleware/trace"
	"yoyaku/internal/store"
)

type errorBody struct {
	Error     string `json:"error"`
	RequestID string `json:"requestId,omitempty"`
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrInvalidReservation),
		errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrInvalidMonth):
		return http.StatusUnprocessableEntity
	case errors.Is(err, store.ErrNotFound), errors.Is(err, export.ErrNoData):
		return http.StatusNotFound
	case errors.Is(err, store.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, store.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage hides internal failures from clients; they are logged instead.
func publicMessage(status int, err error) string {
	switch status {
	case http.StatusInternalServerError:
		return "internal error"
	case http.StatusServiceUnavailable:
		return "storage unavailable, try again later"
	default:
		return err.Error()
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes err as a JSON error body and logs server-side failures.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	s.logFailure(r, op, status, err)
	writeJSON(w, status, errorBody{
		Error:     publicMessage(status, err),
		RequestID: trace.GetRequestID(r.Context()),
	})
}

// writeErrorPage is writeError for the HTML pages.
func (s *Server) writeErrorPage(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	s.logFailure(r, op, status, err)
	http.Error(w, publicMessage(status, err), status)
}

// errorTypeFor classifies a response status for the error_type log field.
func errorTypeFor(status int) string {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return applog.ErrorTypeValidation
	case http.StatusNotFound:
		return applog.ErrorTypeNotFound
	case http.StatusConflict:
		return applog.ErrorTypeConflict
	case http.StatusServiceUnavailable:
		return applog.ErrorTypeUnavailable
	default:
		return applog.ErrorTypeInternal
	}
}

// logFailure logs server-side failures as errors and client mistakes at debug.
func (s *Server) logFailure(r *http.Request, op string, status int, err error) {
	ctx := r.Context()
	logger := applog.FromContext(ctx)
	if status < http.StatusInternalServerError {
		logger.DebugContext(ctx, "Request rejected", applog.NewFields().
			WithError(err, errorTypeFor(status)).
			WithOperation(op).ToSlice()...)
		return
	}
	applog.NewStructuredLogger(logger).
		LogError(ctx, "Request failed", err, errorTypeFor(status), op, nil)
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusTooManyRequests, errorBody{
		Error:     "rate limit exceeded, try again later",
		RequestID: trace.GetRequestID(r.Context()),
	})
}
