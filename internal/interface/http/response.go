package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/feynlearn/feynlearn-hub/internal/domain/shared"
	"github.com/feynlearn/feynlearn-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// JSONResponse represents a standard JSON response.
type JSONResponse struct {
	Success   bool          `json:"success"`
	Data      any           `json:"data,omitempty"`
	Error     *APIError     `json:"error,omitempty"`
	Meta      *ResponseMeta `json:"meta,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
}

// APIError represents an API error.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ResponseMeta contains response metadata.
type ResponseMeta struct {
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version,omitempty"`
}

// writeJSON writes a success envelope.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(JSONResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
		Meta: &ResponseMeta{
			Timestamp: time.Now().UTC(),
			Version:   "v1",
		},
		RequestID: middleware.GetReqID(r.Context()),
	})
}

// writeErrorCode writes an error envelope.
func writeErrorCode(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(JSONResponse{
		Success:   false,
		Error:     &APIError{Code: code, Message: message},
		RequestID: middleware.GetReqID(r.Context()),
	})
}

// writeError maps err onto a status code and writes the envelope. Server
// side failures are logged with the request logger; their details are not
// sent to the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)

	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("request failed",
			logger.String("code", code),
			logger.Int("status", status),
			logger.Err(err),
		)
	}
	writeErrorCode(w, r, status, code, publicMessage(status, err))
}

// classify maps an error kind to an HTTP status and a stable code.
func classify(err error) (int, string) {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge, "payload_too_large"
	case shared.IsValidation(err):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, shared.ErrInvalidFormat):
		if fromModel(err) {
			return http.StatusBadGateway, "upstream_error"
		}
		return http.StatusBadRequest, "validation_error"
	case shared.IsUnauthorized(err):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, shared.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case shared.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case shared.IsAlreadyExists(err):
		return http.StatusConflict, "already_exists"
	case shared.IsStateTransition(err):
		return http.StatusConflict, "invalid_state_transition"
	case errors.Is(err, shared.ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, shared.ErrServiceUnavailable):
		return http.StatusServiceUnavailable, "service_unavailable"
	case errors.Is(err, shared.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	case shared.IsExternalService(err):
		return http.StatusBadGateway, "upstream_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// fromModel reports whether err was raised by the language model layer.
func fromModel(err error) bool {
	var de *shared.DomainError
	if !errors.As(err, &de) {
		return false
	}
	return de.Domain == "llm"
}

// publicMessage returns the outermost domain message, which is written for
// users. Plain errors keep their text only below 500; server side failures
// get a fixed message per status.
func publicMessage(status int, err error) string {
	if status == http.StatusInternalServerError {
		return "An unexpected error occurred"
	}
	var de *shared.DomainError
	if errors.As(err, &de) && de.Message != "" {
		return de.Message
	}
	switch status {
	case http.StatusBadGateway:
		return "An upstream service failed"
	case http.StatusServiceUnavailable:
		return "Service temporarily unavailable"
	case http.StatusGatewayTimeout:
		return "The request timed out"
	}
	if status > http.StatusInternalServerError {
		return "An unexpected error occurred"
	}
	return err.Error()
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// decodeJSON reads a JSON body into dst.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return err
		}
		return shared.WrapError("http", "Decode", shared.ErrValidation, "invalid JSON body", err)
	}
	return nil
}

// queryInt reads an integer query parameter. Missing or malformed values
// yield def.
func queryInt(r *http.Request, key string, def int) int {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// queryBool reads a boolean query parameter.
func queryBool(r *http.Request, key string) bool {
	switch strings.ToLower(r.URL.Query().Get(key)) {
	case "true", "1", "yes":
		return true
	}
	return false
}
