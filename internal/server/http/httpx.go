// Package httpserver is a thin transport adapter over the lifecycle services.
// It maps routes onto service calls and the error taxonomy onto statuses;
// no business rule lives here.
package httpserver

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/inkseal/inkseal/internal/errs"
)

// NewRequestID returns a fresh correlation ID for error payloads.
func NewRequestID() string { return "req_" + uuid.NewString() }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func readJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// errorBody is the stable error envelope: a taxonomy code and a message,
// never internal error text from storage or the datastore.
type errorBody struct {
	RequestID string `json:"request_id"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// kindOf maps a service error onto (HTTP status, stable code, safe message).
func kindOf(err error) (int, string, string) {
	switch {
	case errors.Is(err, errs.ErrValidation):
		return http.StatusBadRequest, "VALIDATION", firstLine(err)
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", "not found"
	case errors.Is(err, errs.ErrExpired):
		return http.StatusConflict, "EXPIRED", "signature link has expired"
	case errors.Is(err, errs.ErrIntegrity):
		return http.StatusConflict, "INTEGRITY", "document has been modified since upload"
	case errors.Is(err, errs.ErrConflict), errors.Is(err, errs.ErrAlreadyExists):
		return http.StatusConflict, "CONFLICT", firstLine(err)
	case errors.Is(err, errs.ErrForbidden):
		return http.StatusForbidden, "FORBIDDEN", "email does not match intended signer"
	case errors.Is(err, errs.ErrRateLimited):
		return http.StatusTooManyRequests, "RATE_LIMITED", "too many attempts"
	default:
		// Dependency and unexpected faults: no internal detail crosses here.
		return http.StatusInternalServerError, "INTERNAL", "internal error"
	}
}

// firstLine strips wrapped causes: the part before the first ": %w" chain
// element is the caller-facing message.
func firstLine(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, ": "); i > 0 {
		return msg[:i]
	}
	return msg
}

func writeError(w http.ResponseWriter, err error) {
	status, code, msg := kindOf(err)
	writeJSON(w, status, errorBody{RequestID: NewRequestID(), Code: code, Message: msg})
}

// clientIP extracts the originating address for audit attribution.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i > 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
