// Package response writes the view host's JSON envelope. Every body is
// {success, data|error, meta} and is marked no-store, since session views
// carry per-user state.
package response

import (
	"encoding/json"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// Code is the machine-readable error code of a failed request.
type Code string

const (
	CodeNoSession      Code = "NO_SESSION"
	CodeSessionExpired Code = "SESSION_EXPIRED"
	CodeVerifyFailed   Code = "VERIFY_FAILED"
	CodeRefreshFailed  Code = "REFRESH_FAILED"
	CodeCSRFInvalid    Code = "CSRF_INVALID"
	CodeRateLimited    Code = "RATE_LIMITED"
)

const unknownRequestID = "req-unknown"

var now = time.Now

type envelope struct {
	Success bool     `json:"success"`
	Data    any      `json:"data,omitempty"`
	Error   *problem `json:"error,omitempty"`
	Meta    meta     `json:"meta"`
}

type problem struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type meta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	write(w, r, status, envelope{Success: true, Data: data})
}

func Error(w http.ResponseWriter, r *http.Request, status int, code Code, message string, details any) {
	write(w, r, status, envelope{Error: &problem{Code: code, Message: message, Details: details}})
}

func write(w http.ResponseWriter, r *http.Request, status int, body envelope) {
	body.Meta = meta{RequestID: requestID(r), Timestamp: now().UTC()}
	h := w.Header()
	h.Set("Content-Type", "application/json")
	h.Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// requestID prefers the id assigned by the RequestID middleware, then the
// inbound header.
func requestID(r *http.Request) string {
	if id := chimiddleware.GetReqID(r.Context()); id != "" {
		return id
	}
	if id := r.Header.Get(chimiddleware.RequestIDHeader); id != "" {
		return id
	}
	return unknownRequestID
}
