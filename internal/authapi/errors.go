package authapi

import (
	"fmt"
	"net/http"

	"github.com/sandeepkv93/chat-session-client/internal/domain"
)

// StatusError is returned for any non-2xx response from the auth API.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, msg)
}

// Is lets a 401 response match domain.ErrTransportAuth.
func (e *StatusError) Is(target error) bool {
	return target == domain.ErrTransportAuth && e.StatusCode == http.StatusUnauthorized
}
