package domain

import "errors"

var (
	// ErrNoCredential is returned when an operation needs a held session.
	ErrNoCredential = errors.New("no authentication data found")
	// ErrRemoteRejection is matched by RemoteRejectionError.
	ErrRemoteRejection = errors.New("remote rejected credential")
	// ErrTransportAuth marks 401-class responses from the auth API.
	ErrTransportAuth = errors.New("unauthorized")
	ErrRefreshFailed = errors.New("token refresh failed")
	// ErrSessionExpired is terminal; the session has already been cleared
	// when it is returned.
	ErrSessionExpired = errors.New("session expired, please log in again")
)

// RemoteRejectionError carries the message of a non-success response body.
type RemoteRejectionError struct {
	Message string
}

func (e *RemoteRejectionError) Error() string {
	if e.Message == "" {
		return ErrRemoteRejection.Error()
	}
	return ErrRemoteRejection.Error() + ": " + e.Message
}

func (e *RemoteRejectionError) Unwrap() error { return ErrRemoteRejection }
