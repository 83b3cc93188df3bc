package service

import "github.com/sandeepkv93/chat-session-client/internal/domain"

type State int

const (
	StateNoSession State = iota
	StateActive
	StateVerifying
	StateRefreshing
)

func (s State) String() string {
	switch s {
	case StateNoSession:
		return "no_session"
	case StateActive:
		return "active"
	case StateVerifying:
		return "verifying"
	case StateRefreshing:
		return "refreshing"
	default:
		return "unknown"
	}
}

// Snapshot is the derived status handed to the view layer on every change.
type Snapshot struct {
	User            *domain.SessionRecord
	IsAuthenticated bool
	IsLoading       bool
	State           State
}
