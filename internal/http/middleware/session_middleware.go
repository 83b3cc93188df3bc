package middleware

import (
	"context"
	"net/http"

	"github.com/sandeepkv93/chat-session-client/internal/guard"
	"github.com/sandeepkv93/chat-session-client/internal/service"
)

type contextKey string

const SessionContextKey contextKey = "session"

const placeholderPage = `<!doctype html>
<html><head><meta charset="utf-8"><meta http-equiv="refresh" content="1"><title>Loading</title></head>
<body style="display:flex;align-items:center;justify-content:center;height:100vh"><div>Loading...</div></body></html>
`

// RequireSession serves next only when a session is held. Otherwise it
// answers with the loading placeholder or a 303 to the landing route.
func RequireSession(src guard.Source, policy guard.Policy) func(http.Handler) http.Handler {
	return guarded(src, policy.RequireAuth)
}

// RequireGuest serves next only without a session; signed-in users are sent
// to the home route.
func RequireGuest(src guard.Source, policy guard.Policy) func(http.Handler) http.Handler {
	return guarded(src, policy.RequireGuest)
}

func guarded(src guard.Source, eval guard.Evaluator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			snap := src.Snapshot()
			route := guard.Route{Path: r.URL.Path, AsPath: r.URL.RequestURI(), Ready: true}
			action := eval(guard.StatusOf(snap), route)
			switch action.Kind {
			case guard.Redirect:
				http.Redirect(w, r, action.Target, http.StatusSeeOther)
			case guard.Placeholder:
				w.Header().Set("Content-Type", "text/html; charset=utf-8")
				w.Header().Set("Cache-Control", "no-store")
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte(placeholderPage))
			default:
				ctx := context.WithValue(r.Context(), SessionContextKey, snap)
				next.ServeHTTP(w, r.WithContext(ctx))
			}
		})
	}
}

func SessionFromContext(ctx context.Context) (service.Snapshot, bool) {
	s, ok := ctx.Value(SessionContextKey).(service.Snapshot)
	return s, ok
}
