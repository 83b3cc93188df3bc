// Package guard maps session status and the current route to the action a
// view host should take. The policies are pure; Bind applies them as
// navigation side effects when the observed action changes.
package guard

import (
	"net/url"
	"slices"
)

type ActionKind int

const (
	Render ActionKind = iota
	Placeholder
	Redirect
)

func (k ActionKind) String() string {
	switch k {
	case Render:
		return "render"
	case Placeholder:
		return "placeholder"
	case Redirect:
		return "redirect"
	default:
		return "unknown"
	}
}

type Status struct {
	IsAuthenticated bool
	IsLoading       bool
}

// Route describes the current view. Path is the route pattern used for the
// public allow-list; AsPath is the concrete path including the query.
// Ready reports whether the navigation layer has resolved the route.
type Route struct {
	Path   string
	AsPath string
	Ready  bool
}

// Action is what the host must do. A Redirect still renders a placeholder
// until navigation completes.
type Action struct {
	Kind   ActionKind
	Target string
}

type Policy struct {
	LandingRoute string
	HomeRoute    string
	PublicRoutes []string
}

func DefaultPolicy() Policy {
	return Policy{
		LandingRoute: "/",
		HomeRoute:    "/chat",
		PublicRoutes: []string{"/", "/register", "/login"},
	}
}

// RequireAuth guards views that need a session.
func (p Policy) RequireAuth(s Status, r Route) Action {
	if s.IsAuthenticated && !s.IsLoading {
		return Action{Kind: Render}
	}
	if !s.IsLoading && !s.IsAuthenticated && !slices.Contains(p.PublicRoutes, r.Path) {
		return Action{Kind: Redirect, Target: p.landingRedirect(r)}
	}
	return Action{Kind: Placeholder}
}

// RequireGuest guards views that only make sense without a session, such
// as the login and register pages.
func (p Policy) RequireGuest(s Status, r Route) Action {
	if !s.IsLoading && !s.IsAuthenticated {
		return Action{Kind: Render}
	}
	if r.Ready && !s.IsLoading && s.IsAuthenticated {
		return Action{Kind: Redirect, Target: p.HomeRoute}
	}
	return Action{Kind: Placeholder}
}

func (p Policy) landingRedirect(r Route) string {
	asPath := r.AsPath
	if asPath == "" {
		asPath = r.Path
	}
	return p.LandingRoute + "?redirect=" + url.QueryEscape(asPath)
}
