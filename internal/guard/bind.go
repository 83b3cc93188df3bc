package guard

import (
	"sync"

	"github.com/sandeepkv93/chat-session-client/internal/service"
)

// Evaluator is one of Policy.RequireAuth or Policy.RequireGuest.
type Evaluator func(Status, Route) Action

type Navigator interface {
	Replace(path string)
}

// Source is the part of the session manager a binding observes.
type Source interface {
	Snapshot() service.Snapshot
	Subscribe(fn func(service.Snapshot)) func()
}

// Binding re-evaluates a guard on every session change and redirects only
// when the evaluated action changes into a redirect.
type Binding struct {
	eval Evaluator
	nav  Navigator

	mu     sync.Mutex
	route  Route
	status Status
	last   Action
	unsub  func()
}

func Bind(src Source, eval Evaluator, route Route, nav Navigator) *Binding {
	b := &Binding{eval: eval, nav: nav, route: route, last: Action{Kind: -1}}
	b.apply(StatusOf(src.Snapshot()))
	b.unsub = src.Subscribe(func(s service.Snapshot) { b.apply(StatusOf(s)) })
	return b
}

func StatusOf(s service.Snapshot) Status {
	return Status{IsAuthenticated: s.IsAuthenticated, IsLoading: s.IsLoading}
}

// SetRoute updates the current route, for example once navigation becomes
// ready, and re-evaluates.
func (b *Binding) SetRoute(r Route) {
	b.mu.Lock()
	b.route = r
	status := b.status
	b.mu.Unlock()
	b.apply(status)
}

func (b *Binding) Action() Action {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last
}

func (b *Binding) Close() {
	if b.unsub != nil {
		b.unsub()
	}
}

func (b *Binding) apply(s Status) {
	b.mu.Lock()
	b.status = s
	next := b.eval(s, b.route)
	changed := next != b.last
	b.last = next
	b.mu.Unlock()

	if changed && next.Kind == Redirect {
		b.nav.Replace(next.Target)
	}
}
