package session

import (
	"sync"

	"github.com/feresegna/bus-portal/internal/models"
)

// GuardOutcome is what a protected page should do.
type GuardOutcome int

const (
	// GuardPending renders a neutral placeholder while the session loads.
	GuardPending GuardOutcome = iota
	// GuardRedirect sends the client elsewhere.
	GuardRedirect
	// GuardRender shows the protected content.
	GuardRender
)

func (o GuardOutcome) String() string {
	switch o {
	case GuardPending:
		return "pending"
	case GuardRedirect:
		return "redirect"
	case GuardRender:
		return "render"
	default:
		return "unknown"
	}
}

// GuardDecision is the outcome of a route check.
type GuardDecision struct {
	Outcome    GuardOutcome
	Navigation Navigation
}

// Decide checks a page at path that requires one of allowed. An empty allowed
// set admits any authenticated role.
func Decide(st State, path string, allowed []models.Role) GuardDecision {
	if st.Loading {
		return GuardDecision{Outcome: GuardPending}
	}
	if !st.IsAuthenticated {
		return GuardDecision{Outcome: GuardRedirect, Navigation: LoginRedirect(path)}
	}
	if len(allowed) > 0 && !hasRole(allowed, st.User.Role) {
		return GuardDecision{Outcome: GuardRedirect, Navigation: NavigateTo(PathHome)}
	}
	return GuardDecision{Outcome: GuardRender}
}

func hasRole(allowed []models.Role, role models.Role) bool {
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}

type guardInputs struct {
	loading       bool
	authenticated bool
	role          models.Role
	path          string
}

// Guard protects one mounted page. It re-checks whenever the session changes
// or the page path changes, and requests a navigation only when the inputs of
// the check differ from the previous check.
type Guard struct {
	manager  *Manager
	allowed  []models.Role
	navigate func(Navigation)

	mu       sync.Mutex
	path     string
	last     guardInputs
	checked  bool
	decision GuardDecision
	cancel   func()
}

// NewGuard creates a guard for pages requiring one of allowed. navigate
// receives every navigation the guard requests.
func NewGuard(manager *Manager, navigate func(Navigation), allowed ...models.Role) *Guard {
	return &Guard{
		manager:  manager,
		allowed:  allowed,
		navigate: navigate,
	}
}

// Mount starts guarding path and returns the first decision.
func (g *Guard) Mount(path string) GuardDecision {
	g.mu.Lock()
	g.path = path
	subscribed := g.cancel != nil
	g.mu.Unlock()

	if !subscribed {
		cancel := g.manager.Subscribe(func(State) { g.evaluate() })
		g.mu.Lock()
		if g.cancel == nil {
			g.cancel = cancel
			cancel = nil
		}
		g.mu.Unlock()
		if cancel != nil {
			cancel()
		}
	}
	return g.evaluate()
}

// SetPath re-checks after the client moved to another path.
func (g *Guard) SetPath(path string) GuardDecision {
	g.mu.Lock()
	g.path = path
	g.mu.Unlock()
	return g.evaluate()
}

// Unmount stops watching the session.
func (g *Guard) Unmount() {
	g.mu.Lock()
	cancel := g.cancel
	g.cancel = nil
	g.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Decision returns the most recent decision.
func (g *Guard) Decision() GuardDecision {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.decision
}

func (g *Guard) evaluate() GuardDecision {
	st := g.manager.State()

	g.mu.Lock()
	in := guardInputs{loading: st.Loading, authenticated: st.IsAuthenticated, path: g.path}
	if st.User != nil {
		in.role = st.User.Role
	}
	d := Decide(st, g.path, g.allowed)
	changed := !g.checked || in != g.last
	g.last = in
	g.checked = true
	g.decision = d
	g.mu.Unlock()

	if changed && d.Navigation.Requested() && g.navigate != nil {
		g.navigate(d.Navigation)
	}
	return d
}
