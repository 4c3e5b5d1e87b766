package session

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/feresegna/bus-portal/internal/models"
)

func TestDecide(t *testing.T) {
	admin := user("a", models.RoleAdmin)
	driver := user("d", models.RoleDriver)

	tests := []struct {
		name    string
		state   State
		allowed []models.Role
		want    GuardDecision
	}{
		{
			name:    "loading unauthenticated",
			state:   State{Loading: true},
			allowed: []models.Role{models.RoleAdmin},
			want:    GuardDecision{Outcome: GuardPending},
		},
		{
			name:    "loading with wrong role",
			state:   State{Loading: true, User: &driver, IsAuthenticated: true},
			allowed: []models.Role{models.RoleAdmin},
			want:    GuardDecision{Outcome: GuardPending},
		},
		{
			name:    "unauthenticated",
			state:   State{},
			allowed: []models.Role{models.RoleAdmin},
			want:    GuardDecision{Outcome: GuardRedirect, Navigation: NavigateTo("/auth?mode=login&redirect=%2Fadmin%2Fdashboard")},
		},
		{
			name:  "unauthenticated any role",
			state: State{},
			want:  GuardDecision{Outcome: GuardRedirect, Navigation: NavigateTo("/auth?mode=login&redirect=%2Fadmin%2Fdashboard")},
		},
		{
			name:    "wrong role",
			state:   State{User: &driver, IsAuthenticated: true},
			allowed: []models.Role{models.RoleAdmin},
			want:    GuardDecision{Outcome: GuardRedirect, Navigation: NavigateTo("/")},
		},
		{
			name:    "allowed role",
			state:   State{User: &admin, IsAuthenticated: true},
			allowed: []models.Role{models.RoleAdmin},
			want:    GuardDecision{Outcome: GuardRender},
		},
		{
			name:    "one of several roles",
			state:   State{User: &driver, IsAuthenticated: true},
			allowed: []models.Role{models.RoleOperator, models.RoleDriver},
			want:    GuardDecision{Outcome: GuardRender},
		},
		{
			name:  "any authenticated role",
			state: State{User: &driver, IsAuthenticated: true},
			want:  GuardDecision{Outcome: GuardRender},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decide(tt.state, "/admin/dashboard", tt.allowed))
		})
	}
}

type navRecorder struct {
	mu   sync.Mutex
	navs []Navigation
}

func (r *navRecorder) navigate(n Navigation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.navs = append(r.navs, n)
}

func (r *navRecorder) all() []Navigation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Navigation(nil), r.navs...)
}

func TestGuard_PendingDuringInitialization(t *testing.T) {
	m, id, store := newTestManager(t)
	seedStore(t, store, "tok", user("d", models.RoleDriver))

	rec := &navRecorder{}
	g := NewGuard(m, rec.navigate, models.RoleAdmin)
	defer g.Unmount()

	var during GuardDecision
	id.On("CurrentUser", mock.Anything, "tok").
		Run(func(mock.Arguments) { during = g.Decision() }).
		Return(user("d", models.RoleDriver), nil).Once()

	d := g.Mount("/admin/dashboard")
	assert.Equal(t, GuardPending, d.Outcome)
	assert.Empty(t, rec.all())

	m.Initialize(context.Background(), "/admin/dashboard")

	assert.Equal(t, GuardPending, during.Outcome)
	assert.Equal(t, GuardRedirect, g.Decision().Outcome)
	assert.Equal(t, []Navigation{NavigateTo("/")}, rec.all())
}

func TestGuard_UnauthenticatedRedirectsOnce(t *testing.T) {
	m, id, _ := newTestManager(t)
	id.On("Logout", mock.Anything, "").Return(nil)

	rec := &navRecorder{}
	g := NewGuard(m, rec.navigate, models.RoleAdmin)
	defer g.Unmount()
	g.Mount("/admin/dashboard")

	m.Initialize(context.Background(), "/admin/dashboard")
	// Transitions that leave the guard inputs unchanged request nothing new.
	m.Logout(context.Background())
	g.SetPath("/admin/dashboard")

	want := NavigateTo("/auth?mode=login&redirect=%2Fadmin%2Fdashboard")
	assert.Equal(t, []Navigation{want}, rec.all())
}

func TestGuard_ReevaluatesOnLoginAndPathChange(t *testing.T) {
	m, id, _ := newTestManager(t)
	m.Initialize(context.Background(), "/")

	rec := &navRecorder{}
	g := NewGuard(m, rec.navigate, models.RolePassenger)
	defer g.Unmount()

	d := g.Mount("/my-bookings")
	assert.Equal(t, GuardRedirect, d.Outcome)

	id.On("Login", mock.Anything, "p@example.com", "pw").Return(authResponse(user("p", models.RolePassenger)), nil).Once()
	_, err := m.Login(context.Background(), "p@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, GuardRender, g.Decision().Outcome)

	g.Unmount()
	id.On("Logout", mock.Anything, "token-p").Return(nil).Once()
	m.Logout(context.Background())
	// Unmounted guards stop following the session.
	assert.Equal(t, GuardRender, g.Decision().Outcome)

	d = g.SetPath("/profile")
	assert.Equal(t, GuardRedirect, d.Outcome)

	assert.Equal(t, []Navigation{
		NavigateTo("/auth?mode=login&redirect=%2Fmy-bookings"),
		NavigateTo("/auth?mode=login&redirect=%2Fprofile"),
	}, rec.all())
}
