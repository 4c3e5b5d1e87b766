// Package session tracks who is logged in for one client and decides where
// the client should be sent as the session changes.
package session

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/feresegna/bus-portal/internal/models"
)

// Identity is the remote identity service.
type Identity interface {
	CurrentUser(ctx context.Context, token string) (models.User, error)
	Login(ctx context.Context, email, password string) (models.AuthResponse, error)
	Logout(ctx context.Context, token string) error
	Register(ctx context.Context, req models.RegisterRequest) (models.AuthResponse, error)
}

// State is a consistent snapshot of the session.
type State struct {
	User            *models.User `json:"user"`
	Loading         bool         `json:"loading"`
	IsAuthenticated bool         `json:"isAuthenticated"`
}

// Manager owns the authenticated user of one client.
//
// Every Initialize, Login, Register and Logout call takes a request number.
// A call that completes after a newer one was issued is discarded: the most
// recently requested operation decides the session.
type Manager struct {
	identity Identity
	store    CredentialStore
	logger   logrus.FieldLogger

	mu          sync.Mutex
	user        *models.User
	loading     bool
	initialized bool
	seq         uint64

	notifyMu    sync.Mutex
	subscribers map[int]func(State)
	nextSubID   int
}

// NewManager creates a Manager. It reports loading until Initialize or another
// session operation completes.
func NewManager(identity Identity, store CredentialStore, logger logrus.FieldLogger) *Manager {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Manager{
		identity:    identity,
		store:       store,
		logger:      logger,
		loading:     true,
		subscribers: make(map[int]func(State)),
	}
}

// State returns the current snapshot.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Manager) snapshotLocked() State {
	st := State{Loading: m.loading}
	if m.user != nil {
		u := *m.user
		st.User = &u
		st.IsAuthenticated = true
	}
	return st
}

// Subscribe registers fn to be called after every state transition. fn must
// not call Initialize, Login, Register or Logout synchronously.
func (m *Manager) Subscribe(fn func(State)) (cancel func()) {
	m.notifyMu.Lock()
	id := m.nextSubID
	m.nextSubID++
	m.subscribers[id] = fn
	m.notifyMu.Unlock()

	return func() {
		m.notifyMu.Lock()
		delete(m.subscribers, id)
		m.notifyMu.Unlock()
	}
}

func (m *Manager) notify() {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()
	if len(m.subscribers) == 0 {
		return
	}
	st := m.State()
	for _, fn := range m.subscribers {
		fn(st)
	}
}

// begin starts a suspending operation and returns its request number.
func (m *Manager) begin() uint64 {
	m.mu.Lock()
	m.seq++
	mine := m.seq
	m.loading = true
	m.mu.Unlock()
	m.notify()
	return mine
}

// finish commits the result of request mine, unless a newer request exists.
// apply runs under the state lock, so store writes are ordered with state.
func (m *Manager) finish(mine uint64, apply func()) bool {
	m.mu.Lock()
	if mine != m.seq {
		m.mu.Unlock()
		return false
	}
	if apply != nil {
		apply()
	}
	m.loading = false
	m.mu.Unlock()
	m.notify()
	return true
}

// Initialize restores a persisted session once per Manager. A stored token is
// checked against the identity service; a rejected token is cleared. When the
// session is restored on the home or auth page, staff roles are sent to their
// dashboard.
func (m *Manager) Initialize(ctx context.Context, currentPath string) Navigation {
	m.mu.Lock()
	if m.initialized {
		m.mu.Unlock()
		return NoNavigation
	}
	m.initialized = true
	m.mu.Unlock()

	mine := m.begin()
	logger := m.logger.WithFields(logrus.Fields{"operation": "initialize", "path": currentPath})

	token, hasToken := m.read(logger, TokenKey)
	_, hasUser := m.read(logger, UserKey)
	if !hasToken || !hasUser {
		m.finish(mine, nil)
		logger.Debug("no stored session")
		return NoNavigation
	}

	user, err := m.identity.CurrentUser(ctx, token)
	if err == nil && !models.IsValidRole(user.Role) {
		err = ErrInvalidRole
	}

	if err != nil {
		verr := &AuthValidationError{Err: err}
		if !m.finish(mine, func() {
			m.user = nil
			m.clearCredentialsLocked(logger)
		}) {
			logger.Debug("initialize superseded")
			return NoNavigation
		}
		logger.WithError(verr).Warn("token validation failed, cleared stored session")
		return NoNavigation
	}

	if !m.finish(mine, func() {
		m.user = &user
		m.persistUserLocked(logger, user)
	}) {
		logger.Debug("initialize superseded")
		return NoNavigation
	}

	nav := landingRedirect(user.Role, currentPath)
	logger.WithFields(logrus.Fields{
		"user_id":  user.ID,
		"role":     user.Role,
		"redirect": nav.Path,
	}).Info("session restored")
	return nav
}

// Login authenticates with email and password. On success the session is
// persisted and the client is sent to the role's dashboard, or home for
// passengers. On failure an *AuthOperationError is returned and the current
// user is kept.
func (m *Manager) Login(ctx context.Context, email, password string) (Navigation, error) {
	logger := m.logger.WithFields(logrus.Fields{"operation": "login", "email": email})
	mine := m.begin()

	resp, err := m.identity.Login(ctx, email, password)
	return m.completeAuth(logger, mine, "login", resp, err, dashboardFor)
}

// Register creates a passenger account and logs it in. The client is sent
// home on success.
func (m *Manager) Register(ctx context.Context, req models.RegisterRequest) (Navigation, error) {
	logger := m.logger.WithFields(logrus.Fields{"operation": "register", "email": req.Email})
	mine := m.begin()

	resp, err := m.identity.Register(ctx, req)
	return m.completeAuth(logger, mine, "register", resp, err, func(models.Role) Navigation {
		return NavigateTo(PathHome)
	})
}

func (m *Manager) completeAuth(logger logrus.FieldLogger, mine uint64, op string, resp models.AuthResponse, err error, target func(models.Role) Navigation) (Navigation, error) {
	if err == nil && !models.IsValidRole(resp.User.Role) {
		err = ErrInvalidRole
	}

	if err != nil {
		if !m.finish(mine, nil) {
			return NoNavigation, ErrSuperseded
		}
		logger.WithError(err).Warn(op + " failed")
		return NoNavigation, &AuthOperationError{Op: op, Err: err}
	}

	user := resp.User
	if !m.finish(mine, func() {
		m.user = &user
		m.setLocked(logger, TokenKey, resp.AccessToken)
		m.persistUserLocked(logger, user)
	}) {
		logger.Debug(op + " superseded")
		return NoNavigation, ErrSuperseded
	}

	nav := target(user.Role)
	logger.WithFields(logrus.Fields{
		"user_id":  user.ID,
		"role":     user.Role,
		"redirect": nav.Path,
	}).Info(op + " succeeded")
	return nav, nil
}

// Logout ends the session. Local state is cleared first and unconditionally;
// the identity service is then asked to invalidate the token, and a failure
// there is only logged.
func (m *Manager) Logout(ctx context.Context) Navigation {
	logger := m.logger.WithField("operation", "logout")

	m.mu.Lock()
	m.seq++
	m.initialized = true
	token, _ := m.read(logger, TokenKey)
	userID := ""
	if m.user != nil {
		userID = m.user.ID
	}
	m.user = nil
	m.loading = false
	m.clearCredentialsLocked(logger)
	m.mu.Unlock()
	m.notify()

	if err := m.identity.Logout(ctx, token); err != nil {
		logger.WithError(err).Warn("server-side logout failed")
	}
	logger.WithField("user_id", userID).Info("logged out")
	return NavigateTo(PathHome)
}

func (m *Manager) read(logger logrus.FieldLogger, key string) (string, bool) {
	v, ok, err := m.store.Get(key)
	if err != nil {
		logger.WithError(err).WithField("key", key).Warn("credential store read failed")
		return "", false
	}
	return v, ok && v != ""
}

func (m *Manager) setLocked(logger logrus.FieldLogger, key, value string) {
	if err := m.store.Set(key, value); err != nil {
		logger.WithError(err).WithField("key", key).Warn("credential store write failed")
	}
}

func (m *Manager) persistUserLocked(logger logrus.FieldLogger, user models.User) {
	data, err := json.Marshal(user)
	if err != nil {
		logger.WithError(err).Warn("failed to encode user profile")
		return
	}
	m.setLocked(logger, UserKey, string(data))
}

func (m *Manager) clearCredentialsLocked(logger logrus.FieldLogger) {
	for _, key := range []string{TokenKey, UserKey} {
		if err := m.store.Delete(key); err != nil {
			logger.WithError(err).WithField("key", key).Warn("credential store delete failed")
		}
	}
}
