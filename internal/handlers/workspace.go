package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/feresegna/bus-portal/internal/booking"
	"github.com/feresegna/bus-portal/internal/session"
)

// Workspace is the state the portal keeps for one browser client.
type Workspace struct {
	ClientID string
	Session  *session.Manager
	Booking  *booking.Tracker

	lastSeen time.Time
}

// WorkspaceFactory builds the workspace of a new client.
type WorkspaceFactory func(clientID string) *Workspace

// Workspaces holds the workspace of every active client and drops those
// idle for longer than the idle timeout.
type Workspaces struct {
	factory WorkspaceFactory
	idle    time.Duration
	logger  logrus.FieldLogger
	now     func() time.Time

	mu    sync.Mutex
	items map[string]*Workspace
}

// NewWorkspaces creates an empty registry.
func NewWorkspaces(factory WorkspaceFactory, idle time.Duration, logger logrus.FieldLogger) *Workspaces {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Workspaces{
		factory: factory,
		idle:    idle,
		logger:  logger,
		now:     time.Now,
		items:   make(map[string]*Workspace),
	}
}

// Get returns the workspace of clientID, creating it on first use. created
// reports whether the workspace is new.
func (ws *Workspaces) Get(clientID string) (w *Workspace, created bool) {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	w, ok := ws.items[clientID]
	if !ok {
		w = ws.factory(clientID)
		w.ClientID = clientID
		ws.items[clientID] = w
		created = true
	}
	w.lastSeen = ws.now()
	return w, created
}

// Len returns the number of live workspaces.
func (ws *Workspaces) Len() int {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return len(ws.items)
}

// Evict drops idle workspaces and returns how many were dropped. Persisted
// credentials survive, so a returning client restores its session.
func (ws *Workspaces) Evict() int {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	cutoff := ws.now().Add(-ws.idle)
	evicted := 0
	for id, w := range ws.items {
		if w.lastSeen.Before(cutoff) {
			delete(ws.items, id)
			evicted++
		}
	}
	return evicted
}

// Run evicts idle workspaces every interval until ctx is done.
func (ws *Workspaces) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := ws.Evict(); n > 0 {
				ws.logger.WithFields(logrus.Fields{"evicted": n, "remaining": ws.Len()}).Debug("Evicted idle workspaces")
			}
		}
	}
}
