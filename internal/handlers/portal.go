package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/feresegna/bus-portal/internal/booking"
	"github.com/feresegna/bus-portal/internal/db"
	"github.com/feresegna/bus-portal/internal/events"
	"github.com/feresegna/bus-portal/internal/identity"
	"github.com/feresegna/bus-portal/internal/middleware"
	"github.com/feresegna/bus-portal/internal/models"
	"github.com/feresegna/bus-portal/internal/session"
)

type ctxKey int

const workspaceKey ctxKey = iota

const (
	pathSearch     = "/search"
	maxGuardWait   = 30 * time.Second
	searchDateForm = "2006-01-02"
)

// protectedPage is a page only some roles may see. No roles means any
// authenticated user.
type protectedPage struct {
	route  string
	prefix string
	name   string
	roles  []models.Role
}

func (p protectedPage) matches(path string) bool {
	if p.prefix != "" {
		return strings.HasPrefix(path, p.prefix) || path == strings.TrimSuffix(p.prefix, "/")
	}
	return path == p.route
}

var protectedPages = []protectedPage{
	{route: "/admin/*", prefix: "/admin/", name: "admin", roles: []models.Role{models.RoleAdmin}},
	{route: "/operator/*", prefix: "/operator/", name: "operator", roles: []models.Role{models.RoleOperator}},
	{route: "/driver/*", prefix: "/driver/", name: "driver", roles: []models.Role{models.RoleDriver}},
	{route: "/my-bookings", name: "my-bookings", roles: []models.Role{models.RolePassenger}},
	{route: "/profile", name: "profile", roles: []models.Role{models.RolePassenger}},
	{route: "/payment", name: "payment"},
	{route: "/confirmation/{id}", prefix: "/confirmation/", name: "confirmation"},
}

func protectedPageFor(path string) (protectedPage, bool) {
	for _, p := range protectedPages {
		if p.matches(path) {
			return p, true
		}
	}
	return protectedPage{}, false
}

// Applicant submits operator and driver applications to the identity service.
type Applicant interface {
	Apply(ctx context.Context, role models.Role, req models.ApplicationRequest) (models.ApplicationResponse, error)
}

// PortalHandler serves the pages and API of the booking portal.
type PortalHandler struct {
	workspaces  *Workspaces
	trips       db.TripCatalog
	applicant   Applicant
	events      events.Publisher
	logger      logrus.FieldLogger
	initTimeout time.Duration
	now         func() time.Time
}

// NewPortalHandler creates a portal handler. A nil publisher discards events.
func NewPortalHandler(workspaces *Workspaces, trips db.TripCatalog, applicant Applicant, publisher events.Publisher, logger logrus.FieldLogger) *PortalHandler {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &PortalHandler{
		workspaces:  workspaces,
		trips:       trips,
		applicant:   applicant,
		events:      publisher,
		logger:      logger,
		initTimeout: 10 * time.Second,
		now:         time.Now,
	}
}

// WithWorkspace attaches the client's workspace to the request. A new
// workspace restores its persisted session first, and a page request is
// redirected if the restored session asks for it.
func (h *PortalHandler) WithWorkspace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientID, ok := middleware.GetClientID(r.Context())
		if !ok {
			writeError(w, http.StatusBadRequest, "Client id missing")
			return
		}

		ws, created := h.workspaces.Get(clientID)
		if created {
			ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), h.initTimeout)
			nav := ws.Session.Initialize(ctx, r.URL.Path)
			cancel()
			if nav.Requested() && isPageRequest(r) {
				redirect(w, r, nav)
				return
			}
		}

		ctx := context.WithValue(r.Context(), workspaceKey, ws)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func workspaceFrom(ctx context.Context) *Workspace {
	ws, _ := ctx.Value(workspaceKey).(*Workspace)
	return ws
}

func isPageRequest(r *http.Request) bool {
	return r.Method == http.MethodGet && !strings.HasPrefix(r.URL.Path, "/api/")
}

func redirect(w http.ResponseWriter, r *http.Request, nav session.Navigation) {
	http.Redirect(w, r, nav.Path, http.StatusSeeOther)
}

type pageEnvelope struct {
	Page    string         `json:"page"`
	Session session.State  `json:"session"`
	Booking *booking.State `json:"booking,omitempty"`
}

type sessionResponse struct {
	session.State
	Redirect string `json:"redirect,omitempty"`
}

type guardResponse struct {
	Outcome  string        `json:"outcome"`
	Redirect string        `json:"redirect,omitempty"`
	Session  session.State `json:"session"`
}

// Page renders a public page.
func (h *PortalHandler) Page(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws := workspaceFrom(r.Context())
		h.render(w, ws, ws.Session.State(), name)
	}
}

// Protected renders page p after the route check.
func (h *PortalHandler) Protected(p protectedPage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws := workspaceFrom(r.Context())
		st := ws.Session.State()

		d := session.Decide(st, r.URL.Path, p.roles)
		switch d.Outcome {
		case session.GuardPending:
			w.Header().Set("Retry-After", "1")
			writeJSON(w, http.StatusAccepted, pageEnvelope{Page: "loading", Session: st})
			return
		case session.GuardRedirect:
			redirect(w, r, d.Navigation)
			return
		}

		if nav := h.selectionRequired(ws, p, r); nav.Requested() {
			redirect(w, r, nav)
			return
		}
		h.render(w, ws, st, p.name)
	}
}

// selectionRequired sends the client back to search when the payment or
// confirmation page has nothing to show.
func (h *PortalHandler) selectionRequired(ws *Workspace, p protectedPage, r *http.Request) session.Navigation {
	bs := ws.Booking.State()
	switch p.name {
	case "payment":
		if bs.SelectedTrip == nil || len(bs.SelectedSeats) == 0 {
			return session.NavigateTo(pathSearch)
		}
	case "confirmation":
		if bs.Booking == nil || bs.Booking.ID != chi.URLParam(r, "id") {
			return session.NavigateTo(pathSearch)
		}
	}
	return session.NoNavigation
}

func (h *PortalHandler) render(w http.ResponseWriter, ws *Workspace, st session.State, name string) {
	bs := ws.Booking.State()
	writeJSON(w, http.StatusOK, pageEnvelope{Page: name, Session: st, Booking: &bs})
}

// Guard reports the route check for path. With wait set, a pending check
// is held open until the session settles or wait elapses.
func (h *PortalHandler) Guard(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFrom(r.Context())
	path := r.URL.Query().Get("path")
	if !strings.HasPrefix(path, "/") {
		writeError(w, http.StatusBadRequest, "path must be absolute")
		return
	}

	var wait time.Duration
	if v := r.URL.Query().Get("wait"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			writeError(w, http.StatusBadRequest, "invalid wait")
			return
		}
		wait = min(d, maxGuardWait)
	}

	p, ok := protectedPageFor(path)
	if !ok {
		writeJSON(w, http.StatusOK, guardResponse{Outcome: session.GuardRender.String(), Session: ws.Session.State()})
		return
	}

	changed := make(chan struct{}, 1)
	cancel := ws.Session.Subscribe(func(session.State) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer cancel()

	g := session.NewGuard(ws.Session, nil, p.roles...)
	defer g.Unmount()
	d := g.Mount(path)

	if d.Outcome == session.GuardPending && wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
	poll:
		for d.Outcome == session.GuardPending {
			select {
			case <-changed:
				d = g.SetPath(path)
			case <-timer.C:
				break poll
			case <-r.Context().Done():
				return
			}
		}
	}

	status := http.StatusOK
	if d.Outcome == session.GuardPending {
		w.Header().Set("Retry-After", "1")
		status = http.StatusAccepted
	}
	writeJSON(w, status, guardResponse{
		Outcome:  d.Outcome.String(),
		Redirect: d.Navigation.Path,
		Session:  ws.Session.State(),
	})
}

// GetSession returns the session snapshot.
func (h *PortalHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sessionResponse{State: workspaceFrom(r.Context()).Session.State()})
}

// Login logs the client in.
func (h *PortalHandler) Login(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFrom(r.Context())
	var req models.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	nav, err := ws.Session.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.authFailure(w, ws, err, http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{State: ws.Session.State(), Redirect: nav.Path})
}

// Register signs up a passenger and logs them in.
func (h *PortalHandler) Register(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFrom(r.Context())
	var req models.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	nav, err := ws.Session.Register(r.Context(), req)
	if err != nil {
		h.authFailure(w, ws, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse{State: ws.Session.State(), Redirect: nav.Path})
}

// Logout ends the session.
func (h *PortalHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFrom(r.Context())
	nav := ws.Session.Logout(r.Context())
	writeJSON(w, http.StatusOK, sessionResponse{State: ws.Session.State(), Redirect: nav.Path})
}

// Apply forwards an operator or driver application. The session is left
// alone: applicants can log in once an administrator approves them.
func (h *PortalHandler) Apply(w http.ResponseWriter, r *http.Request) {
	role := models.Role(chi.URLParam(r, "role"))
	if role != models.RoleOperator && role != models.RoleDriver {
		writeError(w, http.StatusNotFound, "Unknown application type")
		return
	}
	var req models.ApplicationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	resp, err := h.applicant.Apply(r.Context(), role, req)
	var apiErr *identity.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode < http.StatusInternalServerError {
		writeError(w, apiErr.StatusCode, apiErr.Message)
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField("role", role).Error("Application failed")
		writeError(w, http.StatusBadGateway, "Identity service unavailable")
		return
	}

	h.logger.WithFields(logrus.Fields{"role": role, "email": req.Email}).Info("Application forwarded")
	writeJSON(w, http.StatusCreated, resp)
}

func (h *PortalHandler) authFailure(w http.ResponseWriter, ws *Workspace, err error, status int) {
	var opErr *session.AuthOperationError
	switch {
	case errors.Is(err, session.ErrSuperseded):
		writeError(w, http.StatusConflict, "Superseded by a newer session request")
	case errors.As(err, &opErr):
		writeError(w, status, opErr.Err.Error())
	default:
		h.logger.WithError(err).WithField("client_id", ws.ClientID).Error("Unexpected session error")
		writeError(w, http.StatusInternalServerError, "Session error")
	}
}

// SearchTrips records the search criteria and returns matching trips.
func (h *PortalHandler) SearchTrips(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFrom(r.Context())
	params, err := h.parseSearchParams(r)
	if err == nil {
		err = params.Validate()
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ws.Booking.SetSearchParams(params)

	trips, err := h.trips.SearchTrips(r.Context(), params)
	if err != nil {
		h.logger.WithError(err).Error("Trip search failed")
		writeError(w, http.StatusInternalServerError, "Trip search failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"searchParams": params, "trips": trips})
}

func (h *PortalHandler) parseSearchParams(r *http.Request) (models.SearchParams, error) {
	q := r.URL.Query()
	now := h.now()
	params := models.SearchParams{
		Origin:      strings.TrimSpace(q.Get("origin")),
		Destination: strings.TrimSpace(q.Get("destination")),
		Date:        now,
		Passengers:  1,
	}
	if v := q.Get("date"); v != "" {
		date, err := time.ParseInLocation(searchDateForm, v, now.Location())
		if err != nil {
			return params, errors.New("date must be YYYY-MM-DD")
		}
		params.Date = date
	}
	if v := q.Get("passengers"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return params, models.ErrInvalidPassengers
		}
		params.Passengers = n
	}
	return params, nil
}

// SelectTrip picks the trip to book. Seats picked for another trip are dropped.
func (h *PortalHandler) SelectTrip(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFrom(r.Context())
	var req struct {
		TripID string `json:"tripId"`
	}
	if err := decodeJSON(r, &req); err != nil || req.TripID == "" {
		writeError(w, http.StatusBadRequest, "tripId is required")
		return
	}

	trip, err := h.trips.FindTripByID(r.Context(), req.TripID)
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Trip not found")
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField("trip_id", req.TripID).Error("Trip lookup failed")
		writeError(w, http.StatusInternalServerError, "Trip lookup failed")
		return
	}

	ws.Booking.SelectTrip(*trip)
	writeJSON(w, http.StatusOK, ws.Booking.State())
}

// ToggleSeat adds the seat to the selection, or removes it if already there.
func (h *PortalHandler) ToggleSeat(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFrom(r.Context())
	var seat models.Seat
	if err := decodeJSON(r, &seat); err != nil || seat.ID == "" {
		writeError(w, http.StatusBadRequest, "seat id is required")
		return
	}
	if seat.Type == "" {
		seat.Type = models.SeatStandard
	}
	if !models.IsValidSeatType(seat.Type) {
		writeError(w, http.StatusBadRequest, "Invalid seat type")
		return
	}

	seats := ws.Booking.SelectSeat(seat)
	writeJSON(w, http.StatusOK, map[string]interface{}{"selectedSeats": seats})
}

// CreateBooking turns the selection into a pending booking draft.
func (h *PortalHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFrom(r.Context())
	b, err := ws.Booking.CreateBooking()
	if err != nil {
		h.precondition(w, ws, "create booking", err)
		return
	}

	userID := sessionUserID(ws)
	if err := h.events.BookingCreated(r.Context(), ws.ClientID, userID, b); err != nil {
		h.logger.WithError(err).WithField("booking_id", b.ID).Warn("Failed to publish booking event")
	}
	h.logger.WithFields(logrus.Fields{
		"booking_id":  b.ID,
		"trip_id":     b.TripID,
		"seats":       len(b.Seats),
		"total_price": b.TotalPrice,
		"user_id":     userID,
	}).Info("Booking draft created")
	writeJSON(w, http.StatusCreated, b)
}

// SetPaymentMethod records how the draft will be paid.
func (h *PortalHandler) SetPaymentMethod(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFrom(r.Context())
	var req struct {
		PaymentMethod string `json:"paymentMethod"`
	}
	if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.PaymentMethod) == "" {
		writeError(w, http.StatusBadRequest, "paymentMethod is required")
		return
	}

	b, err := ws.Booking.SetPaymentMethod(req.PaymentMethod)
	if err != nil {
		h.precondition(w, ws, "set payment method", err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// ClearBooking discards the trip, seats and draft.
func (h *PortalHandler) ClearBooking(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFrom(r.Context())
	bookingID := ""
	if b := ws.Booking.State().Booking; b != nil {
		bookingID = b.ID
	}
	ws.Booking.ClearBooking()

	if err := h.events.BookingCleared(r.Context(), ws.ClientID, sessionUserID(ws), bookingID); err != nil {
		h.logger.WithError(err).Warn("Failed to publish booking event")
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetBooking returns the selection state.
func (h *PortalHandler) GetBooking(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, workspaceFrom(r.Context()).Booking.State())
}

func (h *PortalHandler) precondition(w http.ResponseWriter, ws *Workspace, op string, err error) {
	var pe *booking.PreconditionError
	if errors.As(err, &pe) {
		h.logger.WithError(err).WithFields(logrus.Fields{"client_id": ws.ClientID, "operation": op}).Error("Booking precondition violated")
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	h.logger.WithError(err).WithField("operation", op).Error("Booking operation failed")
	writeError(w, http.StatusInternalServerError, "Booking operation failed")
}

func sessionUserID(ws *Workspace) string {
	if u := ws.Session.State().User; u != nil {
		return u.ID
	}
	return ""
}
