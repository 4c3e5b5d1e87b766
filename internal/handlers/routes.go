package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/feresegna/bus-portal/internal/middleware"
	"github.com/feresegna/bus-portal/internal/models"
)

// LoginLimit bounds login attempts per client IP.
type LoginLimit struct {
	Requests int
	Window   time.Duration
}

// NewIdentityRouter wires the identity API. Login is rate limited on the
// connecting peer, so forwarding headers are not trusted here.
func NewIdentityRouter(h *AuthHandler, authMW *middleware.AuthMiddleware, limiter *middleware.RateLimitMiddleware, limit LoginLimit, logger logrus.FieldLogger) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLogger(logger))

	r.Get("/health", Health)

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(authMW.Authenticate)
		r.Use(authMW.RequireRoles(models.RoleAdmin))
		r.Get("/accounts", h.ListAccounts)
		r.Patch("/accounts/{id}/status", h.UpdateAccountStatus)
	})

	r.Route("/api/auth", func(r chi.Router) {
		r.With(limiter.RateLimit(limit.Requests, limit.Window)).Post("/login", h.Login)
		r.Post("/register", h.Register)
		r.Post("/register/operator", h.Apply(models.RoleOperator))
		r.Post("/register/driver", h.Apply(models.RoleDriver))

		r.Group(func(r chi.Router) {
			r.Use(authMW.Authenticate)
			r.Get("/me", h.Me)
			r.Post("/logout", h.Logout)
		})
	})
	return r
}

// NewPortalRouter wires the portal pages and API.
func NewPortalRouter(h *PortalHandler, secureCookies bool, logger logrus.FieldLogger) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLogger(logger))

	r.Get("/health", Health)

	r.Group(func(r chi.Router) {
		r.Use(middleware.ClientID(secureCookies))
		r.Use(h.WithWorkspace)

		r.Get("/", h.Page("home"))
		r.Get("/auth", h.Page("auth"))
		r.Get(pathSearch, h.Page("search"))
		for _, p := range protectedPages {
			r.Get(p.route, h.Protected(p))
			if section, ok := strings.CutSuffix(p.route, "/*"); ok {
				r.Get(section, h.Protected(p))
			}
		}

		r.Route("/api", func(r chi.Router) {
			r.Get("/guard", h.Guard)

			r.Get("/session", h.GetSession)
			r.Post("/session/login", h.Login)
			r.Post("/session/register", h.Register)
			r.Post("/session/logout", h.Logout)
			r.Post("/session/apply/{role}", h.Apply)

			r.Get("/trips/search", h.SearchTrips)
			r.Group(func(r chi.Router) {
				r.Use(h.RequireSessionRoles(models.RoleOperator, models.RoleAdmin))
				r.Post("/trips", h.CreateTrip)
				r.Put("/trips/{id}", h.UpdateTrip)
				r.Delete("/trips/{id}", h.DeleteTrip)
			})

			r.Get("/booking", h.GetBooking)
			r.Post("/booking", h.CreateBooking)
			r.Delete("/booking", h.ClearBooking)
			r.Post("/booking/trip", h.SelectTrip)
			r.Post("/booking/seats", h.ToggleSeat)
			r.Put("/booking/payment-method", h.SetPaymentMethod)
		})
	})
	return r
}
