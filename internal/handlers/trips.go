package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/feresegna/bus-portal/internal/db"
	"github.com/feresegna/bus-portal/internal/models"
)

// RequireSessionRoles lets through clients whose session holds one of roles.
// It is the portal-side counterpart of the identity service's role gate.
func (h *PortalHandler) RequireSessionRoles(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			st := workspaceFrom(r.Context()).Session.State()
			if !st.IsAuthenticated {
				writeError(w, http.StatusUnauthorized, "Login required")
				return
			}
			for _, role := range roles {
				if st.User.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, http.StatusForbidden, "Insufficient permissions")
		})
	}
}

// CreateTrip adds a trip to the catalog under a fresh ID.
func (h *PortalHandler) CreateTrip(w http.ResponseWriter, r *http.Request) {
	trip, ok := h.decodeTrip(w, r)
	if !ok {
		return
	}
	trip.ID = uuid.NewString()

	if err := h.trips.InsertTrip(r.Context(), trip); err != nil {
		h.logger.WithError(err).Error("Failed to create trip")
		writeError(w, http.StatusInternalServerError, "Failed to create trip")
		return
	}
	h.logTrip(r, trip.ID, "Trip created")
	writeJSON(w, http.StatusCreated, trip)
}

// UpdateTrip replaces an existing trip.
func (h *PortalHandler) UpdateTrip(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	trip, ok := h.decodeTrip(w, r)
	if !ok {
		return
	}

	_, err := h.trips.FindTripByID(r.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Trip not found")
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField("trip_id", id).Error("Trip lookup failed")
		writeError(w, http.StatusInternalServerError, "Trip lookup failed")
		return
	}

	trip.ID = id
	if err := h.trips.InsertTrip(r.Context(), trip); err != nil {
		h.logger.WithError(err).WithField("trip_id", id).Error("Failed to update trip")
		writeError(w, http.StatusInternalServerError, "Failed to update trip")
		return
	}
	h.logTrip(r, id, "Trip updated")
	writeJSON(w, http.StatusOK, trip)
}

// DeleteTrip removes a trip from the catalog.
func (h *PortalHandler) DeleteTrip(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := h.trips.DeleteTrip(r.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Trip not found")
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField("trip_id", id).Error("Failed to delete trip")
		writeError(w, http.StatusInternalServerError, "Failed to delete trip")
		return
	}
	h.logTrip(r, id, "Trip deleted")
	w.WriteHeader(http.StatusNoContent)
}

func (h *PortalHandler) decodeTrip(w http.ResponseWriter, r *http.Request) (models.Trip, bool) {
	var trip models.Trip
	if err := decodeJSON(r, &trip); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return trip, false
	}
	trip.Origin = strings.TrimSpace(trip.Origin)
	trip.Destination = strings.TrimSpace(trip.Destination)
	if err := trip.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return trip, false
	}
	return trip, true
}

func (h *PortalHandler) logTrip(r *http.Request, id, msg string) {
	h.logger.WithFields(logrus.Fields{
		"trip_id": id,
		"user_id": sessionUserID(workspaceFrom(r.Context())),
	}).Info(msg)
}
