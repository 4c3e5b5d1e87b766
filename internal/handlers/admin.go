package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/feresegna/bus-portal/internal/db"
	"github.com/feresegna/bus-portal/internal/middleware"
	"github.com/feresegna/bus-portal/internal/models"
)

// ListAccounts lists accounts, optionally narrowed by the role and status
// query parameters. Administrators use it to find pending applications.
func (h *AuthHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	filter := db.AccountFilter{
		Role:   models.Role(r.URL.Query().Get("role")),
		Status: models.AccountStatus(r.URL.Query().Get("status")),
	}
	if filter.Role != "" && !models.IsValidRole(filter.Role) {
		writeError(w, http.StatusBadRequest, "Invalid role")
		return
	}
	if filter.Status != "" && !models.IsValidAccountStatus(filter.Status) {
		writeError(w, http.StatusBadRequest, "Invalid status")
		return
	}

	accounts, err := h.accounts.ListAccounts(r.Context(), filter)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list accounts")
		writeError(w, http.StatusInternalServerError, "Failed to list accounts")
		return
	}
	writeJSON(w, http.StatusOK, accounts)
}

// UpdateAccountStatus approves, suspends or reinstates an account.
func (h *AuthHandler) UpdateAccountStatus(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "User context not found")
		return
	}

	id := chi.URLParam(r, "id")
	var req models.AccountStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if !models.IsValidAccountStatus(req.Status) {
		writeError(w, http.StatusBadRequest, "Invalid status")
		return
	}
	if id == claims.UserID {
		writeError(w, http.StatusBadRequest, "Cannot change your own account status")
		return
	}

	account, err := h.accounts.UpdateStatus(r.Context(), id, req.Status)
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Account not found")
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField("account_id", id).Error("Failed to update account status")
		writeError(w, http.StatusInternalServerError, "Failed to update account status")
		return
	}

	h.logger.WithFields(logrus.Fields{
		"account_id": id,
		"role":       account.Role,
		"status":     account.Status,
		"admin_id":   claims.UserID,
	}).Info("Account status changed")
	writeJSON(w, http.StatusOK, account)
}
