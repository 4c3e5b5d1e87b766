package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/feresegna/bus-portal/internal/auth"
	"github.com/feresegna/bus-portal/internal/db"
	"github.com/feresegna/bus-portal/internal/middleware"
	"github.com/feresegna/bus-portal/internal/models"
)

// AuthHandler serves the identity API.
type AuthHandler struct {
	authService *auth.Service
	accounts    db.AccountCollection
	logger      logrus.FieldLogger
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(authService *auth.Service, accounts db.AccountCollection, logger logrus.FieldLogger) *AuthHandler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &AuthHandler{
		authService: authService,
		accounts:    accounts,
		logger:      logger,
	}
}

// Login accepts a form with username (the email) and password, or the same
// credentials as JSON.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var loginReq models.LoginRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := decodeJSON(r, &loginReq); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON")
			return
		}
	} else {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid form")
			return
		}
		loginReq.Email = r.PostForm.Get("username")
		loginReq.Password = r.PostForm.Get("password")
	}

	if loginReq.Email == "" || loginReq.Password == "" {
		writeError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	logger := h.logger.WithField("email", loginReq.Email)
	account, err := h.accounts.FindAccountByEmail(r.Context(), loginReq.Email)
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if err != nil {
		logger.WithError(err).Error("Failed to look up account")
		writeError(w, http.StatusInternalServerError, "Failed to look up account")
		return
	}

	if !h.authService.CheckPassword(loginReq.Password, account.PasswordHash) {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	switch account.Status {
	case models.StatusActive:
	case models.StatusPending:
		writeError(w, http.StatusForbidden, "Account is pending approval")
		return
	default:
		writeError(w, http.StatusForbidden, "Account is deactivated")
		return
	}

	resp, err := h.issue(account)
	if err != nil {
		logger.WithError(err).Error("Failed to generate token")
		writeError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	if err := h.accounts.UpdateLastLogin(r.Context(), account.ID.Hex()); err != nil {
		logger.WithError(err).Warn("Failed to update last login")
	}

	logger.WithFields(logrus.Fields{"user_id": resp.User.ID, "role": resp.User.Role}).Info("User logged in")
	writeJSON(w, http.StatusOK, resp)
}

// Register creates an active passenger account and logs it in.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var registerReq models.RegisterRequest
	if err := decodeJSON(r, &registerReq); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if err := h.validate(registerReq.Name, registerReq.Email, registerReq.Password); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	account, ok := h.createAccount(w, r, models.Account{
		Name:  registerReq.Name,
		Email: registerReq.Email,
		Phone: registerReq.Phone,
		Role:  models.RolePassenger,
	}, registerReq.Password, models.StatusActive)
	if !ok {
		return
	}

	resp, err := h.issue(account)
	if err != nil {
		h.logger.WithError(err).Error("Failed to generate token")
		writeError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	h.logger.WithField("user_id", resp.User.ID).Info("Passenger registered")
	writeJSON(w, http.StatusCreated, resp)
}

// Apply returns a handler that records an operator or driver application as
// a pending account.
func (h *AuthHandler) Apply(role models.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var appReq models.ApplicationRequest
		if err := decodeJSON(r, &appReq); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON")
			return
		}

		if err := h.validate(appReq.Name, appReq.Email, appReq.Password); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if role == models.RoleDriver && strings.TrimSpace(appReq.LicenseNumber) == "" {
			writeError(w, http.StatusBadRequest, "license number is required")
			return
		}

		account, ok := h.createAccount(w, r, models.Account{
			Name:      appReq.Name,
			Email:     appReq.Email,
			Phone:     appReq.Phone,
			Role:      role,
			LicenseNo: appReq.LicenseNumber,
		}, appReq.Password, models.StatusPending)
		if !ok {
			return
		}

		h.logger.WithFields(logrus.Fields{"user_id": account.ID.Hex(), "role": role}).Info("Application submitted")
		writeJSON(w, http.StatusCreated, models.ApplicationResponse{
			Message: "Application submitted. You can log in once an administrator approves it.",
			Status:  models.StatusPending,
		})
	}
}

// Me returns the profile of the token's owner.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "User context not found")
		return
	}

	account, err := h.accounts.FindAccountByID(r.Context(), claims.UserID)
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusUnauthorized, "User not found")
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField("user_id", claims.UserID).Error("Failed to look up account")
		writeError(w, http.StatusInternalServerError, "Failed to look up account")
		return
	}
	if account.Status != models.StatusActive {
		writeError(w, http.StatusUnauthorized, "Account is deactivated")
		return
	}

	writeJSON(w, http.StatusOK, account.Profile())
}

// Logout revokes the presented token.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "User context not found")
		return
	}

	h.authService.Revoke(claims)
	h.logger.WithField("user_id", claims.UserID).Info("User logged out")
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

// Health reports liveness.
func Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *AuthHandler) validate(name, email, password string) error {
	if err := h.authService.ValidateName(name); err != nil {
		return err
	}
	if err := h.authService.ValidateEmail(email); err != nil {
		return err
	}
	return h.authService.ValidatePassword(password)
}

// createAccount hashes password and stores account. It writes the error
// response itself and reports whether the account was created.
func (h *AuthHandler) createAccount(w http.ResponseWriter, r *http.Request, account models.Account, password string, status models.AccountStatus) (*models.Account, bool) {
	passwordHash, err := h.authService.HashPassword(password)
	if err != nil {
		h.logger.WithError(err).Error("Failed to hash password")
		writeError(w, http.StatusInternalServerError, "Failed to hash password")
		return nil, false
	}
	account.PasswordHash = passwordHash
	account.Status = status

	err = h.accounts.InsertAccount(r.Context(), &account)
	if errors.Is(err, db.ErrDuplicateEmail) {
		writeError(w, http.StatusConflict, "Email already exists")
		return nil, false
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to create account")
		writeError(w, http.StatusInternalServerError, "Failed to create account")
		return nil, false
	}
	return &account, true
}

func (h *AuthHandler) issue(account *models.Account) (models.AuthResponse, error) {
	token, err := h.authService.GenerateToken(account)
	if err != nil {
		return models.AuthResponse{}, err
	}
	return models.AuthResponse{
		AccessToken: token,
		TokenType:   "bearer",
		User:        account.Profile(),
	}, nil
}
