package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role represents user roles in the system
type Role string

const (
	RolePassenger Role = "passenger"
	RoleOperator  Role = "operator"
	RoleDriver    Role = "driver"
	RoleAdmin     Role = "admin"
)

// AccountStatus is the lifecycle state of an account.
type AccountStatus string

const (
	StatusActive    AccountStatus = "active"
	StatusPending   AccountStatus = "pending"
	StatusSuspended AccountStatus = "suspended"
)

// User is the identity record handed to clients.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  Role   `json:"role"`
	Phone string `json:"phone,omitempty"`
}

// Account is the stored form of a user, including credentials.
type Account struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name         string             `bson:"name" json:"name"`
	Email        string             `bson:"email" json:"email"`
	Phone        string             `bson:"phone" json:"phone"`
	PasswordHash string             `bson:"password_hash" json:"-"`
	Role         Role               `bson:"role" json:"role"`
	Status       AccountStatus      `bson:"status" json:"status"`
	LicenseNo    string             `bson:"license_number,omitempty" json:"license_number,omitempty"`
	LastLogin    *time.Time         `bson:"last_login,omitempty" json:"last_login,omitempty"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at" json:"updated_at"`
}

// Profile returns the client-facing view of the account.
func (a *Account) Profile() User {
	return User{
		ID:    a.ID.Hex(),
		Email: a.Email,
		Name:  a.Name,
		Role:  a.Role,
		Phone: a.Phone,
	}
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest represents a passenger registration request
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

// ApplicationRequest is an operator or driver account application. Applications
// are stored as pending accounts until an administrator approves them.
type ApplicationRequest struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	Password      string `json:"password"`
	LicenseNumber string `json:"license_number"`
}

// ApplicationResponse acknowledges an operator or driver application.
type ApplicationResponse struct {
	Message string        `json:"message"`
	Status  AccountStatus `json:"status"`
}

// AccountStatusRequest changes the status of an account.
type AccountStatusRequest struct {
	Status AccountStatus `json:"status"`
}

// AuthResponse represents a successful login or registration
type AuthResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	User        User   `json:"user"`
}

// Claims represents JWT claims
type Claims struct {
	TokenID string `json:"jti"`
	UserID  string `json:"user_id"`
	Email   string `json:"email"`
	Role    Role   `json:"role"`
	Exp     int64  `json:"exp"`
}

// IsValidRole checks if a role is valid
func IsValidRole(role Role) bool {
	switch role {
	case RolePassenger, RoleOperator, RoleDriver, RoleAdmin:
		return true
	default:
		return false
	}
}

// IsValidAccountStatus checks if a status is one an account can hold
func IsValidAccountStatus(status AccountStatus) bool {
	switch status {
	case StatusActive, StatusPending, StatusSuspended:
		return true
	default:
		return false
	}
}

// Dashboard returns the landing page for staff roles. Passengers have none.
func (r Role) Dashboard() (string, bool) {
	switch r {
	case RoleAdmin:
		return "/admin/dashboard", true
	case RoleOperator:
		return "/operator/dashboard", true
	case RoleDriver:
		return "/driver/dashboard", true
	default:
		return "", false
	}
}
