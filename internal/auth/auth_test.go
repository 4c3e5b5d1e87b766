package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/feresegna/bus-portal/internal/models"
)

func testAccount(role models.Role) *models.Account {
	return &models.Account{
		ID:    primitive.NewObjectID(),
		Name:  "Test User",
		Email: "test@example.com",
		Role:  role,
	}
}

func TestNewService(t *testing.T) {
	service := NewService("", 0)
	assert.NotNil(t, service)
	assert.Equal(t, []byte(defaultSecret), service.jwtSecret)
	assert.Equal(t, 24*time.Hour, service.tokenExp)

	service = NewService("s3cret", time.Hour)
	assert.Equal(t, []byte("s3cret"), service.jwtSecret)
	assert.Equal(t, time.Hour, service.tokenExp)
}

func TestService_HashPassword(t *testing.T) {
	service := NewService("", 0)

	password := "testpassword123"
	hash, err := service.HashPassword(password)

	assert.NoError(t, err)
	assert.NotEmpty(t, hash)
	assert.NotEqual(t, password, hash)
}

func TestService_CheckPassword(t *testing.T) {
	service := NewService("", 0)

	password := "testpassword123"
	hash, _ := service.HashPassword(password)

	assert.True(t, service.CheckPassword(password, hash))
	assert.False(t, service.CheckPassword("wrongpassword", hash))
}

func TestService_ValidateToken(t *testing.T) {
	service := NewService("", 0)
	account := testAccount(models.RoleOperator)

	token, err := service.GenerateToken(account)
	require.NoError(t, err)

	t.Run("valid token", func(t *testing.T) {
		claims, err := service.ValidateToken(token)
		require.NoError(t, err)
		assert.Equal(t, account.ID.Hex(), claims.UserID)
		assert.Equal(t, account.Email, claims.Email)
		assert.Equal(t, account.Role, claims.Role)
		assert.NotEmpty(t, claims.TokenID)
	})

	t.Run("bearer prefix", func(t *testing.T) {
		_, err := service.ValidateToken("Bearer " + token)
		assert.NoError(t, err)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := service.ValidateToken("invalid-token")
		assert.Equal(t, ErrInvalidToken, err)
	})

	t.Run("other secret", func(t *testing.T) {
		_, err := NewService("another-secret", 0).ValidateToken(token)
		assert.Equal(t, ErrInvalidToken, err)
	})

	t.Run("unknown role", func(t *testing.T) {
		claims := jwt.MapClaims{
			"jti":     "x",
			"user_id": "u",
			"email":   "e@example.com",
			"role":    "manager",
			"exp":     time.Now().Add(time.Hour).Unix(),
		}
		forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(service.jwtSecret)
		require.NoError(t, err)
		_, err = service.ValidateToken(forged)
		assert.Equal(t, ErrInvalidToken, err)
	})
}

func TestService_TokenExpiration(t *testing.T) {
	service := NewService("", time.Minute)
	issued := time.Date(2026, 10, 17, 8, 0, 0, 0, time.UTC)
	service.now = func() time.Time { return issued }

	token, err := service.GenerateToken(testAccount(models.RoleAdmin))
	require.NoError(t, err)

	claims, err := service.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, issued.Add(time.Minute).Unix(), claims.Exp)

	service.now = func() time.Time { return issued.Add(2 * time.Minute) }
	_, err = service.ValidateToken(token)
	assert.Equal(t, ErrExpiredToken, err)
}

func TestService_Revoke(t *testing.T) {
	service := NewService("", 0)
	token, _ := service.GenerateToken(testAccount(models.RolePassenger))
	other, _ := service.GenerateToken(testAccount(models.RolePassenger))

	claims, err := service.ValidateToken(token)
	require.NoError(t, err)

	service.Revoke(claims)

	_, err = service.ValidateToken(token)
	assert.Equal(t, ErrRevokedToken, err)
	_, err = service.ValidateToken(other)
	assert.NoError(t, err)
}

func TestService_RevokePrunesExpired(t *testing.T) {
	service := NewService("", 0)
	service.Revoke(&models.Claims{TokenID: "old", Exp: time.Now().Add(-time.Hour).Unix()})
	service.Revoke(&models.Claims{TokenID: "new", Exp: time.Now().Add(time.Hour).Unix()})

	assert.False(t, service.isRevoked("old"))
	assert.True(t, service.isRevoked("new"))
}

func TestService_ExtractTokenFromHeader(t *testing.T) {
	service := NewService("", 0)

	extracted, err := service.ExtractTokenFromHeader("Bearer valid-token")
	assert.NoError(t, err)
	assert.Equal(t, "valid-token", extracted)

	for _, header := range []string{"", "InvalidFormat", "Bearer ", "Basic abc"} {
		_, err = service.ExtractTokenFromHeader(header)
		assert.Equal(t, ErrInvalidToken, err, "header %q", header)
	}
}

func TestService_ValidatePassword(t *testing.T) {
	service := NewService("", 0)

	assert.NoError(t, service.ValidatePassword("validpassword123"))

	err := service.ValidatePassword("short")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "at least 8 characters")
}

func TestService_ValidateEmail(t *testing.T) {
	service := NewService("", 0)

	assert.NoError(t, service.ValidateEmail("test@example.com"))

	for _, email := range []string{"testexample.com", "test@", "test"} {
		err := service.ValidateEmail(email)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid email format")
	}
}

func TestService_ValidateName(t *testing.T) {
	service := NewService("", 0)

	assert.NoError(t, service.ValidateName("Selam"))

	err := service.ValidateName(" a ")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "at least 2 characters")

	err = service.ValidateName(strings.Repeat("a", 101))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "less than 100 characters")
}
