package main

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/feresegna/bus-portal/internal/auth"
	"github.com/feresegna/bus-portal/internal/db"
	"github.com/feresegna/bus-portal/internal/identity"
	"github.com/feresegna/bus-portal/internal/models"
)

func TestHaversineKm(t *testing.T) {
	addis := cities[0]
	hawassa := cities[2]
	assert.InDelta(t, 220, haversineKm(addis, hawassa), 15)
	assert.Zero(t, haversineKm(addis, addis))
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "addis-ababa", slug("Addis Ababa"))
	assert.Equal(t, "jimma", slug("Jimma"))
}

func TestGenerateTrips(t *testing.T) {
	start := time.Date(2025, 3, 14, 17, 45, 0, 0, time.UTC)
	trips := generateTrips(rand.New(rand.NewSource(1)), start, 2)

	// Two legs per destination, two departures per leg, per day.
	require.Len(t, trips, 2*(len(cities)-1)*2*2)

	ids := make(map[string]bool)
	for _, trip := range trips {
		assert.False(t, ids[trip.ID], "duplicate id %s", trip.ID)
		ids[trip.ID] = true

		assert.NotEqual(t, trip.Origin, trip.Destination)
		assert.True(t, trip.Origin == "Addis Ababa" || trip.Destination == "Addis Ababa")
		assert.True(t, trip.ArrivalTime.After(trip.DepartureTime))
		assert.Greater(t, trip.Price, 0.0)
		assert.LessOrEqual(t, trip.AvailableSeats, trip.TotalSeats)
		assert.Greater(t, trip.AvailableSeats, 0)
		assert.NotEmpty(t, trip.Operator)

		day := trip.DepartureTime.Truncate(24 * time.Hour)
		assert.True(t, day.Equal(time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)) || day.Equal(time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)))
	}
}

type MockAccountCollection struct {
	mock.Mock
}

func (m *MockAccountCollection) InsertAccount(ctx context.Context, account *models.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *MockAccountCollection) FindAccountByID(ctx context.Context, id string) (*models.Account, error) {
	args := m.Called(ctx, id)
	return nil, args.Error(1)
}

func (m *MockAccountCollection) FindAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	args := m.Called(ctx, email)
	return nil, args.Error(1)
}

func (m *MockAccountCollection) UpdateLastLogin(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockAccountCollection) ListAccounts(ctx context.Context, filter db.AccountFilter) ([]models.Account, error) {
	args := m.Called(ctx, filter)
	return nil, args.Error(1)
}

func (m *MockAccountCollection) UpdateStatus(ctx context.Context, id string, status models.AccountStatus) (*models.Account, error) {
	args := m.Called(ctx, id, status)
	return nil, args.Error(1)
}

func TestSeedStaff(t *testing.T) {
	accounts := &MockAccountCollection{}
	accounts.On("InsertAccount", mock.Anything, mock.MatchedBy(func(a *models.Account) bool {
		return a.Email == "admin@feresegna.et"
	})).Return(db.ErrDuplicateEmail)
	accounts.On("InsertAccount", mock.Anything, mock.MatchedBy(func(a *models.Account) bool {
		return a.Status == models.StatusActive && a.PasswordHash != ""
	})).Return(nil)

	created := seedStaff(context.Background(), accounts, auth.NewService("", 0), "password123")
	assert.Equal(t, len(staffAccounts)-1, created)
	accounts.AssertNumberOfCalls(t, "InsertAccount", len(staffAccounts))
}

func TestRegisterDemoPassenger(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/auth/register", r.URL.Path)
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(models.AuthResponse{User: models.User{ID: "u1", Role: models.RolePassenger}})
		}))
		defer server.Close()

		assert.NoError(t, registerDemoPassenger(context.Background(), identity.NewClient(server.URL, nil), "password123"))
	})

	t.Run("already registered", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusConflict)
			json.NewEncoder(w).Encode(map[string]string{"error": "Email already exists"})
		}))
		defer server.Close()

		assert.NoError(t, registerDemoPassenger(context.Background(), identity.NewClient(server.URL, nil), "password123"))
	})

	t.Run("service error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		assert.Error(t, registerDemoPassenger(context.Background(), identity.NewClient(server.URL, nil), "password123"))
	})
}
