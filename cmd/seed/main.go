package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/feresegna/bus-portal/internal/auth"
	"github.com/feresegna/bus-portal/internal/config"
	"github.com/feresegna/bus-portal/internal/db"
	"github.com/feresegna/bus-portal/internal/identity"
	"github.com/feresegna/bus-portal/internal/logging"
	"github.com/feresegna/bus-portal/internal/models"
)

// City is a served stop with its coordinates.
type City struct {
	Name string
	Lat  float64
	Lon  float64
}

var cities = []City{
	{Name: "Addis Ababa", Lat: 9.0054, Lon: 38.7636},
	{Name: "Adama", Lat: 8.5400, Lon: 39.2700},
	{Name: "Hawassa", Lat: 7.0621, Lon: 38.4764},
	{Name: "Bahir Dar", Lat: 11.5936, Lon: 37.3908},
	{Name: "Gondar", Lat: 12.6030, Lon: 37.4521},
	{Name: "Mekelle", Lat: 13.4967, Lon: 39.4753},
	{Name: "Dire Dawa", Lat: 9.6009, Lon: 41.8501},
	{Name: "Jimma", Lat: 7.6731, Lon: 36.8344},
}

var operators = []string{"Selam Bus", "Sky Bus", "Abay Bus", "Golden Bus"}

var busTypes = []struct {
	Name     string
	Seats    int
	Rate     float64 // ETB per km
	Features []string
}{
	{Name: "Standard", Seats: 51, Rate: 1.1, Features: []string{"Luggage"}},
	{Name: "Luxury", Seats: 45, Rate: 1.5, Features: []string{"AC", "WiFi", "Luggage"}},
	{Name: "VIP", Seats: 30, Rate: 2.2, Features: []string{"AC", "WiFi", "USB Charging", "Refreshments"}},
}

const avgSpeedKmh = 60.0

func haversineKm(a, b City) float64 {
	R := 6371.0
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	s := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(s), math.Sqrt(1-s))
	return R * c
}

// generateTrips schedules departures from Addis Ababa to every other city and
// back, for days days starting on the day of start.
func generateTrips(rng *rand.Rand, start time.Time, days int) []models.Trip {
	y, m, d := start.Date()
	first := time.Date(y, m, d, 0, 0, 0, 0, start.Location())
	hub := cities[0]

	var trips []models.Trip
	for day := 0; day < days; day++ {
		date := first.AddDate(0, 0, day)
		for _, city := range cities[1:] {
			for _, leg := range [][2]City{{hub, city}, {city, hub}} {
				for _, hour := range []int{6, 13} {
					trips = append(trips, newTrip(rng, leg[0], leg[1], date.Add(time.Duration(hour)*time.Hour)))
				}
			}
		}
	}
	return trips
}

func newTrip(rng *rand.Rand, from, to City, departure time.Time) models.Trip {
	bus := busTypes[rng.Intn(len(busTypes))]
	// road distance runs about a third longer than the great circle
	km := haversineKm(from, to) * 1.3
	duration := time.Duration(km / avgSpeedKmh * float64(time.Hour)).Round(15 * time.Minute)

	return models.Trip{
		ID:             fmt.Sprintf("%s-%s-%s", slug(from.Name), slug(to.Name), departure.Format("200601021504")),
		Origin:         from.Name,
		Destination:    to.Name,
		DepartureTime:  departure,
		ArrivalTime:    departure.Add(duration),
		Price:          math.Round(km*bus.Rate/10) * 10,
		Operator:       operators[rng.Intn(len(operators))],
		AvailableSeats: bus.Seats - rng.Intn(bus.Seats/2),
		TotalSeats:     bus.Seats,
		BusType:        bus.Name,
		Features:       bus.Features,
	}
}

func slug(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'A' && r <= 'Z':
			out = append(out, r+('a'-'A'))
		case r == ' ':
			out = append(out, '-')
		default:
			out = append(out, r)
		}
	}
	return string(out)
}

// staffAccounts are created active, bypassing the approval flow.
var staffAccounts = []models.Account{
	{Name: "Portal Admin", Email: "admin@feresegna.et", Role: models.RoleAdmin},
	{Name: "Selam Operations", Email: "operator@feresegna.et", Role: models.RoleOperator},
	{Name: "Dawit Driver", Email: "driver@feresegna.et", Role: models.RoleDriver, LicenseNo: "AA-DL-0001"},
}

func seedStaff(ctx context.Context, accounts db.AccountCollection, authService *auth.Service, password string) int {
	hash, err := authService.HashPassword(password)
	if err != nil {
		log.WithError(err).Error("Failed to hash staff password")
		return 0
	}

	created := 0
	for _, account := range staffAccounts {
		account.PasswordHash = hash
		account.Status = models.StatusActive
		err := accounts.InsertAccount(ctx, &account)
		if errors.Is(err, db.ErrDuplicateEmail) {
			log.WithField("email", account.Email).Info("Staff account already exists")
			continue
		}
		if err != nil {
			log.WithError(err).WithField("email", account.Email).Error("Failed to create staff account")
			continue
		}
		created++
		log.WithFields(log.Fields{"email": account.Email, "role": account.Role}).Info("Created staff account")
	}
	return created
}

// registerDemoPassenger signs the demo passenger up through the identity API,
// which exercises the same path as a real registration.
func registerDemoPassenger(ctx context.Context, client *identity.Client, password string) error {
	resp, err := client.Register(ctx, models.RegisterRequest{
		Name:     "Demo Passenger",
		Email:    "passenger@feresegna.et",
		Phone:    "+251911000000",
		Password: password,
	})
	var apiErr *identity.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict {
		log.Info("Demo passenger already exists")
		return nil
	}
	if err != nil {
		return fmt.Errorf("register demo passenger: %w", err)
	}
	log.WithField("user_id", resp.User.ID).Info("Registered demo passenger")
	return nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Invalid configuration")
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	days := 14
	if val := os.Getenv("SEED_DAYS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n >= 1 {
			days = n
		}
	}
	password := os.Getenv("SEED_PASSWORD")
	if password == "" {
		password = "feresegna123"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	client, err := db.ConnectMongo(ctx, cfg.MongoURI)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to MongoDB")
	}
	defer client.Disconnect(context.Background())
	database := client.Database(cfg.MongoDatabase)

	accounts := &db.MongoAccountCollection{Collection: database.Collection(db.UsersCollection)}
	if err := accounts.EnsureIndexes(ctx); err != nil {
		log.WithError(err).Fatal("Failed to create account indexes")
	}
	authService := auth.NewService(cfg.JWTSecret, cfg.JWTExpiration)
	staff := seedStaff(ctx, accounts, authService, password)

	if err := registerDemoPassenger(ctx, identity.NewClient(cfg.IdentityURL, nil), password); err != nil {
		log.WithError(err).Warn("Skipping demo passenger. Is the identity service running?")
	}

	catalog := &db.MongoTripCollection{Collection: database.Collection(db.TripsCollection)}
	trips := generateTrips(rand.New(rand.NewSource(time.Now().UnixNano())), time.Now(), days)
	inserted := 0
	for _, trip := range trips {
		if err := catalog.InsertTrip(ctx, trip); err != nil {
			log.WithError(err).WithField("trip_id", trip.ID).Error("Failed to insert trip")
			continue
		}
		inserted++
	}

	log.WithFields(log.Fields{
		"staff_created":  staff,
		"trips_inserted": inserted,
		"days":           days,
	}).Info("Seeding completed")
}
