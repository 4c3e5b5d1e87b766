package models

import (
	"errors"
	"strings"
	"time"
)

// Trip is a scheduled bus departure offered for booking.
type Trip struct {
	ID             string    `bson:"_id" json:"id"`
	Origin         string    `bson:"origin" json:"origin"`
	Destination    string    `bson:"destination" json:"destination"`
	DepartureTime  time.Time `bson:"departure_time" json:"departureTime"`
	ArrivalTime    time.Time `bson:"arrival_time" json:"arrivalTime"`
	Price          float64   `bson:"price" json:"price"`
	Operator       string    `bson:"operator" json:"operator"`
	AvailableSeats int       `bson:"available_seats" json:"availableSeats"`
	TotalSeats     int       `bson:"total_seats" json:"totalSeats"`
	BusType        string    `bson:"bus_type" json:"busType"`
	Features       []string  `bson:"features" json:"features"`
}

var (
	ErrSameCity     = errors.New("origin and destination must differ")
	ErrInvalidPrice = errors.New("price must be positive")
	ErrInvalidSeats = errors.New("available seats must be between 0 and total seats")
	ErrInvalidTimes = errors.New("arrival must be after departure")
)

// Validate checks a trip before it is put in the catalog.
func (t Trip) Validate() error {
	if strings.TrimSpace(t.Origin) == "" {
		return ErrMissingOrigin
	}
	if strings.TrimSpace(t.Destination) == "" {
		return ErrMissingDestination
	}
	if strings.EqualFold(strings.TrimSpace(t.Origin), strings.TrimSpace(t.Destination)) {
		return ErrSameCity
	}
	if t.Price <= 0 {
		return ErrInvalidPrice
	}
	if t.TotalSeats < 1 || t.AvailableSeats < 0 || t.AvailableSeats > t.TotalSeats {
		return ErrInvalidSeats
	}
	if t.DepartureTime.IsZero() || !t.ArrivalTime.After(t.DepartureTime) {
		return ErrInvalidTimes
	}
	return nil
}

// SeatType is the fare class of a seat.
type SeatType string

const (
	SeatStandard SeatType = "standard"
	SeatPremium  SeatType = "premium"
	SeatVIP      SeatType = "vip"
)

// IsValidSeatType checks if a seat type is valid
func IsValidSeatType(t SeatType) bool {
	switch t {
	case SeatStandard, SeatPremium, SeatVIP:
		return true
	default:
		return false
	}
}

// Seat is a single seat on a bus.
type Seat struct {
	ID     string   `json:"id"`
	Number string   `json:"number"`
	Type   SeatType `json:"type"`
}

// SearchParams are the criteria of a trip search.
type SearchParams struct {
	Origin      string    `json:"origin"`
	Destination string    `json:"destination"`
	Date        time.Time `json:"date"`
	Passengers  int       `json:"passengers"`
}

var (
	ErrMissingOrigin      = errors.New("origin is required")
	ErrMissingDestination = errors.New("destination is required")
	ErrInvalidPassengers  = errors.New("passengers must be at least 1")
)

// Validate checks that the search can be run.
func (p SearchParams) Validate() error {
	if strings.TrimSpace(p.Origin) == "" {
		return ErrMissingOrigin
	}
	if strings.TrimSpace(p.Destination) == "" {
		return ErrMissingDestination
	}
	if p.Passengers < 1 {
		return ErrInvalidPassengers
	}
	return nil
}
