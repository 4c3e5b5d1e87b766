// Package booking holds the in-progress trip and seat selection of a single
// client and turns it into a booking draft.
package booking

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/feresegna/bus-portal/internal/models"
)

// State is a consistent snapshot of the tracker.
type State struct {
	SearchParams  models.SearchParams `json:"searchParams"`
	SelectedTrip  *models.Trip        `json:"selectedTrip"`
	SelectedSeats []models.Seat       `json:"selectedSeats"`
	Booking       *models.Booking     `json:"booking"`
}

// Tracker owns the search, trip, seat and booking draft selection.
// All methods are safe for concurrent use and never block on I/O.
type Tracker struct {
	mu      sync.Mutex
	search  models.SearchParams
	trip    *models.Trip
	seats   []models.Seat
	booking *models.Booking

	newBookingID func() string
}

// NewTracker creates a tracker with the default search criteria.
func NewTracker(now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{
		search: models.SearchParams{
			Date:       now(),
			Passengers: 1,
		},
		seats:        []models.Seat{},
		newBookingID: uuid.NewString,
	}
}

// SetNewBookingIDForTest overrides booking ID generation for deterministic tests.
func (t *Tracker) SetNewBookingIDForTest(fn func() string) {
	if fn != nil {
		t.newBookingID = fn
	}
}

// SetSearchParams replaces the search criteria. The trip and seat selection
// are left alone.
func (t *Tracker) SetSearchParams(params models.SearchParams) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.search = params
}

// SelectTrip replaces the selected trip, empties the seat selection and
// drops any booking draft. Seats picked for one trip are never carried over
// to another.
func (t *Tracker) SelectTrip(trip models.Trip) {
	t.mu.Lock()
	defer t.mu.Unlock()
	trip = cloneTrip(trip)
	t.trip = &trip
	t.seats = []models.Seat{}
	t.booking = nil
}

// SelectSeat toggles a seat: a seat whose ID is already selected is removed,
// otherwise it is appended. The resulting selection is returned.
func (t *Tracker) SelectSeat(seat models.Seat) []models.Seat {
	t.mu.Lock()
	defer t.mu.Unlock()

	next := make([]models.Seat, 0, len(t.seats)+1)
	removed := false
	for _, s := range t.seats {
		if s.ID == seat.ID {
			removed = true
			continue
		}
		next = append(next, s)
	}
	if !removed {
		next = append(next, seat)
	}
	t.seats = next
	return cloneSeats(next)
}

// CreateBooking builds a pending booking draft from the current selection and
// makes it the active booking.
func (t *Tracker) CreateBooking() (models.Booking, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.trip == nil {
		return models.Booking{}, ErrNoTripSelected
	}
	if len(t.seats) == 0 {
		return models.Booking{}, ErrNoSeatsSelected
	}

	seats := cloneSeats(t.seats)
	b := models.Booking{
		ID:         t.newBookingID(),
		TripID:     t.trip.ID,
		Trip:       cloneTrip(*t.trip),
		Seats:      seats,
		TotalPrice: t.trip.Price * float64(len(seats)),
		Status:     models.BookingPending,
	}
	t.booking = &b
	return cloneBooking(b), nil
}

// SetPaymentMethod records the payment method on the active booking draft.
func (t *Tracker) SetPaymentMethod(method string) (models.Booking, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.booking == nil {
		return models.Booking{}, ErrNoActiveBooking
	}
	t.booking.PaymentMethod = method
	return cloneBooking(*t.booking), nil
}

// ClearBooking resets the trip, the seats and the booking draft.
func (t *Tracker) ClearBooking() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.trip = nil
	t.seats = []models.Seat{}
	t.booking = nil
}

// State returns a snapshot that later mutations do not affect.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()

	st := State{
		SearchParams:  t.search,
		SelectedSeats: cloneSeats(t.seats),
	}
	if t.trip != nil {
		trip := cloneTrip(*t.trip)
		st.SelectedTrip = &trip
	}
	if t.booking != nil {
		b := cloneBooking(*t.booking)
		st.Booking = &b
	}
	return st
}

func cloneSeats(seats []models.Seat) []models.Seat {
	out := make([]models.Seat, len(seats))
	copy(out, seats)
	return out
}

func cloneTrip(trip models.Trip) models.Trip {
	if trip.Features != nil {
		trip.Features = append([]string(nil), trip.Features...)
	}
	return trip
}

func cloneBooking(b models.Booking) models.Booking {
	b.Trip = cloneTrip(b.Trip)
	b.Seats = cloneSeats(b.Seats)
	return b
}
