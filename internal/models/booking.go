package models

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
)

// Booking is a draft reservation of one or more seats on a trip.
type Booking struct {
	ID            string        `json:"id"`
	TripID        string        `json:"tripId"`
	Trip          Trip          `json:"trip"`
	Seats         []Seat        `json:"seats"`
	TotalPrice    float64       `json:"totalPrice"`
	Status        BookingStatus `json:"status"`
	PaymentMethod string        `json:"paymentMethod,omitempty"`
}
