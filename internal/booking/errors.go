package booking

// PreconditionError reports that a booking was requested before the selection
// was complete. Reaching it from the UI flow is a defect.
type PreconditionError struct {
	Missing string
}

func (e *PreconditionError) Error() string {
	return "booking: no " + e.Missing + " selected"
}

var (
	ErrNoTripSelected  = &PreconditionError{Missing: "trip"}
	ErrNoSeatsSelected = &PreconditionError{Missing: "seats"}
	ErrNoActiveBooking = &PreconditionError{Missing: "booking"}
)
