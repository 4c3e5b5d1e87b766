package booking

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feresegna/bus-portal/internal/models"
)

func testTrip(id string, price float64) models.Trip {
	dep := time.Date(2026, 10, 20, 6, 0, 0, 0, time.UTC)
	return models.Trip{
		ID:             id,
		Origin:         "Addis Ababa",
		Destination:    "Hawassa",
		DepartureTime:  dep,
		ArrivalTime:    dep.Add(5 * time.Hour),
		Price:          price,
		Operator:       "Selam Bus",
		AvailableSeats: 30,
		TotalSeats:     45,
		BusType:        "Coach",
		Features:       []string{"wifi", "ac"},
	}
}

func seat(n int) models.Seat {
	return models.Seat{ID: fmt.Sprintf("seat-%d", n), Number: fmt.Sprintf("%d", n), Type: models.SeatStandard}
}

func TestNewTracker_Defaults(t *testing.T) {
	now := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	tr := NewTracker(func() time.Time { return now })

	st := tr.State()
	assert.Equal(t, "", st.SearchParams.Origin)
	assert.Equal(t, "", st.SearchParams.Destination)
	assert.Equal(t, now, st.SearchParams.Date)
	assert.Equal(t, 1, st.SearchParams.Passengers)
	assert.Nil(t, st.SelectedTrip)
	assert.Empty(t, st.SelectedSeats)
	assert.Nil(t, st.Booking)
}

func TestTracker_SetSearchParamsKeepsSelection(t *testing.T) {
	tr := NewTracker(nil)
	tr.SelectTrip(testTrip("t1", 350))
	tr.SelectSeat(seat(1))

	params := models.SearchParams{Origin: "Addis Ababa", Destination: "Gondar", Date: time.Now(), Passengers: 3}
	tr.SetSearchParams(params)

	st := tr.State()
	assert.Equal(t, params, st.SearchParams)
	require.NotNil(t, st.SelectedTrip)
	assert.Equal(t, "t1", st.SelectedTrip.ID)
	assert.Len(t, st.SelectedSeats, 1)
}

func TestTracker_SelectTripClearsSeats(t *testing.T) {
	tr := NewTracker(nil)
	trips := []models.Trip{testTrip("t1", 100), testTrip("t2", 200), testTrip("t1", 100)}

	for i, trip := range trips {
		for n := 0; n <= i+1; n++ {
			tr.SelectSeat(seat(n))
		}
		tr.SelectTrip(trip)

		st := tr.State()
		assert.Empty(t, st.SelectedSeats, "selection after SelectTrip #%d", i)
		require.NotNil(t, st.SelectedTrip)
		assert.Equal(t, trip.ID, st.SelectedTrip.ID)
	}
}

func TestTracker_SelectSeatToggles(t *testing.T) {
	tr := NewTracker(nil)
	tr.SelectTrip(testTrip("t1", 100))

	got := tr.SelectSeat(seat(3))
	assert.Equal(t, []models.Seat{seat(3)}, got)

	got = tr.SelectSeat(seat(1))
	assert.Equal(t, []models.Seat{seat(3), seat(1)}, got, "insertion order is kept")

	got = tr.SelectSeat(seat(3))
	assert.Equal(t, []models.Seat{seat(1)}, got)

	// Toggle matches on ID only.
	got = tr.SelectSeat(models.Seat{ID: "seat-1", Number: "1A", Type: models.SeatVIP})
	assert.Empty(t, got)
}

func TestTracker_SelectSeatTwiceIsIdentity(t *testing.T) {
	starts := [][]int{{}, {1}, {1, 2, 3}, {4, 2}}
	for _, start := range starts {
		for _, toggled := range []int{1, 2, 5} {
			t.Run(fmt.Sprintf("%v toggle %d", start, toggled), func(t *testing.T) {
				tr := NewTracker(nil)
				for _, n := range start {
					tr.SelectSeat(seat(n))
				}
				before := tr.State().SelectedSeats

				tr.SelectSeat(seat(toggled))
				tr.SelectSeat(seat(toggled))

				after := tr.State().SelectedSeats
				assert.ElementsMatch(t, before, after)
			})
		}
	}
}

func TestTracker_CreateBookingPreconditions(t *testing.T) {
	t.Run("no trip, no seats", func(t *testing.T) {
		tr := NewTracker(nil)
		_, err := tr.CreateBooking()
		assert.ErrorIs(t, err, ErrNoTripSelected)
	})

	t.Run("no trip, seats selected", func(t *testing.T) {
		tr := NewTracker(nil)
		tr.SelectSeat(seat(1))
		_, err := tr.CreateBooking()
		assert.ErrorIs(t, err, ErrNoTripSelected)
	})

	t.Run("trip, no seats", func(t *testing.T) {
		tr := NewTracker(nil)
		tr.SelectTrip(testTrip("t1", 100))
		_, err := tr.CreateBooking()
		assert.ErrorIs(t, err, ErrNoSeatsSelected)

		var pe *PreconditionError
		require.True(t, errors.As(err, &pe))
		assert.Equal(t, "seats", pe.Missing)
		assert.Nil(t, tr.State().Booking)
	})

	t.Run("seats toggled back to empty", func(t *testing.T) {
		tr := NewTracker(nil)
		tr.SelectTrip(testTrip("t1", 100))
		tr.SelectSeat(seat(1))
		tr.SelectSeat(seat(1))
		_, err := tr.CreateBooking()
		assert.ErrorIs(t, err, ErrNoSeatsSelected)
	})
}

func TestTracker_CreateBookingTotals(t *testing.T) {
	for _, price := range []float64{1, 250, 612.5} {
		for count := 1; count <= 4; count++ {
			t.Run(fmt.Sprintf("%.1f x %d", price, count), func(t *testing.T) {
				tr := NewTracker(nil)
				tr.SetNewBookingIDForTest(func() string { return "bk-1" })
				trip := testTrip("t9", price)
				tr.SelectTrip(trip)
				for n := 0; n < count; n++ {
					tr.SelectSeat(seat(n))
				}

				b, err := tr.CreateBooking()
				require.NoError(t, err)
				assert.Equal(t, "bk-1", b.ID)
				assert.Equal(t, "t9", b.TripID)
				assert.Equal(t, trip, b.Trip)
				assert.Len(t, b.Seats, count)
				assert.Equal(t, price*float64(count), b.TotalPrice)
				assert.Equal(t, models.BookingPending, b.Status)
				assert.Empty(t, b.PaymentMethod)

				st := tr.State()
				require.NotNil(t, st.Booking)
				assert.Equal(t, b, *st.Booking)
			})
		}
	}
}

func TestTracker_CreateBookingGeneratesFreshIDs(t *testing.T) {
	tr := NewTracker(nil)
	tr.SelectTrip(testTrip("t1", 100))
	tr.SelectSeat(seat(1))

	first, err := tr.CreateBooking()
	require.NoError(t, err)
	second, err := tr.CreateBooking()
	require.NoError(t, err)

	assert.NotEmpty(t, first.ID)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, second.ID, tr.State().Booking.ID)
}

func TestTracker_BookingSeatsAreSnapshot(t *testing.T) {
	tr := NewTracker(nil)
	tr.SelectTrip(testTrip("t1", 100))
	tr.SelectSeat(seat(1))
	tr.SelectSeat(seat(2))

	b, err := tr.CreateBooking()
	require.NoError(t, err)

	tr.SelectSeat(seat(1))
	b.Seats[0].Number = "mutated"

	st := tr.State()
	assert.Len(t, st.Booking.Seats, 2)
	assert.Equal(t, "1", st.Booking.Seats[0].Number)
	assert.Equal(t, []models.Seat{seat(2)}, st.SelectedSeats)
}

func TestTracker_SelectTripDropsDraft(t *testing.T) {
	tr := NewTracker(nil)
	tr.SelectTrip(testTrip("t1", 100))
	tr.SelectSeat(seat(1))
	_, err := tr.CreateBooking()
	require.NoError(t, err)

	tr.SelectTrip(testTrip("t2", 200))

	st := tr.State()
	require.NotNil(t, st.SelectedTrip)
	assert.Equal(t, "t2", st.SelectedTrip.ID)
	assert.Empty(t, st.SelectedSeats)
	assert.Nil(t, st.Booking)

	_, err = tr.SetPaymentMethod("telebirr")
	assert.ErrorIs(t, err, ErrNoActiveBooking)
}

func TestTracker_TripFeaturesAreSnapshot(t *testing.T) {
	trip := testTrip("t1", 100)
	tr := NewTracker(nil)
	tr.SelectTrip(trip)
	tr.SelectSeat(seat(1))

	trip.Features[0] = "caller"

	st := tr.State()
	st.SelectedTrip.Features[0] = "state"

	b, err := tr.CreateBooking()
	require.NoError(t, err)
	b.Trip.Features[1] = "booking"

	st = tr.State()
	assert.Equal(t, []string{"wifi", "ac"}, st.SelectedTrip.Features)
	assert.Equal(t, []string{"wifi", "ac"}, st.Booking.Trip.Features)
}

func TestTracker_SetPaymentMethod(t *testing.T) {
	tr := NewTracker(nil)
	_, err := tr.SetPaymentMethod("telebirr")
	assert.ErrorIs(t, err, ErrNoActiveBooking)

	tr.SelectTrip(testTrip("t1", 100))
	tr.SelectSeat(seat(1))
	_, err = tr.CreateBooking()
	require.NoError(t, err)

	b, err := tr.SetPaymentMethod("telebirr")
	require.NoError(t, err)
	assert.Equal(t, "telebirr", b.PaymentMethod)
	assert.Equal(t, "telebirr", tr.State().Booking.PaymentMethod)
}

func TestTracker_ClearBooking(t *testing.T) {
	t.Run("full selection", func(t *testing.T) {
		tr := NewTracker(nil)
		params := models.SearchParams{Origin: "Adama", Destination: "Dire Dawa", Passengers: 2}
		tr.SetSearchParams(params)
		tr.SelectTrip(testTrip("t1", 100))
		tr.SelectSeat(seat(1))
		_, err := tr.CreateBooking()
		require.NoError(t, err)

		tr.ClearBooking()

		st := tr.State()
		assert.Nil(t, st.SelectedTrip)
		assert.Empty(t, st.SelectedSeats)
		assert.Nil(t, st.Booking)
		assert.Equal(t, params, st.SearchParams)
	})

	t.Run("seats without trip", func(t *testing.T) {
		tr := NewTracker(nil)
		tr.SelectSeat(seat(4))
		tr.ClearBooking()
		assert.Empty(t, tr.State().SelectedSeats)
	})
}

func TestTracker_ConcurrentToggles(t *testing.T) {
	tr := NewTracker(nil)
	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func(n int) {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 100; j++ {
				tr.SelectSeat(seat(n))
			}
		}(i)
	}
	for i := 0; i < 8; i++ {
		<-done
	}
	// Each seat was toggled an even number of times.
	assert.Empty(t, tr.State().SelectedSeats)
}
