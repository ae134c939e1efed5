// README: Seat inventory; the only code that changes a ride's available seat count.
package ride

import "carpool/internal/types"

// Open returns an upcoming ride with every seat available.
func Open(r Ride) *Ride {
	r.Status = StatusUpcoming
	r.availableSeats = r.TotalSeats
	if r.BufferMinutes == 0 {
		r.BufferMinutes = DefaultBufferMinutes
	}
	return &r
}

// ReservedSeats is the number of seats currently held by pending and confirmed bookings.
func (r *Ride) ReservedSeats() int {
	return r.TotalSeats - r.availableSeats
}

func (r *Ride) reserve(n int) error {
	if n < 1 {
		return types.Errorf(types.ErrValidation, "Please select at least 1 seat")
	}
	if n > r.availableSeats {
		return types.Errorf(types.ErrConflict, "only %d seat(s) left on ride %s", r.availableSeats, r.ID)
	}
	r.availableSeats -= n
	return nil
}

func (r *Ride) release(n int) error {
	if n < 1 || r.availableSeats+n > r.TotalSeats {
		return types.Errorf(types.ErrConflict, "seat inventory out of sync on ride %s", r.ID)
	}
	r.availableSeats += n
	return nil
}
