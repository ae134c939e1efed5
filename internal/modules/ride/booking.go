// README: Booking state machine; every transition that moves seats goes through reserve or release.
package ride

import (
	"time"

	"carpool/internal/types"
)

// BookRequest describes a passenger's seat request.
type BookRequest struct {
	PassengerID types.ID
	Seats       int
	Pickup      string
	Drop        string
	Contact     string
}

// Book reserves seats and returns a pending booking.
func (r *Ride) Book(req BookRequest, now time.Time) (*Booking, error) {
	switch r.Status {
	case StatusCancelled:
		return nil, types.Errorf(types.ErrValidation, "This ride has been cancelled")
	case StatusCompleted:
		return nil, types.Errorf(types.ErrValidation, "This ride has already completed")
	case StatusOngoing:
		return nil, types.Errorf(types.ErrValidation, "Cannot book a ride that has already started")
	}
	if r.StartTime.Before(now) {
		return nil, types.Errorf(types.ErrValidation, "Cannot book a ride that has already started")
	}
	if req.PassengerID == r.DriverID {
		return nil, types.Errorf(types.ErrValidation, "You cannot book your own ride")
	}
	if req.Seats < 1 {
		return nil, types.Errorf(types.ErrValidation, "Please select at least 1 seat")
	}
	if req.Seats > r.availableSeats {
		return nil, types.Errorf(types.ErrValidation, "Only %d seat(s) available", r.availableSeats)
	}
	if err := r.reserve(req.Seats); err != nil {
		return nil, err
	}
	return &Booking{
		ID:          types.NewID(),
		RideID:      r.ID,
		PassengerID: req.PassengerID,
		Seats:       req.Seats,
		Status:      BookingPending,
		Progress:    ProgressUpcoming,
		Pickup:      req.Pickup,
		Drop:        req.Drop,
		Contact:     req.Contact,
		CreatedAt:   now,
	}, nil
}

// Confirm accepts a pending booking while the ride is still open. Its seats were
// reserved at creation, so the only inventory check is that the ride still accounts for them.
func (r *Ride) Confirm(b *Booking) error {
	if err := r.owns(b); err != nil {
		return err
	}
	if r.Status != StatusUpcoming && r.Status != StatusOngoing {
		return types.Errorf(types.ErrState, "Ride is %s; bookings can no longer be confirmed", r.Status)
	}
	if !CanTransitionBooking(b.Status, BookingConfirmed) {
		return types.Errorf(types.ErrState, "Booking is %s; only pending bookings can be confirmed", b.Status)
	}
	if b.Seats > r.ReservedSeats() {
		return types.Errorf(types.ErrConflict, "seat inventory out of sync on ride %s", r.ID)
	}
	b.Status = BookingConfirmed
	return nil
}

// Reject declines a pending booking and returns its seats.
func (r *Ride) Reject(b *Booking) error {
	if err := r.owns(b); err != nil {
		return err
	}
	if !CanTransitionBooking(b.Status, BookingRejected) {
		return types.Errorf(types.ErrState, "Booking is %s; only pending bookings can be rejected", b.Status)
	}
	if err := r.release(b.Seats); err != nil {
		return err
	}
	b.Status = BookingRejected
	return nil
}

// CancelBooking withdraws a pending or confirmed booking and returns its seats.
func (r *Ride) CancelBooking(b *Booking) error {
	if err := r.owns(b); err != nil {
		return err
	}
	if !CanTransitionBooking(b.Status, BookingCancelled) {
		return types.Errorf(types.ErrState, "Booking is already %s", b.Status)
	}
	if err := r.release(b.Seats); err != nil {
		return err
	}
	b.Status = BookingCancelled
	return nil
}

// CompleteLeg marks the passenger's own trip finished while the ride continues.
func (r *Ride) CompleteLeg(b *Booking, at time.Time) error {
	if err := r.owns(b); err != nil {
		return err
	}
	if b.Status != BookingConfirmed {
		return types.Errorf(types.ErrState, "Only confirmed bookings can be completed")
	}
	if r.Status != StatusOngoing {
		return types.Errorf(types.ErrState, "Ride is %s; a leg can only be completed during the ride", r.Status)
	}
	if b.Progress == ProgressCompleted {
		return types.Errorf(types.ErrState, "Ride already marked as completed")
	}
	b.Progress = ProgressCompleted
	t := at
	b.PassengerCompletedAt = &t
	return nil
}

func (r *Ride) owns(b *Booking) error {
	if b.RideID != r.ID {
		return types.Errorf(types.ErrValidation, "booking %s does not belong to ride %s", b.ID, r.ID)
	}
	return nil
}
