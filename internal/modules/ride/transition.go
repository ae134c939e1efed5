// README: Ride state machine; transitions mutate the ride and return the booking-side effects to apply.
package ride

import (
	"time"

	"carpool/internal/types"
)

type EffectKind string

const (
	EffectMarkOngoing EffectKind = "mark_ongoing"
	EffectComplete    EffectKind = "complete"
	EffectCancel      EffectKind = "cancel"
	EffectReject      EffectKind = "reject"
)

// Effect is a booking change implied by a ride transition.
type Effect struct {
	BookingID types.ID
	Kind      EffectKind
}

// Start moves an upcoming ride to ongoing. Travel is the expected driving time.
func (r *Ride) Start(at time.Time, travel time.Duration, bookings []*Booking) ([]Effect, error) {
	if !CanTransition(r.Status, StatusOngoing) {
		return nil, types.Errorf(types.ErrState, "Ride is %s and cannot be started", r.Status)
	}
	r.Status = StatusOngoing
	started := at
	r.ActualStart = &started
	if r.EstimatedEnd == nil {
		end := at.Add(travel)
		r.EstimatedEnd = &end
	}
	r.BufferMinutes = BufferForDistance(r.DistanceKm)

	var effects []Effect
	for _, b := range bookings {
		if b.Status == BookingConfirmed {
			effects = append(effects, Effect{BookingID: b.ID, Kind: EffectMarkOngoing})
		}
	}
	return effects, nil
}

// End completes an ongoing ride, closed either by the driver or automatically.
func (r *Ride) End(at time.Time, by Closer, bookings []*Booking) ([]Effect, error) {
	if !CanTransition(r.Status, StatusCompleted) {
		return nil, types.Errorf(types.ErrState, "Ride is %s and cannot be ended", r.Status)
	}
	r.Status = StatusCompleted
	ended := at
	r.ActualEnd = &ended
	r.CompletedBy = by
	r.AutoCompleted = by == ClosedByAuto

	var effects []Effect
	for _, b := range bookings {
		if b.Status == BookingConfirmed {
			effects = append(effects, Effect{BookingID: b.ID, Kind: EffectComplete})
		}
	}
	return effects, nil
}

// Cancel withdraws an upcoming ride before its scheduled start.
func (r *Ride) Cancel(now time.Time, bookings []*Booking) ([]Effect, error) {
	if !CanTransition(r.Status, StatusCancelled) {
		return nil, types.Errorf(types.ErrState, "Ride is %s and cannot be cancelled", r.Status)
	}
	if !now.Before(r.StartTime) {
		return nil, types.Errorf(types.ErrState, "Cannot cancel a ride that has already started")
	}
	r.Status = StatusCancelled

	var effects []Effect
	for _, b := range bookings {
		if b.Active() {
			effects = append(effects, Effect{BookingID: b.ID, Kind: EffectCancel})
		}
	}
	return effects, nil
}

// ShouldAutoComplete reports whether an ongoing ride is past its estimated end plus buffer.
func (r *Ride) ShouldAutoComplete(now time.Time) bool {
	if r.Status != StatusOngoing || r.EstimatedEnd == nil {
		return false
	}
	deadline := r.EstimatedEnd.Add(time.Duration(r.BufferMinutes) * time.Minute)
	return !now.Before(deadline)
}

// SeverelyOverdue reports whether an upcoming ride never started more than OverdueAfter past its start.
func (r *Ride) SeverelyOverdue(now time.Time) bool {
	return r.Status == StatusUpcoming && now.Sub(r.StartTime) > OverdueAfter
}

// RepairOverdue force-starts a severely overdue ride at its scheduled start, completes it
// automatically at now and rejects bookings that were never answered.
func (r *Ride) RepairOverdue(now time.Time, travel time.Duration, bookings []*Booking) ([]Effect, error) {
	if !r.SeverelyOverdue(now) {
		return nil, types.Errorf(types.ErrState, "Ride %s is not overdue", r.ID)
	}
	if _, err := r.Start(r.StartTime, travel, bookings); err != nil {
		return nil, err
	}
	effects, err := r.End(now, ClosedByAuto, bookings)
	if err != nil {
		return nil, err
	}
	for _, b := range bookings {
		if b.Status == BookingPending {
			effects = append(effects, Effect{BookingID: b.ID, Kind: EffectReject})
		}
	}
	return effects, nil
}

// Apply performs one effect on its booking.
func (r *Ride) Apply(e Effect, b *Booking, at time.Time) error {
	if b.ID != e.BookingID {
		return types.Errorf(types.ErrValidation, "effect for %s applied to booking %s", e.BookingID, b.ID)
	}
	switch e.Kind {
	case EffectMarkOngoing:
		b.Progress = ProgressOngoing
		return nil
	case EffectComplete:
		if !CanTransitionBooking(b.Status, BookingCompleted) {
			return types.Errorf(types.ErrState, "Booking is %s and cannot be completed", b.Status)
		}
		b.Status = BookingCompleted
		b.Progress = ProgressCompleted
		if b.PassengerCompletedAt == nil {
			t := at
			b.PassengerCompletedAt = &t
		}
		return nil
	case EffectCancel:
		return r.CancelBooking(b)
	case EffectReject:
		return r.Reject(b)
	}
	return types.Errorf(types.ErrValidation, "unknown effect %q", e.Kind)
}

// ApplyAll performs effects against bookings indexed by ID and returns the bookings it changed.
func (r *Ride) ApplyAll(effects []Effect, bookings []*Booking, at time.Time) ([]*Booking, error) {
	byID := make(map[types.ID]*Booking, len(bookings))
	for _, b := range bookings {
		byID[b.ID] = b
	}
	changed := make([]*Booking, 0, len(effects))
	seen := map[types.ID]bool{}
	for _, e := range effects {
		b, ok := byID[e.BookingID]
		if !ok {
			return nil, types.Errorf(types.ErrNotFound, "booking %s not found", e.BookingID)
		}
		if err := r.Apply(e, b, at); err != nil {
			return nil, err
		}
		if !seen[b.ID] {
			seen[b.ID] = true
			changed = append(changed, b)
		}
	}
	return changed, nil
}
