// README: Ride service; runs every ride and booking transition in one store transaction and publishes events after commit.
package ride

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"carpool/internal/modules/fare"
	"carpool/internal/modules/notify"
	"carpool/internal/modules/timewindow"
	"carpool/internal/observability"
	"carpool/internal/types"
)

// VehicleProfile is what pricing needs to know about a vehicle.
type VehicleProfile struct {
	ID       types.ID
	OwnerID  types.ID
	FuelType types.FuelType
	Mileage  float64
}

type Vehicles interface {
	Profile(ctx context.Context, id types.ID) (VehicleProfile, error)
}

type Deps struct {
	Store     Store
	Vehicles  Vehicles
	Fare      *fare.Calculator
	Window    *timewindow.Validator
	Publisher notify.Publisher
	Gate      SweepGate
	Clock     func() time.Time
	Logger    logrus.FieldLogger
}

type Service struct {
	store     Store
	vehicles  Vehicles
	fare      *fare.Calculator
	window    *timewindow.Validator
	publisher notify.Publisher
	gate      SweepGate
	now       func() time.Time
	log       logrus.FieldLogger
}

func NewService(d Deps) *Service {
	s := &Service{
		store:     d.Store,
		vehicles:  d.Vehicles,
		fare:      d.Fare,
		window:    d.Window,
		publisher: d.Publisher,
		gate:      d.Gate,
		now:       d.Clock,
		log:       d.Logger,
	}
	if s.fare == nil {
		s.fare = fare.NewCalculator("", nil)
	}
	if s.window == nil {
		s.window = timewindow.New(time.UTC)
	}
	if s.publisher == nil {
		s.publisher = notify.Nop{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.log == nil {
		s.log = logrus.StandardLogger()
	}
	return s
}

type OfferCommand struct {
	DriverID    types.ID
	VehicleID   types.ID
	Origin      string
	Destination string
	StartTime   time.Time
	Seats       int
	DistanceKm  float64
	Package     types.PackageType
}

type BookCommand struct {
	RideID      types.ID
	PassengerID types.ID
	Seats       int
	Pickup      string
	Drop        string
	Contact     string
}

func (s *Service) OfferRide(ctx context.Context, cmd OfferCommand) (*Ride, error) {
	cmd.Origin, cmd.Destination = strings.TrimSpace(cmd.Origin), strings.TrimSpace(cmd.Destination)
	if cmd.DriverID == "" || cmd.VehicleID == "" || cmd.Origin == "" || cmd.Destination == "" {
		return nil, types.Errorf(types.ErrValidation, "Please fill in all required fields")
	}
	if cmd.Seats < 1 {
		return nil, types.Errorf(types.ErrValidation, "Available seats must be at least 1")
	}
	if cmd.DistanceKm <= 0 {
		return nil, types.Errorf(types.ErrValidation, "Distance must be greater than 0")
	}
	if cmd.DistanceKm > MaxDistanceKm {
		return nil, types.Errorf(types.ErrValidation, "Distance cannot exceed %d km", MaxDistanceKm)
	}
	now := s.now()
	if err := s.window.Validate(cmd.StartTime, cmd.DistanceKm, cmd.Package); err != nil {
		return nil, err
	}
	if err := s.window.ValidateHorizon(now, cmd.StartTime, cmd.Package); err != nil {
		return nil, err
	}

	v, err := s.vehicles.Profile(ctx, cmd.VehicleID)
	if err != nil {
		return nil, err
	}
	if v.OwnerID != cmd.DriverID {
		return nil, types.Errorf(types.ErrForbidden, "Vehicle does not belong to you")
	}
	if !types.ValidAmount(s.fare.PeriodCost(cmd.DistanceKm, v.FuelType, v.Mileage, cmd.Package)) {
		return nil, types.Errorf(types.ErrValidation, "Ride cost is too large to price; check the distance")
	}

	r := Open(Ride{
		ID:           types.NewID(),
		DriverID:     cmd.DriverID,
		VehicleID:    cmd.VehicleID,
		Origin:       cmd.Origin,
		Destination:  cmd.Destination,
		StartTime:    cmd.StartTime,
		EndTime:      cmd.StartTime.AddDate(0, 0, cmd.Package.Days()),
		TotalSeats:   cmd.Seats,
		PricePerSeat: s.fare.QuoteOffer(cmd.DistanceKm, v.FuelType, v.Mileage, cmd.Package, cmd.Seats),
		DistanceKm:   cmd.DistanceKm,
		FuelType:     v.FuelType,
		Mileage:      v.Mileage,
		Package:      cmd.Package,
		CreatedAt:    now,
	})

	err = s.inTx(ctx, func(tx Tx) error {
		if err := tx.CreateRide(ctx, r); err != nil {
			return err
		}
		return tx.AppendEvent(ctx, &Event{
			RideID:     r.ID,
			FromStatus: "none",
			ToStatus:   string(StatusUpcoming),
			ActorType:  ActorDriver,
			ActorID:    &cmd.DriverID,
			CreatedAt:  now,
		})
	})
	if err != nil {
		return nil, err
	}

	observability.RideTransitionsTotal.WithLabelValues(string(StatusUpcoming), ActorDriver).Inc()
	s.log.WithFields(logrus.Fields{"ride_id": r.ID, "driver_id": r.DriverID, "package": r.Package}).Info("ride offered")
	s.publish(ctx, notify.Event{
		Type:       notify.RideOffered,
		RideID:     r.ID,
		Recipients: []types.ID{r.DriverID},
		Message:    "Your ride from " + r.Origin + " to " + r.Destination + " is live",
		At:         now,
	})
	return r, nil
}

// RequestBooking validates against a snapshot, then reserves seats under the ride lock.
// A shortfall that only appears under the lock is reported as a conflict.
func (s *Service) RequestBooking(ctx context.Context, cmd BookCommand) (*Booking, error) {
	now := s.now()
	req := BookRequest{
		PassengerID: cmd.PassengerID,
		Seats:       cmd.Seats,
		Pickup:      strings.TrimSpace(cmd.Pickup),
		Drop:        strings.TrimSpace(cmd.Drop),
		Contact:     strings.TrimSpace(cmd.Contact),
	}
	snap, err := s.store.GetRide(ctx, cmd.RideID)
	if err != nil {
		return nil, err
	}
	if _, err := snap.Book(req, now); err != nil {
		return nil, err
	}

	var b *Booking
	err = s.inTx(ctx, func(tx Tx) error {
		r, err := tx.LockRide(ctx, cmd.RideID)
		if err != nil {
			return err
		}
		dup, err := tx.HasActiveBooking(ctx, r.ID, cmd.PassengerID)
		if err != nil {
			return err
		}
		if dup {
			return types.Errorf(types.ErrValidation, "You have already booked this ride")
		}
		if r.Status == StatusUpcoming && cmd.Seats > r.AvailableSeats() {
			return types.Errorf(types.ErrConflict, "Seats were taken by another booking; only %d left", r.AvailableSeats())
		}
		b, err = r.Book(req, now)
		if err != nil {
			return err
		}
		if err := tx.CreateBooking(ctx, b); err != nil {
			return err
		}
		if err := tx.UpdateRide(ctx, r); err != nil {
			return err
		}
		snap = r
		return tx.AppendEvent(ctx, bookingEvent(b, "none", string(BookingPending), ActorPassenger, cmd.PassengerID, now))
	})
	if err != nil {
		return nil, err
	}

	observability.BookingsTotal.WithLabelValues(string(BookingPending)).Inc()
	s.log.WithFields(logrus.Fields{"ride_id": b.RideID, "booking_id": b.ID, "seats": b.Seats}).Info("booking requested")
	s.publish(ctx, notify.Event{
		Type:       notify.BookingRequested,
		RideID:     b.RideID,
		BookingID:  b.ID,
		Recipients: []types.ID{snap.DriverID},
		Message:    "New booking request for your ride",
		At:         now,
	})
	return b, nil
}

func (s *Service) ConfirmBooking(ctx context.Context, bookingID, actor types.ID) (*Booking, error) {
	r, b, err := s.bookingTx(ctx, bookingID, actor, func(r *Ride, b *Booking) (string, error) {
		if actor != r.DriverID {
			return "", types.Errorf(types.ErrForbidden, "Only the driver can confirm bookings")
		}
		return ActorDriver, r.Confirm(b)
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, notify.Event{
		Type: notify.BookingConfirmed, RideID: r.ID, BookingID: b.ID,
		Recipients: []types.ID{b.PassengerID}, Message: "Your booking has been confirmed", At: s.now(),
	})
	return b, nil
}

func (s *Service) RejectBooking(ctx context.Context, bookingID, actor types.ID) (*Booking, error) {
	r, b, err := s.bookingTx(ctx, bookingID, actor, func(r *Ride, b *Booking) (string, error) {
		if actor != r.DriverID {
			return "", types.Errorf(types.ErrForbidden, "Only the driver can reject bookings")
		}
		return ActorDriver, r.Reject(b)
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, notify.Event{
		Type: notify.BookingRejected, RideID: r.ID, BookingID: b.ID,
		Recipients: []types.ID{b.PassengerID}, Message: "Your booking request was declined", At: s.now(),
	})
	return b, nil
}

// CancelBooking is used by the passenger to withdraw and by the driver to remove a passenger.
func (s *Service) CancelBooking(ctx context.Context, bookingID, actor types.ID) (*Booking, error) {
	r, b, err := s.bookingTx(ctx, bookingID, actor, func(r *Ride, b *Booking) (string, error) {
		switch actor {
		case b.PassengerID:
			return ActorPassenger, r.CancelBooking(b)
		case r.DriverID:
			return ActorDriver, r.CancelBooking(b)
		}
		return "", types.Errorf(types.ErrForbidden, "You cannot cancel this booking")
	})
	if err != nil {
		return nil, err
	}
	recipient, msg := r.DriverID, "A passenger cancelled their booking"
	if actor == r.DriverID {
		recipient, msg = b.PassengerID, "The driver removed you from the ride"
	}
	s.publish(ctx, notify.Event{
		Type: notify.BookingCancelled, RideID: r.ID, BookingID: b.ID,
		Recipients: []types.ID{recipient}, Message: msg, At: s.now(),
	})
	return b, nil
}

// CompletePassengerLeg records that the passenger reached their drop-off; the booking status is unchanged.
func (s *Service) CompletePassengerLeg(ctx context.Context, bookingID, actor types.ID) (*Booking, error) {
	now := s.now()
	r, b, err := s.bookingTx(ctx, bookingID, actor, func(r *Ride, b *Booking) (string, error) {
		if actor != b.PassengerID {
			return "", types.Errorf(types.ErrForbidden, "Only the passenger can complete their ride")
		}
		return ActorPassenger, r.CompleteLeg(b, now)
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, notify.Event{
		Type: notify.LegCompleted, RideID: r.ID, BookingID: b.ID,
		Recipients: []types.ID{r.DriverID}, Message: "A passenger marked their ride as completed", At: now,
	})
	return b, nil
}

func (s *Service) StartRide(ctx context.Context, rideID, actor types.ID) (*Ride, error) {
	now := s.now()
	r, bookings, err := s.rideTx(ctx, rideID, ActorDriver, &actor, now, func(r *Ride, bookings []*Booking) ([]Effect, error) {
		if actor != r.DriverID {
			return nil, types.Errorf(types.ErrForbidden, "Only the driver can start this ride")
		}
		return r.Start(now, s.window.TravelTime(r.DistanceKm), bookings)
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, notify.Event{
		Type: notify.RideStarted, RideID: r.ID,
		Recipients: passengers(bookings, BookingConfirmed), Message: "Your ride has started", At: now,
	})
	return r, nil
}

func (s *Service) EndRide(ctx context.Context, rideID, actor types.ID) (*Ride, error) {
	now := s.now()
	r, bookings, err := s.rideTx(ctx, rideID, ActorDriver, &actor, now, func(r *Ride, bookings []*Booking) ([]Effect, error) {
		if actor != r.DriverID {
			return nil, types.Errorf(types.ErrForbidden, "Only the driver can end this ride")
		}
		return r.End(now, ClosedByDriver, bookings)
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, notify.Event{
		Type: notify.RideEnded, RideID: r.ID,
		Recipients: passengers(bookings, BookingCompleted), Message: "Your ride has been completed", At: now,
	})
	return r, nil
}

func (s *Service) CancelRide(ctx context.Context, rideID, actor types.ID) (*Ride, error) {
	now := s.now()
	r, bookings, err := s.rideTx(ctx, rideID, ActorDriver, &actor, now, func(r *Ride, bookings []*Booking) ([]Effect, error) {
		if actor != r.DriverID {
			return nil, types.Errorf(types.ErrForbidden, "Only the driver can cancel this ride")
		}
		return r.Cancel(now, bookings)
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, notify.Event{
		Type: notify.RideCancelled, RideID: r.ID,
		Recipients: passengers(bookings, BookingCancelled), Message: "The driver cancelled the ride", At: now,
	})
	return r, nil
}

func (s *Service) GetRide(ctx context.Context, id types.ID) (*Ride, error) {
	return s.store.GetRide(ctx, id)
}

// GetBooking is visible to the booking's passenger and the ride's driver.
func (s *Service) GetBooking(ctx context.Context, id, actor types.ID) (*Booking, *Ride, error) {
	b, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	r, err := s.store.GetRide(ctx, b.RideID)
	if err != nil {
		return nil, nil, err
	}
	if actor != b.PassengerID && actor != r.DriverID {
		return nil, nil, types.Errorf(types.ErrForbidden, "You cannot view this booking")
	}
	return b, r, nil
}

func (s *Service) RideBookings(ctx context.Context, rideID, actor types.ID) ([]*Booking, error) {
	r, err := s.store.GetRide(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if actor != r.DriverID {
		return nil, types.Errorf(types.ErrForbidden, "Only the driver can list bookings")
	}
	return s.store.ListBookings(ctx, rideID)
}

// SearchRides lists upcoming rides with free seats; only rides starting after now are returned.
func (s *Service) SearchRides(ctx context.Context, q SearchQuery) ([]*Ride, error) {
	if q.Package != "" && !q.Package.Valid() {
		return nil, types.Errorf(types.ErrValidation, "Invalid package type: %s", q.Package)
	}
	if now := s.now(); q.After.Before(now) {
		q.After = now
	}
	return s.store.Search(ctx, q)
}

// Settlement splits the single-trip cost among the driver and confirmed or completed bookings.
func (s *Service) Settlement(ctx context.Context, rideID, actor types.ID) (fare.Distribution, error) {
	r, err := s.store.GetRide(ctx, rideID)
	if err != nil {
		return fare.Distribution{}, err
	}
	bookings, err := s.store.ListBookings(ctx, rideID)
	if err != nil {
		return fare.Distribution{}, err
	}
	if actor != r.DriverID && !hasPassenger(bookings, actor) {
		return fare.Distribution{}, types.Errorf(types.ErrForbidden, "Only ride participants can view the settlement")
	}
	var claims []fare.Claim
	for _, b := range bookings {
		if b.Settled() {
			claims = append(claims, fare.Claim{BookingID: b.ID, Seats: b.Seats})
		}
	}
	return fare.Settle(s.fare.EstimatedTripCost(r.DistanceKm, r.FuelType, r.Mileage), claims), nil
}

type Summary struct {
	ActiveRides    []*Ride
	PastRides      []*Ride
	ActiveBookings []*Booking
	PastBookings   []*Booking
	Sweep          *SweepReport
}

// Summary is the rider-facing dashboard; it runs a sweep first when the gate allows one.
func (s *Service) Summary(ctx context.Context, user types.ID) (Summary, error) {
	var out Summary
	out.Sweep = s.sweepIfDue(ctx)

	rides, err := s.store.RidesByDriver(ctx, user)
	if err != nil {
		return out, err
	}
	for _, r := range rides {
		if r.Status == StatusUpcoming || r.Status == StatusOngoing {
			out.ActiveRides = append(out.ActiveRides, r)
		} else {
			out.PastRides = append(out.PastRides, r)
		}
	}
	bookings, err := s.store.BookingsByPassenger(ctx, user)
	if err != nil {
		return out, err
	}
	for _, b := range bookings {
		if b.Active() {
			out.ActiveBookings = append(out.ActiveBookings, b)
		} else {
			out.PastBookings = append(out.PastBookings, b)
		}
	}
	return out, nil
}

// CurrentRide returns the ongoing ride the user drives or holds a confirmed
// seat on, or nil when there is none.
func (s *Service) CurrentRide(ctx context.Context, user types.ID) (*Ride, error) {
	rides, err := s.store.RidesByDriver(ctx, user)
	if err != nil {
		return nil, err
	}
	for _, r := range rides {
		if r.Status == StatusOngoing {
			return r, nil
		}
	}
	bookings, err := s.store.BookingsByPassenger(ctx, user)
	if err != nil {
		return nil, err
	}
	for _, b := range bookings {
		if b.Status != BookingConfirmed || b.Progress == ProgressCompleted {
			continue
		}
		r, err := s.store.GetRide(ctx, b.RideID)
		if err != nil {
			return nil, err
		}
		if r.Status == StatusOngoing {
			return r, nil
		}
	}
	return nil, nil
}

type bookingFn func(r *Ride, b *Booking) (actorType string, err error)

// bookingTx locks the ride then the booking, runs fn and persists both.
func (s *Service) bookingTx(ctx context.Context, bookingID, actor types.ID, fn bookingFn) (*Ride, *Booking, error) {
	snap, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, nil, err
	}
	now := s.now()
	var r *Ride
	var b *Booking
	err = s.inTx(ctx, func(tx Tx) error {
		var err error
		if r, err = tx.LockRide(ctx, snap.RideID); err != nil {
			return err
		}
		if b, err = tx.LockBooking(ctx, bookingID); err != nil {
			return err
		}
		from := b.Status
		fromProgress := b.Progress
		actorType, err := fn(r, b)
		if err != nil {
			return err
		}
		if err := tx.UpdateRide(ctx, r); err != nil {
			return err
		}
		if err := tx.UpdateBooking(ctx, b); err != nil {
			return err
		}
		fromState, toState := string(from), string(b.Status)
		if from == b.Status {
			fromState, toState = "progress:"+string(fromProgress), "progress:"+string(b.Progress)
		}
		return tx.AppendEvent(ctx, bookingEvent(b, fromState, toState, actorType, actor, now))
	})
	if err != nil {
		return nil, nil, err
	}
	observability.BookingsTotal.WithLabelValues(string(b.Status)).Inc()
	s.log.WithFields(logrus.Fields{
		"ride_id":    r.ID,
		"booking_id": b.ID,
		"status":     b.Status,
		"actor":      actor,
		"available":  r.AvailableSeats(),
	}).Info("booking updated")
	return r, b, nil
}

type rideFn func(r *Ride, bookings []*Booking) ([]Effect, error)

// rideTx locks the ride and its bookings, runs a transition and applies its effects in the same
// transaction. It returns the bookings the effects touched.
func (s *Service) rideTx(ctx context.Context, rideID types.ID, actorType string, actor *types.ID, at time.Time, fn rideFn) (*Ride, []*Booking, error) {
	var r *Ride
	var changed []*Booking
	err := s.inTx(ctx, func(tx Tx) error {
		var err error
		if r, err = tx.LockRide(ctx, rideID); err != nil {
			return err
		}
		bookings, err := tx.LockRideBookings(ctx, rideID)
		if err != nil {
			return err
		}
		from := r.Status
		effects, err := fn(r, bookings)
		if err != nil {
			return err
		}
		before := make(map[types.ID]BookingStatus, len(bookings))
		for _, b := range bookings {
			before[b.ID] = b.Status
		}
		changed, err = r.ApplyAll(effects, bookings, at)
		if err != nil {
			return err
		}
		if err := tx.UpdateRide(ctx, r); err != nil {
			return err
		}
		if err := tx.AppendEvent(ctx, &Event{
			RideID: r.ID, FromStatus: string(from), ToStatus: string(r.Status),
			ActorType: actorType, ActorID: actor, CreatedAt: at,
		}); err != nil {
			return err
		}
		for _, b := range changed {
			if err := tx.UpdateBooking(ctx, b); err != nil {
				return err
			}
			if before[b.ID] == b.Status {
				continue
			}
			id := b.ID
			if err := tx.AppendEvent(ctx, &Event{
				RideID: r.ID, BookingID: &id, FromStatus: string(before[b.ID]), ToStatus: string(b.Status),
				ActorType: ActorSystem, CreatedAt: at,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	observability.RideTransitionsTotal.WithLabelValues(string(r.Status), actorType).Inc()
	s.log.WithFields(logrus.Fields{
		"ride_id":   r.ID,
		"status":    r.Status,
		"actor":     actorType,
		"available": r.AvailableSeats(),
	}).Info("ride transition")
	return r, changed, nil
}

func (s *Service) inTx(ctx context.Context, fn func(tx Tx) error) error {
	err := s.store.InTx(ctx, fn)
	if errors.Is(err, types.ErrConflict) {
		observability.TxConflictsTotal.Inc()
	}
	return err
}

// publish never fails the caller; delivery problems are logged.
func (s *Service) publish(ctx context.Context, e notify.Event) {
	if len(e.Recipients) == 0 {
		return
	}
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{"event": e.Type, "ride_id": e.RideID}).Warn("event publish failed")
	}
}

func bookingEvent(b *Booking, from, to, actorType string, actor types.ID, at time.Time) *Event {
	id := b.ID
	return &Event{
		RideID:     b.RideID,
		BookingID:  &id,
		FromStatus: from,
		ToStatus:   to,
		ActorType:  actorType,
		ActorID:    &actor,
		CreatedAt:  at,
	}
}

func passengers(bookings []*Booking, status BookingStatus) []types.ID {
	var out []types.ID
	for _, b := range bookings {
		if b.Status == status {
			out = append(out, b.PassengerID)
		}
	}
	return out
}

func hasPassenger(bookings []*Booking, user types.ID) bool {
	for _, b := range bookings {
		if b.PassengerID == user {
			return true
		}
	}
	return false
}
