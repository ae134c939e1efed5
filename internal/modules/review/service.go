// README: Review service; enforces who may review whom and when.
package review

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"carpool/internal/modules/ride"
	"carpool/internal/types"
)

// Bookings resolves a booking and its ride for an actor allowed to see it.
type Bookings interface {
	GetBooking(ctx context.Context, id, actor types.ID) (*ride.Booking, *ride.Ride, error)
}

type Service struct {
	store    Store
	bookings Bookings
	now      func() time.Time
	log      logrus.FieldLogger
}

func NewService(store Store, bookings Bookings, clock func() time.Time, log logrus.FieldLogger) *Service {
	if clock == nil {
		clock = time.Now
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{store: store, bookings: bookings, now: clock, log: log}
}

type Command struct {
	BookingID types.ID
	Actor     types.ID
	Flag      string
	Comment   string
}

// ReviewDriver lets the passenger flag the driver once the ride or their own leg is completed.
func (s *Service) ReviewDriver(ctx context.Context, cmd Command) (*Review, error) {
	b, r, err := s.bookings.GetBooking(ctx, cmd.BookingID, cmd.Actor)
	if err != nil {
		return nil, err
	}
	if cmd.Actor != b.PassengerID {
		return nil, types.Errorf(types.ErrForbidden, "You are not authorized to review this booking")
	}
	if r.Status != ride.StatusCompleted && b.Progress != ride.ProgressCompleted {
		return nil, types.Errorf(types.ErrState, "You can only review completed rides")
	}
	return s.create(ctx, cmd, b, r.DriverID, PassengerToDriver)
}

// RatePassenger lets the driver flag a passenger who actually rode once the ride is completed.
func (s *Service) RatePassenger(ctx context.Context, cmd Command) (*Review, error) {
	b, r, err := s.bookings.GetBooking(ctx, cmd.BookingID, cmd.Actor)
	if err != nil {
		return nil, err
	}
	if cmd.Actor != r.DriverID {
		return nil, types.Errorf(types.ErrForbidden, "Only the driver can rate passengers")
	}
	if r.Status != ride.StatusCompleted {
		return nil, types.Errorf(types.ErrState, "You can only rate passengers after the ride is completed")
	}
	if !b.Settled() {
		return nil, types.Errorf(types.ErrState, "This passenger did not complete the ride")
	}
	return s.create(ctx, cmd, b, b.PassengerID, DriverToPassenger)
}

func (s *Service) create(ctx context.Context, cmd Command, b *ride.Booking, reviewee types.ID, kind Kind) (*Review, error) {
	flag, ok := ParseFlag(cmd.Flag)
	if !ok {
		return nil, types.Errorf(types.ErrValidation, "Please select a green or red flag")
	}
	exists, err := s.store.Exists(ctx, b.ID, cmd.Actor, kind)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, errAlreadyReviewed
	}
	rv := &Review{
		ID:         types.NewID(),
		BookingID:  b.ID,
		RideID:     b.RideID,
		ReviewerID: cmd.Actor,
		RevieweeID: reviewee,
		Kind:       kind,
		Flag:       flag,
		Rating:     flag.Rating(),
		Comment:    strings.TrimSpace(cmd.Comment),
		CreatedAt:  s.now(),
	}
	if err := s.store.Create(ctx, rv); err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"booking_id": b.ID, "kind": kind, "flag": flag}).Info("review submitted")
	return rv, nil
}

func (s *Service) ForUser(ctx context.Context, user types.ID) ([]*Review, error) {
	return s.store.ForUser(ctx, user)
}

func (s *Service) Stats(ctx context.Context, user types.ID) (Stats, error) {
	reviews, err := s.store.ForUser(ctx, user)
	if err != nil {
		return Stats{}, err
	}
	return Summarize(reviews), nil
}
