// README: Wallet service; the driver logs fuel, toll and other costs per ride.
package wallet

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"carpool/internal/modules/ride"
	"carpool/internal/types"
)

type Rides interface {
	GetRide(ctx context.Context, id types.ID) (*ride.Ride, error)
}

type Service struct {
	store Store
	rides Rides
	now   func() time.Time
	log   logrus.FieldLogger
}

func NewService(store Store, rides Rides, clock func() time.Time, log logrus.FieldLogger) *Service {
	if clock == nil {
		clock = time.Now
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{store: store, rides: rides, now: clock, log: log}
}

// MaxExpense bounds each amount of a single entry, in currency units.
const MaxExpense = 1e7

// ExpenseCommand amounts are in currency units.
type ExpenseCommand struct {
	RideID      types.ID
	Actor       types.ID
	Fuel        float64
	Toll        float64
	Other       float64
	Description string
}

func (s *Service) AddExpense(ctx context.Context, cmd ExpenseCommand) (*Expense, error) {
	r, err := s.driverRide(ctx, cmd.RideID, cmd.Actor)
	if err != nil {
		return nil, err
	}
	if r.Status == ride.StatusCancelled {
		return nil, types.Errorf(types.ErrState, "Cannot add expenses to a cancelled ride")
	}
	if cmd.Fuel < 0 || cmd.Toll < 0 || cmd.Other < 0 {
		return nil, types.Errorf(types.ErrValidation, "Expenses cannot be negative")
	}
	if cmd.Fuel > MaxExpense || cmd.Toll > MaxExpense || cmd.Other > MaxExpense {
		return nil, types.Errorf(types.ErrValidation, "Each expense must be at most %d", int64(MaxExpense))
	}
	if cmd.Fuel == 0 && cmd.Toll == 0 && cmd.Other == 0 {
		return nil, types.Errorf(types.ErrValidation, "Enter at least one expense amount")
	}

	currency := r.PricePerSeat.Currency
	e := &Expense{
		ID:          types.NewID(),
		RideID:      r.ID,
		FuelCost:    types.MoneyFromFloat(cmd.Fuel, currency),
		TollCost:    types.MoneyFromFloat(cmd.Toll, currency),
		OtherCost:   types.MoneyFromFloat(cmd.Other, currency),
		Description: strings.TrimSpace(cmd.Description),
		CreatedAt:   s.now(),
	}
	if err := s.store.Add(ctx, e); err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"ride_id": r.ID, "expense_id": e.ID, "total": e.Total().String()}).Info("expense added")
	return e, nil
}

func (s *Service) List(ctx context.Context, rideID, actor types.ID) (Ledger, error) {
	r, err := s.driverRide(ctx, rideID, actor)
	if err != nil {
		return Ledger{}, err
	}
	expenses, err := s.store.ForRide(ctx, r.ID)
	if err != nil {
		return Ledger{}, err
	}
	return NewLedger(r.PricePerSeat.Currency, expenses), nil
}

func (s *Service) driverRide(ctx context.Context, rideID, actor types.ID) (*ride.Ride, error) {
	r, err := s.rides.GetRide(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if r.DriverID != actor {
		return nil, types.Errorf(types.ErrForbidden, "Only the driver can manage ride expenses")
	}
	return r, nil
}
