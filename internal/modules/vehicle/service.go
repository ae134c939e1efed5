// README: Vehicle service; registers cars against the catalog and serves pricing profiles to the ride service.
package vehicle

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"carpool/internal/modules/ride"
	"carpool/internal/types"
)

type Service struct {
	store Store
	now   func() time.Time
	log   logrus.FieldLogger
}

func NewService(store Store, clock func() time.Time, log logrus.FieldLogger) *Service {
	if clock == nil {
		clock = time.Now
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{store: store, now: clock, log: log}
}

type RegisterCommand struct {
	OwnerID      types.ID
	Make         string
	Model        string
	Year         int
	Color        string
	LicensePlate string
}

func (s *Service) Register(ctx context.Context, cmd RegisterCommand) (*Vehicle, error) {
	cmd.Make = strings.TrimSpace(cmd.Make)
	cmd.Model = strings.TrimSpace(cmd.Model)
	cmd.Color = strings.TrimSpace(cmd.Color)
	cmd.LicensePlate = strings.ToUpper(strings.TrimSpace(cmd.LicensePlate))
	if cmd.OwnerID == "" || cmd.Make == "" || cmd.Model == "" || cmd.Color == "" || cmd.LicensePlate == "" || cmd.Year == 0 {
		return nil, types.Errorf(types.ErrValidation, "All fields are required")
	}
	now := s.now()
	if cmd.Year < 1900 || cmd.Year > now.Year()+1 {
		return nil, types.Errorf(types.ErrValidation, "Invalid year")
	}
	spec, ok := Lookup(cmd.Make, cmd.Model)
	if !ok {
		return nil, types.Errorf(types.ErrValidation, "Invalid car make/model selected")
	}

	v := &Vehicle{
		ID:           types.NewID(),
		OwnerID:      cmd.OwnerID,
		Make:         spec.Make,
		Model:        spec.Model,
		Year:         cmd.Year,
		Color:        cmd.Color,
		LicensePlate: cmd.LicensePlate,
		FuelType:     spec.FuelType,
		Mileage:      spec.Mileage,
		CreatedAt:    now,
	}
	if err := s.store.Create(ctx, v); err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"vehicle_id": v.ID, "owner_id": v.OwnerID, "model": v.Make + " " + v.Model}).Info("vehicle registered")
	return v, nil
}

func (s *Service) List(ctx context.Context, ownerID types.ID) ([]*Vehicle, error) {
	return s.store.ListByOwner(ctx, ownerID)
}

func (s *Service) Catalog() []Spec {
	return Catalog()
}

// Profile implements ride.Vehicles.
func (s *Service) Profile(ctx context.Context, id types.ID) (ride.VehicleProfile, error) {
	v, err := s.store.Get(ctx, id)
	if err != nil {
		return ride.VehicleProfile{}, err
	}
	return ride.VehicleProfile{ID: v.ID, OwnerID: v.OwnerID, FuelType: v.FuelType, Mileage: v.Mileage}, nil
}
