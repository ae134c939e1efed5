// README: JSON views of domain objects and request parsing helpers.
package handlers

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"carpool/internal/modules/review"
	"carpool/internal/modules/ride"
	"carpool/internal/types"
)

// localLayout is what a datetime-local form field submits.
const localLayout = "2006-01-02T15:04"

// parseStartTime accepts RFC3339 or a wall-clock time in loc.
func parseStartTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.In(loc), nil
	}
	t, err := time.ParseInLocation(localLayout, s, loc)
	if err != nil {
		return time.Time{}, types.Errorf(types.ErrValidation, "Invalid start time; use RFC3339 or YYYY-MM-DDTHH:MM")
	}
	return t, nil
}

// RegisterValidators adds the carpool binding tags to gin's validator.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	if err := v.RegisterValidation("package_type", func(fl validator.FieldLevel) bool {
		_, ok := types.ParsePackage(fl.Field().String())
		return ok
	}); err != nil {
		return err
	}
	return v.RegisterValidation("review_flag", func(fl validator.FieldLevel) bool {
		_, ok := review.ParseFlag(fl.Field().String())
		return ok
	})
}

type rideView struct {
	ID             types.ID          `json:"id"`
	DriverID       types.ID          `json:"driver_id"`
	VehicleID      types.ID          `json:"vehicle_id"`
	Origin         string            `json:"origin"`
	Destination    string            `json:"destination"`
	StartTime      time.Time         `json:"start_time"`
	EndTime        time.Time         `json:"end_time"`
	ActualStart    *time.Time        `json:"actual_start_time,omitempty"`
	ActualEnd      *time.Time        `json:"actual_end_time,omitempty"`
	EstimatedEnd   *time.Time        `json:"estimated_end_time,omitempty"`
	BufferMinutes  int               `json:"buffer_minutes"`
	TotalSeats     int               `json:"total_seats"`
	AvailableSeats int               `json:"available_seats"`
	PricePerSeat   types.Money       `json:"price_per_seat"`
	Currency       string            `json:"currency"`
	DistanceKm     float64           `json:"distance_km"`
	FuelType       types.FuelType    `json:"fuel_type"`
	Package        types.PackageType `json:"package_type"`
	Status         ride.Status       `json:"status"`
	AutoCompleted  bool              `json:"auto_completed"`
	CompletedBy    ride.Closer       `json:"completed_by,omitempty"`
}

func newRideView(r *ride.Ride, loc *time.Location) rideView {
	return rideView{
		ID:             r.ID,
		DriverID:       r.DriverID,
		VehicleID:      r.VehicleID,
		Origin:         r.Origin,
		Destination:    r.Destination,
		StartTime:      r.StartTime.In(loc),
		EndTime:        r.EndTime.In(loc),
		ActualStart:    inLoc(r.ActualStart, loc),
		ActualEnd:      inLoc(r.ActualEnd, loc),
		EstimatedEnd:   inLoc(r.EstimatedEnd, loc),
		BufferMinutes:  r.BufferMinutes,
		TotalSeats:     r.TotalSeats,
		AvailableSeats: r.AvailableSeats(),
		PricePerSeat:   r.PricePerSeat,
		Currency:       r.PricePerSeat.Currency,
		DistanceKm:     r.DistanceKm,
		FuelType:       r.FuelType,
		Package:        r.Package,
		Status:         r.Status,
		AutoCompleted:  r.AutoCompleted,
		CompletedBy:    r.CompletedBy,
	}
}

func newRideViews(rides []*ride.Ride, loc *time.Location) []rideView {
	out := make([]rideView, 0, len(rides))
	for _, r := range rides {
		out = append(out, newRideView(r, loc))
	}
	return out
}

type bookingView struct {
	ID                   types.ID           `json:"id"`
	RideID               types.ID           `json:"ride_id"`
	PassengerID          types.ID           `json:"passenger_id"`
	Seats                int                `json:"seats"`
	Status               ride.BookingStatus `json:"status"`
	Progress             ride.Progress      `json:"progress"`
	Pickup               string             `json:"pickup,omitempty"`
	Drop                 string             `json:"drop,omitempty"`
	Contact              string             `json:"contact,omitempty"`
	PassengerCompletedAt *time.Time         `json:"passenger_completed_at,omitempty"`
	CreatedAt            time.Time          `json:"created_at"`
}

func newBookingView(b *ride.Booking, loc *time.Location) bookingView {
	return bookingView{
		ID:                   b.ID,
		RideID:               b.RideID,
		PassengerID:          b.PassengerID,
		Seats:                b.Seats,
		Status:               b.Status,
		Progress:             b.Progress,
		Pickup:               b.Pickup,
		Drop:                 b.Drop,
		Contact:              b.Contact,
		PassengerCompletedAt: inLoc(b.PassengerCompletedAt, loc),
		CreatedAt:            b.CreatedAt.In(loc),
	}
}

func newBookingViews(bookings []*ride.Booking, loc *time.Location) []bookingView {
	out := make([]bookingView, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, newBookingView(b, loc))
	}
	return out
}

func inLoc(t *time.Time, loc *time.Location) *time.Time {
	if t == nil {
		return nil
	}
	v := t.In(loc)
	return &v
}
