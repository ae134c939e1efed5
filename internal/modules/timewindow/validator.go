// README: Time-window validator; package start windows, the daily completion deadline and the offer horizon.
package timewindow

import (
	"math"
	"time"

	"carpool/internal/types"
)

// DefaultSpeedKmh converts distance into travel time.
const DefaultSpeedKmh = 40.0

// Policy holds the allowed start window [StartMin, StartMax) in hours.
// DeadlineHour is zero when the package has no same-day completion deadline.
type Policy struct {
	StartMin     int
	StartMax     int
	DeadlineHour int
	HorizonDays  int
}

func DefaultPolicies() map[types.PackageType]Policy {
	other := Policy{StartMin: 3, StartMax: 21, HorizonDays: 30}
	return map[types.PackageType]Policy{
		types.PackageDaily:    {StartMin: 4, StartMax: 19, DeadlineHour: 20, HorizonDays: 1},
		types.PackageWeekly:   other,
		types.PackageBiweekly: other,
		types.PackageMonthly:  other,
	}
}

type Validator struct {
	policies map[types.PackageType]Policy
	speedKmh float64
	loc      *time.Location
}

// New returns a validator that reads wall-clock hours in loc (UTC when nil).
func New(loc *time.Location) *Validator {
	if loc == nil {
		loc = time.UTC
	}
	return &Validator{policies: DefaultPolicies(), speedKmh: DefaultSpeedKmh, loc: loc}
}

func (v *Validator) Location() *time.Location {
	return v.loc
}

// TravelTime is distance at the average speed, rounded to whole minutes.
func (v *Validator) TravelTime(distanceKm float64) time.Duration {
	return time.Duration(math.Round(distanceKm/v.speedKmh*60)) * time.Minute
}

// Validate checks the start window and, for daily rides, that the trip fits before the deadline.
func (v *Validator) Validate(start time.Time, distanceKm float64, pkg types.PackageType) error {
	p, ok := v.policies[pkg]
	if !ok {
		return types.Errorf(types.ErrValidation, "Invalid package type: %s", pkg)
	}

	local := start.In(v.loc)
	hour := local.Hour()
	if hour < p.StartMin || hour >= p.StartMax {
		return types.Errorf(types.ErrValidation, "%s rides can only start between %s and %s",
			pkg.Title(), clock(p.StartMin), clock(p.StartMax))
	}
	if p.DeadlineHour == 0 {
		return nil
	}

	remaining := float64(p.DeadlineHour) - (float64(hour) + float64(local.Minute())/60)
	if remaining <= 0 {
		return types.Errorf(types.ErrValidation, "%s rides starting at %s cannot be completed before %s deadline.",
			pkg.Title(), local.Format("03:04 PM"), clock(p.DeadlineHour))
	}
	hours := distanceKm / v.speedKmh
	if hours > remaining {
		return types.Errorf(types.ErrValidation,
			"%s rides starting at %s must complete by %s. Maximum distance: %.1f km. Your ride: %.1f km (would take %.1f hours).",
			pkg.Title(), local.Format("03:04 PM"), clock(p.DeadlineHour), remaining*v.speedKmh, distanceKm, hours)
	}
	return nil
}

// ValidateHorizon rejects starts in the past and starts beyond the package's booking horizon.
func (v *Validator) ValidateHorizon(now, start time.Time, pkg types.PackageType) error {
	p, ok := v.policies[pkg]
	if !ok {
		return types.Errorf(types.ErrValidation, "Invalid package type: %s", pkg)
	}
	if start.Before(now) {
		return types.Errorf(types.ErrValidation, "Ride start time cannot be in the past")
	}
	n := now.In(v.loc)
	limit := time.Date(n.Year(), n.Month(), n.Day()+p.HorizonDays, 23, 59, 59, 0, v.loc)
	if start.After(limit) {
		if pkg == types.PackageDaily {
			return types.Errorf(types.ErrValidation, "Daily rides can only be offered for today or tomorrow")
		}
		return types.Errorf(types.ErrValidation, "%s rides can only be offered up to %d days in advance", pkg.Title(), p.HorizonDays)
	}
	return nil
}

func clock(hour int) string {
	return time.Date(2000, 1, 1, hour, 0, 0, 0, time.UTC).Format("3:04 PM")
}
