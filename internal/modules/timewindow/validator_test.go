package timewindow

import (
	"errors"
	"strings"
	"testing"
	"time"

	"carpool/internal/types"
)

func at(hour, minute int) time.Time {
	return time.Date(2026, 3, 10, hour, minute, 0, 0, time.UTC)
}

func TestValidate(t *testing.T) {
	v := New(time.UTC)

	tests := []struct {
		name     string
		start    time.Time
		distance float64
		pkg      types.PackageType
		wantErr  string
	}{
		{name: "daily fits exactly before deadline", start: at(18, 30), distance: 60, pkg: types.PackageDaily},
		{name: "daily one minute late", start: at(18, 31), distance: 60, pkg: types.PackageDaily, wantErr: "Maximum distance: 59.3 km"},
		{name: "daily too early", start: at(3, 59), distance: 10, pkg: types.PackageDaily, wantErr: "Daily rides can only start between 4:00 AM and 7:00 PM"},
		{name: "daily start max is exclusive", start: at(19, 0), distance: 1, pkg: types.PackageDaily, wantErr: "between 4:00 AM and 7:00 PM"},
		{name: "daily earliest start", start: at(4, 0), distance: 300, pkg: types.PackageDaily},
		{name: "weekly early start", start: at(3, 0), distance: 500, pkg: types.PackageWeekly},
		{name: "weekly late evening", start: at(20, 59), distance: 500, pkg: types.PackageWeekly},
		{name: "monthly too late", start: at(21, 0), distance: 5, pkg: types.PackageMonthly, wantErr: "Monthly rides can only start between 3:00 AM and 9:00 PM"},
		{name: "biweekly too early", start: at(2, 30), distance: 5, pkg: types.PackageBiweekly, wantErr: "Biweekly rides"},
		{name: "unknown package", start: at(10, 0), distance: 5, pkg: types.PackageType("yearly"), wantErr: "Invalid package type: yearly"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.start, tt.distance, tt.pkg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !errors.Is(err, types.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error %q does not contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidateDailyBoundaryMessage(t *testing.T) {
	err := New(time.UTC).Validate(at(18, 31), 60, types.PackageDaily)
	want := "Daily rides starting at 06:31 PM must complete by 8:00 PM. Maximum distance: 59.3 km. Your ride: 60.0 km (would take 1.5 hours)."
	if err == nil || err.Error() != want {
		t.Fatalf("got %v, want %q", err, want)
	}
}

func TestValidateUsesLocation(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	v := New(loc)
	// 13:00 UTC is 18:30 IST.
	if err := v.Validate(time.Date(2026, 3, 10, 13, 0, 0, 0, time.UTC), 60, types.PackageDaily); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 14:00 UTC is 19:30 IST.
	if err := v.Validate(time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC), 10, types.PackageDaily); err == nil {
		t.Fatalf("expected start window error")
	}
}

func TestValidateHorizon(t *testing.T) {
	v := New(time.UTC)
	now := at(9, 0)

	tests := []struct {
		name    string
		start   time.Time
		pkg     types.PackageType
		wantErr bool
	}{
		{"past", now.Add(-time.Minute), types.PackageWeekly, true},
		{"daily tomorrow night", time.Date(2026, 3, 11, 23, 59, 0, 0, time.UTC), types.PackageDaily, false},
		{"daily day after tomorrow", time.Date(2026, 3, 12, 8, 0, 0, 0, time.UTC), types.PackageDaily, true},
		{"weekly in 30 days", time.Date(2026, 4, 9, 10, 0, 0, 0, time.UTC), types.PackageWeekly, false},
		{"monthly in 31 days", time.Date(2026, 4, 10, 10, 0, 0, 0, time.UTC), types.PackageMonthly, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateHorizon(now, tt.start, tt.pkg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateHorizon() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTravelTime(t *testing.T) {
	v := New(nil)
	cases := map[float64]time.Duration{
		40:  time.Hour,
		60:  90 * time.Minute,
		10:  15 * time.Minute,
		1.1: 2 * time.Minute,
	}
	for km, want := range cases {
		if got := v.TravelTime(km); got != want {
			t.Errorf("TravelTime(%v) = %v, want %v", km, got, want)
		}
	}
}
