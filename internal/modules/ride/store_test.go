package ride

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"carpool/internal/modules/fare"
	"carpool/internal/modules/timewindow"
	"carpool/internal/testutil"
	"carpool/internal/types"
)

func newPGService(t *testing.T, db *pgxpool.Pool, clock *fakeClock) *Service {
	t.Helper()
	_, err := db.Exec(context.Background(), `
		INSERT INTO vehicles (id, owner_id, make, model, year, license_plate, fuel_type, mileage)
		VALUES ('v1', 'driver', 'Maruti', 'Swift', 2022, 'KA01AB1234', 'petrol', 20)`)
	if err != nil {
		t.Fatalf("insert vehicle: %v", err)
	}
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewService(Deps{
		Store:    NewStore(db),
		Vehicles: fakeVehicles{"v1": {ID: "v1", OwnerID: "driver", FuelType: types.FuelPetrol, Mileage: 20}},
		Fare:     fare.NewCalculator("INR", map[types.FuelType]float64{types.FuelPetrol: 100}),
		Window:   timewindow.New(time.UTC),
		Clock:    clock.Now,
		Logger:   logger,
	})
}

func pgOffer(t *testing.T, svc *Service, seats int) *Ride {
	t.Helper()
	r, err := svc.OfferRide(context.Background(), OfferCommand{
		DriverID: "driver", VehicleID: "v1", Origin: "Koramangala", Destination: "Whitefield",
		StartTime: base.Add(2 * time.Hour), Seats: seats, DistanceKm: 100, Package: types.PackageWeekly,
	})
	if err != nil {
		t.Fatalf("offer: %v", err)
	}
	return r
}

func TestPGStoreConcurrentBookings(t *testing.T) {
	db := testutil.SetupDB(t, "ride_state_events", "bookings", "rides", "vehicles")
	clock := &fakeClock{t: base}
	svc := newPGService(t, db, clock)
	ctx := context.Background()
	r := pgOffer(t, svc, 3)

	const attempts = 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	success := 0
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := svc.RequestBooking(ctx, BookCommand{RideID: r.ID, PassengerID: types.ID(fmt.Sprintf("p%d", n)), Seats: 1})
			if err == nil {
				mu.Lock()
				success++
				mu.Unlock()
				return
			}
			if !errors.Is(err, types.ErrConflict) && !errors.Is(err, types.ErrValidation) {
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if success != 3 {
		t.Fatalf("expected exactly 3 successes, got %d", success)
	}
	got, err := svc.GetRide(ctx, r.ID)
	if err != nil {
		t.Fatalf("get ride: %v", err)
	}
	if got.AvailableSeats() != 0 {
		t.Fatalf("available = %d, want 0", got.AvailableSeats())
	}
	bookings, err := svc.RideBookings(ctx, r.ID, "driver")
	if err != nil || len(bookings) != 3 {
		t.Fatalf("bookings = %d, err=%v", len(bookings), err)
	}
}

func TestPGStoreLifecycleAndSweep(t *testing.T) {
	db := testutil.SetupDB(t, "ride_state_events", "bookings", "rides", "vehicles")
	clock := &fakeClock{t: base}
	svc := newPGService(t, db, clock)
	ctx := context.Background()
	r := pgOffer(t, svc, 4)

	pending, err := svc.RequestBooking(ctx, BookCommand{RideID: r.ID, PassengerID: "p1", Seats: 1, Pickup: "Sony signal"})
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	confirmed, err := svc.RequestBooking(ctx, BookCommand{RideID: r.ID, PassengerID: "p2", Seats: 2})
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if _, err := svc.ConfirmBooking(ctx, confirmed.ID, "driver"); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	found, err := svc.SearchRides(ctx, SearchQuery{Origin: "kora"})
	if err != nil || len(found) != 1 || found[0].AvailableSeats() != 1 {
		t.Fatalf("search: %+v err=%v", found, err)
	}

	now := r.StartTime.Add(90 * time.Minute)
	report, err := svc.SweepOverdueRides(ctx, now)
	if err != nil || report.Repaired != 1 {
		t.Fatalf("sweep: report=%+v err=%v", report, err)
	}
	report, err = svc.SweepOverdueRides(ctx, now)
	if err != nil || report.Completed() != 0 {
		t.Fatalf("second sweep: report=%+v err=%v", report, err)
	}

	got, err := svc.GetRide(ctx, r.ID)
	if err != nil {
		t.Fatalf("get ride: %v", err)
	}
	if got.Status != StatusCompleted || !got.AutoCompleted || got.CompletedBy != ClosedByAuto || got.AvailableSeats() != 2 {
		t.Fatalf("unexpected ride: %+v", got)
	}
	b, _, err := svc.GetBooking(ctx, pending.ID, "p1")
	if err != nil || b.Status != BookingRejected || b.Pickup != "Sony signal" {
		t.Fatalf("pending booking: %+v err=%v", b, err)
	}

	var events int
	if err := db.QueryRow(ctx, `SELECT COUNT(*) FROM ride_state_events WHERE ride_id = $1`, string(r.ID)).Scan(&events); err != nil {
		t.Fatalf("count events: %v", err)
	}
	// offer, two requests, confirm, repair plus one per touched booking
	if events != 7 {
		t.Fatalf("events = %d, want 7", events)
	}
}
