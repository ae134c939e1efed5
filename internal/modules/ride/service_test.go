package ride

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"carpool/internal/modules/fare"
	"carpool/internal/modules/notify"
	"carpool/internal/modules/timewindow"
	"carpool/internal/types"
)

type fakeVehicles map[types.ID]VehicleProfile

func (f fakeVehicles) Profile(_ context.Context, id types.ID) (VehicleProfile, error) {
	v, ok := f[id]
	if !ok {
		return VehicleProfile{}, types.Errorf(types.ErrNotFound, "Vehicle not found")
	}
	return v, nil
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []notify.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e notify.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []notify.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]notify.EventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type stubGate struct{ allow bool }

func (g stubGate) Acquire(context.Context) (bool, error) { return g.allow, nil }

type harness struct {
	svc   *Service
	store *MemStore
	clock *fakeClock
	pub   *recordingPublisher
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	h := &harness{
		store: NewMemStore(),
		clock: &fakeClock{t: base},
		pub:   &recordingPublisher{},
	}
	h.svc = NewService(Deps{
		Store: h.store,
		Vehicles: fakeVehicles{
			"v1": {ID: "v1", OwnerID: "driver", FuelType: types.FuelPetrol, Mileage: 20},
			"v2": {ID: "v2", OwnerID: "someone", FuelType: types.FuelDiesel, Mileage: 15},
			"v3": {ID: "v3", OwnerID: "driver", FuelType: types.FuelPetrol, Mileage: 1e-9},
		},
		Fare:      fare.NewCalculator("INR", map[types.FuelType]float64{types.FuelPetrol: 100}),
		Window:    timewindow.New(time.UTC),
		Publisher: h.pub,
		Clock:     h.clock.Now,
		Logger:    logger,
	})
	return h
}

func (h *harness) offer(t *testing.T, seats int) *Ride {
	t.Helper()
	r, err := h.svc.OfferRide(context.Background(), OfferCommand{
		DriverID:    "driver",
		VehicleID:   "v1",
		Origin:      "Koramangala",
		Destination: "Whitefield",
		StartTime:   base.Add(2 * time.Hour),
		Seats:       seats,
		DistanceKm:  100,
		Package:     types.PackageWeekly,
	})
	if err != nil {
		t.Fatalf("offer ride: %v", err)
	}
	return r
}

func (h *harness) book(t *testing.T, rideID, passenger types.ID, seats int) *Booking {
	t.Helper()
	b, err := h.svc.RequestBooking(context.Background(), BookCommand{RideID: rideID, PassengerID: passenger, Seats: seats})
	if err != nil {
		t.Fatalf("book %s: %v", passenger, err)
	}
	return b
}

func (h *harness) confirm(t *testing.T, bookingID types.ID) {
	t.Helper()
	if _, err := h.svc.ConfirmBooking(context.Background(), bookingID, "driver"); err != nil {
		t.Fatalf("confirm %s: %v", bookingID, err)
	}
}

func (h *harness) ride(t *testing.T, id types.ID) *Ride {
	t.Helper()
	r, err := h.svc.GetRide(context.Background(), id)
	if err != nil {
		t.Fatalf("get ride: %v", err)
	}
	return r
}

func (h *harness) booking(t *testing.T, id types.ID) *Booking {
	t.Helper()
	b, err := h.store.GetBooking(context.Background(), id)
	if err != nil {
		t.Fatalf("get booking: %v", err)
	}
	return b
}

// assertInventory checks available == total - seats held by pending and confirmed bookings.
func (h *harness) assertInventory(t *testing.T, rideID types.ID) {
	t.Helper()
	r := h.ride(t, rideID)
	bookings, err := h.store.ListBookings(context.Background(), rideID)
	if err != nil {
		t.Fatalf("list bookings: %v", err)
	}
	held := 0
	for _, b := range bookings {
		if b.Active() {
			held += b.Seats
		}
	}
	if r.AvailableSeats() < 0 || r.AvailableSeats() > r.TotalSeats {
		t.Fatalf("available %d outside [0,%d]", r.AvailableSeats(), r.TotalSeats)
	}
	if r.AvailableSeats() != r.TotalSeats-held {
		t.Fatalf("available = %d, want %d - %d", r.AvailableSeats(), r.TotalSeats, held)
	}
}

func TestOfferRide(t *testing.T) {
	h := newHarness(t)
	r := h.offer(t, 4)

	if r.Status != StatusUpcoming || r.AvailableSeats() != 4 {
		t.Fatalf("unexpected ride: %+v", r)
	}
	// 700 km / 20 * 100 = 3500, weekly ratio 0.75, 4 seats
	if r.PricePerSeat.String() != "656.25" {
		t.Fatalf("price per seat = %s, want 656.25", r.PricePerSeat)
	}
	if !r.EndTime.Equal(r.StartTime.AddDate(0, 0, 7)) {
		t.Fatalf("end time = %v", r.EndTime)
	}
	if len(h.store.Events(r.ID)) != 1 {
		t.Fatalf("expected one audit event")
	}

	ctx := context.Background()
	cases := []struct {
		name string
		cmd  OfferCommand
		kind error
	}{
		{"deadline", OfferCommand{DriverID: "driver", VehicleID: "v1", Origin: "a", Destination: "b", StartTime: time.Date(2026, 3, 10, 18, 31, 0, 0, time.UTC), Seats: 2, DistanceKm: 60, Package: types.PackageDaily}, types.ErrValidation},
		{"past start", OfferCommand{DriverID: "driver", VehicleID: "v1", Origin: "a", Destination: "b", StartTime: base.Add(-time.Hour), Seats: 2, DistanceKm: 10, Package: types.PackageWeekly}, types.ErrValidation},
		{"no seats", OfferCommand{DriverID: "driver", VehicleID: "v1", Origin: "a", Destination: "b", StartTime: base.Add(time.Hour), Seats: 0, DistanceKm: 10, Package: types.PackageWeekly}, types.ErrValidation},
		{"zero distance", OfferCommand{DriverID: "driver", VehicleID: "v1", Origin: "a", Destination: "b", StartTime: base.Add(time.Hour), Seats: 1, DistanceKm: 0, Package: types.PackageWeekly}, types.ErrValidation},
		{"someone else's vehicle", OfferCommand{DriverID: "driver", VehicleID: "v2", Origin: "a", Destination: "b", StartTime: base.Add(time.Hour), Seats: 1, DistanceKm: 10, Package: types.PackageWeekly}, types.ErrForbidden},
		{"unknown vehicle", OfferCommand{DriverID: "driver", VehicleID: "nope", Origin: "a", Destination: "b", StartTime: base.Add(time.Hour), Seats: 1, DistanceKm: 10, Package: types.PackageWeekly}, types.ErrNotFound},
		{"distance too long", OfferCommand{DriverID: "driver", VehicleID: "v1", Origin: "a", Destination: "b", StartTime: base.Add(time.Hour), Seats: 1, DistanceKm: 1e18, Package: types.PackageMonthly}, types.ErrValidation},
		{"cost out of range", OfferCommand{DriverID: "driver", VehicleID: "v3", Origin: "a", Destination: "b", StartTime: base.Add(time.Hour), Seats: 1, DistanceKm: 4000, Package: types.PackageMonthly}, types.ErrValidation},
	}
	for _, tc := range cases {
		if _, err := h.svc.OfferRide(ctx, tc.cmd); !errors.Is(err, tc.kind) {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.kind, err)
		}
	}
	rides, err := h.store.RidesByDriver(ctx, "driver")
	if err != nil || len(rides) != 1 {
		t.Fatalf("rejected offers must not be stored: %d rides, err %v", len(rides), err)
	}
}

func TestBookingFlowAndSettlement(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	r := h.offer(t, 4)

	b1 := h.book(t, r.ID, "p1", 1)
	b2 := h.book(t, r.ID, "p2", 2)
	h.assertInventory(t, r.ID)
	if got := h.ride(t, r.ID).AvailableSeats(); got != 1 {
		t.Fatalf("available = %d, want 1", got)
	}

	if _, err := h.svc.ConfirmBooking(ctx, b1.ID, "p2"); !errors.Is(err, types.ErrForbidden) {
		t.Fatalf("non-driver confirm: expected forbidden, got %v", err)
	}
	h.confirm(t, b1.ID)
	h.confirm(t, b2.ID)
	h.assertInventory(t, r.ID)

	d, err := h.svc.Settlement(ctx, r.ID, "p1")
	if err != nil {
		t.Fatalf("settlement: %v", err)
	}
	if d.TotalCost.String() != "500.00" || d.PerSeat.String() != "125.00" || d.DriverShare.String() != "125.00" {
		t.Fatalf("unexpected settlement: %+v", d)
	}
	shares := map[types.ID]string{}
	for _, s := range d.Shares {
		shares[s.BookingID] = s.Amount.String()
	}
	if shares[b1.ID] != "125.00" || shares[b2.ID] != "250.00" {
		t.Fatalf("unexpected shares: %v", shares)
	}
	if _, err := h.svc.Settlement(ctx, r.ID, "stranger"); !errors.Is(err, types.ErrForbidden) {
		t.Fatalf("stranger settlement: expected forbidden, got %v", err)
	}

	want := []notify.EventType{notify.RideOffered, notify.BookingRequested, notify.BookingRequested, notify.BookingConfirmed, notify.BookingConfirmed}
	got := h.pub.types()
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
}

func TestRequestBookingRules(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	r := h.offer(t, 3)
	h.book(t, r.ID, "p1", 1)

	cases := []struct {
		name string
		cmd  BookCommand
		kind error
	}{
		{"duplicate", BookCommand{RideID: r.ID, PassengerID: "p1", Seats: 1}, types.ErrValidation},
		{"own ride", BookCommand{RideID: r.ID, PassengerID: "driver", Seats: 1}, types.ErrValidation},
		{"too many", BookCommand{RideID: r.ID, PassengerID: "p2", Seats: 3}, types.ErrValidation},
		{"zero", BookCommand{RideID: r.ID, PassengerID: "p2", Seats: 0}, types.ErrValidation},
		{"missing ride", BookCommand{RideID: "missing", PassengerID: "p2", Seats: 1}, types.ErrNotFound},
	}
	for _, tc := range cases {
		if _, err := h.svc.RequestBooking(ctx, tc.cmd); !errors.Is(err, tc.kind) {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.kind, err)
		}
	}

	h.clock.Set(r.StartTime.Add(time.Minute))
	if _, err := h.svc.RequestBooking(ctx, BookCommand{RideID: r.ID, PassengerID: "p3", Seats: 1}); !errors.Is(err, types.ErrValidation) {
		t.Fatalf("late booking: expected validation error, got %v", err)
	}
	h.assertInventory(t, r.ID)
}

func TestCancelAndRemovePassenger(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	r := h.offer(t, 4)
	b1 := h.book(t, r.ID, "p1", 2)
	b2 := h.book(t, r.ID, "p2", 1)
	h.confirm(t, b2.ID)

	if _, err := h.svc.CancelBooking(ctx, b1.ID, "p2"); !errors.Is(err, types.ErrForbidden) {
		t.Fatalf("other passenger cancel: expected forbidden, got %v", err)
	}
	if _, err := h.svc.CancelBooking(ctx, b1.ID, "p1"); err != nil {
		t.Fatalf("passenger cancel: %v", err)
	}
	if _, err := h.svc.CancelBooking(ctx, b1.ID, "p1"); !errors.Is(err, types.ErrState) {
		t.Fatalf("second cancel: expected state error, got %v", err)
	}
	if _, err := h.svc.CancelBooking(ctx, b2.ID, "driver"); err != nil {
		t.Fatalf("driver removes passenger: %v", err)
	}
	if got := h.ride(t, r.ID).AvailableSeats(); got != 4 {
		t.Fatalf("available = %d, want 4", got)
	}
	h.assertInventory(t, r.ID)

	// Passenger may book again after cancelling.
	h.book(t, r.ID, "p1", 1)
	h.assertInventory(t, r.ID)
}

func TestRideLifecycleThroughService(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	r := h.offer(t, 4)
	b1 := h.book(t, r.ID, "p1", 1)
	b2 := h.book(t, r.ID, "p2", 1)
	h.confirm(t, b1.ID)

	h.clock.Set(r.StartTime)
	if _, err := h.svc.StartRide(ctx, r.ID, "p1"); !errors.Is(err, types.ErrForbidden) {
		t.Fatalf("passenger start: expected forbidden, got %v", err)
	}
	started, err := h.svc.StartRide(ctx, r.ID, "driver")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if started.Status != StatusOngoing || started.BufferMinutes != 45 || !started.EstimatedEnd.Equal(r.StartTime.Add(150*time.Minute)) {
		t.Fatalf("unexpected started ride: %+v", started)
	}
	if got := h.booking(t, b1.ID); got.Progress != ProgressOngoing {
		t.Fatalf("confirmed booking progress = %s", got.Progress)
	}

	legAt := r.StartTime.Add(40 * time.Minute)
	h.clock.Set(legAt)
	if _, err := h.svc.CompletePassengerLeg(ctx, b1.ID, "driver"); !errors.Is(err, types.ErrForbidden) {
		t.Fatalf("driver completing leg: expected forbidden, got %v", err)
	}
	if _, err := h.svc.CompletePassengerLeg(ctx, b1.ID, "p1"); err != nil {
		t.Fatalf("complete leg: %v", err)
	}
	if got := h.booking(t, b1.ID); got.Status != BookingConfirmed || got.Progress != ProgressCompleted {
		t.Fatalf("unexpected booking after leg: %+v", got)
	}

	endAt := r.StartTime.Add(2 * time.Hour)
	h.clock.Set(endAt)
	ended, err := h.svc.EndRide(ctx, r.ID, "driver")
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if ended.Status != StatusCompleted || ended.AutoCompleted || ended.CompletedBy != ClosedByDriver || !ended.ActualEnd.Equal(endAt) {
		t.Fatalf("unexpected ended ride: %+v", ended)
	}
	got := h.booking(t, b1.ID)
	if got.Status != BookingCompleted || !got.PassengerCompletedAt.Equal(legAt) {
		t.Fatalf("leg completion time should be kept: %+v", got)
	}
	if h.booking(t, b2.ID).Status != BookingPending {
		t.Fatalf("pending booking should be untouched by end")
	}
	if _, err := h.svc.EndRide(ctx, r.ID, "driver"); !errors.Is(err, types.ErrState) {
		t.Fatalf("second end: expected state error, got %v", err)
	}
	if _, err := h.svc.CancelRide(ctx, r.ID, "driver"); !errors.Is(err, types.ErrState) {
		t.Fatalf("cancel completed: expected state error, got %v", err)
	}
}

func TestPendingBookingAfterRideEnds(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	r := h.offer(t, 4)
	b1 := h.book(t, r.ID, "p1", 1)
	b2 := h.book(t, r.ID, "p2", 2)
	h.confirm(t, b1.ID)

	h.clock.Set(r.StartTime)
	if _, err := h.svc.StartRide(ctx, r.ID, "driver"); err != nil {
		t.Fatalf("start: %v", err)
	}
	h.clock.Set(r.StartTime.Add(2 * time.Hour))
	if _, err := h.svc.EndRide(ctx, r.ID, "driver"); err != nil {
		t.Fatalf("end: %v", err)
	}
	before, err := h.svc.Settlement(ctx, r.ID, "driver")
	if err != nil {
		t.Fatalf("settlement: %v", err)
	}

	if _, err := h.svc.ConfirmBooking(ctx, b2.ID, "driver"); !errors.Is(err, types.ErrState) {
		t.Fatalf("confirm on completed ride: expected state error, got %v", err)
	}
	if got := h.booking(t, b2.ID); got.Status != BookingPending {
		t.Fatalf("booking should stay pending, got %s", got.Status)
	}
	after, err := h.svc.Settlement(ctx, r.ID, "driver")
	if err != nil {
		t.Fatalf("settlement: %v", err)
	}
	if after.PerSeat != before.PerSeat || after.TotalSeats != before.TotalSeats {
		t.Fatalf("settlement changed after close: before=%+v after=%+v", before, after)
	}

	h.clock.Set(r.StartTime.Add(10 * time.Hour))
	if _, err := h.svc.SweepNow(ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if got := h.booking(t, b2.ID); got.Status != BookingPending {
		t.Fatalf("sweep must not touch a completed ride's bookings, got %s", got.Status)
	}

	if _, err := h.svc.RejectBooking(ctx, b2.ID, "driver"); err != nil {
		t.Fatalf("reject leftover pending: %v", err)
	}
	h.assertInventory(t, r.ID)
}

func TestCurrentRide(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	r := h.offer(t, 4)
	b1 := h.book(t, r.ID, "p1", 1)
	h.book(t, r.ID, "p2", 1)
	h.confirm(t, b1.ID)

	for _, user := range []types.ID{"driver", "p1", "p2"} {
		if got, err := h.svc.CurrentRide(ctx, user); err != nil || got != nil {
			t.Fatalf("%s before start: got %v err=%v", user, got, err)
		}
	}
	h.clock.Set(r.StartTime)
	if _, err := h.svc.StartRide(ctx, r.ID, "driver"); err != nil {
		t.Fatalf("start: %v", err)
	}
	for _, user := range []types.ID{"driver", "p1"} {
		if got, err := h.svc.CurrentRide(ctx, user); err != nil || got == nil || got.ID != r.ID {
			t.Fatalf("%s during ride: got %v err=%v", user, got, err)
		}
	}
	if got, _ := h.svc.CurrentRide(ctx, "p2"); got != nil {
		t.Fatalf("pending passenger is not on the ride")
	}
	if _, err := h.svc.CompletePassengerLeg(ctx, b1.ID, "p1"); err != nil {
		t.Fatalf("complete leg: %v", err)
	}
	if got, _ := h.svc.CurrentRide(ctx, "p1"); got != nil {
		t.Fatalf("dropped-off passenger should have no current ride")
	}
}

func TestCancelRideBoundary(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	late := h.offer(t, 4)
	h.book(t, late.ID, "p1", 1)
	h.clock.Set(late.StartTime)
	if _, err := h.svc.CancelRide(ctx, late.ID, "driver"); !errors.Is(err, types.ErrState) {
		t.Fatalf("cancel at start: expected state error, got %v", err)
	}
	h.assertInventory(t, late.ID)

	h.clock.Set(base)
	r := h.offer(t, 4)
	b1 := h.book(t, r.ID, "p1", 1)
	b2 := h.book(t, r.ID, "p2", 2)
	h.confirm(t, b2.ID)

	if _, err := h.svc.CancelRide(ctx, r.ID, "p1"); !errors.Is(err, types.ErrForbidden) {
		t.Fatalf("passenger cancel ride: expected forbidden, got %v", err)
	}
	h.clock.Set(r.StartTime.Add(-time.Minute))
	cancelled, err := h.svc.CancelRide(ctx, r.ID, "driver")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != StatusCancelled || cancelled.AvailableSeats() != 4 {
		t.Fatalf("unexpected ride: %+v", cancelled)
	}
	if h.booking(t, b1.ID).Status != BookingCancelled || h.booking(t, b2.ID).Status != BookingCancelled {
		t.Fatalf("bookings not cancelled")
	}
	h.assertInventory(t, r.ID)
}

func TestSweepAutoCompleteIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	r := h.offer(t, 4)
	b := h.book(t, r.ID, "p1", 1)
	h.confirm(t, b.ID)

	h.clock.Set(r.StartTime)
	if _, err := h.svc.StartRide(ctx, r.ID, "driver"); err != nil {
		t.Fatalf("start: %v", err)
	}

	// estimated end 12:30, buffer 45 minutes
	deadline := r.StartTime.Add(150*time.Minute + 45*time.Minute)
	report, err := h.svc.SweepOverdueRides(ctx, deadline.Add(-time.Minute))
	if err != nil || report.Completed() != 0 {
		t.Fatalf("early sweep: report=%+v err=%v", report, err)
	}

	report, err = h.svc.SweepOverdueRides(ctx, deadline)
	if err != nil || report.AutoCompleted != 1 || report.Completed() != 1 {
		t.Fatalf("sweep: report=%+v err=%v", report, err)
	}
	after := h.ride(t, r.ID)
	if after.Status != StatusCompleted || !after.AutoCompleted || after.CompletedBy != ClosedByAuto {
		t.Fatalf("unexpected ride: %+v", after)
	}
	if got := h.booking(t, b.ID); got.Status != BookingCompleted {
		t.Fatalf("booking status = %s", got.Status)
	}

	events := len(h.store.Events(r.ID))
	report, err = h.svc.SweepOverdueRides(ctx, deadline.Add(time.Hour))
	if err != nil || report.Completed() != 0 {
		t.Fatalf("second sweep: report=%+v err=%v", report, err)
	}
	again := h.ride(t, r.ID)
	if again.Version != after.Version || len(h.store.Events(r.ID)) != events {
		t.Fatalf("second sweep changed state")
	}
}

func TestSweepRepairsOverdueRide(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	r := h.offer(t, 4)
	pending := h.book(t, r.ID, "p1", 1)
	confirmed := h.book(t, r.ID, "p2", 2)
	h.confirm(t, confirmed.ID)

	now := r.StartTime.Add(90 * time.Minute)
	report, err := h.svc.SweepOverdueRides(ctx, now)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if report.Repaired != 1 || report.AutoCompleted != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
	got := h.ride(t, r.ID)
	if got.Status != StatusCompleted || !got.AutoCompleted || !got.ActualStart.Equal(r.StartTime) || !got.ActualEnd.Equal(now) {
		t.Fatalf("unexpected ride: %+v", got)
	}
	if h.booking(t, pending.ID).Status != BookingRejected {
		t.Fatalf("pending booking should be rejected")
	}
	if b := h.booking(t, confirmed.ID); b.Status != BookingCompleted || b.Progress != ProgressCompleted {
		t.Fatalf("confirmed booking should be completed: %+v", b)
	}
	h.assertInventory(t, r.ID)

	report, err = h.svc.SweepOverdueRides(ctx, now.Add(time.Minute))
	if err != nil || report.Completed() != 0 {
		t.Fatalf("second sweep: report=%+v err=%v", report, err)
	}
}

func TestSummaryRespectsGate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	r := h.offer(t, 2)
	h.book(t, r.ID, "p1", 1)

	h.svc.gate = stubGate{allow: false}
	h.clock.Set(r.StartTime.Add(2 * time.Hour))
	sum, err := h.svc.Summary(ctx, "driver")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if sum.Sweep != nil || len(sum.ActiveRides) != 1 {
		t.Fatalf("gated summary should not sweep: %+v", sum)
	}

	h.svc.gate = stubGate{allow: true}
	sum, err = h.svc.Summary(ctx, "driver")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if sum.Sweep == nil || sum.Sweep.Repaired != 1 || len(sum.PastRides) != 1 || len(sum.ActiveRides) != 0 {
		t.Fatalf("unexpected summary: %+v", sum)
	}

	psum, err := h.svc.Summary(ctx, "p1")
	if err != nil {
		t.Fatalf("passenger summary: %v", err)
	}
	if len(psum.PastBookings) != 1 || len(psum.ActiveBookings) != 0 {
		t.Fatalf("unexpected passenger summary: %+v", psum)
	}
}

func TestSearchRides(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	r := h.offer(t, 1)
	h.offer(t, 2)

	found, err := h.svc.SearchRides(ctx, SearchQuery{Origin: "kora", Destination: "WHITE"})
	if err != nil || len(found) != 2 {
		t.Fatalf("search: %d rides, err=%v", len(found), err)
	}
	h.book(t, r.ID, "p1", 1)
	found, _ = h.svc.SearchRides(ctx, SearchQuery{Package: types.PackageWeekly})
	if len(found) != 1 {
		t.Fatalf("full rides should be hidden, got %d", len(found))
	}
	found, _ = h.svc.SearchRides(ctx, SearchQuery{Package: types.PackageDaily})
	if len(found) != 0 {
		t.Fatalf("package filter ignored")
	}
	if _, err := h.svc.SearchRides(ctx, SearchQuery{Package: "yearly"}); !errors.Is(err, types.ErrValidation) {
		t.Fatalf("expected validation error for unknown package, got %v", err)
	}
}

// TestInventoryInvariantUnderRandomOperations replays random booking operations and
// checks the seat invariant after every step.
func TestInventoryInvariantUnderRandomOperations(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	r := h.offer(t, 6)
	rng := rand.New(rand.NewSource(42))

	var ids []types.ID
	for step := 0; step < 300; step++ {
		var err error
		switch op := rng.Intn(4); {
		case op == 0 || len(ids) == 0:
			passenger := types.ID(fmt.Sprintf("p%d", rng.Intn(8)))
			var b *Booking
			b, err = h.svc.RequestBooking(ctx, BookCommand{RideID: r.ID, PassengerID: passenger, Seats: 1 + rng.Intn(3)})
			if err == nil {
				ids = append(ids, b.ID)
			}
		case op == 1:
			_, err = h.svc.ConfirmBooking(ctx, ids[rng.Intn(len(ids))], "driver")
		case op == 2:
			_, err = h.svc.RejectBooking(ctx, ids[rng.Intn(len(ids))], "driver")
		default:
			id := ids[rng.Intn(len(ids))]
			b := h.booking(t, id)
			_, err = h.svc.CancelBooking(ctx, id, b.PassengerID)
		}
		if err != nil && !errors.Is(err, types.ErrValidation) && !errors.Is(err, types.ErrState) {
			t.Fatalf("step %d: unexpected error kind: %v", step, err)
		}
		h.assertInventory(t, r.ID)
	}
}

func TestConcurrentBookingsForLastSeats(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	r := h.offer(t, 2)

	const attempts = 8
	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := h.svc.RequestBooking(ctx, BookCommand{RideID: r.ID, PassengerID: types.ID(fmt.Sprintf("p%d", n)), Seats: 1})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	success := 0
	for err := range errs {
		if err == nil {
			success++
			continue
		}
		if !errors.Is(err, types.ErrConflict) && !errors.Is(err, types.ErrValidation) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if success != 2 {
		t.Fatalf("expected exactly 2 successes, got %d", success)
	}
	if got := h.ride(t, r.ID).AvailableSeats(); got != 0 {
		t.Fatalf("available = %d, want 0", got)
	}
	h.assertInventory(t, r.ID)
}

func TestConcurrentCancelAndConfirm(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	r := h.offer(t, 3)
	b := h.book(t, r.ID, "p1", 2)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = h.svc.ConfirmBooking(ctx, b.ID, "driver")
	}()
	go func() {
		defer wg.Done()
		_, _ = h.svc.CancelBooking(ctx, b.ID, "p1")
	}()
	wg.Wait()

	got := h.booking(t, b.ID)
	if got.Status != BookingCancelled {
		t.Fatalf("cancel wins from either order, got %s", got.Status)
	}
	h.assertInventory(t, r.ID)
}
