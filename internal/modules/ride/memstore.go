// README: In-memory ride store; serialised transactions with staged writes, used for tests and local runs.
package ride

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"carpool/internal/types"
)

type MemStore struct {
	txMu sync.Mutex

	mu       sync.RWMutex
	rides    map[types.ID]*Ride
	bookings map[types.ID]*Booking
	events   []Event
}

func NewMemStore() *MemStore {
	return &MemStore{
		rides:    map[types.ID]*Ride{},
		bookings: map[types.ID]*Booking{},
	}
}

// InTx runs fn with exclusive access; writes become visible only if fn returns nil.
func (s *MemStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &memTx{
		store:    s,
		rides:    map[types.ID]*Ride{},
		bookings: map[types.ID]*Booking{},
	}
	if err := fn(tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, r := range tx.rides {
		s.rides[id] = r
	}
	for id, b := range tx.bookings {
		s.bookings[id] = b
	}
	for _, e := range tx.events {
		e.ID = int64(len(s.events) + 1)
		s.events = append(s.events, e)
	}
	return nil
}

func (s *MemStore) GetRide(_ context.Context, id types.ID) (*Ride, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rides[id]
	if !ok {
		return nil, types.Errorf(types.ErrNotFound, "Ride not found")
	}
	return cloneRide(r), nil
}

func (s *MemStore) GetBooking(_ context.Context, id types.ID) (*Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, types.Errorf(types.ErrNotFound, "Booking not found")
	}
	return cloneBooking(b), nil
}

func (s *MemStore) ListBookings(_ context.Context, rideID types.ID) ([]*Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bookingsWhere(func(b *Booking) bool { return b.RideID == rideID }), nil
}

func (s *MemStore) RidesByDriver(_ context.Context, driverID types.ID) ([]*Ride, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.ridesWhere(func(r *Ride) bool { return r.DriverID == driverID })
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	return out, nil
}

func (s *MemStore) BookingsByPassenger(_ context.Context, passengerID types.ID) ([]*Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.bookingsWhere(func(b *Booking) bool { return b.PassengerID == passengerID })
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemStore) Search(_ context.Context, q SearchQuery) ([]*Ride, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	origin, dest := strings.ToLower(q.Origin), strings.ToLower(q.Destination)
	out := s.ridesWhere(func(r *Ride) bool {
		return r.Status == StatusUpcoming &&
			r.availableSeats > 0 &&
			r.StartTime.After(q.After) &&
			strings.Contains(strings.ToLower(r.Origin), origin) &&
			strings.Contains(strings.ToLower(r.Destination), dest) &&
			(q.Package == "" || r.Package == q.Package)
	})
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemStore) RideIDsByStatus(_ context.Context, status Status) ([]types.ID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rides := s.ridesWhere(func(r *Ride) bool { return r.Status == status })
	sort.Slice(rides, func(i, j int) bool { return rides[i].StartTime.Before(rides[j].StartTime) })
	ids := make([]types.ID, len(rides))
	for i, r := range rides {
		ids[i] = r.ID
	}
	return ids, nil
}

// Events returns the committed audit log for a ride.
func (s *MemStore) Events(rideID types.ID) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Event
	for _, e := range s.events {
		if e.RideID == rideID {
			out = append(out, e)
		}
	}
	return out
}

func (s *MemStore) ridesWhere(keep func(*Ride) bool) []*Ride {
	var out []*Ride
	for _, r := range s.rides {
		if keep(r) {
			out = append(out, cloneRide(r))
		}
	}
	return out
}

func (s *MemStore) bookingsWhere(keep func(*Booking) bool) []*Booking {
	var out []*Booking
	for _, b := range s.bookings {
		if keep(b) {
			out = append(out, cloneBooking(b))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

type memTx struct {
	store    *MemStore
	rides    map[types.ID]*Ride
	bookings map[types.ID]*Booking
	events   []Event
}

func (t *memTx) ride(id types.ID) (*Ride, bool) {
	if r, ok := t.rides[id]; ok {
		return r, true
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	r, ok := t.store.rides[id]
	return r, ok
}

func (t *memTx) booking(id types.ID) (*Booking, bool) {
	if b, ok := t.bookings[id]; ok {
		return b, true
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	b, ok := t.store.bookings[id]
	return b, ok
}

func (t *memTx) CreateRide(_ context.Context, r *Ride) error {
	if _, ok := t.ride(r.ID); ok {
		return types.Errorf(types.ErrConflict, "ride %s already exists", r.ID)
	}
	t.rides[r.ID] = cloneRide(r)
	return nil
}

func (t *memTx) LockRide(_ context.Context, id types.ID) (*Ride, error) {
	r, ok := t.ride(id)
	if !ok {
		return nil, types.Errorf(types.ErrNotFound, "Ride not found")
	}
	return cloneRide(r), nil
}

func (t *memTx) LockBooking(_ context.Context, id types.ID) (*Booking, error) {
	b, ok := t.booking(id)
	if !ok {
		return nil, types.Errorf(types.ErrNotFound, "Booking not found")
	}
	return cloneBooking(b), nil
}

func (t *memTx) LockRideBookings(_ context.Context, rideID types.ID) ([]*Booking, error) {
	seen := map[types.ID]bool{}
	var ids []types.ID
	t.store.mu.RLock()
	for id, b := range t.store.bookings {
		if b.RideID == rideID {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	t.store.mu.RUnlock()
	for id, b := range t.bookings {
		if b.RideID == rideID && !seen[id] {
			ids = append(ids, id)
		}
	}

	out := make([]*Booking, 0, len(ids))
	for _, id := range ids {
		b, _ := t.booking(id)
		out = append(out, cloneBooking(b))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (t *memTx) HasActiveBooking(ctx context.Context, rideID, passengerID types.ID) (bool, error) {
	bookings, err := t.LockRideBookings(ctx, rideID)
	if err != nil {
		return false, err
	}
	for _, b := range bookings {
		if b.PassengerID == passengerID && b.Active() {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) CreateBooking(_ context.Context, b *Booking) error {
	if _, ok := t.booking(b.ID); ok {
		return types.Errorf(types.ErrConflict, "booking %s already exists", b.ID)
	}
	t.bookings[b.ID] = cloneBooking(b)
	return nil
}

func (t *memTx) UpdateRide(_ context.Context, r *Ride) error {
	cur, ok := t.ride(r.ID)
	if !ok {
		return types.Errorf(types.ErrNotFound, "Ride not found")
	}
	if cur.Version != r.Version {
		return types.Errorf(types.ErrConflict, "ride %s was modified concurrently", r.ID)
	}
	r.Version++
	t.rides[r.ID] = cloneRide(r)
	return nil
}

func (t *memTx) UpdateBooking(_ context.Context, b *Booking) error {
	cur, ok := t.booking(b.ID)
	if !ok {
		return types.Errorf(types.ErrNotFound, "Booking not found")
	}
	if cur.Version != b.Version {
		return types.Errorf(types.ErrConflict, "booking %s was modified concurrently", b.ID)
	}
	b.Version++
	t.bookings[b.ID] = cloneBooking(b)
	return nil
}

func (t *memTx) AppendEvent(_ context.Context, e *Event) error {
	t.events = append(t.events, *e)
	return nil
}

func cloneRide(r *Ride) *Ride {
	c := *r
	c.ActualStart = cloneTime(r.ActualStart)
	c.ActualEnd = cloneTime(r.ActualEnd)
	c.EstimatedEnd = cloneTime(r.EstimatedEnd)
	return &c
}

func cloneBooking(b *Booking) *Booking {
	c := *b
	c.PassengerCompletedAt = cloneTime(b.PassengerCompletedAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
