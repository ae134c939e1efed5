// README: Ride store contracts and the PostgreSQL implementation (row locks plus optimistic versions).
package ride

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"carpool/internal/types"
)

// SearchQuery filters upcoming rides with free seats.
type SearchQuery struct {
	Origin      string
	Destination string
	Package     types.PackageType
	After       time.Time
	Limit       int
}

// Store is the store of record for rides and bookings.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
	GetRide(ctx context.Context, id types.ID) (*Ride, error)
	GetBooking(ctx context.Context, id types.ID) (*Booking, error)
	ListBookings(ctx context.Context, rideID types.ID) ([]*Booking, error)
	RidesByDriver(ctx context.Context, driverID types.ID) ([]*Ride, error)
	BookingsByPassenger(ctx context.Context, passengerID types.ID) ([]*Booking, error)
	Search(ctx context.Context, q SearchQuery) ([]*Ride, error)
	RideIDsByStatus(ctx context.Context, status Status) ([]types.ID, error)
}

// Tx is a single store transaction. Lock the ride before any of its bookings.
type Tx interface {
	CreateRide(ctx context.Context, r *Ride) error
	LockRide(ctx context.Context, id types.ID) (*Ride, error)
	LockBooking(ctx context.Context, id types.ID) (*Booking, error)
	LockRideBookings(ctx context.Context, rideID types.ID) ([]*Booking, error)
	HasActiveBooking(ctx context.Context, rideID, passengerID types.ID) (bool, error)
	CreateBooking(ctx context.Context, b *Booking) error
	UpdateRide(ctx context.Context, r *Ride) error
	UpdateBooking(ctx context.Context, b *Booking) error
	AppendEvent(ctx context.Context, e *Event) error
}

type PGStore struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const rideColumns = `id, driver_id, vehicle_id, origin, destination, start_time, end_time,
	actual_start_time, actual_end_time, estimated_end_time, buffer_minutes,
	total_seats, available_seats, price_per_seat, currency, distance_km, fuel_type, mileage,
	package_type, status, auto_completed, completed_by, version, created_at`

const bookingColumns = `id, ride_id, passenger_id, seats, status, progress, pickup, dropoff, contact,
	passenger_completed_at, version, created_at`

func (s *PGStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *PGStore) GetRide(ctx context.Context, id types.ID) (*Ride, error) {
	return getRide(ctx, s.db, `SELECT `+rideColumns+` FROM rides WHERE id = $1`, id)
}

func (s *PGStore) GetBooking(ctx context.Context, id types.ID) (*Booking, error) {
	return getBooking(ctx, s.db, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
}

func (s *PGStore) ListBookings(ctx context.Context, rideID types.ID) ([]*Booking, error) {
	return listBookings(ctx, s.db, `SELECT `+bookingColumns+` FROM bookings WHERE ride_id = $1 ORDER BY created_at, id`, string(rideID))
}

func (s *PGStore) RidesByDriver(ctx context.Context, driverID types.ID) ([]*Ride, error) {
	return listRides(ctx, s.db, `SELECT `+rideColumns+` FROM rides WHERE driver_id = $1 ORDER BY start_time DESC`, string(driverID))
}

func (s *PGStore) BookingsByPassenger(ctx context.Context, passengerID types.ID) ([]*Booking, error) {
	return listBookings(ctx, s.db, `SELECT `+bookingColumns+` FROM bookings WHERE passenger_id = $1 ORDER BY created_at DESC`, string(passengerID))
}

func (s *PGStore) Search(ctx context.Context, q SearchQuery) ([]*Ride, error) {
	var (
		where = []string{"status = 'upcoming'", "available_seats > 0", "start_time > $1"}
		args  = []any{q.After}
	)
	if q.Origin != "" {
		args = append(args, "%"+q.Origin+"%")
		where = append(where, fmt.Sprintf("origin ILIKE $%d", len(args)))
	}
	if q.Destination != "" {
		args = append(args, "%"+q.Destination+"%")
		where = append(where, fmt.Sprintf("destination ILIKE $%d", len(args)))
	}
	if q.Package != "" {
		args = append(args, string(q.Package))
		where = append(where, fmt.Sprintf("package_type = $%d", len(args)))
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	sql := fmt.Sprintf(`SELECT %s FROM rides WHERE %s ORDER BY start_time LIMIT $%d`,
		rideColumns, strings.Join(where, " AND "), len(args))
	return listRides(ctx, s.db, sql, args...)
}

func (s *PGStore) RideIDsByStatus(ctx context.Context, status Status) ([]types.ID, error) {
	rows, err := s.db.Query(ctx, `SELECT id FROM rides WHERE status = $1 ORDER BY start_time`, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []types.ID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, types.ID(id))
	}
	return ids, rows.Err()
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) CreateRide(ctx context.Context, r *Ride) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO rides (`+rideColumns+`) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11,
			$12, $13, $14, $15, $16, $17, $18,
			$19, $20, $21, $22, $23, $24
		)`,
		string(r.ID), string(r.DriverID), string(r.VehicleID), r.Origin, r.Destination, r.StartTime, r.EndTime,
		r.ActualStart, r.ActualEnd, r.EstimatedEnd, r.BufferMinutes,
		r.TotalSeats, r.availableSeats, r.PricePerSeat.Amount, r.PricePerSeat.Currency, r.DistanceKm, string(r.FuelType), r.Mileage,
		string(r.Package), string(r.Status), r.AutoCompleted, string(r.CompletedBy), r.Version, r.CreatedAt,
	)
	return err
}

func (t *pgTx) LockRide(ctx context.Context, id types.ID) (*Ride, error) {
	return getRide(ctx, t.tx, `SELECT `+rideColumns+` FROM rides WHERE id = $1 FOR UPDATE`, id)
}

func (t *pgTx) LockBooking(ctx context.Context, id types.ID) (*Booking, error) {
	return getBooking(ctx, t.tx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, id)
}

func (t *pgTx) LockRideBookings(ctx context.Context, rideID types.ID) ([]*Booking, error) {
	return listBookings(ctx, t.tx, `SELECT `+bookingColumns+` FROM bookings WHERE ride_id = $1 ORDER BY created_at, id FOR UPDATE`, string(rideID))
}

func (t *pgTx) HasActiveBooking(ctx context.Context, rideID, passengerID types.ID) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM bookings
			WHERE ride_id = $1 AND passenger_id = $2 AND status IN ('pending','confirmed')
		)`, string(rideID), string(passengerID),
	).Scan(&exists)
	return exists, err
}

func (t *pgTx) CreateBooking(ctx context.Context, b *Booking) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO bookings (`+bookingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		string(b.ID), string(b.RideID), string(b.PassengerID), b.Seats, string(b.Status), string(b.Progress),
		b.Pickup, b.Drop, b.Contact, b.PassengerCompletedAt, b.Version, b.CreatedAt,
	)
	return err
}

// UpdateRide writes the ride if nobody changed it since it was read, then bumps the version.
func (t *pgTx) UpdateRide(ctx context.Context, r *Ride) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE rides
		SET status = $1,
			available_seats = $2,
			actual_start_time = $3,
			actual_end_time = $4,
			estimated_end_time = $5,
			buffer_minutes = $6,
			auto_completed = $7,
			completed_by = $8,
			version = version + 1
		WHERE id = $9 AND version = $10`,
		string(r.Status), r.availableSeats, r.ActualStart, r.ActualEnd, r.EstimatedEnd,
		r.BufferMinutes, r.AutoCompleted, string(r.CompletedBy),
		string(r.ID), r.Version,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return types.Errorf(types.ErrConflict, "ride %s was modified concurrently", r.ID)
	}
	r.Version++
	return nil
}

func (t *pgTx) UpdateBooking(ctx context.Context, b *Booking) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE bookings
		SET status = $1,
			progress = $2,
			passenger_completed_at = $3,
			version = version + 1
		WHERE id = $4 AND version = $5`,
		string(b.Status), string(b.Progress), b.PassengerCompletedAt, string(b.ID), b.Version,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return types.Errorf(types.ErrConflict, "booking %s was modified concurrently", b.ID)
	}
	b.Version++
	return nil
}

func (t *pgTx) AppendEvent(ctx context.Context, e *Event) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO ride_state_events (
			ride_id, booking_id, from_status, to_status, actor_type, actor_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		string(e.RideID), toStringPtr(e.BookingID), e.FromStatus, e.ToStatus, e.ActorType, toStringPtr(e.ActorID), e.CreatedAt,
	)
	return err
}

func getRide(ctx context.Context, q querier, sql string, id types.ID) (*Ride, error) {
	r, err := scanRide(q.QueryRow(ctx, sql, string(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.Errorf(types.ErrNotFound, "Ride not found")
	}
	return r, err
}

func getBooking(ctx context.Context, q querier, sql string, id types.ID) (*Booking, error) {
	b, err := scanBooking(q.QueryRow(ctx, sql, string(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.Errorf(types.ErrNotFound, "Booking not found")
	}
	return b, err
}

func listRides(ctx context.Context, q querier, sql string, args ...any) ([]*Ride, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Ride
	for rows.Next() {
		r, err := scanRide(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func listBookings(ctx context.Context, q querier, sql string, args ...any) ([]*Booking, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func scanRide(row pgx.Row) (*Ride, error) {
	var (
		r                                 Ride
		id, driver, vehicle               string
		fuel, pkg, status, closer         string
		actualStart, actualEnd, estimated *time.Time
	)
	err := row.Scan(
		&id, &driver, &vehicle, &r.Origin, &r.Destination, &r.StartTime, &r.EndTime,
		&actualStart, &actualEnd, &estimated, &r.BufferMinutes,
		&r.TotalSeats, &r.availableSeats, &r.PricePerSeat.Amount, &r.PricePerSeat.Currency, &r.DistanceKm, &fuel, &r.Mileage,
		&pkg, &status, &r.AutoCompleted, &closer, &r.Version, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	st, ok := ParseStatus(status)
	if !ok {
		return nil, fmt.Errorf("ride %s has unknown status %q", id, status)
	}
	r.ID, r.DriverID, r.VehicleID = types.ID(id), types.ID(driver), types.ID(vehicle)
	r.FuelType, r.Package, r.Status, r.CompletedBy = types.FuelType(fuel), types.PackageType(pkg), st, Closer(closer)
	r.ActualStart, r.ActualEnd, r.EstimatedEnd = actualStart, actualEnd, estimated
	return &r, nil
}

func scanBooking(row pgx.Row) (*Booking, error) {
	var (
		b                     Booking
		id, rideID, passenger string
		status, progress      string
	)
	err := row.Scan(
		&id, &rideID, &passenger, &b.Seats, &status, &progress, &b.Pickup, &b.Drop, &b.Contact,
		&b.PassengerCompletedAt, &b.Version, &b.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	b.ID, b.RideID, b.PassengerID = types.ID(id), types.ID(rideID), types.ID(passenger)
	b.Status, b.Progress = BookingStatus(status), Progress(progress)
	return &b, nil
}

func toStringPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}
