// README: Vehicle stores; PostgreSQL for deployments and an in-memory map for tests and local runs.
package vehicle

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"carpool/internal/types"
)

type Store interface {
	Create(ctx context.Context, v *Vehicle) error
	Get(ctx context.Context, id types.ID) (*Vehicle, error)
	ListByOwner(ctx context.Context, ownerID types.ID) ([]*Vehicle, error)
}

var errDuplicatePlate = types.Errorf(types.ErrConflict, "This license plate is already registered")

type PGStore struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

const vehicleColumns = `id, owner_id, make, model, year, color, license_plate, fuel_type, mileage, created_at`

func (s *PGStore) Create(ctx context.Context, v *Vehicle) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO vehicles (`+vehicleColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		string(v.ID), string(v.OwnerID), v.Make, v.Model, v.Year, v.Color, v.LicensePlate,
		string(v.FuelType), v.Mileage, v.CreatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return errDuplicatePlate
	}
	return err
}

func (s *PGStore) Get(ctx context.Context, id types.ID) (*Vehicle, error) {
	row := s.db.QueryRow(ctx, `SELECT `+vehicleColumns+` FROM vehicles WHERE id = $1`, string(id))
	v, err := scanVehicle(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.Errorf(types.ErrNotFound, "Vehicle not found")
	}
	return v, err
}

func (s *PGStore) ListByOwner(ctx context.Context, ownerID types.ID) ([]*Vehicle, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+vehicleColumns+` FROM vehicles
		WHERE owner_id = $1
		ORDER BY created_at`, string(ownerID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Vehicle
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func scanVehicle(row pgx.Row) (*Vehicle, error) {
	var v Vehicle
	var id, owner, fuel string
	if err := row.Scan(&id, &owner, &v.Make, &v.Model, &v.Year, &v.Color, &v.LicensePlate, &fuel, &v.Mileage, &v.CreatedAt); err != nil {
		return nil, err
	}
	v.ID, v.OwnerID, v.FuelType = types.ID(id), types.ID(owner), types.FuelType(fuel)
	return &v, nil
}

type MemStore struct {
	mu       sync.RWMutex
	vehicles map[types.ID]Vehicle
}

func NewMemStore() *MemStore {
	return &MemStore{vehicles: map[types.ID]Vehicle{}}
}

func (s *MemStore) Create(_ context.Context, v *Vehicle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cur := range s.vehicles {
		if cur.LicensePlate == v.LicensePlate {
			return errDuplicatePlate
		}
	}
	s.vehicles[v.ID] = *v
	return nil
}

func (s *MemStore) Get(_ context.Context, id types.ID) (*Vehicle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vehicles[id]
	if !ok {
		return nil, types.Errorf(types.ErrNotFound, "Vehicle not found")
	}
	return &v, nil
}

func (s *MemStore) ListByOwner(_ context.Context, ownerID types.ID) ([]*Vehicle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Vehicle
	for _, v := range s.vehicles {
		if v.OwnerID == ownerID {
			v := v
			out = append(out, &v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
