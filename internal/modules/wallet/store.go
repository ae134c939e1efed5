// README: Expense stores backed by PostgreSQL or memory.
package wallet

import (
	"context"
	"sort"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"carpool/internal/types"
)

type Store interface {
	Add(ctx context.Context, e *Expense) error
	ForRide(ctx context.Context, rideID types.ID) ([]*Expense, error)
}

type PGStore struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Add(ctx context.Context, e *Expense) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO expenses (id, ride_id, fuel_cost, toll_cost, other_cost, currency, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		string(e.ID), string(e.RideID), e.FuelCost.Amount, e.TollCost.Amount, e.OtherCost.Amount,
		e.FuelCost.Currency, e.Description, e.CreatedAt,
	)
	return err
}

func (s *PGStore) ForRide(ctx context.Context, rideID types.ID) ([]*Expense, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, ride_id, fuel_cost, toll_cost, other_cost, currency, description, created_at
		FROM expenses
		WHERE ride_id = $1
		ORDER BY created_at`, string(rideID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Expense
	for rows.Next() {
		var e Expense
		var id, ride, currency string
		var fuel, toll, other int64
		if err := rows.Scan(&id, &ride, &fuel, &toll, &other, &currency, &e.Description, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.ID, e.RideID = types.ID(id), types.ID(ride)
		e.FuelCost = types.Money{Amount: fuel, Currency: currency}
		e.TollCost = types.Money{Amount: toll, Currency: currency}
		e.OtherCost = types.Money{Amount: other, Currency: currency}
		out = append(out, &e)
	}
	return out, rows.Err()
}

type MemStore struct {
	mu       sync.RWMutex
	expenses []Expense
}

func NewMemStore() *MemStore {
	return &MemStore{}
}

func (s *MemStore) Add(_ context.Context, e *Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expenses = append(s.expenses, *e)
	return nil
}

func (s *MemStore) ForRide(_ context.Context, rideID types.ID) ([]*Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Expense
	for _, e := range s.expenses {
		if e.RideID == rideID {
			e := e
			out = append(out, &e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
