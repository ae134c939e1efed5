// README: Fuel price overrides stored in PostgreSQL.
package fare

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"carpool/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// FuelPrices returns every row of fuel_prices keyed by fuel type.
func (s *Store) FuelPrices(ctx context.Context) (map[types.FuelType]float64, error) {
	rows, err := s.db.Query(ctx, `SELECT fuel_type, price_per_unit FROM fuel_prices`)
	if err != nil {
		return nil, fmt.Errorf("query fuel prices: %w", err)
	}
	defer rows.Close()

	out := map[types.FuelType]float64{}
	for rows.Next() {
		var fuel string
		var price float64
		if err := rows.Scan(&fuel, &price); err != nil {
			return nil, err
		}
		if ft, ok := types.ParseFuelType(fuel); ok {
			out[ft] = price
		}
	}
	return out, rows.Err()
}

// SetFuelPrice upserts a single override.
func (s *Store) SetFuelPrice(ctx context.Context, fuel types.FuelType, price float64) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO fuel_prices (fuel_type, price_per_unit, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (fuel_type) DO UPDATE SET price_per_unit = EXCLUDED.price_per_unit, updated_at = NOW()`,
		string(fuel), price,
	)
	return err
}
