// README: Review stores backed by PostgreSQL or memory.
package review

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"carpool/internal/types"
)

type Store interface {
	Create(ctx context.Context, r *Review) error
	Exists(ctx context.Context, bookingID, reviewerID types.ID, kind Kind) (bool, error)
	ForUser(ctx context.Context, revieweeID types.ID) ([]*Review, error)
}

var errAlreadyReviewed = types.Errorf(types.ErrState, "You have already reviewed this booking")

type PGStore struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Create(ctx context.Context, r *Review) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO reviews (id, booking_id, ride_id, reviewer_id, reviewee_id, kind, flag, rating, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		string(r.ID), string(r.BookingID), string(r.RideID), string(r.ReviewerID), string(r.RevieweeID),
		string(r.Kind), string(r.Flag), r.Rating, r.Comment, r.CreatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return errAlreadyReviewed
	}
	return err
}

func (s *PGStore) Exists(ctx context.Context, bookingID, reviewerID types.ID, kind Kind) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM reviews WHERE booking_id = $1 AND reviewer_id = $2 AND kind = $3
		)`, string(bookingID), string(reviewerID), string(kind),
	).Scan(&exists)
	return exists, err
}

func (s *PGStore) ForUser(ctx context.Context, revieweeID types.ID) ([]*Review, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, booking_id, ride_id, reviewer_id, reviewee_id, kind, flag, rating, comment, created_at
		FROM reviews
		WHERE reviewee_id = $1
		ORDER BY created_at DESC`, string(revieweeID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Review
	for rows.Next() {
		var r Review
		var id, booking, ride, reviewer, reviewee, kind, flag string
		if err := rows.Scan(&id, &booking, &ride, &reviewer, &reviewee, &kind, &flag, &r.Rating, &r.Comment, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.ID, r.BookingID, r.RideID = types.ID(id), types.ID(booking), types.ID(ride)
		r.ReviewerID, r.RevieweeID = types.ID(reviewer), types.ID(reviewee)
		r.Kind, r.Flag = Kind(kind), Flag(flag)
		out = append(out, &r)
	}
	return out, rows.Err()
}

type MemStore struct {
	mu      sync.RWMutex
	reviews []Review
}

func NewMemStore() *MemStore {
	return &MemStore{}
}

func (s *MemStore) Create(_ context.Context, r *Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cur := range s.reviews {
		if cur.BookingID == r.BookingID && cur.ReviewerID == r.ReviewerID && cur.Kind == r.Kind {
			return errAlreadyReviewed
		}
	}
	s.reviews = append(s.reviews, *r)
	return nil
}

func (s *MemStore) Exists(_ context.Context, bookingID, reviewerID types.ID, kind Kind) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, cur := range s.reviews {
		if cur.BookingID == bookingID && cur.ReviewerID == reviewerID && cur.Kind == kind {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemStore) ForUser(_ context.Context, revieweeID types.ID) ([]*Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Review
	for _, r := range s.reviews {
		if r.RevieweeID == revieweeID {
			r := r
			out = append(out, &r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
