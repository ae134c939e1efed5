// README: Incident stores backed by PostgreSQL or memory.
package incident

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"carpool/internal/types"
)

type Store interface {
	CreateReport(ctx context.Context, r *Report) error
	GetReport(ctx context.Context, id types.ID) (*Report, error)
	ReportsByUser(ctx context.Context, userID types.ID) ([]*Report, error)
	// ListReports returns emergencies first, newest first; an empty status lists all.
	ListReports(ctx context.Context, status Status) ([]*Report, error)
	// CloseReport moves a pending report to resolved or dismissed.
	CloseReport(ctx context.Context, id types.ID, to Status, by types.ID, at time.Time) (*Report, error)

	// SaveAlert activates the user's alert, replacing any earlier one.
	SaveAlert(ctx context.Context, a *Alert) error
	CancelAlert(ctx context.Context, userID types.ID, at time.Time) (*Alert, error)
	ActiveAlerts(ctx context.Context) ([]*Alert, error)
}

var (
	errReportNotFound = types.Errorf(types.ErrNotFound, "Report not found")
	errNoActiveAlert  = types.Errorf(types.ErrState, "No active SOS alert")
)

func errAlreadyClosed(st Status) error {
	return types.Errorf(types.ErrState, "Report is already %s", st)
}

type PGStore struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

const reportColumns = `id, user_id, ride_id, report_type, subject, description, emergency_type, location, status, created_at, resolved_at, resolved_by`

const alertColumns = `user_id, ride_id, active, location, message, triggered_at, cancelled_at`

func (s *PGStore) CreateReport(ctx context.Context, r *Report) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO incidents (`+reportColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		string(r.ID), string(r.UserID), nullableID(r.RideID), string(r.Kind), r.Subject, r.Description,
		string(r.EmergencyType), r.Location, string(r.Status), r.CreatedAt, r.ResolvedAt, string(r.ResolvedBy),
	)
	return err
}

func (s *PGStore) GetReport(ctx context.Context, id types.ID) (*Report, error) {
	r, err := scanReport(s.db.QueryRow(ctx, `SELECT `+reportColumns+` FROM incidents WHERE id = $1`, string(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errReportNotFound
	}
	return r, err
}

func (s *PGStore) ReportsByUser(ctx context.Context, userID types.ID) ([]*Report, error) {
	return s.queryReports(ctx, `
		SELECT `+reportColumns+` FROM incidents
		WHERE user_id = $1
		ORDER BY created_at DESC`, string(userID))
}

func (s *PGStore) ListReports(ctx context.Context, status Status) ([]*Report, error) {
	return s.queryReports(ctx, `
		SELECT `+reportColumns+` FROM incidents
		WHERE $1 = '' OR status = $1
		ORDER BY (report_type = 'emergency') DESC, created_at DESC`, string(status))
}

func (s *PGStore) CloseReport(ctx context.Context, id types.ID, to Status, by types.ID, at time.Time) (*Report, error) {
	r, err := scanReport(s.db.QueryRow(ctx, `
		UPDATE incidents SET status = $2, resolved_at = $3, resolved_by = $4
		WHERE id = $1 AND status = 'pending'
		RETURNING `+reportColumns, string(id), string(to), at, string(by)))
	if !errors.Is(err, pgx.ErrNoRows) {
		return r, err
	}
	cur, err := s.GetReport(ctx, id)
	if err != nil {
		return nil, err
	}
	return nil, errAlreadyClosed(cur.Status)
}

func (s *PGStore) SaveAlert(ctx context.Context, a *Alert) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO sos_alerts (`+alertColumns+`)
		VALUES ($1, $2, TRUE, $3, $4, $5, NULL)
		ON CONFLICT (user_id) DO UPDATE SET
			ride_id = EXCLUDED.ride_id,
			active = TRUE,
			location = EXCLUDED.location,
			message = EXCLUDED.message,
			triggered_at = EXCLUDED.triggered_at,
			cancelled_at = NULL`,
		string(a.UserID), nullableID(a.RideID), a.Location, a.Message, a.TriggeredAt,
	)
	return err
}

func (s *PGStore) CancelAlert(ctx context.Context, userID types.ID, at time.Time) (*Alert, error) {
	a, err := scanAlert(s.db.QueryRow(ctx, `
		UPDATE sos_alerts SET active = FALSE, cancelled_at = $2
		WHERE user_id = $1 AND active
		RETURNING `+alertColumns, string(userID), at))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errNoActiveAlert
	}
	return a, err
}

func (s *PGStore) ActiveAlerts(ctx context.Context) ([]*Alert, error) {
	rows, err := s.db.Query(ctx, `SELECT `+alertColumns+` FROM sos_alerts WHERE active ORDER BY triggered_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PGStore) queryReports(ctx context.Context, sql string, args ...any) ([]*Report, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanReport(row pgx.Row) (*Report, error) {
	var r Report
	var id, user, kind, emergency, status, resolvedBy string
	var ride *string
	if err := row.Scan(&id, &user, &ride, &kind, &r.Subject, &r.Description, &emergency, &r.Location,
		&status, &r.CreatedAt, &r.ResolvedAt, &resolvedBy); err != nil {
		return nil, err
	}
	r.ID, r.UserID, r.ResolvedBy = types.ID(id), types.ID(user), types.ID(resolvedBy)
	if ride != nil {
		r.RideID = types.ID(*ride)
	}
	r.Kind, r.EmergencyType, r.Status = Kind(kind), EmergencyType(emergency), Status(status)
	return &r, nil
}

func scanAlert(row pgx.Row) (*Alert, error) {
	var a Alert
	var user string
	var ride *string
	if err := row.Scan(&user, &ride, &a.Active, &a.Location, &a.Message, &a.TriggeredAt, &a.CancelledAt); err != nil {
		return nil, err
	}
	a.UserID = types.ID(user)
	if ride != nil {
		a.RideID = types.ID(*ride)
	}
	return &a, nil
}

func nullableID(id types.ID) *string {
	if id == "" {
		return nil
	}
	s := string(id)
	return &s
}

type MemStore struct {
	mu      sync.RWMutex
	reports map[types.ID]Report
	alerts  map[types.ID]Alert
}

func NewMemStore() *MemStore {
	return &MemStore{reports: map[types.ID]Report{}, alerts: map[types.ID]Alert{}}
}

func (s *MemStore) CreateReport(_ context.Context, r *Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[r.ID] = *r
	return nil
}

func (s *MemStore) GetReport(_ context.Context, id types.ID) (*Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reports[id]
	if !ok {
		return nil, errReportNotFound
	}
	return &r, nil
}

func (s *MemStore) ReportsByUser(_ context.Context, userID types.ID) ([]*Report, error) {
	return s.filter(func(r *Report) bool { return r.UserID == userID }, false), nil
}

func (s *MemStore) ListReports(_ context.Context, status Status) ([]*Report, error) {
	return s.filter(func(r *Report) bool { return status == "" || r.Status == status }, true), nil
}

func (s *MemStore) CloseReport(_ context.Context, id types.ID, to Status, by types.ID, at time.Time) (*Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[id]
	if !ok {
		return nil, errReportNotFound
	}
	if r.Status != StatusPending {
		return nil, errAlreadyClosed(r.Status)
	}
	r.Status, r.ResolvedAt, r.ResolvedBy = to, &at, by
	s.reports[id] = r
	return &r, nil
}

func (s *MemStore) SaveAlert(_ context.Context, a *Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := *a
	cur.Active, cur.CancelledAt = true, nil
	s.alerts[a.UserID] = cur
	return nil
}

func (s *MemStore) CancelAlert(_ context.Context, userID types.ID, at time.Time) (*Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[userID]
	if !ok || !a.Active {
		return nil, errNoActiveAlert
	}
	a.Active, a.CancelledAt = false, &at
	s.alerts[userID] = a
	return &a, nil
}

func (s *MemStore) ActiveAlerts(_ context.Context) ([]*Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Alert
	for _, a := range s.alerts {
		if a.Active {
			a := a
			out = append(out, &a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TriggeredAt.After(out[j].TriggeredAt) })
	return out, nil
}

func (s *MemStore) filter(keep func(*Report) bool, emergenciesFirst bool) []*Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Report
	for _, r := range s.reports {
		r := r
		if keep(&r) {
			out = append(out, &r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if emergenciesFirst {
			ei, ej := out[i].Kind == KindEmergency, out[j].Kind == KindEmergency
			if ei != ej {
				return ei
			}
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}
