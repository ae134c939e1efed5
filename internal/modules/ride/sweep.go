// README: Sweeper; auto-completes overdue ongoing rides and repairs upcoming rides that never started.
package ride

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"carpool/internal/observability"
	"carpool/internal/types"
)

// SweepReport counts rides completed by each pass.
type SweepReport struct {
	AutoCompleted int `json:"auto_completed"`
	Repaired      int `json:"repaired"`
	Failed        int `json:"failed"`
}

// Completed is the number of rides that reached completed in this sweep.
func (r SweepReport) Completed() int {
	return r.AutoCompleted + r.Repaired
}

// SweepOverdueRides runs both passes at now. Each ride is re-read and re-checked under its
// lock, so a concurrent driver action or a second sweeper simply finds nothing to do.
func (s *Service) SweepOverdueRides(ctx context.Context, now time.Time) (SweepReport, error) {
	started := time.Now()
	defer func() { observability.SweepDuration.Observe(time.Since(started).Seconds()) }()

	var report SweepReport
	var errs []error

	ongoing, err := s.store.RideIDsByStatus(ctx, StatusOngoing)
	if err != nil {
		return report, err
	}
	for _, id := range ongoing {
		done, err := s.sweepOne(ctx, id, now, func(r *Ride, bookings []*Booking) ([]Effect, error) {
			if !r.ShouldAutoComplete(now) {
				return nil, errSkip
			}
			return r.End(now, ClosedByAuto, bookings)
		})
		switch {
		case err != nil:
			report.Failed++
			errs = append(errs, err)
		case done:
			report.AutoCompleted++
		}
	}

	upcoming, err := s.store.RideIDsByStatus(ctx, StatusUpcoming)
	if err != nil {
		return report, errors.Join(append(errs, err)...)
	}
	for _, id := range upcoming {
		done, err := s.sweepOne(ctx, id, now, func(r *Ride, bookings []*Booking) ([]Effect, error) {
			if !r.SeverelyOverdue(now) {
				return nil, errSkip
			}
			return r.RepairOverdue(now, s.window.TravelTime(r.DistanceKm), bookings)
		})
		switch {
		case err != nil:
			report.Failed++
			errs = append(errs, err)
		case done:
			report.Repaired++
		}
	}

	observability.SweepCompletedTotal.WithLabelValues("auto_complete").Add(float64(report.AutoCompleted))
	observability.SweepCompletedTotal.WithLabelValues("overdue_repair").Add(float64(report.Repaired))
	if report.Completed() > 0 || report.Failed > 0 {
		s.log.WithFields(logrus.Fields{
			"auto_completed": report.AutoCompleted,
			"repaired":       report.Repaired,
			"failed":         report.Failed,
		}).Info("sweep finished")
	}
	return report, errors.Join(errs...)
}

// SweepNow sweeps at the service clock's current time.
func (s *Service) SweepNow(ctx context.Context) (SweepReport, error) {
	return s.SweepOverdueRides(ctx, s.now())
}

var errSkip = errors.New("nothing to do")

func (s *Service) sweepOne(ctx context.Context, id types.ID, now time.Time, fn rideFn) (bool, error) {
	_, _, err := s.rideTx(ctx, id, ActorSystem, nil, now, fn)
	if errors.Is(err, errSkip) {
		return false, nil
	}
	if err != nil {
		s.log.WithError(err).WithField("ride_id", id).Warn("sweep ride failed")
		return false, err
	}
	return true, nil
}

// RunSweeper sweeps every interval until ctx is cancelled.
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepIfDue(ctx)
		}
	}
}

func (s *Service) sweepIfDue(ctx context.Context) *SweepReport {
	if s.gate != nil {
		ok, err := s.gate.Acquire(ctx)
		if err != nil {
			s.log.WithError(err).Warn("sweep gate unavailable, sweeping anyway")
		} else if !ok {
			return nil
		}
	}
	report, err := s.SweepOverdueRides(ctx, s.now())
	if err != nil {
		s.log.WithError(err).Warn("sweep finished with errors")
	}
	return &report
}

// SweepGate throttles sweeps that are triggered by requests.
type SweepGate interface {
	Acquire(ctx context.Context) (bool, error)
}

// RedisGate allows one sweep per TTL across all API processes.
type RedisGate struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func NewRedisGate(client *redis.Client, key string, ttl time.Duration) *RedisGate {
	if key == "" {
		key = "carpool:sweep:lease"
	}
	return &RedisGate{client: client, key: key, ttl: ttl}
}

func (g *RedisGate) Acquire(ctx context.Context) (bool, error) {
	return g.client.SetNX(ctx, g.key, time.Now().UTC().Format(time.RFC3339), g.ttl).Result()
}
