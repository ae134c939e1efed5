// README: Lifecycle events published after a ride or booking transition commits.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"carpool/internal/types"
)

type EventType string

const (
	RideOffered      EventType = "ride.offered"
	RideStarted      EventType = "ride.started"
	RideEnded        EventType = "ride.ended"
	RideCancelled    EventType = "ride.cancelled"
	BookingRequested EventType = "booking.requested"
	BookingConfirmed EventType = "booking.confirmed"
	BookingRejected  EventType = "booking.rejected"
	BookingCancelled EventType = "booking.cancelled"
	LegCompleted     EventType = "booking.leg_completed"
	IncidentReported EventType = "incident.reported"
	SOSTriggered     EventType = "sos.triggered"
	SOSCancelled     EventType = "sos.cancelled"
)

// SafetyTeam is the recipient for emergency reports and SOS alerts.
const SafetyTeam types.ID = "safety_team"

// Event is addressed to Recipients. RideID is set for ride and booking
// events and for incidents raised during a ride.
type Event struct {
	Type       EventType         `json:"type"`
	RideID     types.ID          `json:"ride_id,omitempty"`
	BookingID  types.ID          `json:"booking_id,omitempty"`
	Recipients []types.ID        `json:"recipients"`
	Message    string            `json:"message"`
	Data       map[string]string `json:"data,omitempty"`
	At         time.Time         `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Multi fans an event out to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogPublisher writes events to the structured log.
type LogPublisher struct {
	Logger logrus.FieldLogger
}

func (p LogPublisher) Publish(_ context.Context, e Event) error {
	p.Logger.WithFields(logrus.Fields{
		"event":      e.Type,
		"ride_id":    e.RideID,
		"booking_id": e.BookingID,
		"recipients": len(e.Recipients),
	}).Info(e.Message)
	return nil
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
