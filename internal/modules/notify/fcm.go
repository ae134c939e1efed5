// README: Firebase Cloud Messaging publisher; pushes to one topic per recipient user.
package notify

import (
	"context"
	"errors"
	"fmt"

	"firebase.google.com/go/v4/messaging"
)

// Sender is the subset of *messaging.Client used here.
type Sender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

type FCMPublisher struct {
	client Sender
}

func NewFCMPublisher(client Sender) *FCMPublisher {
	return &FCMPublisher{client: client}
}

// UserTopic is the FCM topic a user's devices subscribe to.
func UserTopic(userID string) string {
	return "user_" + userID
}

func (p *FCMPublisher) Publish(ctx context.Context, e Event) error {
	data := map[string]string{"type": string(e.Type)}
	if e.RideID != "" {
		data["ride_id"] = string(e.RideID)
	}
	if e.BookingID != "" {
		data["booking_id"] = string(e.BookingID)
	}
	for k, v := range e.Data {
		data[k] = v
	}

	var errs []error
	for _, uid := range e.Recipients {
		_, err := p.client.Send(ctx, &messaging.Message{
			Topic: UserTopic(string(uid)),
			Data:  data,
			Notification: &messaging.Notification{
				Title: title(e.Type),
				Body:  e.Message,
			},
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("fcm send to %s: %w", uid, err))
		}
	}
	return errors.Join(errs...)
}

func title(t EventType) string {
	switch t {
	case RideStarted:
		return "Ride started"
	case RideEnded:
		return "Ride completed"
	case RideCancelled:
		return "Ride cancelled"
	case BookingRequested:
		return "New booking request"
	case BookingConfirmed:
		return "Booking confirmed"
	case BookingRejected:
		return "Booking rejected"
	case BookingCancelled:
		return "Booking cancelled"
	case LegCompleted:
		return "Passenger dropped off"
	case IncidentReported:
		return "Emergency report"
	case SOSTriggered:
		return "SOS alert"
	case SOSCancelled:
		return "SOS cancelled"
	}
	return "Carpool update"
}
