// README: Incident service; validates reports, links them to the reporter's current ride and alerts the safety team.
package incident

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"carpool/internal/modules/notify"
	"carpool/internal/modules/ride"
	"carpool/internal/types"
)

// Rides finds the ride a user is on right now.
type Rides interface {
	CurrentRide(ctx context.Context, user types.ID) (*ride.Ride, error)
}

type Service struct {
	store     Store
	rides     Rides
	publisher notify.Publisher
	now       func() time.Time
	log       logrus.FieldLogger
}

func NewService(store Store, rides Rides, publisher notify.Publisher, clock func() time.Time, log logrus.FieldLogger) *Service {
	if publisher == nil {
		publisher = notify.Nop{}
	}
	if clock == nil {
		clock = time.Now
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{store: store, rides: rides, publisher: publisher, now: clock, log: log}
}

type SubmitCommand struct {
	UserID        types.ID
	Kind          string
	Subject       string
	Description   string
	EmergencyType string
	Location      string
}

// Submit files a report. Emergencies need an emergency type and are pushed
// to the safety team and, for a passenger, to the ride's driver.
func (s *Service) Submit(ctx context.Context, cmd SubmitCommand) (*Report, error) {
	kind, ok := ParseKind(cmd.Kind)
	if !ok {
		return nil, types.Errorf(types.ErrValidation, "Report type must be emergency, feedback or complaint")
	}
	subject := strings.TrimSpace(cmd.Subject)
	if n := utf8.RuneCountInString(subject); n < SubjectMin || n > SubjectMax {
		return nil, types.Errorf(types.ErrValidation, "Subject must be between %d and %d characters", SubjectMin, SubjectMax)
	}
	desc := strings.TrimSpace(cmd.Description)
	if n := utf8.RuneCountInString(desc); n < DescriptionMin || n > DescriptionMax {
		return nil, types.Errorf(types.ErrValidation, "Description must be between %d and %d characters", DescriptionMin, DescriptionMax)
	}
	location := strings.TrimSpace(cmd.Location)
	if utf8.RuneCountInString(location) > LocationMax {
		return nil, types.Errorf(types.ErrValidation, "Location must be at most %d characters", LocationMax)
	}
	var emergency EmergencyType
	if kind == KindEmergency {
		if emergency, ok = ParseEmergencyType(cmd.EmergencyType); !ok {
			return nil, types.Errorf(types.ErrValidation, "Please select the type of emergency")
		}
	}

	current, err := s.rides.CurrentRide(ctx, cmd.UserID)
	if err != nil {
		return nil, err
	}
	rep := &Report{
		ID:            types.NewID(),
		UserID:        cmd.UserID,
		Kind:          kind,
		Subject:       subject,
		Description:   desc,
		EmergencyType: emergency,
		Location:      location,
		Status:        StatusPending,
		CreatedAt:     s.now(),
	}
	if current != nil {
		rep.RideID = current.ID
	}
	if err := s.store.CreateReport(ctx, rep); err != nil {
		return nil, err
	}

	fields := logrus.Fields{"report_id": rep.ID, "kind": kind, "user_id": rep.UserID, "ride_id": rep.RideID}
	if kind != KindEmergency {
		s.log.WithFields(fields).Info("report submitted")
		return rep, nil
	}
	s.log.WithFields(fields).WithField("emergency_type", emergency).Warn("emergency report submitted")
	s.publish(ctx, notify.Event{
		Type:       notify.IncidentReported,
		RideID:     rep.RideID,
		Recipients: recipients(current, cmd.UserID),
		Message:    subject,
		Data: map[string]string{
			"report_id":      string(rep.ID),
			"emergency_type": string(emergency),
			"location":       location,
		},
		At: rep.CreatedAt,
	})
	return rep, nil
}

func (s *Service) ForUser(ctx context.Context, user types.ID) ([]*Report, error) {
	return s.store.ReportsByUser(ctx, user)
}

// List is the admin queue; status may be empty to list every report.
func (s *Service) List(ctx context.Context, status string) ([]*Report, error) {
	var st Status
	if status != "" {
		var ok bool
		if st, ok = ParseStatus(status); !ok {
			return nil, types.Errorf(types.ErrValidation, "Unknown report status %q", status)
		}
	}
	return s.store.ListReports(ctx, st)
}

func (s *Service) Resolve(ctx context.Context, id, admin types.ID) (*Report, error) {
	return s.close(ctx, id, admin, StatusResolved)
}

func (s *Service) Dismiss(ctx context.Context, id, admin types.ID) (*Report, error) {
	return s.close(ctx, id, admin, StatusDismissed)
}

func (s *Service) close(ctx context.Context, id, admin types.ID, to Status) (*Report, error) {
	if !CanTransition(StatusPending, to) {
		return nil, types.Errorf(types.ErrState, "Reports cannot move to %s", to)
	}
	rep, err := s.store.CloseReport(ctx, id, to, admin, s.now())
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"report_id": id, "status": to, "admin": admin}).Info("report closed")
	return rep, nil
}

type SOSCommand struct {
	UserID   types.ID
	Location string
	Message  string
}

// TriggerSOS raises or refreshes the user's alert.
func (s *Service) TriggerSOS(ctx context.Context, cmd SOSCommand) (*Alert, error) {
	location := strings.TrimSpace(cmd.Location)
	if location == "" {
		location = "Unknown"
	}
	message := strings.TrimSpace(cmd.Message)
	if message == "" {
		message = "Emergency!"
	}
	if utf8.RuneCountInString(location) > LocationMax || utf8.RuneCountInString(message) > SOSMessageMax {
		return nil, types.Errorf(types.ErrValidation, "Location must be at most %d and message at most %d characters", LocationMax, SOSMessageMax)
	}
	current, err := s.rides.CurrentRide(ctx, cmd.UserID)
	if err != nil {
		return nil, err
	}
	a := &Alert{
		UserID:      cmd.UserID,
		Active:      true,
		Location:    location,
		Message:     message,
		TriggeredAt: s.now(),
	}
	if current != nil {
		a.RideID = current.ID
	}
	if err := s.store.SaveAlert(ctx, a); err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"user_id": a.UserID, "ride_id": a.RideID, "location": location}).Warn("SOS triggered")
	s.publish(ctx, notify.Event{
		Type:       notify.SOSTriggered,
		RideID:     a.RideID,
		Recipients: recipients(current, cmd.UserID),
		Message:    message,
		Data:       map[string]string{"user_id": string(a.UserID), "location": location},
		At:         a.TriggeredAt,
	})
	return a, nil
}

func (s *Service) CancelSOS(ctx context.Context, user types.ID) (*Alert, error) {
	a, err := s.store.CancelAlert(ctx, user, s.now())
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"user_id": user, "ride_id": a.RideID}).Info("SOS cancelled")
	s.publish(ctx, notify.Event{
		Type:       notify.SOSCancelled,
		RideID:     a.RideID,
		Recipients: []types.ID{notify.SafetyTeam},
		Message:    "SOS alert cancelled",
		Data:       map[string]string{"user_id": string(user)},
		At:         *a.CancelledAt,
	})
	return a, nil
}

func (s *Service) ActiveSOS(ctx context.Context) ([]*Alert, error) {
	return s.store.ActiveAlerts(ctx)
}

func (s *Service) publish(ctx context.Context, e notify.Event) {
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.log.WithError(err).WithField("event", e.Type).Warn("event publish failed")
	}
}

// recipients is the safety team plus the driver when a passenger raises it mid-ride.
func recipients(current *ride.Ride, user types.ID) []types.ID {
	out := []types.ID{notify.SafetyTeam}
	if current != nil && current.DriverID != user {
		out = append(out, current.DriverID)
	}
	return out
}
