// README: Incident model; user reports (emergency, feedback, complaint) and per-user SOS alerts.
package incident

import (
	"slices"
	"time"

	"carpool/internal/types"
)

type Kind string

const (
	KindEmergency Kind = "emergency"
	KindFeedback  Kind = "feedback"
	KindComplaint Kind = "complaint"
)

func ParseKind(s string) (Kind, bool) {
	switch k := Kind(s); k {
	case KindEmergency, KindFeedback, KindComplaint:
		return k, true
	}
	return "", false
}

type EmergencyType string

const (
	EmergencyMedical   EmergencyType = "medical"
	EmergencyAccident  EmergencyType = "accident"
	EmergencyBreakdown EmergencyType = "breakdown"
	EmergencySafety    EmergencyType = "safety"
	EmergencyOther     EmergencyType = "other"
)

func ParseEmergencyType(s string) (EmergencyType, bool) {
	switch e := EmergencyType(s); e {
	case EmergencyMedical, EmergencyAccident, EmergencyBreakdown, EmergencySafety, EmergencyOther:
		return e, true
	}
	return "", false
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusResolved  Status = "resolved"
	StatusDismissed Status = "dismissed"
)

func ParseStatus(s string) (Status, bool) {
	switch st := Status(s); st {
	case StatusPending, StatusResolved, StatusDismissed:
		return st, true
	}
	return "", false
}

// AllowedTransitions: an admin closes a pending report exactly once.
var AllowedTransitions = map[Status][]Status{
	StatusPending: {StatusResolved, StatusDismissed},
}

func CanTransition(from, to Status) bool {
	return slices.Contains(AllowedTransitions[from], to)
}

// Field limits.
const (
	SubjectMin     = 5
	SubjectMax     = 100
	DescriptionMin = 10
	DescriptionMax = 500
	LocationMax    = 200
	SOSMessageMax  = 500
)

type Report struct {
	ID            types.ID      `json:"id"`
	UserID        types.ID      `json:"user_id"`
	RideID        types.ID      `json:"ride_id,omitempty"`
	Kind          Kind          `json:"report_type"`
	Subject       string        `json:"subject"`
	Description   string        `json:"description"`
	EmergencyType EmergencyType `json:"emergency_type,omitempty"`
	Location      string        `json:"location,omitempty"`
	Status        Status        `json:"status"`
	CreatedAt     time.Time     `json:"created_at"`
	ResolvedAt    *time.Time    `json:"resolved_at,omitempty"`
	ResolvedBy    types.ID      `json:"resolved_by,omitempty"`
}

// Alert is a user's SOS state; at most one per user.
type Alert struct {
	UserID      types.ID   `json:"user_id"`
	RideID      types.ID   `json:"ride_id,omitempty"`
	Active      bool       `json:"active"`
	Location    string     `json:"location"`
	Message     string     `json:"message"`
	TriggeredAt time.Time  `json:"triggered_at"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
}
