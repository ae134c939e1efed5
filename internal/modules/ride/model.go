// README: Ride and Booking aggregates, status enumerations and transition tables.
package ride

import (
	"time"

	"carpool/internal/types"
)

type Status string

const (
	StatusUpcoming  Status = "upcoming"
	StatusOngoing   Status = "ongoing"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCompleted BookingStatus = "completed"
	BookingCancelled BookingStatus = "cancelled"
	BookingRejected  BookingStatus = "rejected"
)

// Progress is the passenger's own view of the trip, separate from the booking status.
type Progress string

const (
	ProgressUpcoming  Progress = "upcoming"
	ProgressOngoing   Progress = "ongoing"
	ProgressCompleted Progress = "completed"
)

// Closer records who ended a ride.
type Closer string

const (
	ClosedByDriver Closer = "driver"
	ClosedByAuto   Closer = "auto"
)

// DefaultBufferMinutes applies until the ride starts and a distance-based buffer replaces it.
const DefaultBufferMinutes = 15

// OverdueAfter is how long past its start an upcoming ride may sit before the sweeper repairs it.
const OverdueAfter = time.Hour

// MaxDistanceKm caps a single run of an offered route.
const MaxDistanceKm = 5000

type Ride struct {
	ID            types.ID
	DriverID      types.ID
	VehicleID     types.ID
	Origin        string
	Destination   string
	StartTime     time.Time
	EndTime       time.Time
	ActualStart   *time.Time
	ActualEnd     *time.Time
	EstimatedEnd  *time.Time
	BufferMinutes int
	TotalSeats    int
	PricePerSeat  types.Money
	DistanceKm    float64
	FuelType      types.FuelType
	Mileage       float64
	Package       types.PackageType
	Status        Status
	AutoCompleted bool
	CompletedBy   Closer
	Version       int
	CreatedAt     time.Time

	// availableSeats is only changed by reserve and release.
	availableSeats int
}

func (r *Ride) AvailableSeats() int {
	return r.availableSeats
}

type Booking struct {
	ID                   types.ID
	RideID               types.ID
	PassengerID          types.ID
	Seats                int
	Status               BookingStatus
	Progress             Progress
	Pickup               string
	Drop                 string
	Contact              string
	PassengerCompletedAt *time.Time
	Version              int
	CreatedAt            time.Time
}

// Active reports whether the booking still holds seats.
func (b *Booking) Active() bool {
	return b.Status == BookingPending || b.Status == BookingConfirmed
}

// Settled reports whether the booking takes part in cost sharing.
func (b *Booking) Settled() bool {
	return b.Status == BookingConfirmed || b.Status == BookingCompleted
}

// Event is one row of the ride audit log.
type Event struct {
	ID         int64
	RideID     types.ID
	BookingID  *types.ID
	FromStatus string
	ToStatus   string
	ActorType  string
	ActorID    *types.ID
	CreatedAt  time.Time
}

const (
	ActorDriver    = "driver"
	ActorPassenger = "passenger"
	ActorSystem    = "system"
)

// AllowedTransitions is the ride state diagram as code.
var AllowedTransitions = map[Status][]Status{
	StatusUpcoming: {StatusOngoing, StatusCancelled},
	StatusOngoing:  {StatusCompleted},
}

// AllowedBookingTransitions is the booking state diagram as code.
var AllowedBookingTransitions = map[BookingStatus][]BookingStatus{
	BookingPending:   {BookingConfirmed, BookingRejected, BookingCancelled},
	BookingConfirmed: {BookingCompleted, BookingCancelled},
}

func CanTransition(from, to Status) bool {
	return contains(AllowedTransitions[from], to)
}

func CanTransitionBooking(from, to BookingStatus) bool {
	return contains(AllowedBookingTransitions[from], to)
}

func contains[T comparable](next []T, to T) bool {
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

func ParseStatus(s string) (Status, bool) {
	st := Status(s)
	switch st {
	case StatusUpcoming, StatusOngoing, StatusCompleted, StatusCancelled:
		return st, true
	}
	return "", false
}

// BufferForDistance is the grace period added to the estimated end before auto-completion.
func BufferForDistance(distanceKm float64) int {
	switch {
	case distanceKm <= 50:
		return 30
	case distanceKm <= 100:
		return 45
	case distanceKm <= 200:
		return 60
	default:
		return 90
	}
}
