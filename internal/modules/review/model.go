// README: Review model; green and red flags exchanged between drivers and passengers after a ride.
package review

import (
	"time"

	"carpool/internal/types"
)

type Kind string

const (
	PassengerToDriver Kind = "passenger_to_driver"
	DriverToPassenger Kind = "driver_to_passenger"
)

type Flag string

const (
	FlagGreen Flag = "green"
	FlagRed   Flag = "red"
)

func ParseFlag(s string) (Flag, bool) {
	switch f := Flag(s); f {
	case FlagGreen, FlagRed:
		return f, true
	}
	return "", false
}

// Rating is 5 for a green flag and 1 for a red one.
func (f Flag) Rating() int {
	if f == FlagGreen {
		return 5
	}
	return 1
}

type Review struct {
	ID         types.ID  `json:"id"`
	BookingID  types.ID  `json:"booking_id"`
	RideID     types.ID  `json:"ride_id"`
	ReviewerID types.ID  `json:"reviewer_id"`
	RevieweeID types.ID  `json:"reviewee_id"`
	Kind       Kind      `json:"kind"`
	Flag       Flag      `json:"flag"`
	Rating     int       `json:"rating"`
	Comment    string    `json:"comment,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type Stats struct {
	GreenFlags int     `json:"green_flags"`
	RedFlags   int     `json:"red_flags"`
	Reviews    int     `json:"reviews"`
	Rating     float64 `json:"rating"`
}

// Summarize counts flags and averages ratings; Rating is zero when there are no reviews.
func Summarize(reviews []*Review) Stats {
	var st Stats
	total := 0
	for _, r := range reviews {
		switch r.Flag {
		case FlagGreen:
			st.GreenFlags++
		case FlagRed:
			st.RedFlags++
		}
		total += r.Rating
	}
	st.Reviews = len(reviews)
	if st.Reviews > 0 {
		st.Rating = float64(total) / float64(st.Reviews)
	}
	return st
}
