// README: Fuel price table and settlement result types.
package fare

import "carpool/internal/types"

const (
	// DefaultFuelPrice applies to fuel types missing from the table.
	DefaultFuelPrice = 100.0
	// DefaultMileage (km per fuel unit) applies when a vehicle reports none.
	DefaultMileage = 15.0

	dailyPassengerRatio = 0.50
	otherPassengerRatio = 0.75
)

// DefaultFuelPrices is the price per fuel unit keyed by fuel type.
func DefaultFuelPrices() map[types.FuelType]float64 {
	return map[types.FuelType]float64{
		types.FuelPetrol:   102,
		types.FuelDiesel:   88,
		types.FuelElectric: 10,
	}
}

// Claim is one settled booking's seat count.
type Claim struct {
	BookingID types.ID
	Seats     int
}

type Share struct {
	BookingID types.ID    `json:"booking_id"`
	Seats     int         `json:"seats"`
	Amount    types.Money `json:"amount"`
}

// Distribution splits one trip cost across the driver and settled bookings.
type Distribution struct {
	TotalCost   types.Money `json:"total_cost"`
	TotalSeats  int         `json:"total_seats"`
	PerSeat     types.Money `json:"per_seat"`
	DriverShare types.Money `json:"driver_share"`
	Shares      []Share     `json:"shares"`
}
