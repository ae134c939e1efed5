// README: Fare calculator: trip cost, quoted seat price and settlement split. Stateless apart from the price table.
package fare

import (
	"math"

	"carpool/internal/types"
)

type Calculator struct {
	prices   map[types.FuelType]float64
	currency string
}

// NewCalculator starts from DefaultFuelPrices and applies overrides on top.
func NewCalculator(currency string, overrides map[types.FuelType]float64) *Calculator {
	if currency == "" {
		currency = types.DefaultCurrency
	}
	prices := DefaultFuelPrices()
	for k, v := range overrides {
		if v > 0 {
			prices[k] = v
		}
	}
	return &Calculator{prices: prices, currency: currency}
}

func (c *Calculator) Currency() string {
	return c.currency
}

func (c *Calculator) FuelPrice(fuel types.FuelType) float64 {
	if p, ok := c.prices[fuel]; ok {
		return p
	}
	return DefaultFuelPrice
}

// EstimatedTripCost is fuel price × distance / mileage for one run of the route.
func (c *Calculator) EstimatedTripCost(distanceKm float64, fuel types.FuelType, mileage float64) types.Money {
	return types.MoneyFromFloat(c.tripCost(distanceKm, fuel, mileage), c.currency)
}

// QuotedSeatPrice applies the package ratio to a package-period cost and divides by seats.
func (c *Calculator) QuotedSeatPrice(total types.Money, pkg types.PackageType, seats int) types.Money {
	if seats <= 0 {
		return types.Money{Currency: c.currency}
	}
	return types.MoneyFromFloat(total.Float()*passengerRatio(pkg)/float64(seats), c.currency)
}

// QuoteOffer prices a new offer over its whole package period, rounding once at the end.
func (c *Calculator) QuoteOffer(distanceKm float64, fuel types.FuelType, mileage float64, pkg types.PackageType, seats int) types.Money {
	if seats <= 0 {
		return types.Money{Currency: c.currency}
	}
	total := c.PeriodCost(distanceKm, fuel, mileage, pkg)
	return types.MoneyFromFloat(total*passengerRatio(pkg)/float64(seats), c.currency)
}

// PeriodCost is the unrounded fuel cost of one run per day over the package period.
func (c *Calculator) PeriodCost(distanceKm float64, fuel types.FuelType, mileage float64, pkg types.PackageType) float64 {
	days := pkg.Days()
	if days <= 0 {
		days = 1
	}
	return c.tripCost(distanceKm*float64(days), fuel, mileage)
}

// Settle divides a single trip cost per seat, the driver counting as one seat.
// Booking shares are rounded to minor units and the driver's share takes the
// remainder, so shares always sum to the cost.
func Settle(cost types.Money, claims []Claim) Distribution {
	seats := 1
	for _, cl := range claims {
		seats += cl.Seats
	}
	d := Distribution{
		TotalCost:  cost,
		TotalSeats: seats,
		PerSeat:    cost.Div(seats),
		Shares:     make([]Share, 0, len(claims)),
	}
	remaining := cost.Amount
	for _, cl := range claims {
		amount := int64(math.Round(float64(cost.Amount) * float64(cl.Seats) / float64(seats)))
		remaining -= amount
		d.Shares = append(d.Shares, Share{
			BookingID: cl.BookingID,
			Seats:     cl.Seats,
			Amount:    types.Money{Amount: amount, Currency: cost.Currency},
		})
	}
	d.DriverShare = types.Money{Amount: remaining, Currency: cost.Currency}
	return d
}

func (c *Calculator) tripCost(distanceKm float64, fuel types.FuelType, mileage float64) float64 {
	if mileage <= 0 {
		mileage = DefaultMileage
	}
	return distanceKm / mileage * c.FuelPrice(fuel)
}

func passengerRatio(pkg types.PackageType) float64 {
	if pkg == types.PackageDaily {
		return dailyPassengerRatio
	}
	return otherPassengerRatio
}
