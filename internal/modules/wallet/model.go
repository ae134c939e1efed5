// README: Ride expense model; informational costs a driver logs against a ride.
package wallet

import (
	"time"

	"carpool/internal/types"
)

type Expense struct {
	ID          types.ID    `json:"id"`
	RideID      types.ID    `json:"ride_id"`
	FuelCost    types.Money `json:"fuel_cost"`
	TollCost    types.Money `json:"toll_cost"`
	OtherCost   types.Money `json:"other_cost"`
	Description string      `json:"description,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

func (e Expense) Total() types.Money {
	return e.FuelCost.Add(e.TollCost).Add(e.OtherCost)
}

// Ledger is the expense list of one ride with its running totals.
type Ledger struct {
	Expenses []*Expense  `json:"expenses"`
	Fuel     types.Money `json:"fuel"`
	Toll     types.Money `json:"toll"`
	Other    types.Money `json:"other"`
	Total    types.Money `json:"total"`
}

func NewLedger(currency string, expenses []*Expense) Ledger {
	zero := types.Money{Currency: currency}
	l := Ledger{Expenses: expenses, Fuel: zero, Toll: zero, Other: zero, Total: zero}
	for _, e := range expenses {
		l.Fuel = l.Fuel.Add(e.FuelCost)
		l.Toll = l.Toll.Add(e.TollCost)
		l.Other = l.Other.Add(e.OtherCost)
	}
	l.Total = l.Fuel.Add(l.Toll).Add(l.Other)
	if l.Expenses == nil {
		l.Expenses = []*Expense{}
	}
	return l
}
