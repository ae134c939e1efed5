// README: Vehicle registry model and the make/model catalog that fixes fuel type and mileage.
package vehicle

import (
	"sort"
	"time"

	"carpool/internal/types"
)

type Vehicle struct {
	ID           types.ID       `json:"id"`
	OwnerID      types.ID       `json:"owner_id"`
	Make         string         `json:"make"`
	Model        string         `json:"model"`
	Year         int            `json:"year"`
	Color        string         `json:"color"`
	LicensePlate string         `json:"license_plate"`
	FuelType     types.FuelType `json:"fuel_type"`
	Mileage      float64        `json:"mileage"`
	CreatedAt    time.Time      `json:"created_at"`
}

// Spec is the catalog entry for one model.
type Spec struct {
	Make     string         `json:"make"`
	Model    string         `json:"model"`
	Mileage  float64        `json:"mileage"`
	FuelType types.FuelType `json:"fuel_type"`
}

var catalog = map[string]map[string]Spec{
	"Maruti": {
		"Swift":  {Mileage: 23.2, FuelType: types.FuelPetrol},
		"Baleno": {Mileage: 22.35, FuelType: types.FuelPetrol},
		"Dzire":  {Mileage: 24.12, FuelType: types.FuelPetrol},
		"Ertiga": {Mileage: 20.51, FuelType: types.FuelPetrol},
		"Brezza": {Mileage: 20.15, FuelType: types.FuelPetrol},
	},
	"Hyundai": {
		"i20":   {Mileage: 20.28, FuelType: types.FuelPetrol},
		"Venue": {Mileage: 18.15, FuelType: types.FuelPetrol},
		"Creta": {Mileage: 17.0, FuelType: types.FuelPetrol},
		"Verna": {Mileage: 19.2, FuelType: types.FuelPetrol},
	},
	"Honda": {
		"City":  {Mileage: 18.4, FuelType: types.FuelPetrol},
		"Amaze": {Mileage: 18.6, FuelType: types.FuelPetrol},
		"WRV":   {Mileage: 16.5, FuelType: types.FuelPetrol},
		"Jazz":  {Mileage: 17.1, FuelType: types.FuelPetrol},
	},
	"Toyota": {
		"Innova":   {Mileage: 15.6, FuelType: types.FuelDiesel},
		"Fortuner": {Mileage: 14.4, FuelType: types.FuelDiesel},
		"Glanza":   {Mileage: 22.35, FuelType: types.FuelPetrol},
		"Camry":    {Mileage: 19.16, FuelType: types.FuelPetrol},
	},
	"Tata": {
		"Nexon":   {Mileage: 17.4, FuelType: types.FuelPetrol},
		"Harrier": {Mileage: 16.35, FuelType: types.FuelDiesel},
		"Safari":  {Mileage: 16.14, FuelType: types.FuelDiesel},
		"Altroz":  {Mileage: 19.05, FuelType: types.FuelPetrol},
	},
}

// Lookup returns the catalog entry for make and model.
func Lookup(mk, model string) (Spec, bool) {
	spec, ok := catalog[mk][model]
	if !ok {
		return Spec{}, false
	}
	spec.Make, spec.Model = mk, model
	return spec, true
}

// Catalog lists every entry ordered by make then model.
func Catalog() []Spec {
	var out []Spec
	for mk, models := range catalog {
		for md := range models {
			spec, _ := Lookup(mk, md)
			out = append(out, spec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Make != out[j].Make {
			return out[i].Make < out[j].Make
		}
		return out[i].Model < out[j].Model
	})
	return out
}
