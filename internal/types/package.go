// README: Closed enumerations for ride packages and vehicle fuel types.
package types

import "strings"

// PackageType is the recurrence class of a ride offer.
type PackageType string

const (
	PackageDaily    PackageType = "daily"
	PackageWeekly   PackageType = "weekly"
	PackageBiweekly PackageType = "biweekly"
	PackageMonthly  PackageType = "monthly"
)

var packageDays = map[PackageType]int{
	PackageDaily:    1,
	PackageWeekly:   7,
	PackageBiweekly: 14,
	PackageMonthly:  30,
}

// ParsePackage normalises s and reports whether it names a known package.
func ParsePackage(s string) (PackageType, bool) {
	p := PackageType(strings.ToLower(strings.TrimSpace(s)))
	_, ok := packageDays[p]
	return p, ok
}

func (p PackageType) Valid() bool {
	_, ok := packageDays[p]
	return ok
}

// Days is the number of days a package covers; zero for unknown packages.
func (p PackageType) Days() int {
	return packageDays[p]
}

// Title is the capitalised name used in user-facing messages.
func (p PackageType) Title() string {
	if p == "" {
		return ""
	}
	return strings.ToUpper(string(p[:1])) + string(p[1:])
}

// FuelType selects the per-unit fuel price used for trip cost.
type FuelType string

const (
	FuelPetrol   FuelType = "petrol"
	FuelDiesel   FuelType = "diesel"
	FuelElectric FuelType = "electric"
)

func ParseFuelType(s string) (FuelType, bool) {
	f := FuelType(strings.ToLower(strings.TrimSpace(s)))
	switch f {
	case FuelPetrol, FuelDiesel, FuelElectric:
		return f, true
	}
	return "", false
}
