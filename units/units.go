// Package units provides the display units for speed and distance
package units

import "fmt"

// Unit constants
const (
	MPS  = "mps"
	KPH  = "kph"
	KMPH = "kmph"
	MPH  = "mph"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{MPS, KPH, KMPH, MPH}

const metersPerMile = 1609.344

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// Validate returns an error naming the accepted units when unit is unknown.
func Validate(unit string) error {
	if IsValid(unit) {
		return nil
	}
	return fmt.Errorf("invalid units %q (expected one of: mps, kph, kmph, mph)", unit)
}

// ConvertSpeed converts a speed from meters per second to the target units
func ConvertSpeed(speedMPS float64, targetUnits string) float64 {
	switch targetUnits {
	case KPH, KMPH:
		return speedMPS * 3.6
	case MPH:
		return speedMPS * 3600 / metersPerMile
	default:
		return speedMPS
	}
}

// ConvertDistance converts meters to the distance unit paired with a speed
// unit: kilometers for kph, miles for mph, meters otherwise.
func ConvertDistance(meters float64, targetUnits string) float64 {
	switch targetUnits {
	case KPH, KMPH:
		return meters / 1000
	case MPH:
		return meters / metersPerMile
	default:
		return meters
	}
}

// SpeedLabel returns the printable speed unit.
func SpeedLabel(unit string) string {
	switch unit {
	case KPH, KMPH:
		return "km/h"
	case MPH:
		return "mph"
	default:
		return "m/s"
	}
}

// DistanceLabel returns the printable distance unit.
func DistanceLabel(unit string) string {
	switch unit {
	case KPH, KMPH:
		return "km"
	case MPH:
		return "mi"
	default:
		return "m"
	}
}
