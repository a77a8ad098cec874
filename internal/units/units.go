// Package units provides shared constants and validation for speed and mass units
package units

// Speed unit constants
const (
	MPS  = "mps"
	MPH  = "mph"
	KMPH = "kmph"
	KPH  = "kph"
)

// Mass unit constants
const (
	KG = "kg"
	LB = "lb"
)

// ValidSpeedUnits contains all valid speed unit values
var ValidSpeedUnits = []string{MPS, MPH, KMPH, KPH}

// ValidMassUnits contains all valid mass unit values
var ValidMassUnits = []string{KG, LB}

// IsValidSpeed checks if the given unit is in the list of valid speed units
func IsValidSpeed(unit string) bool {
	for _, validUnit := range ValidSpeedUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// IsValidMass checks if the given unit is in the list of valid mass units
func IsValidMass(unit string) bool {
	for _, validUnit := range ValidMassUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidSpeedUnitsString returns a comma-separated string of valid speed units for error messages
func GetValidSpeedUnitsString() string {
	return "mps, mph, kmph, kph"
}

// ConvertSpeed converts a speed from meters per second to the target units.
// All bar velocities are stored in m/s (meters per second).
func ConvertSpeed(speedMPS float64, targetUnits string) float64 {
	switch targetUnits {
	case MPS:
		return speedMPS
	case MPH:
		return speedMPS * 2.2369362920544
	case KMPH, KPH:
		return speedMPS * 3.6
	default:
		return speedMPS
	}
}

// MassToKilograms converts a mass value in the given units to kilograms.
// All loads are stored in kilograms.
func MassToKilograms(mass float64, sourceUnits string) float64 {
	switch sourceUnits {
	case LB:
		return mass * 0.45359237
	default:
		return mass
	}
}

// ConvertMass converts a mass from kilograms to the target units.
func ConvertMass(massKg float64, targetUnits string) float64 {
	switch targetUnits {
	case LB:
		return massKg / 0.45359237
	default:
		return massKg
	}
}
