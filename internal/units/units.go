// Package units provides shared constants and validation for frequency units
package units

import "strings"

// Unit constants
const (
	Hz  = "Hz"
	KHz = "kHz"
	MHz = "MHz"
	GHz = "GHz"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{Hz, KHz, MHz, GHz}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return strings.Join(ValidUnits, ", ")
}

// AxisTitle returns the axis caption for a frequency axis, e.g. "RF (MHz)".
// Unknown units fall back to MHz, the unit the default mixer table is
// characterised in.
func AxisTitle(axis, unit string) string {
	if !IsValid(unit) {
		unit = MHz
	}
	return axis + " (" + unit + ")"
}
