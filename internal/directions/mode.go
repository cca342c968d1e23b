package directions

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Mode is a travel mode understood by the directions provider.
type Mode string

// Canonical travel modes.
const (
	ModeDriving   Mode = "driving"
	ModeBicycling Mode = "bicycling"
	ModeWalking   Mode = "walking"
)

// Vehicle is the traveller's means of transport as chosen in the app.
type Vehicle string

// Supported vehicles.
const (
	VehicleCar     Vehicle = "CAR"
	VehicleBicycle Vehicle = "BICYCLE"
	VehicleWalking Vehicle = "WALKING"
)

// Valid reports whether v is a supported vehicle.
func (v Vehicle) Valid() bool {
	switch v {
	case VehicleCar, VehicleBicycle, VehicleWalking:
		return true
	}
	return false
}

// ParseVehicle parses a case-insensitive vehicle name.
func ParseVehicle(raw string) (Vehicle, error) {
	v := Vehicle(strings.ToUpper(strings.TrimSpace(raw)))
	if !v.Valid() {
		return "", fmt.Errorf("unknown vehicle %q", raw)
	}
	return v, nil
}

// Vulnerable reports whether travellers with this vehicle are exposed to hazards
// outside a car. Critical hazards on their path force a RISKY tier.
func (v Vehicle) Vulnerable() bool {
	return v == VehicleBicycle || v == VehicleWalking
}

// Mode returns the travel mode used for the vehicle. Unknown vehicles drive.
func (v Vehicle) Mode() Mode {
	switch v {
	case VehicleBicycle:
		return ModeBicycling
	case VehicleWalking:
		return ModeWalking
	default:
		return ModeDriving
	}
}

// NormalizeMode maps free-form mode text to a canonical Mode.
// Canonical values pass through; common variants ("Driving", "bike", "cycling",
// "foot", "pedestrian") are recognised by prefix or synonym; anything else,
// including nil and empty input, falls back to the vehicle's mode.
// It never fails.
func NormalizeMode(raw *string, vehicle Vehicle, logger zerolog.Logger) Mode {
	if raw == nil {
		return vehicle.Mode()
	}

	lower := strings.ToLower(strings.TrimSpace(*raw))
	switch Mode(lower) {
	case ModeDriving, ModeBicycling, ModeWalking:
		return Mode(lower)
	}

	switch {
	case lower == "":
		return vehicle.Mode()
	case strings.HasPrefix(lower, "driv") || lower == "car":
		return ModeDriving
	case strings.HasPrefix(lower, "bic") || strings.HasPrefix(lower, "cycl") || lower == "bike":
		return ModeBicycling
	case strings.HasPrefix(lower, "walk") || lower == "foot" || lower == "pedestrian":
		return ModeWalking
	}

	fallback := vehicle.Mode()
	logger.Warn().
		Str("raw_mode", *raw).
		Str("vehicle", string(vehicle)).
		Str("fallback_mode", string(fallback)).
		Msg("unrecognized travel mode, falling back to vehicle mode")
	return fallback
}
