package types

import (
	"fmt"
	"math"
)

// Position is an immutable latitude/longitude snapshot in decimal degrees.
//
// A Position is replaced wholesale on every sample and never mutated in place.
type Position struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// IsValid reports whether both coordinates are finite and within range.
func (p Position) IsValid() bool {
	if math.IsNaN(p.Latitude) || math.IsNaN(p.Longitude) ||
		math.IsInf(p.Latitude, 0) || math.IsInf(p.Longitude, 0) {
		return false
	}

	return p.Latitude >= -90 && p.Latitude <= 90 && p.Longitude >= -180 && p.Longitude <= 180
}

// String returns "lat,lon" with six decimal places.
func (p Position) String() string {
	return fmt.Sprintf("%.6f,%.6f", p.Latitude, p.Longitude)
}

// CellAddress is an opaque token identifying a geospatial partition.
//
// Two addresses that differ mean the actor crossed a partition boundary.
type CellAddress string

// String returns the raw address.
func (c CellAddress) String() string {
	return string(c)
}
