// Package geo computes great-circle distances and travel estimates used to rank and
// display candidates.
//
// Every function is pure: no side effects and no error cases. NaN and Inf inputs
// propagate per IEEE-754 rather than being special-cased.
package geo

import (
	"math"
	"time"

	"github.com/apandit646/droploc/types"
)

// EarthRadiusKm is the fixed Earth radius used by Haversine.
const EarthRadiusKm = 6371.0

// Haversine returns the unrounded great-circle distance in kilometers.
func Haversine(origin, target types.Position) float64 {
	dLat := toRadians(target.Latitude - origin.Latitude)
	dLon := toRadians(target.Longitude - origin.Longitude)

	lat1 := toRadians(origin.Latitude)
	lat2 := toRadians(target.Latitude)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKm * c
}

// Distance returns the display distance in kilometers, rounded to two decimals.
//
// Parameters:
//   - origin: Position of self
//   - target: Position of the other actor
//
// Returns:
//   - float64: Kilometers rounded half away from zero to 0.01
//
// Example:
//
//	km := geo.Distance(self, candidate.Position) // 1.37
func Distance(origin, target types.Position) float64 {
	return Round2(Haversine(origin, target))
}

// Round2 rounds to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ETA estimates travel time over distanceKm at speedKmh.
//
// Returns 0 when the speed is not positive or the distance is not a finite
// non-negative number.
func ETA(distanceKm, speedKmh float64) time.Duration {
	if speedKmh <= 0 || distanceKm < 0 || math.IsNaN(distanceKm) || math.IsInf(distanceKm, 0) {
		return 0
	}

	hours := distanceKm / speedKmh

	return time.Duration(hours * float64(time.Hour)).Round(time.Second)
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}
