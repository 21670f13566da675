package types

import "time"

// RankedCandidate is a Candidate annotated with its display distance and ETA.
//
// Derived at display time, never stored with the candidate.
type RankedCandidate struct {
	Candidate

	// DistanceKm is the great-circle distance to self, rounded to two decimals.
	DistanceKm float64

	// ETA is the travel time estimate at the configured average speed.
	ETA time.Duration
}
