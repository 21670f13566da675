package geo

import (
	"math"
	"slices"

	"github.com/apandit646/droploc/types"
)

// RankedCandidate is a candidate annotated with distance and ETA.
type RankedCandidate = types.RankedCandidate

// Rank annotates candidates with their distance from origin and sorts them nearest
// first. Candidates at equal distance keep their broadcast order. A candidate whose
// distance is NaN sorts last.
//
// Parameters:
//   - origin: Position of self
//   - candidates: Snapshot received on the cell topic; not modified
//   - speedKmh: Average speed for the ETA estimate
//
// Returns:
//   - []RankedCandidate: New slice, nearest first
func Rank(origin types.Position, candidates []types.Candidate, speedKmh float64) []RankedCandidate {
	ranked := make([]RankedCandidate, 0, len(candidates))
	for _, c := range candidates {
		d := Distance(origin, c.Position)
		ranked = append(ranked, RankedCandidate{
			Candidate:  c,
			DistanceKm: d,
			ETA:        ETA(d, speedKmh),
		})
	}

	slices.SortStableFunc(ranked, func(a, b RankedCandidate) int {
		aNaN, bNaN := math.IsNaN(a.DistanceKm), math.IsNaN(b.DistanceKm)
		switch {
		case aNaN && bNaN:
			return 0
		case aNaN:
			return 1
		case bNaN:
			return -1
		case a.DistanceKm < b.DistanceKm:
			return -1
		case a.DistanceKm > b.DistanceKm:
			return 1
		default:
			return 0
		}
	})

	return ranked
}

// Nearest returns the closest candidate with the given role.
//
// Returns:
//   - RankedCandidate: The nearest match
//   - bool: false when no candidate has the role
func Nearest(ranked []RankedCandidate, role types.Role) (RankedCandidate, bool) {
	for _, rc := range ranked {
		if rc.Role == role {
			return rc, true
		}
	}

	return RankedCandidate{}, false
}
