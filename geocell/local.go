package geocell

import (
	"context"
	"fmt"

	"github.com/apandit646/droploc/types"
	"github.com/golang/geo/s2"
	"github.com/mmcloughlin/geohash"
)

// GeohashResolver computes geohash cell addresses locally.
type GeohashResolver struct {
	precision uint
}

// NewGeohashResolver creates a resolver producing geohashes of the given length (1..12).
func NewGeohashResolver(precision uint) *GeohashResolver {
	return &GeohashResolver{precision: precision}
}

// Resolve implements Resolver. Invalid positions fail with ErrLookupFailed.
func (r *GeohashResolver) Resolve(_ context.Context, pos types.Position) (types.CellAddress, error) {
	if !pos.IsValid() {
		return "", fmt.Errorf("%w: invalid position %s", types.ErrLookupFailed, pos)
	}

	return types.CellAddress(geohash.EncodeWithPrecision(pos.Latitude, pos.Longitude, r.precision)), nil
}

// S2Resolver computes S2 cell tokens locally.
type S2Resolver struct {
	level int
}

// NewS2Resolver creates a resolver producing S2 tokens at the given level (0..30).
func NewS2Resolver(level int) *S2Resolver {
	return &S2Resolver{level: level}
}

// Resolve implements Resolver. Invalid positions fail with ErrLookupFailed.
func (r *S2Resolver) Resolve(_ context.Context, pos types.Position) (types.CellAddress, error) {
	if !pos.IsValid() {
		return "", fmt.Errorf("%w: invalid position %s", types.ErrLookupFailed, pos)
	}

	ll := s2.LatLngFromDegrees(pos.Latitude, pos.Longitude)
	cellID := s2.CellIDFromLatLng(ll).Parent(r.level)

	return types.CellAddress(cellID.ToToken()), nil
}
