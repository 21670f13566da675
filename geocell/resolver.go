// Package geocell converts positions into cell addresses.
//
// A cell address is an opaque token naming a geospatial partition; the location
// broadcast topic for a cell is derived from it. Three sources are provided:
//
//   - HTTPResolver asks the dispatch backend (one network round trip per lookup)
//   - GeohashResolver and S2Resolver compute the address locally
//   - CachedResolver memoizes any of the above per quantized position
//
// Lookup failures are transient: callers retry on the next position sample.
package geocell

import (
	"context"

	"github.com/apandit646/droploc/types"
)

// Resolver converts a position into a cell address.
//
// Resolve performs a one-shot, idempotent lookup. Errors wrap types.ErrLookupFailed.
type Resolver interface {
	Resolve(ctx context.Context, pos types.Position) (types.CellAddress, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ctx context.Context, pos types.Position) (types.CellAddress, error)

// Resolve calls f(ctx, pos).
func (f ResolverFunc) Resolve(ctx context.Context, pos types.Position) (types.CellAddress, error) {
	return f(ctx, pos)
}

// HasChanged reports whether next differs from previous.
//
// An empty previous address means none was known yet and always counts as a change,
// which forces the first subscription.
func HasChanged(previous, next types.CellAddress) bool {
	if previous == "" {
		return true
	}

	return previous != next
}
