package geocell

import (
	"context"
	"encoding/binary"
	"math"
	"time"

	"github.com/apandit646/droploc/types"
	"github.com/puzpuzpuz/xsync/v4"
	"github.com/zeebo/xxh3"
)

// LookupRecorder receives one observation per lookup. types.MetricsCollector
// satisfies it.
type LookupRecorder interface {
	RecordLookup(success, cached bool, duration float64)
}

// CachedResolver memoizes another resolver per quantized position.
//
// Positions are rounded to a fixed number of decimals before lookup, so samples a
// few meters apart share one entry. The cache is bounded: when it reaches its size
// it is cleared wholesale. Failures are never cached.
//
// Quantizing trades accuracy at cell edges for hit rate. Two samples in the same
// rounded square share whatever cell the first one resolved to, so a sample just
// across a cell boundary may be reported in the neighbouring cell until the actor
// moves out of that square. At precision 4 the square is about 11m; raise the
// precision when edge accuracy matters more than lookups saved.
type CachedResolver struct {
	next      Resolver
	size      int
	precision int
	entries   *xsync.Map[uint64, types.CellAddress]
	recorder  LookupRecorder
}

// CacheOption configures a CachedResolver.
type CacheOption func(*CachedResolver)

// WithLookupRecorder records every lookup (hits included).
func WithLookupRecorder(rec LookupRecorder) CacheOption {
	return func(c *CachedResolver) {
		c.recorder = rec
	}
}

// NewCachedResolver wraps next.
//
// Parameters:
//   - next: Resolver consulted on a miss
//   - size: Maximum number of entries before the cache is cleared
//   - precision: Decimal places kept when quantizing coordinates
//   - opts: Optional recorder
//
// Returns:
//   - *CachedResolver: Ready to use resolver
func NewCachedResolver(next Resolver, size, precision int, opts ...CacheOption) *CachedResolver {
	c := &CachedResolver{
		next:      next,
		size:      size,
		precision: precision,
		entries:   xsync.NewMap[uint64, types.CellAddress](),
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Resolve implements Resolver.
func (c *CachedResolver) Resolve(ctx context.Context, pos types.Position) (types.CellAddress, error) {
	start := time.Now()
	key := c.key(pos)

	if cell, ok := c.entries.Load(key); ok {
		c.record(true, true, start)
		return cell, nil
	}

	cell, err := c.next.Resolve(ctx, pos)
	if err != nil {
		c.record(false, false, start)
		return "", err
	}

	if c.entries.Size() >= c.size {
		c.entries.Clear()
	}
	c.entries.Store(key, cell)
	c.record(true, false, start)

	return cell, nil
}

// Len returns the number of cached positions.
func (c *CachedResolver) Len() int {
	return c.entries.Size()
}

func (c *CachedResolver) key(pos types.Position) uint64 {
	scale := math.Pow10(c.precision)

	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[:8], uint64(int64(math.Round(pos.Latitude*scale))))
	binary.LittleEndian.PutUint64(buf[8:], uint64(int64(math.Round(pos.Longitude*scale))))

	return xxh3.Hash(buf[:])
}

func (c *CachedResolver) record(success, cached bool, start time.Time) {
	if c.recorder == nil {
		return
	}
	c.recorder.RecordLookup(success, cached, time.Since(start).Seconds())
}
