package rideapi

import (
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/apandit646/droploc/types"
)

// Tracker remembers, per provider, that a ride request is in progress.
//
// A provider is marked before the POST goes out and stays marked for the request
// window (the countdown the rider sees). A failed POST clears the mark at once.
// Safe for concurrent use.
type Tracker struct {
	window  time.Duration
	now     func() time.Time
	entries *xsync.Map[string, time.Time]
}

// NewTracker creates a tracker. now may be nil for time.Now.
func NewTracker(window time.Duration, now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}

	return &Tracker{
		window:  window,
		now:     now,
		entries: xsync.NewMap[string, time.Time](),
	}
}

// Begin marks providerID as in progress.
//
// Returns:
//   - error: ErrRequestInProgress when a previous request is still counting down
func (t *Tracker) Begin(providerID string) error {
	now := t.now()
	busy := false

	t.entries.Compute(providerID, func(until time.Time, loaded bool) (time.Time, xsync.ComputeOp) {
		if loaded && now.Before(until) {
			busy = true
			return until, xsync.CancelOp
		}

		return now.Add(t.window), xsync.UpdateOp
	})

	if busy {
		return types.ErrRequestInProgress
	}

	return nil
}

// Fail clears the mark after a failed POST.
func (t *Tracker) Fail(providerID string) {
	t.entries.Delete(providerID)
}

// Status returns whether providerID is in progress and the countdown remaining.
func (t *Tracker) Status(providerID string) (bool, time.Duration) {
	until, ok := t.entries.Load(providerID)
	if !ok {
		return false, 0
	}

	remaining := until.Sub(t.now())
	if remaining <= 0 {
		t.entries.Compute(providerID, func(cur time.Time, loaded bool) (time.Time, xsync.ComputeOp) {
			if loaded && cur.Equal(until) {
				return cur, xsync.DeleteOp
			}

			return cur, xsync.CancelOp
		})

		return false, 0
	}

	return true, remaining
}

// InProgress lists providers whose countdown is still running.
func (t *Tracker) InProgress() []string {
	now := t.now()

	var out []string
	t.entries.Range(func(id string, until time.Time) bool {
		if now.Before(until) {
			out = append(out, id)
		}

		return true
	})

	return out
}
