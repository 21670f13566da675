package types

import (
	"context"
	"time"
)

// Hooks defines callbacks for Engine events.
//
// All hooks are optional. They run on a single background goroutine in the order the
// events happened, so the engine loop never waits on them and a display's OnDismiss
// always reaches the consumer before the next OnDisplay. Hooks receive the engine's
// lifecycle context which is cancelled during shutdown.
//
// Hook errors are logged but don't fail engine operations.
//
// Example:
//
//	hooks := &droploc.Hooks{
//	    OnDisplay: func(ctx context.Context, ev droploc.RideRequestEvent, deadline time.Time) error {
//	        ui.ShowRequest(ev, deadline)
//	        return nil
//	    },
//	    OnDismiss: func(ctx context.Context, ev droploc.RideRequestEvent, r droploc.Resolution) error {
//	        ui.HideRequest(ev.RequestID)
//	        return nil
//	    },
//	}
type Hooks struct {
	// OnConnectionChanged is called when the session state transitions.
	OnConnectionChanged func(ctx context.Context, from, to ConnectionState) error

	// OnCellChanged is called after the location subscription moved to a new cell.
	// previous is empty on the first subscription.
	OnCellChanged func(ctx context.Context, previous, next CellAddress) error

	// OnCandidates is called with each candidate snapshot, ranked by distance to self.
	OnCandidates func(ctx context.Context, cell CellAddress, ranked []RankedCandidate) error

	// OnDisplay is the external show signal of the display slot.
	OnDisplay func(ctx context.Context, event RideRequestEvent, deadline time.Time) error

	// OnDismiss is the external hide signal of the display slot.
	OnDismiss func(ctx context.Context, event RideRequestEvent, resolution Resolution) error

	// OnAccept initiates contact with the requester after an accept.
	OnAccept func(ctx context.Context, event RideRequestEvent) error

	// OnError is called when a recoverable error is absorbed.
	OnError func(ctx context.Context, err error) error
}
