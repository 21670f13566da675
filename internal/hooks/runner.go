package hooks

import (
	"context"
	"sync"
	"time"

	"github.com/apandit646/droploc/types"
)

// Runner invokes hooks on one background goroutine in submission order.
//
// Submissions never block and are never dropped while the runner is open; the
// backlog grows as needed. After Stop, further submissions are discarded.
type Runner struct {
	hooks  types.Hooks
	logger types.Logger

	mu      sync.Mutex
	backlog []func(ctx context.Context)
	closed  bool
	wake    chan struct{}
	doneCh  chan struct{}
	started bool
}

// NewRunner creates a runner for h. Nil callbacks in h are treated as no-ops.
func NewRunner(h *types.Hooks, logger types.Logger) *Runner {
	return &Runner{
		hooks:  Fill(h),
		logger: logger,
		wake:   make(chan struct{}, 1),
		doneCh: make(chan struct{}),
	}
}

// Start launches the delivery goroutine. ctx is passed to every hook; cancelling it
// stops delivery without draining.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return
	}
	r.started = true
	r.mu.Unlock()

	go r.loop(ctx)
}

// Stop closes the runner, delivers what is already queued and waits until the
// delivery goroutine exits or ctx is done.
func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	started := r.started
	r.mu.Unlock()

	if !started {
		return nil
	}
	r.signal()

	select {
	case <-r.doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ConnectionChanged submits OnConnectionChanged.
func (r *Runner) ConnectionChanged(from, to types.ConnectionState) {
	r.submit("connection changed", func(ctx context.Context) error {
		return r.hooks.OnConnectionChanged(ctx, from, to)
	})
}

// CellChanged submits OnCellChanged.
func (r *Runner) CellChanged(previous, next types.CellAddress) {
	r.submit("cell changed", func(ctx context.Context) error {
		return r.hooks.OnCellChanged(ctx, previous, next)
	})
}

// Candidates submits OnCandidates.
func (r *Runner) Candidates(cell types.CellAddress, ranked []types.RankedCandidate) {
	r.submit("candidates", func(ctx context.Context) error {
		return r.hooks.OnCandidates(ctx, cell, ranked)
	})
}

// Display submits OnDisplay.
func (r *Runner) Display(event types.RideRequestEvent, deadline time.Time) {
	r.submit("display", func(ctx context.Context) error {
		return r.hooks.OnDisplay(ctx, event, deadline)
	})
}

// Dismiss submits OnDismiss.
func (r *Runner) Dismiss(event types.RideRequestEvent, resolution types.Resolution) {
	r.submit("dismiss", func(ctx context.Context) error {
		return r.hooks.OnDismiss(ctx, event, resolution)
	})
}

// Accept submits OnAccept.
func (r *Runner) Accept(event types.RideRequestEvent) {
	r.submit("accept", func(ctx context.Context) error {
		return r.hooks.OnAccept(ctx, event)
	})
}

// Error submits OnError.
func (r *Runner) Error(err error) {
	r.submit("error", func(ctx context.Context) error {
		return r.hooks.OnError(ctx, err)
	})
}

func (r *Runner) submit(name string, call func(ctx context.Context) error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.backlog = append(r.backlog, func(ctx context.Context) {
		if err := call(ctx); err != nil {
			r.logger.Warn("hook returned error", "hook", name, "error", err)
		}
	})
	r.mu.Unlock()

	r.signal()
}

func (r *Runner) signal() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

func (r *Runner) loop(ctx context.Context) {
	defer close(r.doneCh)

	for {
		r.mu.Lock()
		batch := r.backlog
		r.backlog = nil
		closed := r.closed
		r.mu.Unlock()

		for _, fn := range batch {
			if ctx.Err() != nil {
				return
			}
			fn(ctx)
		}

		if closed && len(batch) == 0 {
			return
		}
		if len(batch) > 0 {
			continue
		}

		select {
		case <-r.wake:
		case <-ctx.Done():
			return
		}
	}
}
