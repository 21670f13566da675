// Package notify implements the ride-request notification queue.
//
// The queue shows one request at a time. States:
//   - Idle: nothing displayed, nothing pending
//   - Displaying: one request occupies the display slot until accepted, declined
//     or the display window elapses
//   - Advancing: the previous request was torn down and the next one is promoted
//     after the stagger delay
//
// Every request leaves the queue exactly once, through accept, decline or expiry.
// Enqueue never disturbs the displayed request.
//
// The Queue is confined to its owner's event loop. Timer callbacks are posted back to
// that loop through the Dispatcher and carry a generation number, so a timer that fires
// after the request it belonged to was resolved does nothing.
package notify

import (
	"fmt"
	"slices"
	"time"

	"github.com/apandit646/droploc/internal/logging"
	"github.com/apandit646/droploc/internal/metrics"
	"github.com/apandit646/droploc/types"
)

// Dispatcher schedules fn on the owner's event loop.
type Dispatcher func(fn func())

// Option configures a Queue.
type Option func(*Queue)

// WithLogger sets the logger.
func WithLogger(logger types.Logger) Option {
	return func(q *Queue) {
		q.logger = logger
	}
}

// WithMetrics sets the queue metrics sink.
func WithMetrics(m types.QueueMetrics) Option {
	return func(q *Queue) {
		q.metrics = m
	}
}

// WithDisplayHandler receives the show signal for every request entering the display
// slot, and again with a fresh deadline when a suspended display resumes.
func WithDisplayHandler(fn func(ev types.RideRequestEvent, deadline time.Time)) Option {
	return func(q *Queue) {
		q.onDisplay = fn
	}
}

// WithDismissHandler receives the hide signal when a displayed request is resolved.
func WithDismissHandler(fn func(ev types.RideRequestEvent, resolution types.Resolution)) Option {
	return func(q *Queue) {
		q.onDismiss = fn
	}
}

// WithAcceptHandler receives accepted requests after their hide signal.
func WithAcceptHandler(fn func(ev types.RideRequestEvent)) Option {
	return func(q *Queue) {
		q.onAccept = fn
	}
}

// WithClock replaces time.Now for deadlines and display-time metrics.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) {
		q.now = now
	}
}

// Queue is the notification sequencing state machine.
type Queue struct {
	post    Dispatcher
	window  time.Duration
	stagger time.Duration
	logger  types.Logger
	metrics types.QueueMetrics
	now     func() time.Time

	onDisplay func(ev types.RideRequestEvent, deadline time.Time)
	onDismiss func(ev types.RideRequestEvent, resolution types.Resolution)
	onAccept  func(ev types.RideRequestEvent)

	state       types.QueueState
	pending     []types.RideRequestEvent
	current     types.RideRequestEvent
	deadline    time.Time
	displayedAt time.Time
	timer       *time.Timer
	gen         uint64
	seq         uint64
	suspended   bool
	closed      bool
}

// New creates an idle queue.
//
// Parameters:
//   - post: Schedules timer callbacks on the owner's event loop
//   - window: How long a request stays displayed without a resolution (7s reference)
//   - stagger: Delay between tearing one display down and showing the next; zero
//     promotes synchronously
//   - opts: Optional handlers, logger, metrics and clock
func New(post Dispatcher, window, stagger time.Duration, opts ...Option) *Queue {
	q := &Queue{
		post:    post,
		window:  window,
		stagger: stagger,
		now:     time.Now,
		state:   types.QueueIdle,
	}
	for _, opt := range opts {
		opt(q)
	}
	if q.logger == nil {
		q.logger = logging.NewNop()
	}
	if q.metrics == nil {
		q.metrics = metrics.NewNop()
	}
	if q.onDisplay == nil {
		q.onDisplay = func(types.RideRequestEvent, time.Time) {}
	}
	if q.onDismiss == nil {
		q.onDismiss = func(types.RideRequestEvent, types.Resolution) {}
	}
	if q.onAccept == nil {
		q.onAccept = func(types.RideRequestEvent) {}
	}

	return q
}

// State returns the current state.
func (q *Queue) State() types.QueueState {
	return q.state
}

// Current returns the displayed request and its deadline. The deadline is zero while
// the queue is suspended.
func (q *Queue) Current() (types.RideRequestEvent, time.Time, bool) {
	if q.state != types.QueueDisplaying {
		return types.RideRequestEvent{}, time.Time{}, false
	}

	return q.current, q.deadline, true
}

// Pending returns a copy of the backlog in display order.
func (q *Queue) Pending() []types.RideRequestEvent {
	return slices.Clone(q.pending)
}

// Len returns the number of unresolved requests, displayed one included.
func (q *Queue) Len() int {
	if q.state == types.QueueDisplaying {
		return len(q.pending) + 1
	}

	return len(q.pending)
}

// Suspended reports whether timers are paused.
func (q *Queue) Suspended() bool {
	return q.suspended
}

// Enqueue appends ev to the backlog. A request without an identifier gets one derived
// from its arrival order ("req-1", "req-2", ...). When Idle, ev is displayed at once.
//
// Returns:
//   - types.RideRequestEvent: ev as queued, with its identifier
func (q *Queue) Enqueue(ev types.RideRequestEvent) types.RideRequestEvent {
	q.seq++
	if !ev.HasRequestID() {
		ev = ev.WithRequestID(fmt.Sprintf("req-%d", q.seq))
	}
	if q.closed {
		q.logger.Warn("dropping request enqueued after close", "requestId", ev.RequestID)
		return ev
	}

	q.pending = append(q.pending, ev)
	q.metrics.RecordEnqueue()
	q.logger.Debug("request enqueued", "requestId", ev.RequestID, "pending", len(q.pending))

	if q.state == types.QueueIdle {
		q.promote()
	} else {
		q.metrics.RecordQueueDepth(len(q.pending))
	}

	return ev
}

// Accept resolves the displayed request as accepted and moves on to the next one.
//
// Returns:
//   - types.RideRequestEvent: The accepted request
//   - error: ErrNothingDisplayed or ErrUnknownRequest
func (q *Queue) Accept(requestID string) (types.RideRequestEvent, error) {
	return q.resolveByID(requestID, types.ResolutionAccepted)
}

// Decline resolves the displayed request as declined and moves on without waiting
// for the deadline.
//
// Returns:
//   - types.RideRequestEvent: The declined request
//   - error: ErrNothingDisplayed or ErrUnknownRequest
func (q *Queue) Decline(requestID string) (types.RideRequestEvent, error) {
	return q.resolveByID(requestID, types.ResolutionDeclined)
}

// Suspend pauses the display and stagger timers without dropping any request.
// Used while the session is down.
func (q *Queue) Suspend() {
	if q.suspended {
		return
	}
	q.suspended = true
	q.cancelTimer()
	q.deadline = time.Time{}
	q.logger.Debug("notification timers suspended", "state", q.state.String())
}

// Resume re-arms timers. A displayed request gets a fresh full window and its show
// signal is repeated with the new deadline.
func (q *Queue) Resume() {
	if !q.suspended || q.closed {
		return
	}
	q.suspended = false

	switch q.state {
	case types.QueueDisplaying:
		q.armExpiry()
		q.onDisplay(q.current, q.deadline)
	case types.QueueAdvancing:
		q.armStagger()
	case types.QueueIdle:
	}
	q.logger.Debug("notification timers resumed", "state", q.state.String())
}

// Close stops all timers. Pending requests stay unresolved; no handler runs afterwards.
func (q *Queue) Close() {
	q.closed = true
	q.cancelTimer()
}

func (q *Queue) resolveByID(requestID string, resolution types.Resolution) (types.RideRequestEvent, error) {
	if q.state != types.QueueDisplaying {
		return types.RideRequestEvent{}, types.ErrNothingDisplayed
	}
	if q.current.RequestID != requestID {
		return types.RideRequestEvent{}, fmt.Errorf("%w: %q (displayed %q)", types.ErrUnknownRequest, requestID, q.current.RequestID)
	}

	ev := q.current
	q.resolve(resolution)

	return ev, nil
}

// resolve tears the display down and starts advancing.
func (q *Queue) resolve(resolution types.Resolution) {
	ev := q.current
	shown := q.now().Sub(q.displayedAt)

	q.cancelTimer()
	q.current = types.RideRequestEvent{}
	q.deadline = time.Time{}

	q.metrics.RecordResolution(resolution, shown.Seconds())
	q.logger.Info("request resolved", "requestId", ev.RequestID, "resolution", resolution.String())
	q.onDismiss(ev, resolution)
	if resolution == types.ResolutionAccepted {
		q.onAccept(ev)
	}

	q.advance()
}

func (q *Queue) advance() {
	if len(q.pending) == 0 {
		q.state = types.QueueIdle
		q.metrics.RecordQueueDepth(0)

		return
	}
	if q.stagger <= 0 {
		q.promote()
		return
	}

	q.state = types.QueueAdvancing
	if !q.suspended {
		q.armStagger()
	}
}

// promote moves the head of the backlog into the display slot.
func (q *Queue) promote() {
	q.current = q.pending[0]
	q.pending = slices.Delete(q.pending, 0, 1)
	q.state = types.QueueDisplaying
	q.displayedAt = q.now()
	q.metrics.RecordQueueDepth(len(q.pending))

	if !q.suspended {
		q.armExpiry()
	}
	q.logger.Debug("request displayed", "requestId", q.current.RequestID, "pending", len(q.pending))
	q.onDisplay(q.current, q.deadline)
}

func (q *Queue) armExpiry() {
	q.cancelTimer()
	q.deadline = q.now().Add(q.window)
	gen := q.gen
	q.timer = time.AfterFunc(q.window, func() {
		q.post(func() { q.expire(gen) })
	})
}

func (q *Queue) armStagger() {
	q.cancelTimer()
	gen := q.gen
	q.timer = time.AfterFunc(q.stagger, func() {
		q.post(func() { q.finishAdvance(gen) })
	})
}

// cancelTimer stops the active timer and invalidates any callback already in flight.
func (q *Queue) cancelTimer() {
	q.gen++
	if q.timer != nil {
		q.timer.Stop()
		q.timer = nil
	}
}

func (q *Queue) expire(gen uint64) {
	if gen != q.gen || q.closed || q.state != types.QueueDisplaying {
		return
	}
	q.timer = nil
	q.resolve(types.ResolutionExpired)
}

func (q *Queue) finishAdvance(gen uint64) {
	if gen != q.gen || q.closed || q.state != types.QueueAdvancing {
		return
	}
	q.timer = nil
	q.promote()
}
