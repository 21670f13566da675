package droploc

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/apandit646/droploc/geo"
	"github.com/apandit646/droploc/geocell"
	"github.com/apandit646/droploc/internal/cellsub"
	"github.com/apandit646/droploc/internal/codec"
	"github.com/apandit646/droploc/internal/heartbeat"
	"github.com/apandit646/droploc/internal/hooks"
	"github.com/apandit646/droploc/internal/logging"
	"github.com/apandit646/droploc/internal/metrics"
	"github.com/apandit646/droploc/internal/notify"
	"github.com/apandit646/droploc/internal/session"
	"github.com/apandit646/droploc/rideapi"
	"github.com/apandit646/droploc/types"
)

const (
	engineNew int32 = iota
	engineRunning
	engineStopped
)

var errSessionDropped = errors.New("session dropped before it was attached")

// Engine keeps one actor in sync with the dispatch backend.
//
// Engine owns the connection supervisor, the cell subscription, the notification
// queue and the heartbeat. Their state lives on a single event loop: public methods
// post a closure and wait for it, and transport deliveries, lookup completions and
// timers post back into the same loop.
//
// Thread Safety:
//   - All public methods are safe for concurrent use
//   - Hooks run on their own goroutine and may call back into the Engine
//
// Lifecycle:
//   - Create with NewEngine()
//   - Start() runs the loop; Connect() opens a session
//   - Feed positions with UpdatePosition()
//   - Disconnect() and Connect() as the app goes to background and foreground
//   - Stop() disconnects and shuts the loop down
type Engine struct {
	cfg      Config
	creds    CredentialStore
	resolver geocell.Resolver
	topics   codec.Topics
	metrics  MetricsCollector
	logger   Logger

	recordLookups bool

	supervisor *session.Supervisor
	heartbeat  *heartbeat.Publisher
	cells      *cellsub.Manager
	queue      *notify.Queue
	runner     *hooks.Runner
	rides      *rideapi.Client
	tracker    *rideapi.Tracker

	// Loop-confined state.
	sess          *session.Session
	notifSub      Subscription
	pushSub       Subscription
	position      Position
	hasPosition   bool
	lookupSeq     uint64
	desiredCell   CellAddress
	rawCandidates []Candidate

	snapshot         atomic.Pointer[heartbeat.Snapshot]
	subscribers      *xsync.Map[uint64, *stateSubscriber]
	nextSubscriberID atomic.Uint64

	// Lifecycle management
	mu       sync.Mutex
	state    atomic.Int32
	ctx      context.Context
	cancel   context.CancelFunc
	mailbox  *mailbox
	loopDone chan struct{}
	lookups  sync.WaitGroup
}

// NewEngine creates an Engine.
//
// Parameters:
//   - cfg: Configuration; missing values are filled with defaults
//   - transport: Pub/sub transport the sessions are opened on
//   - resolver: Cell address source; may be nil for the geohash, s2 and push cell
//     sources, and for lookup when cfg.API.BaseURL is set
//   - creds: Read-only auth token and actor identity
//   - opts: Optional hooks, metrics, logger, ride client, HTTP client and clock
//
// Returns:
//   - *Engine: Initialized engine, not yet started
//   - error: ErrInvalidConfig, ErrTransportRequired, ErrCredentialsRequired or
//     ErrResolverRequired
//
// Example:
//
//	cfg := droploc.DefaultConfig()
//	cfg.CellSource = droploc.CellSourceGeohash
//	eng, err := droploc.NewEngine(&cfg, stomp.New(wsURL), nil, creds)
func NewEngine(cfg *Config, transport Transport, resolver geocell.Resolver, creds CredentialStore, opts ...Option) (*Engine, error) {
	if cfg == nil {
		return nil, ErrInvalidConfig
	}
	if transport == nil {
		return nil, ErrTransportRequired
	}
	if creds == nil {
		return nil, ErrCredentialsRequired
	}

	SetDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	options := &engineOptions{}
	for _, opt := range opts {
		opt(options)
	}

	metricsCollector := options.metrics
	if metricsCollector == nil {
		metricsCollector = metrics.NewNop()
	}
	loggerInstance := options.logger
	if loggerInstance == nil {
		loggerInstance = logging.NewNop()
	}
	hooksInstance := options.hooks
	if hooksInstance == nil {
		nopHooks := hooks.NewNop()
		hooksInstance = &nopHooks
	}
	now := options.now
	if now == nil {
		now = time.Now
	}

	cfg.ValidateWithWarnings(loggerInstance)

	e := &Engine{
		cfg:         *cfg,
		creds:       creds,
		topics:      cfg.Topics.topics(),
		metrics:     metricsCollector,
		logger:      loggerInstance,
		runner:      hooks.NewRunner(hooksInstance, loggerInstance),
		tracker:     rideapi.NewTracker(cfg.RideRequestWindow, now),
		subscribers: xsync.NewMap[uint64, *stateSubscriber](),
		mailbox:     newMailbox(),
	}

	var err error
	e.resolver, err = e.buildResolver(resolver, options)
	if err != nil {
		return nil, err
	}

	e.rides = options.rideClient
	if e.rides == nil && cfg.API.BaseURL != "" {
		rideOpts := []rideapi.Option{rideapi.WithRidePath(cfg.API.RidePath)}
		if options.httpClient != nil {
			rideOpts = append(rideOpts, rideapi.WithHTTPClient(options.httpClient))
		}
		e.rides = rideapi.NewClient(cfg.API.BaseURL, rideOpts...)
	}

	e.supervisor = session.New(transport,
		session.WithLogger(loggerInstance),
		session.WithMetrics(metricsCollector),
		session.WithDialTimeout(cfg.OperationTimeout),
		session.WithStateListener(e.onConnectionChanged),
		session.WithLostHandler(e.onSessionLost),
	)

	e.cells = cellsub.New(e.post, e.onSnapshot,
		cellsub.WithLogger(loggerInstance),
		cellsub.WithMetrics(metricsCollector),
		cellsub.WithErrorHandler(e.runner.Error),
		cellsub.WithTopics(e.topics),
	)

	e.queue = notify.New(e.post, cfg.DisplayWindow, max(cfg.PromotionStagger, 0),
		notify.WithLogger(loggerInstance),
		notify.WithMetrics(metricsCollector),
		notify.WithDisplayHandler(e.runner.Display),
		notify.WithDismissHandler(e.runner.Dismiss),
		notify.WithAcceptHandler(e.runner.Accept),
		notify.WithClock(now),
	)

	interval := cfg.heartbeatInterval()
	e.heartbeat = heartbeat.New(e.topics.UpdateLocation, interval, e.loadSnapshot, creds,
		heartbeat.WithLogger(loggerInstance),
		heartbeat.WithMetrics(metricsCollector),
		heartbeat.WithPublishTimeout(min(interval, cfg.OperationTimeout)),
	)
	e.snapshot.Store(&heartbeat.Snapshot{})

	return e, nil
}

// buildResolver picks the cell source. Lookups through the REST endpoint are cached.
func (e *Engine) buildResolver(given geocell.Resolver, options *engineOptions) (geocell.Resolver, error) {
	switch e.cfg.CellSource {
	case CellSourcePush:
		return nil, nil
	case CellSourceGeohash:
		if given != nil {
			return given, nil
		}

		return geocell.NewGeohashResolver(uint(e.cfg.GeohashPrecision)), nil //nolint:gosec // validated 1..12
	case CellSourceS2:
		if given != nil {
			return given, nil
		}

		return geocell.NewS2Resolver(e.cfg.S2Level), nil
	}

	base := given
	if base == nil {
		if e.cfg.API.BaseURL == "" {
			return nil, ErrResolverRequired
		}
		httpOpts := []geocell.HTTPOption{geocell.WithLookupPath(e.cfg.API.LookupPath)}
		if options.httpClient != nil {
			httpOpts = append(httpOpts, geocell.WithHTTPClient(options.httpClient))
		}
		base = geocell.NewHTTPResolver(e.cfg.API.BaseURL, e.creds, httpOpts...)
	}

	if e.cfg.CellCacheSize <= 0 {
		e.recordLookups = true
		return base, nil
	}

	return geocell.NewCachedResolver(base, e.cfg.CellCacheSize, e.cfg.CellCachePrecision,
		geocell.WithLookupRecorder(e.metrics),
	), nil
}

// Start runs the event loop.
//
// Returns:
//   - error: ErrAlreadyStarted if Start was called before, or ctx's error
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state.Load() != engineNew {
		return ErrAlreadyStarted
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	e.ctx, e.cancel = context.WithCancel(context.Background())
	e.runner.Start(e.ctx)

	e.loopDone = make(chan struct{})
	e.mailbox.setOpen(true)
	go e.mailbox.run(e.loopDone)

	e.state.Store(engineRunning)
	e.logger.Info("engine started",
		"cellSource", string(e.cfg.CellSource),
		"heartbeatInterval", e.heartbeat.Interval(),
	)

	return nil
}

// Stop disconnects if connected, stops the loop and delivers outstanding hooks.
//
// Stop is terminal; a stopped Engine cannot be started again.
//
// Parameters:
//   - ctx: Context for shutdown timeout
//
// Returns:
//   - error: ErrNotStarted if not running, the disconnect error, or ctx's error on timeout
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	if !e.state.CompareAndSwap(engineRunning, engineStopped) {
		e.mu.Unlock()
		return ErrNotStarted
	}
	e.mu.Unlock()

	var shutdownErr error

	// Step 1: tear the session down while the loop still accepts work.
	var discErr error
	if err := e.await(ctx, func() {
		if e.sess != nil {
			discErr = e.disconnect()
		}
		e.queue.Close()
	}); err != nil {
		shutdownErr = err
	} else if discErr != nil {
		e.logger.Error("disconnect during stop failed", "error", discErr)
		shutdownErr = fmt.Errorf("disconnect failed: %w", discErr)
	}

	// Step 2: drain and stop the loop.
	e.mailbox.setOpen(false)
	select {
	case <-e.loopDone:
	case <-ctx.Done():
		e.cancel()
		return joinShutdown(ctx.Err(), shutdownErr)
	}

	// Step 3: deliver queued hooks, then cancel lookups still in flight.
	if err := e.runner.Stop(ctx); err != nil && shutdownErr == nil {
		shutdownErr = err
	}
	e.cancel()

	done := make(chan struct{})
	go func() {
		e.lookups.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return joinShutdown(ctx.Err(), shutdownErr)
	}

	e.subscribers.Range(func(id uint64, sub *stateSubscriber) bool {
		e.subscribers.Delete(id)
		sub.close()

		return true
	})

	e.logger.Info("engine stopped")

	return shutdownErr
}

func joinShutdown(timeout, err error) error {
	if err == nil {
		return timeout
	}

	return fmt.Errorf("shutdown timeout: %w; additional error: %w", timeout, err)
}

// Connect opens a session, attaches the per-actor subscriptions, resumes the
// notification timers and starts the heartbeat when a position is known.
//
// Parameters:
//   - ctx: Context for the dial (additionally bounded by Config.OperationTimeout)
//
// Returns:
//   - error: ErrDuplicateSession when already connected, *ConnectionError when the
//     session could not be opened or a per-actor subscription failed
func (e *Engine) Connect(ctx context.Context) error {
	if err := e.checkRunning(); err != nil {
		return err
	}

	sess, err := e.supervisor.Connect(ctx)
	if err != nil {
		return err
	}

	var attachErr error
	if err := e.await(context.Background(), func() { attachErr = e.attach(sess) }); err != nil {
		_ = e.supervisor.Disconnect(sess)
		return err
	}

	return attachErr
}

// Disconnect stops the heartbeat, suspends the notification timers, releases the
// subscriptions and closes the session, in that order.
//
// Returns:
//   - error: ErrNotConnected if there is no session, or the close error
func (e *Engine) Disconnect(ctx context.Context) error {
	if err := e.checkRunning(); err != nil {
		return err
	}

	var discErr error
	if err := e.await(ctx, func() { discErr = e.disconnect() }); err != nil {
		return err
	}

	return discErr
}

// UpdatePosition records a new position sample.
//
// The heartbeat starts if connected, and the cell address is resolved in the
// background. Only the newest sample's lookup result is applied. Lookup failures
// are reported through Hooks.OnError and retried with the next sample.
//
// Returns:
//   - error: ErrNotStarted or ErrEngineStopped
func (e *Engine) UpdatePosition(pos Position) error {
	return e.await(context.Background(), func() { e.setPosition(pos) })
}

// Accept resolves the displayed request as accepted. Hooks.OnAccept runs after
// Hooks.OnDismiss.
//
// Returns:
//   - RideRequestEvent: The accepted request
//   - error: ErrNothingDisplayed, ErrUnknownRequest, or a lifecycle error
func (e *Engine) Accept(requestID string) (RideRequestEvent, error) {
	var (
		ev  RideRequestEvent
		err error
	)
	if loopErr := e.await(context.Background(), func() { ev, err = e.queue.Accept(requestID) }); loopErr != nil {
		return RideRequestEvent{}, loopErr
	}

	return ev, err
}

// Decline resolves the displayed request as declined.
//
// Returns:
//   - RideRequestEvent: The declined request
//   - error: ErrNothingDisplayed, ErrUnknownRequest, or a lifecycle error
func (e *Engine) Decline(requestID string) (RideRequestEvent, error) {
	var (
		ev  RideRequestEvent
		err error
	)
	if loopErr := e.await(context.Background(), func() { ev, err = e.queue.Decline(requestID) }); loopErr != nil {
		return RideRequestEvent{}, loopErr
	}

	return ev, err
}

// RequestRide asks providerID to drive this actor to destination.
//
// The provider stays in progress for Config.RideRequestWindow; a second request to
// it inside the window fails with ErrRequestInProgress. A failed POST clears the
// mark at once.
//
// Parameters:
//   - ctx: Request context
//   - providerID: Candidate ID of the chosen driver
//   - destination: Free-form drop-off address
//
// Returns:
//   - error: ErrNoDestination, ErrPreconditionNotMet (no token), ErrRequestInProgress
//     or ErrRideRequestFailed
func (e *Engine) RequestRide(ctx context.Context, providerID, destination string) error {
	if err := e.checkRunning(); err != nil {
		return err
	}
	if e.rides == nil {
		return fmt.Errorf("%w: no ride API configured", ErrRideRequestFailed)
	}
	if strings.TrimSpace(destination) == "" {
		return ErrNoDestination
	}

	token, ok := e.creds.Token()
	if !ok || token == "" {
		return &PreconditionError{Missing: []string{"token"}}
	}

	if err := e.tracker.Begin(providerID); err != nil {
		return err
	}
	if err := e.rides.RequestRide(ctx, token, providerID, destination); err != nil {
		e.tracker.Fail(providerID)
		e.logger.Warn("ride request failed", "provider", providerID, "error", err)

		return err
	}

	e.logger.Info("ride requested", "provider", providerID)

	return nil
}

// RideStatus reports whether a request to providerID is in progress and how much of
// its window is left.
func (e *Engine) RideStatus(providerID string) (bool, time.Duration) {
	return e.tracker.Status(providerID)
}

// Candidates returns the latest snapshot of the current cell, ranked by distance to
// the last known position. Without a position the snapshot is returned in broadcast
// order with zero distances.
func (e *Engine) Candidates() []RankedCandidate {
	var out []RankedCandidate
	_ = e.await(context.Background(), func() { out = e.rank(e.rawCandidates) })

	return out
}

// Current returns the displayed request and its deadline. The deadline is zero while
// disconnected.
func (e *Engine) Current() (RideRequestEvent, time.Time, bool) {
	var (
		ev       RideRequestEvent
		deadline time.Time
		ok       bool
	)
	_ = e.await(context.Background(), func() { ev, deadline, ok = e.queue.Current() })

	return ev, deadline, ok
}

// Pending returns the requests waiting behind the displayed one.
func (e *Engine) Pending() []RideRequestEvent {
	var out []RideRequestEvent
	_ = e.await(context.Background(), func() { out = e.queue.Pending() })

	return out
}

// QueueState returns the notification queue state.
func (e *Engine) QueueState() QueueState {
	state := QueueIdle
	_ = e.await(context.Background(), func() { state = e.queue.State() })

	return state
}

// CellState returns the location subscription state and its cell.
func (e *Engine) CellState() (SubscriptionState, CellAddress) {
	var (
		state = Unsubscribed
		cell  CellAddress
	)
	_ = e.await(context.Background(), func() { state, cell = e.cells.State(), e.cells.Cell() })

	return state, cell
}

// Position returns the last recorded position.
func (e *Engine) Position() (Position, bool) {
	snap := e.snapshot.Load()

	return snap.Position, snap.HasPosition
}

// ConnectionState returns the session state.
func (e *Engine) ConnectionState() ConnectionState {
	return e.supervisor.State()
}

// Connected reports whether a session is live.
func (e *Engine) Connected() bool {
	return e.supervisor.State().IsConnected()
}

// SubscribeConnection returns a channel of session state changes.
//
// The channel is buffered (size 4) and receives the current state at once. A slow
// reader misses intermediate states. The channel is closed by the returned function
// or by Stop.
//
// Example:
//
//	ch, unsubscribe := eng.SubscribeConnection()
//	defer unsubscribe()
//	for state := range ch {
//	    ui.SetOnline(state == droploc.ConnectionConnected)
//	}
func (e *Engine) SubscribeConnection() (<-chan ConnectionState, func()) {
	id := e.nextSubscriberID.Add(1)
	sub := &stateSubscriber{ch: make(chan ConnectionState, 4)}
	e.subscribers.Store(id, sub)

	sub.trySend(e.supervisor.State())

	// Stop may already have swept the map; a late subscriber closes itself.
	if e.state.Load() == engineStopped {
		if s, ok := e.subscribers.LoadAndDelete(id); ok {
			s.close()
		}
	}

	unsubscribe := func() {
		if s, ok := e.subscribers.LoadAndDelete(id); ok {
			s.close()
		}
	}

	return sub.ch, unsubscribe
}

// WaitConnectionState waits until the session reaches expected.
//
// The returned channel receives exactly one value: nil when the state is reached,
// context.DeadlineExceeded when timeout expires first, or ErrEngineStopped when the
// engine stops first. It is closed afterwards.
//
// Example:
//
//	if err := <-eng.WaitConnectionState(droploc.ConnectionConnected, 5*time.Second); err != nil {
//	    return fmt.Errorf("not connected: %w", err)
//	}
func (e *Engine) WaitConnectionState(expected ConnectionState, timeout time.Duration) <-chan error {
	result := make(chan error, 1)
	ch, unsubscribe := e.SubscribeConnection()

	go func() {
		defer close(result)
		defer unsubscribe()

		timer := time.NewTimer(timeout)
		defer timer.Stop()

		for {
			select {
			case state, ok := <-ch:
				if !ok {
					result <- ErrEngineStopped
					return
				}
				if state == expected {
					result <- nil
					return
				}
			case <-timer.C:
				result <- context.DeadlineExceeded
				return
			}
		}
	}()

	return result
}

// checkRunning maps the lifecycle state to an error.
func (e *Engine) checkRunning() error {
	switch e.state.Load() {
	case engineNew:
		return ErrNotStarted
	case engineStopped:
		return ErrEngineStopped
	default:
		return nil
	}
}

// post schedules fn on the loop. Work posted after Stop is dropped.
func (e *Engine) post(fn func()) {
	e.mailbox.post(fn)
}

// await runs fn on the loop and waits for it. When ctx ends first fn still runs,
// but its results are no longer observed.
func (e *Engine) await(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if !e.mailbox.post(func() {
		defer close(done)
		fn()
	}) {
		if e.state.Load() == engineNew {
			return ErrNotStarted
		}

		return ErrEngineStopped
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// attach binds a fresh session to the loop.
func (e *Engine) attach(sess *session.Session) error {
	if !sess.Alive() {
		return &ConnectionError{Op: "connect", Cause: errSessionDropped}
	}
	if e.sess != nil {
		// The previous session was lost but its loss has not reached the loop yet.
		e.detach(false)
	}

	e.sess = sess
	e.publishSnapshot()
	conn := sess.Conn()

	actorID, ok := e.creds.ActorID()
	if !ok || actorID == "" {
		e.logger.Warn("actor identity unavailable, ride requests will not be delivered")
		e.runner.Error(&PreconditionError{Missing: []string{"actor"}})
	} else {
		sub, err := conn.Subscribe(e.topics.Notification(actorID), e.notificationHandler(sess))
		if err != nil {
			return e.abortAttach(sess, err)
		}
		e.notifSub = sub

		if e.cfg.CellSource == CellSourcePush {
			sub, err := conn.Subscribe(e.topics.CellPush(actorID), e.cellPushHandler(sess))
			if err != nil {
				return e.abortAttach(sess, err)
			}
			e.pushSub = sub
		}
	}

	e.queue.Resume()

	if e.desiredCell != "" {
		e.applyCell(e.desiredCell)
	} else if e.hasPosition && e.resolver != nil {
		e.resolve(e.position)
	}
	e.maybeStartHeartbeat()

	e.logger.Info("engine connected", "session", sess.ID(), "actor", actorID)

	return nil
}

func (e *Engine) abortAttach(sess *session.Session, err error) error {
	e.logger.Warn("per-actor subscribe failed, closing session", "session", sess.ID(), "error", err)
	e.detach(true)
	_ = e.supervisor.Disconnect(sess)

	var connErr *ConnectionError
	if errors.As(err, &connErr) {
		return err
	}

	return &ConnectionError{Op: "subscribe", Cause: err}
}

// disconnect runs on the loop.
func (e *Engine) disconnect() error {
	sess := e.sess
	if sess == nil {
		return ErrNotConnected
	}

	e.detach(sess.Alive())

	return e.supervisor.Disconnect(sess)
}

// detach releases everything bound to the current session: the heartbeat first,
// then the notification timers, then the subscriptions. Without unsubscribe the
// handles are dropped without touching the transport.
func (e *Engine) detach(unsubscribe bool) {
	if err := e.heartbeat.Stop(); err != nil && !errors.Is(err, types.ErrHeartbeatNotStarted) {
		e.logger.Warn("heartbeat stop failed", "error", err)
	}

	e.queue.Suspend()
	e.cells.Teardown(unsubscribe)

	for _, sub := range []Subscription{e.notifSub, e.pushSub} {
		if sub == nil || !unsubscribe {
			continue
		}
		if err := sub.Unsubscribe(); err != nil {
			e.logger.Warn("unsubscribe failed", "topic", sub.Topic(), "error", err)
		}
	}

	e.notifSub, e.pushSub = nil, nil
	e.rawCandidates = nil
	e.sess = nil
	e.publishSnapshot()
}

func (e *Engine) setPosition(pos Position) {
	e.position = pos
	e.hasPosition = true
	e.publishSnapshot()
	e.maybeStartHeartbeat()

	if e.resolver != nil {
		e.resolve(pos)
	}
}

// resolve looks the cell up off the loop. Results of superseded samples are dropped.
func (e *Engine) resolve(pos Position) {
	e.lookupSeq++
	seq := e.lookupSeq

	e.lookups.Add(1)
	go func() {
		defer e.lookups.Done()

		ctx, cancel := context.WithTimeout(e.ctx, e.cfg.LookupTimeout)
		defer cancel()

		start := time.Now()
		cell, err := e.resolver.Resolve(ctx, pos)
		if e.recordLookups {
			e.metrics.RecordLookup(err == nil, false, time.Since(start).Seconds())
		}

		e.post(func() { e.finishLookup(seq, cell, err) })
	}()
}

func (e *Engine) finishLookup(seq uint64, cell CellAddress, err error) {
	if seq != e.lookupSeq {
		e.logger.Debug("discarding superseded lookup", "cell", cell.String())
		return
	}

	if err == nil && cell == "" {
		err = fmt.Errorf("%w: empty cell address", ErrLookupFailed)
	}
	if err != nil {
		if !errors.Is(err, ErrLookupFailed) {
			err = fmt.Errorf("%w: %w", ErrLookupFailed, err)
		}
		e.logger.Warn("cell lookup failed", "error", err)
		e.runner.Error(err)

		return
	}

	e.applyCell(cell)
}

// applyCell moves the location subscription. While disconnected the cell is only
// remembered and applied on the next Connect.
func (e *Engine) applyCell(cell CellAddress) {
	e.desiredCell = cell
	if e.sess == nil {
		return
	}

	previous := e.cells.Cell()
	changed, err := e.cells.Update(e.sess.Conn(), cell)
	if err != nil {
		e.runner.Error(err)
		return
	}
	if changed {
		e.rawCandidates = nil
		e.runner.CellChanged(previous, cell)
	}
}

func (e *Engine) onSnapshot(cell CellAddress, candidates []Candidate) {
	e.rawCandidates = candidates
	e.runner.Candidates(cell, e.rank(candidates))
}

func (e *Engine) rank(candidates []Candidate) []RankedCandidate {
	if len(candidates) == 0 {
		return nil
	}
	if e.hasPosition {
		return geo.Rank(e.position, candidates, e.cfg.AverageSpeedKmh)
	}

	out := make([]RankedCandidate, len(candidates))
	for i, c := range candidates {
		out[i] = RankedCandidate{Candidate: c}
	}

	return out
}

func (e *Engine) notificationHandler(sess *session.Session) MessageHandler {
	return func(topic string, payload []byte) {
		ev, err := codec.DecodeRideRequest(payload)

		e.post(func() {
			if e.sess != sess {
				return
			}
			if err != nil {
				e.dropMalformed("ride_request", topic, err)
				return
			}

			ev = e.queue.Enqueue(ev)
			e.logger.Info("ride request received", "requestId", ev.RequestID, "pending", e.queue.Len())
		})
	}
}

func (e *Engine) cellPushHandler(sess *session.Session) MessageHandler {
	return func(topic string, payload []byte) {
		cell, err := codec.DecodeCellPush(payload)

		e.post(func() {
			if e.sess != sess {
				return
			}
			if err != nil {
				e.dropMalformed("cell_push", topic, err)
				return
			}

			e.applyCell(cell)
		})
	}
}

func (e *Engine) dropMalformed(kind, topic string, err error) {
	e.metrics.RecordMalformedMessage(kind)
	e.logger.Warn("dropping malformed message", "kind", kind, "topic", topic, "error", err)
	e.runner.Error(&MalformedMessageError{Topic: topic, Cause: err})
}

func (e *Engine) maybeStartHeartbeat() {
	if e.sess == nil || !e.hasPosition || e.heartbeat.IsStarted() {
		return
	}
	if err := e.heartbeat.Start(e.ctx); err != nil && !errors.Is(err, types.ErrHeartbeatAlreadyStarted) {
		e.logger.Warn("heartbeat start failed", "error", err)
	}
}

// publishSnapshot hands the heartbeat an immutable view of the loop state.
func (e *Engine) publishSnapshot() {
	snap := &heartbeat.Snapshot{Position: e.position, HasPosition: e.hasPosition}
	if e.sess != nil {
		snap.Conn = e.sess.Conn()
	}
	e.snapshot.Store(snap)
}

func (e *Engine) loadSnapshot() heartbeat.Snapshot {
	return *e.snapshot.Load()
}

// onSessionLost runs on the transport goroutine.
func (e *Engine) onSessionLost(sess *session.Session, err error) {
	e.post(func() {
		if e.sess != sess {
			return
		}
		e.logger.Warn("session lost, waiting for Connect", "session", sess.ID(), "error", err)
		e.detach(false)
		e.runner.Error(err)
	})
}

func (e *Engine) onConnectionChanged(from, to ConnectionState) {
	e.logger.Debug("connection state", "from", from.String(), "to", to.String())
	e.runner.ConnectionChanged(from, to)

	e.subscribers.Range(func(_ uint64, sub *stateSubscriber) bool {
		sub.trySend(to)
		return true
	})
}
