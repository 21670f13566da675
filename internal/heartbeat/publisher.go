package heartbeat

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/apandit646/droploc/internal/codec"
	"github.com/apandit646/droploc/internal/logging"
	"github.com/apandit646/droploc/internal/metrics"
	"github.com/apandit646/droploc/types"
)

// Heartbeat outcomes reported to HeartbeatMetrics.RecordHeartbeat.
const (
	OutcomePublished = "published"
	OutcomeSkipped   = "skipped"
	OutcomeFailed    = "failed"
)

// Snapshot is the publisher's view of the world at one tick.
type Snapshot struct {
	// Conn is the live connection, or nil when disconnected.
	Conn types.Conn

	// Position is the last known position; valid only when HasPosition is true.
	Position    types.Position
	HasPosition bool
}

// SnapshotFunc returns the current snapshot.
type SnapshotFunc func() Snapshot

// Option configures a Publisher.
type Option func(*Publisher)

// WithLogger sets the logger.
func WithLogger(logger types.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithMetrics sets the heartbeat metrics sink.
func WithMetrics(m types.HeartbeatMetrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

// WithPublishTimeout bounds each publish. Defaults to the interval.
func WithPublishTimeout(d time.Duration) Option {
	return func(p *Publisher) {
		p.timeout = d
	}
}

// Publisher publishes periodic location heartbeats over a transport connection.
type Publisher struct {
	topic    string
	interval time.Duration
	timeout  time.Duration
	snapshot SnapshotFunc
	creds    types.CredentialStore
	logger   types.Logger
	metrics  types.HeartbeatMetrics

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New creates a heartbeat publisher.
//
// Parameters:
//   - topic: Outbound destination (e.g., "app/update-location")
//   - interval: Publish cadence (3s active, 30s passive)
//   - snapshot: Source of connection and position for each tick
//   - creds: Read-only source of the auth token
//   - opts: Optional logger, metrics and publish timeout
//
// Returns:
//   - *Publisher: New heartbeat publisher instance
func New(topic string, interval time.Duration, snapshot SnapshotFunc, creds types.CredentialStore, opts ...Option) *Publisher {
	p := &Publisher{
		topic:    topic,
		interval: interval,
		timeout:  interval,
		snapshot: snapshot,
		creds:    creds,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = logging.NewNop()
	}
	if p.metrics == nil {
		p.metrics = metrics.NewNop()
	}

	return p
}

// Start begins publishing in the background.
//
// The first tick runs immediately on the publisher goroutine, then one per interval
// until Stop is called or ctx is cancelled.
//
// Returns:
//   - error: ErrHeartbeatAlreadyStarted if already running
func (p *Publisher) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return types.ErrHeartbeatAlreadyStarted
	}

	loopCtx, cancel := context.WithCancel(ctx)
	p.started = true
	p.cancel = cancel
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})

	go p.publishLoop(loopCtx, p.stopCh, p.doneCh)

	return nil
}

// Stop halts publishing and blocks until the publisher goroutine exits. No tick runs
// after Stop returns.
//
// Returns:
//   - error: ErrHeartbeatNotStarted if not running
func (p *Publisher) Stop() error {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return types.ErrHeartbeatNotStarted
	}
	p.started = false
	p.cancel()
	close(p.stopCh)
	doneCh := p.doneCh
	p.mu.Unlock()

	<-doneCh

	return nil
}

// IsStarted reports whether the publisher goroutine is running.
func (p *Publisher) IsStarted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.started
}

// Interval returns the publish cadence.
func (p *Publisher) Interval() time.Duration {
	return p.interval
}

// Tick performs one heartbeat.
//
// Returns:
//   - error: *types.PreconditionError when skipped, the publish error when the
//     transport rejects it, nil when published
func (p *Publisher) Tick(ctx context.Context) error {
	snap := p.snapshot()

	var missing []string
	if snap.Conn == nil {
		missing = append(missing, "session")
	}
	if !snap.HasPosition {
		missing = append(missing, "position")
	}
	token, ok := p.creds.Token()
	if !ok || token == "" {
		missing = append(missing, "token")
	}
	if len(missing) > 0 {
		p.metrics.RecordHeartbeat(OutcomeSkipped)
		p.logger.Debug("heartbeat skipped", "missing", missing)

		return &types.PreconditionError{Missing: missing}
	}

	payload, err := codec.EncodeLocationUpdate(token, snap.Position)
	if err != nil {
		p.metrics.RecordHeartbeat(OutcomeFailed)
		p.logger.Warn("heartbeat encode failed", "position", snap.Position.String(), "error", err)

		return fmt.Errorf("encode heartbeat: %w", err)
	}

	pubCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := snap.Conn.Publish(pubCtx, p.topic, payload); err != nil {
		p.metrics.RecordHeartbeat(OutcomeFailed)
		p.logger.Warn("heartbeat publish failed", "topic", p.topic, "error", err)

		return fmt.Errorf("publish heartbeat: %w", err)
	}

	p.metrics.RecordHeartbeat(OutcomePublished)
	p.logger.Debug("heartbeat published", "topic", p.topic, "position", snap.Position.String())

	return nil
}

// publishLoop is the background goroutine that publishes heartbeats.
func (p *Publisher) publishLoop(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	_ = p.Tick(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Stop may race with the ticker; prefer stopping.
			select {
			case <-stopCh:
				return
			default:
			}
			_ = p.Tick(ctx)
		}
	}
}
