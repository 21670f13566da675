// Package cellsub owns the single location-broadcast subscription.
//
// The Manager moves the subscription from cell to cell as the actor travels. It
// unsubscribes the old topic before subscribing the new one, so at most one location
// topic is ever live. Incoming snapshots are decoded on the transport goroutine and
// applied on the caller's event loop; messages from a subscription that has since been
// replaced or torn down are discarded.
//
// The Manager is not safe for concurrent use. Every method must be called from the
// event loop that the Dispatcher posts to.
package cellsub

import (
	"errors"

	"github.com/apandit646/droploc/geocell"
	"github.com/apandit646/droploc/internal/codec"
	"github.com/apandit646/droploc/internal/logging"
	"github.com/apandit646/droploc/internal/metrics"
	"github.com/apandit646/droploc/types"
)

// Dispatcher schedules fn on the owner's event loop.
type Dispatcher func(fn func())

// SnapshotHandler receives a decoded candidate snapshot on the event loop.
type SnapshotHandler func(cell types.CellAddress, candidates []types.Candidate)

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(logger types.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithMetrics sets the subscription metrics sink.
func WithMetrics(sm types.SubscriptionMetrics) Option {
	return func(m *Manager) {
		m.metrics = sm
	}
}

// WithErrorHandler receives absorbed errors (malformed snapshots) on the event loop.
func WithErrorHandler(fn func(err error)) Option {
	return func(m *Manager) {
		m.onError = fn
	}
}

// WithTopics overrides the topic naming.
func WithTopics(t codec.Topics) Option {
	return func(m *Manager) {
		m.topics = t
	}
}

// Manager is the cell-subscription state machine: Unsubscribed or Subscribed(topic).
type Manager struct {
	post       Dispatcher
	onSnapshot SnapshotHandler
	onError    func(err error)
	topics     codec.Topics
	logger     types.Logger
	metrics    types.SubscriptionMetrics

	state types.SubscriptionState
	cell  types.CellAddress
	sub   types.Subscription
	gen   uint64
}

// New creates a manager in the Unsubscribed state.
//
// Parameters:
//   - post: Schedules work on the event loop that owns the manager
//   - onSnapshot: Receives every valid snapshot from the active subscription
//   - opts: Optional logger, metrics, error handler and topic naming
func New(post Dispatcher, onSnapshot SnapshotHandler, opts ...Option) *Manager {
	m := &Manager{
		post:       post,
		onSnapshot: onSnapshot,
		topics:     codec.DefaultTopics(),
		state:      types.Unsubscribed,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = logging.NewNop()
	}
	if m.metrics == nil {
		m.metrics = metrics.NewNop()
	}
	if m.onError == nil {
		m.onError = func(error) {}
	}

	return m
}

// State returns the current state.
func (m *Manager) State() types.SubscriptionState {
	return m.state
}

// Cell returns the subscribed cell, or "" when Unsubscribed.
func (m *Manager) Cell() types.CellAddress {
	return m.cell
}

// Topic returns the subscribed topic, or "" when Unsubscribed.
func (m *Manager) Topic() string {
	if m.state != types.Subscribed {
		return ""
	}

	return m.topics.Location(m.cell)
}

// Update moves the subscription to cell.
//
// When cell equals the subscribed cell nothing happens. Otherwise the old topic is
// unsubscribed first and the new one subscribed afterwards. An unsubscribe failure is
// logged and the old handle is considered released; its late messages are discarded.
//
// Parameters:
//   - conn: Live connection of the current session
//   - cell: Newly resolved cell address
//
// Returns:
//   - bool: true when the subscription moved to cell
//   - error: ErrNotConnected when conn is nil, *types.ConnectionError when the
//     subscribe failed (the manager is left Unsubscribed)
func (m *Manager) Update(conn types.Conn, cell types.CellAddress) (bool, error) {
	if m.state == types.Subscribed && !geocell.HasChanged(m.cell, cell) {
		return false, nil
	}
	if conn == nil {
		return false, types.ErrNotConnected
	}

	previous := m.cell
	m.release(true)

	topic := m.topics.Location(cell)
	gen := m.gen
	sub, err := conn.Subscribe(topic, m.handler(gen, cell))
	if err != nil {
		m.logger.Warn("location subscribe failed", "topic", topic, "error", err)

		var connErr *types.ConnectionError
		if errors.As(err, &connErr) {
			return false, err
		}

		return false, &types.ConnectionError{Op: "subscribe", Cause: err}
	}

	m.sub = sub
	m.cell = cell
	m.state = types.Subscribed
	m.metrics.RecordCellChange()
	m.metrics.RecordActiveSubscriptions(1)
	m.logger.Info("location subscription moved", "from", previous.String(), "to", cell.String(), "topic", topic)

	return true, nil
}

// Teardown returns to Unsubscribed. With unsubscribe false the handle is dropped
// without calling the transport, for sessions that are already gone.
func (m *Manager) Teardown(unsubscribe bool) {
	if m.state == types.Unsubscribed {
		m.gen++
		return
	}

	m.logger.Debug("location subscription torn down", "cell", m.cell.String())
	m.release(unsubscribe)
}

// release invalidates the current subscription and unsubscribes it when asked.
func (m *Manager) release(unsubscribe bool) {
	m.gen++

	if m.state == types.Subscribed && unsubscribe && m.sub != nil {
		if err := m.sub.Unsubscribe(); err != nil {
			m.logger.Warn("location unsubscribe failed", "topic", m.sub.Topic(), "error", err)
		}
	}

	wasSubscribed := m.state == types.Subscribed
	m.sub = nil
	m.cell = ""
	m.state = types.Unsubscribed
	if wasSubscribed {
		m.metrics.RecordActiveSubscriptions(0)
	}
}

// handler decodes on the transport goroutine and applies on the event loop.
func (m *Manager) handler(gen uint64, cell types.CellAddress) types.MessageHandler {
	return func(topic string, payload []byte) {
		candidates, err := codec.DecodeCandidates(payload)

		m.post(func() {
			if gen != m.gen {
				return
			}
			if err != nil {
				m.metrics.RecordMalformedMessage("candidates")
				m.logger.Warn("dropping malformed candidate snapshot", "topic", topic, "error", err)
				m.onError(&types.MalformedMessageError{Topic: topic, Cause: err})

				return
			}

			m.metrics.RecordCandidateSnapshot(len(candidates))
			m.onSnapshot(cell, candidates)
		})
	}
}
