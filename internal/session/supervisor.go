// Package session owns the transport session lifecycle.
//
// The Supervisor is the only component that creates or destroys a transport
// session. At most one Session is alive at a time; reconnection is never automatic.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/apandit646/droploc/internal/logging"
	"github.com/apandit646/droploc/internal/metrics"
	"github.com/apandit646/droploc/types"
	"github.com/google/uuid"
)

// Session is one live transport session.
type Session struct {
	id        string
	conn      types.Conn
	createdAt time.Time
	dead      atomic.Bool
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Conn returns the underlying connection.
func (s *Session) Conn() types.Conn {
	return s.conn
}

// CreatedAt returns when the session was established.
func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

// Alive reports whether the session has been neither disconnected nor lost.
func (s *Session) Alive() bool {
	return !s.dead.Load()
}

var errDroppedDuringConnect = errors.New("session dropped during connect")

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithLogger sets the logger.
func WithLogger(logger types.Logger) Option {
	return func(s *Supervisor) {
		s.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m types.SessionMetrics) Option {
	return func(s *Supervisor) {
		s.metrics = m
	}
}

// WithDialTimeout bounds each Connect. Zero means the caller's context alone applies.
func WithDialTimeout(d time.Duration) Option {
	return func(s *Supervisor) {
		s.dialTimeout = d
	}
}

// WithStateListener is called after every state transition, outside the supervisor lock.
func WithStateListener(fn func(from, to types.ConnectionState)) Option {
	return func(s *Supervisor) {
		s.onState = fn
	}
}

// WithLostHandler is called once when the transport drops a live session.
// The session is already released when the handler runs.
func WithLostHandler(fn func(sess *Session, err error)) Option {
	return func(s *Supervisor) {
		s.onLost = fn
	}
}

// Supervisor creates and destroys transport sessions.
//
// Thread Safety:
//   - All methods are safe for concurrent use
//   - Listener callbacks run outside the internal lock
type Supervisor struct {
	transport   types.Transport
	logger      types.Logger
	metrics     types.SessionMetrics
	dialTimeout time.Duration
	onState     func(from, to types.ConnectionState)
	onLost      func(sess *Session, err error)

	mu      sync.Mutex
	state   types.ConnectionState
	current *Session
	dialing bool
}

// New creates a supervisor over transport.
func New(transport types.Transport, opts ...Option) *Supervisor {
	s := &Supervisor{
		transport: transport,
		state:     types.ConnectionDisconnected,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.NewNop()
	}
	if s.metrics == nil {
		s.metrics = metrics.NewNop()
	}

	return s
}

// Connect establishes one session.
//
// Parameters:
//   - ctx: Context for the dial
//
// Returns:
//   - *Session: The live session
//   - error: ErrDuplicateSession if a session is alive or being dialed,
//     *types.ConnectionError if the transport could not open one
func (s *Supervisor) Connect(ctx context.Context) (*Session, error) {
	s.mu.Lock()
	if s.current != nil || s.dialing {
		s.mu.Unlock()
		return nil, types.ErrDuplicateSession
	}
	s.dialing = true
	from := s.state
	s.state = types.ConnectionConnecting
	s.mu.Unlock()
	s.notify(from, types.ConnectionConnecting)

	sess := &Session{id: uuid.NewString()}

	dialCtx := ctx
	if s.dialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, s.dialTimeout)
		defer cancel()
	}

	start := time.Now()
	conn, err := s.transport.Dial(dialCtx, func(lostErr error) {
		s.handleLost(sess, lostErr)
	})
	if err == nil {
		sess.conn = conn
		sess.createdAt = time.Now()
		if !s.finishDial(sess) {
			// Dropped between the handshake and our return.
			_ = conn.Close()
			err = errDroppedDuringConnect
		}
	} else {
		s.finishDial(nil)
	}

	if err != nil {
		s.metrics.RecordConnectAttempt(false, time.Since(start).Seconds())
		s.logger.Warn("connect failed", "error", err)

		var connErr *types.ConnectionError
		if errors.As(err, &connErr) {
			return nil, err
		}

		return nil, &types.ConnectionError{Op: "connect", Cause: err}
	}

	s.metrics.RecordConnectAttempt(true, time.Since(start).Seconds())
	s.logger.Info("session established", "session", sess.id)

	return sess, nil
}

// Disconnect tears the session down. Every live subscription is released by the
// transport as a side effect.
//
// Returns:
//   - error: ErrNotConnected if sess was already released (including after a loss),
//     ErrUnknownSession if sess belongs to another supervisor, or the close error
func (s *Supervisor) Disconnect(sess *Session) error {
	if sess == nil {
		return types.ErrNotConnected
	}

	s.mu.Lock()
	if s.current != sess {
		s.mu.Unlock()
		if !sess.Alive() {
			return types.ErrNotConnected
		}

		return types.ErrUnknownSession
	}
	s.current = nil
	sess.dead.Store(true)
	from := s.state
	s.state = types.ConnectionDisconnected
	s.mu.Unlock()

	err := sess.conn.Close()
	s.notify(from, types.ConnectionDisconnected)
	s.logger.Info("session closed", "session", sess.id)

	if err != nil {
		return fmt.Errorf("close session: %w", err)
	}

	return nil
}

// Current returns the live session, or nil.
func (s *Supervisor) Current() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.current
}

// State returns the current connection state.
func (s *Supervisor) State() types.ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// finishDial publishes the outcome of a dial. It reports false when sess is nil or
// was lost before it could become current.
func (s *Supervisor) finishDial(sess *Session) bool {
	s.mu.Lock()
	s.dialing = false
	from := s.state
	ok := sess != nil && !sess.dead.Load()
	if ok {
		s.current = sess
		s.state = types.ConnectionConnected
	} else {
		s.state = types.ConnectionDisconnected
	}
	to := s.state
	s.mu.Unlock()

	s.notify(from, to)

	return ok
}

func (s *Supervisor) handleLost(sess *Session, err error) {
	if !sess.dead.CompareAndSwap(false, true) {
		return
	}

	s.mu.Lock()
	if s.current != sess {
		// Still dialing: Connect observes the dead flag and fails.
		s.mu.Unlock()
		return
	}
	s.current = nil
	from := s.state
	s.state = types.ConnectionLost
	s.mu.Unlock()

	_ = sess.conn.Close()
	s.notify(from, types.ConnectionLost)
	s.logger.Warn("session lost", "session", sess.id, "error", err)

	if s.onLost != nil {
		s.onLost(sess, &types.ConnectionError{Op: "lost", Cause: err})
	}
}

func (s *Supervisor) notify(from, to types.ConnectionState) {
	if from == to {
		return
	}
	s.metrics.RecordConnectionTransition(from, to)
	if s.onState != nil {
		s.onState(from, to)
	}
}
