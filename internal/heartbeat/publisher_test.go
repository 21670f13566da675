package heartbeat

import (
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/apandit646/droploc/internal/codec"
	droploctest "github.com/apandit646/droploc/testing"
	"github.com/apandit646/droploc/types"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const topic = "app/update-location"

type tokenStore struct {
	mu    sync.Mutex
	token string
}

func (s *tokenStore) Token() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.token, s.token != ""
}

func (s *tokenStore) ActorID() (string, bool) {
	return "rider@example.com", true
}

func (s *tokenStore) set(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

type outcomeCounter struct {
	mu       sync.Mutex
	outcomes map[string]int
}

func (c *outcomeCounter) RecordHeartbeat(outcome string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.outcomes == nil {
		c.outcomes = make(map[string]int)
	}
	c.outcomes[outcome]++
}

func (c *outcomeCounter) count(outcome string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.outcomes[outcome]
}

// warnRecorder keeps Warn messages and forwards everything to the test log.
type warnRecorder struct {
	types.Logger
	mu    sync.Mutex
	warns []string
}

func (l *warnRecorder) Warn(msg string, keysAndValues ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
	l.Logger.Warn(msg, keysAndValues...)
}

func (l *warnRecorder) messages() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]string(nil), l.warns...)
}

func connected(t *testing.T, broker *droploctest.MemoryBroker) SnapshotFunc {
	t.Helper()

	conn, err := broker.Dial(t.Context(), nil)
	require.NoError(t, err)

	pos := types.Position{Latitude: 37.78825, Longitude: -122.4324}

	return func() Snapshot {
		return Snapshot{Conn: conn, Position: pos, HasPosition: true}
	}
}

func TestPublisher_Tick(t *testing.T) {
	t.Run("publishes token and position", func(t *testing.T) {
		broker := droploctest.NewMemoryBroker()
		counter := &outcomeCounter{}
		p := New(topic, time.Second, connected(t, broker), &tokenStore{token: "tok"}, WithMetrics(counter))

		require.NoError(t, p.Tick(t.Context()))

		msgs := broker.Published(topic)
		require.Len(t, msgs, 1)
		update, err := codec.DecodeLocationUpdate(msgs[0])
		require.NoError(t, err)
		require.Equal(t, "tok", update.Token)
		require.InDelta(t, 37.78825, update.Location.Latitude, 1e-9)
		require.Equal(t, 1, counter.count(OutcomePublished))
	})

	t.Run("skips without session, position or token", func(t *testing.T) {
		counter := &outcomeCounter{}
		logs := droploctest.NewTestLogger(t)
		p := New(topic, time.Second, func() Snapshot { return Snapshot{} }, &tokenStore{},
			WithMetrics(counter), WithLogger(logs))

		err := p.Tick(t.Context())
		require.ErrorIs(t, err, types.ErrPreconditionNotMet)

		var pre *types.PreconditionError
		require.ErrorAs(t, err, &pre)
		require.Equal(t, []string{"session", "position", "token"}, pre.Missing)
		require.Equal(t, 1, counter.count(OutcomeSkipped))
		require.True(t, types.IsTransient(err))
	})

	t.Run("reports publish failure", func(t *testing.T) {
		broker := droploctest.NewMemoryBroker()
		counter := &outcomeCounter{}
		p := New(topic, time.Second, connected(t, broker), &tokenStore{token: "tok"}, WithMetrics(counter))

		boom := errors.New("write: broken pipe")
		broker.FailPublish(boom)

		require.ErrorIs(t, p.Tick(t.Context()), boom)
		require.Equal(t, 1, counter.count(OutcomeFailed))
	})

	t.Run("logs unencodable position", func(t *testing.T) {
		broker := droploctest.NewMemoryBroker()
		conn, err := broker.Dial(t.Context(), nil)
		require.NoError(t, err)

		counter := &outcomeCounter{}
		logs := &warnRecorder{Logger: droploctest.NewTestLogger(t)}
		snapshot := func() Snapshot {
			return Snapshot{Conn: conn, Position: types.Position{Latitude: math.NaN(), Longitude: 1}, HasPosition: true}
		}
		p := New(topic, time.Second, snapshot, &tokenStore{token: "tok"}, WithMetrics(counter), WithLogger(logs))

		require.Error(t, p.Tick(t.Context()))
		require.Equal(t, 1, counter.count(OutcomeFailed))
		require.Equal(t, []string{"heartbeat encode failed"}, logs.messages())
		require.Empty(t, broker.Published(topic))
	})
}

func TestPublisher_StartPublishesImmediately(t *testing.T) {
	defer goleak.VerifyNone(t)

	broker := droploctest.NewMemoryBroker()
	p := New(topic, time.Hour, connected(t, broker), &tokenStore{token: "tok"})

	require.NoError(t, p.Start(t.Context()))
	require.True(t, p.IsStarted())

	require.Eventually(t, func() bool {
		return broker.PublishCount(topic) == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, p.Stop())
	require.False(t, p.IsStarted())
}

func TestPublisher_Lifecycle(t *testing.T) {
	defer goleak.VerifyNone(t)

	broker := droploctest.NewMemoryBroker()
	p := New(topic, 20*time.Millisecond, connected(t, broker), &tokenStore{token: "tok"})

	require.ErrorIs(t, p.Stop(), types.ErrHeartbeatNotStarted)
	require.NoError(t, p.Start(t.Context()))
	require.ErrorIs(t, p.Start(t.Context()), types.ErrHeartbeatAlreadyStarted)

	require.Eventually(t, func() bool {
		return broker.PublishCount(topic) >= 3
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, p.Stop())
	stopped := broker.PublishCount(topic)
	time.Sleep(60 * time.Millisecond)
	require.Equal(t, stopped, broker.PublishCount(topic), "no tick may run after Stop")

	// Restartable after Stop.
	require.NoError(t, p.Start(t.Context()))
	require.Eventually(t, func() bool {
		return broker.PublishCount(topic) > stopped
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, p.Stop())
}

func TestPublisher_TokenDisappearsMidRun(t *testing.T) {
	defer goleak.VerifyNone(t)

	broker := droploctest.NewMemoryBroker()
	creds := &tokenStore{token: "tok"}
	counter := &outcomeCounter{}
	p := New(topic, 15*time.Millisecond, connected(t, broker), creds, WithMetrics(counter))

	require.NoError(t, p.Start(t.Context()))
	require.Eventually(t, func() bool {
		return broker.PublishCount(topic) >= 2
	}, time.Second, 5*time.Millisecond)

	creds.set("")
	skippedBefore := counter.count(OutcomeSkipped)
	require.Eventually(t, func() bool {
		return counter.count(OutcomeSkipped) >= skippedBefore+3
	}, time.Second, 5*time.Millisecond)
	paused := broker.PublishCount(topic)
	require.Eventually(t, func() bool {
		return counter.count(OutcomeSkipped) >= skippedBefore+5
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, paused, broker.PublishCount(topic))

	creds.set("tok2")
	require.Eventually(t, func() bool {
		return broker.PublishCount(topic) > paused
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, p.Stop())
}
