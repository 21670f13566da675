package main

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/apandit646/droploc"
	"github.com/apandit646/droploc/internal/logging"
	"github.com/stretchr/testify/require"
)

func TestBackoff_BoundsAndReset(t *testing.T) {
	base := 20 * time.Millisecond
	limit := 100 * time.Millisecond
	b := newBackoff(base, limit, 42)

	require.Equal(t, base, b.Next())
	for i := 0; i < 20; i++ {
		d := b.Next()
		require.GreaterOrEqual(t, d, base)
		require.LessOrEqual(t, d, limit)
	}

	b.Reset()
	require.Equal(t, base, b.Next())
}

func TestBackoff_LimitBelowBase(t *testing.T) {
	b := newBackoff(time.Second, 100*time.Millisecond, 7)
	require.Equal(t, 100*time.Millisecond, b.Next())
	require.Equal(t, 100*time.Millisecond, b.Next())
}

func TestBackoff_SeededSequenceRepeats(t *testing.T) {
	a := newBackoff(10*time.Millisecond, time.Second, 99)
	b := newBackoff(10*time.Millisecond, time.Second, 99)
	for i := 0; i < 10; i++ {
		require.Equal(t, a.Next(), b.Next())
	}
}

type flakyDialer struct {
	states   chan droploc.ConnectionState
	failures int32
	calls    atomic.Int32
	result   error
}

func (f *flakyDialer) Connect(context.Context) error {
	n := f.calls.Add(1)
	if n <= f.failures {
		return droploc.ErrConnection
	}

	return f.result
}

func (f *flakyDialer) SubscribeConnection() (<-chan droploc.ConnectionState, func()) {
	return f.states, func() {}
}

func TestReconnector_RetriesAfterLoss(t *testing.T) {
	f := &flakyDialer{states: make(chan droploc.ConnectionState, 4), failures: 2}
	logger := logging.NewRecorder()
	r := &reconnector{
		eng:     f,
		backoff: newBackoff(time.Millisecond, 5*time.Millisecond, 1),
		timeout: time.Second,
		logger:  logger,
	}

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	f.states <- droploc.ConnectionConnected
	f.states <- droploc.ConnectionLost

	require.Eventually(t, func() bool {
		return logger.Count("INFO", "session restored") == 1
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, int32(3), f.calls.Load())
	require.Equal(t, 2, logger.Count("WARN", "reconnect failed"))

	cancel()
	<-done
}

func TestReconnector_StopsWhenEngineStopped(t *testing.T) {
	f := &flakyDialer{states: make(chan droploc.ConnectionState, 1), result: droploc.ErrEngineStopped}
	r := &reconnector{
		eng:     f,
		backoff: newBackoff(time.Millisecond, time.Millisecond, 1),
		timeout: time.Second,
		logger:  logging.NewNop(),
	}

	f.states <- droploc.ConnectionLost
	close(f.states)
	r.Run(t.Context())

	require.Equal(t, int32(1), f.calls.Load())
}

func TestReconnector_IgnoresOtherStates(t *testing.T) {
	f := &flakyDialer{states: make(chan droploc.ConnectionState, 3), result: errors.New("unexpected")}
	r := &reconnector{eng: f, backoff: newBackoff(time.Millisecond, time.Millisecond, 1), timeout: time.Second, logger: logging.NewNop()}

	f.states <- droploc.ConnectionConnecting
	f.states <- droploc.ConnectionDisconnected
	close(f.states)
	r.Run(t.Context())

	require.Zero(t, f.calls.Load())
}
