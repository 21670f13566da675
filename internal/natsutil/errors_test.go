package natsutil

import (
	"errors"
	"fmt"
	"testing"

	"github.com/apandit646/droploc/types"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"
)

func TestIsConnectivityError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"no servers", nats.ErrNoServers, true},
		{"wrapped closed", fmt.Errorf("publish: %w", nats.ErrConnectionClosed), true},
		{"timeout", nats.ErrTimeout, true},
		{"refused text", errors.New("dial tcp 127.0.0.1:4222: connect: connection refused"), true},
		{"connection sentinel", &types.ConnectionError{Op: "lost"}, true},
		{"bad subject", nats.ErrBadSubject, false},
		{"unrelated", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, IsConnectivityError(tt.err))
		})
	}
}

func TestClassify(t *testing.T) {
	require.NoError(t, Classify("publish", nil))

	err := Classify("publish", nats.ErrConnectionClosed)
	var connErr *types.ConnectionError
	require.ErrorAs(t, err, &connErr)
	require.Equal(t, "publish", connErr.Op)
	require.ErrorIs(t, err, nats.ErrConnectionClosed)

	already := &types.ConnectionError{Op: "connect"}
	require.Same(t, already, Classify("subscribe", already))

	plain := nats.ErrBadSubject
	require.Equal(t, plain, Classify("subscribe", plain))
}
