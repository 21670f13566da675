// Package natsutil holds NATS-specific helpers shared by the NATS transport and its tests.
package natsutil

import (
	"errors"
	"strings"

	"github.com/apandit646/droploc/types"
	"github.com/nats-io/nats.go"
)

// IsConnectivityError checks if an error is caused by connectivity issues.
//
// This includes NATS timeouts, connection refused, disconnections, etc.
// Used to decide whether a failed operation means the session is gone.
//
// Kept in internal/natsutil to avoid importing NATS dependencies in types/ package.
//
// Parameters:
//   - err: Error to check
//
// Returns:
//   - bool: true if error indicates connectivity issue
func IsConnectivityError(err error) bool {
	if err == nil {
		return false
	}

	return errors.Is(err, types.ErrConnection) ||
		errors.Is(err, nats.ErrTimeout) ||
		errors.Is(err, nats.ErrNoServers) ||
		errors.Is(err, nats.ErrDisconnected) ||
		errors.Is(err, nats.ErrConnectionClosed) ||
		errors.Is(err, nats.ErrConnectionDraining) ||
		errors.Is(err, nats.ErrStaleConnection) ||
		strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "i/o timeout")
}

// Classify wraps connectivity errors in a *types.ConnectionError for op and returns
// other errors unchanged.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var connErr *types.ConnectionError
	if errors.As(err, &connErr) {
		return err
	}
	if IsConnectivityError(err) {
		return &types.ConnectionError{Op: op, Cause: err}
	}

	return err
}
