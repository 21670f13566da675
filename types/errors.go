package types

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the droploc library.
//
// These errors provide type-safe error checking using errors.Is() and errors.As().
// All components use these sentinels for known error conditions and wrap external
// errors with context using fmt.Errorf("%s: %w", msg, err).
//
// Propagation policy:
//   - ErrConnection is fatal to the current session and surfaces to the caller
//   - ErrLookupFailed, ErrMalformedMessage and ErrPreconditionNotMet are absorbed at
//     the component boundary; they reach Hooks.OnError and metrics, never the caller
//   - ErrDuplicateSession is a programming error

// Engine errors - Public API errors returned by Engine.
var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrTransportRequired is returned when the transport is nil.
	ErrTransportRequired = errors.New("transport is required")

	// ErrResolverRequired is returned when the cell source needs a resolver and none was given.
	ErrResolverRequired = errors.New("cell resolver is required")

	// ErrCredentialsRequired is returned when the credential store is nil.
	ErrCredentialsRequired = errors.New("credential store is required")

	// ErrAlreadyStarted is returned when Start is called on a running engine.
	ErrAlreadyStarted = errors.New("engine already started")

	// ErrNotStarted is returned when operations require a started engine.
	ErrNotStarted = errors.New("engine not started")

	// ErrEngineStopped is returned when an operation races with Stop.
	ErrEngineStopped = errors.New("engine stopped")
)

// Session errors - ConnectionSupervisor.
var (
	// ErrConnection indicates the transport session could not be opened or was lost.
	// Recoverable by a fresh Connect.
	ErrConnection = errors.New("connection error")

	// ErrDuplicateSession is returned when a second session is created without
	// disconnecting the first.
	ErrDuplicateSession = errors.New("a session is already active")

	// ErrNotConnected is returned when an operation requires a live session.
	ErrNotConnected = errors.New("not connected")

	// ErrUnknownSession is returned when Disconnect receives a session the
	// supervisor does not own.
	ErrUnknownSession = errors.New("session is not owned by this supervisor")
)

// Resolver and message errors - GeoCellResolver and CellSubscriptionManager.
var (
	// ErrLookupFailed is a transient cell-address lookup failure, retried on the next sample.
	ErrLookupFailed = errors.New("cell lookup failed")

	// ErrMalformedMessage is returned when an inbound payload cannot be parsed.
	ErrMalformedMessage = errors.New("malformed message")
)

// Heartbeat errors - LocationHeartbeat.
var (
	// ErrPreconditionNotMet is returned when a publish is skipped because the session,
	// position or auth token is unavailable.
	ErrPreconditionNotMet = errors.New("precondition not met")

	// ErrHeartbeatAlreadyStarted is returned when Start is called on a running heartbeat.
	ErrHeartbeatAlreadyStarted = errors.New("heartbeat already started")

	// ErrHeartbeatNotStarted is returned when Stop is called on an idle heartbeat.
	ErrHeartbeatNotStarted = errors.New("heartbeat not started")
)

// Notification queue errors - NotificationQueue.
var (
	// ErrUnknownRequest is returned when accept/decline names a request that is not
	// currently displayed.
	ErrUnknownRequest = errors.New("request is not the displayed notification")

	// ErrNothingDisplayed is returned when accept/decline is called while Idle.
	ErrNothingDisplayed = errors.New("no notification is displayed")
)

// Ride request errors - rideapi.
var (
	// ErrRideRequestFailed is returned when the ride-request POST fails.
	ErrRideRequestFailed = errors.New("ride request failed")

	// ErrNoDestination is returned when a ride is requested without a destination.
	ErrNoDestination = errors.New("destination is required")

	// ErrRequestInProgress is returned when a provider already has an outstanding request.
	ErrRequestInProgress = errors.New("ride request already in progress")
)

// ConnectionError carries the cause of a failed or lost session.
type ConnectionError struct {
	// Op is the operation that failed ("connect", "subscribe", "publish", "lost").
	Op string

	// Cause is the underlying transport error.
	Cause error
}

// Error implements error.
func (e *ConnectionError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("connection error during %s", e.Op)
	}

	return fmt.Sprintf("connection error during %s: %v", e.Op, e.Cause)
}

// Unwrap exposes both the sentinel and the cause to errors.Is.
func (e *ConnectionError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrConnection}
	}

	return []error{ErrConnection, e.Cause}
}

// MalformedMessageError describes a dropped inbound payload.
type MalformedMessageError struct {
	// Topic the payload arrived on.
	Topic string

	// Cause is the decoding error.
	Cause error
}

// Error implements error.
func (e *MalformedMessageError) Error() string {
	return fmt.Sprintf("malformed message on %s: %v", e.Topic, e.Cause)
}

// Unwrap exposes both the sentinel and the cause to errors.Is.
func (e *MalformedMessageError) Unwrap() []error {
	return []error{ErrMalformedMessage, e.Cause}
}

// PreconditionError lists the heartbeat preconditions that were missing.
type PreconditionError struct {
	// Missing names the absent inputs ("session", "position", "token").
	Missing []string
}

// Error implements error.
func (e *PreconditionError) Error() string {
	return fmt.Sprintf("precondition not met: missing %s", strings.Join(e.Missing, ", "))
}

// Unwrap returns ErrPreconditionNotMet.
func (e *PreconditionError) Unwrap() error {
	return ErrPreconditionNotMet
}

// IsTransient reports whether an error is absorbed at the component boundary rather
// than surfaced to the caller.
//
// Parameters:
//   - err: The error to classify
//
// Returns:
//   - bool: true for lookup, malformed-message and precondition errors
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	return errors.Is(err, ErrLookupFailed) ||
		errors.Is(err, ErrMalformedMessage) ||
		errors.Is(err, ErrPreconditionNotMet)
}
