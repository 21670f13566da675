package droploc

import "github.com/apandit646/droploc/types"

// Sentinel errors returned by the Engine. They alias the types package so that
// errors.Is works across package boundaries.
var (
	ErrInvalidConfig       = types.ErrInvalidConfig
	ErrTransportRequired   = types.ErrTransportRequired
	ErrResolverRequired    = types.ErrResolverRequired
	ErrCredentialsRequired = types.ErrCredentialsRequired
	ErrAlreadyStarted      = types.ErrAlreadyStarted
	ErrNotStarted          = types.ErrNotStarted
	ErrEngineStopped       = types.ErrEngineStopped
)

// Session errors.
var (
	ErrConnection       = types.ErrConnection
	ErrDuplicateSession = types.ErrDuplicateSession
	ErrNotConnected     = types.ErrNotConnected
	ErrUnknownSession   = types.ErrUnknownSession
)

// Absorbed errors. These reach Hooks.OnError, never a return value.
var (
	ErrLookupFailed       = types.ErrLookupFailed
	ErrMalformedMessage   = types.ErrMalformedMessage
	ErrPreconditionNotMet = types.ErrPreconditionNotMet
)

// Notification and ride request errors.
var (
	ErrUnknownRequest    = types.ErrUnknownRequest
	ErrNothingDisplayed  = types.ErrNothingDisplayed
	ErrRideRequestFailed = types.ErrRideRequestFailed
	ErrNoDestination     = types.ErrNoDestination
	ErrRequestInProgress = types.ErrRequestInProgress
)
