package droploc

import "github.com/apandit646/droploc/types"

// Re-export types from the types package.
//
// Internal packages depend on `types` rather than the root package, which keeps the
// import graph acyclic while users still write droploc.Position, droploc.Logger, etc.
type (
	Position         = types.Position
	CellAddress      = types.CellAddress
	Candidate        = types.Candidate
	RankedCandidate  = types.RankedCandidate
	Role             = types.Role
	Requester        = types.Requester
	RideRequestEvent = types.RideRequestEvent

	ConnectionState   = types.ConnectionState
	SubscriptionState = types.SubscriptionState
	QueueState        = types.QueueState
	Resolution        = types.Resolution

	ConnectionError       = types.ConnectionError
	MalformedMessageError = types.MalformedMessageError
	PreconditionError     = types.PreconditionError
)

// Re-export interfaces from the types package for convenience.
type (
	Transport        = types.Transport
	Conn             = types.Conn
	Subscription     = types.Subscription
	MessageHandler   = types.MessageHandler
	CredentialStore  = types.CredentialStore
	MetricsCollector = types.MetricsCollector
	Logger           = types.Logger
	Hooks            = types.Hooks
)

// Re-export state constants from the types package.
const (
	ConnectionDisconnected = types.ConnectionDisconnected
	ConnectionConnecting   = types.ConnectionConnecting
	ConnectionConnected    = types.ConnectionConnected
	ConnectionLost         = types.ConnectionLost

	Unsubscribed = types.Unsubscribed
	Subscribed   = types.Subscribed

	QueueIdle       = types.QueueIdle
	QueueDisplaying = types.QueueDisplaying
	QueueAdvancing  = types.QueueAdvancing

	ResolutionAccepted = types.ResolutionAccepted
	ResolutionDeclined = types.ResolutionDeclined
	ResolutionExpired  = types.ResolutionExpired

	RoleUnknown = types.RoleUnknown
	RoleRider   = types.RoleRider
	RoleDriver  = types.RoleDriver
)

// IsTransient reports whether err is absorbed at a component boundary.
func IsTransient(err error) bool {
	return types.IsTransient(err)
}
