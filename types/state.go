package types

// ConnectionState represents the lifecycle of the transport session.
//
// States follow a defined progression:
//
//	ConnectionDisconnected → ConnectionConnecting → ConnectionConnected → ConnectionDisconnected
//
// A lost connection lands in ConnectionLost; re-establishing is a fresh Connect.
type ConnectionState int

const (
	// ConnectionDisconnected is the initial state and the state after a clean teardown.
	ConnectionDisconnected ConnectionState = iota

	// ConnectionConnecting indicates a Connect call is in flight.
	ConnectionConnecting

	// ConnectionConnected indicates a live session.
	ConnectionConnected

	// ConnectionLost indicates the transport dropped the session without a Disconnect.
	ConnectionLost
)

// String returns the string representation of the state.
func (s ConnectionState) String() string {
	switch s {
	case ConnectionDisconnected:
		return "Disconnected"
	case ConnectionConnecting:
		return "Connecting"
	case ConnectionConnected:
		return "Connected"
	case ConnectionLost:
		return "Lost"
	default:
		return "Unknown"
	}
}

// IsConnected reports whether the state carries a live session.
func (s ConnectionState) IsConnected() bool {
	return s == ConnectionConnected
}

// SubscriptionState is the state of the location-broadcast subscription.
type SubscriptionState int

const (
	// Unsubscribed means no location topic is live.
	Unsubscribed SubscriptionState = iota

	// Subscribed means exactly one location topic is live.
	Subscribed
)

// String returns the string representation of the state.
func (s SubscriptionState) String() string {
	switch s {
	case Unsubscribed:
		return "Unsubscribed"
	case Subscribed:
		return "Subscribed"
	default:
		return "Unknown"
	}
}

// QueueState is the state of the notification display slot.
//
//	QueueIdle → QueueDisplaying → (QueueAdvancing →) QueueDisplaying | QueueIdle
//
// QueueAdvancing is the short gap between tearing down one display and showing the next.
// The slot is never empty while the queue holds entries outside of that gap.
type QueueState int

const (
	// QueueIdle means nothing is displayed and nothing is pending.
	QueueIdle QueueState = iota

	// QueueDisplaying means a request occupies the display slot.
	QueueDisplaying

	// QueueAdvancing means the previous display was torn down and the next is being promoted.
	QueueAdvancing
)

// String returns the string representation of the state.
func (s QueueState) String() string {
	switch s {
	case QueueIdle:
		return "Idle"
	case QueueDisplaying:
		return "Displaying"
	case QueueAdvancing:
		return "Advancing"
	default:
		return "Unknown"
	}
}

// Resolution records how a displayed request left the queue.
type Resolution int

const (
	// ResolutionAccepted means the actor accepted the request.
	ResolutionAccepted Resolution = iota

	// ResolutionDeclined means the actor declined the request.
	ResolutionDeclined

	// ResolutionExpired means the display window elapsed without a decision.
	ResolutionExpired
)

// String returns the string representation of the resolution.
func (r Resolution) String() string {
	switch r {
	case ResolutionAccepted:
		return "accepted"
	case ResolutionDeclined:
		return "declined"
	case ResolutionExpired:
		return "expired"
	default:
		return "unknown"
	}
}
