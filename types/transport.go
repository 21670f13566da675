package types

import "context"

// MessageHandler receives one inbound text message.
//
// Handlers are invoked on the transport's delivery goroutine and must not block.
type MessageHandler func(topic string, payload []byte)

// Transport opens publish/subscribe sessions.
//
// Implementations: transport/natstransport (NATS core) and transport/stomp (STOMP over
// WebSocket). The transport library itself is treated as an external collaborator;
// this interface is the narrow surface the engine depends on.
type Transport interface {
	// Dial opens one session.
	//
	// Parameters:
	//   - ctx: Context for the dial timeout
	//   - onLost: Invoked at most once if the session drops without Close; may be nil
	//
	// Returns:
	//   - Conn: Live session
	//   - error: Dial failure
	Dial(ctx context.Context, onLost func(err error)) (Conn, error)
}

// Conn is a live transport session.
type Conn interface {
	// Subscribe attaches a handler to a topic.
	Subscribe(topic string, handler MessageHandler) (Subscription, error)

	// Publish sends one text message to a topic.
	Publish(ctx context.Context, topic string, payload []byte) error

	// Close tears the session down. Every live subscription is released as a side
	// effect; callers need not unsubscribe first. Close is idempotent.
	Close() error
}

// Subscription is the cancelable handle for one subscribed topic.
type Subscription interface {
	// Topic returns the subscribed topic.
	Topic() string

	// Unsubscribe stops delivery. Calling it more than once is a no-op.
	Unsubscribe() error
}
