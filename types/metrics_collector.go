package types

// MetricsCollector defines methods for recording operational metrics.
//
// Implementations should be non-blocking and handle failures gracefully.
// All methods are called from internal goroutines and must be thread-safe.
//
// This interface composes smaller, component-focused interfaces.
type MetricsCollector interface {
	SessionMetrics
	SubscriptionMetrics
	HeartbeatMetrics
	QueueMetrics
	LookupMetrics
}

// SessionMetrics defines metrics for the connection supervisor.
type SessionMetrics interface {
	// RecordConnectionTransition records a session state transition.
	RecordConnectionTransition(from, to ConnectionState)

	// RecordConnectAttempt records a connect attempt.
	//
	// Parameters:
	//   - success: true if the session was established
	//   - duration: Time taken in seconds
	RecordConnectAttempt(success bool, duration float64)
}

// SubscriptionMetrics defines metrics for the cell subscription manager.
type SubscriptionMetrics interface {
	// RecordCellChange records a move of the location subscription to a new cell.
	RecordCellChange()

	// RecordActiveSubscriptions sets the number of live location subscriptions (gauge).
	// Any value above 1 is an invariant violation.
	RecordActiveSubscriptions(count int)

	// RecordCandidateSnapshot records one delivered candidate snapshot.
	//
	// Parameters:
	//   - count: Number of candidates in the snapshot
	RecordCandidateSnapshot(count int)

	// RecordMalformedMessage records a dropped inbound payload.
	//
	// Parameters:
	//   - kind: Payload kind ("candidates", "notification", "cell")
	RecordMalformedMessage(kind string)
}

// HeartbeatMetrics defines metrics for location heartbeat publishing.
type HeartbeatMetrics interface {
	// RecordHeartbeat records one heartbeat tick outcome.
	//
	// Parameters:
	//   - outcome: "published", "skipped" or "failed"
	RecordHeartbeat(outcome string)
}

// QueueMetrics defines metrics for the notification queue.
type QueueMetrics interface {
	// RecordEnqueue records an accepted notification.
	RecordEnqueue()

	// RecordResolution records a terminal action on a displayed request.
	//
	// Parameters:
	//   - resolution: How the request left the queue
	//   - displayed: Seconds it spent in the display slot
	RecordResolution(resolution Resolution, displayed float64)

	// RecordQueueDepth sets the number of pending (not displayed) requests (gauge).
	RecordQueueDepth(depth int)
}

// LookupMetrics defines metrics for cell address resolution.
type LookupMetrics interface {
	// RecordLookup records one resolver call.
	//
	// Parameters:
	//   - success: true if an address was returned
	//   - cached: true if the answer came from the cache
	//   - duration: Time taken in seconds
	RecordLookup(success, cached bool, duration float64)
}
