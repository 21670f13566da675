// Package types provides core type definitions and interfaces for the droploc library.
//
// This package contains shared types that are used across multiple packages in the
// library. By keeping these types in a separate package, the internal components
// (session supervisor, cell subscription manager, heartbeat, notification queue) can
// depend on them without importing the root droploc package.
//
// Key types:
//   - Position, CellAddress: where the actor is and which partition it is in
//   - Candidate: another actor broadcast on the current cell's topic
//   - RideRequestEvent: an incoming ride request shown in the display slot
//   - Transport, Conn, Subscription: the publish/subscribe contract
//   - CredentialStore: read-only access to the auth token and actor identity
//   - Logger, MetricsCollector, Hooks: observability and callbacks
package types
