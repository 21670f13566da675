package types

// Logger is the structured logger every droploc component writes to.
//
// Fields are passed as alternating keys and values, so zap.SugaredLogger and the
// slog adapter in internal/logging both satisfy it. Components never log through a
// package-level logger; they receive one through their options.
type Logger interface {
	// Debug is used for per-tick and per-message detail: skipped heartbeats,
	// superseded lookups, state transitions.
	Debug(msg string, keysAndValues ...any)

	// Info marks lifecycle events such as connect, cell changes and ride requests.
	Info(msg string, keysAndValues ...any)

	// Warn reports an absorbed failure: a lost session, a malformed payload, a
	// failed lookup.
	Warn(msg string, keysAndValues ...any)

	Error(msg string, keysAndValues ...any)

	// Fatal logs and exits the process. Library code never calls it.
	Fatal(msg string, keysAndValues ...any)
}
