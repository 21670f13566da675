package types

// CredentialStore exposes the auth token and actor identity read from the device's
// secure store. The engine only reads from it.
type CredentialStore interface {
	// Token returns the auth token and whether one is currently available.
	Token() (string, bool)

	// ActorID returns the actor identity used in per-actor topics (the account email
	// in the reference backend) and whether it is available.
	ActorID() (string, bool)
}
