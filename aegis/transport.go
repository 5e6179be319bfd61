// Copyright (c) 2026 AegisLabs.
// Please see LICENSE for details.

package aegis

// Transport is the persistent chat/presence connection managed by the
// client around credential rotation and shutdown. The core calls these
// methods only at those lifecycle points; everything else (messaging,
// presence subscriptions) is the transport's own business.
type Transport interface {
	// Connect establishes the connection using the given credentials.
	Connect(accountID, accessToken string) error

	// Disconnect tears down the connection but leaves the transport
	// reusable for a subsequent Connect with fresh credentials.
	Disconnect() error

	// Close releases the transport permanently.
	Close() error
}

// SessionStore persists sessions across process restarts so a later
// construction can resume with the refresh-token grant instead of full
// credentials. Implemented by the db package.
type SessionStore interface {
	// Save persists a session, replacing any previous session for the
	// same account.
	Save(session *Session) error

	// Latest returns the most recently saved session.
	Latest() (*Session, error)

	// Delete removes the persisted session for an account.
	Delete(accountID string) error
}
