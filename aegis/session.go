// Copyright (c) 2026 AegisLabs.
// Please see LICENSE for details.

package aegis

import (
	"sync/atomic"
	"time"
)

// Session is the credential set for an authenticated account. Sessions are
// immutable once committed to the store: a rotation builds a new Session
// and swaps it in whole, it never mutates the current one. AccountID is
// stable across rotations.
type Session struct {
	AccountID        string    `json:"account_id"`
	DisplayName      string    `json:"display_name,omitempty"`
	AccessToken      string    `json:"access_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// BearerHeader returns the Authorization header value for this session.
func (s *Session) BearerHeader() string {
	return "bearer " + s.AccessToken
}

// AccessExpiresIn returns the time remaining until the access token
// expires. Negative when already expired.
func (s *Session) AccessExpiresIn() time.Duration {
	return time.Until(s.AccessExpiresAt)
}

// sessionStore holds the current session behind an atomically swapped
// pointer. Readers on arbitrary goroutines (the request signer, the chat
// transport) always observe either the fully-old or fully-new session,
// never a mix, and never contend with the scheduler's writer.
type sessionStore struct {
	current atomic.Pointer[Session]
}

// Current returns the latest committed session, or ErrNotAuthenticated if
// called before the initial login. Never blocks.
func (st *sessionStore) Current() (*Session, error) {
	s := st.current.Load()
	if s == nil {
		return nil, ErrNotAuthenticated
	}
	return s, nil
}

// Peek returns the latest committed session or nil. Used on hot paths
// where absence is an expected pass-through condition rather than an error.
func (st *sessionStore) Peek() *Session {
	return st.current.Load()
}

// Swap atomically replaces the current session. The new session is visible
// to all readers immediately, with no partial-state window.
func (st *sessionStore) Swap(s *Session) {
	st.current.Store(s)
}
