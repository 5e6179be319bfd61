// Copyright (c) 2026 AegisLabs.
// Please see LICENSE for details.

package db

import (
	"github.com/AegisLabs/aegis/aegis"
)

// ClientStore adapts a Store to the client's SessionStore interface,
// translating between live sessions and stored records.
type ClientStore struct {
	store Store
}

// NewClientStore wraps a Store for use with aegis.WithSessionStore.
func NewClientStore(store Store) *ClientStore {
	return &ClientStore{store: store}
}

// Save persists a live session.
func (c *ClientStore) Save(session *aegis.Session) error {
	if session == nil {
		return NewValidationError("session", nil, "session cannot be nil")
	}
	return c.store.Save(&SessionRecord{
		AccountID:        session.AccountID,
		DisplayName:      session.DisplayName,
		AccessToken:      session.AccessToken,
		AccessExpiresAt:  session.AccessExpiresAt,
		RefreshToken:     session.RefreshToken,
		RefreshExpiresAt: session.RefreshExpiresAt,
	})
}

// Latest returns the most recently saved session.
func (c *ClientStore) Latest() (*aegis.Session, error) {
	record, err := c.store.Latest()
	if err != nil {
		return nil, err
	}
	return &aegis.Session{
		AccountID:        record.AccountID,
		DisplayName:      record.DisplayName,
		AccessToken:      record.AccessToken,
		AccessExpiresAt:  record.AccessExpiresAt,
		RefreshToken:     record.RefreshToken,
		RefreshExpiresAt: record.RefreshExpiresAt,
	}, nil
}

// Delete removes the persisted session for an account.
func (c *ClientStore) Delete(accountID string) error {
	return c.store.Delete(accountID)
}

var _ aegis.SessionStore = (*ClientStore)(nil)
