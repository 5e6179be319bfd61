// Copyright (c) 2026 AegisLabs.
// Please see LICENSE for details.

package db

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/AegisLabs/aegis/db/internal"
)

// Save persists a session record, replacing any previous record for the
// same account, and marks the account as the most recently active one.
func (d *DB) Save(record *SessionRecord) error {
	if err := d.checkClosed(); err != nil {
		return err
	}

	if record == nil {
		return NewValidationError("record", nil, "session record cannot be nil")
	}
	if err := internal.ValidateAccountID(record.AccountID); err != nil {
		return NewValidationError("account_id", record.AccountID, err.Error())
	}
	if record.RefreshToken == "" {
		return NewValidationError("refresh_token", "", "refresh token cannot be empty")
	}

	record.SavedAt = time.Now()

	err := d.db.Update(func(tx *bbolt.Tx) error {
		sessionsBucket := tx.Bucket([]byte(internal.BucketSessions))
		if sessionsBucket == nil {
			return NewStoreError("save_session", fmt.Errorf("sessions bucket not found"))
		}

		recordBytes, err := json.Marshal(record)
		if err != nil {
			return NewStoreErrorWithAccount("save_session",
				fmt.Errorf("failed to marshal session: %w", err), record.AccountID)
		}

		if err := sessionsBucket.Put([]byte(record.AccountID), recordBytes); err != nil {
			return NewStoreErrorWithAccount("save_session",
				fmt.Errorf("failed to store session: %w", err), record.AccountID)
		}

		systemBucket := tx.Bucket([]byte(internal.BucketSystem))
		if systemBucket == nil {
			return NewStoreError("save_session", fmt.Errorf("system bucket not found"))
		}
		if err := systemBucket.Put([]byte(internal.KeyLatestAccount), []byte(record.AccountID)); err != nil {
			return NewStoreErrorWithAccount("save_session",
				fmt.Errorf("failed to update latest pointer: %w", err), record.AccountID)
		}

		return nil
	})

	if err != nil {
		return err
	}

	d.logger.Debugf("Saved session for account %s", record.AccountID)
	return nil
}

// Get retrieves the stored session for an account.
func (d *DB) Get(accountID string) (*SessionRecord, error) {
	if err := d.checkClosed(); err != nil {
		return nil, err
	}

	if err := internal.ValidateAccountID(accountID); err != nil {
		return nil, NewValidationError("account_id", accountID, err.Error())
	}

	var record *SessionRecord

	err := d.db.View(func(tx *bbolt.Tx) error {
		sessionsBucket := tx.Bucket([]byte(internal.BucketSessions))
		if sessionsBucket == nil {
			return NewStoreError("get_session", fmt.Errorf("sessions bucket not found"))
		}

		recordBytes := sessionsBucket.Get([]byte(accountID))
		if recordBytes == nil {
			return NewStoreErrorWithAccount("get_session", ErrSessionNotFound, accountID)
		}

		record = &SessionRecord{}
		if err := json.Unmarshal(recordBytes, record); err != nil {
			return NewStoreErrorWithAccount("get_session",
				fmt.Errorf("failed to unmarshal session: %w", err), accountID)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}
	return record, nil
}

// Latest returns the session of the most recently saved account.
func (d *DB) Latest() (*SessionRecord, error) {
	if err := d.checkClosed(); err != nil {
		return nil, err
	}

	var accountID string

	err := d.db.View(func(tx *bbolt.Tx) error {
		systemBucket := tx.Bucket([]byte(internal.BucketSystem))
		if systemBucket == nil {
			return NewStoreError("latest_session", fmt.Errorf("system bucket not found"))
		}

		latest := systemBucket.Get([]byte(internal.KeyLatestAccount))
		if latest == nil {
			return NewStoreError("latest_session", ErrSessionNotFound)
		}
		accountID = string(latest)
		return nil
	})

	if err != nil {
		return nil, err
	}

	return d.Get(accountID)
}

// Delete removes the stored session for an account. Deleting the most
// recently active account also clears the latest pointer.
func (d *DB) Delete(accountID string) error {
	if err := d.checkClosed(); err != nil {
		return err
	}

	if err := internal.ValidateAccountID(accountID); err != nil {
		return NewValidationError("account_id", accountID, err.Error())
	}

	err := d.db.Update(func(tx *bbolt.Tx) error {
		sessionsBucket := tx.Bucket([]byte(internal.BucketSessions))
		if sessionsBucket == nil {
			return NewStoreError("delete_session", fmt.Errorf("sessions bucket not found"))
		}

		if sessionsBucket.Get([]byte(accountID)) == nil {
			return NewStoreErrorWithAccount("delete_session", ErrSessionNotFound, accountID)
		}

		if err := sessionsBucket.Delete([]byte(accountID)); err != nil {
			return NewStoreErrorWithAccount("delete_session",
				fmt.Errorf("failed to delete session: %w", err), accountID)
		}

		systemBucket := tx.Bucket([]byte(internal.BucketSystem))
		if systemBucket == nil {
			return NewStoreError("delete_session", fmt.Errorf("system bucket not found"))
		}
		if string(systemBucket.Get([]byte(internal.KeyLatestAccount))) == accountID {
			if err := systemBucket.Delete([]byte(internal.KeyLatestAccount)); err != nil {
				return NewStoreErrorWithAccount("delete_session",
					fmt.Errorf("failed to clear latest pointer: %w", err), accountID)
			}
		}

		return nil
	})

	if err != nil {
		return err
	}

	d.logger.Infof("Deleted session for account %s", accountID)
	return nil
}

// List returns all stored session records.
func (d *DB) List() ([]SessionRecord, error) {
	if err := d.checkClosed(); err != nil {
		return nil, err
	}

	var records []SessionRecord

	err := d.db.View(func(tx *bbolt.Tx) error {
		sessionsBucket := tx.Bucket([]byte(internal.BucketSessions))
		if sessionsBucket == nil {
			return NewStoreError("list_sessions", fmt.Errorf("sessions bucket not found"))
		}

		return sessionsBucket.ForEach(func(k, v []byte) error {
			var record SessionRecord
			if err := json.Unmarshal(v, &record); err != nil {
				d.logger.Warningf("Failed to unmarshal session for account %s: %v", string(k), err)
				return nil // Continue iteration
			}
			records = append(records, record)
			return nil
		})
	})

	if err != nil {
		return nil, err
	}
	return records, nil
}
