// Copyright (c) 2026 AegisLabs.
// Please see LICENSE for details.

package internal

import (
	"errors"
	"strings"
)

// Bucket names
const (
	BucketSessions = "sessions"
	BucketSystem   = "system"
)

// System keys
const (
	KeySchemaVersion = "schema_version"
	KeyLatestAccount = "latest_account"
)

// SchemaVersion is the current on-disk schema version.
const SchemaVersion = "1"

// ValidateAccountID checks that an account id is usable as a bucket key.
func ValidateAccountID(accountID string) error {
	if accountID == "" {
		return errors.New("account id cannot be empty")
	}
	if strings.ContainsAny(accountID, " \t\n") {
		return errors.New("account id cannot contain whitespace")
	}
	if len(accountID) > 128 {
		return errors.New("account id too long")
	}
	return nil
}
