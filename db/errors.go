// Copyright (c) 2026 AegisLabs.
// Please see LICENSE for details.

package db

import (
	"errors"
	"fmt"
)

// Base error types
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrStoreClosed     = errors.New("session store is closed")
)

// StoreError represents a store-specific error with context
type StoreError struct {
	Op        string // Operation that failed
	Err       error  // Underlying error
	AccountID string // Account context (if applicable)
}

func (e *StoreError) Error() string {
	if e.AccountID != "" {
		return fmt.Sprintf("db %s (account: %s): %v", e.Op, e.AccountID, e.Err)
	}
	return fmt.Sprintf("db %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// ValidationError represents a data validation error
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field '%s' (value: %v): %s", e.Field, e.Value, e.Message)
}

// NewStoreError creates a new StoreError
func NewStoreError(op string, err error) *StoreError {
	return &StoreError{Op: op, Err: err}
}

// NewStoreErrorWithAccount creates a new StoreError with account context
func NewStoreErrorWithAccount(op string, err error, accountID string) *StoreError {
	return &StoreError{Op: op, Err: err, AccountID: accountID}
}

// NewValidationError creates a new ValidationError
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// IsNotFound checks if an error is a "not found" type error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSessionNotFound)
}

// IsStoreError checks if an error is a StoreError
func IsStoreError(err error) bool {
	var storeErr *StoreError
	return errors.As(err, &storeErr)
}

// IsValidationError checks if an error is a ValidationError
func IsValidationError(err error) bool {
	var valErr *ValidationError
	return errors.As(err, &valErr)
}
