// Copyright (c) 2026 AegisLabs.
// Please see LICENSE for details.

package aegis

import (
	"errors"
	"fmt"
)

// ErrNotAuthenticated is returned when the credential store is queried
// before the initial login has completed. After construction succeeds this
// indicates a programming error, not a runtime condition.
var ErrNotAuthenticated = errors.New("aegis: not authenticated")

// GrantType identifies the credential grant used to establish a session.
type GrantType string

const (
	GrantPassword     GrantType = "password"
	GrantExchangeCode GrantType = "exchange_code"
	GrantRefreshToken GrantType = "refresh_token"
)

// AuthenticationError represents a rejected grant: bad credentials, an
// expired exchange code, or a revoked refresh token. It is never retried
// at this layer.
type AuthenticationError struct {
	Grant      GrantType `json:"grant"`
	StatusCode int       `json:"status_code,omitempty"`
	Message    string    `json:"message"`
	Cause      error     `json:"-"`
}

// Error implements the error interface
func (e AuthenticationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("authentication failed (%s grant): %s: %v", e.Grant, e.Message, e.Cause)
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("authentication failed (%s grant): %s (HTTP %d)", e.Grant, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("authentication failed (%s grant): %s", e.Grant, e.Message)
}

// Unwrap returns the underlying error
func (e AuthenticationError) Unwrap() error {
	return e.Cause
}

// NetworkError represents a transport-level failure while talking to the
// remote service. The caller decides whether to retry; this layer never
// does.
type NetworkError struct {
	URL     string `json:"url"`
	Method  string `json:"method"`
	Message string `json:"message"`
	Timeout bool   `json:"timeout"`
	Cause   error  `json:"-"`
}

// Error implements the error interface
func (e NetworkError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("network error for %s %s: %s: %v", e.Method, e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("network error for %s %s: %s", e.Method, e.URL, e.Message)
}

// Unwrap returns the underlying error
func (e NetworkError) Unwrap() error {
	return e.Cause
}

// IsTimeout returns true if the error was due to a timeout
func (e NetworkError) IsTimeout() bool {
	return e.Timeout
}

// NewAuthenticationError creates a new AuthenticationError
func NewAuthenticationError(grant GrantType, statusCode int, message string, cause error) *AuthenticationError {
	return &AuthenticationError{
		Grant:      grant,
		StatusCode: statusCode,
		Message:    message,
		Cause:      cause,
	}
}

// NewNetworkError creates a new NetworkError
func NewNetworkError(url, method, message string, cause error, timeout bool) *NetworkError {
	return &NetworkError{
		URL:     url,
		Method:  method,
		Message: message,
		Timeout: timeout,
		Cause:   cause,
	}
}

// AsAuthenticationError safely extracts an AuthenticationError from an error chain
func AsAuthenticationError(err error) (*AuthenticationError, bool) {
	var authErr *AuthenticationError
	if errors.As(err, &authErr) {
		return authErr, true
	}
	return nil, false
}

// AsNetworkError safely extracts a NetworkError from an error chain
func AsNetworkError(err error) (*NetworkError, bool) {
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return netErr, true
	}
	return nil, false
}
