// Copyright (c) 2026 AegisLabs.
// Please see LICENSE for details.

package aegis

import (
	"net/http"
	"time"

	"github.com/AegisLabs/aegis/global"
)

// Option defines a functional option for configuring a Client.
type Option func(*Client)

// WithLogger sets the logger. A nil logger disables logging.
func WithLogger(logger global.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client for auth and resource calls.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithCredentials sets the full credential configuration, including the
// grant type.
func WithCredentials(creds Credentials) Option {
	return func(c *Client) {
		c.creds = creds
	}
}

// WithPasswordGrant configures a password grant. code may be empty when
// the account has no two-factor authentication.
func WithPasswordGrant(email, password, code string) Option {
	return func(c *Client) {
		c.creds.Grant = GrantPassword
		c.creds.Email = email
		c.creds.Password = password
		c.creds.TwoFactorCode = code
	}
}

// WithExchangeCodeGrant configures an exchange-code grant.
func WithExchangeCodeGrant(code string) Option {
	return func(c *Client) {
		c.creds.Grant = GrantExchangeCode
		c.creds.ExchangeCode = code
	}
}

// WithRefreshTokenGrant configures a refresh-token grant from a prior
// session.
func WithRefreshTokenGrant(refreshToken string) Option {
	return func(c *Client) {
		c.creds.Grant = GrantRefreshToken
		c.creds.RefreshToken = refreshToken
	}
}

// WithEndpoints overrides the auth service endpoints.
func WithEndpoints(endpoints Endpoints) Option {
	return func(c *Client) {
		c.endpoints = endpoints
	}
}

// WithServiceURLs overrides the resource service base URLs.
func WithServiceURLs(urls ServiceURLs) Option {
	return func(c *Client) {
		c.serviceURLs = urls
	}
}

// WithAutoRefresh enables or disables scheduled credential rotation.
// Enabled by default.
func WithAutoRefresh(enabled bool) Option {
	return func(c *Client) {
		c.autoRefresh = enabled
	}
}

// WithKillOtherSessions requests invalidation of other concurrently
// active sessions for the account after a successful login.
func WithKillOtherSessions(enabled bool) Option {
	return func(c *Client) {
		c.killOtherSessions = enabled
	}
}

// WithTransport attaches a chat/presence transport. The client connects
// it after login, reconnects it around every rotation, and closes it on
// shutdown.
func WithTransport(transport Transport) Option {
	return func(c *Client) {
		c.transport = transport
	}
}

// WithShutdownHook registers a signal handler that closes the client on
// SIGINT/SIGTERM.
func WithShutdownHook(enabled bool) Option {
	return func(c *Client) {
		c.shutdownHook = enabled
	}
}

// WithSessionStore attaches a persistent session store. Sessions are
// saved after login and every rotation; when no grant is configured, the
// client resumes from the most recently stored refresh token.
func WithSessionStore(store SessionStore) Option {
	return func(c *Client) {
		c.persist = store
	}
}

// WithUserAgent overrides the client identity header on signed requests.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// WithRefreshMargin overrides how long before expiry rotation jobs fire.
// Mainly useful in tests.
func WithRefreshMargin(margin time.Duration) Option {
	return func(c *Client) {
		c.refreshMargin = margin
	}
}
