// Copyright (c) 2026 AegisLabs.
// Please see LICENSE for details.

package aegis

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
credentials:
  grant: password
  email: player@example.com
  password: hunter2
  totp_secret: JBSWY3DPEHPK3PXP
  client_token: YmFzZTY0Y3JlZA==
endpoints:
  token_url: https://auth.example.com/token
  session_kill_url: https://auth.example.com/kill
user_agent: CustomAgent/3.1
auto_refresh: false
kill_other_sessions: true
shutdown_hook: true
`

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, GrantPassword, cfg.Credentials.Grant)
	assert.Equal(t, "player@example.com", cfg.Credentials.Email)
	assert.Equal(t, "hunter2", cfg.Credentials.Password)
	assert.Equal(t, "JBSWY3DPEHPK3PXP", cfg.Credentials.TOTPSecret)
	assert.Equal(t, "YmFzZTY0Y3JlZA==", cfg.Credentials.ClientToken)

	require.NotNil(t, cfg.Endpoints)
	assert.Equal(t, "https://auth.example.com/token", cfg.Endpoints.TokenURL)
	assert.Equal(t, "https://auth.example.com/kill", cfg.Endpoints.SessionKillURL)

	assert.Equal(t, "CustomAgent/3.1", cfg.UserAgent)
	require.NotNil(t, cfg.AutoRefresh)
	assert.False(t, *cfg.AutoRefresh)
	assert.True(t, cfg.KillOtherSessions)
	assert.True(t, cfg.ShutdownHook)
}

func TestParseConfigMalformed(t *testing.T) {
	_, err := ParseConfig([]byte("credentials: [not: a: mapping"))
	assert.Error(t, err)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aegis.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "player@example.com", cfg.Credentials.Email)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestFileConfigOptions(t *testing.T) {
	cfg, err := ParseConfig([]byte(sampleConfig))
	require.NoError(t, err)

	c := &Client{
		endpoints:     DefaultEndpoints(),
		userAgent:     DefaultUserAgent,
		autoRefresh:   true,
		refreshMargin: DefaultRefreshMargin,
	}
	for _, opt := range cfg.Options() {
		opt(c)
	}

	assert.Equal(t, "player@example.com", c.creds.Email)
	assert.Equal(t, "https://auth.example.com/token", c.endpoints.TokenURL)
	assert.Equal(t, "CustomAgent/3.1", c.userAgent)
	assert.False(t, c.autoRefresh)
	assert.True(t, c.killOtherSessions)
	assert.True(t, c.shutdownHook)
}

func TestFileConfigOptionsMinimal(t *testing.T) {
	cfg, err := ParseConfig([]byte("credentials:\n  grant: refresh_token\n  refresh_token: r1\n"))
	require.NoError(t, err)

	c := &Client{autoRefresh: true, userAgent: DefaultUserAgent}
	for _, opt := range cfg.Options() {
		opt(c)
	}

	assert.Equal(t, GrantRefreshToken, c.creds.Grant)
	assert.Equal(t, "r1", c.creds.RefreshToken)
	// Unset fields keep their defaults
	assert.True(t, c.autoRefresh)
	assert.Equal(t, DefaultUserAgent, c.userAgent)
	assert.False(t, c.killOtherSessions)
}

func TestCredentialsFromEnvFile(t *testing.T) {
	envVars := []string{
		"AEGIS_GRANT", "AEGIS_EMAIL", "AEGIS_PASSWORD", "AEGIS_TWO_FACTOR",
		"AEGIS_TOTP_SECRET", "AEGIS_EXCHANGE_CODE", "AEGIS_REFRESH_TOKEN", "AEGIS_CLIENT_TOKEN",
	}
	for _, key := range envVars {
		require.NoError(t, os.Unsetenv(key))
	}
	defer func() {
		for _, key := range envVars {
			_ = os.Unsetenv(key)
		}
	}()

	path := filepath.Join(t.TempDir(), "test.env")
	content := "AEGIS_GRANT=password\nAEGIS_EMAIL=env@example.com\nAEGIS_PASSWORD=secret\nAEGIS_CLIENT_TOKEN=ct\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	creds, err := CredentialsFromEnv(path)
	require.NoError(t, err)

	assert.Equal(t, GrantPassword, creds.Grant)
	assert.Equal(t, "env@example.com", creds.Email)
	assert.Equal(t, "secret", creds.Password)
	assert.Equal(t, "ct", creds.ClientToken)
	assert.Empty(t, creds.RefreshToken)
}

func TestCredentialsFromEnvMissingFile(t *testing.T) {
	_, err := CredentialsFromEnv(filepath.Join(t.TempDir(), "absent.env"))
	assert.Error(t, err)
}

func TestOptionsSetClientFields(t *testing.T) {
	transport := &fakeTransport{}
	store := &memoryStore{}

	c := &Client{}
	for _, opt := range []Option{
		WithPasswordGrant("e@x.com", "pw", "123456"),
		WithServiceURLs(ServiceURLs{Account: "https://acct.example.com"}),
		WithAutoRefresh(false),
		WithKillOtherSessions(true),
		WithTransport(transport),
		WithSessionStore(store),
		WithShutdownHook(true),
		WithUserAgent("UA/1"),
		WithRefreshMargin(42 * time.Second),
	} {
		opt(c)
	}

	assert.Equal(t, GrantPassword, c.creds.Grant)
	assert.Equal(t, "e@x.com", c.creds.Email)
	assert.Equal(t, "123456", c.creds.TwoFactorCode)
	assert.Equal(t, "https://acct.example.com", c.serviceURLs.Account)
	assert.False(t, c.autoRefresh)
	assert.True(t, c.killOtherSessions)
	assert.Same(t, transport, c.transport.(*fakeTransport))
	assert.True(t, c.shutdownHook)
	assert.Equal(t, "UA/1", c.userAgent)
	assert.Equal(t, 42*time.Second, c.refreshMargin)

	WithExchangeCodeGrant("xc")(c)
	assert.Equal(t, GrantExchangeCode, c.creds.Grant)
	assert.Equal(t, "xc", c.creds.ExchangeCode)

	WithRefreshTokenGrant("rt")(c)
	assert.Equal(t, GrantRefreshToken, c.creds.Grant)
	assert.Equal(t, "rt", c.creds.RefreshToken)
}
