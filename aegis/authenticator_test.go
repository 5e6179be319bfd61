// Copyright (c) 2026 AegisLabs.
// Please see LICENSE for details.

package aegis

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// authFor builds an authenticator whose endpoints point at the test server.
func authFor(server *httptest.Server, creds Credentials) *Authenticator {
	return NewAuthenticator(server.Client(), Endpoints{
		TokenURL:       server.URL + "/account/api/oauth/token",
		SessionKillURL: server.URL + "/account/api/oauth/sessions/kill",
	}, creds, nil)
}

// signedTestJWT builds a parseable access token carrying identity claims.
func signedTestJWT(t *testing.T, accountID, displayName string, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": accountID,
		"dn":  displayName,
		"exp": exp.Unix(),
	})
	signed, err := token.SignedString([]byte("test-signing-key"))
	require.NoError(t, err)
	return signed
}

func tokenHandler(t *testing.T, capture *url.Values, response string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if capture != nil {
			*capture = r.PostForm
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(response))
	}
}

const validTokenResponse = `{
	"access_token": "access-1",
	"expires_in": 7200,
	"refresh_token": "refresh-1",
	"refresh_expires_in": 28800,
	"account_id": "acct-1",
	"displayName": "Player One"
}`

func TestLoginPasswordGrantForm(t *testing.T) {
	var form url.Values
	server := httptest.NewServer(tokenHandler(t, &form, validTokenResponse))
	defer server.Close()

	auth := authFor(server, Credentials{
		Grant:         GrantPassword,
		Email:         "player@example.com",
		Password:      "hunter2",
		TwoFactorCode: "123456",
	})

	session, err := auth.Login(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "password", form.Get("grant_type"))
	assert.Equal(t, "player@example.com", form.Get("username"))
	assert.Equal(t, "hunter2", form.Get("password"))
	assert.Equal(t, "123456", form.Get("two_factor_code"))

	assert.Equal(t, "acct-1", session.AccountID)
	assert.Equal(t, "Player One", session.DisplayName)
	assert.Equal(t, "access-1", session.AccessToken)
	assert.Equal(t, "refresh-1", session.RefreshToken)
	assert.WithinDuration(t, time.Now().Add(7200*time.Second), session.AccessExpiresAt, 5*time.Second)
	assert.WithinDuration(t, time.Now().Add(28800*time.Second), session.RefreshExpiresAt, 5*time.Second)
}

func TestLoginMintsTOTPCode(t *testing.T) {
	key, err := totp.Generate(totp.GenerateOpts{Issuer: "test", AccountName: "player@example.com"})
	require.NoError(t, err)

	var form url.Values
	server := httptest.NewServer(tokenHandler(t, &form, validTokenResponse))
	defer server.Close()

	auth := authFor(server, Credentials{
		Grant:      GrantPassword,
		Email:      "player@example.com",
		Password:   "hunter2",
		TOTPSecret: key.Secret(),
		// The secret takes precedence over a stale literal code
		TwoFactorCode: "000000",
	})

	_, err = auth.Login(context.Background())
	require.NoError(t, err)

	code := form.Get("two_factor_code")
	require.NotEmpty(t, code)
	assert.NotEqual(t, "000000", code)
	assert.True(t, totp.Validate(code, key.Secret()), "Minted code should verify against the secret")
}

func TestLoginExchangeCodeGrantForm(t *testing.T) {
	var form url.Values
	server := httptest.NewServer(tokenHandler(t, &form, validTokenResponse))
	defer server.Close()

	auth := authFor(server, Credentials{Grant: GrantExchangeCode, ExchangeCode: "xchg-abc"})

	_, err := auth.Login(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "exchange_code", form.Get("grant_type"))
	assert.Equal(t, "xchg-abc", form.Get("exchange_code"))
}

func TestLoginUnsupportedGrant(t *testing.T) {
	server := httptest.NewServer(tokenHandler(t, nil, validTokenResponse))
	defer server.Close()

	auth := authFor(server, Credentials{Grant: GrantType("device_code")})

	_, err := auth.Login(context.Background())
	authErr, ok := AsAuthenticationError(err)
	require.True(t, ok)
	assert.Equal(t, GrantType("device_code"), authErr.Grant)
}

func TestLoginSendsClientToken(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(validTokenResponse))
	}))
	defer server.Close()

	auth := authFor(server, Credentials{
		Grant:        GrantExchangeCode,
		ExchangeCode: "xchg",
		ClientToken:  "YmFzZTY0Y3JlZA==",
	})

	_, err := auth.Login(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "basic YmFzZTY0Y3JlZA==", gotAuth)
}

func TestRefreshGrantForm(t *testing.T) {
	var form url.Values
	server := httptest.NewServer(tokenHandler(t, &form, validTokenResponse))
	defer server.Close()

	auth := authFor(server, Credentials{})

	session, err := auth.Refresh(context.Background(), "refresh-old")
	require.NoError(t, err)

	assert.Equal(t, "refresh_token", form.Get("grant_type"))
	assert.Equal(t, "refresh-old", form.Get("refresh_token"))
	assert.Equal(t, "acct-1", session.AccountID)
}

func TestRejectedGrantIsAuthenticationError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"errorCode":"errors.invalid_grant","errorMessage":"Sorry the two factor code was invalid"}`))
	}))
	defer server.Close()

	auth := authFor(server, Credentials{Grant: GrantPassword, Email: "p@e.com", Password: "x"})

	_, err := auth.Login(context.Background())
	authErr, ok := AsAuthenticationError(err)
	require.True(t, ok, "Expected AuthenticationError, got %v", err)
	assert.Equal(t, GrantPassword, authErr.Grant)
	assert.Equal(t, http.StatusForbidden, authErr.StatusCode)
	assert.Equal(t, "Sorry the two factor code was invalid", authErr.Message)

	_, isNet := AsNetworkError(err)
	assert.False(t, isNet)
}

func TestServerErrorIsNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	auth := authFor(server, Credentials{Grant: GrantRefreshToken, RefreshToken: "r"})

	_, err := auth.Login(context.Background())
	netErr, ok := AsNetworkError(err)
	require.True(t, ok, "Expected NetworkError, got %v", err)
	assert.Equal(t, http.MethodPost, netErr.Method)
	assert.False(t, netErr.IsTimeout())
}

func TestUnreachableEndpointIsNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // reject all connections

	auth := authFor(server, Credentials{Grant: GrantRefreshToken, RefreshToken: "r"})

	_, err := auth.Refresh(context.Background(), "r")
	_, ok := AsNetworkError(err)
	assert.True(t, ok, "Expected NetworkError, got %v", err)
}

func TestSessionIdentityRecoveredFromClaims(t *testing.T) {
	exp := time.Now().Add(2 * time.Hour).Truncate(time.Second)
	accessToken := signedTestJWT(t, "acct-jwt", "JWT Player", exp)

	// Minimal response: no account_id, displayName, or expires_in
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"` + accessToken + `","refresh_token":"refresh-1","refresh_expires_in":28800}`))
	}))
	defer server.Close()

	auth := authFor(server, Credentials{Grant: GrantRefreshToken, RefreshToken: "r"})

	session, err := auth.Login(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "acct-jwt", session.AccountID)
	assert.Equal(t, "JWT Player", session.DisplayName)
	assert.Equal(t, exp.Unix(), session.AccessExpiresAt.Unix())
}

func TestOpaqueTokenWithoutAccountIDFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"opaque-not-a-jwt","refresh_token":"refresh-1"}`))
	}))
	defer server.Close()

	auth := authFor(server, Credentials{Grant: GrantRefreshToken, RefreshToken: "r"})

	_, err := auth.Login(context.Background())
	_, ok := AsAuthenticationError(err)
	assert.True(t, ok, "Expected AuthenticationError, got %v", err)
}

func TestRevoke(t *testing.T) {
	var gotMethod, gotPath, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	auth := authFor(server, Credentials{})
	auth.metrics = NewMetricsCollector()

	require.NoError(t, auth.Revoke(context.Background(), "dead-token"))

	assert.Equal(t, http.MethodDelete, gotMethod)
	assert.Equal(t, "/account/api/oauth/sessions/kill/dead-token", gotPath)
	assert.Equal(t, "bearer dead-token", gotAuth)
	assert.EqualValues(t, 1, auth.metrics.Snapshot().Revocations)
}

func TestRevokeRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	auth := authFor(server, Credentials{})
	auth.metrics = NewMetricsCollector()

	err := auth.Revoke(context.Background(), "dead-token")
	_, ok := AsNetworkError(err)
	assert.True(t, ok)
	assert.EqualValues(t, 1, auth.metrics.Snapshot().RevocationFailures)
}

func TestKillOtherSessions(t *testing.T) {
	var gotMethod, gotKillType, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotKillType = r.URL.Query().Get("killType")
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	auth := authFor(server, Credentials{})

	require.NoError(t, auth.KillOtherSessions(context.Background(), "live-token"))

	assert.Equal(t, http.MethodDelete, gotMethod)
	assert.Equal(t, "OTHERS_ACCOUNT_CLIENT_SERVICE", gotKillType)
	assert.Equal(t, "bearer live-token", gotAuth)
}
