// Copyright (c) 2026 AegisLabs.
// Please see LICENSE for details.

package aegis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pquerna/otp/totp"
	"golang.org/x/time/rate"

	"github.com/AegisLabs/aegis/global"
)

// Endpoints holds the auth service URLs. Override for testing or for
// pointing the SDK at a different environment.
type Endpoints struct {
	// TokenURL is the OAuth token endpoint handling all grants.
	TokenURL string `yaml:"token_url"`
	// SessionKillURL is the session invalidation endpoint. A token is
	// revoked at SessionKillURL/<token>; other concurrent sessions are
	// killed with the killType query parameter.
	SessionKillURL string `yaml:"session_kill_url"`
}

// DefaultEndpoints returns the production service endpoints.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		TokenURL:       "https://account-public-service-prod.ol.epicgames.com/account/api/oauth/token",
		SessionKillURL: "https://account-public-service-prod.ol.epicgames.com/account/api/oauth/sessions/kill",
	}
}

// Credentials configures the initial grant.
type Credentials struct {
	Grant GrantType `yaml:"grant"`

	// Password grant.
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	// TwoFactorCode is a literal one-time code. TOTPSecret takes
	// precedence: when set, a code is minted from it at login time.
	TwoFactorCode string `yaml:"two_factor_code"`
	TOTPSecret    string `yaml:"totp_secret"`

	// Exchange-code grant.
	ExchangeCode string `yaml:"exchange_code"`

	// Refresh-token grant.
	RefreshToken string `yaml:"refresh_token"`

	// ClientToken is the pre-shared client credential sent as the basic
	// Authorization header on token requests.
	ClientToken string `yaml:"client_token"`
}

// Authenticator performs token grants against the auth endpoint: initial
// login, refresh, revocation, and the kill-other-sessions safety call.
// All calls are synchronous network calls bounded by the HTTP client's
// timeout; there is no cancellation of an in-flight call beyond the
// context passed in.
type Authenticator struct {
	httpClient *http.Client
	endpoints  Endpoints
	creds      Credentials
	limiter    *rate.Limiter
	metrics    *MetricsCollector
	logger     global.Logger
}

// NewAuthenticator creates an authenticator for the given credentials.
func NewAuthenticator(httpClient *http.Client, endpoints Endpoints, creds Credentials, logger global.Logger) *Authenticator {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Authenticator{
		httpClient: httpClient,
		endpoints:  endpoints,
		creds:      creds,
		// The auth endpoint throttles aggressively; stay well under it.
		limiter: rate.NewLimiter(rate.Every(500*time.Millisecond), 2),
		logger:  logger,
	}
}

// tokenResponse is the wire shape of a successful grant.
type tokenResponse struct {
	AccessToken      string    `json:"access_token"`
	ExpiresIn        int       `json:"expires_in,omitempty"`
	ExpiresAt        time.Time `json:"expires_at,omitempty"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresIn int       `json:"refresh_expires_in,omitempty"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at,omitempty"`
	AccountID        string    `json:"account_id"`
	DisplayName      string    `json:"displayName"`
}

// errorResponse is the wire shape of a rejected grant.
type errorResponse struct {
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

// Login performs the configured grant and returns the new session.
// Returns AuthenticationError on rejected credentials or an expired code,
// NetworkError on transport failure.
func (a *Authenticator) Login(ctx context.Context) (*Session, error) {
	form := url.Values{}

	switch a.creds.Grant {
	case GrantPassword, "":
		form.Set("grant_type", "password")
		form.Set("username", a.creds.Email)
		form.Set("password", a.creds.Password)
		code, err := a.twoFactorCode()
		if err != nil {
			return nil, err
		}
		if code != "" {
			form.Set("two_factor_code", code)
		}
	case GrantExchangeCode:
		form.Set("grant_type", "exchange_code")
		form.Set("exchange_code", a.creds.ExchangeCode)
	case GrantRefreshToken:
		form.Set("grant_type", "refresh_token")
		form.Set("refresh_token", a.creds.RefreshToken)
	default:
		return nil, NewAuthenticationError(a.creds.Grant, 0, "unsupported grant type", nil)
	}

	grant := a.creds.Grant
	if grant == "" {
		grant = GrantPassword
	}

	session, err := a.grant(ctx, grant, form)
	if err != nil {
		return nil, err
	}
	a.metrics.RecordLogin()
	if a.logger != nil {
		a.logger.Infof("Account %s authenticated via %s grant", session.AccountID, grant)
	}
	return session, nil
}

// Refresh exchanges a refresh token for a new token pair. An
// AuthenticationError means the refresh token itself is expired or
// revoked; the caller must fall back to a full Login, not retry.
func (a *Authenticator) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	session, err := a.grant(ctx, GrantRefreshToken, form)
	if err != nil {
		return nil, err
	}
	a.metrics.RecordRefresh()
	if a.logger != nil {
		a.logger.Infof("Session refreshed for account %s", session.AccountID)
	}
	return session, nil
}

// Revoke invalidates an access token server-side. Best effort: callers
// log failures and move on, revocation is advisory cleanup.
func (a *Authenticator) Revoke(ctx context.Context, accessToken string) error {
	if err := a.limiter.Wait(ctx); err != nil {
		return NewNetworkError(a.endpoints.SessionKillURL, http.MethodDelete, "rate limiter interrupted", err, false)
	}

	killURL := a.endpoints.SessionKillURL + "/" + url.PathEscape(accessToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, killURL, nil)
	if err != nil {
		return NewNetworkError(killURL, http.MethodDelete, "failed to create revocation request", err, false)
	}
	req.Header.Set(headerAuthorization, "bearer "+accessToken)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		a.metrics.RecordRevocation(false)
		return NewNetworkError(killURL, http.MethodDelete, "revocation request failed", err, isTimeout(err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		a.metrics.RecordRevocation(false)
		return NewNetworkError(killURL, http.MethodDelete,
			fmt.Sprintf("revocation rejected (HTTP %d)", resp.StatusCode), nil, false)
	}
	a.metrics.RecordRevocation(true)
	return nil
}

// KillOtherSessions invalidates every other active session for the
// account, leaving the supplied token alive. Failures are non-fatal.
func (a *Authenticator) KillOtherSessions(ctx context.Context, accessToken string) error {
	if err := a.limiter.Wait(ctx); err != nil {
		return NewNetworkError(a.endpoints.SessionKillURL, http.MethodDelete, "rate limiter interrupted", err, false)
	}

	killURL := a.endpoints.SessionKillURL + "?killType=OTHERS_ACCOUNT_CLIENT_SERVICE"
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, killURL, nil)
	if err != nil {
		return NewNetworkError(killURL, http.MethodDelete, "failed to create kill request", err, false)
	}
	req.Header.Set(headerAuthorization, "bearer "+accessToken)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return NewNetworkError(killURL, http.MethodDelete, "kill request failed", err, isTimeout(err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		return NewNetworkError(killURL, http.MethodDelete,
			fmt.Sprintf("kill request rejected (HTTP %d)", resp.StatusCode), nil, false)
	}
	return nil
}

// grant posts a token grant and decodes the resulting session.
func (a *Authenticator) grant(ctx context.Context, grant GrantType, form url.Values) (*Session, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, NewNetworkError(a.endpoints.TokenURL, http.MethodPost, "rate limiter interrupted", err, false)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoints.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, NewNetworkError(a.endpoints.TokenURL, http.MethodPost, "failed to create token request", err, false)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if a.creds.ClientToken != "" {
		req.Header.Set(headerAuthorization, "basic "+a.creds.ClientToken)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, NewNetworkError(a.endpoints.TokenURL, http.MethodPost, "token request failed", err, isTimeout(err))
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewNetworkError(a.endpoints.TokenURL, http.MethodPost, "failed to read token response", err, false)
	}

	if resp.StatusCode >= 500 {
		return nil, NewNetworkError(a.endpoints.TokenURL, http.MethodPost,
			fmt.Sprintf("token endpoint unavailable (HTTP %d)", resp.StatusCode), nil, false)
	}
	if resp.StatusCode >= 300 {
		var errResp errorResponse
		message := "grant rejected"
		if jsonErr := json.Unmarshal(body, &errResp); jsonErr == nil && errResp.ErrorMessage != "" {
			message = errResp.ErrorMessage
		}
		return nil, NewAuthenticationError(grant, resp.StatusCode, message, nil)
	}

	var token tokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, NewAuthenticationError(grant, resp.StatusCode, "malformed token response", err)
	}
	return a.sessionFromToken(grant, token)
}

// sessionFromToken builds a Session from the wire response, recovering the
// account identity and expiry from the access token's claims when the
// endpoint omits them.
func (a *Authenticator) sessionFromToken(grant GrantType, token tokenResponse) (*Session, error) {
	if token.AccessToken == "" {
		return nil, NewAuthenticationError(grant, 0, "token response missing access token", nil)
	}

	session := &Session{
		AccountID:        token.AccountID,
		DisplayName:      token.DisplayName,
		AccessToken:      token.AccessToken,
		AccessExpiresAt:  token.ExpiresAt,
		RefreshToken:     token.RefreshToken,
		RefreshExpiresAt: token.RefreshExpiresAt,
	}
	if session.AccessExpiresAt.IsZero() && token.ExpiresIn > 0 {
		session.AccessExpiresAt = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
	}
	if session.RefreshExpiresAt.IsZero() && token.RefreshExpiresIn > 0 {
		session.RefreshExpiresAt = time.Now().Add(time.Duration(token.RefreshExpiresIn) * time.Second)
	}

	if session.AccountID == "" || session.AccessExpiresAt.IsZero() {
		a.fillFromClaims(session)
	}
	if session.AccountID == "" {
		return nil, NewAuthenticationError(grant, 0, "token response missing account id", nil)
	}
	return session, nil
}

// fillFromClaims recovers identity and expiry from the access token JWT.
// The token is not verified here; the auth endpoint just issued it over
// TLS and the SDK holds no signing keys.
func (a *Authenticator) fillFromClaims(session *Session) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(session.AccessToken, claims); err != nil {
		if a.logger != nil {
			a.logger.Debugf("Access token is not a parseable JWT: %v", err)
		}
		return
	}

	if session.AccountID == "" {
		if sub, err := claims.GetSubject(); err == nil {
			session.AccountID = sub
		}
	}
	if session.DisplayName == "" {
		if dn, ok := claims["dn"].(string); ok {
			session.DisplayName = dn
		}
	}
	if session.AccessExpiresAt.IsZero() {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			session.AccessExpiresAt = exp.Time
		}
	}
}

// twoFactorCode returns the one-time code for the password grant: minted
// from the TOTP secret when one is configured, otherwise the literal code.
func (a *Authenticator) twoFactorCode() (string, error) {
	if a.creds.TOTPSecret == "" {
		return a.creds.TwoFactorCode, nil
	}
	code, err := totp.GenerateCode(a.creds.TOTPSecret, time.Now())
	if err != nil {
		return "", NewAuthenticationError(GrantPassword, 0, "failed to generate one-time code", err)
	}
	return code, nil
}

// isTimeout reports whether a transport error was a timeout.
func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
