// Copyright (c) 2026 AegisLabs.
// Please see LICENSE for details.

// Package aegis is a client SDK for a game's online services. Its core is
// the managed session lifecycle: authenticate once, hold a live
// access/refresh token pair, rotate it before expiry, propagate fresh
// credentials to request signing and the chat transport, and shut down
// hard and clean when rotation fails.
//
// Example usage:
//
//	logger, _ := mlog.New(mlog.WithDebug(true))
//	client, err := aegis.New(ctx,
//		aegis.WithPasswordGrant(email, password, ""),
//		aegis.WithKillOtherSessions(true),
//		aegis.WithLogger(logger),
//	)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
package aegis

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/AegisLabs/aegis/global"
)

// State is the client's lifecycle state.
type State int32

const (
	StateAuthenticating State = iota
	StateActive
	StateRotating
	StateShuttingDown
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateAuthenticating:
		return "authenticating"
	case StateActive:
		return "active"
	case StateRotating:
		return "rotating"
	case StateShuttingDown:
		return "shutting-down"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Client is the session facade client code holds. It owns the credential
// store, the authenticator, the refresh scheduler, the request signer,
// the lifecycle event bus, and (optionally) a chat transport, and it
// tears all of them down deterministically on Close.
//
// All public methods are safe for concurrent use.
type Client struct {
	logger      global.Logger
	httpClient  *http.Client
	endpoints   Endpoints
	serviceURLs ServiceURLs
	creds       Credentials
	userAgent   string

	autoRefresh       bool
	killOtherSessions bool
	shutdownHook      bool
	refreshMargin     time.Duration

	auth      *Authenticator
	store     *sessionStore
	signer    *Signer
	bus       *eventBus
	scheduler *Scheduler
	transport Transport
	persist   SessionStore
	metrics   *MetricsCollector

	signedClient *http.Client

	state      atomic.Int32
	rotationMu sync.Mutex // rotation and shutdown are mutually exclusive
	closeOnce  sync.Once
	sigCh      chan os.Signal

	accounts *Accounts
	friends  *Friends
	stats    *Stats
	events   *Events
}

// New authenticates with the configured grant and returns a ready client.
// Construction is synchronous: when New returns, the session is live, the
// transport (if any) is connected, and rotation (unless disabled) is
// scheduled. If the initial login fails the error is returned and there
// is nothing to clean up.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	c := &Client{
		endpoints:     DefaultEndpoints(),
		serviceURLs:   DefaultServiceURLs(),
		userAgent:     DefaultUserAgent,
		autoRefresh:   true,
		refreshMargin: DefaultRefreshMargin,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{
			Timeout: 30 * time.Second,
			// The auth endpoint answers some grant failures with
			// redirects to its web login; never follow them.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	}

	c.metrics = NewMetricsCollector()
	c.store = &sessionStore{}
	c.bus = newEventBus(c.logger)
	c.signer = newSigner(c.store, c.userAgent, c.metrics, c.logger)
	c.signedClient = &http.Client{
		Transport: c.signer.Transport(c.httpClient.Transport),
		Timeout:   c.httpClient.Timeout,
	}

	c.resumeFromStore()

	c.auth = NewAuthenticator(c.httpClient, c.endpoints, c.creds, c.logger)
	c.auth.metrics = c.metrics

	c.state.Store(int32(StateAuthenticating))
	session, err := c.auth.Login(ctx)
	if err != nil {
		c.state.Store(int32(StateClosed))
		return nil, err
	}
	c.store.Swap(session)
	c.state.Store(int32(StateActive))
	c.persistSession(session)

	if c.killOtherSessions {
		if err := c.auth.KillOtherSessions(ctx, session.AccessToken); err != nil && c.logger != nil {
			c.logger.Warningf("Failed to kill other sessions: %v", err)
		}
	}

	if c.transport != nil {
		if c.logger != nil {
			c.logger.Info("Connecting chat transport")
		}
		if err := c.transport.Connect(session.AccountID, session.AccessToken); err != nil {
			if revokeErr := c.auth.Revoke(ctx, session.AccessToken); revokeErr != nil && c.logger != nil {
				c.logger.Warningf("Failed to revoke token during aborted construction: %v", revokeErr)
			}
			c.state.Store(int32(StateClosed))
			return nil, err
		}
	}

	if c.autoRefresh {
		c.scheduler = newScheduler(c.rotate, c.refreshMargin, c.logger)
		c.scheduler.Start(session)
	}
	if c.shutdownHook {
		c.installShutdownHook()
	}

	c.initServices()
	if c.logger != nil {
		c.logger.Infof("Client ready (account %s)", session.AccountID)
	}
	return c, nil
}

// resumeFromStore switches to the refresh-token grant when no grant was
// configured and a persisted session is available.
func (c *Client) resumeFromStore() {
	if c.persist == nil || c.creds.Grant != "" || c.creds.Email != "" {
		return
	}
	saved, err := c.persist.Latest()
	if err != nil || saved == nil || saved.RefreshToken == "" {
		return
	}
	if c.logger != nil {
		c.logger.Infof("Resuming persisted session for account %s", saved.AccountID)
	}
	c.creds.Grant = GrantRefreshToken
	c.creds.RefreshToken = saved.RefreshToken
}

// rotate runs one rotation job. It executes on the scheduler goroutine
// and is mutually exclusive with Close via the rotation mutex. Any
// rotation failure is fatal to the session: no retry, full shutdown.
func (c *Client) rotate(kind rotationKind) {
	c.rotationMu.Lock()
	if c.State() != StateActive {
		c.rotationMu.Unlock()
		return
	}
	c.state.Store(int32(StateRotating))
	err := c.doRotate(context.Background(), kind)
	if err == nil {
		c.state.Store(int32(StateActive))
		c.rotationMu.Unlock()
		return
	}
	c.state.Store(int32(StateActive))
	c.rotationMu.Unlock()

	c.metrics.RecordRotationFailure()
	if c.logger != nil {
		c.logger.Errorf("Credential rotation (%s) failed, shutting down: %v", kind, err)
	}
	c.Close()
}

// doRotate swaps in a fresh session and reconnects the transport with it.
// Called with the rotation mutex held.
func (c *Client) doRotate(ctx context.Context, kind rotationKind) error {
	old := c.store.Peek()

	var (
		next *Session
		err  error
	)
	switch kind {
	case rotateFull:
		next, err = c.auth.Login(ctx)
	default:
		next, err = c.auth.Refresh(ctx, old.RefreshToken)
	}
	if err != nil {
		return err
	}

	c.store.Swap(next)
	c.persistSession(next)

	if err := c.auth.Revoke(ctx, old.AccessToken); err != nil && c.logger != nil {
		c.logger.Warningf("Failed to revoke rotated-out access token: %v", err)
	}

	if c.transport != nil {
		c.bus.Invoke(BeforeRefresh)
		if err := c.transport.Disconnect(); err != nil && c.logger != nil {
			c.logger.Warningf("Transport disconnect before reconnect failed: %v", err)
		}
		if err := c.transport.Connect(next.AccountID, next.AccessToken); err != nil {
			return err
		}
		c.bus.Invoke(AfterRefresh)
	}
	return nil
}

// installShutdownHook closes the client on SIGINT/SIGTERM.
func (c *Client) installShutdownHook() {
	c.sigCh = make(chan os.Signal, 1)
	signal.Notify(c.sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		if _, ok := <-c.sigCh; ok {
			c.Close()
		}
	}()
}

// persistSession saves the session to the configured store, if any.
func (c *Client) persistSession(session *Session) {
	if c.persist == nil {
		return
	}
	if err := c.persist.Save(session); err != nil && c.logger != nil {
		c.logger.Warningf("Failed to persist session: %v", err)
	}
}

// initServices wires the thin resource services onto the signed pipeline.
func (c *Client) initServices() {
	rest := newRESTClient(c.signedClient, c.logger)
	c.accounts = &Accounts{rest: rest, base: c.serviceURLs.Account}
	c.friends = &Friends{rest: rest, base: c.serviceURLs.Friends, self: c.AccountID}
	c.stats = &Stats{rest: rest, base: c.serviceURLs.Stats}
	c.events = &Events{rest: rest, base: c.serviceURLs.Events}
}

// Close tears the client down in order: stop the scheduler (an in-flight
// rotation completes first), fire the shutdown event, disconnect and close
// the transport, revoke the current token (best effort), dispose the event
// bus. Idempotent: a second Close is a no-op.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		// Wait out any in-flight rotation, then make the state change
		// visible so late rotation jobs bail out.
		c.rotationMu.Lock()
		c.state.Store(int32(StateShuttingDown))
		c.rotationMu.Unlock()

		if c.logger != nil {
			c.logger.Info("Shutting down")
		}

		if c.sigCh != nil {
			signal.Stop(c.sigCh)
			close(c.sigCh)
		}
		if c.scheduler != nil {
			c.scheduler.Stop()
		}

		c.bus.Invoke(Shutdown)

		if c.transport != nil {
			if err := c.transport.Disconnect(); err != nil && c.logger != nil {
				c.logger.Warningf("Transport disconnect failed during shutdown: %v", err)
			}
			if err := c.transport.Close(); err != nil && c.logger != nil {
				c.logger.Warningf("Transport close failed during shutdown: %v", err)
			}
		}

		if session := c.store.Peek(); session != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := c.auth.Revoke(ctx, session.AccessToken); err != nil && c.logger != nil {
				c.logger.Warningf("Failed to revoke token during shutdown: %v", err)
			}
			cancel()
		}

		c.bus.Dispose()
		c.state.Store(int32(StateClosed))
		if c.logger != nil {
			c.logger.Info("Closed")
		}
	})
}

// State returns the client's current lifecycle state.
func (c *Client) State() State {
	return State(c.state.Load())
}

// Session returns a read-only snapshot of the current session, or
// ErrNotAuthenticated before the initial login has committed.
func (c *Client) Session() (*Session, error) {
	return c.store.Current()
}

// AccountID returns the authenticated account's id, which is stable
// across rotations. Empty before authentication.
func (c *Client) AccountID() string {
	if session := c.store.Peek(); session != nil {
		return session.AccountID
	}
	return ""
}

// DisplayName returns the authenticated account's display name.
func (c *Client) DisplayName() string {
	if session := c.store.Peek(); session != nil {
		return session.DisplayName
	}
	return ""
}

// HTTPClient returns the shared HTTP client whose transport signs every
// request with the current session's credentials. Resource subsystems go
// through this; they never read the credential store directly.
func (c *Client) HTTPClient() *http.Client {
	return c.signedClient
}

// AddInterceptor appends a request transform to the signing chain.
func (c *Client) AddInterceptor(fn InterceptorAction) InterceptorID {
	return c.signer.AddInterceptor(fn)
}

// RemoveInterceptor removes a request transform from the signing chain.
func (c *Client) RemoveInterceptor(id InterceptorID) {
	c.signer.RemoveInterceptor(id)
}

// On registers a lifecycle listener for the given event kind.
func (c *Client) On(kind EventKind, fn ListenerFunc) ListenerID {
	return c.bus.Register(kind, fn)
}

// RemoveListener removes a lifecycle listener registration.
func (c *Client) RemoveListener(id ListenerID) {
	c.bus.Remove(id)
}

// Metrics returns a snapshot of the lifecycle counters.
func (c *Client) Metrics() MetricsSnapshot {
	return c.metrics.Snapshot()
}

// Accounts returns the account lookup service.
func (c *Client) Accounts() *Accounts {
	return c.accounts
}

// Friends returns the friends service.
func (c *Client) Friends() *Friends {
	return c.friends
}

// Stats returns the statistics service.
func (c *Client) Stats() *Stats {
	return c.stats
}

// Events returns the events/tournaments service.
func (c *Client) Events() *Events {
	return c.events
}
