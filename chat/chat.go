// Copyright (c) 2026 AegisLabs.
// Please see LICENSE for details.

// Package chat provides the persistent chat/presence transport. It
// implements the client's Transport interface, so the session core
// reconnects it with fresh credentials around every rotation.
package chat

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/oklog/ulid/v2"

	"github.com/AegisLabs/aegis/aegis"
	"github.com/AegisLabs/aegis/global"
)

// Message is the wire envelope for chat traffic.
type Message struct {
	ID     string    `json:"id"`
	Type   string    `json:"type"`
	From   string    `json:"from,omitempty"`
	To     string    `json:"to,omitempty"`
	Body   string    `json:"body,omitempty"`
	SentAt time.Time `json:"sent_at"`
}

// Message types
const (
	TypeChat     = "chat"
	TypePresence = "presence"
	TypePing     = "ping"
)

// Handler receives inbound messages. Handlers run on the read loop
// goroutine and must not block.
type Handler func(Message)

// ErrNotConnected is returned by Send when no connection is up.
var ErrNotConnected = errors.New("chat transport is not connected")

// Client is a websocket chat transport. A single Client survives
// credential rotation: Disconnect and Connect cycle the underlying
// connection while handlers and configuration stay in place.
type Client struct {
	serverURL   string
	userAgent   string
	dialTimeout time.Duration
	reconnect   bool
	logger      global.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	cancel    context.CancelFunc
	readDone  chan struct{}
	accountID string
	lastToken string
	closed    bool

	handlerMu sync.RWMutex
	handlers  []Handler
}

// Option defines a configuration option for the chat client
type Option func(*Client)

// WithLogger sets the logger. A nil logger disables logging.
func WithLogger(logger global.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithDialTimeout sets the handshake timeout. Default is 15 seconds.
func WithDialTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.dialTimeout = timeout
	}
}

// WithUserAgent sets the User-Agent header sent on the handshake.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// WithReconnect makes the client redial with its last credentials when
// the connection drops unexpectedly. Deliberate Disconnect and Close
// never trigger a redial.
func WithReconnect() Option {
	return func(c *Client) {
		c.reconnect = true
	}
}

// New creates a chat transport for the given websocket URL.
func New(serverURL string, opts ...Option) *Client {
	c := &Client{
		serverURL:   serverURL,
		dialTimeout: 15 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnMessage registers a handler for inbound messages. Registration is
// allowed before or after Connect.
func (c *Client) OnMessage(handler Handler) {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()
	c.handlers = append(c.handlers, handler)
}

// Connect dials the chat service with the given credentials and starts
// the read loop. Connecting an already connected client is an error;
// the session core always disconnects first.
func (c *Client) Connect(accountID, accessToken string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errors.New("chat transport is closed")
	}
	if c.conn != nil {
		return errors.New("chat transport is already connected")
	}

	conn, err := c.dial(accessToken)
	if err != nil {
		return err
	}
	c.install(conn, accountID, accessToken)

	if c.logger != nil {
		c.logger.Infof("Chat connected (account %s)", accountID)
	}
	return nil
}

// dial performs the websocket handshake with bearer credentials.
func (c *Client) dial(accessToken string) (*websocket.Conn, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.dialTimeout)
	defer cancel()

	header := http.Header{}
	header.Set("Authorization", "bearer "+accessToken)
	if c.userAgent != "" {
		header.Set("User-Agent", c.userAgent)
	}

	conn, _, err := websocket.Dial(ctx, c.serverURL, &websocket.DialOptions{
		HTTPHeader: header,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to dial chat service %s: %w", c.serverURL, err)
	}
	return conn, nil
}

// install wires a freshly dialed connection in and starts its read loop.
// Caller holds the mutex.
func (c *Client) install(conn *websocket.Conn, accountID, accessToken string) {
	readCtx, readCancel := context.WithCancel(context.Background())
	c.conn = conn
	c.cancel = readCancel
	c.readDone = make(chan struct{})
	c.accountID = accountID
	c.lastToken = accessToken

	go c.readLoop(readCtx, conn, c.readDone)
}

// readLoop dispatches inbound messages until the connection drops.
func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn, done chan struct{}) {
	defer close(done)

	for {
		mt, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() == nil {
				if websocket.CloseStatus(err) == -1 && c.logger != nil {
					c.logger.Warningf("Chat read failed: %v", err)
				}
				if c.reconnect {
					go c.reconnectLoop(conn)
				}
			}
			return
		}
		if mt != websocket.MessageText && mt != websocket.MessageBinary {
			continue
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			if c.logger != nil {
				c.logger.Warningf("Dropping malformed chat message: %v", err)
			}
			continue
		}
		c.dispatch(msg)
	}
}

// dispatch runs the registered handlers, isolating panics so one bad
// handler cannot kill the read loop.
func (c *Client) dispatch(msg Message) {
	c.handlerMu.RLock()
	handlers := make([]Handler, len(c.handlers))
	copy(handlers, c.handlers)
	c.handlerMu.RUnlock()

	for _, handler := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil && c.logger != nil {
					c.logger.Errorf("Chat handler panicked: %v", r)
				}
			}()
			handler(msg)
		}()
	}
}

// reconnectLoop redials after an unexpected drop. It gives up once the
// failed connection has been replaced or torn down by someone else, or
// after the retry budget is spent.
func (c *Client) reconnectLoop(failed *websocket.Conn) {
	const maxAttempts = 5

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		time.Sleep(time.Duration(attempt) * time.Second)

		c.mu.Lock()
		if c.closed || c.conn != failed {
			c.mu.Unlock()
			return
		}
		accountID, accessToken := c.accountID, c.lastToken
		c.mu.Unlock()

		conn, err := c.dial(accessToken)
		if err != nil {
			if c.logger != nil {
				c.logger.Warningf("Chat reconnect attempt %d failed: %v", attempt, err)
			}
			continue
		}

		c.mu.Lock()
		if c.closed || c.conn != failed {
			c.mu.Unlock()
			_ = conn.Close(websocket.StatusNormalClosure, "superseded")
			return
		}
		c.cancel()
		c.install(conn, accountID, accessToken)
		c.mu.Unlock()

		if c.logger != nil {
			c.logger.Infof("Chat reconnected (account %s)", accountID)
		}
		return
	}

	if c.logger != nil {
		c.logger.Errorf("Chat reconnect gave up after %d attempts", maxAttempts)
	}
}

// Send delivers a chat message to the given account. The message id is
// a fresh ULID, returned to the caller for correlation.
func (c *Client) Send(ctx context.Context, to, body string) (string, error) {
	return c.send(ctx, Message{
		Type: TypeChat,
		To:   to,
		Body: body,
	})
}

// SendPresence broadcasts a presence status (e.g. "online", "away").
func (c *Client) SendPresence(ctx context.Context, status string) (string, error) {
	return c.send(ctx, Message{
		Type: TypePresence,
		Body: status,
	})
}

func (c *Client) send(ctx context.Context, msg Message) (string, error) {
	c.mu.Lock()
	conn := c.conn
	from := c.accountID
	c.mu.Unlock()

	if conn == nil {
		return "", ErrNotConnected
	}

	msg.ID = ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
	msg.From = from
	msg.SentAt = time.Now().UTC()

	data, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("failed to marshal chat message: %w", err)
	}

	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		return "", fmt.Errorf("failed to send chat message: %w", err)
	}
	return msg.ID, nil
}

// Disconnect tears down the connection but keeps the client reusable
// for a subsequent Connect with fresh credentials.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disconnectLocked()
}

func (c *Client) disconnectLocked() error {
	if c.conn == nil {
		return nil
	}

	err := c.conn.Close(websocket.StatusNormalClosure, "bye")
	c.cancel()
	<-c.readDone

	c.conn = nil
	c.cancel = nil
	c.readDone = nil
	c.accountID = ""

	if c.logger != nil {
		c.logger.Info("Chat disconnected")
	}
	if err != nil && websocket.CloseStatus(err) == -1 {
		return fmt.Errorf("failed to close chat connection: %w", err)
	}
	return nil
}

// Close disconnects and releases the transport permanently.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	err := c.disconnectLocked()
	c.closed = true
	return err
}

var _ aegis.Transport = (*Client)(nil)
