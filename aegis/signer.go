// Copyright (c) 2026 AegisLabs.
// Please see LICENSE for details.

package aegis

import (
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/AegisLabs/aegis/global"
)

const (
	headerAuthorization = "Authorization"
	headerUserAgent     = "User-Agent"
	headerCorrelationID = "X-Correlation-ID"

	// DefaultUserAgent identifies the client on every signed request.
	DefaultUserAgent = "Aegis/1.2.0"
)

// InterceptorAction transforms an outbound request before the bearer
// header is injected. Each action receives the previous action's result
// and returns a (possibly new) request. Returning nil signals that the
// request was lost; the signer recovers with the original request.
type InterceptorAction func(*http.Request) *http.Request

// InterceptorID identifies a registered interceptor so it can be removed.
type InterceptorID int64

type interceptorEntry struct {
	id InterceptorID
	fn InterceptorAction
}

// Signer attaches the current session's bearer token and correlation
// headers to outbound requests, after running the registered interceptor
// chain. Apply executes synchronously on the calling goroutine and only
// reads the credential store; it never performs network I/O.
//
// The interceptor list uses copy-on-write: mutation while requests are in
// flight is safe, and in-flight requests keep the snapshot they started
// with.
type Signer struct {
	store     *sessionStore
	userAgent string
	metrics   *MetricsCollector
	logger    global.Logger

	mu      sync.Mutex // guards writes to actions
	nextID  InterceptorID
	actions []interceptorEntry // replaced whole on every mutation
}

func newSigner(store *sessionStore, userAgent string, metrics *MetricsCollector, logger global.Logger) *Signer {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &Signer{
		store:     store,
		userAgent: userAgent,
		metrics:   metrics,
		logger:    logger,
	}
}

// AddInterceptor appends an action to the chain and returns its id.
func (s *Signer) AddInterceptor(fn InterceptorAction) InterceptorID {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID

	next := make([]interceptorEntry, len(s.actions), len(s.actions)+1)
	copy(next, s.actions)
	s.actions = append(next, interceptorEntry{id: id, fn: fn})
	return id
}

// RemoveInterceptor deletes an action from the chain. Unknown ids are
// ignored.
func (s *Signer) RemoveInterceptor(id InterceptorID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]interceptorEntry, 0, len(s.actions))
	for _, entry := range s.actions {
		if entry.id != id {
			next = append(next, entry)
		}
	}
	s.actions = next
}

func (s *Signer) snapshot() []interceptorEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.actions
}

// Apply runs the interceptor chain and signs the result. The returned
// request carries the bearer Authorization header, the client identity
// header, and a fresh correlation id, unless the request already had an
// Authorization header or no session exists yet, in which case it passes
// through unchanged.
func (s *Signer) Apply(req *http.Request) *http.Request {
	next := req
	for _, entry := range s.snapshot() {
		result := entry.fn(next)
		if result == nil {
			// We lost the request somewhere in the chain. Recover with
			// the original rather than failing the call.
			if s.logger != nil {
				s.logger.Warningf("Interceptor %d returned nil, falling back to the original request", entry.id)
			}
			next = req
			break
		}
		next = result
	}

	if next.Header.Get(headerAuthorization) != "" {
		return next
	}
	session := s.store.Peek()
	if session == nil {
		return next
	}

	signed := next.Clone(next.Context())
	signed.Header.Set(headerAuthorization, session.BearerHeader())
	signed.Header.Set(headerUserAgent, s.userAgent)
	signed.Header.Set(headerCorrelationID, uuid.NewString())

	s.metrics.RecordSignedRequest()
	return signed
}

// Transport wraps a base RoundTripper so every request sent through it is
// signed. Resource services share one HTTP client built on this.
func (s *Signer) Transport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &signingTransport{signer: s, base: base}
}

type signingTransport struct {
	signer *Signer
	base   http.RoundTripper
}

// RoundTrip implements http.RoundTripper.
func (t *signingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.base.RoundTrip(t.signer.Apply(req))
}
