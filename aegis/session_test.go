// Copyright (c) 2026 AegisLabs.
// Please see LICENSE for details.

package aegis

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionBearerHeader(t *testing.T) {
	session := &Session{AccessToken: "abc123"}
	assert.Equal(t, "bearer abc123", session.BearerHeader())
}

func TestSessionAccessExpiresIn(t *testing.T) {
	session := &Session{AccessExpiresAt: time.Now().Add(time.Hour)}
	remaining := session.AccessExpiresIn()
	assert.Greater(t, remaining, 59*time.Minute)
	assert.LessOrEqual(t, remaining, time.Hour)

	expired := &Session{AccessExpiresAt: time.Now().Add(-time.Minute)}
	assert.Negative(t, expired.AccessExpiresIn())
}

func TestSessionStoreBeforeLogin(t *testing.T) {
	store := &sessionStore{}

	_, err := store.Current()
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.Nil(t, store.Peek())
}

func TestSessionStoreSwapVisibility(t *testing.T) {
	store := &sessionStore{}

	first := &Session{AccountID: "acct", AccessToken: "token-1"}
	store.Swap(first)

	current, err := store.Current()
	require.NoError(t, err)
	assert.Same(t, first, current)

	second := &Session{AccountID: "acct", AccessToken: "token-2"}
	store.Swap(second)
	assert.Same(t, second, store.Peek())
}

// Readers must only ever observe a complete session, never a mix of an
// old and a new one.
func TestSessionStoreConcurrentSwapAtomicity(t *testing.T) {
	store := &sessionStore{}
	store.Swap(&Session{AccessToken: "token-0", RefreshToken: "refresh-0"})

	const writers = 4
	const reads = 2000

	done := make(chan struct{})
	var wg sync.WaitGroup

	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; ; i++ {
				select {
				case <-done:
					return
				default:
				}
				n := fmt.Sprintf("%d-%d", w, i)
				store.Swap(&Session{AccessToken: "token-" + n, RefreshToken: "refresh-" + n})
			}
		}(w)
	}

	for i := 0; i < reads; i++ {
		s := store.Peek()
		require.NotNil(t, s)
		// Paired fields always belong to the same generation
		assert.Equal(t, s.AccessToken[len("token-"):], s.RefreshToken[len("refresh-"):])
	}

	close(done)
	wg.Wait()
}
