// Copyright (c) 2026 AegisLabs.
// Please see LICENSE for details.

package aegis

import (
	"sync"

	"github.com/AegisLabs/aegis/global"
)

// EventKind enumerates the lifecycle points listeners can attach to.
type EventKind int

const (
	// BeforeRefresh fires after new credentials are committed but before
	// the chat transport reconnects with them.
	BeforeRefresh EventKind = iota
	// AfterRefresh fires once the transport has reconnected with the new
	// credentials.
	AfterRefresh
	// Shutdown fires at the start of an orderly teardown.
	Shutdown
)

// String returns the event kind name.
func (k EventKind) String() string {
	switch k {
	case BeforeRefresh:
		return "before-refresh"
	case AfterRefresh:
		return "after-refresh"
	case Shutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// ListenerFunc is a lifecycle listener callback. Listeners run
// synchronously on the goroutine that triggered the event.
type ListenerFunc func()

// ListenerID identifies a registration so it can be removed later.
type ListenerID int64

type listenerEntry struct {
	id ListenerID
	fn ListenerFunc
}

// eventBus dispatches lifecycle events to registered listeners.
// Listeners for a kind run in registration order; a panic in one listener
// is recovered and logged so the remaining listeners still run. After
// Dispose, Invoke is a no-op.
type eventBus struct {
	mu        sync.Mutex
	nextID    ListenerID
	listeners map[EventKind][]listenerEntry
	disposed  bool
	logger    global.Logger
}

func newEventBus(logger global.Logger) *eventBus {
	return &eventBus{
		listeners: make(map[EventKind][]listenerEntry),
		logger:    logger,
	}
}

// Register adds a listener for the given event kind and returns its
// registration id.
func (b *eventBus) Register(kind EventKind, fn ListenerFunc) ListenerID {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.disposed {
		return 0
	}

	b.nextID++
	id := b.nextID
	b.listeners[kind] = append(b.listeners[kind], listenerEntry{id: id, fn: fn})
	return id
}

// Remove deletes a listener registration. Unknown ids are ignored.
func (b *eventBus) Remove(id ListenerID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for kind, entries := range b.listeners {
		for i, entry := range entries {
			if entry.id == id {
				b.listeners[kind] = append(entries[:i:i], entries[i+1:]...)
				return
			}
		}
	}
}

// Invoke calls all listeners registered for the kind, synchronously and in
// registration order.
func (b *eventBus) Invoke(kind EventKind) {
	b.mu.Lock()
	if b.disposed {
		b.mu.Unlock()
		return
	}
	entries := make([]listenerEntry, len(b.listeners[kind]))
	copy(entries, b.listeners[kind])
	b.mu.Unlock()

	for _, entry := range entries {
		b.invokeOne(kind, entry)
	}
}

// invokeOne runs a single listener, isolating panics so one failing
// listener cannot abort the rest of the dispatch.
func (b *eventBus) invokeOne(kind EventKind, entry listenerEntry) {
	defer func() {
		if r := recover(); r != nil {
			if b.logger != nil {
				b.logger.Errorf("Listener %d panicked during %s event: %v", entry.id, kind, r)
			}
		}
	}()
	entry.fn()
}

// Dispose clears all registrations. Subsequent Invoke calls do nothing.
func (b *eventBus) Dispose() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.disposed = true
	b.listeners = make(map[EventKind][]listenerEntry)
}
