// Package bus is the in-process "ledger changed" channel between the
// attendance engine and its live observers.
//
// Publish is synchronous: every observer runs on the publisher's goroutine,
// in registration order, before Publish returns. The scan path is blocked
// for as long as observers take, so observers must hand off any network I/O.
package bus

import (
	"slices"
	"sync"

	"github.com/BrandonDHaskell/rollcall/internal/rollcall/types"
)

// Observer receives every snapshot published after it subscribes.
type Observer interface {
	OnSnapshot(snap types.Snapshot)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(snap types.Snapshot)

func (f ObserverFunc) OnSnapshot(snap types.Snapshot) { f(snap) }

// Subscription identifies one registration.
type Subscription uint64

type entry struct {
	id  Subscription
	obs Observer
}

// Bus holds an ordered list of observers. The zero value is ready to use.
type Bus struct {
	mu        sync.RWMutex
	next      Subscription
	observers []entry
}

func New() *Bus { return &Bus{} }

// Subscribe registers obs and returns a handle for Unsubscribe. Any number
// of observers may be registered at once.
func (b *Bus) Subscribe(obs Observer) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	b.observers = append(b.observers, entry{id: b.next, obs: obs})
	return b.next
}

// Unsubscribe removes sub. Unknown or already removed subscriptions are a
// no-op.
func (b *Bus) Unsubscribe(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, e := range b.observers {
		if e.id == sub {
			b.observers = append(b.observers[:i:i], b.observers[i+1:]...)
			return
		}
	}
}

// Len returns the number of registered observers.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.observers)
}

// Publish delivers snap once to each observer registered at call time.
// Each observer gets its own copy, so one that sorts or edits its snapshot
// cannot change what the next observer sees.
// Observers may subscribe or unsubscribe from inside OnSnapshot; the change
// applies from the next Publish.
func (b *Bus) Publish(snap types.Snapshot) {
	b.mu.RLock()
	targets := make([]Observer, len(b.observers))
	for i, e := range b.observers {
		targets[i] = e.obs
	}
	b.mu.RUnlock()

	for _, obs := range targets {
		obs.OnSnapshot(slices.Clone(snap))
	}
}
