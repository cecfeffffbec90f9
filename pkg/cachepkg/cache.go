// Package cachepkg provides a single-value in-process cache with a TTL.
//
// It replaces ambient "latest snapshot" globals with an explicit
// collaborator that is constructed once and injected.
package cachepkg

import (
	"sync"
	"time"
)

// Value caches one item of type T for at most a TTL.
type Value[T any] struct {
	mu       sync.RWMutex
	ttl      time.Duration
	item     T
	storedAt time.Time
	set      bool
}

// New returns a Value cache holding items for the given ttl.
func New[T any](ttl time.Duration) *Value[T] {
	return &Value[T]{ttl: ttl}
}

// Set stores the item and restarts the TTL clock.
func (v *Value[T]) Set(item T) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.item = item
	v.storedAt = time.Now()
	v.set = true
}

// Get returns the cached item and true while it is fresh.
func (v *Value[T]) Get() (T, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if !v.set || time.Since(v.storedAt) > v.ttl {
		var zero T
		return zero, false
	}

	return v.item, true
}

// Invalidate drops the cached item.
func (v *Value[T]) Invalidate() {
	v.mu.Lock()
	defer v.mu.Unlock()

	var zero T
	v.item = zero
	v.set = false
}
