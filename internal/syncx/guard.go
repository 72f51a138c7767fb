// Package syncx provides small synchronization primitives.
package syncx

import (
	"sync"
	"sync/atomic"
)

// Guard publishes a value written by one owner and read by many.
type Guard[T any] struct {
	mu    sync.RWMutex
	value T
}

// NewGuard creates a guarded value.
func NewGuard[T any](initial T) *Guard[T] {
	return &Guard[T]{value: initial}
}

// Get returns the current value. T should be immutable once published.
func (g *Guard[T]) Get() T {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.value
}

// Set atomically replaces the value.
func (g *Guard[T]) Set(v T) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.value = v
}

// Slot admits at most one holder at a time. Acquisition never blocks.
type Slot struct {
	held atomic.Bool
}

// TryAcquire takes the slot, reporting false if it is already held.
func (s *Slot) TryAcquire() bool {
	return s.held.CompareAndSwap(false, true)
}

// Release frees the slot. Releasing a free slot is a no-op.
func (s *Slot) Release() {
	s.held.Store(false)
}

// Held reports whether the slot is currently taken.
func (s *Slot) Held() bool {
	return s.held.Load()
}
