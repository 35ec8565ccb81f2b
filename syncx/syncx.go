// © 2024 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package syncx contains useful synchronization primitives.
package syncx

import (
	"iter"
	"sync"

	"github.com/go4org/hashtriemap"
)

// Lazy represents a lazily computed value.
type Lazy[T any] struct {
	once sync.Once
	val  T
}

// Get returns T, calling f to compute it, if necessary.
func (l *Lazy[T]) Get(f func() T) T {
	l.once.Do(func() { l.val = f() })
	return l.val
}

// LimitedWaitGroup is a [sync.WaitGroup] that limits the number of concurrently
// working goroutines.
type LimitedWaitGroup struct {
	wg      sync.WaitGroup
	workers chan struct{}
}

// NewLimitedWaitGroup returns a new [LimitedWaitGroup].
func NewLimitedWaitGroup(limit int) *LimitedWaitGroup {
	return &LimitedWaitGroup{
		workers: make(chan struct{}, limit),
	}
}

// Go starts a new goroutine that executes f.
// It blocks if the number of active goroutines reaches the concurrency limit.
func (lwg *LimitedWaitGroup) Go(f func()) {
	lwg.Add(1)
	go func() {
		defer lwg.Done()
		f()
	}()
}

// Add increments the counter of the [LimitedWaitGroup] by the specified delta.
// It blocks if the number of active goroutines reaches the concurrency limit.
func (lwg *LimitedWaitGroup) Add(delta int) {
	for range delta {
		lwg.workers <- struct{}{}
		lwg.wg.Add(1)
	}
}

// Done decrements the counter of the [LimitedWaitGroup] by one and releases a
// slot, allowing another goroutine to start.
func (lwg *LimitedWaitGroup) Done() {
	<-lwg.workers
	lwg.wg.Done()
}

// Wait blocks until the counter of the [LimitedWaitGroup] becomes zero.
func (lwg *LimitedWaitGroup) Wait() { lwg.wg.Wait() }

// Map is a concurrent map safe for use by multiple goroutines without
// additional locking. The zero Map is empty and ready for use.
type Map[K comparable, V any] struct{ m hashtriemap.HashTrieMap[K, V] }

// Load returns the value stored under key.
func (m *Map[K, V]) Load(key K) (value V, ok bool) { return m.m.Load(key) }

// LoadOrStore returns the existing value for key if present. Otherwise, it
// stores and returns value. loaded is true if the value was already present.
func (m *Map[K, V]) LoadOrStore(key K, value V) (actual V, loaded bool) {
	return m.m.LoadOrStore(key, value)
}

// Store sets the value for key.
func (m *Map[K, V]) Store(key K, value V) { m.m.Store(key, value) }

// All returns an iterator over the keys and values present in the map. It
// reflects no particular snapshot if the map is modified concurrently.
func (m *Map[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) { m.m.Range(yield) }
}
