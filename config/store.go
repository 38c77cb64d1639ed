// Package config provides typed, hot-reloadable settings: TOML or YAML
// files, fsnotify-based watching and the workspace/didChangeConfiguration
// bridge.
package config

import (
	"sync"
	"sync/atomic"
)

// Store holds the current settings with atomic read/swap semantics.
type Store[T any] struct {
	value atomic.Pointer[T]

	mu        sync.Mutex
	nextID    int
	listeners map[int]func(old, new_ *T)
}

// NewStore creates a store with the given initial value.
func NewStore[T any](initial *T) *Store[T] {
	s := &Store[T]{listeners: make(map[int]func(old, new_ *T))}
	s.value.Store(initial)
	return s
}

// Get returns the current value.
func (s *Store[T]) Get() *T {
	return s.value.Load()
}

// Swap replaces the value and notifies the listeners in registration
// order. A nil value is ignored.
func (s *Store[T]) Swap(new_ *T) *T {
	if new_ == nil {
		return s.Get()
	}
	old := s.value.Swap(new_)

	s.mu.Lock()
	fns := make([]func(old, new_ *T), 0, len(s.listeners))
	for id := 0; id < s.nextID; id++ {
		if fn, ok := s.listeners[id]; ok {
			fns = append(fns, fn)
		}
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(old, new_)
	}
	return old
}

// OnChange registers fn for every later Swap.
func (s *Store[T]) OnChange(fn func(old, new_ *T)) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}
