// Package store provides the record stores behind cache layers.
package store

import (
	"sync"
	"time"
)

// Store holds cached attribute values addressed by access key. Plain
// attributes use a nil key. A ttl of zero or less never expires.
type Store interface {
	Load(key any) (any, bool, error)
	Save(key any, value any, ttl time.Duration) error
	Delete(key any) error
	Clear() error
	Keys() []any
	Len() int
	Close() error
}

type entry struct {
	value   any
	expires time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expires.IsZero() && !now.Before(e.expires)
}

// MapStore keeps values as-is in a map, so a load returns the identical
// value that was saved.
type MapStore struct {
	mu      sync.Mutex
	entries map[any]entry
	now     func() time.Time
}

// NewMapStore creates an empty map store.
func NewMapStore() *MapStore {
	return &MapStore{
		entries: make(map[any]entry),
		now:     time.Now,
	}
}

// Load returns the value stored under key unless it expired.
func (s *MapStore) Load(key any) (any, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	if e.expired(s.now()) {
		delete(s.entries, key)
		return nil, false, nil
	}
	return e.value, true, nil
}

// Save stores a value. A zero ttl never expires.
func (s *MapStore) Save(key any, value any, ttl time.Duration) error {
	e := entry{value: value}
	if ttl > 0 {
		e.expires = s.now().Add(ttl)
	}

	s.mu.Lock()
	s.entries[key] = e
	s.mu.Unlock()
	return nil
}

// Delete removes key.
func (s *MapStore) Delete(key any) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

// Clear removes all entries.
func (s *MapStore) Clear() error {
	s.mu.Lock()
	s.entries = make(map[any]entry)
	s.mu.Unlock()
	return nil
}

// Keys returns the keys of unexpired entries.
func (s *MapStore) Keys() []any {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	keys := make([]any, 0, len(s.entries))
	for k, e := range s.entries {
		if !e.expired(now) {
			keys = append(keys, k)
		}
	}
	return keys
}

// Len returns the number of entries.
func (s *MapStore) Len() int {
	return len(s.Keys())
}

// Close does nothing for the map store.
func (s *MapStore) Close() error {
	return s.Clear()
}

var _ Store = (*MapStore)(nil)
