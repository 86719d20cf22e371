// Package store holds the shared in-memory key-value state.
//
// One Store instance lives for the whole process and is shared by every
// connection. A single exclusive lock serializes all mutations, so each
// command observed by a client is one indivisible step: a concurrent
// reader never sees a partially applied multi-key write.
package store

import (
	"sync"

	"github.com/stefankamdem/minikv/internal/resp"
)

// Pair is one key-value entry of a multi-key write.
type Pair struct {
	Key   string
	Value resp.Value
}

// Store is a mutable mapping from key to protocol value.
type Store struct {
	mu   sync.RWMutex
	data map[string]resp.Value
}

// New creates an empty store.
func New() *Store {
	return &Store{data: make(map[string]resp.Value)}
}

// Get returns the value for key, or the null value if absent.
func (s *Store) Get(key string) resp.Value {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.data[key]; ok {
		return v
	}
	return resp.Null()
}

// Set stores value under key, overwriting any previous entry.
func (s *Store) Set(key string, value resp.Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
}

// Delete removes key and reports whether it was present.
func (s *Store) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[key]; !ok {
		return false
	}
	delete(s.data, key)
	return true
}

// Flush empties the store and returns the number of entries removed.
func (s *Store) Flush() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.data)
	s.data = make(map[string]resp.Value)
	return n
}

// MGet returns one value per requested key, in request order. Absent keys
// yield the null value, never an omission. All keys are read under one
// lock hold so the result is a consistent snapshot.
func (s *Store) MGet(keys ...string) []resp.Value {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]resp.Value, 0, len(keys))
	for _, key := range keys {
		if v, ok := s.data[key]; ok {
			out = append(out, v)
		} else {
			out = append(out, resp.Null())
		}
	}
	return out
}

// MSet writes all pairs under one lock hold. Within a single call a later
// pair wins on a duplicate key, matching ordinary map construction.
func (s *Store) MSet(pairs []Pair) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range pairs {
		s.data[p.Key] = p.Value
	}
}

// Len returns the current number of entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
