// Package storage provides the persisted key-value capability backing the
// client session. Values are opaque strings addressed by fixed keys.
package storage

import (
	"errors"
	"sort"
	"sync"
)

// Keys holding the credential pair.
const (
	KeyToken = "token"
	KeyUser  = "user"
)

// ErrCorrupt is returned when a store file exists but cannot be decoded.
var ErrCorrupt = errors.New("storage: corrupt store file")

// Reader is the read side of a Store.
type Reader interface {
	// Get returns the value for key. ok is false when the key is absent.
	Get(key string) (value string, ok bool, err error)
}

// Store is a string-keyed, string-valued persistent map.
type Store interface {
	Reader

	// Set writes value under key, replacing any previous value.
	Set(key, value string) error

	// Remove deletes key. Removing an absent key is not an error.
	Remove(key string) error
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

// Get returns the value stored under key.
func (s *MemoryStore) Get(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.values[key]
	return v, ok, nil
}

// Set stores value under key.
func (s *MemoryStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = value
	return nil
}

// Remove deletes key.
func (s *MemoryStore) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.values, key)
	return nil
}

// Keys returns the present keys in sorted order.
func (s *MemoryStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Compile-time verification that stores implement Store
var _ Store = (*MemoryStore)(nil)
var _ Store = (*FileStore)(nil)
