// Package memory is a process-local store.Store backed by maps.
package memory

import (
	"context"
	"sync"

	"github.com/MrEthical07/goMFA/store"
)

type key struct {
	principal string
	kind      store.Kind
}

// Store keeps documents in memory. The zero value is not usable; call New.
type Store struct {
	mu   sync.RWMutex
	docs map[key][]byte
}

var _ store.Store = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	return &Store{docs: make(map[key][]byte)}
}

// Get returns a copy of the stored document.
func (s *Store) Get(_ context.Context, principalID string, kind store.Kind) ([]byte, error) {
	if !kind.Valid() {
		return nil, store.ErrInvalidKind
	}
	s.mu.RLock()
	doc, ok := s.docs[key{principalID, kind}]
	s.mu.RUnlock()
	if !ok {
		return nil, store.ErrNotFound
	}
	return append([]byte(nil), doc...), nil
}

// Set stores a copy of value.
func (s *Store) Set(_ context.Context, principalID string, kind store.Kind, value []byte) error {
	if !kind.Valid() {
		return store.ErrInvalidKind
	}
	s.mu.Lock()
	s.docs[key{principalID, kind}] = append([]byte(nil), value...)
	s.mu.Unlock()
	return nil
}

// Delete removes the document if present.
func (s *Store) Delete(_ context.Context, principalID string, kind store.Kind) error {
	if !kind.Valid() {
		return store.ErrInvalidKind
	}
	s.mu.Lock()
	delete(s.docs, key{principalID, kind})
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored documents.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}
