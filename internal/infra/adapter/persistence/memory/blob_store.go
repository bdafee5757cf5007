// Package memory provides an in-process BlobStore for tests and ephemeral sessions.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"newsdeck/internal/repository"
)

// BlobStore is a map-backed repository.BlobStore. It is safe for concurrent use.
// Values are copied on the way in and out so callers cannot alias stored bytes.
type BlobStore struct {
	mu   sync.RWMutex
	data map[string][]byte

	// failWith, when set, is returned by every operation.
	failWith error
}

// NewBlobStore creates an empty in-memory blob store.
func NewBlobStore() *BlobStore {
	return &BlobStore{data: make(map[string][]byte)}
}

var _ repository.BlobStore = (*BlobStore)(nil)

// FailWith makes every subsequent operation return err. Pass nil to recover.
func (s *BlobStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWith = err
}

func (s *BlobStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	v, ok := s.data[key]
	if !ok {
		return nil, repository.ErrBlobNotFound
	}
	return append([]byte(nil), v...), nil
}

func (s *BlobStore) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	s.data[key] = append([]byte(nil), value...)
	return nil
}

func (s *BlobStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	for _, k := range keys {
		delete(s.data, k)
	}
	return nil
}

func (s *BlobStore) Keys(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Len returns the number of stored keys.
func (s *BlobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
