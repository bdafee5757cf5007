package circuitbreaker

import (
	"context"
	"errors"

	"github.com/sony/gobreaker"

	"newsdeck/internal/repository"
)

// BlobStore wraps a repository.BlobStore with circuit breaker protection.
// When the local database keeps failing, callers get gobreaker.ErrOpenState
// immediately and fall back to their documented defaults.
type BlobStore struct {
	cb    *CircuitBreaker
	inner repository.BlobStore
}

// NewBlobStore wraps inner using StoreConfig.
func NewBlobStore(inner repository.BlobStore) *BlobStore {
	return NewBlobStoreWithConfig(inner, StoreConfig())
}

// NewBlobStoreWithConfig wraps inner with a custom configuration.
// ErrBlobNotFound never counts as a failure.
func NewBlobStoreWithConfig(inner repository.BlobStore, cfg Config) *BlobStore {
	userSuccess := cfg.IsSuccessful
	cfg.IsSuccessful = func(err error) bool {
		if err == nil || errors.Is(err, repository.ErrBlobNotFound) {
			return true
		}
		return userSuccess != nil && userSuccess(err)
	}
	return &BlobStore{cb: New(cfg), inner: inner}
}

var _ repository.BlobStore = (*BlobStore)(nil)

func (s *BlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	result, err := s.cb.Execute(func() (interface{}, error) {
		return s.inner.Get(ctx, key)
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

func (s *BlobStore) Set(ctx context.Context, key string, value []byte) error {
	return s.cb.Do(func() error { return s.inner.Set(ctx, key, value) })
}

func (s *BlobStore) Delete(ctx context.Context, keys ...string) error {
	return s.cb.Do(func() error { return s.inner.Delete(ctx, keys...) })
}

func (s *BlobStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	result, err := s.cb.Execute(func() (interface{}, error) {
		return s.inner.Keys(ctx, prefix)
	})
	if err != nil {
		return nil, err
	}
	return result.([]string), nil
}

// State returns the current state of the circuit breaker.
func (s *BlobStore) State() gobreaker.State {
	return s.cb.State()
}
