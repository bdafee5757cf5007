// Package repository defines the persistence ports of the engine.
// Every piece of local state (ledger, embedding, settings, engagement, cache)
// is an opaque record stored under a string key in a BlobStore.
package repository

import (
	"context"
	"errors"
)

// ErrBlobNotFound is returned by BlobStore.Get when the key is absent.
var ErrBlobNotFound = errors.New("blob not found")

// BlobStore is a key-value store of opaque records.
type BlobStore interface {
	// Get returns the value stored under key, or ErrBlobNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes the given keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error

	// Keys returns every key that starts with prefix, in ascending order.
	// An empty prefix lists all keys.
	Keys(ctx context.Context, prefix string) ([]string, error)
}
