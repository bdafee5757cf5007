package entity

import "time"

// CacheEntry is a cached payload with its write time and time-to-live.
// Data holds the JSON-encoded payload so entries stay opaque to the store.
type CacheEntry struct {
	Data      []byte        `cbor:"data"`
	Timestamp time.Time     `cbor:"timestamp"`
	TTL       time.Duration `cbor:"ttl"`
}

// Expired reports whether the entry's TTL has elapsed at now.
func (e *CacheEntry) Expired(now time.Time) bool {
	return now.Sub(e.Timestamp) > e.TTL
}
