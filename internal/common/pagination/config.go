// Package pagination provides cursor pagination helpers: page size bounds and
// duplicate-free merging of incrementally loaded pages.
package pagination

// Config bounds the batch size of a paginated load.
type Config struct {
	DefaultLimit int // Items per load when the caller does not choose
	MaxLimit     int // Largest batch ever requested
}

// DefaultConfig returns the feed defaults: batches of 50, at most 200.
func DefaultConfig() Config {
	return Config{
		DefaultLimit: 50,
		MaxLimit:     200,
	}
}

// ClampLimit maps a requested batch size into [1, MaxLimit], using
// DefaultLimit for non-positive requests.
func (c Config) ClampLimit(limit int) int {
	if limit <= 0 {
		return c.DefaultLimit
	}
	if limit > c.MaxLimit {
		return c.MaxLimit
	}
	return limit
}
