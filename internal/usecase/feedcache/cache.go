// Package feedcache is the TTL-keyed offline cache of feed pages, article
// details and bookmark listings. Expired entries are deleted when detected and
// never returned, except through Peek for the serve-stale-on-error path.
package feedcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"newsdeck/internal/common/clock"
	"newsdeck/internal/domain/entity"
	"newsdeck/internal/infra/codec"
	"newsdeck/internal/observability/metrics"
	"newsdeck/internal/repository"
)

// Default time-to-live per entry category.
const (
	FeedTTL      = time.Hour
	ArticleTTL   = time.Hour
	BookmarksTTL = 15 * time.Minute
)

// Stats counts cached entries by category.
type Stats struct {
	Feeds     int            `json:"feeds"`
	FeedTypes map[string]int `json:"feed_types"`
	Articles  int            `json:"articles"`
	Bookmarks int            `json:"bookmarks"`
	Total     int            `json:"total"`
}

// Cache stores JSON payloads as entity.CacheEntry blobs.
type Cache struct {
	store  repository.BlobStore
	clock  clock.Clock
	logger *slog.Logger
}

// New creates a Cache over store.
func New(store repository.BlobStore, clk clock.Clock, logger *slog.Logger) *Cache {
	if clk == nil {
		clk = clock.Real{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{store: store, clock: clk, logger: logger}
}

// Get returns the payload under key if present and live. An expired entry is
// deleted. Storage failures are logged and reported as a miss.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	entry, ok := c.read(ctx, key)
	if !ok {
		metrics.RecordCacheLookup(category(key), "miss")
		return nil, false
	}
	if entry.Expired(c.clock.Now()) {
		if err := c.store.Delete(ctx, key); err != nil {
			metrics.RecordStorageError("cache_delete")
		}
		metrics.RecordCacheLookup(category(key), "expired")
		c.logger.Debug("removed expired cache entry", slog.String("key", key))
		return nil, false
	}
	metrics.RecordCacheLookup(category(key), "hit")
	return entry.Data, true
}

// Peek returns the payload under key and whether it is still live, without
// deleting an expired entry. Callers holding an expired payload may only use
// it as an error fallback.
func (c *Cache) Peek(ctx context.Context, key string) (data []byte, fresh bool, ok bool) {
	entry, ok := c.read(ctx, key)
	if !ok {
		metrics.RecordCacheLookup(category(key), "miss")
		return nil, false, false
	}
	fresh = !entry.Expired(c.clock.Now())
	if fresh {
		metrics.RecordCacheLookup(category(key), "hit")
	} else {
		metrics.RecordCacheLookup(category(key), "stale")
	}
	return entry.Data, fresh, true
}

// Delete removes the entry under key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.store.Delete(ctx, key); err != nil {
		metrics.RecordStorageError("cache_delete")
		return fmt.Errorf("delete cache entry %s: %w", key, err)
	}
	return nil
}

// Put stores data under key with ttl, stamped with the current time.
func (c *Cache) Put(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return c.write(ctx, key, entity.CacheEntry{Data: data, Timestamp: c.clock.Now(), TTL: ttl})
}

// GetJSON decodes a live entry into out.
func (c *Cache) GetJSON(ctx context.Context, key string, out interface{}) bool {
	data, ok := c.Get(ctx, key)
	return ok && c.decode(key, data, out)
}

// PutJSON encodes v and stores it under key.
func (c *Cache) PutJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode cache entry %s: %w", key, err)
	}
	return c.Put(ctx, key, data, ttl)
}

// InvalidatePrefix deletes every entry whose key starts with prefix and
// returns how many were removed.
func (c *Cache) InvalidatePrefix(ctx context.Context, prefix string) (int, error) {
	keys, err := c.store.Keys(ctx, prefix)
	if err == nil && len(keys) > 0 {
		err = c.store.Delete(ctx, keys...)
	}
	if err != nil {
		metrics.RecordStorageError("cache_invalidate")
		c.logger.Error("failed to invalidate cache",
			slog.String("prefix", prefix),
			slog.Any("error", err))
		return 0, fmt.Errorf("invalidate %s: %w", prefix, err)
	}
	metrics.RecordCacheInvalidation(prefix, len(keys))
	if len(keys) > 0 {
		c.logger.Debug("invalidated cache entries",
			slog.String("prefix", prefix),
			slog.Int("count", len(keys)))
	}
	return len(keys), nil
}

// ClearFeed drops every cached page of one feed type.
func (c *Cache) ClearFeed(ctx context.Context, feedType string) (int, error) {
	return c.InvalidatePrefix(ctx, FeedTypePrefix(feedType))
}

// Clear drops every feed, article and bookmark entry.
func (c *Cache) Clear(ctx context.Context) error {
	var errs []error
	for _, prefix := range []string{FeedPrefix, ArticlePrefix, BookmarksPrefix} {
		if _, err := c.InvalidatePrefix(ctx, prefix); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Stats counts entries by category, including not yet detected expired ones.
func (c *Cache) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{FeedTypes: map[string]int{}}
	for _, prefix := range []string{FeedPrefix, ArticlePrefix, BookmarksPrefix} {
		keys, err := c.store.Keys(ctx, prefix)
		if err != nil {
			metrics.RecordStorageError("cache_keys")
			return Stats{FeedTypes: map[string]int{}}, fmt.Errorf("cache stats: %w", err)
		}
		for _, k := range keys {
			switch category(k) {
			case "feed":
				stats.Feeds++
				stats.FeedTypes[feedType(k)]++
			case "article":
				stats.Articles++
			case "bookmarks":
				stats.Bookmarks++
			}
		}
	}
	stats.Total = stats.Feeds + stats.Articles + stats.Bookmarks
	return stats, nil
}

// PatchArticleEngagement applies patch to the engagement block of the cached
// detail of articleID, keeping the entry's timestamp and TTL. It reports
// whether a live entry was patched.
func (c *Cache) PatchArticleEngagement(ctx context.Context, articleID string, patch entity.EngagementPatch) (bool, error) {
	key := ArticleKey(articleID)
	entry, ok := c.read(ctx, key)
	if !ok || entry.Expired(c.clock.Now()) {
		return false, nil
	}

	var article entity.Article
	if err := json.Unmarshal(entry.Data, &article); err != nil {
		return false, fmt.Errorf("patch %s: %w", key, err)
	}
	if article.Engagement == nil {
		article.Engagement = &entity.ArticleEngagement{}
	}
	e := article.Engagement
	if patch.Liked != nil {
		e.Liked, e.UserLiked = *patch.Liked, *patch.Liked
	}
	if patch.Bookmarked != nil {
		e.Bookmarked, e.UserBookmarked = *patch.Bookmarked, *patch.Bookmarked
	}
	if patch.Shared != nil {
		e.Shared, e.UserShared = *patch.Shared, *patch.Shared
	}

	data, err := json.Marshal(article)
	if err != nil {
		return false, fmt.Errorf("patch %s: %w", key, err)
	}
	entry.Data = data
	if err := c.write(ctx, key, entry); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Cache) read(ctx context.Context, key string) (entity.CacheEntry, bool) {
	var entry entity.CacheEntry
	blob, err := c.store.Get(ctx, key)
	if errors.Is(err, repository.ErrBlobNotFound) {
		return entry, false
	}
	if err != nil {
		metrics.RecordStorageError("cache_get")
		c.logger.Error("failed to read cache entry",
			slog.String("key", key),
			slog.Any("error", err))
		return entry, false
	}
	if err := codec.Unmarshal(blob, &entry); err != nil {
		metrics.RecordStorageError("cache_decode")
		c.logger.Warn("discarding unreadable cache entry",
			slog.String("key", key),
			slog.Any("error", err))
		_ = c.store.Delete(ctx, key)
		return entry, false
	}
	return entry, true
}

func (c *Cache) write(ctx context.Context, key string, entry entity.CacheEntry) error {
	blob, err := codec.Marshal(entry)
	if err == nil {
		err = c.store.Set(ctx, key, blob)
	}
	if err != nil {
		metrics.RecordStorageError("cache_set")
		c.logger.Error("failed to write cache entry",
			slog.String("key", key),
			slog.Any("error", err))
		return fmt.Errorf("write cache entry %s: %w", key, err)
	}
	return nil
}

func (c *Cache) decode(key string, data []byte, out interface{}) bool {
	if err := json.Unmarshal(data, out); err != nil {
		c.logger.Warn("cached payload does not decode",
			slog.String("key", key),
			slog.Any("error", err))
		return false
	}
	return true
}
