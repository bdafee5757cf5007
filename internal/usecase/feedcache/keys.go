package feedcache

import (
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/zeebo/blake3"
)

// Key prefixes. Every cache key starts with exactly one of them.
const (
	FeedPrefix      = "feed_"
	ArticlePrefix   = "article_"
	BookmarksPrefix = "bookmarks_"
)

// digest returns a stable hex digest of params. encoding/json sorts map keys,
// so equal maps always produce equal digests.
func digest(params map[string]string) string {
	if params == nil {
		params = map[string]string{}
	}
	canonical, _ := json.Marshal(params)
	sum := blake3.Sum256(canonical)
	return hex.EncodeToString(sum[:16])
}

// FeedKey is the key of a first-page feed entry: feed_<type>_<digest>.
func FeedKey(feedType string, params map[string]string) string {
	return FeedPrefix + feedType + "_" + digest(params)
}

// FeedTypePrefix is the prefix shared by every entry of one feed type.
func FeedTypePrefix(feedType string) string {
	return FeedPrefix + feedType + "_"
}

// ArticleKey is the key of an article detail entry.
func ArticleKey(articleID string) string {
	return ArticlePrefix + articleID
}

// BookmarksKey is the key of a bookmark listing entry.
func BookmarksKey(params map[string]string) string {
	return BookmarksPrefix + digest(params)
}

// category labels a key for metrics and stats.
func category(key string) string {
	switch {
	case strings.HasPrefix(key, FeedPrefix):
		return "feed"
	case strings.HasPrefix(key, ArticlePrefix):
		return "article"
	case strings.HasPrefix(key, BookmarksPrefix):
		return "bookmarks"
	}
	return "other"
}

// feedType extracts <type> from feed_<type>_<digest>.
func feedType(key string) string {
	rest := strings.TrimPrefix(key, FeedPrefix)
	if i := strings.LastIndexByte(rest, '_'); i >= 0 {
		return rest[:i]
	}
	return rest
}
