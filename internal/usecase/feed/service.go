package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"golang.org/x/sync/errgroup"

	"newsdeck/internal/domain/entity"
	"newsdeck/internal/infra/remote"
	"newsdeck/internal/usecase/engagement"
	"newsdeck/internal/usecase/feedcache"
)

// Remote is the part of the Remote API the feed use cases depend on.
type Remote interface {
	Personalized(ctx context.Context, params remote.Params) (*entity.FeedPage, error)
	Trending(ctx context.Context, params remote.Params) (*entity.FeedPage, error)
	Search(ctx context.Context, params remote.Params) (*entity.FeedPage, error)
	Bookmarks(ctx context.Context, params remote.Params) (*entity.FeedPage, error)
	Article(ctx context.Context, id string) (*entity.Article, error)

	Like(ctx context.Context, id string) remote.NotifyResult
	Unlike(ctx context.Context, id string) remote.NotifyResult
	Bookmark(ctx context.Context, id string) remote.NotifyResult
	Unbookmark(ctx context.Context, id string) remote.NotifyResult
	Share(ctx context.Context, id string, share remote.ShareRequest) remote.NotifyResult
}

// Origin tells where a returned payload came from.
type Origin string

const (
	OriginNetwork Origin = "network"
	OriginCache   Origin = "cache"
	OriginStale   Origin = "stale"
)

// Page is a feed page with its engagement flags reconciled.
type Page struct {
	entity.FeedPage
	Origin Origin `json:"origin"`
}

// Feed type names used in cache keys.
const (
	TypePersonalized = "personalized"
	TypeTrending     = "trending"
)

// Query parameters that select a variant of a page but not a different page.
var volatileParams = []string{"refresh", "force_fresh", "cursor"}

// Service provides feed, article and engagement use cases.
type Service struct {
	Remote   Remote
	Cache    *feedcache.Cache
	States   *engagement.Store
	Policies Policies
	logger   *slog.Logger
}

// NewService creates a Service with DefaultPolicies.
func NewService(api Remote, cache *feedcache.Cache, states *engagement.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		Remote:   api,
		Cache:    cache,
		States:   states,
		Policies: DefaultPolicies(),
		logger:   logger,
	}
}

// PersonalizedParams returns the personalized feed defaults overlaid with overrides.
func PersonalizedParams(overrides remote.Params) remote.Params {
	return merge(remote.Params{
		"limit":        "50",
		"refresh":      "false",
		"content_type": "mixed",
		"diversify":    "true",
		"force_fresh":  "false",
	}, overrides)
}

// TrendingParams returns the trending feed defaults overlaid with overrides.
func TrendingParams(overrides remote.Params) remote.Params {
	return merge(remote.Params{"timeframe": "24h"}, overrides)
}

// SearchParams returns the search defaults for query overlaid with overrides.
func SearchParams(query string, overrides remote.Params) remote.Params {
	return merge(remote.Params{
		"q":          query,
		"semantic":   "true",
		"date_range": "all",
		"sort":       "relevance",
		"limit":      "20",
	}, overrides)
}

// BookmarksParams returns the bookmark listing defaults overlaid with overrides.
func BookmarksParams(overrides remote.Params) remote.Params {
	return merge(remote.Params{"page": "1", "limit": "20"}, overrides)
}

func merge(defaults, overrides remote.Params) remote.Params {
	for k, v := range overrides {
		defaults[k] = v
	}
	return defaults
}

// cacheParams drops the parameters that must not split the cache key.
func cacheParams(p remote.Params) map[string]string {
	out := make(map[string]string, len(p))
	for k, v := range p {
		out[k] = v
	}
	for _, k := range volatileParams {
		delete(out, k)
	}
	return out
}

// Personalized returns a page of the personalized feed. The first page goes
// through the cache; a page with a cursor is always fetched live and never
// cached. refresh=true skips the cache read but still stores the result.
func (s *Service) Personalized(ctx context.Context, overrides remote.Params) (*Page, error) {
	params := PersonalizedParams(overrides)
	policy := s.Policies.Personalized
	key := feedcache.FeedKey(TypePersonalized, cacheParams(params))
	if params["cursor"] != "" {
		key = ""
	}
	bypass, _ := strconv.ParseBool(params["refresh"])

	page, origin, err := fetchThrough(ctx, s, policy, key, bypass, func(ctx context.Context) (*entity.FeedPage, error) {
		return s.Remote.Personalized(ctx, params)
	})
	if err != nil {
		return nil, fmt.Errorf("personalized feed: %w", err)
	}
	return s.page(ctx, page, origin), nil
}

// RefreshPersonalized fetches a fresh first page, bypassing the cache read.
func (s *Service) RefreshPersonalized(ctx context.Context, overrides remote.Params) (*Page, error) {
	params := merge(remote.Params{}, overrides)
	params["refresh"] = "true"
	params["force_fresh"] = "true"
	delete(params, "cursor")
	return s.Personalized(ctx, params)
}

// Trending returns the trending feed.
func (s *Service) Trending(ctx context.Context, overrides remote.Params) (*Page, error) {
	params := TrendingParams(overrides)
	key := feedcache.FeedKey(TypeTrending, cacheParams(params))
	page, origin, err := fetchThrough(ctx, s, s.Policies.Trending, key, false, func(ctx context.Context) (*entity.FeedPage, error) {
		return s.Remote.Trending(ctx, params)
	})
	if err != nil {
		return nil, fmt.Errorf("trending feed: %w", err)
	}
	return s.page(ctx, page, origin), nil
}

// Search runs a full-text search. Results are never cached.
func (s *Service) Search(ctx context.Context, query string, overrides remote.Params) (*Page, error) {
	if query == "" {
		return nil, fmt.Errorf("search: %w: empty query", entity.ErrInvalidInput)
	}
	params := SearchParams(query, overrides)
	var key string
	if s.Policies.Search.usesCache() {
		key = feedcache.FeedKey("search", params)
	}
	page, origin, err := fetchThrough(ctx, s, s.Policies.Search, key, false, func(ctx context.Context) (*entity.FeedPage, error) {
		return s.Remote.Search(ctx, params)
	})
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return s.page(ctx, page, origin), nil
}

// Bookmarks returns the user's bookmark listing.
func (s *Service) Bookmarks(ctx context.Context, overrides remote.Params) (*Page, error) {
	params := BookmarksParams(overrides)
	key := feedcache.BookmarksKey(params)
	page, origin, err := fetchThrough(ctx, s, s.Policies.Bookmarks, key, false, func(ctx context.Context) (*entity.FeedPage, error) {
		return s.Remote.Bookmarks(ctx, params)
	})
	if err != nil {
		return nil, fmt.Errorf("bookmarks: %w", err)
	}
	return s.page(ctx, page, origin), nil
}

// Article returns the detail of id with engagement reconciled against the
// caller's in-memory flags, the persisted state and the server payload.
func (s *Service) Article(ctx context.Context, id string, caller entity.EngagementPatch) (*entity.Article, Origin, error) {
	if err := entity.ValidateArticleID(id); err != nil {
		return nil, "", err
	}
	article, origin, err := fetchThrough(ctx, s, s.Policies.Article, feedcache.ArticleKey(id), false, func(ctx context.Context) (*entity.Article, error) {
		return s.Remote.Article(ctx, id)
	})
	if err != nil {
		return nil, "", fmt.Errorf("article %s: %w", id, err)
	}
	if article == nil {
		return nil, "", fmt.Errorf("article %s: %w", id, entity.ErrNotFound)
	}
	s.overlay(ctx, article, caller)
	return article, origin, nil
}

// InvalidatePersonalized drops every cached personalized page.
func (s *Service) InvalidatePersonalized(ctx context.Context) error {
	_, err := s.Cache.ClearFeed(ctx, TypePersonalized)
	return err
}

// PreloadResult holds the outcome of each preload. A nil page has its error
// under the same name in Errors.
type PreloadResult struct {
	Personalized *Page
	Trending     *Page
	Bookmarks    *Page
	Errors       map[string]error
}

// Preload warms the cache with the first personalized, trending and bookmark
// pages in parallel. One failed load does not cancel the others.
func (s *Service) Preload(ctx context.Context) PreloadResult {
	var (
		g      errgroup.Group
		result PreloadResult
		errs   [3]error
	)
	g.Go(func() error {
		result.Personalized, errs[0] = s.Personalized(ctx, remote.Params{"limit": "10", "refresh": "false"})
		return nil
	})
	g.Go(func() error {
		result.Trending, errs[1] = s.Trending(ctx, remote.Params{"limit": "10"})
		return nil
	})
	g.Go(func() error {
		result.Bookmarks, errs[2] = s.Bookmarks(ctx, remote.Params{"limit": "10"})
		return nil
	})
	_ = g.Wait()

	result.Errors = map[string]error{}
	for i, name := range []string{TypePersonalized, TypeTrending, "bookmarks"} {
		if errs[i] != nil {
			result.Errors[name] = errs[i]
			s.logger.Warn("preload failed",
				slog.String("feed", name),
				slog.Any("error", errs[i]))
		}
	}
	return result
}

// page wraps p and overlays persisted engagement on every article.
func (s *Service) page(ctx context.Context, p *entity.FeedPage, origin Origin) *Page {
	if p == nil {
		p = &entity.FeedPage{}
	}
	for i := range p.Articles {
		s.overlay(ctx, &p.Articles[i], entity.EngagementPatch{})
	}
	if p.Articles == nil {
		p.Articles = []entity.Article{}
	}
	return &Page{FeedPage: *p, Origin: origin}
}

// overlay sets the reconciled flags of a. Storage failures fall back to the
// server's view.
func (s *Service) overlay(ctx context.Context, a *entity.Article, caller entity.EngagementPatch) {
	var persisted *entity.EngagementState
	if s.States != nil {
		state, err := s.States.Get(ctx, a.ID)
		if err != nil {
			s.logger.Warn("engagement state unavailable",
				slog.String("article_id", a.ID),
				slog.Any("error", err))
		}
		persisted = state
	}

	flags := engagement.Resolve(caller, engagement.FromState(persisted), engagement.FromServer(a.Engagement))
	if a.Engagement == nil {
		a.Engagement = &entity.ArticleEngagement{}
	}
	a.Engagement.Liked = flags.Liked
	a.Engagement.Bookmarked = flags.Bookmarked
	a.Engagement.Shared = flags.Shared
}

// fetchThrough combines the cache and fetch according to policy. An empty key
// disables the cache. bypass skips the cache read but not the write.
func fetchThrough[T any](
	ctx context.Context,
	s *Service,
	policy FetchPolicy,
	key string,
	bypass bool,
	fetch func(context.Context) (T, error),
) (T, Origin, error) {
	var (
		zero  T
		stale []byte
	)
	if key == "" || s.Cache == nil {
		policy = FetchPolicy{}
	}

	switch {
	case policy.FallbackToStaleOnError:
		if data, fresh, ok := s.Cache.Peek(ctx, key); ok {
			if fresh && policy.ReadThrough && !bypass {
				if v, ok := decode[T](s, key, data); ok {
					return v, OriginCache, nil
				}
			}
			stale = data
		}
	case policy.ReadThrough && !bypass:
		if data, ok := s.Cache.Get(ctx, key); ok {
			if v, ok := decode[T](s, key, data); ok {
				return v, OriginCache, nil
			}
		}
	}

	v, err := fetch(ctx)
	if err != nil {
		if stale != nil && !errors.Is(err, context.Canceled) {
			if cached, ok := decode[T](s, key, stale); ok {
				s.logger.Warn("serving cached copy after fetch failure",
					slog.String("key", key),
					slog.Any("error", err))
				return cached, OriginStale, nil
			}
		}
		if policy.FallbackToStaleOnError {
			return zero, "", fmt.Errorf("%w: %w", ErrNoCachedFallback, err)
		}
		return zero, "", err
	}

	if policy.WriteThrough {
		if err := s.Cache.PutJSON(ctx, key, v, policy.TTL); err != nil {
			s.logger.Warn("failed to cache response",
				slog.String("key", key),
				slog.Any("error", err))
		}
	}
	return v, OriginNetwork, nil
}

func decode[T any](s *Service, key string, data []byte) (T, bool) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		s.logger.Warn("cached payload does not decode",
			slog.String("key", key),
			slog.Any("error", err))
		return v, false
	}
	return v, true
}
