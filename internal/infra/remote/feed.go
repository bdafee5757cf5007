package remote

import (
	"context"
	"fmt"
	"net/url"

	"newsdeck/internal/domain/entity"
)

// Params are query parameters of a feed request. Empty values are omitted.
type Params map[string]string

func (p Params) values() url.Values {
	if len(p) == 0 {
		return nil
	}
	v := url.Values{}
	for k, val := range p {
		if val != "" {
			v.Set(k, val)
		}
	}
	return v
}

// Personalized fetches GET /feed/personalized.
func (c *Client) Personalized(ctx context.Context, params Params) (*entity.FeedPage, error) {
	return c.feedPage(ctx, "feed_personalized", "/feed/personalized", params)
}

// Trending fetches GET /feed/trending.
func (c *Client) Trending(ctx context.Context, params Params) (*entity.FeedPage, error) {
	return c.feedPage(ctx, "feed_trending", "/feed/trending", params)
}

// Search fetches GET /search/articles. params must carry "q".
func (c *Client) Search(ctx context.Context, params Params) (*entity.FeedPage, error) {
	if params["q"] == "" {
		return nil, fmt.Errorf("Search: %w: empty query", entity.ErrInvalidInput)
	}
	return c.feedPage(ctx, "search_articles", "/search/articles", params)
}

// Bookmarks fetches GET /users/bookmarks.
func (c *Client) Bookmarks(ctx context.Context, params Params) (*entity.FeedPage, error) {
	return c.feedPage(ctx, "bookmarks", "/users/bookmarks", params)
}

// Article fetches GET /articles/{id}.
func (c *Client) Article(ctx context.Context, id string) (*entity.Article, error) {
	path, err := articlePath(id, "")
	if err != nil {
		return nil, fmt.Errorf("Article: %w", err)
	}
	var article entity.Article
	if err := c.get(ctx, request{endpoint: "article_detail", path: path}, &article); err != nil {
		return nil, fmt.Errorf("Article: %w", err)
	}
	return &article, nil
}

func (c *Client) feedPage(ctx context.Context, endpoint, path string, params Params) (*entity.FeedPage, error) {
	var page entity.FeedPage
	if err := c.get(ctx, request{endpoint: endpoint, path: path, query: params.values()}, &page); err != nil {
		return nil, fmt.Errorf("%s: %w", endpoint, err)
	}
	if page.Articles == nil {
		page.Articles = []entity.Article{}
	}
	return &page, nil
}
