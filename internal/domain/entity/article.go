// Package entity defines the core domain entities of the personalization engine.
// It contains interaction events, engagement state, embedding vectors, settings,
// cache entries and the feed article shape, along with their validation rules
// and domain-specific errors.
package entity

import "time"

// Article is a feed item as the engine sees it after transforming the server payload.
type Article struct {
	ID          string             `json:"id"`
	Title       string             `json:"title"`
	Snippet     string             `json:"snippet,omitempty"`
	URL         string             `json:"url,omitempty"`
	ImageURL    string             `json:"image_url,omitempty"`
	Author      string             `json:"author,omitempty"`
	Category    string             `json:"category,omitempty"`
	Source      string             `json:"source,omitempty"`
	PublishedAt time.Time          `json:"published_at"`
	Engagement  *ArticleEngagement `json:"engagement,omitempty"`
}

// ArticleEngagement is the engagement block embedded in an article payload.
// The User* flags are the server's view; Liked/Bookmarked/Shared are the
// reconciled flags shown to the user.
type ArticleEngagement struct {
	Likes          int  `json:"likes,omitempty"`
	Shares         int  `json:"shares,omitempty"`
	Bookmarks      int  `json:"bookmarks,omitempty"`
	UserLiked      bool `json:"user_liked,omitempty"`
	UserBookmarked bool `json:"user_bookmarked,omitempty"`
	UserShared     bool `json:"user_shared,omitempty"`
	Liked          bool `json:"liked"`
	Bookmarked     bool `json:"bookmarked"`
	Shared         bool `json:"shared"`
}

// FeedPage is one page of a cursor-paginated feed.
type FeedPage struct {
	Articles   []Article `json:"articles"`
	NextCursor string    `json:"next_cursor,omitempty"`
	HasMore    bool      `json:"has_more"`
}

// IDs returns the article ids of the page in order.
func (p *FeedPage) IDs() []string {
	ids := make([]string, 0, len(p.Articles))
	for _, a := range p.Articles {
		ids = append(ids, a.ID)
	}
	return ids
}
