package feed

import (
	"context"
	"log/slog"
	"strconv"
	"sync"

	"newsdeck/internal/common/pagination"
	"newsdeck/internal/domain/entity"
	"newsdeck/internal/infra/remote"
)

// Source loads one page. An empty cursor means the first page; refresh asks
// for a fresh first page.
type Source func(ctx context.Context, cursor string, refresh bool) (*Page, error)

// Pager accumulates a cursor-paginated feed. Article ids in the list are
// unique: a later page never adds an id that is already present. The lock is
// not held across a fetch; a result that arrives after the list has been
// replaced is dropped.
type Pager struct {
	mu         sync.Mutex
	source     Source
	articles   []entity.Article
	seen       pagination.IDSet
	cursor     string
	hasMore    bool
	generation uint64
	logger     *slog.Logger
}

// NewPager creates an empty Pager over source.
func NewPager(source Source, logger *slog.Logger) *Pager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pager{source: source, seen: pagination.IDSet{}, logger: logger}
}

// PersonalizedPager pages through the personalized feed in batches of limit,
// clamped to the pagination bounds.
func (s *Service) PersonalizedPager(limit int) *Pager {
	limit = pagination.DefaultConfig().ClampLimit(limit)
	return NewPager(func(ctx context.Context, cursor string, refresh bool) (*Page, error) {
		params := remote.Params{"limit": strconv.Itoa(limit)}
		if cursor != "" {
			params["cursor"] = cursor
		}
		if refresh {
			return s.RefreshPersonalized(ctx, params)
		}
		return s.Personalized(ctx, params)
	}, s.logger)
}

func articleID(a entity.Article) string { return a.ID }

// Load fetches the first page and replaces the list with it.
func (p *Pager) Load(ctx context.Context) error {
	return p.reset(ctx, "initial", false)
}

// Refresh discards the list and cursor, fetches a fresh first page and
// replaces the list with it.
func (p *Pager) Refresh(ctx context.Context) error {
	return p.reset(ctx, "refresh", true)
}

func (p *Pager) reset(ctx context.Context, mode string, refresh bool) error {
	p.mu.Lock()
	p.generation++
	gen := p.generation
	p.mu.Unlock()

	page, err := p.source(ctx, "", refresh)
	pagination.RecordLoad(mode, err)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.generation {
		p.logger.Debug("dropping superseded page", slog.String("mode", mode))
		return nil
	}
	p.seen = pagination.IDSet{}
	p.articles, _ = pagination.AppendUnique(make([]entity.Article, 0, len(page.Articles)), p.seen, page.Articles, articleID)
	p.advance(page)
	return nil
}

// LoadMore fetches the page after the current cursor and appends the articles
// not yet listed. It returns how many were added; it is a no-op once the feed
// reports no more pages.
func (p *Pager) LoadMore(ctx context.Context) (int, error) {
	p.mu.Lock()
	if !p.hasMore || p.cursor == "" {
		p.mu.Unlock()
		return 0, nil
	}
	gen, cursor := p.generation, p.cursor
	p.mu.Unlock()

	page, err := p.source(ctx, cursor, false)
	pagination.RecordLoad("more", err)
	if err != nil {
		return 0, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.generation || cursor != p.cursor {
		p.logger.Debug("dropping superseded page", slog.String("cursor", cursor))
		return 0, nil
	}
	var added int
	p.articles, added = pagination.AppendUnique(p.articles, p.seen, page.Articles, articleID)
	p.advance(page)
	return added, nil
}

func (p *Pager) advance(page *Page) {
	p.cursor = page.NextCursor
	p.hasMore = page.HasMore && page.NextCursor != ""
}

// Articles returns a copy of the accumulated list.
func (p *Pager) Articles() []entity.Article {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]entity.Article, len(p.articles))
	copy(out, p.articles)
	return out
}

// HasMore reports whether LoadMore can fetch another page.
func (p *Pager) HasMore() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hasMore
}

// Cursor returns the cursor LoadMore will send.
func (p *Pager) Cursor() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cursor
}
