package session

import (
	"context"
	"time"

	"newsdeck/internal/domain/entity"
	"newsdeck/internal/infra/remote"
)

// ArticleMeta carries the optional descriptors of a tracked article.
type ArticleMeta struct {
	Category string
	Source   string
}

func (m ArticleMeta) event(t entity.InteractionType, articleID string) entity.InteractionEvent {
	return entity.InteractionEvent{
		Type:      t,
		ArticleID: articleID,
		Category:  m.Category,
		Source:    m.Source,
	}
}

// TrackView records a view. A positive readFor is stored as the view duration.
func (s *Scheduler) TrackView(ctx context.Context, articleID string, meta ArticleMeta, readFor time.Duration) error {
	e := meta.event(entity.InteractionView, articleID)
	if readFor > 0 {
		secs := readFor.Seconds()
		e.ViewDurationSeconds = &secs
	}
	_, err := s.RecordInteraction(ctx, e)
	return err
}

// TrackDislike records a dislike or skip. It never reaches the server directly.
func (s *Scheduler) TrackDislike(ctx context.Context, articleID string, meta ArticleMeta) error {
	_, err := s.RecordInteraction(ctx, meta.event(entity.InteractionDislike, articleID))
	return err
}

// TrackLike records a like and notifies the server. The notification is
// attempted even when the triggered sync fails; its outcome never fails the call.
func (s *Scheduler) TrackLike(ctx context.Context, articleID string, meta ArticleMeta) (remote.NotifyResult, error) {
	return s.track(ctx, meta.event(entity.InteractionLike, articleID), func(n Notifier) remote.NotifyResult {
		return n.Like(ctx, articleID)
	})
}

// TrackBookmark records a bookmark and notifies the server.
func (s *Scheduler) TrackBookmark(ctx context.Context, articleID string, meta ArticleMeta) (remote.NotifyResult, error) {
	return s.track(ctx, meta.event(entity.InteractionBookmark, articleID), func(n Notifier) remote.NotifyResult {
		return n.Bookmark(ctx, articleID)
	})
}

// TrackShare records a share on platform and notifies the server.
func (s *Scheduler) TrackShare(ctx context.Context, articleID, platform string, meta ArticleMeta) (remote.NotifyResult, error) {
	e := meta.event(entity.InteractionShare, articleID)
	e.Platform = platform
	return s.track(ctx, e, func(n Notifier) remote.NotifyResult {
		return n.Share(ctx, articleID, remote.ShareRequest{Platform: platform})
	})
}

func (s *Scheduler) track(ctx context.Context, e entity.InteractionEvent, send func(Notifier) remote.NotifyResult) (remote.NotifyResult, error) {
	if err := e.Validate(); err != nil {
		return remote.NotifyResult{}, err
	}
	_, syncErr := s.RecordInteraction(ctx, e)
	if s.deps.Notifier == nil {
		return remote.NotifyResult{}, syncErr
	}
	return send(s.deps.Notifier), syncErr
}
