package feed

import (
	"context"
	"fmt"
	"log/slog"

	"newsdeck/internal/domain/entity"
	"newsdeck/internal/infra/remote"
	"newsdeck/internal/usecase/feedcache"
)

// SetLiked likes or unlikes id. The new state is persisted before the server
// is told; if the server call fails the previous state is restored and an
// error wrapping ErrNotifyFailed is returned so the UI can roll back.
func (s *Service) SetLiked(ctx context.Context, id string, liked bool) (entity.EngagementState, error) {
	return s.toggle(ctx, id, entity.EngagementPatch{Liked: entity.Bool(liked)}, func(ctx context.Context) remote.NotifyResult {
		if liked {
			return s.Remote.Like(ctx, id)
		}
		return s.Remote.Unlike(ctx, id)
	})
}

// SetBookmarked adds or removes a bookmark like SetLiked. On success every
// cached bookmark listing is invalidated.
func (s *Service) SetBookmarked(ctx context.Context, id string, bookmarked bool) (entity.EngagementState, error) {
	state, err := s.toggle(ctx, id, entity.EngagementPatch{Bookmarked: entity.Bool(bookmarked)}, func(ctx context.Context) remote.NotifyResult {
		if bookmarked {
			return s.Remote.Bookmark(ctx, id)
		}
		return s.Remote.Unbookmark(ctx, id)
	})
	if err != nil {
		return state, err
	}
	if _, err := s.Cache.InvalidatePrefix(ctx, feedcache.BookmarksPrefix); err != nil {
		s.logger.Warn("bookmark listings may be stale",
			slog.String("article_id", id),
			slog.Any("error", err))
	}
	return state, nil
}

// Share records a share of id on the server and marks it shared locally.
func (s *Service) Share(ctx context.Context, id string, share remote.ShareRequest) (entity.EngagementState, error) {
	return s.toggle(ctx, id, entity.EngagementPatch{Shared: entity.Bool(true)}, func(ctx context.Context) remote.NotifyResult {
		return s.Remote.Share(ctx, id, share)
	})
}

func (s *Service) toggle(ctx context.Context, id string, patch entity.EngagementPatch, send func(context.Context) remote.NotifyResult) (entity.EngagementState, error) {
	if err := entity.ValidateArticleID(id); err != nil {
		return entity.EngagementState{}, err
	}

	prev, err := s.States.Get(ctx, id)
	if err != nil {
		return entity.EngagementState{}, fmt.Errorf("read engagement of %s: %w", id, err)
	}
	state, err := s.States.Update(ctx, id, patch)
	if err != nil {
		return entity.EngagementState{}, fmt.Errorf("save engagement of %s: %w", id, err)
	}

	result := send(ctx)
	if !result.OK {
		if rerr := s.States.Restore(ctx, id, prev); rerr != nil {
			s.logger.Error("failed to roll back engagement",
				slog.String("article_id", id),
				slog.Any("error", rerr))
		}
		var restored entity.EngagementState
		if prev != nil {
			restored = *prev
		}
		if result.Err == nil {
			return restored, fmt.Errorf("%s %s: %w", result.Endpoint, id, ErrNotifyFailed)
		}
		return restored, fmt.Errorf("%s %s: %w: %w", result.Endpoint, id, ErrNotifyFailed, result.Err)
	}

	if s.Cache != nil {
		if _, err := s.Cache.PatchArticleEngagement(ctx, id, patch); err != nil {
			s.logger.Warn("cached article keeps old engagement",
				slog.String("article_id", id),
				slog.Any("error", err))
		}
	}
	return state, nil
}
