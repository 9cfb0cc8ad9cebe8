package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	UserKeyPrefix     = "user:%d"
	PostKeyPrefix     = "post:%d"
	FeedFirstPageKey  = "feed:first"
	ProgramsListKey   = "programs:published"
	ExpertsListKey    = "experts:published"
	UnreadCountPrefix = "notifications:unread:%d"
)

const (
	UserTTL     = 5 * time.Minute
	PostTTL     = 30 * time.Minute
	ListTTL     = 1 * time.Minute
	CatalogTTL  = 10 * time.Minute
	UnreadTTL   = 30 * time.Second
)

func UserKey(userID uint) string {
	return fmt.Sprintf(UserKeyPrefix, userID)
}

func PostKey(postID uint) string {
	return fmt.Sprintf(PostKeyPrefix, postID)
}

func UnreadCountKey(userID uint) string {
	return fmt.Sprintf(UnreadCountPrefix, userID)
}

func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}

func InvalidateUser(ctx context.Context, userID uint) {
	Invalidate(ctx, UserKey(userID))
}

func InvalidatePost(ctx context.Context, postID uint) {
	Invalidate(ctx, PostKey(postID))
}

func InvalidateFeed(ctx context.Context) {
	Invalidate(ctx, FeedFirstPageKey)
}

func InvalidatePrograms(ctx context.Context) {
	Invalidate(ctx, ProgramsListKey)
}

func InvalidateExperts(ctx context.Context) {
	Invalidate(ctx, ExpertsListKey)
}

func InvalidateUnreadCount(ctx context.Context, userID uint) {
	Invalidate(ctx, UnreadCountKey(userID))
}
