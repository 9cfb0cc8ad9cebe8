// Package notifications provides real-time change event delivery over Redis
// pub/sub and websockets.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strconv"

	"potential/internal/middleware"

	"github.com/redis/go-redis/v9"
)

// FeedChannel carries change events every connected client cares about:
// posts, comments, program and expert catalog updates.
const FeedChannel = "feed:events"

// UserChannel derives the Redis channel name for a user's private events
// (notifications, collaboration answers).
func UserChannel(userID uint) string {
	return "notifications:user:" + strconv.FormatUint(uint64(userID), 10)
}

// Notifier publishes change events into Redis channels.
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// PublishFeedEvent sends a change event to the shared feed channel.
func (n *Notifier) PublishFeedEvent(ctx context.Context, ev ChangeEvent) error {
	if n.rdb == nil {
		return nil
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal change event: %w", err)
	}
	middleware.RealtimeEventsPublished.WithLabelValues(ev.Table).Inc()
	return n.rdb.Publish(ctx, FeedChannel, string(payload)).Err()
}

// PublishUserEvent sends a change event to a single user's channel.
func (n *Notifier) PublishUserEvent(ctx context.Context, userID uint, ev ChangeEvent) error {
	if n.rdb == nil {
		return nil
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal change event: %w", err)
	}
	middleware.RealtimeEventsPublished.WithLabelValues(ev.Table).Inc()
	return n.rdb.Publish(ctx, UserChannel(userID), string(payload)).Err()
}

// StartPatternSubscriber subscribes to the feed channel and the per-user
// pattern and calls onMessage for each incoming message. onMessage receives
// channel and payload.
func (n *Notifier) StartPatternSubscriber(
	ctx context.Context, onMessage func(channel string, payload string),
) error {
	if n.rdb == nil {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, FeedChannel, "notifications:user:*")
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							middleware.Logger.Error("panic in pattern subscriber",
								slog.Any("panic", r),
								slog.String("stack", string(debug.Stack())))
						}
					}()
					onMessage(msg.Channel, msg.Payload)
				}()
			}
		}
	}()

	return nil
}
