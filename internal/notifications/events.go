package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"potential/internal/middleware"
)

// Change event types mirrored on the wire.
const (
	EventInsert = "insert"
	EventUpdate = "update"
	EventDelete = "delete"
)

// Tables that emit change events.
const (
	TablePosts         = "posts"
	TableComments      = "comments"
	TableNotifications = "notifications"
	TablePrograms      = "support_programs"
	TableExperts       = "expert_profiles"
)

// ChangeEvent is the payload pushed to clients whenever a row they may be
// displaying changes. CommitTS is the change's logical version in unix
// nanoseconds, never older than the row's updated_at; clients use it to
// discard events older than state they already hold.
// ClientToken carries the creator's correlation token so the originating
// client can match the event to its own pending mutation.
type ChangeEvent struct {
	EventType   string          `json:"eventType"`
	Table       string          `json:"table"`
	New         json.RawMessage `json:"new,omitempty"`
	Old         json.RawMessage `json:"old,omitempty"`
	ClientToken string          `json:"client_token,omitempty"`
	CommitTS    int64           `json:"commit_ts"`
}

// NewChangeEvent builds a ChangeEvent, marshaling the row payloads.
func NewChangeEvent(eventType, table string, newRow, oldRow any, clientToken string, commitTS int64) (ChangeEvent, error) {
	ev := ChangeEvent{
		EventType:   eventType,
		Table:       table,
		ClientToken: clientToken,
		CommitTS:    commitTS,
	}
	if newRow != nil {
		data, err := json.Marshal(newRow)
		if err != nil {
			return ev, fmt.Errorf("marshal new row: %w", err)
		}
		ev.New = data
	}
	if oldRow != nil {
		data, err := json.Marshal(oldRow)
		if err != nil {
			return ev, fmt.Errorf("marshal old row: %w", err)
		}
		ev.Old = data
	}
	return ev, nil
}

// EventSink receives change events for realtime delivery. Implemented by
// Notifier; services hold this narrow interface so tests can stub it.
type EventSink interface {
	PublishFeedEvent(ctx context.Context, ev ChangeEvent) error
	PublishUserEvent(ctx context.Context, userID uint, ev ChangeEvent) error
}

// PublishFeed marshals and publishes ev on the shared feed channel,
// logging instead of failing the caller on error.
func PublishFeed(ctx context.Context, sink EventSink, ev ChangeEvent) {
	if sink == nil {
		return
	}
	if err := sink.PublishFeedEvent(ctx, ev); err != nil {
		middleware.Logger.ErrorContext(ctx, "failed to publish feed event",
			slog.String("table", ev.Table),
			slog.String("event_type", ev.EventType),
			slog.Any("error", err))
	}
}

// PublishUser marshals and publishes ev on a user's private channel,
// logging instead of failing the caller on error.
func PublishUser(ctx context.Context, sink EventSink, userID uint, ev ChangeEvent) {
	if sink == nil {
		return
	}
	if err := sink.PublishUserEvent(ctx, userID, ev); err != nil {
		middleware.Logger.ErrorContext(ctx, "failed to publish user event",
			slog.Uint64("user_id", uint64(userID)),
			slog.String("table", ev.Table),
			slog.Any("error", err))
	}
}
