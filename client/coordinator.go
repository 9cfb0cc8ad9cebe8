package client

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// NotifyKind classifies a toast message.
type NotifyKind string

const (
	NotifyError   NotifyKind = "error"
	NotifySuccess NotifyKind = "success"
	NotifyInfo    NotifyKind = "info"
)

// NotifyFunc is the fire-and-forget toast side channel. May be nil.
type NotifyFunc func(kind NotifyKind, message string)

// mutation identifies one user-intent write. seq is assigned at call
// time and used as the reconcile version floor, so responses that come
// back out of order cannot regress the cache behind a later mutation's
// reconciliation.
type mutation struct {
	id    string
	token string
	seq   int64
}

func newMutation() mutation {
	return mutation{
		id:    uuid.New().String(),
		token: uuid.New().String(),
		seq:   time.Now().UnixNano(),
	}
}

// reconcileVersion is the logical version for a mutation's
// server-reconcile write: the row's commit version, floored by the
// mutation's call-order sequence for rows whose updated_at did not
// change (like toggles).
func (m mutation) reconcileVersion(rowVersion int64) int64 {
	if rowVersion > m.seq {
		return rowVersion
	}
	return m.seq
}

// Coordinator executes user-initiated writes: validate locally, patch
// the Store optimistically, call the backend, then reconcile the
// authoritative row or roll the patch back. Optimistic apply steps are
// serialized under one mutex so a second mutation on the same key
// always reads the first one's optimistic result, never pre-click
// state; network round trips run outside the lock and interleave
// freely.
type Coordinator struct {
	store   *Store
	backend Backend
	notify  NotifyFunc
	logger  *slog.Logger

	applyMu  sync.Mutex
	sentinel atomic.Int64
}

// NewCoordinator wires a Coordinator to its store and backend. notify
// and logger may be nil.
func NewCoordinator(store *Store, backend Backend, notify NotifyFunc, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Coordinator{
		store:   store,
		backend: backend,
		notify:  notify,
		logger:  logger,
	}
}

// nextSentinelID returns a fresh negative placeholder id for an
// optimistically created row.
func (c *Coordinator) nextSentinelID() int64 {
	return -c.sentinel.Add(1)
}

// CreatePost publishes a post. A sentinel row with a negative id and
// the mutation's correlation token appears at the top of the feed
// immediately; on success the server row replaces it, matched by the
// echoed token so the feed never shows the post twice.
func (c *Coordinator) CreatePost(ctx context.Context, content string, mediaURLs []string) (*Post, error) {
	if strings.TrimSpace(content) == "" {
		return nil, &ValidationError{Message: "content must not be empty"}
	}

	mut := newMutation()
	now := time.Now()
	sentinel := Post{
		ID:          c.nextSentinelID(),
		Content:     content,
		MediaURLs:   mediaURLs,
		ClientToken: mut.token,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	c.applyMu.Lock()
	c.store.stack(FeedKey, mut.id, mut.token, func(v any) any {
		list, _ := v.([]Post)
		return append([]Post{sentinel}, list...)
	})
	c.applyMu.Unlock()

	row, err := c.backend.CreatePost(ctx, CreatePostInput{
		Content:     content,
		MediaURLs:   mediaURLs,
		ClientToken: mut.token,
	})
	if err != nil {
		c.store.Rollback(FeedKey, mut.id)
		c.toastFailure("post", err)
		return nil, err
	}

	c.store.mergeBase(FeedKey, mut.token, func(base any) any {
		list, _ := base.([]Post)
		return upsertPost(list, *row, true)
	})
	c.store.Set(PostKey(row.ID), *row, OriginServerReconcile, mut.reconcileVersion(row.Version()))
	return row, nil
}

// EditPost updates a post's content. The edit is visible immediately;
// the authoritative row replaces it on success.
func (c *Coordinator) EditPost(ctx context.Context, id int64, content string, mediaURLs []string) (*Post, error) {
	if strings.TrimSpace(content) == "" {
		return nil, &ValidationError{Message: "content must not be empty"}
	}

	mut := newMutation()
	key := PostKey(id)

	c.applyMu.Lock()
	c.store.stack(key, mut.id, "", func(v any) any {
		p, ok := v.(Post)
		if !ok {
			return v
		}
		p.Content = content
		if mediaURLs != nil {
			p.MediaURLs = mediaURLs
		}
		p.UpdatedAt = time.Now()
		return p
	})
	c.applyMu.Unlock()

	row, err := c.backend.UpdatePost(ctx, id, UpdatePostInput{Content: content, MediaURLs: mediaURLs})
	if err != nil {
		c.store.Rollback(key, mut.id)
		c.toastFailure("save changes", err)
		return nil, err
	}

	c.reconcilePost(mut, *row)
	return row, nil
}

// DeletePost removes a post. It disappears from the feed immediately
// and reappears (rollback) if the server refuses.
func (c *Coordinator) DeletePost(ctx context.Context, id int64) error {
	mut := newMutation()

	c.applyMu.Lock()
	c.store.stack(FeedKey, mut.id, mut.token, func(v any) any {
		list, _ := v.([]Post)
		return removePost(list, id)
	})
	c.applyMu.Unlock()

	if err := c.backend.DeletePost(ctx, id); err != nil {
		c.store.Rollback(FeedKey, mut.id)
		c.toastFailure("delete post", err)
		return err
	}

	c.store.mergeBase(FeedKey, mut.token, func(base any) any {
		list, _ := base.([]Post)
		return removePost(list, id)
	})
	c.store.Evict(PostKey(id))
	c.store.Evict(CommentsKey(id))
	return nil
}

// CreateComment adds a comment to a post. A sentinel comment appears in
// the post's comment list and the post's comment count bumps by one; a
// failure reverts both exactly, leaving no ghost row.
func (c *Coordinator) CreateComment(ctx context.Context, postID int64, content string, parentID *int64) (*Comment, error) {
	if strings.TrimSpace(content) == "" {
		return nil, &ValidationError{Message: "content must not be empty"}
	}

	mut := newMutation()
	now := time.Now()
	sentinel := Comment{
		ID:          c.nextSentinelID(),
		PostID:      postID,
		ParentID:    parentID,
		Content:     content,
		ClientToken: mut.token,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	listKey := CommentsKey(postID)
	postKey := PostKey(postID)

	c.applyMu.Lock()
	c.store.stack(listKey, mut.id, mut.token, func(v any) any {
		list, _ := v.([]Comment)
		return append(append([]Comment{}, list...), sentinel)
	})
	c.store.stack(postKey, mut.id, mut.token, func(v any) any {
		p, ok := v.(Post)
		if !ok {
			return v
		}
		p.CommentCount++
		return p
	})
	c.applyMu.Unlock()

	row, err := c.backend.CreateComment(ctx, postID, CreateCommentInput{
		Content:     content,
		ParentID:    parentID,
		ClientToken: mut.token,
	})
	if err != nil {
		c.store.Rollback(listKey, mut.id)
		c.store.Rollback(postKey, mut.id)
		c.toastFailure("comment", err)
		return nil, err
	}

	c.store.mergeBase(listKey, mut.token, func(base any) any {
		list, _ := base.([]Comment)
		return upsertComment(list, *row)
	})
	// Fold the optimistic count bump into the base and drop the patch in
	// the same step, so subscribers never see the bump applied twice; the
	// next authoritative post row overrides it.
	c.store.mergeBase(postKey, mut.token, func(base any) any {
		p, ok := base.(Post)
		if !ok {
			return base
		}
		p.CommentCount++
		return p
	})
	return row, nil
}

// ToggleLike flips like-state on a post or comment. The toggle is
// computed from the latest visible state at evaluation time, so two
// rapid toggles compose as two flips rather than both reading the
// pre-click value.
func (c *Coordinator) ToggleLike(ctx context.Context, ref LikeableRef) error {
	switch ref.Kind {
	case RefPost:
		return c.togglePostLike(ctx, ref.ID)
	case RefComment:
		return c.toggleCommentLike(ctx, ref.ID)
	default:
		return &ValidationError{Message: "unknown like target: " + string(ref.Kind)}
	}
}

func (c *Coordinator) togglePostLike(ctx context.Context, id int64) error {
	mut := newMutation()
	key := PostKey(id)

	c.applyMu.Lock()
	c.store.stack(key, mut.id, "", func(v any) any {
		p, ok := v.(Post)
		if !ok {
			return v
		}
		if p.Liked {
			p.Liked = false
			p.LikeCount--
		} else {
			p.Liked = true
			p.LikeCount++
		}
		return p
	})
	c.applyMu.Unlock()

	row, err := c.backend.TogglePostLike(ctx, id)
	if err != nil {
		c.store.Rollback(key, mut.id)
		c.toastFailure("like", err)
		return err
	}

	c.reconcilePost(mut, *row)
	return nil
}

func (c *Coordinator) toggleCommentLike(ctx context.Context, id int64) error {
	mut := newMutation()

	var listKey Key
	c.applyMu.Lock()
	// Comments live in their post's list entry; find which one.
	if postID, ok := c.findCommentPost(id); ok {
		listKey = CommentsKey(postID)
		c.store.stack(listKey, mut.id, mut.token, func(v any) any {
			list, _ := v.([]Comment)
			return mapComments(list, id, func(cm Comment) Comment {
				if cm.Liked {
					cm.Liked = false
					cm.LikeCount--
				} else {
					cm.Liked = true
					cm.LikeCount++
				}
				return cm
			})
		})
	}
	c.applyMu.Unlock()

	row, err := c.backend.ToggleCommentLike(ctx, id)
	if err != nil {
		if listKey != "" {
			c.store.Rollback(listKey, mut.id)
		}
		c.toastFailure("like", err)
		return err
	}

	c.store.mergeBase(CommentsKey(row.PostID), mut.token, func(base any) any {
		list, _ := base.([]Comment)
		return upsertComment(list, *row)
	})
	return nil
}

// ToggleBookmark flips bookmark-state. Posts carry a cached Bookmarked
// flag and get an optimistic flip; programs and expert profiles have no
// entity entry in this cache, so they resolve on the server round trip
// alone.
func (c *Coordinator) ToggleBookmark(ctx context.Context, ref BookmarkRef) (bool, error) {
	mut := newMutation()
	var key Key
	if ref.Kind == BookmarkPost {
		key = PostKey(ref.ID)
		c.applyMu.Lock()
		c.store.stack(key, mut.id, mut.token, func(v any) any {
			p, ok := v.(Post)
			if !ok {
				return v
			}
			p.Bookmarked = !p.Bookmarked
			return p
		})
		c.applyMu.Unlock()
	}

	state, err := c.backend.ToggleBookmark(ctx, ref)
	if err != nil {
		if key != "" {
			c.store.Rollback(key, mut.id)
		}
		c.toastFailure("bookmark", err)
		return false, err
	}

	if key != "" {
		c.store.mergeBase(key, mut.token, func(base any) any {
			p, ok := base.(Post)
			if !ok {
				return base
			}
			p.Bookmarked = state.Bookmarked
			return p
		})
	}
	c.store.Invalidate(string(BookmarksKey))
	return state.Bookmarked, nil
}

// MarkNotificationRead marks one notification read, dropping the badge
// count immediately.
func (c *Coordinator) MarkNotificationRead(ctx context.Context, id int64) error {
	mut := newMutation()

	c.applyMu.Lock()
	c.store.stack(NotificationsKey, mut.id, mut.token, func(v any) any {
		list, _ := v.([]Notification)
		return mapNotifications(list, func(n Notification) Notification {
			if n.ID == id && !n.IsRead {
				n.IsRead = true
			}
			return n
		})
	})
	c.store.stack(UnreadCountKey, mut.id, mut.token, func(v any) any {
		n, ok := v.(int)
		if !ok || n == 0 {
			return v
		}
		return n - 1
	})
	c.applyMu.Unlock()

	row, err := c.backend.MarkNotificationRead(ctx, id)
	if err != nil {
		c.store.Rollback(NotificationsKey, mut.id)
		c.store.Rollback(UnreadCountKey, mut.id)
		c.toastFailure("mark notification read", err)
		return err
	}

	c.store.mergeBase(NotificationsKey, mut.token, func(base any) any {
		list, _ := base.([]Notification)
		return upsertNotification(list, *row)
	})
	c.store.mergeBase(UnreadCountKey, mut.token, func(base any) any {
		n, ok := base.(int)
		if !ok || n == 0 {
			return base
		}
		return n - 1
	})
	return nil
}

// MarkAllNotificationsRead clears the unread badge in one call.
func (c *Coordinator) MarkAllNotificationsRead(ctx context.Context) error {
	mut := newMutation()

	c.applyMu.Lock()
	c.store.stack(NotificationsKey, mut.id, mut.token, func(v any) any {
		list, _ := v.([]Notification)
		return mapNotifications(list, func(n Notification) Notification {
			n.IsRead = true
			return n
		})
	})
	c.store.stack(UnreadCountKey, mut.id, mut.token, func(v any) any {
		if _, ok := v.(int); ok {
			return 0
		}
		return v
	})
	c.applyMu.Unlock()

	if err := c.backend.MarkAllNotificationsRead(ctx); err != nil {
		c.store.Rollback(NotificationsKey, mut.id)
		c.store.Rollback(UnreadCountKey, mut.id)
		c.toastFailure("mark notifications read", err)
		return err
	}

	c.store.mergeBase(NotificationsKey, mut.token, func(base any) any {
		list, _ := base.([]Notification)
		return mapNotifications(list, func(n Notification) Notification {
			n.IsRead = true
			return n
		})
	})
	c.store.mergeBase(UnreadCountKey, mut.token, func(base any) any {
		if _, ok := base.(int); ok {
			return 0
		}
		return base
	})
	return nil
}

// SetPostPinned pins or unpins a post (admin). Permission is checked
// server-side only; an AuthorizationError here is an expected, handled
// outcome, not a programming error.
func (c *Coordinator) SetPostPinned(ctx context.Context, id int64, pinned bool) error {
	return c.moderatePost(ctx, id, "pin", func(p Post) Post {
		p.IsPinned = pinned
		return p
	}, func(ctx context.Context) (*Post, error) {
		return c.backend.SetPostPinned(ctx, id, pinned)
	})
}

// SetPostHidden hides or unhides a post (admin).
func (c *Coordinator) SetPostHidden(ctx context.Context, id int64, hidden bool) error {
	return c.moderatePost(ctx, id, "hide", func(p Post) Post {
		p.IsHidden = hidden
		return p
	}, func(ctx context.Context) (*Post, error) {
		return c.backend.SetPostHidden(ctx, id, hidden)
	})
}

func (c *Coordinator) moderatePost(ctx context.Context, id int64, action string, patch func(Post) Post, call func(context.Context) (*Post, error)) error {
	mut := newMutation()
	key := PostKey(id)

	c.applyMu.Lock()
	c.store.stack(key, mut.id, "", func(v any) any {
		p, ok := v.(Post)
		if !ok {
			return v
		}
		return patch(p)
	})
	c.applyMu.Unlock()

	row, err := call(ctx)
	if err != nil {
		c.store.Rollback(key, mut.id)
		c.toastFailure(action+" post", err)
		return err
	}

	c.reconcilePost(mut, *row)
	return nil
}

// reconcilePost installs an authoritative post row in its detail entry
// and refreshes the feed's copy of the same row.
func (c *Coordinator) reconcilePost(mut mutation, row Post) {
	if err := c.store.Set(PostKey(row.ID), row, OriginServerReconcile, mut.reconcileVersion(row.Version())); err != nil {
		c.logger.Debug("reconcile superseded by newer state",
			slog.Int64("post_id", row.ID), slog.Any("error", err))
		return
	}
	c.store.mergeBase(FeedKey, "", func(base any) any {
		list, ok := base.([]Post)
		if !ok {
			return base
		}
		return upsertPost(list, row, false)
	})
}

// toastFailure surfaces a failed mutation. Authorization failures get
// the server's specific reason; everything else a generic message.
func (c *Coordinator) toastFailure(action string, err error) {
	if c.notify == nil {
		return
	}
	var authErr *AuthorizationError
	switch {
	case errors.As(err, &authErr):
		c.notify(NotifyError, "Unable to "+action+": "+authErr.Message)
	default:
		c.notify(NotifyError, "Unable to "+action+": please try again")
	}
}

// findCommentPost locates which post's comment list holds the comment.
// Best effort over cached lists; misses simply skip the optimistic step.
func (c *Coordinator) findCommentPost(commentID int64) (int64, bool) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	for key, e := range c.store.entries {
		if !key.HasPrefix("comments:") {
			continue
		}
		v, ok := e.visible()
		if !ok {
			continue
		}
		list, ok := v.([]Comment)
		if !ok {
			continue
		}
		for _, cm := range list {
			if cm.ID == commentID {
				return cm.PostID, true
			}
		}
	}
	return 0, false
}

// upsertPost replaces the list's copy of row, matched by id or by
// correlation token, or inserts it (prepended) when prepend is set.
func upsertPost(list []Post, row Post, prepend bool) []Post {
	for i := range list {
		if list[i].ID == row.ID || (row.ClientToken != "" && list[i].ClientToken == row.ClientToken) {
			out := append([]Post{}, list...)
			out[i] = row
			return out
		}
	}
	if !prepend {
		return list
	}
	return append([]Post{row}, list...)
}

func removePost(list []Post, id int64) []Post {
	out := make([]Post, 0, len(list))
	for _, p := range list {
		if p.ID != id {
			out = append(out, p)
		}
	}
	return out
}

// upsertComment replaces the list's copy of row, matched by id or
// correlation token, refusing to regress a newer cached copy; unknown
// rows append in arrival order.
func upsertComment(list []Comment, row Comment) []Comment {
	for i := range list {
		if list[i].ID == row.ID || (row.ClientToken != "" && list[i].ClientToken == row.ClientToken) {
			if list[i].ID == row.ID && list[i].Version() > row.Version() {
				return list
			}
			out := append([]Comment{}, list...)
			out[i] = row
			return out
		}
	}
	return append(append([]Comment{}, list...), row)
}

func removeComment(list []Comment, id int64) []Comment {
	out := make([]Comment, 0, len(list))
	for _, cm := range list {
		if cm.ID != id {
			out = append(out, cm)
		}
	}
	return out
}

func mapComments(list []Comment, id int64, fn func(Comment) Comment) []Comment {
	out := append([]Comment{}, list...)
	for i := range out {
		if out[i].ID == id {
			out[i] = fn(out[i])
		}
	}
	return out
}

// upsertNotification inserts row at the head or replaces an existing
// copy by id.
func upsertNotification(list []Notification, row Notification) []Notification {
	for i := range list {
		if list[i].ID == row.ID {
			out := append([]Notification{}, list...)
			out[i] = row
			return out
		}
	}
	return append([]Notification{row}, list...)
}

func mapNotifications(list []Notification, fn func(Notification) Notification) []Notification {
	out := append([]Notification{}, list...)
	for i := range out {
		out[i] = fn(out[i])
	}
	return out
}
