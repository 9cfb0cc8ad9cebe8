package client

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubBackend implements Backend with overridable function fields;
// unconfigured methods fail loudly.
type stubBackend struct {
	listFeedFn               func(ctx context.Context, limit, offset int) ([]Post, error)
	getPostFn                func(ctx context.Context, id int64) (*Post, error)
	createPostFn             func(ctx context.Context, in CreatePostInput) (*Post, error)
	updatePostFn             func(ctx context.Context, id int64, in UpdatePostInput) (*Post, error)
	deletePostFn             func(ctx context.Context, id int64) error
	listCommentsFn           func(ctx context.Context, postID int64) ([]Comment, error)
	createCommentFn          func(ctx context.Context, postID int64, in CreateCommentInput) (*Comment, error)
	togglePostLikeFn         func(ctx context.Context, id int64) (*Post, error)
	toggleCommentLikeFn      func(ctx context.Context, id int64) (*Comment, error)
	toggleBookmarkFn         func(ctx context.Context, ref BookmarkRef) (*BookmarkState, error)
	listNotificationsFn      func(ctx context.Context, limit, offset int) ([]Notification, error)
	unreadCountFn            func(ctx context.Context) (int, error)
	markNotificationReadFn   func(ctx context.Context, id int64) (*Notification, error)
	markAllNotificationsRead func(ctx context.Context) error
	setPostPinnedFn          func(ctx context.Context, id int64, pinned bool) (*Post, error)
	setPostHiddenFn          func(ctx context.Context, id int64, hidden bool) (*Post, error)
	setCommentHiddenFn       func(ctx context.Context, id int64, hidden bool) (*Comment, error)
	wsTicketFn               func(ctx context.Context) (string, error)
}

var errStubNotConfigured = errors.New("stub method not configured")

func (s *stubBackend) ListFeed(ctx context.Context, limit, offset int) ([]Post, error) {
	if s.listFeedFn == nil {
		return nil, errStubNotConfigured
	}
	return s.listFeedFn(ctx, limit, offset)
}

func (s *stubBackend) GetPost(ctx context.Context, id int64) (*Post, error) {
	if s.getPostFn == nil {
		return nil, errStubNotConfigured
	}
	return s.getPostFn(ctx, id)
}

func (s *stubBackend) CreatePost(ctx context.Context, in CreatePostInput) (*Post, error) {
	if s.createPostFn == nil {
		return nil, errStubNotConfigured
	}
	return s.createPostFn(ctx, in)
}

func (s *stubBackend) UpdatePost(ctx context.Context, id int64, in UpdatePostInput) (*Post, error) {
	if s.updatePostFn == nil {
		return nil, errStubNotConfigured
	}
	return s.updatePostFn(ctx, id, in)
}

func (s *stubBackend) DeletePost(ctx context.Context, id int64) error {
	if s.deletePostFn == nil {
		return errStubNotConfigured
	}
	return s.deletePostFn(ctx, id)
}

func (s *stubBackend) ListComments(ctx context.Context, postID int64) ([]Comment, error) {
	if s.listCommentsFn == nil {
		return nil, errStubNotConfigured
	}
	return s.listCommentsFn(ctx, postID)
}

func (s *stubBackend) CreateComment(ctx context.Context, postID int64, in CreateCommentInput) (*Comment, error) {
	if s.createCommentFn == nil {
		return nil, errStubNotConfigured
	}
	return s.createCommentFn(ctx, postID, in)
}

func (s *stubBackend) TogglePostLike(ctx context.Context, id int64) (*Post, error) {
	if s.togglePostLikeFn == nil {
		return nil, errStubNotConfigured
	}
	return s.togglePostLikeFn(ctx, id)
}

func (s *stubBackend) ToggleCommentLike(ctx context.Context, id int64) (*Comment, error) {
	if s.toggleCommentLikeFn == nil {
		return nil, errStubNotConfigured
	}
	return s.toggleCommentLikeFn(ctx, id)
}

func (s *stubBackend) ToggleBookmark(ctx context.Context, ref BookmarkRef) (*BookmarkState, error) {
	if s.toggleBookmarkFn == nil {
		return nil, errStubNotConfigured
	}
	return s.toggleBookmarkFn(ctx, ref)
}

func (s *stubBackend) ListNotifications(ctx context.Context, limit, offset int) ([]Notification, error) {
	if s.listNotificationsFn == nil {
		return nil, errStubNotConfigured
	}
	return s.listNotificationsFn(ctx, limit, offset)
}

func (s *stubBackend) UnreadCount(ctx context.Context) (int, error) {
	if s.unreadCountFn == nil {
		return 0, errStubNotConfigured
	}
	return s.unreadCountFn(ctx)
}

func (s *stubBackend) MarkNotificationRead(ctx context.Context, id int64) (*Notification, error) {
	if s.markNotificationReadFn == nil {
		return nil, errStubNotConfigured
	}
	return s.markNotificationReadFn(ctx, id)
}

func (s *stubBackend) MarkAllNotificationsRead(ctx context.Context) error {
	if s.markAllNotificationsRead == nil {
		return errStubNotConfigured
	}
	return s.markAllNotificationsRead(ctx)
}

func (s *stubBackend) SetPostPinned(ctx context.Context, id int64, pinned bool) (*Post, error) {
	if s.setPostPinnedFn == nil {
		return nil, errStubNotConfigured
	}
	return s.setPostPinnedFn(ctx, id, pinned)
}

func (s *stubBackend) SetPostHidden(ctx context.Context, id int64, hidden bool) (*Post, error) {
	if s.setPostHiddenFn == nil {
		return nil, errStubNotConfigured
	}
	return s.setPostHiddenFn(ctx, id, hidden)
}

func (s *stubBackend) SetCommentHidden(ctx context.Context, id int64, hidden bool) (*Comment, error) {
	if s.setCommentHiddenFn == nil {
		return nil, errStubNotConfigured
	}
	return s.setCommentHiddenFn(ctx, id, hidden)
}

func (s *stubBackend) WSTicket(ctx context.Context) (string, error) {
	if s.wsTicketFn == nil {
		return "", errStubNotConfigured
	}
	return s.wsTicketFn(ctx)
}

// toastRecorder collects toasts emitted during a test.
type toastRecorder struct {
	mu     sync.Mutex
	toasts []string
}

func (r *toastRecorder) notify(kind NotifyKind, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toasts = append(r.toasts, string(kind)+": "+message)
}

func (r *toastRecorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{}, r.toasts...)
}

func cachedPost(t *testing.T, s *Store, id int64) Post {
	t.Helper()
	v, ok := s.Get(PostKey(id))
	require.True(t, ok, "post %d should be cached", id)
	return v.(Post)
}

// gatedLikeCall is one TogglePostLike invocation held open until the
// test replies, so acknowledgment order can be controlled exactly.
type gatedLikeCall struct {
	id    int64
	reply chan gatedLikeReply
}

type gatedLikeReply struct {
	post *Post
	err  error
}

func gatedLikeBackend(calls chan *gatedLikeCall) *stubBackend {
	return &stubBackend{
		togglePostLikeFn: func(ctx context.Context, id int64) (*Post, error) {
			call := &gatedLikeCall{id: id, reply: make(chan gatedLikeReply)}
			calls <- call
			r := <-call.reply
			return r.post, r.err
		},
	}
}

func TestCreatePost_ValidationFailsFast(t *testing.T) {
	store := NewStore(nil)
	coord := NewCoordinator(store, &stubBackend{}, nil, nil)

	_, err := coord.CreatePost(context.Background(), "   ", nil)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	_, ok := store.Get(FeedKey)
	assert.False(t, ok, "validation failures never touch the cache")
}

func TestCreatePost_HappyPathReplacesSentinel(t *testing.T) {
	store := NewStore(nil)
	require.NoError(t, store.Set(FeedKey, []Post{}, OriginServerFetch, 1))

	started := make(chan CreatePostInput, 1)
	release := make(chan Post)
	backend := &stubBackend{
		createPostFn: func(ctx context.Context, in CreatePostInput) (*Post, error) {
			started <- in
			row := <-release
			row.ClientToken = in.ClientToken
			return &row, nil
		},
	}
	coord := NewCoordinator(store, backend, nil, nil)

	type result struct {
		post *Post
		err  error
	}
	done := make(chan result, 1)
	go func() {
		post, err := coord.CreatePost(context.Background(), "Hello founders", nil)
		done <- result{post: post, err: err}
	}()

	in := <-started
	require.NotEmpty(t, in.ClientToken, "create carries a correlation token")

	// The sentinel is visible synchronously, before the server answers.
	v, ok := store.Get(FeedKey)
	require.True(t, ok)
	feed := v.([]Post)
	require.Len(t, feed, 1)
	assert.Negative(t, feed[0].ID)
	assert.Equal(t, "Hello founders", feed[0].Content)
	assert.Zero(t, feed[0].LikeCount)
	assert.Zero(t, feed[0].CommentCount)

	release <- Post{ID: 501, Content: "Hello founders", UpdatedAt: time.Now()}
	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, int64(501), res.post.ID)

	// The real row replaced the sentinel; exactly one post, not two.
	v, _ = store.Get(FeedKey)
	feed = v.([]Post)
	require.Len(t, feed, 1)
	assert.Equal(t, int64(501), feed[0].ID)

	detail := cachedPost(t, store, 501)
	assert.Equal(t, "Hello founders", detail.Content)
}

func TestCreateComment_FailureRollsBackPrecisely(t *testing.T) {
	store := NewStore(nil)
	post := fixedPost(77, 3, false)
	post.CommentCount = 3
	require.NoError(t, store.Set(PostKey(77), post, OriginServerFetch, post.Version()))
	existing := []Comment{{ID: 900, PostID: 77, Content: "first"}}
	require.NoError(t, store.Set(CommentsKey(77), existing, OriginServerFetch, 1))

	started := make(chan struct{})
	release := make(chan error)
	backend := &stubBackend{
		createCommentFn: func(ctx context.Context, postID int64, in CreateCommentInput) (*Comment, error) {
			close(started)
			return nil, <-release
		},
	}
	toasts := &toastRecorder{}
	coord := NewCoordinator(store, backend, toasts.notify, nil)

	done := make(chan error, 1)
	go func() {
		_, err := coord.CreateComment(context.Background(), 77, "nice one", nil)
		done <- err
	}()

	<-started
	// Sentinel comment and bumped count are visible mid-flight.
	v, _ := store.Get(CommentsKey(77))
	require.Len(t, v.([]Comment), 2)
	assert.Equal(t, 4, cachedPost(t, store, 77).CommentCount)

	release <- &NetworkError{Err: errors.New("connection reset")}
	require.Error(t, <-done)

	// Exactly the pre-mutation state: no ghost comment, count restored.
	v, _ = store.Get(CommentsKey(77))
	assert.Equal(t, existing, v.([]Comment))
	assert.Equal(t, 3, cachedPost(t, store, 77).CommentCount)
	assert.NotEmpty(t, toasts.all())
}

func TestCreateComment_CountBumpAppliesOnce(t *testing.T) {
	store := NewStore(nil)
	post := fixedPost(77, 3, false)
	post.CommentCount = 3
	require.NoError(t, store.Set(PostKey(77), post, OriginServerFetch, post.Version()))
	require.NoError(t, store.Set(CommentsKey(77), []Comment{}, OriginServerFetch, 1))

	var counts []int
	store.Subscribe(PostKey(77), func(v any) {
		if p, ok := v.(Post); ok {
			counts = append(counts, p.CommentCount)
		}
	})

	backend := &stubBackend{
		createCommentFn: func(ctx context.Context, postID int64, in CreateCommentInput) (*Comment, error) {
			return &Comment{ID: 901, PostID: postID, Content: in.Content,
				ClientToken: in.ClientToken, UpdatedAt: time.Now()}, nil
		},
	}
	coord := NewCoordinator(store, backend, nil, nil)

	_, err := coord.CreateComment(context.Background(), 77, "nice one", nil)
	require.NoError(t, err)

	// Folding the bump into the base and retiring the optimistic patch
	// happen in one step, so subscribers never see the bump twice.
	assert.Equal(t, 4, cachedPost(t, store, 77).CommentCount)
	assert.NotContains(t, counts, 5, "comment count must never overshoot by a transient double bump")
}

func TestToggleLike_SerializedTogglesCompose(t *testing.T) {
	store := NewStore(nil)
	post := fixedPost(9, 5, false)
	require.NoError(t, store.Set(PostKey(9), post, OriginServerFetch, post.Version()))

	calls := make(chan *gatedLikeCall, 2)
	coord := NewCoordinator(store, gatedLikeBackend(calls), nil, nil)

	errs := make(chan error, 2)
	go func() { errs <- coord.ToggleLike(context.Background(), LikeableRef{Kind: RefPost, ID: 9}) }()
	first := <-calls // first toggle's optimistic apply is done

	go func() { errs <- coord.ToggleLike(context.Background(), LikeableRef{Kind: RefPost, ID: 9}) }()
	second := <-calls

	// The second toggle read the first one's optimistic result, so two
	// flips from unliked land back on unliked, not on liked.
	got := cachedPost(t, store, 9)
	assert.False(t, got.Liked)
	assert.Equal(t, 5, got.LikeCount)

	liked := fixedPost(9, 6, true)
	unliked := fixedPost(9, 5, false)
	first.reply <- gatedLikeReply{post: &liked}
	second.reply <- gatedLikeReply{post: &unliked}
	require.NoError(t, <-errs)
	require.NoError(t, <-errs)

	got = cachedPost(t, store, 9)
	assert.False(t, got.Liked)
	assert.Equal(t, 5, got.LikeCount)
}

func TestToggleLike_ReorderedAcksConverge(t *testing.T) {
	store := NewStore(nil)
	post := fixedPost(9, 5, false)
	require.NoError(t, store.Set(PostKey(9), post, OriginServerFetch, post.Version()))

	calls := make(chan *gatedLikeCall, 2)
	coord := NewCoordinator(store, gatedLikeBackend(calls), nil, nil)

	errs := make(chan error, 2)
	go func() { errs <- coord.ToggleLike(context.Background(), LikeableRef{Kind: RefPost, ID: 9}) }()
	first := <-calls
	go func() { errs <- coord.ToggleLike(context.Background(), LikeableRef{Kind: RefPost, ID: 9}) }()
	second := <-calls

	// Acks arrive in reverse order: the second toggle's (final server
	// truth) first, then the first toggle's intermediate state.
	liked := fixedPost(9, 6, true)
	unliked := fixedPost(9, 5, false)
	second.reply <- gatedLikeReply{post: &unliked}
	require.NoError(t, <-errs)
	first.reply <- gatedLikeReply{post: &liked}
	require.NoError(t, <-errs)

	// The stale intermediate reconciliation was dropped; final state
	// matches the causal toggle order.
	got := cachedPost(t, store, 9)
	assert.False(t, got.Liked)
	assert.Equal(t, 5, got.LikeCount)
}

func TestToggleLike_ServerRejectionRevertsAndToasts(t *testing.T) {
	store := NewStore(nil)
	post := fixedPost(77, 3, false)
	require.NoError(t, store.Set(PostKey(77), post, OriginServerFetch, post.Version()))

	calls := make(chan *gatedLikeCall, 1)
	toasts := &toastRecorder{}
	coord := NewCoordinator(store, gatedLikeBackend(calls), toasts.notify, nil)

	done := make(chan error, 1)
	go func() { done <- coord.ToggleLike(context.Background(), LikeableRef{Kind: RefPost, ID: 77}) }()
	call := <-calls

	// Optimistic state is visible while the request is in flight.
	got := cachedPost(t, store, 77)
	assert.True(t, got.Liked)
	assert.Equal(t, 4, got.LikeCount)

	call.reply <- gatedLikeReply{err: &AuthorizationError{Message: "post no longer exists"}}
	err := <-done
	var authErr *AuthorizationError
	require.ErrorAs(t, err, &authErr)

	got = cachedPost(t, store, 77)
	assert.False(t, got.Liked)
	assert.Equal(t, 3, got.LikeCount)
	assert.Contains(t, toasts.all(), "error: Unable to like: post no longer exists")
}

func TestMarkNotificationRead_UpdatesBadgeOptimistically(t *testing.T) {
	store := NewStore(nil)
	items := []Notification{
		{ID: 1, Title: "one"},
		{ID: 2, Title: "two", IsRead: true},
	}
	require.NoError(t, store.Set(NotificationsKey, items, OriginServerFetch, 1))
	require.NoError(t, store.Set(UnreadCountKey, 1, OriginServerFetch, 1))

	backend := &stubBackend{
		markNotificationReadFn: func(ctx context.Context, id int64) (*Notification, error) {
			now := time.Now()
			return &Notification{ID: id, Title: "one", IsRead: true, ReadAt: &now}, nil
		},
	}
	coord := NewCoordinator(store, backend, nil, nil)

	require.NoError(t, coord.MarkNotificationRead(context.Background(), 1))

	v, _ := store.Get(NotificationsKey)
	list := v.([]Notification)
	require.Len(t, list, 2)
	assert.True(t, list[0].IsRead)
	count, _ := store.Get(UnreadCountKey)
	assert.Equal(t, 0, count)
}

func TestDeletePost_FailureRestoresFeed(t *testing.T) {
	store := NewStore(nil)
	feed := []Post{fixedPost(1, 0, false), fixedPost(2, 0, false)}
	require.NoError(t, store.Set(FeedKey, feed, OriginServerFetch, 1))

	toasts := &toastRecorder{}
	backend := &stubBackend{
		deletePostFn: func(ctx context.Context, id int64) error {
			// The post vanished optimistically before the call resolved.
			v, _ := store.Get(FeedKey)
			assert.Len(t, v.([]Post), 1)
			return &AuthorizationError{Message: "only the author may delete this post"}
		},
	}
	coord := NewCoordinator(store, backend, toasts.notify, nil)

	err := coord.DeletePost(context.Background(), 1)
	require.Error(t, err)

	v, _ := store.Get(FeedKey)
	assert.Equal(t, feed, v.([]Post))
	assert.Contains(t, toasts.all(), "error: Unable to delete post: only the author may delete this post")
}

func TestSetPostPinned_ReconcilesFeedCopy(t *testing.T) {
	store := NewStore(nil)
	post := fixedPost(3, 0, false)
	require.NoError(t, store.Set(FeedKey, []Post{post}, OriginServerFetch, 1))
	require.NoError(t, store.Set(PostKey(3), post, OriginServerFetch, post.Version()))

	backend := &stubBackend{
		setPostPinnedFn: func(ctx context.Context, id int64, pinned bool) (*Post, error) {
			row := fixedPost(id, 0, false)
			row.IsPinned = pinned
			row.UpdatedAt = time.Now()
			return &row, nil
		},
	}
	coord := NewCoordinator(store, backend, nil, nil)

	require.NoError(t, coord.SetPostPinned(context.Background(), 3, true))

	assert.True(t, cachedPost(t, store, 3).IsPinned)
	v, _ := store.Get(FeedKey)
	assert.True(t, v.([]Post)[0].IsPinned, "feed copy refreshed alongside the detail entry")
}
