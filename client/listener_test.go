package client

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStream struct {
	ch     chan PushEvent
	closed atomic.Bool
}

func newFakeStream() *fakeStream {
	return &fakeStream{ch: make(chan PushEvent, 8)}
}

func (s *fakeStream) Events() <-chan PushEvent { return s.ch }

func (s *fakeStream) Close() error {
	s.closed.Store(true)
	return nil
}

// drop simulates the server side going away.
func (s *fakeStream) drop() { close(s.ch) }

type fakeTransport struct {
	mu       sync.Mutex
	failures int
	attempts int
	streams  []*fakeStream
}

func (t *fakeTransport) Connect(ctx context.Context) (EventStream, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.attempts++
	if t.failures > 0 {
		t.failures--
		return nil, &NetworkError{Err: errors.New("connection refused")}
	}
	s := newFakeStream()
	t.streams = append(t.streams, s)
	return s, nil
}

func (t *fakeTransport) attemptCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.attempts
}

func (t *fakeTransport) stream(i int) *fakeStream {
	t.mu.Lock()
	defer t.mu.Unlock()
	if i >= len(t.streams) {
		return nil
	}
	return t.streams[i]
}

func mustRaw(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func postInsertEvent(t *testing.T, row Post) PushEvent {
	t.Helper()
	return PushEvent{
		EventType:   EventInsert,
		Table:       TablePosts,
		New:         mustRaw(t, row),
		ClientToken: row.ClientToken,
		CommitTS:    row.Version(),
	}
}

func startListener(t *testing.T, cfg ListenerConfig) (*Listener, *fakeTransport) {
	t.Helper()
	transport := &fakeTransport{}
	cfg.Transport = transport
	if cfg.Store == nil {
		cfg.Store = NewStore(nil)
	}
	if cfg.Backoff == 0 {
		cfg.Backoff = 5 * time.Millisecond
	}
	l := NewListener(cfg)
	t.Cleanup(l.Stop)
	return l, transport
}

func TestListener_SubscribesAndAppliesEvents(t *testing.T) {
	store := NewStore(nil)
	var gotPosts []Post
	var mu sync.Mutex
	l, transport := startListener(t, ListenerConfig{
		Store: store,
		OnPost: func(p Post) {
			mu.Lock()
			gotPosts = append(gotPosts, p)
			mu.Unlock()
		},
	})

	assert.Equal(t, StateDisconnected, l.State())
	l.Start()

	require.Eventually(t, func() bool { return l.State() == StateSubscribed },
		time.Second, time.Millisecond)

	row := fixedPost(42, 0, false)
	transport.stream(0).ch <- postInsertEvent(t, row)

	require.Eventually(t, func() bool {
		_, ok := store.Get(PostKey(42))
		return ok
	}, time.Second, time.Millisecond)

	v, _ := store.Get(FeedKey)
	feed := v.([]Post)
	require.Len(t, feed, 1)
	assert.Equal(t, int64(42), feed[0].ID)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, gotPosts, 1)
	assert.Equal(t, int64(42), gotPosts[0].ID)
}

func TestListener_ReconnectsAfterStreamLoss(t *testing.T) {
	l, transport := startListener(t, ListenerConfig{})
	l.Start()

	require.Eventually(t, func() bool { return l.State() == StateSubscribed },
		time.Second, time.Millisecond)

	transport.stream(0).drop()

	require.Eventually(t, func() bool {
		return transport.stream(1) != nil && l.State() == StateSubscribed
	}, time.Second, time.Millisecond)
	assert.True(t, transport.stream(0).closed.Load())
}

func TestListener_RetriesFailedConnects(t *testing.T) {
	var states []ListenerState
	var mu sync.Mutex
	transport := &fakeTransport{failures: 2}
	store := NewStore(nil)
	l := NewListener(ListenerConfig{
		Transport: transport,
		Store:     store,
		Backoff:   time.Millisecond,
		OnStateChange: func(s ListenerState) {
			mu.Lock()
			states = append(states, s)
			mu.Unlock()
		},
	})
	t.Cleanup(l.Stop)
	l.Start()

	require.Eventually(t, func() bool { return l.State() == StateSubscribed },
		time.Second, time.Millisecond)
	assert.Equal(t, 3, transport.attemptCount())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []ListenerState{
		StateConnecting, StateReconnecting,
		StateConnecting, StateReconnecting,
		StateConnecting, StateSubscribed,
	}, states)
}

func TestListener_StopCancelsPendingReconnect(t *testing.T) {
	transport := &fakeTransport{failures: 1000}
	l := NewListener(ListenerConfig{
		Transport: transport,
		Store:     NewStore(nil),
		Backoff:   time.Hour,
	})
	l.Start()

	require.Eventually(t, func() bool { return l.State() == StateReconnecting },
		time.Second, time.Millisecond)

	done := make(chan struct{})
	go func() {
		l.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop should cancel the pending reconnect timer")
	}
	assert.Equal(t, StateDisconnected, l.State())
}

func TestListener_DropsStalePushEvents(t *testing.T) {
	store := NewStore(nil)
	l := NewListener(ListenerConfig{Transport: &fakeTransport{}, Store: store})

	current := fixedPost(7, 6, true)
	require.NoError(t, store.Set(PostKey(7), current, OriginServerReconcile, current.Version()))

	older := fixedPost(7, 5, false)
	older.UpdatedAt = current.UpdatedAt.Add(-time.Minute)
	l.apply(PushEvent{
		EventType: EventUpdate,
		Table:     TablePosts,
		New:       mustRaw(t, older),
		CommitTS:  older.Version(),
	})

	got, _ := store.Get(PostKey(7))
	assert.Equal(t, current, got, "push older than the reconciled row must be dropped")
}

func TestListener_OwnWriteEchoConverges(t *testing.T) {
	store := NewStore(nil)
	post := fixedPost(9, 5, false)
	require.NoError(t, store.Set(PostKey(9), post, OriginServerFetch, post.Version()))

	var counts []int
	store.Subscribe(PostKey(9), func(v any) {
		if p, ok := v.(Post); ok {
			counts = append(counts, p.LikeCount)
		}
	})

	calls := make(chan *gatedLikeCall, 1)
	coord := NewCoordinator(store, gatedLikeBackend(calls), nil, nil)
	l := NewListener(ListenerConfig{Transport: &fakeTransport{}, Store: store})

	done := make(chan error, 1)
	go func() { done <- coord.ToggleLike(context.Background(), LikeableRef{Kind: RefPost, ID: 9}) }()
	call := <-calls
	assert.Equal(t, 6, cachedPost(t, store, 9).LikeCount)

	// The user's own write echoes back over the push channel before the
	// mutation's response arrives.
	echoed := fixedPost(9, 6, true)
	echoed.UpdatedAt = time.Now()
	l.apply(PushEvent{
		EventType: EventUpdate,
		Table:     TablePosts,
		New:       mustRaw(t, echoed),
		CommitTS:  echoed.Version(),
	})
	assert.Equal(t, 6, cachedPost(t, store, 9).LikeCount,
		"push echo clears the optimistic patch instead of stacking on it")

	call.reply <- gatedLikeReply{post: &echoed}
	require.NoError(t, <-done)

	assert.Equal(t, 6, cachedPost(t, store, 9).LikeCount)
	assert.NotContains(t, counts, 7, "like count must never flicker past the server value")
}

func TestListener_NotificationEventsUpdateBadge(t *testing.T) {
	store := NewStore(nil)
	require.NoError(t, store.Set(NotificationsKey, []Notification{}, OriginServerFetch, 1))
	require.NoError(t, store.Set(UnreadCountKey, 0, OriginServerFetch, 1))

	var toasted []Notification
	l := NewListener(ListenerConfig{
		Transport:      &fakeTransport{},
		Store:          store,
		OnNotification: func(n Notification) { toasted = append(toasted, n) },
	})

	n := Notification{ID: 31, Title: "comment_on_post", CreatedAt: time.Now()}
	l.apply(PushEvent{
		EventType: EventInsert,
		Table:     TableNotifications,
		New:       mustRaw(t, n),
		CommitTS:  time.Now().UnixNano(),
	})

	v, _ := store.Get(NotificationsKey)
	list := v.([]Notification)
	require.Len(t, list, 1)
	assert.Equal(t, int64(31), list[0].ID)
	assert.True(t, store.IsStale(UnreadCountKey), "badge count scheduled for refetch")
	require.Len(t, toasted, 1)
}

func TestListener_CommentInsertInvalidatesPostCount(t *testing.T) {
	store := NewStore(nil)
	post := fixedPost(5, 0, false)
	post.CommentCount = 2
	require.NoError(t, store.Set(PostKey(5), post, OriginServerFetch, post.Version()))
	require.NoError(t, store.Set(CommentsKey(5), []Comment{}, OriginServerFetch, 1))

	l := NewListener(ListenerConfig{Transport: &fakeTransport{}, Store: store})

	cm := Comment{ID: 88, PostID: 5, Content: "welcome aboard", UpdatedAt: time.Now()}
	l.apply(PushEvent{
		EventType: EventInsert,
		Table:     TableComments,
		New:       mustRaw(t, cm),
		CommitTS:  cm.Version(),
	})

	v, _ := store.Get(CommentsKey(5))
	require.Len(t, v.([]Comment), 1)
	assert.True(t, store.IsStale(PostKey(5)),
		"comment counts come from the post row, so the post refetches")
}

func TestListener_CommentDeleteRemovesFromList(t *testing.T) {
	store := NewStore(nil)
	post := fixedPost(5, 0, false)
	post.CommentCount = 2
	require.NoError(t, store.Set(PostKey(5), post, OriginServerFetch, post.Version()))
	cm := Comment{ID: 88, PostID: 5, Content: "now hidden", UpdatedAt: time.Now()}
	require.NoError(t, store.Set(CommentsKey(5), []Comment{cm}, OriginServerFetch, 1))

	l := NewListener(ListenerConfig{Transport: &fakeTransport{}, Store: store})
	// Deletes and moderator hides both arrive as delete events with the
	// row in old.
	l.apply(PushEvent{
		EventType: EventDelete,
		Table:     TableComments,
		Old:       mustRaw(t, cm),
		CommitTS:  time.Now().UnixNano(),
	})

	v, _ := store.Get(CommentsKey(5))
	assert.Empty(t, v.([]Comment))
	assert.True(t, store.IsStale(PostKey(5)),
		"the parent post refetches its comment count")
}

func TestListener_FreshLikePushAppliesAfterOwnToggle(t *testing.T) {
	store := NewStore(nil)
	post := fixedPost(9, 5, false)
	require.NoError(t, store.Set(PostKey(9), post, OriginServerFetch, post.Version()))

	// The user's own toggle reconciles; likes do not move updated_at, so
	// the cached version is now the mutation's call time.
	mine := fixedPost(9, 6, true)
	backend := &stubBackend{
		togglePostLikeFn: func(ctx context.Context, id int64) (*Post, error) { return &mine, nil },
	}
	coord := NewCoordinator(store, backend, nil, nil)
	require.NoError(t, coord.ToggleLike(context.Background(), LikeableRef{Kind: RefPost, ID: 9}))
	require.Equal(t, 6, cachedPost(t, store, 9).LikeCount)

	// Another user's like arrives by push. The row's updated_at is still
	// old, but the server stamps the event with publish time, so it must
	// win over the reconciled state instead of being dropped as stale.
	theirs := fixedPost(9, 7, true)
	l := NewListener(ListenerConfig{Transport: &fakeTransport{}, Store: store})
	l.apply(PushEvent{
		EventType: EventUpdate,
		Table:     TablePosts,
		New:       mustRaw(t, theirs),
		CommitTS:  time.Now().UnixNano(),
	})

	assert.Equal(t, 7, cachedPost(t, store, 9).LikeCount)
}

func TestListener_PostDeleteEvictsEntries(t *testing.T) {
	store := NewStore(nil)
	post := fixedPost(4, 0, false)
	require.NoError(t, store.Set(FeedKey, []Post{post}, OriginServerFetch, 1))
	require.NoError(t, store.Set(PostKey(4), post, OriginServerFetch, post.Version()))

	l := NewListener(ListenerConfig{Transport: &fakeTransport{}, Store: store})
	l.apply(PushEvent{
		EventType: EventDelete,
		Table:     TablePosts,
		Old:       mustRaw(t, post),
		CommitTS:  time.Now().UnixNano(),
	})

	_, ok := store.Get(PostKey(4))
	assert.False(t, ok)
	v, _ := store.Get(FeedKey)
	assert.Empty(t, v.([]Post))
}
