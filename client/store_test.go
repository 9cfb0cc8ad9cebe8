package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedPost(id int64, likeCount int, liked bool) Post {
	return Post{
		ID:        id,
		Content:   "hello",
		LikeCount: likeCount,
		Liked:     liked,
		UpdatedAt: time.Unix(1700000000, 0),
	}
}

func TestStore_SetAndGet(t *testing.T) {
	s := NewStore(nil)

	_, ok := s.Get(PostKey(1))
	assert.False(t, ok)

	post := fixedPost(1, 3, false)
	require.NoError(t, s.Set(PostKey(1), post, OriginServerFetch, post.Version()))

	got, ok := s.Get(PostKey(1))
	require.True(t, ok)
	assert.Equal(t, post, got)
}

func TestStore_LastWriterWinsByVersion(t *testing.T) {
	s := NewStore(nil)
	key := PostKey(7)

	newer := fixedPost(7, 5, true)
	require.NoError(t, s.Set(key, newer, OriginServerReconcile, 200))

	// An older push event must not regress the cache.
	older := fixedPost(7, 4, false)
	err := s.Set(key, older, OriginPush, 100)
	assert.ErrorIs(t, err, ErrStaleEvent)

	got, _ := s.Get(key)
	assert.Equal(t, newer, got)

	// Equal version: last write wins.
	require.NoError(t, s.Set(key, older, OriginPush, 200))
	got, _ = s.Get(key)
	assert.Equal(t, older, got)
}

func TestStore_ApplyRejectsConcurrentMutations(t *testing.T) {
	s := NewStore(nil)
	key := PostKey(1)
	require.NoError(t, s.Set(key, fixedPost(1, 0, false), OriginServerFetch, 1))

	flip := func(v any) any {
		p := v.(Post)
		p.Liked = !p.Liked
		return p
	}

	require.NoError(t, s.Apply(key, "mut-a", flip))
	// Same mutation may layer more patches.
	require.NoError(t, s.Apply(key, "mut-a", flip))
	// A different mutation must not race the pending one.
	assert.ErrorIs(t, s.Apply(key, "mut-b", flip), ErrOptimisticConflict)
}

func TestStore_AuthoritativeWriteClearsPatches(t *testing.T) {
	s := NewStore(nil)
	key := PostKey(1)
	require.NoError(t, s.Set(key, fixedPost(1, 3, false), OriginServerFetch, 1))

	require.NoError(t, s.Apply(key, "mut-a", func(v any) any {
		p := v.(Post)
		p.LikeCount++
		p.Liked = true
		return p
	}))
	got, _ := s.Get(key)
	assert.Equal(t, 4, got.(Post).LikeCount)

	authoritative := fixedPost(1, 9, true)
	require.NoError(t, s.Set(key, authoritative, OriginServerReconcile, 2))

	got, _ = s.Get(key)
	assert.Equal(t, authoritative, got, "patch journal should be cleared, not re-applied")

	// Rolling back the cleared mutation is a no-op.
	s.Rollback(key, "mut-a")
	got, _ = s.Get(key)
	assert.Equal(t, authoritative, got)
}

func TestStore_RollbackRemovesOnlyOneMutation(t *testing.T) {
	s := NewStore(nil)
	key := PostKey(1)
	require.NoError(t, s.Set(key, fixedPost(1, 3, false), OriginServerFetch, 1))

	s.stack(key, "mut-a", "", func(v any) any {
		p := v.(Post)
		p.LikeCount++
		return p
	})
	s.stack(key, "mut-b", "", func(v any) any {
		p := v.(Post)
		p.LikeCount += 10
		return p
	})

	got, _ := s.Get(key)
	assert.Equal(t, 14, got.(Post).LikeCount)

	s.Rollback(key, "mut-a")
	got, _ = s.Get(key)
	assert.Equal(t, 13, got.(Post).LikeCount, "mut-b's patch must survive and re-apply on base")
}

func TestStore_SubscribeNotifiesOnEveryWrite(t *testing.T) {
	s := NewStore(nil)
	key := PostKey(1)

	var seen []int
	unsubscribe := s.Subscribe(key, func(v any) {
		if p, ok := v.(Post); ok {
			seen = append(seen, p.LikeCount)
		}
	})

	require.NoError(t, s.Set(key, fixedPost(1, 1, false), OriginServerFetch, 1))
	s.stack(key, "mut-a", "", func(v any) any {
		p := v.(Post)
		p.LikeCount = 2
		return p
	})
	s.Rollback(key, "mut-a")

	assert.Equal(t, []int{1, 2, 1}, seen)

	unsubscribe()
	require.NoError(t, s.Set(key, fixedPost(1, 5, false), OriginServerFetch, 2))
	assert.Equal(t, []int{1, 2, 1}, seen, "no callbacks after unsubscribe")
}

func TestStore_InvalidateMarksPrefixStale(t *testing.T) {
	s := NewStore(nil)
	require.NoError(t, s.Set(FeedKey, []Post{fixedPost(1, 0, false)}, OriginServerFetch, 1))
	require.NoError(t, s.Set(PostKey(1), fixedPost(1, 0, false), OriginServerFetch, 1))

	s.Invalidate("feed")

	assert.True(t, s.IsStale(FeedKey))
	assert.False(t, s.IsStale(PostKey(1)))

	// A fresh authoritative write clears staleness.
	require.NoError(t, s.Set(FeedKey, []Post{}, OriginServerFetch, 2))
	assert.False(t, s.IsStale(FeedKey))
}

func TestStore_LastUnsubscribeEvictsStaleEntry(t *testing.T) {
	s := NewStore(nil)
	require.NoError(t, s.Set(FeedKey, []Post{fixedPost(1, 0, false)}, OriginServerFetch, 1))

	unsubscribe := s.Subscribe(FeedKey, func(any) {})
	s.Invalidate("feed")

	_, ok := s.Get(FeedKey)
	assert.True(t, ok, "stale entries keep serving until consumers leave")

	unsubscribe()
	_, ok = s.Get(FeedKey)
	assert.False(t, ok, "stale entry evicted with its last consumer")
}

func TestStore_MergeBaseDropsMatchingToken(t *testing.T) {
	s := NewStore(nil)
	base := []Post{fixedPost(10, 0, false)}
	require.NoError(t, s.Set(FeedKey, base, OriginServerFetch, 1))

	sentinel := Post{ID: -1, Content: "draft", ClientToken: "tok-1"}
	s.stack(FeedKey, "mut-a", "tok-1", func(v any) any {
		list, _ := v.([]Post)
		return append([]Post{sentinel}, list...)
	})

	got, _ := s.Get(FeedKey)
	require.Len(t, got.([]Post), 2)

	real := fixedPost(501, 0, false)
	real.ClientToken = "tok-1"
	s.mergeBase(FeedKey, "tok-1", func(b any) any {
		list, _ := b.([]Post)
		return upsertPost(list, real, true)
	})

	got, _ = s.Get(FeedKey)
	list := got.([]Post)
	require.Len(t, list, 2, "real row replaces the sentinel, nothing duplicated")
	assert.Equal(t, int64(501), list[0].ID)
	assert.Equal(t, int64(10), list[1].ID)
}
