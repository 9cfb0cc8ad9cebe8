package client

import (
	"fmt"
	"strings"
	"time"
)

// Post is the wire representation of a feed post. IDs are signed so
// optimistic sentinel rows can use negative placeholders until the
// server assigns a real id.
type Post struct {
	ID           int64     `json:"id"`
	AuthorID     int64     `json:"author_id"`
	Author       UserRef   `json:"author"`
	Content      string    `json:"content"`
	MediaURLs    []string  `json:"media_urls"`
	IsPinned     bool      `json:"is_pinned"`
	IsHidden     bool      `json:"is_hidden"`
	ClientToken  string    `json:"client_token,omitempty"`
	LikeCount    int       `json:"like_count"`
	CommentCount int       `json:"comment_count"`
	Liked        bool      `json:"liked"`
	Bookmarked   bool      `json:"bookmarked"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Version is the post's logical version: updated_at in unix nanoseconds,
// the same value the server publishes as commit_ts on push events.
func (p Post) Version() int64 { return p.UpdatedAt.UnixNano() }

// Comment is the wire representation of a post comment.
type Comment struct {
	ID          int64     `json:"id"`
	PostID      int64     `json:"post_id"`
	AuthorID    int64     `json:"author_id"`
	Author      UserRef   `json:"author"`
	ParentID    *int64    `json:"parent_id,omitempty"`
	Content     string    `json:"content"`
	IsHidden    bool      `json:"is_hidden"`
	ClientToken string    `json:"client_token,omitempty"`
	LikeCount   int       `json:"like_count"`
	Liked       bool      `json:"liked"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Version is the comment's logical version in unix nanoseconds.
func (c Comment) Version() int64 { return c.UpdatedAt.UnixNano() }

// UserRef is the author summary embedded in posts and comments.
type UserRef struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// Notification is the wire representation of a user notification.
type Notification struct {
	ID            int64      `json:"id"`
	UserID        int64      `json:"user_id"`
	Type          string     `json:"type"`
	Title         string     `json:"title"`
	Body          string     `json:"body,omitempty"`
	ReferenceType string     `json:"reference_type,omitempty"`
	ReferenceID   int64      `json:"reference_id,omitempty"`
	IsRead        bool       `json:"is_read"`
	ReadAt        *time.Time `json:"read_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// BookmarkState is the server's answer to a bookmark toggle.
type BookmarkState struct {
	BookmarkableType string `json:"bookmarkable_type"`
	BookmarkableID   int64  `json:"bookmarkable_id"`
	Bookmarked       bool   `json:"bookmarked"`
}

// RefKind tags a LikeableRef so mutation dispatch is exhaustive.
type RefKind string

const (
	RefPost    RefKind = "post"
	RefComment RefKind = "comment"
)

// LikeableRef identifies a like target as a tagged union rather than a
// loosely typed (type, id) pair.
type LikeableRef struct {
	Kind RefKind
	ID   int64
}

// BookmarkKind tags a BookmarkRef.
type BookmarkKind string

const (
	BookmarkPost    BookmarkKind = "post"
	BookmarkProgram BookmarkKind = "support_program"
	BookmarkExpert  BookmarkKind = "expert_profile"
)

// BookmarkRef identifies a bookmark target.
type BookmarkRef struct {
	Kind BookmarkKind
	ID   int64
}

// Key addresses one cached value: an entity (type + id) or a query
// (type + filter). Prefixes group related keys for invalidation.
type Key string

// Query keys with no parameters.
const (
	FeedKey          Key = "feed"
	NotificationsKey Key = "notifications:list"
	UnreadCountKey   Key = "notifications:unread"
	BookmarksKey     Key = "bookmarks"
)

// PostKey addresses a single post's detail entry.
func PostKey(id int64) Key { return Key(fmt.Sprintf("post:%d", id)) }

// CommentsKey addresses the comment list of one post.
func CommentsKey(postID int64) Key { return Key(fmt.Sprintf("comments:%d", postID)) }

// HasPrefix reports whether the key falls under an invalidation prefix.
func (k Key) HasPrefix(prefix string) bool { return strings.HasPrefix(string(k), prefix) }
