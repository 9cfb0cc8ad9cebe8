package models

import (
	"time"
)

// Post represents a community feed post.
//
// Posts are hard-deleted: removing a post removes its comments and likes
// with it, and a delete event is pushed to connected clients.
type Post struct {
	ID        uint     `gorm:"primaryKey" json:"id"`
	AuthorID  uint     `gorm:"not null;index" json:"author_id"`
	Author    User     `gorm:"foreignKey:AuthorID" json:"author"`
	Content   string   `gorm:"type:text;not null" json:"content"`
	MediaURLs []string `gorm:"serializer:json" json:"media_urls"`
	IsPinned  bool     `gorm:"not null;default:false;index" json:"is_pinned"`
	IsHidden  bool     `gorm:"not null;default:false;index" json:"is_hidden"`

	// ClientToken is the client-generated correlation UUID echoed back so an
	// optimistically created row can be matched to its server row.
	ClientToken string `gorm:"size:36;index" json:"client_token,omitempty"`

	// LikeCount is not persisted; computed at query time
	LikeCount int `gorm:"->" json:"like_count"`
	// CommentCount is not persisted; computed at query time
	CommentCount int `gorm:"->" json:"comment_count"`
	// Liked indicates whether the current requesting user liked this post (computed)
	Liked bool `gorm:"->" json:"liked"`
	// Bookmarked indicates whether the current requesting user bookmarked this post (computed)
	Bookmarked bool `gorm:"->" json:"bookmarked"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Version returns the logical version of the row used by clients to order
// authoritative writes. Derived from the row's UpdatedAt, never from the
// receiver's clock.
func (p *Post) Version() int64 {
	return p.UpdatedAt.UnixNano()
}
