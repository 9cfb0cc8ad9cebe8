package models

import (
	"time"
)

// Comment belongs to exactly one post and may be nested one level under a
// parent comment. Comments are hard-deleted so the parent post's
// comment_count (computed at read time) drops immediately.
type Comment struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	PostID   uint   `gorm:"not null;index" json:"post_id"`
	AuthorID uint   `gorm:"not null;index" json:"author_id"`
	Author   User   `gorm:"foreignKey:AuthorID" json:"author"`
	ParentID *uint  `gorm:"index" json:"parent_id,omitempty"`
	Content  string `gorm:"type:text;not null" json:"content"`
	IsHidden bool   `gorm:"not null;default:false" json:"is_hidden"`

	ClientToken string `gorm:"size:36;index" json:"client_token,omitempty"`

	// LikeCount is not persisted; computed at query time
	LikeCount int `gorm:"->" json:"like_count"`
	// Liked indicates whether the current requesting user liked this comment (computed)
	Liked bool `gorm:"->" json:"liked"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Version returns the logical version of the row, see Post.Version.
func (c *Comment) Version() int64 {
	return c.UpdatedAt.UnixNano()
}
