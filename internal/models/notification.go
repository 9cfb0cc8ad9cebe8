package models

import (
	"time"
)

// Notification types.
const (
	NotificationCommentOnPost    = "comment_on_post"
	NotificationLikeOnPost       = "like_on_post"
	NotificationCollabAnswered   = "collab_answered"
	NotificationCollabRequested  = "collab_requested"
	NotificationMemberApproved   = "member_approved"
	NotificationProgramPublished = "program_published"
)

// Notification is created server-side in response to other entities'
// mutations; clients only read and mark as read.
type Notification struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	UserID        uint       `gorm:"not null;index" json:"user_id"`
	Type          string     `gorm:"not null" json:"type"`
	Title         string     `gorm:"not null" json:"title"`
	Body          string     `gorm:"type:text" json:"body,omitempty"`
	ReferenceType string     `json:"reference_type,omitempty"`
	ReferenceID   uint       `json:"reference_id,omitempty"`
	IsRead        bool       `gorm:"not null;default:false;index" json:"is_read"`
	ReadAt        *time.Time `json:"read_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Version returns the logical version of the row, see Post.Version.
func (n *Notification) Version() int64 {
	return n.UpdatedAt.UnixNano()
}
