package models

import (
	"time"
)

// Bookmarkable target types.
const (
	BookmarkablePost           = "post"
	BookmarkableSupportProgram = "support_program"
	BookmarkableExpertProfile  = "expert_profile"
)

// Bookmark is a polymorphic join row, same shape as Like but for saved
// posts, support programs and expert profiles.
type Bookmark struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	UserID           uint      `gorm:"not null;uniqueIndex:idx_bookmark_target" json:"user_id"`
	BookmarkableType string    `gorm:"not null;uniqueIndex:idx_bookmark_target" json:"bookmarkable_type"`
	BookmarkableID   uint      `gorm:"not null;uniqueIndex:idx_bookmark_target" json:"bookmarkable_id"`
	CreatedAt        time.Time `json:"created_at"`
}
