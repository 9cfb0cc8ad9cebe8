package models

import (
	"time"
)

// Likeable target types.
const (
	LikeablePost    = "post"
	LikeableComment = "comment"
)

// Like is a polymorphic join row. The composite uniqueness constraint is
// the backend-side guarantee that a user can never double-like a target;
// inserts use ON CONFLICT DO NOTHING so races collapse to a no-op.
type Like struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uint      `gorm:"not null;uniqueIndex:idx_like_target" json:"user_id"`
	LikeableType string    `gorm:"not null;uniqueIndex:idx_like_target" json:"likeable_type"`
	LikeableID   uint      `gorm:"not null;uniqueIndex:idx_like_target" json:"likeable_id"`
	CreatedAt    time.Time `json:"created_at"`
}
