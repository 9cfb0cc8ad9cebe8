package models

import (
	"time"

	"gorm.io/gorm"
)

// ExpertProfile is a directory entry for a vetted expert. The owning user
// edits the draft; admins control publication.
type ExpertProfile struct {
	ID          uint     `gorm:"primaryKey" json:"id"`
	UserID      uint     `gorm:"not null;uniqueIndex" json:"user_id"`
	User        User     `gorm:"foreignKey:UserID" json:"user"`
	Headline    string   `gorm:"not null" json:"headline"`
	Specialties []string `gorm:"serializer:json" json:"specialties"`
	Career      string   `gorm:"type:text" json:"career"`
	Status      string   `gorm:"not null;default:draft;index" json:"status"`

	// Bookmarked indicates whether the current requesting user saved this profile (computed)
	Bookmarked bool `gorm:"->" json:"bookmarked"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Version returns the logical version of the row, see Post.Version.
func (p *ExpertProfile) Version() int64 {
	return p.UpdatedAt.UnixNano()
}

// CollaborationRequest states.
const (
	CollabPending  = "pending"
	CollabAccepted = "accepted"
	CollabDeclined = "declined"
)

// CollaborationRequest is a member's request to work with an expert.
type CollaborationRequest struct {
	ID          uint          `gorm:"primaryKey" json:"id"`
	RequesterID uint          `gorm:"not null;index" json:"requester_id"`
	Requester   User          `gorm:"foreignKey:RequesterID" json:"requester"`
	ExpertID    uint          `gorm:"not null;index" json:"expert_id"`
	Expert      ExpertProfile `gorm:"foreignKey:ExpertID" json:"expert"`
	Message     string        `gorm:"type:text;not null" json:"message"`
	Status      string        `gorm:"not null;default:pending;index" json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
