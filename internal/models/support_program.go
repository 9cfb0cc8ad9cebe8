package models

import (
	"time"

	"gorm.io/gorm"
)

// Content publication states for admin-curated entities.
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
	StatusArchived  = "archived"
)

// ValidStatusTransition reports whether a curated entity may move from one
// publication state to another. Only draft→published and
// published→archived are allowed.
func ValidStatusTransition(from, to string) bool {
	switch from {
	case StatusDraft:
		return to == StatusPublished
	case StatusPublished:
		return to == StatusArchived
	default:
		return false
	}
}

// SupportProgram is a curated government or private founder-support
// program. Read-mostly; only admins mutate.
type SupportProgram struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Title        string    `gorm:"not null" json:"title"`
	Organization string    `gorm:"not null" json:"organization"`
	Description  string    `gorm:"type:text" json:"description"`
	ApplyURL     string    `json:"apply_url"`
	OpensAt      time.Time `json:"opens_at"`
	ClosesAt     time.Time `json:"closes_at"`
	Status       string    `gorm:"not null;default:draft;index" json:"status"`

	// Bookmarked indicates whether the current requesting user saved this program (computed)
	Bookmarked bool `gorm:"->" json:"bookmarked"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Version returns the logical version of the row, see Post.Version.
func (p *SupportProgram) Version() int64 {
	return p.UpdatedAt.UnixNano()
}
