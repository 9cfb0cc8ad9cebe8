// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"gorm.io/gorm"
)

// User roles.
const (
	RoleMember = "member"
	RoleExpert = "expert"
	RoleAdmin  = "admin"
)

// Membership approval states. New signups start as pending and may not
// post until an admin approves them.
const (
	ApprovalPending  = "pending"
	ApprovalApproved = "approved"
	ApprovalRejected = "rejected"
)

// Supported UI locales.
const (
	LocaleKorean  = "ko"
	LocaleEnglish = "en"
)

// User represents a member of The Potential.
type User struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	Email        string `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"not null" json:"-"`
	Name         string `gorm:"not null" json:"name"`
	CompanyName  string `json:"company_name"`
	Bio          string `gorm:"type:text" json:"bio"`
	AvatarURL    string `json:"avatar_url"`
	Role         string `gorm:"not null;default:member;index" json:"role"`
	Approval     string `gorm:"not null;default:pending;index" json:"approval"`
	Locale       string `gorm:"not null;default:ko" json:"locale"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// CanPost reports whether the user has been approved to write content.
func (u *User) CanPost() bool {
	return u.Approval == ApprovalApproved
}
