package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents an account on the platform.
type User struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Username string `gorm:"size:64;uniqueIndex;not null" json:"username"`
	Email    string `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Password string `gorm:"not null" json:"-"`
	IsAdmin  bool   `gorm:"not null;default:false" json:"is_admin"`

	IsBlocked       bool       `gorm:"not null;default:false;index" json:"is_blocked"`
	BlockedAt       *time.Time `json:"blocked_at,omitempty"`
	BlockedReason   string     `gorm:"type:text;default:''" json:"blocked_reason,omitempty"`
	BlockedByUserID *uint      `json:"blocked_by_user_id,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
