// Package models contains data structures for the application's domain models.
package models

import "time"

// Post represents a post, optionally inside a group. Ads are posts with IsAd set.
type Post struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Title    string `gorm:"not null" json:"title"`
	Content  string `gorm:"type:text;not null" json:"content"`
	AuthorID uint   `gorm:"not null;index" json:"author_id"`
	Author   *User  `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	GroupID  *uint  `gorm:"index" json:"group_id,omitempty"`
	IsAd     bool   `gorm:"not null;default:false;index" json:"is_ad"`

	Status   ModerationStatus `gorm:"type:varchar(20);not null;default:'active';index" json:"status"`
	Severity Severity         `gorm:"type:varchar(20);not null;default:'none'" json:"severity"`
	Version  int              `gorm:"not null;default:1" json:"version"`
	// RemovedAt is set when the post is taken down, directly or through its group.
	RemovedAt *time.Time `json:"removed_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}
