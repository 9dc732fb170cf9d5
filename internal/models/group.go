package models

import "time"

// Group represents a community group that members post into.
type Group struct {
	ID           uint             `gorm:"primaryKey" json:"id"`
	Name         string           `gorm:"size:120;not null" json:"name"`
	Slug         string           `gorm:"size:48;not null;uniqueIndex" json:"slug"`
	Description  string           `gorm:"type:text" json:"description"`
	OwnerID      uint             `gorm:"not null;index" json:"owner_id"`
	Owner        *User            `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	Status       ModerationStatus `gorm:"type:varchar(20);not null;default:'active';index" json:"status"`
	Severity     Severity         `gorm:"type:varchar(20);not null;default:'none'" json:"severity"`
	WarningCount int              `gorm:"not null;default:0" json:"warning_count"`
	// Version guards moderation writes with a compare-and-swap.
	Version   int        `gorm:"not null;default:1" json:"version"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (Group) TableName() string {
	return "groups"
}
