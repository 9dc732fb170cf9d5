package models

import (
	"time"

	"github.com/google/uuid"
)

// WarningEvent is one entry of a group's append-only warning ledger.
// Sequence is the group's warning count after the event, unique per group.
type WarningEvent struct {
	ID             uint          `gorm:"primaryKey" json:"-"`
	PublicID       uuid.UUID     `gorm:"type:uuid;uniqueIndex;not null" json:"id"`
	GroupID        uint          `gorm:"not null;uniqueIndex:idx_warning_events_group_seq,priority:1" json:"group_id"`
	Sequence       int           `gorm:"not null;uniqueIndex:idx_warning_events_group_seq,priority:2" json:"sequence"`
	ViolationType  ViolationType `gorm:"type:varchar(32);not null" json:"violation_type"`
	AdminNote      string        `gorm:"type:text;not null" json:"admin_note"`
	Reason         string        `gorm:"type:text;default:''" json:"reason,omitempty"`
	IssuedByUserID uint          `gorm:"not null" json:"issued_by_user_id"`
	IssuedAt       time.Time     `gorm:"not null" json:"issued_at"`
}

// TableName specifies the table name for GORM.
func (WarningEvent) TableName() string {
	return "warning_events"
}
