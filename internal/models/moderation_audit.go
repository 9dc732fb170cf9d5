package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction names the moderation action an audit entry records.
type AuditAction string

const (
	AuditActionDismissAll   AuditAction = "dismiss_all_pending"
	AuditActionInvestigate  AuditAction = "mark_investigating"
	AuditActionWarn         AuditAction = "send_warning"
	AuditActionDelete       AuditAction = "delete_for_violation"
	AuditActionReviewReport AuditAction = "review_report"
	AuditActionBanUser      AuditAction = "ban_user"
	AuditActionUnbanUser    AuditAction = "unban_user"
)

// ModerationAudit is an immutable record of an admin moderation action.
type ModerationAudit struct {
	ID            uint          `gorm:"primaryKey" json:"-"`
	PublicID      uuid.UUID     `gorm:"type:uuid;uniqueIndex;not null" json:"id"`
	Action        AuditAction   `gorm:"type:varchar(32);not null;index" json:"action"`
	SubjectKind   string        `gorm:"type:varchar(16);not null;index:idx_moderation_audits_subject,priority:1" json:"subject_kind"`
	SubjectID     uint          `gorm:"not null;index:idx_moderation_audits_subject,priority:2" json:"subject_id"`
	ActorID       uint          `gorm:"not null;index" json:"actor_id"`
	ViolationType ViolationType `gorm:"type:varchar(32);default:''" json:"violation_type,omitempty"`
	AdminNote     string        `gorm:"type:text;default:''" json:"admin_note,omitempty"`
	Reason        string        `gorm:"type:text;default:''" json:"reason,omitempty"`
	Details       string        `gorm:"type:text;default:''" json:"details,omitempty"`
	CreatedAt     time.Time     `gorm:"index" json:"created_at"`
}

// TableName specifies the table name for GORM.
func (ModerationAudit) TableName() string {
	return "moderation_audits"
}
