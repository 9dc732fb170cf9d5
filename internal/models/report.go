package models

import "time"

// ReportStatus is the triage state of a single report.
type ReportStatus string

const (
	ReportStatusPending       ReportStatus = "pending"
	ReportStatusInvestigating ReportStatus = "investigating"
	ReportStatusDismissed     ReportStatus = "dismissed"
	ReportStatusResolved      ReportStatus = "resolved"
)

// Settled reports whether the status carries a resolution timestamp.
func (s ReportStatus) Settled() bool {
	return s == ReportStatusDismissed || s == ReportStatusResolved
}

// ReportAction records what moderation outcome settled a report.
type ReportAction string

const (
	ReportActionNone           ReportAction = "none"
	ReportActionContentRemoved ReportAction = "content_removed"
	ReportActionUserBanned     ReportAction = "user_banned"
	ReportActionWarningSent    ReportAction = "warning_sent"
	ReportActionGroupSuspended ReportAction = "group_suspended"
)

// Report is a user complaint against a group or post. Reports are never deleted.
type Report struct {
	ID               uint         `gorm:"primaryKey" json:"id"`
	SubjectKind      SubjectKind  `gorm:"type:varchar(16);not null;index:idx_reports_subject,priority:1" json:"subject_kind"`
	SubjectID        uint         `gorm:"not null;index:idx_reports_subject,priority:2" json:"subject_id"`
	ReporterID       uint         `gorm:"not null;index" json:"reporter_id"`
	ReportType       string       `gorm:"size:64;not null" json:"report_type"`
	Reason           string       `gorm:"type:text;default:''" json:"reason"`
	Status           ReportStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	ActionTaken      ReportAction `gorm:"type:varchar(32);not null;default:'none'" json:"action_taken"`
	ResolvedAt       *time.Time   `json:"resolved_at,omitempty"`
	ResolvedByUserID *uint        `json:"resolved_by_user_id,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (Report) TableName() string {
	return "reports"
}
