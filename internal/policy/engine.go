// Package policy holds the moderation decision rules. It performs no I/O:
// callers load a Subject, ask the Engine for a Decision and persist it.
package policy

import (
	"fmt"
	"strings"
	"time"

	"warden/internal/models"
)

// DefaultMaxWarnings is the warning cap after which a group is deleted.
const DefaultMaxWarnings = 5

// ActionKind names a moderation action.
type ActionKind string

const (
	ActionDismissAllPending        ActionKind = "dismiss_all_pending"
	ActionMarkInvestigating        ActionKind = "mark_investigating"
	ActionSendWarning              ActionKind = "send_warning"
	ActionDeleteForSevereViolation ActionKind = "delete_for_severe_violation"
	ActionReviewReport             ActionKind = "review_report"
)

// Subject is the moderation view of a group or post, with report counts
// derived from the report store at load time.
type Subject struct {
	Kind                     models.SubjectKind
	ID                       uint
	Status                   models.ModerationStatus
	Severity                 models.Severity
	WarningCount             int
	PendingReportCount       int
	InvestigatingReportCount int
	TotalReportCount         int
	Version                  int
}

// ReportRef identifies the single report a ReviewReport action targets.
type ReportRef struct {
	ID     uint
	Status models.ReportStatus
}

// Action carries an admin request. Now is supplied by the caller so
// decisions stay deterministic.
type Action struct {
	Kind          ActionKind
	ActorID       uint
	ViolationType models.ViolationType
	AdminNote     string
	Reason        string
	Now           time.Time

	Report       *ReportRef
	ReviewStatus models.ReportStatus
}

// ReportTransition moves reports of the subject whose status is in From.
// ReportID narrows it to one report.
type ReportTransition struct {
	ReportID    uint
	From        []models.ReportStatus
	To          models.ReportStatus
	ActionTaken models.ReportAction
}

// WarningDraft is the ledger entry a decision appends.
type WarningDraft struct {
	Sequence      int
	ViolationType models.ViolationType
	AdminNote     string
	Reason        string
	IssuedBy      uint
	IssuedAt      time.Time
}

// AuditDraft is the audit record a decision writes.
type AuditDraft struct {
	Action        models.AuditAction
	ViolationType models.ViolationType
	AdminNote     string
	Reason        string
}

// Decision is the full set of mutations for one action.
type Decision struct {
	// Requested is what the admin asked for, Action what the engine decided.
	Requested ActionKind
	Action    ActionKind
	Escalated bool
	NoOp      bool

	NewStatus       models.ModerationStatus
	NewSeverity     models.Severity
	NewWarningCount int

	Transitions    []ReportTransition
	Warning        *WarningDraft
	CascadeRemoval bool
	Audit          *AuditDraft
	At             time.Time

	// ExpectedTransitions is how many reports the transitions should touch,
	// given the counts on the subject.
	ExpectedTransitions int
}

// StatusChanged reports whether the subject row must be written.
func (d Decision) StatusChanged(s Subject) bool {
	return d.NewStatus != s.Status || d.NewSeverity != s.Severity || d.NewWarningCount != s.WarningCount
}

// Engine decides moderation outcomes from a configured severity ladder and warning cap.
type Engine struct {
	table       SeverityTable
	maxWarnings int
}

// NewEngine validates table and cap and returns an Engine.
func NewEngine(table SeverityTable, maxWarnings int) (*Engine, error) {
	if maxWarnings <= 0 {
		return nil, fmt.Errorf("max warnings must be positive, got %d", maxWarnings)
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}
	return &Engine{table: table, maxWarnings: maxWarnings}, nil
}

// DefaultEngine returns an Engine with the stock ladder and a cap of five.
func DefaultEngine() *Engine {
	return &Engine{table: MustParseSeverityTable(DefaultSeverityTable), maxWarnings: DefaultMaxWarnings}
}

// MaxWarnings returns the configured warning cap.
func (e *Engine) MaxWarnings() int { return e.maxWarnings }

// SeverityFor returns the severity for a warning count.
func (e *Engine) SeverityFor(warnings int) models.Severity { return e.table.For(warnings) }

// Decide computes the mutations action implies for subject. It returns an
// *models.AppError for invalid or terminal requests.
func (e *Engine) Decide(subject Subject, action Action) (Decision, error) {
	if !subject.Kind.Valid() {
		return Decision{}, models.NewValidationError(fmt.Sprintf("unknown subject kind %q", subject.Kind))
	}
	if subject.Status == models.ModerationStatusDeleted {
		return Decision{}, models.NewTerminalStateError(string(subject.Kind), subject.ID)
	}
	if action.Now.IsZero() {
		action.Now = time.Now().UTC()
	}

	switch action.Kind {
	case ActionDismissAllPending:
		return e.dismissAllPending(subject, action), nil
	case ActionMarkInvestigating:
		return e.markInvestigating(subject, action)
	case ActionSendWarning:
		return e.sendWarning(subject, action)
	case ActionDeleteForSevereViolation:
		if err := validateViolation(action); err != nil {
			return Decision{}, err
		}
		return e.deleteForViolation(subject, action, false), nil
	case ActionReviewReport:
		return e.reviewReport(subject, action)
	}
	return Decision{}, models.NewValidationError(fmt.Sprintf("unknown moderation action %q", action.Kind))
}

func (e *Engine) base(subject Subject, action Action) Decision {
	return Decision{
		Requested:       action.Kind,
		Action:          action.Kind,
		NewStatus:       subject.Status,
		NewSeverity:     subject.Severity,
		NewWarningCount: subject.WarningCount,
		At:              action.Now,
	}
}

func (e *Engine) dismissAllPending(subject Subject, action Action) Decision {
	d := e.base(subject, action)
	if subject.Status == models.ModerationStatusInvestigating {
		d.NewStatus = models.ModerationStatusActive
	}
	if subject.PendingReportCount == 0 && d.NewStatus == subject.Status {
		d.NoOp = true
		return d
	}
	if subject.PendingReportCount > 0 {
		d.Transitions = []ReportTransition{{
			From:        []models.ReportStatus{models.ReportStatusPending},
			To:          models.ReportStatusDismissed,
			ActionTaken: models.ReportActionNone,
		}}
		d.ExpectedTransitions = subject.PendingReportCount
	}
	d.Audit = &AuditDraft{Action: models.AuditActionDismissAll, AdminNote: action.AdminNote}
	return d
}

func (e *Engine) markInvestigating(subject Subject, action Action) (Decision, error) {
	d := e.base(subject, action)
	if subject.Status == models.ModerationStatusInvestigating {
		d.NoOp = true
		return d, nil
	}
	if subject.PendingReportCount == 0 {
		return Decision{}, models.NewValidationError(
			fmt.Sprintf("%s %d has no pending reports to investigate", subject.Kind, subject.ID))
	}
	d.NewStatus = models.ModerationStatusInvestigating
	d.Audit = &AuditDraft{Action: models.AuditActionInvestigate, AdminNote: action.AdminNote}
	return d, nil
}

func (e *Engine) sendWarning(subject Subject, action Action) (Decision, error) {
	if subject.Kind != models.SubjectGroup {
		return Decision{}, models.NewValidationError("warnings can only be issued to groups")
	}
	if err := validateViolation(action); err != nil {
		return Decision{}, err
	}

	// The cap is checked against the count before this warning.
	if subject.WarningCount >= e.maxWarnings {
		return e.deleteForViolation(subject, action, true), nil
	}

	d := e.base(subject, action)
	d.NewWarningCount = subject.WarningCount + 1
	d.NewSeverity = e.table.For(d.NewWarningCount)
	d.NewStatus = models.ModerationStatusActive
	d.Warning = &WarningDraft{
		Sequence:      d.NewWarningCount,
		ViolationType: action.ViolationType,
		AdminNote:     strings.TrimSpace(action.AdminNote),
		Reason:        strings.TrimSpace(action.Reason),
		IssuedBy:      action.ActorID,
		IssuedAt:      action.Now,
	}
	if subject.PendingReportCount > 0 {
		d.Transitions = []ReportTransition{{
			From:        []models.ReportStatus{models.ReportStatusPending},
			To:          models.ReportStatusResolved,
			ActionTaken: models.ReportActionWarningSent,
		}}
		d.ExpectedTransitions = subject.PendingReportCount
	}
	d.Audit = &AuditDraft{
		Action:        models.AuditActionWarn,
		ViolationType: action.ViolationType,
		AdminNote:     d.Warning.AdminNote,
		Reason:        d.Warning.Reason,
	}
	return d, nil
}

func (e *Engine) deleteForViolation(subject Subject, action Action, escalated bool) Decision {
	d := e.base(subject, action)
	d.Action = ActionDeleteForSevereViolation
	d.Escalated = escalated
	d.NewStatus = models.ModerationStatusDeleted
	d.NewSeverity = models.SeverityCritical
	d.CascadeRemoval = true

	note := strings.TrimSpace(action.AdminNote)
	reason := strings.TrimSpace(action.Reason)

	settle := models.ReportActionContentRemoved
	if subject.Kind == models.SubjectGroup {
		settle = models.ReportActionGroupSuspended
		// A direct deletion below the cap still lands in the ledger.
		if !escalated && subject.WarningCount < e.maxWarnings {
			d.NewWarningCount = subject.WarningCount + 1
			d.Warning = &WarningDraft{
				Sequence:      d.NewWarningCount,
				ViolationType: action.ViolationType,
				AdminNote:     note,
				Reason:        reason,
				IssuedBy:      action.ActorID,
				IssuedAt:      action.Now,
			}
		}
	}

	if subject.PendingReportCount+subject.InvestigatingReportCount > 0 {
		d.Transitions = []ReportTransition{{
			From:        []models.ReportStatus{models.ReportStatusPending, models.ReportStatusInvestigating},
			To:          models.ReportStatusResolved,
			ActionTaken: settle,
		}}
		d.ExpectedTransitions = subject.PendingReportCount + subject.InvestigatingReportCount
	}
	d.Audit = &AuditDraft{
		Action:        models.AuditActionDelete,
		ViolationType: action.ViolationType,
		AdminNote:     note,
		Reason:        reason,
	}
	return d
}

func (e *Engine) reviewReport(subject Subject, action Action) (Decision, error) {
	if action.Report == nil || action.Report.ID == 0 {
		return Decision{}, models.NewValidationError("report is required")
	}
	d := e.base(subject, action)
	current := action.Report.Status
	target := action.ReviewStatus

	if current == target {
		d.NoOp = true
		return d, nil
	}

	var allowed bool
	switch target {
	case models.ReportStatusInvestigating:
		allowed = current == models.ReportStatusPending
	case models.ReportStatusDismissed:
		allowed = current == models.ReportStatusPending || current == models.ReportStatusInvestigating
	default:
		return Decision{}, models.NewValidationError(
			fmt.Sprintf("reports can only be moved to %s or %s", models.ReportStatusInvestigating, models.ReportStatusDismissed))
	}
	if !allowed {
		return Decision{}, models.NewValidationError(
			fmt.Sprintf("report %d is %s and cannot move to %s", action.Report.ID, current, target))
	}

	d.Transitions = []ReportTransition{{
		ReportID:    action.Report.ID,
		From:        []models.ReportStatus{current},
		To:          target,
		ActionTaken: models.ReportActionNone,
	}}
	d.ExpectedTransitions = 1
	d.Audit = &AuditDraft{
		Action:    models.AuditActionReviewReport,
		AdminNote: action.AdminNote,
		Reason:    fmt.Sprintf("report %d: %s -> %s", action.Report.ID, current, target),
	}
	return d, nil
}

func validateViolation(action Action) error {
	if strings.TrimSpace(action.AdminNote) == "" {
		return models.NewValidationError("admin note is required")
	}
	if !action.ViolationType.Valid() {
		return models.NewValidationError(fmt.Sprintf("invalid violation type %q", action.ViolationType))
	}
	return nil
}
