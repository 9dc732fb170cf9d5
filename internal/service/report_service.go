package service

import (
	"context"

	"warden/internal/cache"
	"warden/internal/models"
	"warden/internal/notifications"
	"warden/internal/observability"
	"warden/internal/repository"
	"warden/internal/validation"

	"gorm.io/gorm"
)

// FileReportInput is a user's complaint against a group or post.
type FileReportInput struct {
	Kind       models.SubjectKind
	SubjectID  uint
	ReporterID uint
	ReportType string
	Reason     string
}

// ReportService lets authenticated users file reports.
type ReportService struct {
	db       *gorm.DB
	subjects repository.SubjectRepository
	reports  repository.ReportRepository
	users    UserDirectory
	publish  publisher

	maxRetries int
}

// NewReportService returns a ReportService over db.
func NewReportService(db *gorm.DB, users UserDirectory, notifier ModerationNotifier) *ReportService {
	return &ReportService{
		db:         db,
		subjects:   repository.NewSubjectRepository(db),
		reports:    repository.NewReportRepository(db),
		users:      users,
		publish:    newPublisher(notifier, nil),
		maxRetries: defaultMaxRetries,
	}
}

// FileReport records a pending report. A reporter may hold at most one
// open report per subject, and never against their own content.
func (s *ReportService) FileReport(ctx context.Context, in FileReportInput) (*models.Report, error) {
	reportType, err := validation.ReportType(in.ReportType)
	if err != nil {
		return nil, err
	}
	reason, err := validation.Reason(in.Reason)
	if err != nil {
		return nil, err
	}

	reporter, err := s.users.GetByID(ctx, in.ReporterID)
	if err != nil {
		return nil, err
	}
	if reporter.IsBlocked {
		return nil, models.NewForbiddenError("Blocked users cannot file reports")
	}

	var (
		subject *repository.SubjectRecord
		report  *models.Report
	)
	for attempt := 0; ; attempt++ {
		subject, report, err = s.fileOnce(ctx, reporter.ID, in.Kind, in.SubjectID, reportType, reason)
		if err == nil || !isConflict(err) {
			break
		}
		if attempt >= s.maxRetries {
			observability.ModerationConflicts.WithLabelValues(string(in.Kind), "surfaced").Inc()
			return nil, models.NewConcurrencyConflictError(err)
		}
		observability.ModerationConflicts.WithLabelValues(string(in.Kind), "retried").Inc()
	}
	if err != nil {
		return nil, err
	}

	observability.ReportsFiled.WithLabelValues(string(subject.Kind)).Inc()
	cache.InvalidateModerationStats(context.WithoutCancel(ctx), statsCacheKeys(subject.Kind)...)
	s.publish.admin(ctx, notifications.Event{
		Type:        notifications.EventReportFiled,
		SubjectKind: string(subject.Kind),
		SubjectID:   subject.ID,
		ActorID:     reporter.ID,
		Payload: map[string]interface{}{
			"report_id":   report.ID,
			"report_type": report.ReportType,
		},
		At: report.CreatedAt,
	})
	return report, nil
}

// fileOnce inserts the report together with a version bump of the subject
// it was checked against. A deletion committed in between makes the bump
// fail, so no report is left pending on a deleted subject.
func (s *ReportService) fileOnce(
	ctx context.Context,
	reporterID uint,
	kind models.SubjectKind,
	id uint,
	reportType, reason string,
) (*repository.SubjectRecord, *models.Report, error) {
	subject, err := s.subjects.Load(ctx, kind, id)
	if err != nil {
		return nil, nil, err
	}
	if subject.Status == models.ModerationStatusDeleted {
		return nil, nil, models.NewTerminalStateError(string(subject.Kind), subject.ID)
	}
	if subject.OwnerID == reporterID {
		return nil, nil, models.NewValidationError("You cannot report your own content")
	}

	report := &models.Report{
		SubjectKind: subject.Kind,
		SubjectID:   subject.ID,
		ReporterID:  reporterID,
		ReportType:  reportType,
		Reason:      reason,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		reports := s.reports.WithTx(tx)
		open, err := reports.HasOpenReport(ctx, reporterID, subject.Kind, subject.ID)
		if err != nil {
			return err
		}
		if open {
			return models.NewValidationError("You already have an open report for this content")
		}
		if err := s.subjects.WithTx(tx).Touch(ctx, subject.Subject); err != nil {
			return err
		}
		return reports.Create(ctx, report)
	})
	if err != nil {
		return nil, nil, err
	}
	return subject, report, nil
}
