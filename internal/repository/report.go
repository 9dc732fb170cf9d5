package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"warden/internal/models"
	"warden/internal/observability"
	"warden/internal/policy"

	"gorm.io/gorm"
)

// ReportCounts tallies one subject's reports by status.
type ReportCounts struct {
	Pending       int `json:"pending"`
	Investigating int `json:"investigating"`
	Dismissed     int `json:"dismissed"`
	Resolved      int `json:"resolved"`
}

// Total is the number of reports ever filed against the subject.
func (c ReportCounts) Total() int {
	return c.Pending + c.Investigating + c.Dismissed + c.Resolved
}

// ReportRepository defines persistence operations for reports.
type ReportRepository interface {
	Create(ctx context.Context, report *models.Report) error
	GetByID(ctx context.Context, id uint) (*models.Report, error)
	HasOpenReport(ctx context.Context, reporterID uint, kind models.SubjectKind, subjectID uint) (bool, error)
	CountBySubject(ctx context.Context, kind models.SubjectKind, subjectID uint) (ReportCounts, error)
	Transition(ctx context.Context, kind models.SubjectKind, subjectID uint, t policy.ReportTransition, actorID uint, at time.Time) (int64, error)
	ReporterIDs(ctx context.Context, kind models.SubjectKind, subjectID uint, statuses []models.ReportStatus) ([]uint, error)
	WithTx(tx *gorm.DB) ReportRepository
}

type reportRepository struct {
	db     *gorm.DB
	logger *observability.RepoLogger
}

// NewReportRepository returns a ReportRepository backed by db.
func NewReportRepository(db *gorm.DB) ReportRepository {
	return &reportRepository{db: db, logger: observability.NewRepoLogger("reports")}
}

func (r *reportRepository) WithTx(tx *gorm.DB) ReportRepository {
	return &reportRepository{db: tx, logger: r.logger}
}

func (r *reportRepository) Create(ctx context.Context, report *models.Report) error {
	defer observability.TrackQuery("create", "reports")()
	if report.Status == "" {
		report.Status = models.ReportStatusPending
	}
	if report.ActionTaken == "" {
		report.ActionTaken = models.ReportActionNone
	}
	if err := r.db.WithContext(ctx).Create(report).Error; err != nil {
		r.logger.LogError(ctx, err, "create")
		return models.NewInternalError(err)
	}
	r.logger.LogCreate(ctx, map[string]interface{}{
		"id":           report.ID,
		"subject_kind": report.SubjectKind,
		"subject_id":   report.SubjectID,
	})
	return nil
}

func (r *reportRepository) GetByID(ctx context.Context, id uint) (*models.Report, error) {
	var report models.Report
	if err := r.db.WithContext(ctx).First(&report, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Report", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &report, nil
}

// HasOpenReport reports whether reporterID already has an unsettled report
// against the subject.
func (r *reportRepository) HasOpenReport(ctx context.Context, reporterID uint, kind models.SubjectKind, subjectID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Report{}).
		Where("reporter_id = ? AND subject_kind = ? AND subject_id = ?", reporterID, kind, subjectID).
		Where("status IN ?", []models.ReportStatus{models.ReportStatusPending, models.ReportStatusInvestigating}).
		Count(&count).Error
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

func (r *reportRepository) CountBySubject(ctx context.Context, kind models.SubjectKind, subjectID uint) (ReportCounts, error) {
	counts, err := countReportsByStatus(ctx, r.db, kind, subjectID)
	if err != nil {
		return ReportCounts{}, models.NewInternalError(err)
	}
	return counts, nil
}

// Transition moves the subject's reports whose status is in t.From to t.To.
// Settled targets get resolved_at and resolved_by_user_id stamped.
func (r *reportRepository) Transition(
	ctx context.Context,
	kind models.SubjectKind,
	subjectID uint,
	t policy.ReportTransition,
	actorID uint,
	at time.Time,
) (int64, error) {
	defer observability.TrackQuery("transition", "reports")()

	updates := map[string]interface{}{
		"status":       t.To,
		"action_taken": t.ActionTaken,
	}
	if t.To.Settled() {
		updates["resolved_at"] = at
		updates["resolved_by_user_id"] = actorID
	}

	q := r.db.WithContext(ctx).Model(&models.Report{}).
		Where("subject_kind = ? AND subject_id = ?", kind, subjectID).
		Where("status IN ?", t.From)
	if t.ReportID != 0 {
		q = q.Where("id = ?", t.ReportID)
	}
	res := q.Updates(updates)
	if res.Error != nil {
		r.logger.LogError(ctx, res.Error, "transition")
		return 0, fmt.Errorf("transition reports of %s %d to %s: %w", kind, subjectID, t.To, res.Error)
	}
	return res.RowsAffected, nil
}

func (r *reportRepository) ReporterIDs(
	ctx context.Context,
	kind models.SubjectKind,
	subjectID uint,
	statuses []models.ReportStatus,
) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.Report{}).
		Where("subject_kind = ? AND subject_id = ?", kind, subjectID).
		Where("status IN ?", statuses).
		Distinct().
		Pluck("reporter_id", &ids).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return ids, nil
}

func countReportsByStatus(ctx context.Context, db *gorm.DB, kind models.SubjectKind, subjectID uint) (ReportCounts, error) {
	var rows []struct {
		Status models.ReportStatus
		Count  int
	}
	err := db.WithContext(ctx).Model(&models.Report{}).
		Select("status, COUNT(*) AS count").
		Where("subject_kind = ? AND subject_id = ?", kind, subjectID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return ReportCounts{}, err
	}

	var counts ReportCounts
	for _, row := range rows {
		switch row.Status {
		case models.ReportStatusPending:
			counts.Pending = row.Count
		case models.ReportStatusInvestigating:
			counts.Investigating = row.Count
		case models.ReportStatusDismissed:
			counts.Dismissed = row.Count
		case models.ReportStatusResolved:
			counts.Resolved = row.Count
		}
	}
	return counts, nil
}
