package repository

import (
	"context"
	"fmt"

	"warden/internal/models"
	"warden/internal/observability"

	"gorm.io/gorm"
)

// Sort fields accepted by the grouped report listing.
const (
	SortLatestReport   = "latest_report_at"
	SortEarliestReport = "earliest_report_at"
	SortReportCount    = "report_count"
	SortWarningCount   = "warning_count"
	SortID             = "id"
)

// ReportQuery selects one page of subjects that have reports.
// Statuses nil means every status. SubjectStatus, when set, keeps only
// subjects whose own moderation status matches.
type ReportQuery struct {
	Kind          models.SubjectKind
	Statuses      []models.ReportStatus
	SubjectStatus models.ModerationStatus
	AdsOnly       bool
	Sort     string
	Desc     bool
	Limit    int
	Offset   int
}

// SubjectReportCount is one row of the subject page, in listing order.
type SubjectReportCount struct {
	SubjectID   uint  `json:"subject_id"`
	ReportCount int64 `json:"report_count"`
}

// ModerationStats is the per-kind summary block of the dashboard.
type ModerationStats struct {
	PendingSubjects       int64 `json:"pendingSubjects"`
	InvestigatingSubjects int64 `json:"investigatingSubjects"`
	ResolvedReports       int64 `json:"resolvedReports"`
	DismissedReports      int64 `json:"dismissedReports"`
	DeletedSubjects       int64 `json:"deletedSubjects"`
	TotalReports          int64 `json:"totalReports"`
}

// ReportingRepository runs the read-only aggregations behind the report
// listings. It reads from the replica when one is configured.
type ReportingRepository interface {
	Stats(ctx context.Context, kind models.SubjectKind, adsOnly bool) (*ModerationStats, error)
	SubjectPage(ctx context.Context, q ReportQuery) ([]SubjectReportCount, int64, error)
	ReportsFor(ctx context.Context, kind models.SubjectKind, subjectIDs []uint, statuses []models.ReportStatus) ([]models.Report, error)
	GroupsByID(ctx context.Context, ids []uint) ([]models.Group, error)
	PostsByID(ctx context.Context, ids []uint) ([]models.Post, error)
}

type reportingRepository struct {
	db *gorm.DB
}

// NewReportingRepository returns a ReportingRepository backed by db.
func NewReportingRepository(db *gorm.DB) ReportingRepository {
	return &reportingRepository{db: db}
}

func (r *reportingRepository) reports(ctx context.Context, kind models.SubjectKind, adsOnly bool) *gorm.DB {
	db := readDB(r.db).WithContext(ctx)
	q := db.Model(&models.Report{}).Where("reports.subject_kind = ?", kind)
	if adsOnly && kind == models.SubjectPost {
		q = q.Where("reports.subject_id IN (?)", db.Model(&models.Post{}).Select("id").Where("is_ad = ?", true))
	}
	return q
}

func (r *reportingRepository) subjects(ctx context.Context, kind models.SubjectKind, adsOnly bool) *gorm.DB {
	db := readDB(r.db).WithContext(ctx)
	if kind == models.SubjectGroup {
		return db.Model(&models.Group{})
	}
	q := db.Model(&models.Post{})
	if adsOnly {
		q = q.Where("is_ad = ?", true)
	}
	return q
}

func (r *reportingRepository) Stats(ctx context.Context, kind models.SubjectKind, adsOnly bool) (*ModerationStats, error) {
	defer observability.TrackQuery("stats", "reports")()

	var stats ModerationStats
	steps := []struct {
		dest *int64
		q    func() *gorm.DB
	}{
		{&stats.PendingSubjects, func() *gorm.DB {
			return r.reports(ctx, kind, adsOnly).Where("reports.status = ?", models.ReportStatusPending).Distinct("reports.subject_id")
		}},
		{&stats.InvestigatingSubjects, func() *gorm.DB {
			return r.subjects(ctx, kind, adsOnly).Where("status = ?", models.ModerationStatusInvestigating)
		}},
		{&stats.ResolvedReports, func() *gorm.DB {
			return r.reports(ctx, kind, adsOnly).Where("reports.status = ?", models.ReportStatusResolved)
		}},
		{&stats.DismissedReports, func() *gorm.DB {
			return r.reports(ctx, kind, adsOnly).Where("reports.status = ?", models.ReportStatusDismissed)
		}},
		{&stats.DeletedSubjects, func() *gorm.DB {
			return r.subjects(ctx, kind, adsOnly).Where("status = ?", models.ModerationStatusDeleted)
		}},
		{&stats.TotalReports, func() *gorm.DB {
			return r.reports(ctx, kind, adsOnly)
		}},
	}
	for _, step := range steps {
		if err := step.q().Count(step.dest).Error; err != nil {
			return nil, models.NewInternalError(err)
		}
	}
	return &stats, nil
}

func sortExpression(kind models.SubjectKind, sort string) (string, bool) {
	switch sort {
	case "", SortLatestReport:
		return "MAX(reports.created_at)", false
	case SortEarliestReport:
		return "MIN(reports.created_at)", false
	case SortReportCount:
		return "COUNT(*)", false
	case SortWarningCount:
		if kind == models.SubjectGroup {
			return `MAX("groups"."warning_count")`, true
		}
		// Posts carry no warnings; fall through to the id tie-break.
		return "", false
	case SortID:
		return "", false
	}
	return "", false
}

// SubjectPage returns one page of subject ids ordered by q.Sort with the
// subject id as tie-break, plus the number of distinct matching subjects.
func (r *reportingRepository) SubjectPage(ctx context.Context, q ReportQuery) ([]SubjectReportCount, int64, error) {
	defer observability.TrackQuery("subject_page", "reports")()
	limit, offset := clampPage(q.Limit, q.Offset)

	filtered := func() *gorm.DB {
		tx := r.reports(ctx, q.Kind, q.AdsOnly)
		if len(q.Statuses) > 0 {
			tx = tx.Where("reports.status IN ?", q.Statuses)
		}
		if q.SubjectStatus != "" {
			tx = tx.Where("reports.subject_id IN (?)",
				r.subjects(ctx, q.Kind, false).Select("id").Where("status = ?", q.SubjectStatus))
		}
		return tx
	}

	var total int64
	if err := filtered().Distinct("reports.subject_id").Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	if total == 0 {
		return []SubjectReportCount{}, 0, nil
	}

	dir := "ASC"
	if q.Desc {
		dir = "DESC"
	}
	tx := filtered().
		Select("reports.subject_id AS subject_id, COUNT(*) AS report_count").
		Group("reports.subject_id")
	expr, needsJoin := sortExpression(q.Kind, q.Sort)
	if needsJoin {
		tx = tx.Joins(`LEFT JOIN "groups" ON "groups"."id" = reports.subject_id`)
	}
	if expr != "" {
		tx = tx.Order(fmt.Sprintf("%s %s", expr, dir)).Order("reports.subject_id ASC")
	} else {
		tx = tx.Order("reports.subject_id " + dir)
	}

	var rows []SubjectReportCount
	if err := tx.Limit(limit).Offset(offset).Scan(&rows).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return rows, total, nil
}

// ReportsFor loads the reports of the given subjects, oldest first.
func (r *reportingRepository) ReportsFor(
	ctx context.Context,
	kind models.SubjectKind,
	subjectIDs []uint,
	statuses []models.ReportStatus,
) ([]models.Report, error) {
	if len(subjectIDs) == 0 {
		return nil, nil
	}
	q := readDB(r.db).WithContext(ctx).
		Where("subject_kind = ? AND subject_id IN ?", kind, subjectIDs)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	var reports []models.Report
	if err := q.Order("created_at ASC").Order("id ASC").Find(&reports).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return reports, nil
}

func (r *reportingRepository) GroupsByID(ctx context.Context, ids []uint) ([]models.Group, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var groups []models.Group
	if err := readDB(r.db).WithContext(ctx).Where("id IN ?", ids).Find(&groups).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return groups, nil
}

func (r *reportingRepository) PostsByID(ctx context.Context, ids []uint) ([]models.Post, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var posts []models.Post
	if err := readDB(r.db).WithContext(ctx).Where("id IN ?", ids).Find(&posts).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}
