package repository

import (
	"context"
	"errors"
	"fmt"

	"warden/internal/models"
	"warden/internal/observability"
	"warden/internal/policy"

	"gorm.io/gorm"
)

// SubjectRecord is a loaded moderation subject plus the fields
// notifications need.
type SubjectRecord struct {
	policy.Subject
	OwnerID uint
	Title   string
	IsAd    bool
	Counts  ReportCounts
}

// SubjectRepository loads groups and posts as moderation subjects and
// writes decisions back under a version compare-and-swap.
type SubjectRepository interface {
	Load(ctx context.Context, kind models.SubjectKind, id uint) (*SubjectRecord, error)
	CompareAndSwap(ctx context.Context, subject policy.Subject, d policy.Decision) error
	Touch(ctx context.Context, subject policy.Subject) error
	WithTx(tx *gorm.DB) SubjectRepository
}

type subjectRepository struct {
	db     *gorm.DB
	logger *observability.RepoLogger
}

// NewSubjectRepository returns a SubjectRepository backed by db.
func NewSubjectRepository(db *gorm.DB) SubjectRepository {
	return &subjectRepository{db: db, logger: observability.NewRepoLogger("subjects")}
}

func (r *subjectRepository) WithTx(tx *gorm.DB) SubjectRepository {
	return &subjectRepository{db: tx, logger: r.logger}
}

func (r *subjectRepository) Load(ctx context.Context, kind models.SubjectKind, id uint) (*SubjectRecord, error) {
	defer observability.TrackQuery("load_subject", string(kind))()

	var rec SubjectRecord
	switch kind {
	case models.SubjectGroup:
		var g models.Group
		if err := r.db.WithContext(ctx).First(&g, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, models.NewNotFoundError("Group", id)
			}
			return nil, models.NewInternalError(err)
		}
		rec = SubjectRecord{
			Subject: policy.Subject{
				Kind:         kind,
				ID:           g.ID,
				Status:       g.Status,
				Severity:     g.Severity,
				WarningCount: g.WarningCount,
				Version:      g.Version,
			},
			OwnerID: g.OwnerID,
			Title:   g.Name,
		}
	case models.SubjectPost:
		var p models.Post
		if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, models.NewNotFoundError("Post", id)
			}
			return nil, models.NewInternalError(err)
		}
		rec = SubjectRecord{
			Subject: policy.Subject{
				Kind:     kind,
				ID:       p.ID,
				Status:   p.Status,
				Severity: p.Severity,
				Version:  p.Version,
			},
			OwnerID: p.AuthorID,
			Title:   p.Title,
			IsAd:    p.IsAd,
		}
	default:
		return nil, models.NewValidationError(fmt.Sprintf("unknown subject kind %q", kind))
	}

	counts, err := countReportsByStatus(ctx, r.db, kind, id)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	rec.Counts = counts
	rec.PendingReportCount = counts.Pending
	rec.InvestigatingReportCount = counts.Investigating
	rec.TotalReportCount = counts.Total()
	return &rec, nil
}

// CompareAndSwap writes the decision's status, severity and warning count
// and bumps the version. It returns ErrVersionConflict when the row's
// version no longer matches subject.Version.
func (r *subjectRepository) CompareAndSwap(ctx context.Context, subject policy.Subject, d policy.Decision) error {
	defer observability.TrackQuery("cas_subject", string(subject.Kind))()

	updates := map[string]interface{}{
		"status":   d.NewStatus,
		"severity": d.NewSeverity,
		"version":  gorm.Expr("version + ?", 1),
	}
	deleted := d.NewStatus == models.ModerationStatusDeleted

	var model interface{}
	switch subject.Kind {
	case models.SubjectGroup:
		model = &models.Group{}
		updates["warning_count"] = d.NewWarningCount
		if deleted {
			updates["deleted_at"] = d.At
		}
	case models.SubjectPost:
		model = &models.Post{}
		if deleted {
			updates["removed_at"] = d.At
		}
	default:
		return models.NewValidationError(fmt.Sprintf("unknown subject kind %q", subject.Kind))
	}

	res := r.db.WithContext(ctx).Model(model).
		Where("id = ? AND version = ?", subject.ID, subject.Version).
		Updates(updates)
	if res.Error != nil {
		r.logger.LogError(ctx, res.Error, "compare_and_swap")
		return fmt.Errorf("update %s %d: %w", subject.Kind, subject.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}
	r.logger.LogUpdate(ctx, map[string]interface{}{
		"kind":    subject.Kind,
		"id":      subject.ID,
		"status":  d.NewStatus,
		"version": subject.Version + 1,
	})
	return nil
}

// Touch bumps the version of a subject that is still live and unchanged
// since it was loaded. It returns ErrVersionConflict otherwise.
func (r *subjectRepository) Touch(ctx context.Context, subject policy.Subject) error {
	defer observability.TrackQuery("touch_subject", string(subject.Kind))()

	var model interface{}
	switch subject.Kind {
	case models.SubjectGroup:
		model = &models.Group{}
	case models.SubjectPost:
		model = &models.Post{}
	default:
		return models.NewValidationError(fmt.Sprintf("unknown subject kind %q", subject.Kind))
	}

	res := r.db.WithContext(ctx).Model(model).
		Where("id = ? AND version = ? AND status <> ?", subject.ID, subject.Version, models.ModerationStatusDeleted).
		Update("version", gorm.Expr("version + ?", 1))
	if res.Error != nil {
		r.logger.LogError(ctx, res.Error, "touch")
		return fmt.Errorf("touch %s %d: %w", subject.Kind, subject.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}
	return nil
}
