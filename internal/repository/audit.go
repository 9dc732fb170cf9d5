package repository

import (
	"context"

	"warden/internal/models"
	"warden/internal/observability"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuditFilter narrows an audit log listing. Zero fields match everything.
type AuditFilter struct {
	SubjectKind string
	SubjectID   uint
	ActorID     uint
	Action      models.AuditAction
	Limit       int
	Offset      int
}

// AuditRepository stores the moderation audit log.
type AuditRepository interface {
	Create(ctx context.Context, entry *models.ModerationAudit) error
	List(ctx context.Context, filter AuditFilter) ([]models.ModerationAudit, int64, error)
	WithTx(tx *gorm.DB) AuditRepository
}

type auditRepository struct {
	db     *gorm.DB
	logger *observability.RepoLogger
}

// NewAuditRepository returns an AuditRepository backed by db.
func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepository{db: db, logger: observability.NewRepoLogger("moderation_audits")}
}

func (r *auditRepository) WithTx(tx *gorm.DB) AuditRepository {
	return &auditRepository{db: tx, logger: r.logger}
}

func (r *auditRepository) Create(ctx context.Context, entry *models.ModerationAudit) error {
	if entry.PublicID == uuid.Nil {
		entry.PublicID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		r.logger.LogError(ctx, err, "create")
		return models.NewInternalError(err)
	}
	r.logger.LogCreate(ctx, map[string]interface{}{
		"action":     entry.Action,
		"subject_id": entry.SubjectID,
		"actor_id":   entry.ActorID,
	})
	return nil
}

// List returns audit entries newest first, with the total matching count.
func (r *auditRepository) List(ctx context.Context, filter AuditFilter) ([]models.ModerationAudit, int64, error) {
	limit, offset := clampPage(filter.Limit, filter.Offset)

	q := readDB(r.db).WithContext(ctx).Model(&models.ModerationAudit{})
	if filter.SubjectKind != "" {
		q = q.Where("subject_kind = ?", filter.SubjectKind)
	}
	if filter.SubjectID != 0 {
		q = q.Where("subject_id = ?", filter.SubjectID)
	}
	if filter.ActorID != 0 {
		q = q.Where("actor_id = ?", filter.ActorID)
	}
	if filter.Action != "" {
		q = q.Where("action = ?", filter.Action)
	}

	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	var entries []models.ModerationAudit
	if err := q.Order("created_at DESC").Order("id DESC").
		Limit(limit).Offset(offset).
		Find(&entries).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return entries, total, nil
}
