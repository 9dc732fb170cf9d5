package repository

import (
	"context"
	"fmt"

	"warden/internal/models"
	"warden/internal/observability"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WarningRepository appends to and reads the per-group warning ledger.
// Events are never updated or deleted.
type WarningRepository interface {
	Append(ctx context.Context, event *models.WarningEvent) error
	ListByGroup(ctx context.Context, groupID uint) ([]models.WarningEvent, error)
	WithTx(tx *gorm.DB) WarningRepository
}

type warningRepository struct {
	db     *gorm.DB
	logger *observability.RepoLogger
}

// NewWarningRepository returns a WarningRepository backed by db.
func NewWarningRepository(db *gorm.DB) WarningRepository {
	return &warningRepository{db: db, logger: observability.NewRepoLogger("warning_events")}
}

func (r *warningRepository) WithTx(tx *gorm.DB) WarningRepository {
	return &warningRepository{db: tx, logger: r.logger}
}

// Append inserts event. A duplicate (group_id, sequence) surfaces as a
// unique violation, which callers treat as a concurrency conflict.
func (r *warningRepository) Append(ctx context.Context, event *models.WarningEvent) error {
	defer observability.TrackQuery("append", "warning_events")()
	if event.PublicID == uuid.Nil {
		event.PublicID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("append warning %d for group %d: %w", event.Sequence, event.GroupID, err)
	}
	r.logger.LogCreate(ctx, map[string]interface{}{
		"group_id": event.GroupID,
		"sequence": event.Sequence,
	})
	return nil
}

func (r *warningRepository) ListByGroup(ctx context.Context, groupID uint) ([]models.WarningEvent, error) {
	var events []models.WarningEvent
	if err := readDB(r.db).WithContext(ctx).
		Where("group_id = ?", groupID).
		Order("sequence ASC").
		Find(&events).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return events, nil
}
