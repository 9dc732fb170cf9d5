package service

import (
	"context"
	"time"

	"warden/internal/models"
	"warden/internal/repository"

	"gorm.io/gorm"
)

// UserDirectory is the account store bans are applied to.
type UserDirectory interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	SetBlocked(ctx context.Context, id uint, blocked bool, reason string, actorID uint, at time.Time) (*models.User, error)
}

// ContentCascader takes down what a deleted subject owns. It runs inside the
// moderation transaction.
type ContentCascader interface {
	RemoveOwnedContent(ctx context.Context, tx *gorm.DB, kind models.SubjectKind, id uint, at time.Time) (repository.CascadeResult, error)
}

// ModerationNotifier delivers post-commit notices. Failures are logged and
// never undo the moderation change.
type ModerationNotifier interface {
	PublishUser(ctx context.Context, userID uint, payload string) error
	PublishAdmin(ctx context.Context, payload string) error
}

type noopNotifier struct{}

func (noopNotifier) PublishUser(context.Context, uint, string) error { return nil }
func (noopNotifier) PublishAdmin(context.Context, string) error      { return nil }
