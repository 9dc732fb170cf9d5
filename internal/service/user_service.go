package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"warden/internal/featureflags"
	"warden/internal/models"
	"warden/internal/notifications"
	"warden/internal/observability"
	"warden/internal/repository"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

type UserService struct {
	db       *gorm.DB
	userRepo repository.UserRepository
	audits   repository.AuditRepository
	publish  publisher
	now      func() time.Time
}

// BanInput carries the admin's reason for blocking an account.
type BanInput struct {
	TargetID  uint
	ActorID   uint
	Reason    string
	AdminNote string
}

// BanResult reports the account state after a ban or unban.
type BanResult struct {
	User    *models.User `json:"user"`
	Changed bool         `json:"changed"`
}

func NewUserService(db *gorm.DB, userRepo repository.UserRepository, notifier ModerationNotifier, flags *featureflags.Manager) *UserService {
	return &UserService{
		db:       db,
		userRepo: userRepo,
		audits:   repository.NewAuditRepository(db),
		publish:  newPublisher(notifier, flags),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *UserService) ListUsers(ctx context.Context, limit, offset int) ([]models.User, error) {
	return s.userRepo.List(ctx, limit, offset)
}

func (s *UserService) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

func (s *UserService) ListAdmins(ctx context.Context) ([]models.User, error) {
	return s.userRepo.ListAdmins(ctx)
}

// SetAdmin grants or revokes the admin role.
func (s *UserService) SetAdmin(ctx context.Context, targetID uint, isAdmin bool) (*models.User, error) {
	if err := s.userRepo.SetAdmin(ctx, targetID, isAdmin); err != nil {
		return nil, err
	}
	return s.userRepo.GetByID(ctx, targetID)
}

// BanUser blocks an account. Reports the user filed stay as they are.
// Banning an already blocked user changes nothing and writes no audit.
func (s *UserService) BanUser(ctx context.Context, in BanInput) (res *BanResult, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "UserService", "BanUser",
		attribute.Int64("user.target_id", int64(in.TargetID)),
	)
	defer func() { observability.EndSpan(span, err) }()

	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return nil, models.NewValidationError("Ban reason is required")
	}
	if in.TargetID == in.ActorID {
		return nil, models.NewValidationError("You cannot ban yourself")
	}
	return s.setBlocked(ctx, in, true, reason)
}

// UnbanUser lifts a block. Unbanning an active user is a no-op.
func (s *UserService) UnbanUser(ctx context.Context, in BanInput) (res *BanResult, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "UserService", "UnbanUser",
		attribute.Int64("user.target_id", int64(in.TargetID)),
	)
	defer func() { observability.EndSpan(span, err) }()

	return s.setBlocked(ctx, in, false, strings.TrimSpace(in.Reason))
}

func (s *UserService) setBlocked(ctx context.Context, in BanInput, blocked bool, reason string) (*BanResult, error) {
	target, err := s.userRepo.GetByID(ctx, in.TargetID)
	if err != nil {
		return nil, err
	}
	if blocked && target.IsAdmin {
		return nil, models.NewForbiddenError("Admins cannot be banned")
	}
	if target.IsBlocked == blocked {
		return &BanResult{User: target, Changed: false}, nil
	}

	action := models.AuditActionUnbanUser
	if blocked {
		action = models.AuditActionBanUser
	}
	at := s.now()

	var updated *models.User
	err = s.db.WithContext(context.WithoutCancel(ctx)).Transaction(func(tx *gorm.DB) error {
		u, err := s.userRepo.WithTx(tx).SetBlocked(ctx, in.TargetID, blocked, reason, in.ActorID, at)
		if err != nil {
			return err
		}
		updated = u

		details, _ := json.Marshal(map[string]interface{}{"username": u.Username})
		return s.audits.WithTx(tx).Create(ctx, &models.ModerationAudit{
			Action:      action,
			SubjectKind: "user",
			SubjectID:   u.ID,
			ActorID:     in.ActorID,
			AdminNote:   strings.TrimSpace(in.AdminNote),
			Reason:      reason,
			Details:     string(details),
			CreatedAt:   at,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("set blocked=%t on user %d: %w", blocked, in.TargetID, err)
	}

	eventType := notifications.EventUserUnblocked
	if blocked {
		eventType = notifications.EventUserBlocked
	}
	ev := notifications.Event{
		Type:        eventType,
		SubjectKind: "user",
		SubjectID:   updated.ID,
		ActorID:     in.ActorID,
		Payload:     map[string]interface{}{"reason": reason},
		At:          at,
	}
	s.publish.admin(ctx, ev)
	s.publish.user(ctx, updated.ID, "", ev)

	return &BanResult{User: updated, Changed: true}, nil
}
