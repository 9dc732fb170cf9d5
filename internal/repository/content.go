package repository

import (
	"context"
	"errors"
	"time"

	"warden/internal/database"
	"warden/internal/models"
	"warden/internal/observability"

	"gorm.io/gorm"
)

// CascadeResult counts what a subject deletion took down with it.
type CascadeResult struct {
	RemovedPosts       int64 `json:"removedPosts"`
	RemovedMemberships int64 `json:"removedMemberships"`
}

// ContentRepository stores the groups, posts and memberships that reports
// point at.
type ContentRepository interface {
	CreateGroup(ctx context.Context, group *models.Group) error
	GetGroup(ctx context.Context, id uint) (*models.Group, error)
	AddMember(ctx context.Context, groupID, userID uint, role models.GroupMembershipRole) error
	CreatePost(ctx context.Context, post *models.Post) error
	GetPost(ctx context.Context, id uint) (*models.Post, error)
	RemoveOwnedContent(ctx context.Context, tx *gorm.DB, kind models.SubjectKind, id uint, at time.Time) (CascadeResult, error)
}

type contentRepository struct {
	db     *gorm.DB
	logger *observability.RepoLogger
}

// NewContentRepository returns a ContentRepository backed by db.
func NewContentRepository(db *gorm.DB) ContentRepository {
	return &contentRepository{db: db, logger: observability.NewRepoLogger("content")}
}

// CreateGroup inserts group and its owner membership in one transaction.
func (r *contentRepository) CreateGroup(ctx context.Context, group *models.Group) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(group).Error; err != nil {
			return err
		}
		return tx.Create(&models.GroupMembership{
			GroupID: group.ID,
			UserID:  group.OwnerID,
			Role:    models.GroupMembershipRoleOwner,
		}).Error
	})
	if err != nil {
		if database.IsUniqueViolation(err) {
			return models.NewValidationError("Group slug already exists")
		}
		r.logger.LogError(ctx, err, "create_group")
		return models.NewInternalError(err)
	}
	r.logger.LogCreate(ctx, map[string]interface{}{"group_id": group.ID, "owner_id": group.OwnerID})
	return nil
}

func (r *contentRepository) GetGroup(ctx context.Context, id uint) (*models.Group, error) {
	var group models.Group
	if err := readDB(r.db).WithContext(ctx).First(&group, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Group", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &group, nil
}

func (r *contentRepository) AddMember(ctx context.Context, groupID, userID uint, role models.GroupMembershipRole) error {
	m := models.GroupMembership{GroupID: groupID, UserID: userID, Role: role}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return nil
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *contentRepository) CreatePost(ctx context.Context, post *models.Post) error {
	if err := r.db.WithContext(ctx).Create(post).Error; err != nil {
		r.logger.LogError(ctx, err, "create_post")
		return models.NewInternalError(err)
	}
	r.logger.LogCreate(ctx, map[string]interface{}{"post_id": post.ID, "is_ad": post.IsAd})
	return nil
}

func (r *contentRepository) GetPost(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	if err := readDB(r.db).WithContext(ctx).First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Post", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &post, nil
}

// RemoveOwnedContent marks a deleted group's posts and memberships removed.
// Posts own nothing that is moderated here, so a post deletion is a no-op.
// The post rows keep their own moderation status; only removed_at is set.
func (r *contentRepository) RemoveOwnedContent(
	ctx context.Context,
	tx *gorm.DB,
	kind models.SubjectKind,
	id uint,
	at time.Time,
) (CascadeResult, error) {
	if tx == nil {
		tx = r.db
	}
	var res CascadeResult
	if kind != models.SubjectGroup {
		return res, nil
	}
	defer observability.TrackQuery("cascade", "groups")()

	posts := tx.WithContext(ctx).Model(&models.Post{}).
		Where("group_id = ? AND removed_at IS NULL", id).
		Update("removed_at", at)
	if posts.Error != nil {
		return res, posts.Error
	}
	res.RemovedPosts = posts.RowsAffected

	members := tx.WithContext(ctx).Model(&models.GroupMembership{}).
		Where("group_id = ? AND removed_at IS NULL", id).
		Update("removed_at", at)
	if members.Error != nil {
		return res, members.Error
	}
	res.RemovedMemberships = members.RowsAffected

	r.logger.LogUpdate(ctx, map[string]interface{}{
		"group_id":            id,
		"removed_posts":       res.RemovedPosts,
		"removed_memberships": res.RemovedMemberships,
	})
	return res, nil
}
