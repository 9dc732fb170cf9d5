package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"warden/internal/database"
	"warden/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var baseTime = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return baseTime.Add(time.Hour) }

// setupDB returns a migrated in-memory database on a single connection.
func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.AutoMigrate(db))
	return db
}

func seedUser(t *testing.T, db *gorm.DB, name string) *models.User {
	t.Helper()
	u := &models.User{Username: name, Email: name + "@example.com", Password: "x"}
	require.NoError(t, db.Create(u).Error)
	return u
}

func seedGroup(t *testing.T, db *gorm.DB, ownerID uint, slug string, warnings int, sev models.Severity) *models.Group {
	t.Helper()
	g := &models.Group{
		Name:         slug,
		Slug:         slug,
		OwnerID:      ownerID,
		Status:       models.ModerationStatusActive,
		Severity:     sev,
		WarningCount: warnings,
		Version:      1,
	}
	require.NoError(t, db.Create(g).Error)
	for i := 1; i <= warnings; i++ {
		require.NoError(t, db.Create(&models.WarningEvent{
			GroupID:        g.ID,
			Sequence:       i,
			ViolationType:  models.ViolationSpam,
			AdminNote:      "earlier warning",
			IssuedByUserID: ownerID,
			IssuedAt:       baseTime.Add(-time.Duration(warnings-i+1) * 24 * time.Hour),
		}).Error)
	}
	return g
}

func seedPost(t *testing.T, db *gorm.DB, authorID uint, groupID *uint, isAd bool) *models.Post {
	t.Helper()
	p := &models.Post{
		Title:    "post",
		Content:  "content",
		AuthorID: authorID,
		GroupID:  groupID,
		IsAd:     isAd,
		Status:   models.ModerationStatusActive,
		Severity: models.SeverityNone,
		Version:  1,
	}
	require.NoError(t, db.Create(p).Error)
	return p
}

func seedReport(t *testing.T, db *gorm.DB, kind models.SubjectKind, subjectID, reporterID uint, reportType string, status models.ReportStatus, at time.Time) *models.Report {
	t.Helper()
	r := &models.Report{
		SubjectKind: kind,
		SubjectID:   subjectID,
		ReporterID:  reporterID,
		ReportType:  reportType,
		Status:      status,
		ActionTaken: models.ReportActionNone,
		CreatedAt:   at,
		UpdatedAt:   at,
	}
	require.NoError(t, db.Create(r).Error)
	return r
}

func countReports(t *testing.T, db *gorm.DB, kind models.SubjectKind, id uint, status models.ReportStatus) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.Report{}).
		Where("subject_kind = ? AND subject_id = ? AND status = ?", kind, id, status).
		Count(&n).Error)
	return n
}

func countRows(t *testing.T, db *gorm.DB, model interface{}, where string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Where(where, args...).Count(&n).Error)
	return n
}

func assertAppError(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
}

// notifierStub records published payloads. failWith makes every publish fail.
type notifierStub struct {
	mu       sync.Mutex
	admin    []string
	user     map[uint][]string
	failWith error
}

func newNotifierStub() *notifierStub {
	return &notifierStub{user: make(map[uint][]string)}
}

func (n *notifierStub) PublishUser(_ context.Context, userID uint, payload string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failWith != nil {
		return n.failWith
	}
	n.user[userID] = append(n.user[userID], payload)
	return nil
}

func (n *notifierStub) PublishAdmin(_ context.Context, payload string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failWith != nil {
		return n.failWith
	}
	n.admin = append(n.admin, payload)
	return nil
}

func (n *notifierStub) adminCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.admin)
}

func (n *notifierStub) userNotices(id uint) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.user[id]...)
}
