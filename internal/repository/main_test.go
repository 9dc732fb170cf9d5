package repository

import (
	"testing"
	"time"

	"warden/internal/database"
	"warden/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	return gormDB, mock
}

// setupSQLiteDB returns a migrated in-memory database. One connection keeps
// every statement on the same in-memory schema.
func setupSQLiteDB(t *testing.T) *gorm.DB {
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

var baseTime = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func seedUser(t *testing.T, db *gorm.DB, name string) *models.User {
	t.Helper()
	u := &models.User{Username: name, Email: name + "@example.com", Password: "x"}
	require.NoError(t, db.Create(u).Error)
	return u
}

func seedGroup(t *testing.T, db *gorm.DB, ownerID uint, slug string) *models.Group {
	t.Helper()
	g := &models.Group{
		Name:     slug,
		Slug:     slug,
		OwnerID:  ownerID,
		Status:   models.ModerationStatusActive,
		Severity: models.SeverityNone,
		Version:  1,
	}
	require.NoError(t, db.Create(g).Error)
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

func seedReport(
	t *testing.T,
	db *gorm.DB,
	kind models.SubjectKind,
	subjectID, reporterID uint,
	reportType string,
	status models.ReportStatus,
	at time.Time,
) *models.Report {
	t.Helper()
	r := &models.Report{
		SubjectKind: kind,
		SubjectID:   subjectID,
		ReporterID:  reporterID,
		ReportType:  reportType,
		Status:      status,
		ActionTaken: models.ReportActionNone,
		CreatedAt:   at,
	}
	require.NoError(t, db.Create(r).Error)
	return r
}
