package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"warden/internal/config"
	"warden/internal/database"
	"warden/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testSecret = "test-secret-key-12345678901234567890123456789012"

type testEnv struct {
	srv *Server
	db  *gorm.DB
	app *fiber.App
}

// newTestEnv wires a Server over a migrated in-memory database without
// Redis and mounts its routes.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.AutoMigrate(db))

	srv, err := NewServerWithDeps(&config.Config{
		JWTSecret:    testSecret,
		FeatureFlags: "reporter_notices=on,creator_notices=off",
	}, db, nil)
	require.NoError(t, err)

	app := fiber.New()
	srv.SetupRoutes(app)
	return &testEnv{srv: srv, db: db, app: app}
}

func tokenFor(t *testing.T, userID uint) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": strconv.FormatUint(uint64(userID), 10),
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

// do sends a request as userID (0 means anonymous) with an optional JSON body.
func (e *testEnv) do(t *testing.T, method, path string, userID uint, body interface{}) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != 0 {
		req.Header.Set("Authorization", "Bearer "+tokenFor(t, userID))
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, dest interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dest))
}

func (e *testEnv) user(t *testing.T, name string, admin bool) *models.User {
	t.Helper()
	u := &models.User{Username: name, Email: name + "@example.com", Password: "x", IsAdmin: admin}
	require.NoError(t, e.db.Create(u).Error)
	return u
}

func (e *testEnv) group(t *testing.T, ownerID uint, slug string) *models.Group {
	t.Helper()
	g := &models.Group{
		Name:     slug,
		Slug:     slug,
		OwnerID:  ownerID,
		Status:   models.ModerationStatusActive,
		Severity: models.SeverityNone,
		Version:  1,
	}
	require.NoError(t, e.db.Create(g).Error)
	return g
}

func (e *testEnv) post(t *testing.T, authorID uint, isAd bool) *models.Post {
	t.Helper()
	p := &models.Post{
		Title:    "post",
		Content:  "content",
		AuthorID: authorID,
		IsAd:     isAd,
		Status:   models.ModerationStatusActive,
		Severity: models.SeverityNone,
		Version:  1,
	}
	require.NoError(t, e.db.Create(p).Error)
	return p
}

func (e *testEnv) report(t *testing.T, kind models.SubjectKind, subjectID, reporterID uint, status models.ReportStatus) *models.Report {
	t.Helper()
	r := &models.Report{
		SubjectKind: kind,
		SubjectID:   subjectID,
		ReporterID:  reporterID,
		ReportType:  "spam",
		Status:      status,
		ActionTaken: models.ReportActionNone,
	}
	require.NoError(t, e.db.Create(r).Error)
	return r
}
