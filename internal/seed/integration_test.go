//go:build integration

package seed

import (
	"net/url"
	"os"
	"strings"
	"testing"

	"warden/internal/config"
	"warden/internal/database"
	"warden/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func configFromDatabaseURL(t *testing.T, dsn string) *config.Config {
	t.Helper()
	u, err := url.Parse(dsn)
	require.NoError(t, err)
	password, _ := u.User.Password()
	port := u.Port()
	if port == "" {
		port = "5432"
	}
	return &config.Config{
		DBHost:       u.Hostname(),
		DBPort:       port,
		DBUser:       u.User.Username(),
		DBPassword:   password,
		DBName:       strings.TrimPrefix(u.Path, "/"),
		DBSSLMode:    "disable",
		Env:          "test",
		DBSchemaMode: database.SchemaModeAuto,
	}
}

func TestIntegration_SeedPostgres(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping integration seed test")
	}
	db, err := database.Connect(configFromDatabaseURL(t, dsn))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	s := NewSeeder(db, Options{SkipBcrypt: true, MaxDays: 30})
	require.NoError(t, s.ClearAll())

	sum, err := s.ApplyPreset("small")
	require.NoError(t, err)

	var reports int64
	require.NoError(t, db.Model(&models.Report{}).Count(&reports).Error)
	assert.EqualValues(t, sum.Reports, reports)
}
