package database

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"testing/fstest"

	"warden/internal/config"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func TestConfigurePool(t *testing.T) {
	db := openSQLite(t)
	cfg := &config.Config{
		DBMaxOpenConns:           10,
		DBMaxIdleConns:           5,
		DBConnMaxLifetimeMinutes: 15,
	}
	require.NoError(t, configurePool(db, cfg))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 10, sqlDB.Stats().MaxOpenConnections)
}

func TestEmbeddedMigrationsAreOrdered(t *testing.T) {
	all := GetMigrations()
	require.NotEmpty(t, all)
	for i, m := range all {
		assert.NotEmpty(t, m.UpScript, m.String())
		assert.NotEmpty(t, m.DownScript, m.String())
		if i > 0 {
			assert.Greater(t, m.Version, all[i-1].Version)
		}
	}
	assert.Equal(t, "000001_init", all[0].String())
	assert.NotNil(t, GetMigrationByVersion(1))
	assert.Nil(t, GetMigrationByVersion(999))
}

func TestLoadMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"m/000002_second.up.sql":   {Data: []byte("B")},
		"m/000002_second.down.sql": {Data: []byte("b")},
		"m/000001_first.up.sql":    {Data: []byte("A")},
		"m/000001_first.down.sql":  {Data: []byte("a")},
		"m/README.md":              {Data: []byte("ignored")},
	}
	got, err := LoadMigrations(fsys, "m")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].Name)
	assert.Equal(t, "b", got[1].DownScript)

	_, err = LoadMigrations(fstest.MapFS{"m/000001_x.up.sql": {Data: []byte("A")}}, "m")
	assert.Error(t, err, "missing down script")

	_, err = LoadMigrations(fstest.MapFS{
		"m/000001_x.up.sql":   {Data: []byte("A")},
		"m/000001_x.down.sql": {Data: []byte("a")},
		"m/000001_y.up.sql":   {Data: []byte("B")},
		"m/000001_y.down.sql": {Data: []byte("b")},
	}, "m")
	assert.Error(t, err, "duplicate version")

	_, err = LoadMigrations(fstest.MapFS{
		"m/abc_x.up.sql":   {Data: []byte("A")},
		"m/abc_x.down.sql": {Data: []byte("a")},
	}, "m")
	assert.Error(t, err, "non numeric version")
}

func TestRunMigrations_AppliesOnceAndRollsBack(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()
	registered := []Migration{
		{Version: 1, Name: "things", UpScript: "CREATE TABLE things (id INTEGER PRIMARY KEY)", DownScript: "DROP TABLE things"},
		{Version: 2, Name: "more", UpScript: "CREATE TABLE more_things (id INTEGER PRIMARY KEY)", DownScript: "DROP TABLE more_things"},
	}
	store := NewMigrationStore(db)

	require.NoError(t, runMigrations(ctx, store, registered))
	require.NoError(t, runMigrations(ctx, store, registered), "second run is a no-op")

	applied, err := store.GetAppliedMigrations(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, applied)
	assert.True(t, db.Migrator().HasTable("more_things"))

	require.NoError(t, store.RevertMigration(ctx, registered[1]))
	assert.False(t, db.Migrator().HasTable("more_things"))

	err = runMigrations(ctx, store, registered[:0])
	assert.ErrorContains(t, err, "000001")
}

func TestRunMigrations_FailedScriptIsNotRecorded(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()
	store := NewMigrationStore(db)

	err := runMigrations(ctx, store, []Migration{{Version: 1, Name: "broken", UpScript: "NOT SQL", DownScript: ""}})
	require.Error(t, err)

	applied, err := store.GetAppliedMigrations(ctx)
	require.NoError(t, err)
	assert.Empty(t, applied)
}

func TestSchemaPolicy(t *testing.T) {
	tests := []struct {
		mode, env        string
		destructive      bool
		wantSQL, wantAut bool
		wantErr          bool
	}{
		{"", "development", false, true, true, false},
		{"hybrid", "production", false, true, false, false},
		{"sql", "development", false, true, false, false},
		{"auto", "development", false, false, true, false},
		{"auto", "production", false, false, false, true},
		{"auto", "staging", true, false, true, false},
		{"yolo", "development", false, false, false, true},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%s", tt.mode, tt.env), func(t *testing.T) {
			runSQL, runAuto, err := schemaPolicy(&config.Config{
				DBSchemaMode:                  tt.mode,
				Env:                           tt.env,
				DBAutoMigrateAllowDestructive: tt.destructive,
			})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, runSQL)
			assert.Equal(t, tt.wantAut, runAuto)
		})
	}
}

func TestApplySchema_AutoMigrateOnSQLite(t *testing.T) {
	db := openSQLite(t)
	require.NoError(t, ApplySchema(context.Background(), db, &config.Config{DBSchemaMode: "auto", Env: "test"}))
	for _, table := range []string{"users", "groups", "posts", "reports", "warning_events", "moderation_audits", "group_memberships"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
}

func TestIsConflict(t *testing.T) {
	assert.True(t, IsConflict(&pgconn.PgError{Code: "23505"}))
	assert.True(t, IsConflict(fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "40001"})))
	assert.True(t, IsConflict(&pgconn.PgError{Code: "40P01"}))
	assert.False(t, IsConflict(&pgconn.PgError{Code: "23503"}))
	assert.True(t, IsConflict(errors.New("UNIQUE constraint failed: warning_events.group_id, warning_events.sequence")))
	assert.True(t, IsConflict(gorm.ErrDuplicatedKey))
	assert.False(t, IsConflict(errors.New("connection refused")))
	assert.False(t, IsConflict(nil))

	assert.True(t, IsUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "40001"}))
}
