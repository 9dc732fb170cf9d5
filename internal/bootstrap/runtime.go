// Package bootstrap wires process-level dependencies for cmd/server.
package bootstrap

import (
	"fmt"
	"log"
	"strings"

	"warden/internal/cache"
	"warden/internal/config"
	"warden/internal/database"
	"warden/internal/models"
	"warden/internal/seed"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// rootAdminID is reserved for the development root admin.
const rootAdminID = 1

// Options control runtime initialization behavior.
type Options struct {
	// SeedPreset, when set, fills an empty database with a demo moderation queue.
	SeedPreset string
}

// InitRuntime connects to the database and Redis, ensures the development
// root admin and optionally seeds demo data. The Redis client is nil when
// Redis is unreachable.
func InitRuntime(cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)

	if err := ensureDevRootAdmin(cfg, db); err != nil {
		return nil, nil, fmt.Errorf("failed to bootstrap development root admin: %w", err)
	}
	if opts.SeedPreset != "" {
		if err := seedIfEmpty(db, opts.SeedPreset); err != nil {
			return nil, nil, fmt.Errorf("failed to seed demo data: %w", err)
		}
	}
	return db, cache.GetClient(), nil
}

// ensureDevRootAdmin upserts user 1 as an unblocked admin in development.
// An existing user 1 keeps its credentials.
func ensureDevRootAdmin(cfg *config.Config, db *gorm.DB) error {
	if cfg == nil || db == nil || cfg.Env != "development" || !cfg.DevBootstrapRoot {
		return nil
	}
	if cfg.DevRootPassword == "" {
		return fmt.Errorf("DEV_ROOT_PASSWORD must be set when DEV_BOOTSTRAP_ROOT is enabled")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(cfg.DevRootPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash root password: %w", err)
	}

	root := models.User{
		ID:       rootAdminID,
		Username: firstNonEmpty(strings.TrimSpace(cfg.DevRootUsername), "root"),
		Email:    firstNonEmpty(strings.ToLower(strings.TrimSpace(cfg.DevRootEmail)), "root@warden.local"),
		Password: string(hashed),
		IsAdmin:  true,
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.Assignments(map[string]any{"is_admin": true, "is_blocked": false}),
		}).Create(&root).Error; err != nil {
			return err
		}
		// Explicit IDs leave the postgres sequence behind.
		if tx.Dialector.Name() != "postgres" {
			return nil
		}
		return tx.Exec(`SELECT setval(pg_get_serial_sequence('users', 'id'), GREATEST((SELECT COALESCE(MAX(id), 1) FROM users), 1), true)`).Error
	})
	if err != nil {
		return err
	}

	log.Printf("development root admin ensured for user ID %d (%s)", rootAdminID, root.Email)
	return nil
}

// seedIfEmpty seeds only when no reports exist yet, so restarts are idempotent.
func seedIfEmpty(db *gorm.DB, preset string) error {
	var n int64
	if err := db.Model(&models.Report{}).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		log.Printf("skipping %s seed: %d reports already present", preset, n)
		return nil
	}
	sum, err := seed.NewSeeder(db, seed.Options{SkipBcrypt: true}).ApplyPreset(preset)
	if err != nil {
		return err
	}
	log.Printf("seeded %s preset: %s", preset, sum)
	return nil
}

func firstNonEmpty(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
