// Package repository implements the data access layer for the application.
package repository

import (
	"errors"

	"warden/internal/database"

	"gorm.io/gorm"
)

// ErrVersionConflict means a compare-and-swap update matched no row because
// another writer bumped the version first.
var ErrVersionConflict = errors.New("subject version changed concurrently")

func readDB(primary *gorm.DB) *gorm.DB {
	if db := database.GetReadDB(); db != nil {
		return db
	}
	return primary
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
