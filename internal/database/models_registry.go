package database

import "warden/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Group{},
		&models.GroupMembership{},
		&models.Post{},
		&models.Report{},
		&models.WarningEvent{},
		&models.ModerationAudit{},
	}
}
