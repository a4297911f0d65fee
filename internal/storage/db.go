// Package storage is the persistence layer: a sqlite-backed GORM
// database plus one store per entity. The database is the single source
// of truth for all counters; nothing is cached across requests.
package storage

import (
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/aegiscore/aegis/internal/models"
)

// Open opens (creating if needed) the database at path and migrates the
// schema. The unique indexes on user email, key string and token string
// are load-bearing; they come from the model tags.
func Open(path string) (*gorm.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	// sqlite ships with foreign_keys off; without the pragma the
	// OnDelete:CASCADE constraints are inert and deleting a user would
	// orphan its keys, logs and webhooks.
	db, err := gorm.Open(sqlite.Open(path+"?_pragma=foreign_keys(1)"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.APIKey{},
		&models.AccessToken{},
		&models.RequestLog{},
		&models.Webhook{},
	); err != nil {
		return nil, err
	}
	return db, nil
}
