package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func addMessagesFailedPermanently() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000005_add_messages_failed_permanently",
		Migrate: func(tx *gorm.DB) error {
			return tx.Exec(`ALTER TABLE messages ADD COLUMN IF NOT EXISTS failed_permanently BOOLEAN NOT NULL DEFAULT FALSE`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Exec(`ALTER TABLE messages DROP COLUMN IF EXISTS failed_permanently`).Error
		},
	}
}
