package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/followupos/internal/repository"
	"gorm.io/gorm"
)

func createMessageAttemptsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000003_create_message_attempts",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.MessageAttemptModel{}); err != nil {
				return err
			}
			statements := []string{
				`ALTER TABLE message_attempts ADD CONSTRAINT fk_message_attempts_message FOREIGN KEY (message_id) REFERENCES messages (id) ON DELETE CASCADE`,
				`CREATE INDEX IF NOT EXISTS idx_message_attempts_message_id ON message_attempts (message_id, created_at)`,
			}
			for _, sql := range statements {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.MessageAttemptModel{})
		},
	}
}
