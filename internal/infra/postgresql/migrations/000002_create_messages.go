package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/followupos/internal/repository"
	"gorm.io/gorm"
)

func createMessagesTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_messages",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.MessageModel{}); err != nil {
				return err
			}
			statements := []string{
				`ALTER TABLE messages ADD CONSTRAINT fk_messages_agency FOREIGN KEY (agency_id) REFERENCES agencies (id) ON DELETE CASCADE`,
				`ALTER TABLE messages ADD CONSTRAINT fk_messages_campaign FOREIGN KEY (campaign_id) REFERENCES campaigns (id) ON DELETE CASCADE`,
				`ALTER TABLE messages ADD CONSTRAINT chk_messages_status CHECK (status IN ('PENDING', 'SENDING', 'SENT', 'FAILED'))`,
				`ALTER TABLE messages ADD CONSTRAINT chk_messages_channel CHECK (channel IN ('EMAIL', 'SMS'))`,
				`CREATE INDEX IF NOT EXISTS idx_messages_status_updated ON messages (status, updated_at)`,
				`CREATE INDEX IF NOT EXISTS idx_messages_lead_id ON messages (lead_id)`,
				`CREATE INDEX IF NOT EXISTS idx_messages_campaign_created ON messages (campaign_id, created_at)`,
			}
			for _, sql := range statements {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.MessageModel{})
		},
	}
}
