package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/followupos/internal/repository"
	"gorm.io/gorm"
)

func createAgentDecisionLogsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000004_create_agent_decision_logs",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.AgentDecisionLogModel{}); err != nil {
				return err
			}
			statements := []string{
				`ALTER TABLE agent_decision_logs ADD CONSTRAINT fk_decision_logs_agent FOREIGN KEY (agent_id) REFERENCES agents (id) ON DELETE CASCADE`,
				`ALTER TABLE agent_decision_logs ADD CONSTRAINT fk_decision_logs_lead FOREIGN KEY (lead_id) REFERENCES leads (id) ON DELETE CASCADE`,
				`CREATE INDEX IF NOT EXISTS idx_decision_logs_agency_created ON agent_decision_logs (agency_id, created_at)`,
				`CREATE INDEX IF NOT EXISTS idx_decision_logs_agent_id ON agent_decision_logs (agent_id)`,
				`CREATE INDEX IF NOT EXISTS idx_decision_logs_lead_id ON agent_decision_logs (lead_id)`,
			}
			for _, sql := range statements {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.AgentDecisionLogModel{})
		},
	}
}
