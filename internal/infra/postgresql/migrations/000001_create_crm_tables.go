package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/followupos/internal/repository"
	"gorm.io/gorm"
)

func createCRMTables() *gormigrate.Migration {
	// Parents first so foreign keys resolve.
	tables := []any{
		&repository.AgencyModel{},
		&repository.UserModel{},
		&repository.ClientModel{},
		&repository.LeadModel{},
		&repository.CampaignModel{},
		&repository.OutcomeModel{},
		&repository.AgentModel{},
	}

	return &gormigrate.Migration{
		ID: "000001_create_crm_tables",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(tables...); err != nil {
				return err
			}
			constraints := []string{
				`ALTER TABLE users ADD CONSTRAINT fk_users_agency FOREIGN KEY (agency_id) REFERENCES agencies (id) ON DELETE CASCADE`,
				`ALTER TABLE clients ADD CONSTRAINT fk_clients_agency FOREIGN KEY (agency_id) REFERENCES agencies (id) ON DELETE CASCADE`,
				`ALTER TABLE leads ADD CONSTRAINT fk_leads_agency FOREIGN KEY (agency_id) REFERENCES agencies (id) ON DELETE CASCADE`,
				`ALTER TABLE leads ADD CONSTRAINT fk_leads_client FOREIGN KEY (client_id) REFERENCES clients (id) ON DELETE CASCADE`,
				`ALTER TABLE campaigns ADD CONSTRAINT fk_campaigns_agency FOREIGN KEY (agency_id) REFERENCES agencies (id) ON DELETE CASCADE`,
				`ALTER TABLE campaigns ADD CONSTRAINT fk_campaigns_client FOREIGN KEY (client_id) REFERENCES clients (id) ON DELETE CASCADE`,
				`ALTER TABLE outcomes ADD CONSTRAINT fk_outcomes_lead FOREIGN KEY (lead_id) REFERENCES leads (id) ON DELETE CASCADE`,
				`ALTER TABLE outcomes ADD CONSTRAINT fk_outcomes_campaign FOREIGN KEY (campaign_id) REFERENCES campaigns (id) ON DELETE CASCADE`,
				`ALTER TABLE agents ADD CONSTRAINT fk_agents_agency FOREIGN KEY (agency_id) REFERENCES agencies (id) ON DELETE CASCADE`,
			}
			for _, sql := range constraints {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			for i := len(tables) - 1; i >= 0; i-- {
				if err := tx.Migrator().DropTable(tables[i]); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
