package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/kursadbilgin/followupos/internal/config"
	"github.com/kursadbilgin/followupos/internal/domain"
	"github.com/kursadbilgin/followupos/internal/infra/postgresql"
	"github.com/kursadbilgin/followupos/internal/infra/postgresql/migrations"
	"github.com/kursadbilgin/followupos/internal/observability"
	"github.com/kursadbilgin/followupos/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	agencyID      = "11111111-1111-1111-1111-111111111111"
	userID        = "22222222-2222-2222-2222-222222222222"
	clientID      = "33333333-3333-3333-3333-333333333333"
	leadID        = "44444444-4444-4444-4444-444444444444"
	campaignID    = "55555555-5555-5555-5555-555555555555"
	outcomeID     = "66666666-6666-6666-6666-666666666666"
	messageID     = "77777777-7777-7777-7777-777777777777"
	agentID       = "88888888-8888-8888-8888-888888888888"
	decisionLogID = "99999999-9999-9999-9999-999999999999"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN, 2)
	if err != nil {
		logger.Fatal("postgres initialization failed", zap.Error(err))
	}
	defer postgresql.Close(db) //nolint:errcheck

	if err := migrations.Migrate(db); err != nil {
		logger.Fatal("database migrations failed", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := seed(ctx, db); err != nil {
		logger.Fatal("seed failed", zap.Error(err))
	}

	logger.Info("seed complete",
		zap.String("agencyId", agencyID),
		zap.String("leadId", leadID),
		zap.String("campaignId", campaignID),
		zap.String("messageId", messageID),
	)
}

func seed(ctx context.Context, db *gorm.DB) error {
	email := "jordan.lee@example.com"
	phone := "+15550100001"
	subject := "Welcome to Northwind Logistics"

	steps := []func() error{
		func() error {
			return upsert(ctx, repository.NewAgencyRepo(db), agencyID, &domain.Agency{ID: agencyID, Name: "FollowUpOS Agency"})
		},
		func() error {
			return upsert(ctx, repository.NewUserRepo(db), userID, &domain.User{
				ID: userID, AgencyID: agencyID, Name: "Avery Ops", Email: "ops@followupos.local", Role: "admin",
			})
		},
		func() error {
			return upsert(ctx, repository.NewClientRepo(db), clientID, &domain.Client{
				ID: clientID, AgencyID: agencyID, Name: "Northwind Logistics", Industry: "Logistics",
			})
		},
		func() error {
			return upsert(ctx, repository.NewLeadRepo(db), leadID, &domain.Lead{
				ID: leadID, AgencyID: agencyID, ClientID: clientID, FullName: "Jordan Lee",
				Email: &email, Phone: &phone, Status: "active",
			})
		},
		func() error {
			return upsert(ctx, repository.NewCampaignRepo(db), campaignID, &domain.Campaign{
				ID: campaignID, AgencyID: agencyID, ClientID: clientID,
				Name: "Welcome Sequence", Description: "Intro outreach for new leads",
			})
		},
		func() error {
			return upsert(ctx, repository.NewOutcomeRepo(db), outcomeID, &domain.Outcome{
				ID: outcomeID, AgencyID: agencyID, LeadID: leadID, CampaignID: campaignID,
				Name: "Demo Scheduled", Status: domain.OutcomeStatusPlanned,
				SuccessRule: json.RawMessage(`{"type":"calendar","daysToComplete":14}`),
			})
		},
		func() error {
			return upsert(ctx, repository.NewAgentRepo(db), agentID, &domain.Agent{
				ID: agentID, AgencyID: agencyID, Name: "FollowUpOS Agent", Role: "outreach",
			})
		},
		func() error {
			return upsert(ctx, repository.NewDecisionLogRepo(db), decisionLogID, &domain.AgentDecisionLog{
				ID: decisionLogID, AgencyID: agencyID, AgentID: agentID, LeadID: leadID, CampaignID: campaignID,
				Decision:   domain.DecisionPrioritize,
				Reasoning:  "Lead responded positively in prior campaign.",
				Confidence: 0.86,
				Snapshot:   json.RawMessage(`{"leadStatus":"active","lastTouchpoint":"email"}`),
			})
		},
		func() error {
			// A delivered or in-flight seed message is left as it is.
			err := repository.NewGormMessageRepo(db).Create(ctx, &domain.Message{
				ID: messageID, AgencyID: agencyID, LeadID: leadID, CampaignID: campaignID,
				Channel: domain.ChannelEmail, Subject: &subject,
				Body:   "Hi Jordan, we'd love to schedule a quick intro call.",
				Status: domain.StatusPending,
			})
			if errors.Is(err, domain.ErrConflict) {
				return nil
			}
			return err
		},
	}

	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

type validatedEntity interface {
	Validate() error
}

func upsert[T any](ctx context.Context, repo repository.CRUDRepository[T], id string, entity *T) error {
	if v, ok := any(entity).(validatedEntity); ok {
		if err := v.Validate(); err != nil {
			return err
		}
	}

	err := repo.Update(ctx, id, entity)
	if errors.Is(err, domain.ErrNotFound) {
		return repo.Create(ctx, entity)
	}
	return err
}
