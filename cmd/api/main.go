package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/kursadbilgin/followupos/internal/config"
	"github.com/kursadbilgin/followupos/internal/domain"
	"github.com/kursadbilgin/followupos/internal/handler"
	"github.com/kursadbilgin/followupos/internal/infra/postgresql"
	"github.com/kursadbilgin/followupos/internal/infra/postgresql/migrations"
	infraredis "github.com/kursadbilgin/followupos/internal/infra/redis"
	"github.com/kursadbilgin/followupos/internal/observability"
	"github.com/kursadbilgin/followupos/internal/queue"
	"github.com/kursadbilgin/followupos/internal/repository"
	"github.com/kursadbilgin/followupos/internal/service"
	"github.com/kursadbilgin/followupos/internal/transport"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

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

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN, 0)
	if err != nil {
		logger.Fatal("postgres initialization failed", zap.Error(err))
	}
	defer postgresql.Close(db) //nolint:errcheck

	if err := migrations.Migrate(db); err != nil {
		logger.Fatal("database migrations failed", zap.Error(err))
	}

	rdb, err := infraredis.NewRedis(cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis initialization failed", zap.Error(err))
	}
	defer rdb.Close()

	rabbit, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
	if err != nil {
		logger.Fatal("rabbitmq initialization failed", zap.Error(err))
	}
	defer rabbit.Close() //nolint:errcheck

	metrics := observability.NewMetrics()

	app := fiber.New(transport.FiberConfig("followupos-api", logger))
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(handler.RequestContext())
	app.Use(metrics.HTTPMiddleware())

	handler.RegisterHealthRoutes(app, handler.PostgresCheck(db), handler.RedisCheck(rdb))
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	messages, err := service.NewMessageService(
		repository.NewGormMessageRepo(db),
		repository.NewGormAttemptRepo(db),
		repository.NewLeadRepo(db),
		queue.NewRabbitMQPublisher(rabbit),
		logger,
	)
	if err != nil {
		logger.Fatal("message service initialization failed", zap.Error(err))
	}
	messages.SetMetrics(metrics)

	if err := handler.RegisterMessageRoutes(app, messages); err != nil {
		logger.Fatal("message routes registration failed", zap.Error(err))
	}
	if err := registerCRMRoutes(app, db, logger); err != nil {
		logger.Fatal("crm routes registration failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(fmt.Sprintf(":%d", cfg.APIPort))
	}()
	logger.Info("followupos api started", zap.Int("port", cfg.APIPort))

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error("http server stopped", zap.Error(err))
		}
	}

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Error("http server shutdown failed", zap.Error(err))
	}
	logger.Info("followupos api stopped")
}

func registerCRMRoutes(router fiber.Router, db *gorm.DB, logger *zap.Logger) error {
	agencyFilter := map[string]string{"agencyId": "agency_id"}
	clientFilters := map[string]string{"agencyId": "agency_id", "clientId": "client_id"}

	if err := registerResource[domain.Agency](router, "agency", "/agencies",
		repository.NewAgencyRepo(db), func(e *domain.Agency, id string) { e.ID = id }, nil, logger); err != nil {
		return err
	}
	if err := registerResource[domain.User](router, "user", "/users",
		repository.NewUserRepo(db), func(e *domain.User, id string) { e.ID = id }, agencyFilter, logger); err != nil {
		return err
	}
	if err := registerResource[domain.Client](router, "client", "/clients",
		repository.NewClientRepo(db), func(e *domain.Client, id string) { e.ID = id }, agencyFilter, logger); err != nil {
		return err
	}
	if err := registerResource[domain.Lead](router, "lead", "/leads",
		repository.NewLeadRepo(db), func(e *domain.Lead, id string) { e.ID = id }, clientFilters, logger); err != nil {
		return err
	}
	if err := registerResource[domain.Campaign](router, "campaign", "/campaigns",
		repository.NewCampaignRepo(db), func(e *domain.Campaign, id string) { e.ID = id }, clientFilters, logger); err != nil {
		return err
	}
	if err := registerResource[domain.Outcome](router, "outcome", "/outcomes",
		repository.NewOutcomeRepo(db), func(e *domain.Outcome, id string) { e.ID = id },
		map[string]string{"agencyId": "agency_id", "leadId": "lead_id", "campaignId": "campaign_id"}, logger); err != nil {
		return err
	}
	if err := registerResource[domain.Agent](router, "agent", "/agents",
		repository.NewAgentRepo(db), func(e *domain.Agent, id string) { e.ID = id }, agencyFilter, logger); err != nil {
		return err
	}

	decisionLogs, err := service.NewResourceService[domain.AgentDecisionLog, *domain.AgentDecisionLog](
		"agent decision log",
		repository.NewDecisionLogRepo(db),
		func(e *domain.AgentDecisionLog, id string) { e.ID = id },
		logger,
	)
	if err != nil {
		return err
	}
	return handler.RegisterDecisionLogRoutes(router, decisionLogs)
}

func registerResource[T any, P interface {
	*T
	Validate() error
}](
	router fiber.Router,
	name, path string,
	repo repository.CRUDRepository[T],
	setID func(*T, string),
	filters map[string]string,
	logger *zap.Logger,
) error {
	svc, err := service.NewResourceService[T, P](name, repo, setID, logger)
	if err != nil {
		return err
	}
	return handler.RegisterResourceRoutes[T](router, svc, handler.ResourceRoutes{Path: path, Filters: filters})
}
