package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kursadbilgin/followupos/internal/config"
	"github.com/kursadbilgin/followupos/internal/infra/postgresql"
	"github.com/kursadbilgin/followupos/internal/infra/postgresql/migrations"
	infraredis "github.com/kursadbilgin/followupos/internal/infra/redis"
	"github.com/kursadbilgin/followupos/internal/observability"
	"github.com/kursadbilgin/followupos/internal/provider"
	"github.com/kursadbilgin/followupos/internal/queue"
	"github.com/kursadbilgin/followupos/internal/repository"
	"github.com/kursadbilgin/followupos/internal/service"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	metricsAddr     = ":9090"
	shutdownTimeout = 10 * time.Second
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

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN, cfg.WorkerConcurrency*2)
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

	gateway, err := newGateway(cfg)
	if err != nil {
		logger.Fatal("provider initialization failed", zap.Error(err))
	}

	limiter, err := infraredis.NewRedisRateLimiter(rdb, cfg.RateLimitPerSec)
	if err != nil {
		logger.Fatal("rate limiter initialization failed", zap.Error(err))
	}

	metrics := observability.NewMetrics()
	messages := repository.NewGormMessageRepo(db)

	consumer := queue.NewRabbitMQConsumer(rabbit, cfg.WorkerPrefetch, cfg.QueueMaxDeliveries, logger)
	consumer.SetMetrics(metrics)

	worker, err := service.NewDispatchWorker(
		messages,
		repository.NewGormAttemptRepo(db),
		consumer,
		gateway,
		limiter,
		cfg.WorkerConcurrency,
		cfg.SendingStaleAfter(),
		logger,
	)
	if err != nil {
		logger.Fatal("dispatch worker initialization failed", zap.Error(err))
	}
	worker.SetMetrics(metrics)

	reconciler, err := service.NewReconciler(
		messages,
		queue.NewRabbitMQPublisher(rabbit),
		infraredis.NewReconcileMarker(rdb, 2*cfg.ReconcileInterval()),
		service.ReconcilerConfig{
			Interval:    cfg.ReconcileInterval(),
			Grace:       cfg.ReconcileGrace(),
			StaleAfter:  cfg.SendingStaleAfter(),
			MaxAttempts: cfg.MaxSendAttempts,
			BatchSize:   cfg.ReconcileBatchSize,
		},
		logger,
	)
	if err != nil {
		logger.Fatal("reconciler initialization failed", zap.Error(err))
	}
	reconciler.SetMetrics(metrics)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	metricsServer := &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	g, groupCtx := errgroup.WithContext(ctx)
	g.Go(func() error { return worker.Start(groupCtx) })
	g.Go(func() error { return reconciler.Start(groupCtx) })
	g.Go(func() error {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})

	logger.Info("followupos worker started",
		zap.Int("concurrency", cfg.WorkerConcurrency),
		zap.String("provider", cfg.Provider),
	)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("followupos worker stopped with error", zap.Error(err))
		return
	}
	logger.Info("followupos worker stopped")
}

func newGateway(cfg *config.Config) (provider.Gateway, error) {
	switch cfg.Provider {
	case config.ProviderWebhook:
		return provider.NewWebhookGateway(cfg.WebhookURL)
	default:
		return provider.NewStubGateway(), nil
	}
}
