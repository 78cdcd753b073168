package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kursadbilgin/followupos/internal/observability"
	"github.com/kursadbilgin/followupos/internal/queue"
	"github.com/kursadbilgin/followupos/internal/repository"
	"go.uber.org/zap"
)

const (
	defaultReconcileInterval = time.Minute
	defaultReconcileGrace    = 2 * time.Minute
	defaultReconcileLimit    = 100
	defaultMaxSendAttempts   = 5
)

// ReconcileMarker deduplicates re-enqueues across sweeps and processes.
type ReconcileMarker interface {
	Mark(ctx context.Context, messageID string) (bool, error)
	Clear(ctx context.Context, messageID string) error
}

type ReconcilerConfig struct {
	Interval    time.Duration
	Grace       time.Duration
	StaleAfter  time.Duration
	MaxAttempts int
	BatchSize   int
}

// Reconciler re-enqueues messages whose job was lost: PENDING rows that never
// made it onto the queue, FAILED rows below the attempt limit, and SENDING
// rows abandoned by a crashed worker.
type Reconciler struct {
	messages  repository.MessageRepository
	publisher queue.Publisher
	marker    ReconcileMarker
	logger    *zap.Logger
	metrics   *observability.Metrics
	cfg       ReconcilerConfig
	now       func() time.Time
}

func NewReconciler(
	messages repository.MessageRepository,
	publisher queue.Publisher,
	marker ReconcileMarker,
	cfg ReconcilerConfig,
	logger *zap.Logger,
) (*Reconciler, error) {
	if messages == nil {
		return nil, errors.New("message repository is required")
	}
	if publisher == nil {
		return nil, errors.New("publisher is required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultReconcileInterval
	}
	if cfg.Grace <= 0 {
		cfg.Grace = defaultReconcileGrace
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = defaultStaleAfter
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxSendAttempts
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultReconcileLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Reconciler{
		messages:  messages,
		publisher: publisher,
		marker:    marker,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}, nil
}

func (r *Reconciler) SetMetrics(metrics *observability.Metrics) {
	if r == nil {
		return
	}
	r.metrics = metrics
}

func (r *Reconciler) Start(ctx context.Context) error {
	r.logger.Info("reconciler started", zap.Duration("interval", r.cfg.Interval))

	if _, err := r.sweep(ctx); err != nil && ctx.Err() == nil {
		r.logger.Error("reconciler initial sweep failed", zap.Error(err))
	}

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reconciler stopped")
			return nil
		case <-ticker.C:
			if _, err := r.sweep(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				r.logger.Error("reconciler sweep failed", zap.Error(err))
			}
		}
	}
}

// sweep returns the number of messages re-enqueued.
func (r *Reconciler) sweep(ctx context.Context) (int, error) {
	now := r.now()
	due, err := r.messages.GetDueForReconcile(ctx, repository.ReconcileParams{
		PendingBefore: now.Add(-r.cfg.Grace),
		StaleBefore:   now.Add(-r.cfg.StaleAfter),
		MaxAttempts:   r.cfg.MaxAttempts,
		Limit:         r.cfg.BatchSize,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to fetch messages to reconcile: %w", err)
	}

	enqueued := 0
	for i := range due {
		msg := due[i]
		logger := r.logger.With(
			zap.String("messageId", msg.ID),
			zap.String("status", msg.Status.String()),
		)

		if r.marker != nil {
			fresh, err := r.marker.Mark(ctx, msg.ID)
			if err != nil {
				// Without the marker a duplicate job is possible, which the claim absorbs.
				logger.Warn("reconcile marker unavailable", zap.Error(err))
			} else if !fresh {
				continue
			}
		}

		job, err := queue.NewSendMessageJob(msg.ID)
		if err == nil {
			err = r.publisher.Publish(ctx, job)
		}
		if err != nil {
			logger.Error("failed to re-enqueue message", zap.Error(err))
			if r.marker != nil {
				if clearErr := r.marker.Clear(ctx, msg.ID); clearErr != nil {
					logger.Warn("failed to clear reconcile marker", zap.Error(clearErr))
				}
			}
			continue
		}

		enqueued++
		r.metrics.IncReconcileEnqueued(msg.Status.String())
		logger.Info("message re-enqueued", zap.Int("attemptCount", msg.AttemptCount))
	}

	return enqueued, nil
}
