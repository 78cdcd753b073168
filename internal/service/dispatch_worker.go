package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/followupos/internal/domain"
	"github.com/kursadbilgin/followupos/internal/observability"
	"github.com/kursadbilgin/followupos/internal/provider"
	"github.com/kursadbilgin/followupos/internal/queue"
	"github.com/kursadbilgin/followupos/internal/ratelimit"
	"github.com/kursadbilgin/followupos/internal/repository"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	minWorkerConcurrency = 1
	defaultStaleAfter    = 5 * time.Minute
	unknownProvider      = "unknown"
)

// DeliveryError reports a failed send. It unwraps to the provider failure and
// to any error hit while recording the failure.
type DeliveryError struct {
	MessageID string
	Failure   *provider.Failure
	RecordErr error
}

func (e *DeliveryError) Error() string {
	msg := fmt.Sprintf("delivery of message %s failed: %v", e.MessageID, e.Failure)
	if e.RecordErr != nil {
		msg += fmt.Sprintf(" (recording failed: %v)", e.RecordErr)
	}
	return msg
}

// Permanent reports whether redelivering the job cannot succeed.
func (e *DeliveryError) Permanent() bool {
	return e.RecordErr == nil && e.Failure != nil && !provider.IsTransient(e.Failure)
}

// jobError is what the consumer sees: permanent failures are wrapped with
// queue.Permanent so the job is dead-lettered.
func (e *DeliveryError) jobError() error {
	if e.Permanent() {
		return queue.Permanent(e)
	}
	return e
}

func (e *DeliveryError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Failure != nil {
		errs = append(errs, e.Failure)
	}
	if e.RecordErr != nil {
		errs = append(errs, e.RecordErr)
	}
	return errs
}

// DispatchWorker consumes send-message jobs and drives each message through
// claim, send and finalize.
type DispatchWorker struct {
	messages    repository.MessageRepository
	attempts    repository.AttemptRepository
	consumer    queue.Consumer
	gateway     provider.Gateway
	rateLimiter ratelimit.RateLimiter
	logger      *zap.Logger
	metrics     *observability.Metrics
	concurrency int
	staleAfter  time.Duration
	now         func() time.Time
	newID       func() string
}

func NewDispatchWorker(
	messages repository.MessageRepository,
	attempts repository.AttemptRepository,
	consumer queue.Consumer,
	gateway provider.Gateway,
	rateLimiter ratelimit.RateLimiter,
	concurrency int,
	staleAfter time.Duration,
	logger *zap.Logger,
) (*DispatchWorker, error) {
	if messages == nil {
		return nil, errors.New("message repository is required")
	}
	if attempts == nil {
		return nil, errors.New("attempt repository is required")
	}
	if gateway == nil {
		return nil, errors.New("provider gateway is required")
	}
	if rateLimiter == nil {
		rateLimiter = ratelimit.Unlimited{}
	}
	if concurrency < minWorkerConcurrency {
		concurrency = minWorkerConcurrency
	}
	if staleAfter <= 0 {
		staleAfter = defaultStaleAfter
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &DispatchWorker{
		messages:    messages,
		attempts:    attempts,
		consumer:    consumer,
		gateway:     gateway,
		rateLimiter: rateLimiter,
		logger:      logger,
		concurrency: concurrency,
		staleAfter:  staleAfter,
		now:         time.Now,
		newID:       uuid.NewString,
	}, nil
}

func (w *DispatchWorker) SetMetrics(metrics *observability.Metrics) {
	if w == nil {
		return
	}
	w.metrics = metrics
}

// Start runs the configured number of consumers until ctx is canceled.
func (w *DispatchWorker) Start(ctx context.Context) error {
	if w.consumer == nil {
		return errors.New("consumer is required")
	}

	g, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < w.concurrency; i++ {
		workerID := i + 1

		g.Go(func() error {
			w.logger.Info("dispatch worker started", zap.Int("workerId", workerID))

			if err := w.consumer.Consume(groupCtx, w.HandleJob); err != nil {
				w.logger.Error("dispatch worker stopped with error",
					zap.Int("workerId", workerID),
					zap.Error(err),
				)
				return err
			}

			w.logger.Info("dispatch worker stopped", zap.Int("workerId", workerID))
			return nil
		})
	}

	return g.Wait()
}

// HandleJob processes one job. A nil return means the job is done, including
// jobs that are dropped on purpose.
func (w *DispatchWorker) HandleJob(ctx context.Context, job queue.Job) error {
	logger := w.logger.With(
		zap.String("jobId", job.ID),
		zap.String("jobName", job.Name),
		zap.Int("attempt", job.Attempt),
	)

	if job.Name != queue.JobNameSendMessage {
		logger.Warn("unknown job name, dropping")
		return nil
	}

	data, err := queue.DecodeSendMessage(job)
	if err != nil {
		logger.Warn("invalid job payload, dropping", zap.Error(err))
		return nil
	}
	logger = logger.With(zap.String("messageId", data.MessageID))

	msg, err := w.messages.GetForDispatch(ctx, data.MessageID)
	if errors.Is(err, domain.ErrNotFound) {
		logger.Warn("message not found, dropping")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load message: %w", err)
	}

	if msg.Status.IsTerminal() {
		logger.Info("message already sent, dropping duplicate job")
		return nil
	}

	// Wait for capacity before claiming so a held claim never idles in the limiter.
	if err := w.rateLimiter.Wait(ctx, msg.Channel); err != nil {
		return fmt.Errorf("rate limiter wait failed: %w", err)
	}

	now := w.now()
	claimed, err := w.messages.Claim(ctx, msg.ID, now, now.Add(-w.staleAfter))
	if err != nil {
		return fmt.Errorf("failed to claim message: %w", err)
	}
	if !claimed {
		w.metrics.IncClaimConflict()
		logger.Info("message already being processed, dropping")
		return nil
	}

	return w.deliver(ctx, logger, msg)
}

func (w *DispatchWorker) deliver(ctx context.Context, logger *zap.Logger, msg *domain.Message) error {
	channel := msg.Channel.String()
	w.metrics.IncWorkerInFlight(channel)
	defer w.metrics.DecWorkerInFlight(channel)

	outbound := provider.Outbound{
		ID:      msg.ID,
		Channel: msg.Channel,
		Subject: msg.Subject,
		Body:    msg.Body,
	}
	if msg.Lead != nil {
		outbound.ToEmail = msg.Lead.Email
		outbound.ToPhone = msg.Lead.Phone
	}

	sendStart := w.now()
	result := w.gateway.Send(ctx, outbound)
	w.metrics.ObserveSendDuration(channel, w.now().Sub(sendStart))

	attemptNumber := msg.AttemptCount + 1

	if result.OK() {
		if err := w.recordSent(ctx, msg.ID, attemptNumber, result.Receipt); err != nil {
			return fmt.Errorf("failed to record sent message: %w", err)
		}
		w.metrics.IncMessageSent(channel)
		logger.Info("message sent",
			zap.String("provider", result.Receipt.Provider),
			zap.String("providerMsgId", result.Receipt.ProviderMsgID),
			zap.Int("attemptNumber", attemptNumber),
		)
		return nil
	}

	failure := result.Failure
	if failure == nil {
		failure = &provider.Failure{Message: "gateway returned no receipt"}
	}

	deliveryErr := &DeliveryError{
		MessageID: msg.ID,
		Failure:   failure,
		RecordErr: w.recordFailed(ctx, msg.ID, attemptNumber, failure),
	}

	reason := "permanent"
	if provider.IsTransient(failure) {
		reason = "transient"
	}
	w.metrics.IncMessageFailed(channel, reason)
	logger.Warn("message send failed",
		zap.Error(deliveryErr),
		zap.Bool("transient", failure.Transient),
		zap.Int("attemptNumber", attemptNumber),
	)

	return deliveryErr.jobError()
}

func (w *DispatchWorker) recordSent(ctx context.Context, messageID string, attemptNumber int, receipt *provider.Receipt) error {
	raw, err := json.Marshal(receipt.RawResponse)
	if err != nil {
		return fmt.Errorf("failed to encode provider response: %w", err)
	}

	now := w.now().UTC()
	attempt := &domain.MessageAttempt{
		ID:            w.newID(),
		MessageID:     messageID,
		AttemptNumber: attemptNumber,
		Status:        domain.AttemptStatusSuccess,
		Provider:      receipt.Provider,
		RawResponse:   raw,
		CreatedAt:     now,
	}
	if receipt.ProviderMsgID != "" {
		attempt.ProviderMsgID = &receipt.ProviderMsgID
	}
	if receipt.FromAddress != "" {
		attempt.FromAddress = &receipt.FromAddress
	}

	return w.messages.CompleteSent(ctx, attempt, now)
}

// recordFailed writes the FAILED attempt and the FAILED status. Both writes
// are attempted even when the first one fails.
func (w *DispatchWorker) recordFailed(ctx context.Context, messageID string, attemptNumber int, failure *provider.Failure) error {
	raw, err := json.Marshal(map[string]any{
		"error":      failure.Error(),
		"transient":  failure.Transient,
		"statusCode": failure.StatusCode,
	})
	if err != nil {
		return fmt.Errorf("failed to encode failure: %w", err)
	}

	providerName := failure.Provider
	if providerName == "" {
		providerName = unknownProvider
	}

	now := w.now().UTC()
	attempt := &domain.MessageAttempt{
		ID:            w.newID(),
		MessageID:     messageID,
		AttemptNumber: attemptNumber,
		Status:        domain.AttemptStatusFailed,
		Provider:      providerName,
		RawResponse:   raw,
		CreatedAt:     now,
	}

	return multierr.Combine(
		w.attempts.Create(ctx, attempt),
		w.messages.MarkFailed(ctx, messageID, now, !provider.IsTransient(failure)),
	)
}
