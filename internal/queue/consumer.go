package queue

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/kursadbilgin/followupos/internal/observability"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	defaultMaxDeliveries = 5
	baseRetryDelay       = time.Second
	maxRetryDelay        = 60 * time.Second
	maxRetryJitterMillis = 250
)

// retryPublisher is satisfied by *amqp.Channel.
type retryPublisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type action int

const (
	actionAck action = iota
	actionRetry
	actionDeadLetter
)

type RabbitMQConsumer struct {
	client        *RabbitMQ
	prefetch      int
	maxDeliveries int
	logger        *zap.Logger
	metrics       *observability.Metrics
	randIntn      func(n int) int
}

func NewRabbitMQConsumer(client *RabbitMQ, prefetch, maxDeliveries int, logger *zap.Logger) *RabbitMQConsumer {
	if prefetch < 1 {
		prefetch = 1
	}
	if maxDeliveries < 1 {
		maxDeliveries = defaultMaxDeliveries
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RabbitMQConsumer{
		client:        client,
		prefetch:      prefetch,
		maxDeliveries: maxDeliveries,
		logger:        logger,
		randIntn:      rand.Intn,
	}
}

func (c *RabbitMQConsumer) SetMetrics(metrics *observability.Metrics) {
	if c == nil {
		return
	}
	c.metrics = metrics
}

// Consume blocks until ctx is done, reconnecting with backoff when the
// delivery channel drops.
func (c *RabbitMQConsumer) Consume(ctx context.Context, handler Handler) error {
	if c == nil || c.client == nil {
		return errors.New("consumer is not initialized")
	}
	if handler == nil {
		return errors.New("job handler is required")
	}

	backoff := reconnectBackoff
	for {
		err := c.consumeOnce(ctx, handler)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			backoff = reconnectBackoff
			continue
		}

		c.logger.Warn("consumer disconnected, reconnecting",
			zap.Error(err),
			zap.Duration("backoff", backoff),
		)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}

		backoff = nextReconnectDelay(backoff)
	}
}

func (c *RabbitMQConsumer) consumeOnce(ctx context.Context, handler Handler) error {
	ch, err := c.client.channel(ctx)
	if err != nil {
		return err
	}
	defer ch.Close() //nolint:errcheck // best-effort channel close

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set qos: %w", err)
	}

	deliveries, err := ch.Consume(WorkQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to consume queue %q: %w", WorkQueue, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}

			if err := c.handleDelivery(ctx, d, handler, ch); err != nil {
				return err
			}
		}
	}
}

func (c *RabbitMQConsumer) handleDelivery(ctx context.Context, d amqp.Delivery, handler Handler, retry retryPublisher) error {
	job, err := decodeJob(d.Body)
	if err != nil {
		c.logger.Warn("rejecting delivery: undecodable envelope",
			zap.Error(err),
			zap.String("deliveryId", d.MessageId),
		)
		if rejectErr := d.Reject(false); rejectErr != nil {
			return fmt.Errorf("failed to reject invalid delivery: %w", rejectErr)
		}
		return nil
	}
	job.ID = d.MessageId
	job.Attempt = deliveryAttempt(d.Headers)

	handlerErr := handler(ctx, job)
	if handlerErr != nil && ctx.Err() != nil {
		// Shutting down: hand the job back untouched.
		if nackErr := d.Nack(false, true); nackErr != nil {
			return fmt.Errorf("failed to requeue delivery on shutdown: %w", nackErr)
		}
		return nil
	}

	switch decide(handlerErr, job.Attempt, c.maxDeliveries) {
	case actionAck:
		if err := d.Ack(false); err != nil {
			return fmt.Errorf("failed to ack delivery: %w", err)
		}

	case actionDeadLetter:
		c.logger.Warn("dead-lettering job",
			zap.Error(handlerErr),
			zap.String("jobId", job.ID),
			zap.String("jobName", job.Name),
			zap.Int("attempt", job.Attempt),
		)
		if err := d.Reject(false); err != nil {
			return fmt.Errorf("failed to dead-letter delivery: %w", err)
		}

	case actionRetry:
		delay := computeRetryDelay(job.Attempt, c.randIntn)
		msg := newPublishing(job.ID, d.Body, job.Attempt+1, delay)
		if err := retry.PublishWithContext(ctx, "", RetryQueue, false, false, msg); err != nil {
			c.logger.Error("failed to schedule retry, requeueing",
				zap.Error(err),
				zap.String("jobId", job.ID),
			)
			if nackErr := d.Nack(false, true); nackErr != nil {
				return fmt.Errorf("failed to requeue delivery: %w", nackErr)
			}
			return nil
		}

		c.metrics.IncQueueRetryScheduled()
		c.logger.Info("job retry scheduled",
			zap.Error(handlerErr),
			zap.String("jobId", job.ID),
			zap.String("jobName", job.Name),
			zap.Int("nextAttempt", job.Attempt+1),
			zap.Duration("delay", delay),
		)
		if err := d.Ack(false); err != nil {
			return fmt.Errorf("failed to ack retried delivery: %w", err)
		}
	}

	return nil
}

func (c *RabbitMQConsumer) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func decide(handlerErr error, attempt, maxDeliveries int) action {
	switch {
	case handlerErr == nil:
		return actionAck
	case errors.Is(handlerErr, ErrPermanent):
		return actionDeadLetter
	case attempt >= maxDeliveries:
		return actionDeadLetter
	default:
		return actionRetry
	}
}

func deliveryAttempt(headers amqp.Table) int {
	var attempt int
	switch v := headers[HeaderDeliveryAttempt].(type) {
	case int:
		attempt = v
	case int16:
		attempt = int(v)
	case int32:
		attempt = int(v)
	case int64:
		attempt = int(v)
	}
	return max(attempt, 1)
}

func computeRetryDelay(attempt int, randIntn func(n int) int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := baseRetryDelay
	for i := 1; i < attempt && delay < maxRetryDelay; i++ {
		delay *= 2
	}
	delay = min(delay, maxRetryDelay)

	if randIntn != nil {
		delay += time.Duration(randIntn(maxRetryJitterMillis+1)) * time.Millisecond
	}
	return delay
}
