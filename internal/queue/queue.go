package queue

import (
	"context"
	"errors"
	"fmt"
)

const (
	// WorkQueue receives dispatch jobs. Rejected deliveries dead-letter to DeadLetterQueue.
	WorkQueue = "messages"
	// RetryQueue holds jobs until their per-message TTL expires, then routes them back to WorkQueue.
	RetryQueue      = "messages.retry"
	DeadLetterQueue = "dlq.messages"

	// HeaderDeliveryAttempt counts deliveries of one job, starting at 1.
	HeaderDeliveryAttempt = "x-delivery-attempt"
)

// ErrPermanent marks a handler error that must not be retried.
var ErrPermanent = errors.New("permanent failure")

// Permanent wraps err so the consumer dead-letters the job instead of retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

// Publisher enqueues dispatch jobs.
type Publisher interface {
	Publish(ctx context.Context, job Job) error
	Close() error
}

// Handler processes one consumed job.
type Handler func(ctx context.Context, job Job) error

// Consumer delivers jobs from WorkQueue to a handler.
type Consumer interface {
	Consume(ctx context.Context, handler Handler) error
	Close() error
}
