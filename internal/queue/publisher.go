package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

type RabbitMQPublisher struct {
	client *RabbitMQ
}

func NewRabbitMQPublisher(client *RabbitMQ) *RabbitMQPublisher {
	return &RabbitMQPublisher{client: client}
}

func (p *RabbitMQPublisher) Publish(ctx context.Context, job Job) error {
	if p == nil || p.client == nil {
		return errors.New("publisher is not initialized")
	}
	if job.Name == "" {
		return errors.New("job name is required")
	}

	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	ch, err := p.client.channel(ctx)
	if err != nil {
		return err
	}
	defer ch.Close() //nolint:errcheck // best-effort channel close

	msg := newPublishing(job.ID, body, max(job.Attempt, 1), 0)
	if err := ch.PublishWithContext(ctx, "", WorkQueue, false, false, msg); err != nil {
		return fmt.Errorf("failed to publish job to queue %q: %w", WorkQueue, err)
	}

	return nil
}

func (p *RabbitMQPublisher) Close() error {
	if p == nil || p.client == nil {
		return nil
	}
	return p.client.Close()
}

// newPublishing builds a persistent JSON message. A positive delay becomes the
// per-message TTL used by RetryQueue.
func newPublishing(id string, body []byte, attempt int, delay time.Duration) amqp.Publishing {
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		MessageId:    id,
		Headers:      amqp.Table{HeaderDeliveryAttempt: int32(attempt)},
		Body:         body,
	}
	if delay > 0 {
		msg.Expiration = strconv.FormatInt(delay.Milliseconds(), 10)
	}
	return msg
}
