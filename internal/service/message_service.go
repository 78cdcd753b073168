package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/kursadbilgin/followupos/internal/domain"
	"github.com/kursadbilgin/followupos/internal/observability"
	"github.com/kursadbilgin/followupos/internal/queue"
	"github.com/kursadbilgin/followupos/internal/repository"
	"go.uber.org/zap"
)

// LeadReader resolves the lead a message is addressed to.
type LeadReader interface {
	GetByID(ctx context.Context, id string) (*domain.Lead, error)
}

// MessageService stores outbound messages and enqueues their dispatch jobs.
type MessageService struct {
	messages  repository.MessageRepository
	attempts  repository.AttemptRepository
	leads     LeadReader
	publisher queue.Publisher
	logger    *zap.Logger
	metrics   *observability.Metrics
}

func NewMessageService(
	messages repository.MessageRepository,
	attempts repository.AttemptRepository,
	leads LeadReader,
	publisher queue.Publisher,
	logger *zap.Logger,
) (*MessageService, error) {
	if messages == nil {
		return nil, errors.New("message repository is required")
	}
	if attempts == nil {
		return nil, errors.New("attempt repository is required")
	}
	if leads == nil {
		return nil, errors.New("lead reader is required")
	}
	if publisher == nil {
		return nil, errors.New("publisher is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &MessageService{
		messages:  messages,
		attempts:  attempts,
		leads:     leads,
		publisher: publisher,
		logger:    logger,
	}, nil
}

func (s *MessageService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// Create persists msg as PENDING and then publishes one send-message job. A
// failed publish is logged and the stored message is still returned; the
// reconciler picks it up later.
func (s *MessageService) Create(ctx context.Context, msg *domain.Message) (*domain.Message, error) {
	if msg == nil {
		return nil, fmt.Errorf("%w: message is required", domain.ErrValidation)
	}

	normalizeMessage(msg)
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	lead, err := s.leads.GetByID(ctx, msg.LeadID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("%w: lead %s does not exist", domain.ErrValidation, msg.LeadID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load lead: %w", err)
	}
	if lead.AgencyID != msg.AgencyID {
		return nil, fmt.Errorf("%w: lead %s does not belong to agency %s", domain.ErrValidation, msg.LeadID, msg.AgencyID)
	}
	if _, ok := lead.RecipientFor(msg.Channel); !ok {
		return nil, fmt.Errorf("%w: lead has no recipient for channel %s", domain.ErrValidation, msg.Channel)
	}

	msg.ID = uuid.NewString()
	msg.Status = domain.StatusPending
	msg.AttemptCount = 0
	msg.SentAt = nil
	msg.Lead = nil

	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to store message: %w", err)
	}

	created := *msg
	s.enqueue(ctx, created.ID)

	return &created, nil
}

func (s *MessageService) enqueue(ctx context.Context, messageID string) {
	job, err := queue.NewSendMessageJob(messageID)
	if err == nil {
		err = s.publisher.Publish(ctx, job)
	}
	if err != nil {
		s.metrics.IncEnqueueFailure()
		observability.LoggerFromContext(ctx, s.logger).Error("failed to enqueue message, leaving it for reconciliation",
			zap.String("messageId", messageID),
			zap.Error(err),
		)
		return
	}

	observability.LoggerFromContext(ctx, s.logger).Debug("message enqueued",
		zap.String("messageId", messageID),
		zap.String("jobId", job.ID),
	)
}

func (s *MessageService) GetByID(ctx context.Context, id string) (*domain.Message, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	return s.messages.GetByID(ctx, id)
}

func (s *MessageService) List(ctx context.Context, params repository.ListParams) ([]domain.Message, int64, error) {
	for _, id := range []string{params.AgencyID, params.LeadID, params.CampaignID} {
		if id == "" {
			continue
		}
		if err := validateID(id); err != nil {
			return nil, 0, err
		}
	}
	return s.messages.List(ctx, params)
}

// ListAttempts returns the delivery audit trail of a message, oldest first.
func (s *MessageService) ListAttempts(ctx context.Context, messageID string) ([]domain.MessageAttempt, error) {
	if _, err := s.GetByID(ctx, messageID); err != nil {
		return nil, err
	}
	return s.attempts.ListByMessageID(ctx, messageID)
}

func normalizeMessage(msg *domain.Message) {
	msg.AgencyID = strings.TrimSpace(msg.AgencyID)
	msg.LeadID = strings.TrimSpace(msg.LeadID)
	msg.CampaignID = strings.TrimSpace(msg.CampaignID)
	if msg.Subject != nil {
		subject := strings.TrimSpace(*msg.Subject)
		if subject == "" {
			msg.Subject = nil
		} else {
			msg.Subject = &subject
		}
	}
	if strings.TrimSpace(msg.Body) == "" {
		msg.Body = ""
	}
}

func validateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: invalid id %q", domain.ErrValidation, id)
	}
	return nil
}
