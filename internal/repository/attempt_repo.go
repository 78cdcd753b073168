package repository

import (
	"context"

	"github.com/kursadbilgin/followupos/internal/domain"
	"gorm.io/gorm"
)

// AttemptRepository is the append-only log of provider tries. Successful
// attempts are written by MessageRepository.CompleteSent so they share the
// status transaction.
type AttemptRepository interface {
	Create(ctx context.Context, a *domain.MessageAttempt) error
	ListByMessageID(ctx context.Context, messageID string) ([]domain.MessageAttempt, error)
}

type GormAttemptRepo struct {
	db *gorm.DB
}

func NewGormAttemptRepo(db *gorm.DB) *GormAttemptRepo {
	return &GormAttemptRepo{db: db}
}

func (r *GormAttemptRepo) Create(ctx context.Context, a *domain.MessageAttempt) error {
	row := attemptModelFromDomain(a)
	if row == nil {
		return domain.ErrValidation
	}

	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return translateWriteError(err)
	}
	*a = *attemptModelToDomain(row)
	return nil
}

// ListByMessageID returns attempts oldest first. An unknown message yields an
// empty slice.
func (r *GormAttemptRepo) ListByMessageID(ctx context.Context, messageID string) ([]domain.MessageAttempt, error) {
	var rows []MessageAttemptModel
	if err := r.db.WithContext(ctx).
		Where(&MessageAttemptModel{MessageID: messageID}).
		Order("attempt_number ASC, created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]domain.MessageAttempt, len(rows))
	for i := range rows {
		out[i] = *attemptModelToDomain(&rows[i])
	}
	return out, nil
}
