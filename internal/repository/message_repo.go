package repository

import (
	"context"
	"errors"
	"time"

	"github.com/kursadbilgin/followupos/internal/domain"
	"gorm.io/gorm"
)

type ListParams struct {
	Status     *domain.Status
	Channel    *domain.Channel
	AgencyID   string
	LeadID     string
	CampaignID string
	Page       int
	PageSize   int
}

type ReconcileParams struct {
	// PendingBefore bounds PENDING and FAILED rows so freshly queued work is left alone.
	PendingBefore time.Time
	// StaleBefore marks SENDING rows abandoned by a crashed worker.
	StaleBefore time.Time
	MaxAttempts int
	Limit       int
}

type MessageRepository interface {
	Create(ctx context.Context, m *domain.Message) error
	GetByID(ctx context.Context, id string) (*domain.Message, error)
	GetForDispatch(ctx context.Context, id string) (*domain.Message, error)
	List(ctx context.Context, params ListParams) ([]domain.Message, int64, error)
	Claim(ctx context.Context, id string, now, staleBefore time.Time) (bool, error)
	CompleteSent(ctx context.Context, attempt *domain.MessageAttempt, sentAt time.Time) error
	MarkFailed(ctx context.Context, id string, now time.Time, permanent bool) error
	GetDueForReconcile(ctx context.Context, params ReconcileParams) ([]domain.Message, error)
}

type GormMessageRepo struct {
	db *gorm.DB
}

func NewGormMessageRepo(db *gorm.DB) *GormMessageRepo {
	return &GormMessageRepo{db: db}
}

func (r *GormMessageRepo) Create(ctx context.Context, m *domain.Message) error {
	model := messageModelFromDomain(m)
	if err := r.db.WithContext(ctx).Omit("Lead").Create(model).Error; err != nil {
		return translateWriteError(err)
	}
	if m != nil {
		*m = *messageModelToDomain(model)
	}
	return nil
}

func (r *GormMessageRepo) GetByID(ctx context.Context, id string) (*domain.Message, error) {
	var model MessageModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return messageModelToDomain(&model), nil
}

// GetForDispatch loads the message together with its lead.
func (r *GormMessageRepo) GetForDispatch(ctx context.Context, id string) (*domain.Message, error) {
	var model MessageModel
	err := r.db.WithContext(ctx).
		Preload("Lead").
		First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return messageModelToDomain(&model), nil
}

func (r *GormMessageRepo) List(ctx context.Context, params ListParams) ([]domain.Message, int64, error) {
	query := r.db.WithContext(ctx).Model(&MessageModel{})

	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.Channel != nil {
		query = query.Where("channel = ?", *params.Channel)
	}
	if params.AgencyID != "" {
		query = query.Where("agency_id = ?", params.AgencyID)
	}
	if params.LeadID != "" {
		query = query.Where("lead_id = ?", params.LeadID)
	}
	if params.CampaignID != "" {
		query = query.Where("campaign_id = ?", params.CampaignID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, pageSize := normalizePage(params.Page, params.PageSize)

	var models []MessageModel
	err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&models).Error
	if err != nil {
		return nil, 0, err
	}

	messages := make([]domain.Message, 0, len(models))
	for i := range models {
		messages = append(messages, *messageModelToDomain(&models[i]))
	}

	return messages, total, nil
}

// Claim moves a message into SENDING in a single conditional update. It reports
// false when the row is SENT, freshly SENDING under another worker, or missing.
func (r *GormMessageRepo) Claim(ctx context.Context, id string, now, staleBefore time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&MessageModel{}).
		Where("id = ? AND (status IN ? OR (status = ? AND updated_at < ?))",
			id,
			[]domain.Status{domain.StatusPending, domain.StatusFailed},
			domain.StatusSending,
			staleBefore,
		).
		Updates(map[string]any{
			"status":     domain.StatusSending,
			"updated_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// CompleteSent records the successful attempt and marks the message SENT in
// one transaction. A message that is already SENT keeps its original sent_at.
func (r *GormMessageRepo) CompleteSent(ctx context.Context, attempt *domain.MessageAttempt, sentAt time.Time) error {
	model := attemptModelFromDomain(attempt)
	if model == nil {
		return errors.New("attempt is required")
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(model).Error; err != nil {
			return err
		}

		return tx.Model(&MessageModel{}).
			Where("id = ? AND status <> ?", model.MessageID, domain.StatusSent).
			Updates(map[string]any{
				"status":        domain.StatusSent,
				"sent_at":       sentAt,
				"attempt_count": gorm.Expr("attempt_count + 1"),
				"updated_at":    sentAt,
			}).Error
	})
}

// MarkFailed records a failed try. SENT rows are never moved back.
func (r *GormMessageRepo) MarkFailed(ctx context.Context, id string, now time.Time, permanent bool) error {
	return r.db.WithContext(ctx).
		Model(&MessageModel{}).
		Where("id = ? AND status <> ?", id, domain.StatusSent).
		Updates(map[string]any{
			"status":             domain.StatusFailed,
			"attempt_count":      gorm.Expr("attempt_count + 1"),
			"failed_permanently": permanent,
			"updated_at":         now,
		}).Error
}

func (r *GormMessageRepo) GetDueForReconcile(ctx context.Context, params ReconcileParams) ([]domain.Message, error) {
	limit := params.Limit
	if limit < 1 {
		limit = 100
	}

	var models []MessageModel
	err := r.db.WithContext(ctx).
		Where("(status = ? AND updated_at < ?) OR (status = ? AND attempt_count < ? AND NOT failed_permanently AND updated_at < ?) OR (status = ? AND updated_at < ?)",
			domain.StatusPending, params.PendingBefore,
			domain.StatusFailed, params.MaxAttempts, params.PendingBefore,
			domain.StatusSending, params.StaleBefore,
		).
		Order("updated_at ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	messages := make([]domain.Message, 0, len(models))
	for i := range models {
		messages = append(messages, *messageModelToDomain(&models[i]))
	}

	return messages, nil
}

func normalizePage(page, pageSize int) (int, int) {
	page = max(page, 1)
	if pageSize < 1 {
		pageSize = 50
	}
	return page, min(pageSize, 100)
}

func translateWriteError(err error) error {
	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return domain.ErrConflict
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return domain.ErrValidation
	}
	return err
}
