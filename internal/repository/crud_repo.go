package repository

import (
	"context"
	"errors"
	"sort"

	"github.com/kursadbilgin/followupos/internal/domain"
	"gorm.io/gorm"
)

// ListOptions filters a CRUD listing by exact column match.
type ListOptions struct {
	Filters  map[string]string
	Page     int
	PageSize int
}

type CRUDRepository[T any] interface {
	Create(ctx context.Context, entity *T) error
	GetByID(ctx context.Context, id string) (*T, error)
	List(ctx context.Context, opts ListOptions) ([]T, int64, error)
	Update(ctx context.Context, id string, entity *T) error
	Delete(ctx context.Context, id string) error
}

// GormCRUDRepo stores a domain type T through its persistence model M.
type GormCRUDRepo[T any, M any] struct {
	db       *gorm.DB
	toModel  func(*T) *M
	toDomain func(*M) *T
}

func NewGormCRUDRepo[T any, M any](db *gorm.DB, toModel func(*T) *M, toDomain func(*M) *T) *GormCRUDRepo[T, M] {
	return &GormCRUDRepo[T, M]{db: db, toModel: toModel, toDomain: toDomain}
}

func NewAgencyRepo(db *gorm.DB) *GormCRUDRepo[domain.Agency, AgencyModel] {
	return NewGormCRUDRepo(db, agencyModelFromDomain, agencyModelToDomain)
}

func NewUserRepo(db *gorm.DB) *GormCRUDRepo[domain.User, UserModel] {
	return NewGormCRUDRepo(db, userModelFromDomain, userModelToDomain)
}

func NewClientRepo(db *gorm.DB) *GormCRUDRepo[domain.Client, ClientModel] {
	return NewGormCRUDRepo(db, clientModelFromDomain, clientModelToDomain)
}

func NewLeadRepo(db *gorm.DB) *GormCRUDRepo[domain.Lead, LeadModel] {
	return NewGormCRUDRepo(db, leadModelFromDomain, leadModelToDomain)
}

func NewCampaignRepo(db *gorm.DB) *GormCRUDRepo[domain.Campaign, CampaignModel] {
	return NewGormCRUDRepo(db, campaignModelFromDomain, campaignModelToDomain)
}

func NewOutcomeRepo(db *gorm.DB) *GormCRUDRepo[domain.Outcome, OutcomeModel] {
	return NewGormCRUDRepo(db, outcomeModelFromDomain, outcomeModelToDomain)
}

func NewAgentRepo(db *gorm.DB) *GormCRUDRepo[domain.Agent, AgentModel] {
	return NewGormCRUDRepo(db, agentModelFromDomain, agentModelToDomain)
}

func NewDecisionLogRepo(db *gorm.DB) *GormCRUDRepo[domain.AgentDecisionLog, AgentDecisionLogModel] {
	return NewGormCRUDRepo(db, decisionLogModelFromDomain, decisionLogModelToDomain)
}

func (r *GormCRUDRepo[T, M]) Create(ctx context.Context, entity *T) error {
	model := r.toModel(entity)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return translateWriteError(err)
	}
	*entity = *r.toDomain(model)
	return nil
}

func (r *GormCRUDRepo[T, M]) GetByID(ctx context.Context, id string) (*T, error) {
	var model M
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return r.toDomain(&model), nil
}

func (r *GormCRUDRepo[T, M]) List(ctx context.Context, opts ListOptions) ([]T, int64, error) {
	query := r.db.WithContext(ctx).Model(new(M))

	// Stable column order keeps generated SQL deterministic.
	columns := make([]string, 0, len(opts.Filters))
	for column := range opts.Filters {
		columns = append(columns, column)
	}
	sort.Strings(columns)
	for _, column := range columns {
		query = query.Where(map[string]any{column: opts.Filters[column]})
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, pageSize := normalizePage(opts.Page, opts.PageSize)

	var models []M
	err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&models).Error
	if err != nil {
		return nil, 0, err
	}

	entities := make([]T, 0, len(models))
	for i := range models {
		entities = append(entities, *r.toDomain(&models[i]))
	}

	return entities, total, nil
}

// Update overwrites every mutable column of the row and reloads it into entity.
func (r *GormCRUDRepo[T, M]) Update(ctx context.Context, id string, entity *T) error {
	model := r.toModel(entity)
	result := r.db.WithContext(ctx).
		Model(model).
		Where("id = ?", id).
		Select("*").
		Omit("id", "created_at").
		Updates(model)
	if result.Error != nil {
		return translateWriteError(result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}

	updated, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	*entity = *updated
	return nil
}

func (r *GormCRUDRepo[T, M]) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(new(M))
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrForeignKeyViolated) {
			return domain.ErrConflict
		}
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
