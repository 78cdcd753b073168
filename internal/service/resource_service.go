package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/kursadbilgin/followupos/internal/domain"
	"github.com/kursadbilgin/followupos/internal/repository"
	"go.uber.org/zap"
)

// validatable is satisfied by the pointer form of every CRM entity.
type validatable[T any] interface {
	*T
	Validate() error
}

// ResourceService implements the uniform CRUD operations for one CRM entity.
type ResourceService[T any, P validatable[T]] struct {
	name   string
	repo   repository.CRUDRepository[T]
	setID  func(*T, string)
	logger *zap.Logger
}

func NewResourceService[T any, P validatable[T]](
	name string,
	repo repository.CRUDRepository[T],
	setID func(*T, string),
	logger *zap.Logger,
) (*ResourceService[T, P], error) {
	if repo == nil {
		return nil, fmt.Errorf("%s repository is required", name)
	}
	if setID == nil {
		return nil, errors.New("id setter is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ResourceService[T, P]{
		name:   name,
		repo:   repo,
		setID:  setID,
		logger: logger.With(zap.String("resource", name)),
	}, nil
}

func (s *ResourceService[T, P]) Name() string {
	return s.name
}

func (s *ResourceService[T, P]) Create(ctx context.Context, entity *T) (*T, error) {
	if entity == nil {
		return nil, fmt.Errorf("%w: %s is required", domain.ErrValidation, s.name)
	}
	if err := P(entity).Validate(); err != nil {
		return nil, err
	}

	s.setID(entity, uuid.NewString())
	if err := s.repo.Create(ctx, entity); err != nil {
		return nil, err
	}
	return entity, nil
}

func (s *ResourceService[T, P]) Get(ctx context.Context, id string) (*T, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

func (s *ResourceService[T, P]) List(ctx context.Context, opts repository.ListOptions) ([]T, int64, error) {
	return s.repo.List(ctx, opts)
}

func (s *ResourceService[T, P]) Update(ctx context.Context, id string, entity *T) (*T, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	if entity == nil {
		return nil, fmt.Errorf("%w: %s is required", domain.ErrValidation, s.name)
	}
	if err := P(entity).Validate(); err != nil {
		return nil, err
	}

	s.setID(entity, id)
	if err := s.repo.Update(ctx, id, entity); err != nil {
		return nil, err
	}
	return entity, nil
}

func (s *ResourceService[T, P]) Delete(ctx context.Context, id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("resource deleted", zap.String("id", id))
	return nil
}
