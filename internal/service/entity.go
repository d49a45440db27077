package service

import (
	"context"
	"errors"

	"github.com/orgdir/orgdir/internal/metrics"
	"github.com/orgdir/orgdir/internal/model"
	"github.com/orgdir/orgdir/internal/repository"
	"github.com/orgdir/orgdir/internal/validation"
)

// EntityStore is the persistence accessor the entity service relies on.
type EntityStore interface {
	CreateEntity(ctx context.Context, in model.NewEntity) (*model.Entity, error)
	ListEntities(ctx context.Context) ([]*model.Entity, error)
	GetEntityByID(ctx context.Context, id int64) (*model.Entity, error)
	UpdateEntity(ctx context.Context, id int64, patch model.EntityPatch) (*model.Entity, error)
	DeleteEntity(ctx context.Context, id int64) error
	EntityExists(ctx context.Context, id int64) (bool, error)
}

// EntityService handles entity business logic.
type EntityService struct {
	store    EntityStore
	validate *validation.Validator
	metrics  metrics.Recorder
}

// NewEntityService creates a new EntityService.
func NewEntityService(store EntityStore, recorder metrics.Recorder) *EntityService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &EntityService{
		store:    store,
		validate: validation.New(),
		metrics:  recorder,
	}
}

// CreateEntityInput defines input for creating an entity.
type CreateEntityInput struct {
	Name        string  `json:"name" validate:"required"`
	Description *string `json:"description"`
	Siret       *string `json:"siret"`
	KeyLicence  *string `json:"keyLicence"`
	Website     *string `json:"website"`
}

// CreateEntity stores a new entity. Empty optional fields are stored as NULL.
func (s *EntityService) CreateEntity(ctx context.Context, input CreateEntityInput) (*model.Entity, error) {
	fields, err := s.validate.Struct(input)
	if err != nil {
		return nil, storageError("failed to validate entity", err)
	}
	if fields != nil {
		return nil, validationError(validation.Summary(fields), fields...)
	}

	entity, err := s.store.CreateEntity(ctx, model.NewEntity{
		Name:        input.Name,
		Description: nonEmpty(input.Description),
		Siret:       nonEmpty(input.Siret),
		KeyLicence:  nonEmpty(input.KeyLicence),
		Website:     nonEmpty(input.Website),
	})
	if err != nil {
		return nil, storageError("failed to create entity", err)
	}

	s.metrics.IncRecordCreated(metrics.ResourceEntity)

	return entity, nil
}

// ListEntities returns every entity.
func (s *EntityService) ListEntities(ctx context.Context) ([]*model.Entity, error) {
	entities, err := s.store.ListEntities(ctx)
	if err != nil {
		return nil, storageError("failed to list entities", err)
	}
	if entities == nil {
		entities = []*model.Entity{}
	}
	return entities, nil
}

// GetEntity retrieves an entity by ID.
func (s *EntityService) GetEntity(ctx context.Context, id int64) (*model.Entity, error) {
	entity, err := s.store.GetEntityByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrEntityNotFound) {
			return nil, notFoundError("entity not found")
		}
		return nil, storageError("failed to get entity", err)
	}
	return entity, nil
}

// UpdateEntity applies a sparse patch to an entity.
// Optional fields may be cleared with null or set to "". The name may not.
func (s *EntityService) UpdateEntity(ctx context.Context, id int64, patch model.EntityPatch) (*model.Entity, error) {
	exists, err := s.store.EntityExists(ctx, id)
	if err != nil {
		return nil, storageError("failed to update entity", err)
	}
	if !exists {
		return nil, notFoundError("entity not found")
	}

	name, _ := patch.Name.Value()
	if fe := requiredText("name", patch.Name.IsSet(), patch.Name.IsNull(), name); fe != nil {
		return nil, validationError(validation.Summary([]validation.FieldError{*fe}), *fe)
	}

	if patch.IsEmpty() {
		return nil, validationError("no valid fields to update")
	}

	entity, err := s.store.UpdateEntity(ctx, id, patch)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrEntityNotFound):
			return nil, notFoundError("entity not found")
		case errors.Is(err, repository.ErrNothingToUpdate):
			return nil, validationError("no valid fields to update")
		}
		return nil, storageError("failed to update entity", err)
	}

	s.metrics.IncRecordUpdated(metrics.ResourceEntity)

	return entity, nil
}

// DeleteEntity removes an entity and, through the store, its associations.
func (s *EntityService) DeleteEntity(ctx context.Context, id int64) error {
	exists, err := s.store.EntityExists(ctx, id)
	if err != nil {
		return storageError("failed to delete entity", err)
	}
	if !exists {
		return notFoundError("entity not found")
	}

	if err := s.store.DeleteEntity(ctx, id); err != nil {
		if errors.Is(err, repository.ErrEntityNotFound) {
			return notFoundError("entity not found")
		}
		return storageError("failed to delete entity", err)
	}

	s.metrics.IncRecordDeleted(metrics.ResourceEntity)

	return nil
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
