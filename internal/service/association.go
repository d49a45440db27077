package service

import (
	"context"
	"errors"

	"github.com/orgdir/orgdir/internal/metrics"
	"github.com/orgdir/orgdir/internal/model"
	"github.com/orgdir/orgdir/internal/repository"
	"github.com/orgdir/orgdir/internal/validation"
)

const msgAssociationExists = "association already exists"

// AssociationStore is the persistence accessor the association service relies on.
type AssociationStore interface {
	CreateAssociation(ctx context.Context, userID, entityID int64) (*model.Association, error)
	ListAssociations(ctx context.Context) ([]*model.Association, error)
	GetAssociationByID(ctx context.Context, id int64) (*model.Association, error)
	UpdateAssociation(ctx context.Context, id int64, patch model.AssociationPatch) (*model.Association, error)
	DeleteAssociation(ctx context.Context, id int64) error
	AssociationExists(ctx context.Context, id int64) (bool, error)
	AssociationPairExists(ctx context.Context, userID, entityID, excludeID int64) (bool, error)
}

// AssociationService handles the user-entity link.
type AssociationService struct {
	store    AssociationStore
	validate *validation.Validator
	metrics  metrics.Recorder
}

// NewAssociationService creates a new AssociationService.
func NewAssociationService(store AssociationStore, recorder metrics.Recorder) *AssociationService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &AssociationService{
		store:    store,
		validate: validation.New(),
		metrics:  recorder,
	}
}

// CreateAssociationInput defines input for linking a user to an entity.
type CreateAssociationInput struct {
	UserID   int64 `json:"user_id" validate:"required"`
	EntityID int64 `json:"entity_id" validate:"required"`
}

// CreateAssociation links a user to an entity once.
// Unknown user or entity ids are rejected as validation errors.
func (s *AssociationService) CreateAssociation(ctx context.Context, input CreateAssociationInput) (*model.Association, error) {
	fields, err := s.validate.Struct(input)
	if err != nil {
		return nil, storageError("failed to validate association", err)
	}
	if fields != nil {
		return nil, validationError(validation.Summary(fields), fields...)
	}

	taken, err := s.store.AssociationPairExists(ctx, input.UserID, input.EntityID, 0)
	if err != nil {
		return nil, storageError("failed to create association", err)
	}
	if taken {
		s.metrics.IncConflict(metrics.ResourceAssociation)
		return nil, conflictError(msgAssociationExists, nil)
	}

	assoc, err := s.store.CreateAssociation(ctx, input.UserID, input.EntityID)
	if err != nil {
		return nil, s.mapWriteError("failed to create association", err)
	}

	s.metrics.IncRecordCreated(metrics.ResourceAssociation)

	return assoc, nil
}

// ListAssociations returns every association.
func (s *AssociationService) ListAssociations(ctx context.Context) ([]*model.Association, error) {
	assocs, err := s.store.ListAssociations(ctx)
	if err != nil {
		return nil, storageError("failed to list associations", err)
	}
	if assocs == nil {
		assocs = []*model.Association{}
	}
	return assocs, nil
}

// GetAssociation retrieves an association by ID.
func (s *AssociationService) GetAssociation(ctx context.Context, id int64) (*model.Association, error) {
	assoc, err := s.store.GetAssociationByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrAssociationNotFound) {
			return nil, notFoundError("association not found")
		}
		return nil, storageError("failed to get association", err)
	}
	return assoc, nil
}

// UpdateAssociation re-points an association. The pair pre-check only runs
// when both halves are supplied; otherwise the unique index decides.
func (s *AssociationService) UpdateAssociation(ctx context.Context, id int64, patch model.AssociationPatch) (*model.Association, error) {
	exists, err := s.store.AssociationExists(ctx, id)
	if err != nil {
		return nil, storageError("failed to update association", err)
	}
	if !exists {
		return nil, notFoundError("association not found")
	}

	var fields []validation.FieldError
	if fe := requiredID("user_id", patch.UserID); fe != nil {
		fields = append(fields, *fe)
	}
	if fe := requiredID("entity_id", patch.EntityID); fe != nil {
		fields = append(fields, *fe)
	}
	if fields != nil {
		return nil, validationError(validation.Summary(fields), fields...)
	}

	if patch.HasPair() {
		userID, _ := patch.UserID.Value()
		entityID, _ := patch.EntityID.Value()
		taken, err := s.store.AssociationPairExists(ctx, userID, entityID, id)
		if err != nil {
			return nil, storageError("failed to update association", err)
		}
		if taken {
			s.metrics.IncConflict(metrics.ResourceAssociation)
			return nil, conflictError(msgAssociationExists, nil)
		}
	}

	if patch.IsEmpty() {
		return nil, validationError("no valid fields to update")
	}

	assoc, err := s.store.UpdateAssociation(ctx, id, patch)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrAssociationNotFound):
			return nil, notFoundError("association not found")
		case errors.Is(err, repository.ErrNothingToUpdate):
			return nil, validationError("no valid fields to update")
		}
		return nil, s.mapWriteError("failed to update association", err)
	}

	s.metrics.IncRecordUpdated(metrics.ResourceAssociation)

	return assoc, nil
}

// DeleteAssociation removes an association.
func (s *AssociationService) DeleteAssociation(ctx context.Context, id int64) error {
	exists, err := s.store.AssociationExists(ctx, id)
	if err != nil {
		return storageError("failed to delete association", err)
	}
	if !exists {
		return notFoundError("association not found")
	}

	if err := s.store.DeleteAssociation(ctx, id); err != nil {
		if errors.Is(err, repository.ErrAssociationNotFound) {
			return notFoundError("association not found")
		}
		return storageError("failed to delete association", err)
	}

	s.metrics.IncRecordDeleted(metrics.ResourceAssociation)

	return nil
}

func (s *AssociationService) mapWriteError(message string, err error) error {
	switch {
	case errors.Is(err, repository.ErrAssociationExists):
		s.metrics.IncConflict(metrics.ResourceAssociation)
		return conflictError(msgAssociationExists, err)
	case errors.Is(err, repository.ErrReferenceNotFound):
		return &Error{
			Kind:    ErrValidation,
			Message: "user_id and entity_id must reference existing records",
			Err:     err,
		}
	}
	return storageError(message, err)
}

func requiredID(field string, v model.Optional[int64]) *validation.FieldError {
	if !v.IsSet() {
		return nil
	}
	if id, ok := v.Value(); !ok || id <= 0 {
		return &validation.FieldError{Field: field, Error: "must be a positive id"}
	}
	return nil
}
