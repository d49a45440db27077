package service

import (
	"context"
	"errors"

	"github.com/orgdir/orgdir/internal/metrics"
	"github.com/orgdir/orgdir/internal/model"
	"github.com/orgdir/orgdir/internal/password"
	"github.com/orgdir/orgdir/internal/repository"
	"github.com/orgdir/orgdir/internal/validation"
)

// UserStore is the persistence accessor the user service relies on.
type UserStore interface {
	CreateUser(ctx context.Context, in model.NewUser) (*model.User, error)
	ListUsers(ctx context.Context) ([]*model.User, error)
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	UpdateUser(ctx context.Context, id int64, patch model.UserPatch) (*model.User, error)
	DeleteUser(ctx context.Context, id int64) error
	UserExists(ctx context.Context, id int64) (bool, error)
	EmailExists(ctx context.Context, email string, excludeID int64) (bool, error)
}

// Hasher turns a plaintext password into its stored form.
type Hasher func(plain string) (string, error)

// UserService handles user business logic.
type UserService struct {
	store    UserStore
	hash     Hasher
	validate *validation.Validator
	metrics  metrics.Recorder
}

// NewUserService creates a new UserService.
// A nil hasher defaults to argon2id, a nil recorder to a no-op.
func NewUserService(store UserStore, hasher Hasher, recorder metrics.Recorder) *UserService {
	if hasher == nil {
		hasher = password.Hash
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &UserService{
		store:    store,
		hash:     hasher,
		validate: validation.New(),
		metrics:  recorder,
	}
}

// CreateUserInput defines input for creating a user.
type CreateUserInput struct {
	Name      string  `json:"name" validate:"required"`
	FirstName string  `json:"firstName" validate:"required"`
	Email     string  `json:"email" validate:"required"`
	Password  string  `json:"password" validate:"required"`
	Language  *string `json:"language"`
}

// CreateUser registers a new user after checking the email is free.
func (s *UserService) CreateUser(ctx context.Context, input CreateUserInput) (*model.User, error) {
	fields, err := s.validate.Struct(input)
	if err != nil {
		return nil, storageError("failed to validate user", err)
	}
	if fields != nil {
		return nil, validationError(validation.Summary(fields), fields...)
	}

	taken, err := s.store.EmailExists(ctx, input.Email, 0)
	if err != nil {
		return nil, storageError("failed to create user", err)
	}
	if taken {
		s.metrics.IncConflict(metrics.ResourceUser)
		return nil, conflictError("email already in use", nil)
	}

	hashed, err := s.hash(input.Password)
	if err != nil {
		return nil, storageError("failed to hash password", err)
	}

	user, err := s.store.CreateUser(ctx, model.NewUser{
		Name:      input.Name,
		FirstName: input.FirstName,
		Email:     input.Email,
		Password:  hashed,
		Language:  input.Language,
	})
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			s.metrics.IncConflict(metrics.ResourceUser)
			return nil, conflictError("email already in use", err)
		}
		return nil, storageError("failed to create user", err)
	}

	s.metrics.IncRecordCreated(metrics.ResourceUser)

	return user, nil
}

// ListUsers returns every user.
func (s *UserService) ListUsers(ctx context.Context) ([]*model.User, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, storageError("failed to list users", err)
	}
	if users == nil {
		users = []*model.User{}
	}
	return users, nil
}

// GetUser retrieves a user by ID.
func (s *UserService) GetUser(ctx context.Context, id int64) (*model.User, error) {
	user, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, notFoundError("user not found")
		}
		return nil, storageError("failed to get user", err)
	}
	return user, nil
}

// UpdateUser applies a sparse patch to a user.
//
// Name, first name and email cannot be cleared. A null or empty password is
// ignored; any other password is re-hashed before it is stored.
func (s *UserService) UpdateUser(ctx context.Context, id int64, patch model.UserPatch) (*model.User, error) {
	exists, err := s.store.UserExists(ctx, id)
	if err != nil {
		return nil, storageError("failed to update user", err)
	}
	if !exists {
		return nil, notFoundError("user not found")
	}

	var fields []validation.FieldError
	for _, check := range []struct {
		name  string
		field model.Optional[string]
	}{
		{"name", patch.Name},
		{"firstName", patch.FirstName},
		{"email", patch.Email},
	} {
		v, _ := check.field.Value()
		if fe := requiredText(check.name, check.field.IsSet(), check.field.IsNull(), v); fe != nil {
			fields = append(fields, *fe)
		}
	}
	if fields != nil {
		return nil, validationError(validation.Summary(fields), fields...)
	}

	if email, ok := patch.Email.Value(); ok {
		taken, err := s.store.EmailExists(ctx, email, id)
		if err != nil {
			return nil, storageError("failed to update user", err)
		}
		if taken {
			s.metrics.IncConflict(metrics.ResourceUser)
			return nil, conflictError("email already in use", nil)
		}
	}

	if plain, ok := patch.Password.Value(); ok && plain != "" {
		hashed, err := s.hash(plain)
		if err != nil {
			return nil, storageError("failed to hash password", err)
		}
		patch.Password = model.Some(hashed)
	} else {
		patch.Password = model.Optional[string]{}
	}

	if patch.IsEmpty() {
		return nil, validationError("no valid fields to update")
	}

	user, err := s.store.UpdateUser(ctx, id, patch)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrUserNotFound):
			return nil, notFoundError("user not found")
		case errors.Is(err, repository.ErrEmailExists):
			s.metrics.IncConflict(metrics.ResourceUser)
			return nil, conflictError("email already in use", err)
		case errors.Is(err, repository.ErrNothingToUpdate):
			return nil, validationError("no valid fields to update")
		}
		return nil, storageError("failed to update user", err)
	}

	s.metrics.IncRecordUpdated(metrics.ResourceUser)

	return user, nil
}

// DeleteUser removes a user.
func (s *UserService) DeleteUser(ctx context.Context, id int64) error {
	exists, err := s.store.UserExists(ctx, id)
	if err != nil {
		return storageError("failed to delete user", err)
	}
	if !exists {
		return notFoundError("user not found")
	}

	if err := s.store.DeleteUser(ctx, id); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return notFoundError("user not found")
		}
		return storageError("failed to delete user", err)
	}

	s.metrics.IncRecordDeleted(metrics.ResourceUser)

	return nil
}
