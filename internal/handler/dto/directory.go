// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	"github.com/orgdir/orgdir/internal/model"
)

// CreateUserRequest represents the request body for creating a user.
type CreateUserRequest struct {
	Name      string  `json:"name"`
	FirstName string  `json:"firstName"`
	Email     string  `json:"email"`
	Password  string  `json:"password"`
	Language  *string `json:"language,omitempty"`
}

// UpdateUserRequest is a sparse user update. Absent keys are left untouched.
type UpdateUserRequest = model.UserPatch

// UserResponse represents a user in API responses. The password hash is never included.
type UserResponse struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	FirstName string  `json:"firstName"`
	Email     string  `json:"email"`
	Language  *string `json:"language"`
}

// CreateEntityRequest represents the request body for creating an entity.
type CreateEntityRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	Siret       *string `json:"siret,omitempty"`
	KeyLicence  *string `json:"keyLicence,omitempty"`
	Website     *string `json:"website,omitempty"`
}

// UpdateEntityRequest is a sparse entity update.
type UpdateEntityRequest = model.EntityPatch

// CreateAssociationRequest represents the request body for linking a user to an entity.
type CreateAssociationRequest struct {
	UserID   int64 `json:"user_id"`
	EntityID int64 `json:"entity_id"`
}

// UpdateAssociationRequest is a sparse association update.
type UpdateAssociationRequest = model.AssociationPatch

// ErrorResponse represents an API error.
// Details is only populated outside production.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// ToUserResponse converts a User model to UserResponse DTO.
func ToUserResponse(u *model.User) *UserResponse {
	return &UserResponse{
		ID:        u.ID,
		Name:      u.Name,
		FirstName: u.FirstName,
		Email:     u.Email,
		Language:  u.Language,
	}
}

// ToUserListResponse converts a slice of User models.
func ToUserListResponse(users []*model.User) []UserResponse {
	out := make([]UserResponse, len(users))
	for i, u := range users {
		out[i] = *ToUserResponse(u)
	}
	return out
}
