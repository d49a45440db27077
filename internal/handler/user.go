package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/orgdir/orgdir/internal/handler/dto"
	"github.com/orgdir/orgdir/internal/service"
)

const msgUserNotFound = "user not found"

// UserHandler handles HTTP requests for user operations.
type UserHandler struct {
	svc    *service.UserService
	logger *slog.Logger
	errs   errorWriter
}

// NewUserHandler creates a new UserHandler.
// exposeDetails controls whether error diagnostics reach the client.
func NewUserHandler(svc *service.UserService, logger *slog.Logger, exposeDetails bool) *UserHandler {
	return &UserHandler{
		svc:    svc,
		logger: logger,
		errs:   errorWriter{logger: logger, exposeDetails: exposeDetails},
	}
}

// Routes returns the resource router, to be mounted by the caller.
func (h *UserHandler) Routes() chi.Router {
	return resourceRoutes(h.Create, h.List, h.Get, h.Update, h.Delete)
}

// Create handles POST /users.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateUserRequest
	if !h.errs.decode(w, r, &req) {
		return
	}

	user, err := h.svc.CreateUser(r.Context(), service.CreateUserInput{
		Name:      req.Name,
		FirstName: req.FirstName,
		Email:     req.Email,
		Password:  req.Password,
		Language:  req.Language,
	})
	if err != nil {
		h.errs.writeServiceError(w, r, err)
		return
	}

	h.logger.Info("user_created", "user_id", user.ID)

	writeJSON(w, http.StatusCreated, dto.ToUserResponse(user))
}

// List handles GET /users.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.ListUsers(r.Context())
	if err != nil {
		h.errs.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToUserListResponse(users))
}

// Get handles GET /users/{id}.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.errs.pathID(w, r, msgUserNotFound)
	if !ok {
		return
	}

	user, err := h.svc.GetUser(r.Context(), id)
	if err != nil {
		h.errs.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToUserResponse(user))
}

// Update handles PUT and PATCH /users/{id}.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.errs.pathID(w, r, msgUserNotFound)
	if !ok {
		return
	}

	var req dto.UpdateUserRequest
	if !h.errs.decodePatch(w, r, &req) {
		return
	}

	user, err := h.svc.UpdateUser(r.Context(), id, req)
	if err != nil {
		h.errs.writeServiceError(w, r, err)
		return
	}

	newPassword, _ := req.Password.Value()
	h.logger.Info("user_updated",
		"user_id", user.ID,
		"password_changed", newPassword != "",
	)

	writeJSON(w, http.StatusOK, dto.ToUserResponse(user))
}

// Delete handles DELETE /users/{id}.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.errs.pathID(w, r, msgUserNotFound)
	if !ok {
		return
	}

	if err := h.svc.DeleteUser(r.Context(), id); err != nil {
		h.errs.writeServiceError(w, r, err)
		return
	}

	h.logger.Info("user_deleted", "user_id", id)

	w.WriteHeader(http.StatusNoContent)
}
