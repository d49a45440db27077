package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/orgdir/orgdir/internal/handler/dto"
	"github.com/orgdir/orgdir/internal/service"
)

const msgAssociationNotFound = "association not found"

// AssociationHandler handles HTTP requests for user-entity links.
type AssociationHandler struct {
	svc    *service.AssociationService
	logger *slog.Logger
	errs   errorWriter
}

// NewAssociationHandler creates a new AssociationHandler.
func NewAssociationHandler(svc *service.AssociationService, logger *slog.Logger, exposeDetails bool) *AssociationHandler {
	return &AssociationHandler{
		svc:    svc,
		logger: logger,
		errs:   errorWriter{logger: logger, exposeDetails: exposeDetails},
	}
}

// Routes returns the resource router, to be mounted by the caller.
func (h *AssociationHandler) Routes() chi.Router {
	return resourceRoutes(h.Create, h.List, h.Get, h.Update, h.Delete)
}

// Create handles POST /user-entities.
func (h *AssociationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateAssociationRequest
	if !h.errs.decode(w, r, &req) {
		return
	}

	assoc, err := h.svc.CreateAssociation(r.Context(), service.CreateAssociationInput{
		UserID:   req.UserID,
		EntityID: req.EntityID,
	})
	if err != nil {
		h.errs.writeServiceError(w, r, err)
		return
	}

	h.logger.Info("association_created",
		"association_id", assoc.ID,
		"user_id", assoc.UserID,
		"entity_id", assoc.EntityID,
	)

	writeJSON(w, http.StatusCreated, assoc)
}

// List handles GET /user-entities.
func (h *AssociationHandler) List(w http.ResponseWriter, r *http.Request) {
	assocs, err := h.svc.ListAssociations(r.Context())
	if err != nil {
		h.errs.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, assocs)
}

// Get handles GET /user-entities/{id}.
func (h *AssociationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.errs.pathID(w, r, msgAssociationNotFound)
	if !ok {
		return
	}

	assoc, err := h.svc.GetAssociation(r.Context(), id)
	if err != nil {
		h.errs.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, assoc)
}

// Update handles PUT and PATCH /user-entities/{id}.
func (h *AssociationHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.errs.pathID(w, r, msgAssociationNotFound)
	if !ok {
		return
	}

	var req dto.UpdateAssociationRequest
	if !h.errs.decodePatch(w, r, &req) {
		return
	}

	assoc, err := h.svc.UpdateAssociation(r.Context(), id, req)
	if err != nil {
		h.errs.writeServiceError(w, r, err)
		return
	}

	h.logger.Info("association_updated",
		"association_id", assoc.ID,
		"user_id", assoc.UserID,
		"entity_id", assoc.EntityID,
	)

	writeJSON(w, http.StatusOK, assoc)
}

// Delete handles DELETE /user-entities/{id}.
func (h *AssociationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.errs.pathID(w, r, msgAssociationNotFound)
	if !ok {
		return
	}

	if err := h.svc.DeleteAssociation(r.Context(), id); err != nil {
		h.errs.writeServiceError(w, r, err)
		return
	}

	h.logger.Info("association_deleted", "association_id", id)

	w.WriteHeader(http.StatusNoContent)
}
