package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/orgdir/orgdir/internal/handler/dto"
	"github.com/orgdir/orgdir/internal/service"
)

const msgEntityNotFound = "entity not found"

// EntityHandler handles HTTP requests for entity operations.
type EntityHandler struct {
	svc    *service.EntityService
	logger *slog.Logger
	errs   errorWriter
}

// NewEntityHandler creates a new EntityHandler.
func NewEntityHandler(svc *service.EntityService, logger *slog.Logger, exposeDetails bool) *EntityHandler {
	return &EntityHandler{
		svc:    svc,
		logger: logger,
		errs:   errorWriter{logger: logger, exposeDetails: exposeDetails},
	}
}

// Routes returns the resource router, to be mounted by the caller.
func (h *EntityHandler) Routes() chi.Router {
	return resourceRoutes(h.Create, h.List, h.Get, h.Update, h.Delete)
}

// Create handles POST /entities.
func (h *EntityHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateEntityRequest
	if !h.errs.decode(w, r, &req) {
		return
	}

	entity, err := h.svc.CreateEntity(r.Context(), service.CreateEntityInput{
		Name:        req.Name,
		Description: req.Description,
		Siret:       req.Siret,
		KeyLicence:  req.KeyLicence,
		Website:     req.Website,
	})
	if err != nil {
		h.errs.writeServiceError(w, r, err)
		return
	}

	h.logger.Info("entity_created", "entity_id", entity.ID)

	writeJSON(w, http.StatusCreated, entity)
}

// List handles GET /entities.
func (h *EntityHandler) List(w http.ResponseWriter, r *http.Request) {
	entities, err := h.svc.ListEntities(r.Context())
	if err != nil {
		h.errs.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entities)
}

// Get handles GET /entities/{id}.
func (h *EntityHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.errs.pathID(w, r, msgEntityNotFound)
	if !ok {
		return
	}

	entity, err := h.svc.GetEntity(r.Context(), id)
	if err != nil {
		h.errs.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entity)
}

// Update handles PUT and PATCH /entities/{id}.
func (h *EntityHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.errs.pathID(w, r, msgEntityNotFound)
	if !ok {
		return
	}

	var req dto.UpdateEntityRequest
	if !h.errs.decodePatch(w, r, &req) {
		return
	}

	entity, err := h.svc.UpdateEntity(r.Context(), id, req)
	if err != nil {
		h.errs.writeServiceError(w, r, err)
		return
	}

	h.logger.Info("entity_updated", "entity_id", entity.ID)

	writeJSON(w, http.StatusOK, entity)
}

// Delete handles DELETE /entities/{id}.
func (h *EntityHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.errs.pathID(w, r, msgEntityNotFound)
	if !ok {
		return
	}

	if err := h.svc.DeleteEntity(r.Context(), id); err != nil {
		h.errs.writeServiceError(w, r, err)
		return
	}

	h.logger.Info("entity_deleted", "entity_id", id)

	w.WriteHeader(http.StatusNoContent)
}
