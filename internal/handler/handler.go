// Package handler provides HTTP request handlers.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/orgdir/orgdir/internal/handler/dto"
	"github.com/orgdir/orgdir/internal/service"
)

// Handler serves the banner and the fallback routes.
type Handler struct {
	version string
}

// New creates a new Handler instance.
func New(version string) *Handler {
	return &Handler{version: version}
}

// Hello is the service banner.
// GET /
func (h *Handler) Hello(w http.ResponseWriter, r *http.Request) {
	response := map[string]string{
		"message": "orgdir directory API",
		"version": h.version,
	}
	writeJSON(w, http.StatusOK, response)
}

// NotFound handles 404 responses.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "resource not found"})
}

// MethodNotAllowed handles 405 responses.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, dto.ErrorResponse{Error: "method not allowed"})
}

// resourceRoutes builds the five CRUD routes shared by every resource.
// PUT and PATCH both perform a sparse update.
func resourceRoutes(create, list, get, update, remove http.HandlerFunc) chi.Router {
	r := chi.NewRouter()
	r.Get("/", list)
	r.Post("/", create)
	r.Get("/{id}", get)
	r.Put("/{id}", update)
	r.Patch("/{id}", update)
	r.Delete("/{id}", remove)
	return r
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Default().Warn("response_encode_failed", "error", err)
	}
}

// errorWriter turns service errors into JSON error bodies.
// Diagnostics are only echoed when exposeDetails is set.
type errorWriter struct {
	logger        *slog.Logger
	exposeDetails bool
}

func (e errorWriter) writeError(w http.ResponseWriter, status int, message string, details any) {
	resp := dto.ErrorResponse{Error: message}
	if e.exposeDetails {
		resp.Details = details
	}
	writeJSON(w, status, resp)
}

// writeServiceError maps service error kinds to HTTP statuses.
func (e errorWriter) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var svcErr *service.Error
	if !errors.As(err, &svcErr) {
		e.logger.Error("internal_error", "path", r.URL.Path, "error", err)
		e.writeError(w, http.StatusInternalServerError, "internal server error", err.Error())
		return
	}

	switch {
	case errors.Is(err, service.ErrValidation):
		var details any
		if len(svcErr.Fields) > 0 {
			details = svcErr.Fields
		} else if svcErr.Err != nil {
			details = svcErr.Err.Error()
		}
		e.writeError(w, http.StatusBadRequest, svcErr.Message, details)
	case errors.Is(err, service.ErrNotFound):
		e.writeError(w, http.StatusNotFound, svcErr.Message, nil)
	case errors.Is(err, service.ErrConflict):
		e.writeError(w, http.StatusConflict, svcErr.Message, nil)
	default:
		e.logger.Error("storage_error", "path", r.URL.Path, "error", err)
		var details any
		if svcErr.Err != nil {
			details = svcErr.Err.Error()
		}
		e.writeError(w, http.StatusInternalServerError, svcErr.Message, details)
	}
}

// decode reads a JSON request body into dst, answering 400 on failure and
// 413 when the body outgrows the MaxBodySize limit.
func (e errorWriter) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	return e.decodeBody(w, r, dst, false)
}

// decodePatch is decode for partial updates: an absent body is an empty
// patch, left to the service to reject after its existence check.
func (e errorWriter) decodePatch(w http.ResponseWriter, r *http.Request, dst any) bool {
	return e.decodeBody(w, r, dst, true)
}

func (e errorWriter) decodeBody(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) bool {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || (allowEmpty && errors.Is(err, io.EOF)) {
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		e.writeError(w, http.StatusRequestEntityTooLarge, "request body too large", nil)
		return false
	}

	e.writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
	return false
}

// pathID parses the {id} URL parameter. Identifiers that are not positive
// integers cannot exist, so they are answered with 404.
func (e errorWriter) pathID(w http.ResponseWriter, r *http.Request, notFound string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		e.writeError(w, http.StatusNotFound, notFound, nil)
		return 0, false
	}
	return id, true
}
