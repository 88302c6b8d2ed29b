// Package handler contains the HTTP request handlers.
//
// HANDLER RESPONSIBILITIES:
// 1. Parse the incoming HTTP request (path values, query params, body)
// 2. Call the service layer
// 3. Write the HTTP response (status code, headers, body)
//
// Handlers hold no business logic; they are the glue between HTTP and the
// services.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sakif/promo-studio/internal/service"
)

// TemplateHandler manages CRUD operations for saved templates.
type TemplateHandler struct {
	service *service.TemplateService
	logger  *slog.Logger
}

// NewTemplateHandler creates a new TemplateHandler.
func NewTemplateHandler(svc *service.TemplateService, logger *slog.Logger) *TemplateHandler {
	return &TemplateHandler{service: svc, logger: logger}
}

type createTemplateRequest struct {
	Name    string          `json:"name"`
	OwnerID string          `json:"ownerId"`
	Payload json.RawMessage `json:"payload"`
}

// HandleList returns saved templates, newest first.
//
// HTTP: GET /api/templates?ownerId=&limit=&offset=
func (h *TemplateHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	// Bad numbers fall back to the defaults; the service clamps the rest.
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	templates, err := h.service.List(r.Context(), q.Get("ownerId"), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, templates)
}

// HandleGetByID returns one template.
//
// HTTP: GET /api/templates/{id}
func (h *TemplateHandler) HandleGetByID(w http.ResponseWriter, r *http.Request) {
	tmpl, err := h.service.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tmpl)
}

// HandleCreate saves a new template.
//
// HTTP: POST /api/templates
// REQUEST BODY: {"name": "Black Friday", "ownerId": "ana", "payload": {...}}
func (h *TemplateHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createTemplateRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		h.logger.Warn("invalid template JSON", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	tmpl, err := h.service.Create(r.Context(), req.Name, req.OwnerID, req.Payload)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tmpl)
}

// HandleUpdate changes the fields present in the body.
//
// HTTP: PUT /api/templates/{id}
func (h *TemplateHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var patch service.TemplatePatch
	if err := decodeJSON(w, r, &patch, false); err != nil {
		writeError(w, err)
		return
	}

	tmpl, err := h.service.Update(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tmpl)
}

// HandleDelete removes a template.
//
// HTTP: DELETE /api/templates/{id}
func (h *TemplateHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent) // 204 No Content: deleted, no body
}
