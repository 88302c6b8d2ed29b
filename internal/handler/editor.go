package handler

import (
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/sakif/promo-studio/internal/apperror"
	"github.com/sakif/promo-studio/internal/service"
	"github.com/sakif/promo-studio/internal/session"
	"github.com/sakif/promo-studio/internal/validation"
)

// maxUploadBody leaves room for multipart framing around the image.
const maxUploadBody = validation.MaxImageSize + 1<<20

// EditorHandler exposes editor sessions over HTTP.
type EditorHandler struct {
	service *service.EditorService
	logger  *slog.Logger
}

// NewEditorHandler creates a new EditorHandler.
func NewEditorHandler(svc *service.EditorService, logger *slog.Logger) *EditorHandler {
	return &EditorHandler{service: svc, logger: logger}
}

type openSessionRequest struct {
	TemplateID string `json:"templateId"`
}

type selectRequest struct {
	Slot string `json:"slot"`
}

type moveRequest struct {
	Slot string  `json:"slot"`
	Left float64 `json:"left"`
	Top  float64 `json:"top"`
}

type shareResponse struct {
	DataURI string `json:"dataUri"`
}

// wantsWait reports whether ?wait=true was passed.
func wantsWait(r *http.Request) bool {
	wait, _ := strconv.ParseBool(r.URL.Query().Get("wait"))
	return wait
}

// writeSummary responds with the session's current state.
func writeSummary(w http.ResponseWriter, status int, sess *session.Session) {
	sum, err := sess.Summary()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, status, sum)
}

// HandleOpen starts a session, optionally from a saved template.
//
// HTTP: POST /api/sessions[?wait=true]
// REQUEST BODY (optional): {"templateId": "..."}
func (h *EditorHandler) HandleOpen(w http.ResponseWriter, r *http.Request) {
	var req openSessionRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		writeError(w, err)
		return
	}

	sess, pending, err := h.service.Open(r.Context(), req.TemplateID)
	if err != nil {
		writeError(w, err)
		return
	}
	if pending != nil && wantsWait(r) {
		if err := pending.Wait(r.Context()); err != nil {
			writeError(w, err)
			return
		}
	}
	writeSummary(w, http.StatusCreated, sess)
}

// HandleGet returns the form, slots and revision of a session.
//
// HTTP: GET /api/sessions/{id}
func (h *EditorHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	sess, err := h.service.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeSummary(w, http.StatusOK, sess)
}

// HandleClose ends a session.
//
// HTTP: DELETE /api/sessions/{id}
func (h *EditorHandler) HandleClose(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Close(r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleUpdateForm applies a partial form update.
//
// HTTP: PATCH /api/sessions/{id}/form
// REQUEST BODY: {"productName": "...", "primaryColor": "#FF0000"}
func (h *EditorHandler) HandleUpdateForm(w http.ResponseWriter, r *http.Request) {
	var patch session.FormPatch
	if err := decodeJSON(w, r, &patch, false); err != nil {
		writeError(w, err)
		return
	}

	id := r.PathValue("id")
	if _, err := h.service.UpdateForm(id, patch); err != nil {
		writeError(w, err)
		return
	}
	sess, err := h.service.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSummary(w, http.StatusOK, sess)
}

// HandleUploadImage accepts the product image as the multipart field
// "image". Decoding happens in the background (202) unless ?wait=true.
//
// HTTP: PUT /api/sessions/{id}/image
func (h *EditorHandler) HandleUploadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)
	if err := r.ParseMultipartForm(maxUploadBody); err != nil {
		h.logger.Warn("invalid image upload", slog.String("error", err.Error()))
		writeError(w, apperror.ValidationFailed("image",
			fmt.Sprintf("upload must be multipart with an image of at most %d MiB", validation.MaxImageSize>>20)))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, apperror.ValidationFailed("image", "image file is required"))
		return
	}
	defer file.Close()

	// One byte past the limit is enough for validation to reject it.
	data, err := io.ReadAll(io.LimitReader(file, validation.MaxImageSize+1))
	if err != nil {
		writeError(w, apperror.ValidationFailed("image", "could not read image file"))
		return
	}

	id := r.PathValue("id")
	wait := wantsWait(r)
	if _, err := h.service.UploadImage(r.Context(), id, header.Filename, header.Header.Get("Content-Type"), data, wait); err != nil {
		writeError(w, err)
		return
	}

	sess, err := h.service.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusAccepted
	if wait {
		status = http.StatusOK
	}
	writeSummary(w, status, sess)
}

// HandleClearImage removes the product image and restores the placeholder.
//
// HTTP: DELETE /api/sessions/{id}/image
func (h *EditorHandler) HandleClearImage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.service.ClearImage(id); err != nil {
		writeError(w, err)
		return
	}
	sess, err := h.service.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSummary(w, http.StatusOK, sess)
}

// HandleImagePreview returns the thumbnail of the uploaded image.
//
// HTTP: GET /api/sessions/{id}/image/preview
func (h *EditorHandler) HandleImagePreview(w http.ResponseWriter, r *http.Request) {
	sess, err := h.service.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	pv, err := sess.ImagePreview()
	if err != nil {
		writeError(w, err)
		return
	}
	writeBytes(w, pv.ContentType, pv.Data)
}

// HandlePreview returns the live view, selection chrome included.
//
// HTTP: GET /api/sessions/{id}/preview
func (h *EditorHandler) HandlePreview(w http.ResponseWriter, r *http.Request) {
	sess, err := h.service.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	snap, err := sess.Preview(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeBytes(w, snap.ContentType(), snap.Data)
}

// HandleExport returns the full-size PNG as a download.
//
// HTTP: GET /api/sessions/{id}/export
func (h *EditorHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.Export(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Disposition",
		mime.FormatMediaType("attachment", map[string]string{"filename": res.Name}))
	if res.Location != "" {
		w.Header().Set("X-Archive-Location", res.Location)
	}
	writeBytes(w, res.ContentType(), res.Data)
}

// HandleShare returns the half-size export as a data URI.
//
// HTTP: GET /api/sessions/{id}/share
func (h *EditorHandler) HandleShare(w http.ResponseWriter, r *http.Request) {
	uri, err := h.service.Share(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, shareResponse{DataURI: uri})
}

// HandleSave stores the session as a template. Passing templateId
// overwrites that template.
//
// HTTP: POST /api/sessions/{id}/save
// REQUEST BODY: {"name": "...", "ownerId": "...", "templateId": "..."}
func (h *EditorHandler) HandleSave(w http.ResponseWriter, r *http.Request) {
	var req service.SaveRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		writeError(w, err)
		return
	}

	tmpl, err := h.service.Save(r.Context(), r.PathValue("id"), req)
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusCreated
	if req.TemplateID != "" {
		status = http.StatusOK
	}
	writeJSON(w, status, tmpl)
}

// HandleSelect selects a slot for the live view. An empty slot clears the
// selection.
//
// HTTP: POST /api/sessions/{id}/select
// REQUEST BODY: {"slot": "productPrice"}
func (h *EditorHandler) HandleSelect(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		writeError(w, err)
		return
	}

	id := r.PathValue("id")
	if err := h.service.Select(id, req.Slot); err != nil {
		writeError(w, err)
		return
	}
	sess, err := h.service.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSummary(w, http.StatusOK, sess)
}

// HandleMove drags a slot, clamped to the canvas.
//
// HTTP: POST /api/sessions/{id}/move
// REQUEST BODY: {"slot": "productImage", "left": 300, "top": 400}
func (h *EditorHandler) HandleMove(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, err)
		return
	}

	info, err := h.service.Move(r.PathValue("id"), req.Slot, req.Left, req.Top)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}
