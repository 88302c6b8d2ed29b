package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/sakif/promo-studio/internal/apperror"
	"github.com/sakif/promo-studio/internal/delivery"
	"github.com/sakif/promo-studio/internal/export"
	"github.com/sakif/promo-studio/internal/model"
	"github.com/sakif/promo-studio/internal/scene"
	"github.com/sakif/promo-studio/internal/session"
	"github.com/sakif/promo-studio/internal/validation"
)

// PayloadVersion is written into every saved editor payload.
const PayloadVersion = 1

// Sessions is the registry the editor works against.
type Sessions interface {
	Create() *session.Session
	Get(id string) (*session.Session, error)
	Close(id string) error
}

// EditorPayload is the template payload written by Save. The image is
// base64 encoded by encoding/json.
type EditorPayload struct {
	Version   int             `json:"version"`
	Form      scene.FormState `json:"form"`
	Image     []byte          `json:"image,omitempty"`
	ImageType string          `json:"imageType,omitempty"`
}

// loadedPayload reads a payload back. Form fields missing from the JSON keep
// their defaults.
type loadedPayload struct {
	Version int               `json:"version"`
	Form    session.FormPatch `json:"form"`
	Image   []byte            `json:"image"`
}

// ExportResult is a rendered download plus where the archive copy went.
type ExportResult struct {
	*export.File
	Location string
}

// SaveRequest names the template to write. An empty TemplateID creates a
// new template.
type SaveRequest struct {
	TemplateID string `json:"templateId,omitempty"`
	Name       string `json:"name"`
	OwnerID    string `json:"ownerId,omitempty"`
}

// EditorService drives editor sessions: form edits, uploads, rendering and
// saving to templates.
type EditorService struct {
	sessions  Sessions
	templates *TemplateService
	sink      delivery.Sink
	logger    *slog.Logger
}

// NewEditorService creates an EditorService. A nil sink archives nothing.
func NewEditorService(sessions Sessions, templates *TemplateService, sink delivery.Sink, logger *slog.Logger) *EditorService {
	if sink == nil {
		sink = delivery.Nop{}
	}
	return &EditorService{
		sessions:  sessions,
		templates: templates,
		sink:      sink,
		logger:    logger,
	}
}

// Open starts a session. With a templateID the session is seeded from the
// saved payload; a saved image starts decoding and the returned Pending
// tracks it. Pending is nil when there is nothing to wait for.
func (s *EditorService) Open(ctx context.Context, templateID string) (*session.Session, *session.Pending, error) {
	templateID = strings.TrimSpace(templateID)
	if templateID == "" {
		return s.sessions.Create(), nil, nil
	}

	tmpl, err := s.templates.GetByID(ctx, templateID)
	if err != nil {
		return nil, nil, err
	}
	var saved loadedPayload
	if err := json.Unmarshal(tmpl.Payload, &saved); err != nil {
		return nil, nil, apperror.ValidationFailed("templateId", "template does not hold an editor state")
	}
	if saved.Version > PayloadVersion {
		return nil, nil, apperror.ValidationFailed("templateId",
			fmt.Sprintf("unsupported editor state version %d", saved.Version))
	}

	sess := s.sessions.Create()
	if _, err := sess.UpdateForm(saved.Form); err != nil {
		s.closeQuietly(sess.ID())
		return nil, nil, err
	}

	var pending *session.Pending
	if len(saved.Image) > 0 {
		if err := validation.ValidateImageUpload("", "", saved.Image); err != nil {
			s.closeQuietly(sess.ID())
			return nil, nil, err
		}
		pending, err = sess.SetImage(saved.Image)
		if err != nil {
			s.closeQuietly(sess.ID())
			return nil, nil, err
		}
	}

	s.logger.Info("session opened from template",
		slog.String("session", sess.ID()),
		slog.String("template", tmpl.ID),
	)
	return sess, pending, nil
}

func (s *EditorService) closeQuietly(id string) {
	if err := s.sessions.Close(id); err != nil {
		s.logger.Warn("failed to close session", slog.String("session", id), slog.String("error", err.Error()))
	}
}

// Get returns a session by id.
func (s *EditorService) Get(id string) (*session.Session, error) {
	return s.sessions.Get(strings.TrimSpace(id))
}

// Close ends a session and releases its previews.
func (s *EditorService) Close(id string) error {
	return s.sessions.Close(strings.TrimSpace(id))
}

// UpdateForm applies a partial form edit.
func (s *EditorService) UpdateForm(id string, patch session.FormPatch) (scene.FormState, error) {
	sess, err := s.Get(id)
	if err != nil {
		return scene.FormState{}, err
	}
	return sess.UpdateForm(patch)
}

// UploadImage validates an upload and hands it to the session. With wait
// set it blocks until the image is on the canvas (or the request failed).
func (s *EditorService) UploadImage(ctx context.Context, id, filename, contentType string, data []byte, wait bool) (*session.Pending, error) {
	if err := validation.ValidateImageUpload(filename, contentType, data); err != nil {
		return nil, err
	}
	sess, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	pending, err := sess.SetImage(data)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("product image queued",
		slog.String("session", id),
		slog.String("filename", filename),
		slog.Int("bytes", len(data)),
	)
	if wait {
		if err := pending.Wait(ctx); err != nil {
			return pending, err
		}
	}
	return pending, nil
}

// ClearImage removes the product image.
func (s *EditorService) ClearImage(id string) error {
	sess, err := s.Get(id)
	if err != nil {
		return err
	}
	return sess.ClearImage()
}

// Select changes the selected slot; an empty slot clears the selection.
func (s *EditorService) Select(id, slot string) error {
	sess, err := s.Get(id)
	if err != nil {
		return err
	}
	return sess.Select(strings.TrimSpace(slot))
}

// Move drags a slot and returns where it ended up.
func (s *EditorService) Move(id, slot string, left, top float64) (session.SlotInfo, error) {
	sess, err := s.Get(id)
	if err != nil {
		return session.SlotInfo{}, err
	}
	return sess.Move(strings.TrimSpace(slot), left, top)
}

// Export renders the download PNG and archives a copy to the sink. A sink
// failure is logged; the download itself still succeeds.
func (s *EditorService) Export(ctx context.Context, id string) (*ExportResult, error) {
	sess, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	f, err := sess.Export(ctx)
	if err != nil {
		return nil, err
	}

	res := &ExportResult{File: f}
	location, err := s.sink.Put(ctx, f.Name, f.ContentType(), f.Data)
	if err != nil {
		s.logger.Warn("failed to archive export",
			slog.String("session", id),
			slog.String("file", f.Name),
			slog.String("error", err.Error()),
		)
		return res, nil
	}
	res.Location = location
	if location != "" {
		s.logger.Info("export archived", slog.String("session", id), slog.String("location", location))
	}
	return res, nil
}

// Share renders the share data URI.
func (s *EditorService) Share(ctx context.Context, id string) (string, error) {
	sess, err := s.Get(id)
	if err != nil {
		return "", err
	}
	return sess.Share(ctx)
}

// Save writes the session's form (and image) as a template payload.
func (s *EditorService) Save(ctx context.Context, id string, req SaveRequest) (*model.Template, error) {
	sess, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	form, err := sess.Form()
	if err != nil {
		return nil, err
	}

	p := EditorPayload{Version: PayloadVersion, Form: form}
	if form.HasImage() {
		p.Image = form.ProductImage
		p.ImageType = http.DetectContentType(form.ProductImage)
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encoding editor state: %w", err)
	}

	name := req.Name
	if strings.TrimSpace(name) == "" {
		name = defaultTemplateName(form.ProductName)
	}

	templateID := strings.TrimSpace(req.TemplateID)
	if templateID == "" {
		return s.templates.Create(ctx, name, req.OwnerID, raw)
	}
	patch := TemplatePatch{Name: &name, Payload: raw}
	if req.OwnerID != "" {
		patch.OwnerID = &req.OwnerID
	}
	return s.templates.Update(ctx, templateID, patch)
}

// defaultTemplateName derives a template name from the product name, cut to
// the template name limit. Product names may be longer than that.
func defaultTemplateName(productName string) string {
	name := strings.TrimSpace(productName)
	if utf8.RuneCountInString(name) <= MaxTemplateNameLength {
		return name
	}
	return strings.TrimSpace(string([]rune(name)[:MaxTemplateNameLength]))
}
