// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes templates
//
// Services take repository interfaces, never a concrete store, so tests pass
// a mock repository (see template_test.go) and main.go picks SQLite or memory.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/sakif/promo-studio/internal/apperror"
	"github.com/sakif/promo-studio/internal/model"
	"github.com/sakif/promo-studio/internal/repository"
)

// Validation constants.
const (
	MaxTemplateNameLength = 100
	MaxPayloadSize        = 16 << 20 // payloads may embed a base64 product image
)

// TemplatePatch carries the fields to change in Update. Nil fields (and a
// nil Payload) are left alone.
type TemplatePatch struct {
	Name    *string         `json:"name,omitempty"`
	OwnerID *string         `json:"ownerId,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// TemplateService handles business logic for saved templates.
type TemplateService struct {
	repo   repository.TemplateRepository
	logger *slog.Logger
}

// NewTemplateService creates a new TemplateService.
func NewTemplateService(repo repository.TemplateRepository, logger *slog.Logger) *TemplateService {
	return &TemplateService{
		repo:   repo,
		logger: logger,
	}
}

// Create validates and saves a new template. The payload is stored as-is;
// only its JSON validity is checked.
func (s *TemplateService) Create(ctx context.Context, name, ownerID string, payload json.RawMessage) (*model.Template, error) {
	// === VALIDATION ===
	name, err := validateName(name)
	if err != nil {
		return nil, err
	}
	if err := validatePayload(payload); err != nil {
		return nil, err
	}

	tmpl := &model.Template{
		Name:    name,
		OwnerID: strings.TrimSpace(ownerID),
		Payload: payload,
	}
	if err := s.repo.Create(ctx, tmpl); err != nil {
		s.logger.Error("failed to create template",
			slog.String("name", name),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating template: %w", err)
	}

	s.logger.Info("template created",
		slog.String("id", tmpl.ID),
		slog.String("name", tmpl.Name),
	)
	return tmpl, nil
}

// GetByID retrieves a template. Unknown ids return apperror.ErrNotFound.
func (s *TemplateService) GetByID(ctx context.Context, id string) (*model.Template, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "template ID is required")
	}
	return s.repo.GetByID(ctx, id)
}

// List returns templates newest first, optionally for one owner. The page
// size is clamped by the repository.
func (s *TemplateService) List(ctx context.Context, ownerID string, limit, offset int) ([]model.Template, error) {
	templates, err := s.repo.List(ctx, repository.ListOptions{
		OwnerID: strings.TrimSpace(ownerID),
		Limit:   limit,
		Offset:  offset,
	})
	if err != nil {
		s.logger.Error("failed to list templates", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing templates: %w", err)
	}
	return templates, nil
}

// Update applies patch to an existing template ("fetch then update") and
// returns the stored result.
func (s *TemplateService) Update(ctx context.Context, id string, patch TemplatePatch) (*model.Template, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "template ID is required")
	}

	tmpl, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		name, err := validateName(*patch.Name)
		if err != nil {
			return nil, err
		}
		tmpl.Name = name
	}
	if patch.OwnerID != nil {
		tmpl.OwnerID = strings.TrimSpace(*patch.OwnerID)
	}
	if patch.Payload != nil {
		if err := validatePayload(patch.Payload); err != nil {
			return nil, err
		}
		tmpl.Payload = patch.Payload
	}

	if err := s.repo.Update(ctx, tmpl); err != nil {
		s.logger.Error("failed to update template",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("updating template: %w", err)
	}

	s.logger.Info("template updated", slog.String("id", tmpl.ID))
	return tmpl, nil
}

// Delete removes a template. Unknown ids return apperror.ErrNotFound.
func (s *TemplateService) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return apperror.ValidationFailed("id", "template ID is required")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("template deleted", slog.String("id", id))
	return nil
}

func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperror.ValidationFailed("name", "template name is required")
	}
	if utf8.RuneCountInString(name) > MaxTemplateNameLength {
		return "", apperror.ValidationFailed("name",
			fmt.Sprintf("template name must be %d characters or less", MaxTemplateNameLength))
	}
	return name, nil
}

func validatePayload(payload json.RawMessage) error {
	if len(payload) == 0 {
		return apperror.ValidationFailed("payload", "payload is required")
	}
	if len(payload) > MaxPayloadSize {
		return apperror.ValidationFailed("payload",
			fmt.Sprintf("payload must be %d bytes or less", MaxPayloadSize))
	}
	if !json.Valid(payload) {
		return apperror.ValidationFailed("payload", "payload must be valid JSON")
	}
	return nil
}
