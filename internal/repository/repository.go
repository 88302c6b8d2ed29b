package repository

import (
	"context"

	"github.com/sakif/promo-studio/internal/model"
)

// ListOptions filters and pages template listings. An empty OwnerID lists
// every owner.
type ListOptions struct {
	OwnerID string
	Limit   int
	Offset  int
}

// TemplateRepository stores templates. Lookups of unknown ids return an
// apperror.NotFound.
type TemplateRepository interface {
	Create(ctx context.Context, tmpl *model.Template) error
	GetByID(ctx context.Context, id string) (*model.Template, error)
	List(ctx context.Context, opts ListOptions) ([]model.Template, error)
	Update(ctx context.Context, tmpl *model.Template) error
	Delete(ctx context.Context, id string) error
}

// Default and maximum page sizes for List.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Page returns the effective limit and offset for opts.
func Page(opts ListOptions) (limit, offset int) {
	limit = opts.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	offset = max(opts.Offset, 0)
	return limit, offset
}
