// Package memory implements the repository interfaces in process memory.
// Everything is lost on restart; it backs tests and STORAGE_TYPE=memory.
package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/promo-studio/internal/apperror"
	"github.com/sakif/promo-studio/internal/model"
	"github.com/sakif/promo-studio/internal/repository"
)

var _ repository.TemplateRepository = (*Store)(nil)

// Store keeps templates in a map guarded by a RWMutex.
type Store struct {
	mu        sync.RWMutex
	templates map[string]model.Template
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{templates: make(map[string]model.Template)}
}

func (s *Store) Create(_ context.Context, tmpl *model.Template) error {
	tmpl.ID = xid.New().String()
	now := time.Now().UTC()
	tmpl.CreatedAt = now
	tmpl.UpdatedAt = now

	s.mu.Lock()
	s.templates[tmpl.ID] = clone(*tmpl)
	s.mu.Unlock()
	return nil
}

func (s *Store) GetByID(_ context.Context, id string) (*model.Template, error) {
	s.mu.RLock()
	tmpl, ok := s.templates[id]
	s.mu.RUnlock()

	if !ok {
		return nil, apperror.NotFound("template", id)
	}
	out := clone(tmpl)
	return &out, nil
}

func (s *Store) List(_ context.Context, opts repository.ListOptions) ([]model.Template, error) {
	limit, offset := repository.Page(opts)

	s.mu.RLock()
	all := make([]model.Template, 0, len(s.templates))
	for _, t := range s.templates {
		if opts.OwnerID == "" || t.OwnerID == opts.OwnerID {
			all = append(all, clone(t))
		}
	}
	s.mu.RUnlock()

	// newest first, ties broken by id like the SQL backend
	slices.SortFunc(all, func(a, b model.Template) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})

	if offset >= len(all) {
		return []model.Template{}, nil
	}
	all = all[offset:]
	if limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (s *Store) Update(_ context.Context, tmpl *model.Template) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.templates[tmpl.ID]
	if !ok {
		return apperror.NotFound("template", tmpl.ID)
	}
	tmpl.CreatedAt = existing.CreatedAt
	tmpl.UpdatedAt = time.Now().UTC()
	s.templates[tmpl.ID] = clone(*tmpl)
	return nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.templates[id]; !ok {
		return apperror.NotFound("template", id)
	}
	delete(s.templates, id)
	return nil
}

// clone copies the payload so callers can't mutate stored bytes.
func clone(t model.Template) model.Template {
	t.Payload = slices.Clone(t.Payload)
	return t
}
