// Package repotest is a behavioral test suite every TemplateRepository
// implementation must pass.
package repotest

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/promo-studio/internal/apperror"
	"github.com/sakif/promo-studio/internal/model"
	"github.com/sakif/promo-studio/internal/repository"
)

// Run exercises the repository returned by newRepo. newRepo is called once
// per subtest and must return an empty repository.
func Run(t *testing.T, newRepo func(t *testing.T) repository.TemplateRepository) {
	t.Run("CreateAssignsIDAndTimestamps", func(t *testing.T) {
		repo := newRepo(t)
		tmpl := &model.Template{Name: "Black Friday", Payload: json.RawMessage(`{"version":1}`)}

		require.NoError(t, repo.Create(context.Background(), tmpl))

		assert.NotEmpty(t, tmpl.ID)
		assert.False(t, tmpl.CreatedAt.IsZero())
		assert.Equal(t, tmpl.CreatedAt, tmpl.UpdatedAt)
	})

	t.Run("GetByIDReturnsPayloadVerbatim", func(t *testing.T) {
		repo := newRepo(t)
		payload := `{"form":{"productName":"Fone"},"image":null,"extra":[1,2,3]}`
		tmpl := create(t, repo, "Fone", "owner-1", payload)

		got, err := repo.GetByID(context.Background(), tmpl.ID)

		require.NoError(t, err)
		assert.Equal(t, "Fone", got.Name)
		assert.Equal(t, "owner-1", got.OwnerID)
		assert.JSONEq(t, payload, string(got.Payload))
		assert.WithinDuration(t, tmpl.CreatedAt, got.CreatedAt, time.Millisecond)
	})

	t.Run("GetByIDNotFound", func(t *testing.T) {
		repo := newRepo(t)

		_, err := repo.GetByID(context.Background(), "does-not-exist")

		assert.ErrorIs(t, err, apperror.ErrNotFound)
	})

	t.Run("ListNewestFirstWithPaging", func(t *testing.T) {
		repo := newRepo(t)
		first := create(t, repo, "first", "", `{}`)
		time.Sleep(2 * time.Millisecond)
		second := create(t, repo, "second", "", `{}`)
		time.Sleep(2 * time.Millisecond)
		third := create(t, repo, "third", "", `{}`)

		all, err := repo.List(context.Background(), repository.ListOptions{})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, []string{third.ID, second.ID, first.ID}, ids(all))

		page, err := repo.List(context.Background(), repository.ListOptions{Limit: 1, Offset: 1})
		require.NoError(t, err)
		assert.Equal(t, []string{second.ID}, ids(page))

		empty, err := repo.List(context.Background(), repository.ListOptions{Offset: 10})
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("ListFiltersByOwner", func(t *testing.T) {
		repo := newRepo(t)
		mine := create(t, repo, "mine", "alice", `{}`)
		create(t, repo, "theirs", "bob", `{}`)
		create(t, repo, "nobody's", "", `{}`)

		got, err := repo.List(context.Background(), repository.ListOptions{OwnerID: "alice"})

		require.NoError(t, err)
		assert.Equal(t, []string{mine.ID}, ids(got))
	})

	t.Run("UpdateKeepsCreatedAt", func(t *testing.T) {
		repo := newRepo(t)
		tmpl := create(t, repo, "before", "", `{"v":1}`)
		created := tmpl.CreatedAt
		time.Sleep(2 * time.Millisecond)

		tmpl.Name = "after"
		tmpl.Payload = json.RawMessage(`{"v":2}`)
		require.NoError(t, repo.Update(context.Background(), tmpl))

		got, err := repo.GetByID(context.Background(), tmpl.ID)
		require.NoError(t, err)
		assert.Equal(t, "after", got.Name)
		assert.JSONEq(t, `{"v":2}`, string(got.Payload))
		assert.WithinDuration(t, created, got.CreatedAt, time.Millisecond)
		assert.True(t, got.UpdatedAt.After(got.CreatedAt))
	})

	t.Run("UpdateNotFound", func(t *testing.T) {
		repo := newRepo(t)

		err := repo.Update(context.Background(), &model.Template{ID: "missing", Name: "x"})

		assert.ErrorIs(t, err, apperror.ErrNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		repo := newRepo(t)
		tmpl := create(t, repo, "doomed", "", `{}`)

		require.NoError(t, repo.Delete(context.Background(), tmpl.ID))

		_, err := repo.GetByID(context.Background(), tmpl.ID)
		assert.ErrorIs(t, err, apperror.ErrNotFound)
		assert.ErrorIs(t, repo.Delete(context.Background(), tmpl.ID), apperror.ErrNotFound)
	})
}

func create(t *testing.T, repo repository.TemplateRepository, name, owner, payload string) *model.Template {
	t.Helper()
	tmpl := &model.Template{Name: name, OwnerID: owner, Payload: json.RawMessage(payload)}
	require.NoError(t, repo.Create(context.Background(), tmpl))
	return tmpl
}

func ids(templates []model.Template) []string {
	out := make([]string, len(templates))
	for i, t := range templates {
		out[i] = t.ID
	}
	return out
}
