package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/promo-studio/internal/apperror"
	"github.com/sakif/promo-studio/internal/model"
	"github.com/sakif/promo-studio/internal/repository"
)

// Compile-time check that *DB implements repository.TemplateRepository.
var _ repository.TemplateRepository = (*DB)(nil)

const templateColumns = `id, name, owner_id, payload, created_at, updated_at`

// Create inserts tmpl, filling in its ID and timestamps.
func (db *DB) Create(ctx context.Context, tmpl *model.Template) error {
	tmpl.ID = xid.New().String()
	now := time.Now().UTC()
	tmpl.CreatedAt = now
	tmpl.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO templates (`+templateColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		tmpl.ID,
		tmpl.Name,
		nullable(tmpl.OwnerID),
		payloadText(tmpl.Payload),
		tmpl.CreatedAt,
		tmpl.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating template: %w", err)
	}
	return nil
}

// GetByID returns the template with id, or an apperror.NotFound.
func (db *DB) GetByID(ctx context.Context, id string) (*model.Template, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+templateColumns+` FROM templates WHERE id = ?`, id)

	tmpl, err := scanTemplate(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("template", id)
		}
		return nil, fmt.Errorf("sqlite: getting template %s: %w", id, err)
	}
	return tmpl, nil
}

// List returns templates newest first, optionally for one owner.
func (db *DB) List(ctx context.Context, opts repository.ListOptions) ([]model.Template, error) {
	limit, offset := repository.Page(opts)

	query := `SELECT ` + templateColumns + ` FROM templates`
	args := []any{}
	if opts.OwnerID != "" {
		query += ` WHERE owner_id = ?`
		args = append(args, opts.OwnerID)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing templates: %w", err)
	}
	defer rows.Close()

	templates := make([]model.Template, 0, limit)
	for rows.Next() {
		tmpl, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning template row: %w", err)
		}
		templates = append(templates, *tmpl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating templates: %w", err)
	}
	return templates, nil
}

// Update overwrites name, owner and payload. ID and CreatedAt never change.
func (db *DB) Update(ctx context.Context, tmpl *model.Template) error {
	tmpl.UpdatedAt = time.Now().UTC()

	result, err := db.conn.ExecContext(ctx,
		`UPDATE templates
		 SET name = ?, owner_id = ?, payload = ?, updated_at = ?
		 WHERE id = ?`,
		tmpl.Name,
		nullable(tmpl.OwnerID),
		payloadText(tmpl.Payload),
		tmpl.UpdatedAt,
		tmpl.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating template %s: %w", tmpl.ID, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("template", tmpl.ID)
	}
	return nil
}

// Delete removes the template with id.
func (db *DB) Delete(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM templates WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting template %s: %w", id, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("template", id)
	}
	return nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanTemplate(s scanner) (*model.Template, error) {
	var (
		tmpl    model.Template
		owner   sql.NullString
		payload string
	)
	if err := s.Scan(&tmpl.ID, &tmpl.Name, &owner, &payload, &tmpl.CreatedAt, &tmpl.UpdatedAt); err != nil {
		return nil, err
	}
	tmpl.OwnerID = owner.String
	tmpl.Payload = []byte(payload)
	return &tmpl, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func payloadText(p []byte) string {
	if len(p) == 0 {
		return "{}"
	}
	return string(p)
}
