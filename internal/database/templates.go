package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

const templateColumns = `id, name, description, content, safety_rules, version, is_active, created_at, updated_at`

// GetActiveTemplate returns the most recently updated active template, or nil, nil.
func (s *sqlxStore) GetActiveTemplate(ctx context.Context) (*PromptTemplate, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var tmpl PromptTemplate
	query := `SELECT ` + templateColumns + `
	          FROM prompt_templates
	          WHERE is_active = 1
	          ORDER BY updated_at DESC, id DESC
	          LIMIT 1`

	err := s.db.GetContext(ctx, &tmpl, query)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		s.logger.DebugContext(ctx, "No active prompt template")
		return nil, nil

	case isContextErr(err):
		s.logger.WarnContext(ctx, "Context timeout or cancellation while fetching active template", "error", err)
		return nil, err

	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting active template", "error", err)
		return nil, fmt.Errorf("failed to get active template: %w", err)
	}

	return &tmpl, nil
}

// GetTemplate retrieves a template by ID.
func (s *sqlxStore) GetTemplate(ctx context.Context, id int64) (*PromptTemplate, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return getTemplate(ctx, s.db, id)
}

func getTemplate(ctx context.Context, q sqlx.QueryerContext, id int64) (*PromptTemplate, error) {
	var tmpl PromptTemplate
	err := sqlx.GetContext(ctx, q, &tmpl, `SELECT `+templateColumns+` FROM prompt_templates WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get template %d: %w", id, err)
	}
	return &tmpl, nil
}

// ListTemplates returns every template, most recently updated first.
func (s *sqlxStore) ListTemplates(ctx context.Context) ([]PromptTemplate, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	templates := []PromptTemplate{}
	query := `SELECT ` + templateColumns + ` FROM prompt_templates ORDER BY updated_at DESC, id DESC`
	if err := s.db.SelectContext(ctx, &templates, query); err != nil {
		s.logger.ErrorContext(ctx, "Error listing templates", "error", err)
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	return templates, nil
}

// CreateTemplate inserts a new inactive template at version 1.
func (s *sqlxStore) CreateTemplate(ctx context.Context, tmpl *PromptTemplate) error {
	if tmpl == nil {
		return fmt.Errorf("cannot save nil template")
	}
	if tmpl.Name == "" || tmpl.Content == "" {
		return fmt.Errorf("template must have a name and content")
	}

	now := time.Now().UTC()
	tmpl.CreatedAt = now
	tmpl.UpdatedAt = now
	tmpl.Version = 1
	tmpl.IsActive = false
	if tmpl.SafetyRules == nil {
		tmpl.SafetyRules = StringList{}
	}

	query := `
		INSERT INTO prompt_templates (name, description, content, safety_rules, version, is_active, created_at, updated_at)
		VALUES (:name, :description, :content, :safety_rules, :version, :is_active, :created_at, :updated_at)`

	result, err := s.db.NamedExecContext(ctx, query, tmpl)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error creating template", "name", tmpl.Name, "error", err)
		return fmt.Errorf("failed to create template %q: %w", tmpl.Name, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read template id: %w", err)
	}
	tmpl.ID = id

	s.logger.InfoContext(ctx, "Prompt template created", "template_id", tmpl.ID, "name", tmpl.Name)
	return nil
}

// UpdateTemplate edits name, description, content and rules. The version is
// bumped only when the content changes. tmpl is refreshed from the stored row.
func (s *sqlxStore) UpdateTemplate(ctx context.Context, tmpl *PromptTemplate) error {
	if tmpl == nil {
		return fmt.Errorf("cannot save nil template")
	}
	if tmpl.Name == "" || tmpl.Content == "" {
		return fmt.Errorf("template must have a name and content")
	}
	if tmpl.SafetyRules == nil {
		tmpl.SafetyRules = StringList{}
	}

	return s.withTx(ctx, "update_template", func(tx *sqlx.Tx) error {
		current, err := getTemplate(ctx, tx, tmpl.ID)
		if err != nil {
			return err
		}

		version := current.Version
		if current.Content != tmpl.Content {
			version++
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE prompt_templates
			SET name = ?, description = ?, content = ?, safety_rules = ?, version = ?, updated_at = ?
			WHERE id = ?`,
			tmpl.Name, tmpl.Description, tmpl.Content, tmpl.SafetyRules, version, time.Now().UTC(), tmpl.ID)
		if err != nil {
			s.logger.ErrorContext(ctx, "Error updating template", "template_id", tmpl.ID, "error", err)
			return fmt.Errorf("failed to update template %d: %w", tmpl.ID, err)
		}

		updated, err := getTemplate(ctx, tx, tmpl.ID)
		if err != nil {
			return err
		}
		*tmpl = *updated
		return nil
	})
}

// ActivateTemplate makes id the only active template.
func (s *sqlxStore) ActivateTemplate(ctx context.Context, id int64) error {
	err := s.withTx(ctx, "activate_template", func(tx *sqlx.Tx) error {
		if _, err := getTemplate(ctx, tx, id); err != nil {
			return err
		}

		now := time.Now().UTC()
		if _, err := tx.ExecContext(ctx,
			`UPDATE prompt_templates SET is_active = 0, updated_at = ? WHERE is_active = 1 AND id <> ?`, now, id); err != nil {
			return fmt.Errorf("failed to deactivate templates: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE prompt_templates SET is_active = 1, updated_at = ? WHERE id = ?`, now, id); err != nil {
			return fmt.Errorf("failed to activate template %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "Prompt template activated", "template_id", id)
	return nil
}
