package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type childProfileRow struct {
	Child
	MascotName        sql.NullString `db:"mascot_name"`
	MascotType        sql.NullString `db:"mascot_type"`
	MascotPersonality sql.NullString `db:"mascot_personality"`
	MascotGreeting    sql.NullString `db:"mascot_greeting"`
	MascotTraits      sql.NullString `db:"mascot_traits"`
	Plan              sql.NullString `db:"plan"`
}

// GetChildProfile returns a child joined with its mascot and subscription plan.
func (s *sqlxStore) GetChildProfile(ctx context.Context, childID string) (*ChildProfile, error) {
	if childID == "" {
		return nil, fmt.Errorf("child_id cannot be empty")
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	query := `
		SELECT c.id, c.parent_id, c.name, c.age, c.personality, c.interests, c.mascot_id,
		       c.created_at, c.updated_at,
		       m.name AS mascot_name, m.type AS mascot_type,
		       m.base_personality AS mascot_personality, m.base_greeting AS mascot_greeting,
		       m.traits AS mascot_traits,
		       sub.plan AS plan
		FROM children c
		LEFT JOIN mascots m ON m.id = c.mascot_id
		LEFT JOIN subscriptions sub ON sub.parent_id = c.parent_id
		WHERE c.id = ?`

	var row childProfileRow
	err := s.db.GetContext(ctx, &row, query, childID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		s.logger.DebugContext(ctx, "No child profile found", "child_id", childID)
		return nil, ErrNotFound

	case isContextErr(err):
		s.logger.WarnContext(ctx, "Context timeout or cancellation while fetching child profile",
			"child_id", childID, "error", err)
		return nil, err

	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting child profile", "child_id", childID, "error", err)
		return nil, fmt.Errorf("failed to get child profile %s: %w", childID, err)
	}

	profile := &ChildProfile{Child: row.Child, Plan: row.Plan.String}
	if row.MascotID.Valid && row.MascotName.Valid {
		var traits StringList
		if err := traits.Scan(row.MascotTraits.String); err != nil {
			return nil, fmt.Errorf("failed to decode traits for mascot %s: %w", row.MascotID.String, err)
		}
		profile.Mascot = &Mascot{
			ID:              row.MascotID.String,
			Name:            row.MascotName.String,
			Type:            row.MascotType.String,
			BasePersonality: row.MascotPersonality.String,
			BaseGreeting:    row.MascotGreeting.String,
			Traits:          traits,
		}
	}

	return profile, nil
}
