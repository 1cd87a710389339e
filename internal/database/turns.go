package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

const turnColumns = `id, child_id, session_id, user_query, ai_response, prompt_used, is_flagged, flag_reason, created_at`

// SaveTurn inserts one audit log row. ID and CreatedAt are filled in when empty.
func (s *sqlxStore) SaveTurn(ctx context.Context, turn *Turn) error {
	if turn == nil {
		return fmt.Errorf("cannot save nil turn")
	}
	if turn.ChildID == "" || turn.SessionID == "" {
		return fmt.Errorf("turn must have a child_id and session_id")
	}
	if turn.IsFlagged != turn.FlagReason.Valid {
		return fmt.Errorf("turn flag and flag reason must be set together")
	}

	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	} else {
		turn.CreatedAt = turn.CreatedAt.UTC()
	}

	query := `
		INSERT INTO conversation_logs (` + turnColumns + `)
		VALUES (:id, :child_id, :session_id, :user_query, :ai_response, :prompt_used, :is_flagged, :flag_reason, :created_at)`

	if _, err := s.db.NamedExecContext(ctx, query, turn); err != nil {
		s.logger.ErrorContext(ctx, "Error saving turn",
			"child_id", turn.ChildID, "session_id", turn.SessionID, "error", err)
		return fmt.Errorf("failed to save turn (child %s, session %s): %w", turn.ChildID, turn.SessionID, err)
	}

	s.logger.DebugContext(ctx, "Turn saved successfully",
		"turn_id", turn.ID, "child_id", turn.ChildID, "flagged", turn.IsFlagged)
	return nil
}

// GetSessionHistory returns up to 'limit' of the most recent turns of a
// session, ordered oldest to newest. Flagged turns are skipped unless
// includeFlagged is set.
func (s *sqlxStore) GetSessionHistory(ctx context.Context, sessionID string, limit int, includeFlagged bool) ([]Turn, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session_id cannot be empty")
	}
	if limit <= 0 {
		return []Turn{}, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	query := `SELECT ` + turnColumns + ` FROM conversation_logs WHERE session_id = ?`
	if !includeFlagged {
		query += ` AND is_flagged = 0`
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ?`

	turns := []Turn{}
	err := s.db.SelectContext(ctx, &turns, query, sessionID, limit)
	if isContextErr(err) {
		s.logger.WarnContext(ctx, "Context timeout or cancellation while fetching history",
			"session_id", sessionID, "error", err)
		return nil, err
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "Error getting session history", "session_id", sessionID, "error", err)
		return nil, fmt.Errorf("failed to get history for session %s: %w", sessionID, err)
	}

	slices.Reverse(turns)
	return turns, nil
}

// CountTurnsSince counts every turn, flagged or not, logged for a child at or after since.
func (s *sqlxStore) CountTurnsSince(ctx context.Context, childID string, since time.Time) (int, error) {
	if ctx.Err() != nil {
		return 0, ctx.Err()
	}

	var count int
	err := s.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM conversation_logs WHERE child_id = ? AND created_at >= ?`,
		childID, since.UTC())
	if err != nil {
		s.logger.ErrorContext(ctx, "Error counting turns", "child_id", childID, "error", err)
		return 0, fmt.Errorf("failed to count turns for child %s: %w", childID, err)
	}
	return count, nil
}

// ListTurns returns a page of turns, newest first, and the total number of matches.
func (s *sqlxStore) ListTurns(ctx context.Context, filter TurnFilter) ([]Turn, int, error) {
	if ctx.Err() != nil {
		return nil, 0, ctx.Err()
	}

	var (
		conds []string
		args  []any
	)
	if filter.ChildID != "" {
		conds = append(conds, "child_id = ?")
		args = append(args, filter.ChildID)
	}
	if filter.Flagged != nil {
		conds = append(conds, "is_flagged = ?")
		args = append(args, *filter.Flagged)
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := s.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM conversation_logs`+where, args...); err != nil {
		s.logger.ErrorContext(ctx, "Error counting turns for listing", "error", err)
		return nil, 0, fmt.Errorf("failed to count turns: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	} else if limit > 200 {
		limit = 200
	}
	offset := max(filter.Offset, 0)

	turns := []Turn{}
	query := `SELECT ` + turnColumns + ` FROM conversation_logs` + where +
		` ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`
	if err := s.db.SelectContext(ctx, &turns, query, append(args, limit, offset)...); err != nil {
		s.logger.ErrorContext(ctx, "Error listing turns", "error", err)
		return nil, 0, fmt.Errorf("failed to list turns: %w", err)
	}

	return turns, total, nil
}

// GetTurn retrieves a single turn.
func (s *sqlxStore) GetTurn(ctx context.Context, id string) (*Turn, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var turn Turn
	err := s.db.GetContext(ctx, &turn, `SELECT `+turnColumns+` FROM conversation_logs WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "Error getting turn", "turn_id", id, "error", err)
		return nil, fmt.Errorf("failed to get turn %s: %w", id, err)
	}
	return &turn, nil
}

// SetTurnFlag sets or clears a turn's flag, keeping flag and reason consistent.
func (s *sqlxStore) SetTurnFlag(ctx context.Context, id string, flagged bool, reason string) error {
	reason = strings.TrimSpace(reason)
	if flagged && reason == "" {
		return fmt.Errorf("a reason is required to flag a turn")
	}

	flagReason := sql.NullString{String: reason, Valid: flagged}
	result, err := s.db.ExecContext(ctx,
		`UPDATE conversation_logs SET is_flagged = ?, flag_reason = ? WHERE id = ?`,
		flagged, flagReason, id)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error updating turn flag", "turn_id", id, "error", err)
		return fmt.Errorf("failed to update flag for turn %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	s.logger.InfoContext(ctx, "Turn flag updated", "turn_id", id, "flagged", flagged)
	return nil
}

// DeleteTurnsBefore removes turns created before cutoff.
func (s *sqlxStore) DeleteTurnsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM conversation_logs WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		s.logger.ErrorContext(ctx, "Error deleting old turns", "cutoff", cutoff, "error", err)
		return 0, fmt.Errorf("failed to delete turns before %s: %w", cutoff.Format(time.RFC3339), err)
	}

	count, _ := result.RowsAffected()
	s.logger.InfoContext(ctx, "Deleted old turns", "cutoff", cutoff, "count", count)
	return count, nil
}

// GetStats summarizes templates and conversations.
func (s *sqlxStore) GetStats(ctx context.Context) (*Stats, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var stats Stats
	query := `
		SELECT
			(SELECT COUNT(*) FROM prompt_templates) AS templates,
			(SELECT COUNT(*) FROM prompt_templates WHERE is_active = 1) AS active_templates,
			(SELECT COUNT(*) FROM conversation_logs) AS conversations,
			(SELECT COUNT(*) FROM conversation_logs WHERE is_flagged = 1) AS flagged`
	if err := s.db.GetContext(ctx, &stats, query); err != nil {
		s.logger.ErrorContext(ctx, "Error getting stats", "error", err)
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}
	return &stats, nil
}
