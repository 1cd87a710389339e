package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

// Store defines the interface for database operations.
// Methods should accept context.Context for cancellation and timeouts.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error

	// GetChildProfile returns a child with its mascot and its parent's plan.
	// Returns ErrNotFound if the child does not exist.
	GetChildProfile(ctx context.Context, childID string) (*ChildProfile, error)

	// GetActiveTemplate returns the active prompt template. Returns nil, nil if none is active.
	GetActiveTemplate(ctx context.Context) (*PromptTemplate, error)

	// GetTemplate retrieves a template by ID. Returns ErrNotFound if missing.
	GetTemplate(ctx context.Context, id int64) (*PromptTemplate, error)

	// ListTemplates returns all templates, most recently updated first.
	ListTemplates(ctx context.Context) ([]PromptTemplate, error)

	// CreateTemplate inserts a new inactive template at version 1.
	CreateTemplate(ctx context.Context, tmpl *PromptTemplate) error

	// UpdateTemplate edits a template, bumping its version when the content changes.
	UpdateTemplate(ctx context.Context, tmpl *PromptTemplate) error

	// ActivateTemplate marks one template active and every other one inactive.
	ActivateTemplate(ctx context.Context, id int64) error

	// SaveTurn inserts one audit log row.
	SaveTurn(ctx context.Context, turn *Turn) error

	// GetSessionHistory returns the latest 'limit' turns of a session, oldest first.
	GetSessionHistory(ctx context.Context, sessionID string, limit int, includeFlagged bool) ([]Turn, error)

	// CountTurnsSince counts a child's turns logged at or after since.
	CountTurnsSince(ctx context.Context, childID string, since time.Time) (int, error)

	// ListTurns returns a page of turns, newest first, and the total match count.
	ListTurns(ctx context.Context, filter TurnFilter) ([]Turn, int, error)

	// GetTurn retrieves a turn by ID. Returns ErrNotFound if missing.
	GetTurn(ctx context.Context, id string) (*Turn, error)

	// SetTurnFlag flags or unflags a turn. A reason is required when flagging
	// and cleared when unflagging.
	SetTurnFlag(ctx context.Context, id string, flagged bool, reason string) error

	// DeleteTurnsBefore removes turns older than cutoff and reports how many were removed.
	DeleteTurnsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// GetStats summarizes templates and conversations.
	GetStats(ctx context.Context) (*Stats, error)
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Store implementation backed by sqlx.
// It requires a connected sqlx.DB instance and a logger.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

// Ping checks the database connection.
func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// RunSQLMaintenance executes a VACUUM command on the SQLite database.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context cancelled or timed out before starting VACUUM", "error", ctx.Err())
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Starting database maintenance (VACUUM)...")

	// VACUUM must run outside a transaction.
	_, err := s.db.ExecContext(ctx, "VACUUM;")

	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "VACUUM operation timed out or was cancelled", "error", err)
		return fmt.Errorf("database maintenance (VACUUM) timed out: %w", err)

	case err != nil:
		s.logger.ErrorContext(ctx, "Database maintenance (VACUUM) failed", "error", err)
		return fmt.Errorf("failed to execute VACUUM: %w", err)

	default:
		s.logger.InfoContext(ctx, "Database maintenance (VACUUM) completed successfully")
	}

	return nil
}

// withTx runs fn inside a transaction, rolling back unless fn succeeds and the
// commit goes through.
func (s *sqlxStore) withTx(ctx context.Context, op string, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to begin transaction", "op", op, "error", err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if tx != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				if !errors.Is(rollbackErr, sql.ErrTxDone) {
					s.logger.WarnContext(ctx, "Error rolling back transaction", "op", op, "error", rollbackErr)
				}
			}
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		s.logger.ErrorContext(ctx, "Failed to commit transaction", "op", op, "error", err)
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	tx = nil
	return nil
}

func isContextErr(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
