// Package auditlog is the append-only record of chat turns reviewed by
// moderators. Writes are best-effort and never fail a turn.
package auditlog

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"time"

	"github.com/funnylearn/mascotchat/internal/database"
	"github.com/funnylearn/mascotchat/internal/metrics"
)

const writeTimeout = 5 * time.Second

// Store is the persistence the writer needs.
type Store interface {
	SaveTurn(ctx context.Context, turn *database.Turn) error
	GetSessionHistory(ctx context.Context, sessionID string, limit int, includeFlagged bool) ([]database.Turn, error)
	CountTurnsSince(ctx context.Context, childID string, since time.Time) (int, error)
}

// FlagNotifier is told about every flagged turn that was stored.
// Implementations must not block.
type FlagNotifier interface {
	NotifyFlagged(ctx context.Context, turn database.Turn)
}

// Writer appends turns and reads them back for the orchestrator.
type Writer struct {
	store    Store
	metrics  *metrics.Metrics
	notifier FlagNotifier
	logger   *slog.Logger
}

// NewWriter creates a Writer. m and notifier may be nil.
func NewWriter(store Store, m *metrics.Metrics, notifier FlagNotifier, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Writer{
		store:    store,
		metrics:  m,
		notifier: notifier,
		logger:   logger.With("component", "auditlog"),
	}
}

// Turn builds an unflagged turn.
func Turn(childID, sessionID, query, response, promptUsed string) *database.Turn {
	return &database.Turn{
		ChildID:    childID,
		SessionID:  sessionID,
		UserQuery:  query,
		AIResponse: response,
		PromptUsed: promptUsed,
	}
}

// FlaggedTurn builds a flagged turn carrying reason.
func FlaggedTurn(childID, sessionID, query, response, promptUsed, reason string) *database.Turn {
	t := Turn(childID, sessionID, query, response, promptUsed)
	t.IsFlagged = true
	t.FlagReason = sql.NullString{String: reason, Valid: true}
	return t
}

// Append stores turn and reports whether it was written. Failures are logged
// and counted, never returned. The write survives cancellation of ctx.
func (w *Writer) Append(ctx context.Context, turn *database.Turn) bool {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()

	if err := w.store.SaveTurn(writeCtx, turn); err != nil {
		w.metrics.AuditLogFailure()
		w.logger.ErrorContext(ctx, "Failed to write conversation log",
			"child_id", turn.ChildID,
			"session_id", turn.SessionID,
			"flagged", turn.IsFlagged,
			"error", err)
		return false
	}

	if turn.IsFlagged && w.notifier != nil {
		w.notifier.NotifyFlagged(ctx, *turn)
	}
	return true
}

// RecentHistory returns the last limit unflagged turns of a session, oldest first.
func (w *Writer) RecentHistory(ctx context.Context, sessionID string, limit int) ([]database.Turn, error) {
	return w.store.GetSessionHistory(ctx, sessionID, limit, false)
}

// CountSince counts a child's turns logged at or after since.
func (w *Writer) CountSince(ctx context.Context, childID string, since time.Time) (int, error) {
	return w.store.CountTurnsSince(ctx, childID, since)
}
