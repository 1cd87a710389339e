package moderation

import (
	"context"
	"errors"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/funnylearn/mascotchat/internal/database"
)

// NewHelpHandler returns a handler for the /help command.
func NewHelpHandler(deps Deps) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		if update.Message == nil {
			return
		}
		reply(ctx, b, deps.Logger.With("handler", "help"), update, helpText)
	}
}

// NewFlaggedHandler returns a handler for /flagged [n], listing the latest flagged turns.
func NewFlaggedHandler(deps Deps) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		log := deps.Logger.With("handler", "flagged")
		if update.Message == nil {
			return
		}

		limit := parseLimit(commandArgs(update.Message.Text), defaultListLimit, maxListLimit)

		timeoutCtx, cancel := context.WithTimeout(ctx, commandTimeout)
		defer cancel()

		flagged := true
		turns, total, err := deps.Store.ListTurns(timeoutCtx, database.TurnFilter{Flagged: &flagged, Limit: limit})
		if err != nil {
			log.ErrorContext(ctx, "Failed to list flagged turns", "error", err)
			reply(ctx, b, log, update, deps.Messages.GeneralError)
			return
		}
		if len(turns) == 0 {
			reply(ctx, b, log, update, deps.Messages.NoFlagged)
			return
		}

		log.InfoContext(ctx, "Listing flagged turns", "count", len(turns), "total", total)
		reply(ctx, b, log, update, FormatTurnList(turns, total))
	}
}

// NewFlagHandler returns a handler for /flag <log_id> <reason>.
func NewFlagHandler(deps Deps) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		log := deps.Logger.With("handler", "flag")
		if update.Message == nil {
			return
		}

		id, reason, ok := parseFlagArgs(commandArgs(update.Message.Text))
		if !ok || reason == "" {
			reply(ctx, b, log, update, deps.Messages.FlagUsage)
			return
		}
		setFlag(ctx, b, deps, log, update, id, true, reason)
	}
}

// NewUnflagHandler returns a handler for /unflag <log_id>.
func NewUnflagHandler(deps Deps) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		log := deps.Logger.With("handler", "unflag")
		if update.Message == nil {
			return
		}

		id, _, ok := parseFlagArgs(commandArgs(update.Message.Text))
		if !ok {
			reply(ctx, b, log, update, deps.Messages.UnflagUsage)
			return
		}
		setFlag(ctx, b, deps, log, update, id, false, "")
	}
}

func setFlag(ctx context.Context, b *bot.Bot, deps Deps, log *slog.Logger, update *models.Update, id string, flagged bool, reason string) {
	timeoutCtx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	err := deps.Store.SetTurnFlag(timeoutCtx, id, flagged, reason)
	switch {
	case errors.Is(err, database.ErrNotFound):
		reply(ctx, b, log, update, deps.Messages.TurnNotFound)
	case err != nil:
		log.ErrorContext(ctx, "Failed to update turn flag", "turn_id", id, "error", err)
		reply(ctx, b, log, update, deps.Messages.GeneralError)
	default:
		log.InfoContext(ctx, "Turn flag updated by moderator", "turn_id", id, "flagged", flagged,
			"moderator_id", update.Message.From.ID)
		reply(ctx, b, log, update, deps.Messages.FlagUpdated)
	}
}

// NewStatsHandler returns a handler for /stats.
func NewStatsHandler(deps Deps) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		log := deps.Logger.With("handler", "stats")
		if update.Message == nil {
			return
		}

		timeoutCtx, cancel := context.WithTimeout(ctx, commandTimeout)
		defer cancel()

		stats, err := deps.Store.GetStats(timeoutCtx)
		if err != nil {
			log.ErrorContext(ctx, "Failed to load stats", "error", err)
			reply(ctx, b, log, update, deps.Messages.GeneralError)
			return
		}
		reply(ctx, b, log, update, FormatStats(stats))
	}
}
