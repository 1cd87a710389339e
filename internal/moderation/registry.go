package moderation

import (
	"context"
	"io"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// RegisteredHandler is a command handler with its match rules and middleware.
type RegisteredHandler struct {
	HandlerType bot.HandlerType
	Pattern     string
	Handler     bot.HandlerFunc
	Middleware  []bot.Middleware
	MatchType   bot.MatchType
}

// RegisterAllCommands returns every moderation command keyed by its name.
func RegisterAllCommands(deps Deps) map[string]RegisteredHandler {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	deps.Logger = deps.Logger.With("component", "moderation")

	adminMiddleware := []bot.Middleware{AdminOnly(deps)}
	command := func(pattern string, handler bot.HandlerFunc, mw []bot.Middleware) RegisteredHandler {
		return RegisteredHandler{
			HandlerType: bot.HandlerTypeMessageText,
			Pattern:     pattern,
			Handler:     handler,
			MatchType:   bot.MatchTypeCommandStartOnly,
			Middleware:  mw,
		}
	}

	return map[string]RegisteredHandler{
		"/help":    command("help", NewHelpHandler(deps), nil),
		"/flagged": command("flagged", NewFlaggedHandler(deps), adminMiddleware),
		"/flag":    command("flag", NewFlagHandler(deps), adminMiddleware),
		"/unflag":  command("unflag", NewUnflagHandler(deps), adminMiddleware),
		"/stats":   command("stats", NewStatsHandler(deps), adminMiddleware),
	}
}

// AdminOnly lets only the configured admin user through.
func AdminOnly(deps Deps) bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			if update.Message == nil || update.Message.From == nil {
				return
			}

			userID := update.Message.From.ID
			if userID != deps.Telegram.AdminUserID {
				log := deps.Logger.With("middleware", "AdminOnly")
				log.WarnContext(ctx, "Unauthorized access attempt", "user_id", userID, "chat_id", update.Message.Chat.ID)
				reply(ctx, b, log, update, deps.Messages.NotAuthorized)
				return
			}

			next(ctx, b, update)
		}
	}
}
