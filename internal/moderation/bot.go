// Package moderation is the Telegram side of conversation review: it alerts
// moderators about flagged turns and lets the admin list, flag and unflag
// conversation logs.
package moderation

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/funnylearn/mascotchat/internal/config"
	"github.com/funnylearn/mascotchat/internal/database"
)

// Store is the persistence the moderation commands need.
type Store interface {
	ListTurns(ctx context.Context, filter database.TurnFilter) ([]database.Turn, int, error)
	SetTurnFlag(ctx context.Context, id string, flagged bool, reason string) error
	GetStats(ctx context.Context) (*database.Stats, error)
}

// Deps provides dependencies for command handlers.
type Deps struct {
	Logger   *slog.Logger
	Telegram config.TelegramConfig
	Messages config.MessagesConfig
	Store    Store
}

// commandTimeout bounds the store work done by one command.
const commandTimeout = 15 * time.Second

// NewTelegramBot creates a bot instance using the go-telegram/bot library.
func NewTelegramBot(token string, logger *slog.Logger, opts ...bot.Option) (*bot.Bot, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram bot token cannot be empty")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	log := logger.With("component", "telegram_bot")

	b, err := bot.New(token, opts...)
	if err != nil {
		log.Error("Failed to create Telegram bot instance", "error", err)
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	prefix := token
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	log.Info("Telegram bot instance created successfully", "token_prefix", prefix+"...")
	return b, nil
}

// applyMiddleware wraps handler so the first middleware in mw is the outermost.
func applyMiddleware(handler bot.HandlerFunc, mw []bot.Middleware) bot.HandlerFunc {
	for i := len(mw) - 1; i >= 0; i-- {
		handler = mw[i](handler)
	}
	return handler
}

// RegisterHandlers registers every command with the bot, wrapped in its middleware.
func RegisterHandlers(b *bot.Bot, logger *slog.Logger, registered map[string]RegisteredHandler) error {
	if b == nil {
		return fmt.Errorf("bot instance cannot be nil")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	log := logger.With("component", "handler_registry")

	if len(registered) == 0 {
		log.Warn("No handlers provided for registration.")
		return nil
	}

	for _, h := range registered {
		if h.Handler == nil {
			log.Warn("Skipping registration for nil handler", "pattern", h.Pattern)
			continue
		}
		b.RegisterHandler(h.HandlerType, h.Pattern, h.MatchType, applyMiddleware(h.Handler, h.Middleware))
		log.Debug("Registered handler", "pattern", h.Pattern, "middleware_count", len(h.Middleware))
	}

	log.Info("Registered Telegram handlers successfully", "count", len(registered))
	return nil
}

// reply sends text to the chat of update, logging failures.
func reply(ctx context.Context, b *bot.Bot, log *slog.Logger, update *models.Update, text string) {
	chatID := update.Message.Chat.ID
	if _, err := b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text}); err != nil {
		log.ErrorContext(ctx, "Failed to send reply", "error", err, "chat_id", chatID)
	}
}
