package moderation

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/funnylearn/mascotchat/internal/database"
)

const (
	alertQueueSize = 64
	alertTimeout   = 10 * time.Second
)

// MessageSender sends a Telegram message. *bot.Bot implements it.
type MessageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// Notifier forwards flagged turns to the moderators' chat. NotifyFlagged
// only enqueues; Run delivers. Alerts are dropped when the queue is full.
type Notifier struct {
	sender MessageSender
	chatID int64
	queue  chan database.Turn
	logger *slog.Logger
}

// NewNotifier creates a Notifier sending to chatID.
func NewNotifier(sender MessageSender, chatID int64, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Notifier{
		sender: sender,
		chatID: chatID,
		queue:  make(chan database.Turn, alertQueueSize),
		logger: logger.With("component", "flag_notifier"),
	}
}

// NotifyFlagged queues an alert without blocking.
func (n *Notifier) NotifyFlagged(ctx context.Context, turn database.Turn) {
	select {
	case n.queue <- turn:
	default:
		n.logger.WarnContext(ctx, "Alert queue full, dropping flagged turn alert", "turn_id", turn.ID)
	}
}

// Run delivers queued alerts until ctx is cancelled.
func (n *Notifier) Run(ctx context.Context) error {
	n.logger.Info("Flag notifier started", "chat_id", n.chatID)
	for {
		select {
		case <-ctx.Done():
			n.logger.Info("Flag notifier stopped", "pending", len(n.queue))
			return nil
		case turn := <-n.queue:
			n.send(ctx, turn)
		}
	}
}

func (n *Notifier) send(ctx context.Context, turn database.Turn) {
	sendCtx, cancel := context.WithTimeout(ctx, alertTimeout)
	defer cancel()

	_, err := n.sender.SendMessage(sendCtx, &bot.SendMessageParams{
		ChatID: n.chatID,
		Text:   FormatAlert(turn),
	})
	if err != nil {
		n.logger.ErrorContext(ctx, "Failed to send flagged turn alert", "turn_id", turn.ID, "error", err)
		return
	}
	n.logger.DebugContext(ctx, "Flagged turn alert sent", "turn_id", turn.ID)
}
