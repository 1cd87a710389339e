// Package app runs the long-lived components of the chat service and shuts
// them down together.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	tgbot "github.com/go-telegram/bot"
	"golang.org/x/sync/errgroup"

	"github.com/funnylearn/mascotchat/internal/moderation"
	"github.com/funnylearn/mascotchat/internal/scheduler"
)

const shutdownTimeout = 10 * time.Second

// App owns the HTTP server, the scheduler and the optional moderation bot.
type App struct {
	logger    *slog.Logger
	server    *http.Server
	scheduler *scheduler.Scheduler
	tgBot     *tgbot.Bot
	notifier  *moderation.Notifier
}

// Option configures optional components.
type Option func(*App)

// WithModeration runs the Telegram moderation bot and its alert notifier.
// Either may be nil.
func WithModeration(b *tgbot.Bot, n *moderation.Notifier) Option {
	return func(a *App) {
		a.tgBot = b
		a.notifier = n
	}
}

// New creates an App.
func New(logger *slog.Logger, server *http.Server, sched *scheduler.Scheduler, opts ...Option) *App {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	a := &App{
		logger:    logger.With("component", "app"),
		server:    server,
		scheduler: sched,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run starts every component and blocks until ctx is cancelled or one of
// them fails.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("Starting application...")

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("Starting HTTP server", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		a.logger.Info("HTTP server stopped.")
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		a.logger.Info("Shutdown signal received, stopping HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("Error shutting down HTTP server", "error", err)
		}
		return nil
	})

	if a.scheduler != nil {
		g.Go(func() error {
			a.logger.Info("Starting scheduler...")
			if err := a.scheduler.Start(); err != nil {
				a.logger.Error("Failed to start scheduler", "error", err)
				return fmt.Errorf("failed to start scheduler: %w", err)
			}

			<-gCtx.Done()
			a.logger.Info("Shutdown signal received, stopping scheduler...")

			if err := a.scheduler.Stop(); err != nil {
				a.logger.Error("Error stopping scheduler", "error", err)
			}
			return nil
		})
	}

	if a.notifier != nil {
		g.Go(func() error {
			return a.notifier.Run(gCtx)
		})
	}

	if a.tgBot != nil {
		g.Go(func() error {
			a.logger.Info("Starting Telegram moderation bot...")

			a.tgBot.Start(gCtx)
			a.logger.Info("Telegram moderation bot stopped.")

			if gCtx.Err() == nil {
				a.logger.Warn("Telegram bot stopped unexpectedly without context cancellation.")
				return fmt.Errorf("telegram listener stopped unexpectedly")
			}
			return nil
		})
	}

	a.logger.Info("Application running. Waiting for shutdown signal or error...")
	err := g.Wait()

	if err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Error("Application stopped due to error", "error", err)
		return err
	}

	a.logger.Info("Application stopped gracefully.")
	return nil
}
