// Package main contains the entrypoint for the mascot chat service.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbot "github.com/go-telegram/bot"

	"github.com/funnylearn/mascotchat/internal/api"
	"github.com/funnylearn/mascotchat/internal/app"
	"github.com/funnylearn/mascotchat/internal/auditlog"
	"github.com/funnylearn/mascotchat/internal/cache"
	"github.com/funnylearn/mascotchat/internal/chat"
	"github.com/funnylearn/mascotchat/internal/config"
	"github.com/funnylearn/mascotchat/internal/database"
	"github.com/funnylearn/mascotchat/internal/gemini"
	"github.com/funnylearn/mascotchat/internal/logger"
	"github.com/funnylearn/mascotchat/internal/metrics"
	"github.com/funnylearn/mascotchat/internal/moderation"
	"github.com/funnylearn/mascotchat/internal/scheduler"
	"github.com/funnylearn/mascotchat/internal/scheduler/tasks"

	_ "modernc.org/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run wires every component, blocks until shutdown and returns the exit code.
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Logger.Level, cfg.Logger.JSON)
	slog.SetDefault(log)
	log.Info("Logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON)

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Error("Failed to connect to database", "path", cfg.Database.Path, "error", err)
		return 1
	}
	defer database.CloseDB(db)
	store := database.NewStore(db, log)

	m := metrics.New()

	var (
		tg       *tgbot.Bot
		notifier *moderation.Notifier
		flagSink auditlog.FlagNotifier
	)
	if cfg.Telegram.Token != "" {
		tg, err = moderation.NewTelegramBot(cfg.Telegram.Token, log,
			tgbot.WithMiddlewares(logger.TelegramMiddleware(log)),
		)
		if err != nil {
			log.Error("Failed to create Telegram bot", "error", err)
			return 1
		}

		mDeps := moderation.Deps{
			Logger:   log,
			Telegram: cfg.Telegram,
			Messages: cfg.Messages,
			Store:    store,
		}
		if err := moderation.RegisterHandlers(tg, log, moderation.RegisterAllCommands(mDeps)); err != nil {
			log.Error("Failed to register Telegram handlers", "error", err)
			return 1
		}

		if cfg.Telegram.AlertChatID != 0 {
			notifier = moderation.NewNotifier(tg, cfg.Telegram.AlertChatID, log)
			flagSink = notifier
		}
	} else {
		log.Info("Telegram token not set, moderation bot disabled")
	}

	writer := auditlog.NewWriter(store, m, flagSink, log)

	var counter chat.TurnCounter = writer
	if cfg.Redis.Addr != "" {
		rc, err := cache.NewClient(ctx, cache.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Error("Failed to connect to Redis", "addr", cfg.Redis.Addr, "error", err)
			return 1
		}
		defer func() { _ = rc.Close() }()
		counter = cache.NewQuotaCounter(rc, writer, cfg.Redis.QuotaTTL, log)
		log.Info("Quota cache enabled", "addr", cfg.Redis.Addr)
	}

	var model gemini.Client
	if cfg.GeminiConfigured() {
		model, err = gemini.NewClient(ctx, cfg.Gemini, log)
		if err != nil {
			log.Error("Failed to initialize Gemini client", "error", err)
			return 1
		}
	}

	chatService, err := chat.NewService(cfg.Chat, chat.Deps{
		Profiles: store,
		TurnLog:  writer,
		Counter:  counter,
		Model:    model,
		Metrics:  m,
		Logger:   log,
	})
	if err != nil {
		log.Error("Failed to create chat service", "error", err)
		return 1
	}

	handler := api.NewHandler(chatService, store, m, cfg.HTTP.AdminToken, log)
	server := api.NewServer(cfg.HTTP, api.NewRouter(handler, log))

	tDeps := tasks.TaskDeps{
		Logger:        log,
		Store:         store,
		RetentionDays: cfg.Database.RetentionDays,
	}
	sched, err := scheduler.NewScheduler(log, cfg.Scheduler, tasks.RegisterAllTasks(tDeps))
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}

	application := app.New(log, server, sched, app.WithModeration(tg, notifier))

	log.Info("Starting mascot chat service...")
	runErr := application.Run(ctx)
	log.Info("Run loop finished. Initiating shutdown...")

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Service stopped due to error", "error", runErr)
		time.Sleep(time.Second)
		return 1
	}

	log.Info("Service stopped gracefully.")
	time.Sleep(time.Second)
	return 0
}
