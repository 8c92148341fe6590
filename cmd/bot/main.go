package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"telegram-intel/cmd/bot/config"
	"telegram-intel/internal/bot"
	"telegram-intel/internal/log"
)

func main() {
	// Загрузка конфигурации бота
	cfg, err := config.LoadBotConfig("bot_config.yml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load bot config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Bot.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to validate bot config: %v\n", err)
		os.Exit(1)
	}

	// Инициализация логгера с маскировкой токена бота
	logger := log.New(os.Stdout, cfg.Logging.Level, cfg.Logging.Format, cfg.Bot.Token)
	slog.SetDefault(logger)
	if err := tgbotapi.SetLogger(&log.BotAPILogger{Logger: logger}); err != nil {
		slog.Warn("failed to set bot api logger", slog.String("error", err.Error()))
	}

	// Инициализация компонентов
	store := bot.NewChatStore()
	serverClient := bot.NewServerClient(cfg.Bot.BackendURL, time.Duration(cfg.Bot.HTTPTimeoutSeconds)*time.Second)

	b, err := bot.NewBot(cfg.Bot, serverClient, store, logger.With(slog.String("component", "bot")))
	if err != nil {
		slog.Error("failed to create bot", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("Bot created successfully, starting...")

	// Ожидание сигналов для graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		b.Start(ctx)
	}()

	<-ctx.Done()
	slog.Info("Shutting down bot...")
	<-done

	slog.Info("Bot stopped gracefully")
}
