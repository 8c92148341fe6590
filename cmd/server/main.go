package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"telegram-intel/internal/app"
	"telegram-intel/internal/auth"
	"telegram-intel/internal/cache"
	"telegram-intel/internal/domain"
	applog "telegram-intel/internal/log"
	"telegram-intel/internal/pkg/config"
	"telegram-intel/internal/server"
	"telegram-intel/internal/server/usecase"
)

func main() {
	if err := run(); err != nil {
		slog.Error("application run failed", "error", err)
		os.Exit(1)
	}
}

// run инкапсулирует всю логику инициализации и запуска сервиса сбора.
func run() error {
	// 1. Загрузка конфигурации
	cfg, err := config.LoadConfig(os.Getenv("CONFIG_PATH"))
	if err != nil {
		// Логгер еще не инициализирован, выводим в stderr
		_, _ = fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Инициализация логгера
	logger := applog.New(os.Stdout, cfg.Logging.Level, cfg.Logging.Format, cfg.TelegramAPI.APIHash, cfg.JWT.Secret)
	slog.SetDefault(logger)

	// 3. Валидация конфигурации (после инициализации логгера)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	appCtx, appCancel := context.WithCancel(context.Background())
	defer appCancel()

	// 4. Инициализация зависимостей
	store, err := app.OpenStorage(appCtx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Error("Failed to close storage", "error", err)
		}
	}()

	descriptors := cache.NewStore[string, domain.EntityDescriptor]()
	descriptors.StartCleanupTicker(appCtx, config.DefaultCleanupInterval)

	collector, err := app.NewCollector(cfg, store, descriptors, logger)
	if err != nil {
		return err
	}

	runStore := server.NewRunStore()
	trigger := usecase.NewCollectChatUseCase(collector, store, runStore, usecase.WithLogger(logger))
	tokens := auth.NewTokenManager(cfg.JWT.Secret, cfg.JWT.TTL)

	// 5. Создание HTTP-сервера
	srv, err := server.New(cfg, trigger, runStore, tokens,
		server.WithLogger(logger),
		server.WithMembers(store),
	)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	// 6. Запуск сервера и graceful shutdown
	serverDone := make(chan struct{})
	go func() {
		defer close(serverDone)
		slog.Info("Starting collector server", "addr", cfg.Address())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Signal received, shutting down...")

	// Сначала останавливаем HTTP-сервер: он дожидается фоновых прогонов
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	<-serverDone
	slog.Info("HTTP server stopped")

	// Затем отменяем контекст приложения, чтобы остановить тикеры очистки
	appCancel()

	slog.Info("Application exited gracefully")
	return nil
}
