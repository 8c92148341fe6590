package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"telegram-intel/internal/adapters/storage"
	"telegram-intel/internal/auth"
	applog "telegram-intel/internal/log"
	"telegram-intel/internal/pkg/config"
	"telegram-intel/internal/pkg/response"
)

func main() {
	if err := run(); err != nil {
		slog.Error("application run failed", "error", err)
		os.Exit(1)
	}
}

// run запускает сервис регистрации и выдачи токенов.
func run() error {
	cfg, err := config.LoadConfig(os.Getenv("CONFIG_PATH"))
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := applog.New(os.Stdout, cfg.Logging.Level, cfg.Logging.Format, cfg.JWT.Secret)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	store, err := storage.Open(cfg.Database, storage.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Error("Failed to close storage", "error", err)
		}
	}()
	if err := store.Migrate(context.Background()); err != nil {
		return err
	}

	tokens := auth.NewTokenManager(cfg.JWT.Secret, cfg.JWT.TTL)
	service := auth.NewService(store, tokens,
		auth.WithLogger(logger),
		auth.WithSessionDir(cfg.TelegramAPI.SessionDir),
	)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	router.Mount("/api/v1/auth", auth.NewHandler(service, tokens).Routes())

	srv := &http.Server{
		Addr:         cfg.AuthAddress(),
		Handler:      router,
		ReadTimeout:  cfg.AuthServer.ReadTimeout,
		WriteTimeout: cfg.AuthServer.WriteTimeout,
		IdleTimeout:  config.DefaultIdleTimeout,
	}

	serverDone := make(chan struct{})
	go func() {
		defer close(serverDone)
		slog.Info("Starting auth server", "addr", cfg.AuthAddress())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Signal received, shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.AuthServer.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
	<-serverDone

	slog.Info("Application exited gracefully")
	return nil
}
