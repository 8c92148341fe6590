// Package app собирает конвейер сбора из конфигурации. Используется сервером сбора и CLI.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"telegram-intel/internal/adapters/storage"
	"telegram-intel/internal/cache"
	"telegram-intel/internal/core/services"
	"telegram-intel/internal/domain"
	"telegram-intel/internal/pkg/config"
	"telegram-intel/internal/telegram"
)

// OpenStorage открывает хранилище и применяет миграции.
func OpenStorage(ctx context.Context, cfg *config.Config, log *slog.Logger) (*storage.Storage, error) {
	store, err := storage.Open(cfg.Database, storage.WithLogger(log))
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

// NewCollector создает оркестратор со всеми этапами сбора.
// descriptors может быть nil: тогда кэш разрешенных сущностей не используется.
func NewCollector(
	cfg *config.Config,
	store *storage.Storage,
	descriptors *cache.Store[string, domain.EntityDescriptor],
	log *slog.Logger,
	enumOpts ...services.EnumeratorOption,
) (*services.CollectionOrchestrator, error) {
	if err := cfg.ValidateTelegram(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	sessions := telegram.NewSessionProvider(telegram.AppConfig{
		APIID:      cfg.TelegramAPI.APIID,
		APIHash:    cfg.TelegramAPI.APIHash,
		SessionDir: cfg.TelegramAPI.SessionDir,
	}, store, telegram.WithSessionLogger(log))

	retrier := services.NewFloodRetrier(services.RetryConfig{
		MaxRetries: cfg.Collection.MaxFloodRetries,
		MaxWait:    cfg.Collection.MaxFloodWait,
		Pad:        cfg.Collection.FloodWaitPad,
	}, services.WithRetrierLogger(log))

	resolver := services.NewEntityResolver(retrier,
		services.WithResolverLogger(log),
		services.WithKnownChats(store),
	)
	info := services.NewChatInfoFetcher(retrier, log)
	enumerator := services.NewParticipantEnumerator(retrier, services.EnumeratorConfig{
		BatchSize:  cfg.Collection.BatchSize,
		BatchPause: cfg.Collection.BatchPause,
	}, append([]services.EnumeratorOption{services.WithEnumeratorLogger(log)}, enumOpts...)...)

	return services.NewCollectionOrchestrator(sessions, resolver, info, enumerator,
		services.WithOrchestratorLogger(log),
		services.WithRunTimeout(cfg.Collection.RunTimeout),
		services.WithDefaultLimit(cfg.Collection.DefaultLimit),
		services.WithDescriptorCache(descriptors, cfg.Collection.ResolveCacheTTL),
	), nil
}
