package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"telegram-intel/internal/cache"
	"telegram-intel/internal/domain"
	"telegram-intel/internal/ports"
)

// OrchestratorConfig хранит параметры прогона.
type OrchestratorConfig struct {
	// RunTimeout ограничивает прогон целиком, включая все ожидания FLOOD_WAIT.
	RunTimeout time.Duration
	// DefaultLimit применяется, когда вызывающий не задал лимит участников (0 - без ограничения).
	DefaultLimit int
}

// CollectionOrchestrator последовательно выполняет этапы сбора в рамках одной сессии.
type CollectionOrchestrator struct {
	sessions     ports.SessionProvider
	resolver     ports.EntityResolver
	info         ports.ChatInfoFetcher
	participants ports.ParticipantEnumerator
	config       OrchestratorConfig
	log          *slog.Logger

	// descriptors кэширует разрешенные сущности; ключ включает принципала,
	// так как access_hash действителен только для аккаунта, который его получил.
	descriptors *cache.Store[string, domain.EntityDescriptor]
	cacheTTL    time.Duration
}

var _ ports.Collector = (*CollectionOrchestrator)(nil)

// OrchestratorOption - функциональная опция для CollectionOrchestrator.
type OrchestratorOption func(*CollectionOrchestrator)

// WithOrchestratorLogger устанавливает логгер.
func WithOrchestratorLogger(l *slog.Logger) OrchestratorOption {
	return func(o *CollectionOrchestrator) {
		if l != nil {
			o.log = l
		}
	}
}

// WithRunTimeout устанавливает дедлайн прогона.
func WithRunTimeout(d time.Duration) OrchestratorOption {
	return func(o *CollectionOrchestrator) {
		o.config.RunTimeout = d
	}
}

// WithDefaultLimit устанавливает лимит участников по умолчанию.
func WithDefaultLimit(n int) OrchestratorOption {
	return func(o *CollectionOrchestrator) {
		if n >= 0 {
			o.config.DefaultLimit = n
		}
	}
}

// WithDescriptorCache включает кэш разрешенных сущностей. ttl <= 0 выключает кэш.
func WithDescriptorCache(store *cache.Store[string, domain.EntityDescriptor], ttl time.Duration) OrchestratorOption {
	return func(o *CollectionOrchestrator) {
		if store != nil && ttl > 0 {
			o.descriptors = store
			o.cacheTTL = ttl
		}
	}
}

// NewCollectionOrchestrator создает CollectionOrchestrator.
func NewCollectionOrchestrator(
	sessions ports.SessionProvider,
	resolver ports.EntityResolver,
	info ports.ChatInfoFetcher,
	participants ports.ParticipantEnumerator,
	opts ...OrchestratorOption,
) *CollectionOrchestrator {
	o := &CollectionOrchestrator{
		sessions:     sessions,
		resolver:     resolver,
		info:         info,
		participants: participants,
		config: OrchestratorConfig{
			RunTimeout: 10 * time.Minute,
		},
		log: slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run выполняет один прогон сбора. Ошибки этапов не прерывают вызывающего:
// они отражаются в результате отсутствием данных и полем Err.
func (o *CollectionOrchestrator) Run(ctx context.Context, principalID uuid.UUID, ref domain.RemoteEntityRef, limit int) domain.CollectionResult {
	if limit <= 0 {
		limit = o.config.DefaultLimit
	}
	log := o.log.With("principal_id", principalID, "ref", ref.String(), "run_id", uuid.NewString())

	runCtx := ctx
	if o.config.RunTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, o.config.RunTimeout)
		defer cancel()
	}

	start := time.Now()
	log.InfoContext(ctx, "Starting collection run", "limit", limit)

	var res domain.CollectionResult
	err := o.sessions.WithSession(runCtx, principalID, func(ctx context.Context, api ports.TelegramAPI) error {
		d, err := o.resolve(ctx, api, principalID, ref, log)
		if err != nil {
			res.Err = err
			return nil
		}
		res.Descriptor = &d

		snap, err := o.info.FetchInfo(ctx, api, d)
		if err != nil {
			log.WarnContext(ctx, "Chat info unavailable, continuing with participants", "error", err)
			o.forget(principalID, ref, err)
			res.Err = err
		} else {
			res.Chat = snap
		}

		records, err := o.participants.Enumerate(ctx, api, d, limit)
		if err != nil {
			log.WarnContext(ctx, "Participants unavailable", "error", err)
			o.forget(principalID, ref, err)
			if res.Err == nil {
				res.Err = err
			}
			return nil
		}
		res.Participants = records
		res.ParticipantsCollected = true
		return nil
	})
	if err != nil {
		log.ErrorContext(ctx, "Collection run aborted", "error", err)
		res.Err = err
	}

	log.InfoContext(ctx, "Collection run finished",
		"duration", time.Since(start),
		"chat", res.Chat != nil,
		"participants", len(res.Participants),
		"participants_collected", res.ParticipantsCollected,
	)
	return res
}

func descriptorKey(principalID uuid.UUID, ref domain.RemoteEntityRef) string {
	return principalID.String() + "|" + ref.String()
}

// resolve разрешает ссылку, обращаясь к кэшу перед сетевым вызовом.
func (o *CollectionOrchestrator) resolve(ctx context.Context, api ports.TelegramAPI, principalID uuid.UUID, ref domain.RemoteEntityRef, log *slog.Logger) (domain.EntityDescriptor, error) {
	if o.descriptors == nil {
		return o.resolver.Resolve(ctx, api, ref)
	}

	key := descriptorKey(principalID, ref)
	if d, ok := o.descriptors.Get(key); ok {
		log.DebugContext(ctx, "Descriptor cache hit", "chat_id", d.ID)
		return d, nil
	}

	d, err := o.resolver.Resolve(ctx, api, ref)
	if err != nil {
		return d, err
	}
	o.descriptors.Put(key, d, o.cacheTTL)
	return d, nil
}

// forget удаляет запись кэша, если удаленная сторона отвергла сущность.
func (o *CollectionOrchestrator) forget(principalID uuid.UUID, ref domain.RemoteEntityRef, err error) {
	if o.descriptors != nil && domain.IsResolutionError(err) {
		o.descriptors.Delete(descriptorKey(principalID, ref))
	}
}
