package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"telegram-intel/internal/domain"
	"telegram-intel/internal/ports"
)

// tdlibChannelOffset - смещение, которым помечаются ID каналов вида -100….
const tdlibChannelOffset = 1_000_000_000_000

// CollectChatUseCase реализует граничную операцию запуска сбора:
// прогон оркестратора и сохранение результата.
type CollectChatUseCase struct {
	collector ports.Collector
	store     ports.Datastore
	locks     ports.RunLocks
	log       *slog.Logger
}

// Option - функциональная опция для CollectChatUseCase.
type Option func(*CollectChatUseCase)

// WithLogger устанавливает логгер.
func WithLogger(l *slog.Logger) Option {
	return func(uc *CollectChatUseCase) {
		if l != nil {
			uc.log = l
		}
	}
}

// NewCollectChatUseCase создает новый экземпляр CollectChatUseCase.
func NewCollectChatUseCase(collector ports.Collector, store ports.Datastore, locks ports.RunLocks, opts ...Option) *CollectChatUseCase {
	uc := &CollectChatUseCase{
		collector: collector,
		store:     store,
		locks:     locks,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// TriggerCollection собирает данные чата от имени принципала и сохраняет их.
//
// Всегда возвращает заполненный CollectionOutcome. Ошибка возвращается, если
// для принципала уже идет прогон (domain.ErrRunInProgress) или если не удалось
// сохранить данные; уже сохраненные строки при этом не откатываются.
func (uc *CollectChatUseCase) TriggerCollection(ctx context.Context, principalID uuid.UUID, ref domain.RemoteEntityRef, limit int) (domain.CollectionOutcome, error) {
	run, ok := uc.Reserve(principalID)
	if !ok {
		uc.log.WarnContext(ctx, "Collection already in progress for principal", "principal_id", principalID, "ref", ref.String())
		return domain.CollectionOutcome{
			Message: "Сбор данных для этого пользователя уже выполняется, повторите запрос позже.",
		}, domain.ErrRunInProgress
	}
	return run(ctx, ref, limit)
}

// Reserve занимает слот прогона принципала сразу, а сам прогон откладывает.
// Возвращает false, если слот занят. Полученный ReservedRun нужно вызвать,
// иначе слот останется занятым.
func (uc *CollectChatUseCase) Reserve(principalID uuid.UUID) (ports.ReservedRun, bool) {
	release, ok := uc.locks.TryAcquire(principalID)
	if !ok {
		return nil, false
	}
	return func(ctx context.Context, ref domain.RemoteEntityRef, limit int) (domain.CollectionOutcome, error) {
		defer release()
		return uc.collect(ctx, principalID, ref, limit)
	}, true
}

func (uc *CollectChatUseCase) collect(ctx context.Context, principalID uuid.UUID, ref domain.RemoteEntityRef, limit int) (domain.CollectionOutcome, error) {
	log := uc.log.With("principal_id", principalID, "ref", ref.String())
	out := &outcomeBuilder{}

	var known *domain.ChatRecord
	if ref.Kind == domain.RefNumericID {
		known = uc.markKnownCollecting(ctx, log, ref.ID)
	}

	res := uc.collector.Run(ctx, principalID, ref, limit)

	var chat *domain.ChatRecord
	if res.Chat != nil {
		out.chatID = &res.Chat.ID
		rec, err := uc.store.UpsertChat(ctx, *res.Chat, principalID, domain.ChatStatusCollecting)
		if err != nil {
			log.ErrorContext(ctx, "Failed to save target chat", "chat_id", res.Chat.ID, "error", err)
			out.reset(fmt.Sprintf("Не удалось сохранить информацию о чате '%s'.", ref))
			uc.markFailed(ctx, log, known, out)
			return out.build(), fmt.Errorf("upsert chat %d: %w", res.Chat.ID, err)
		}
		chat = rec
		out.setStatus(rec.Status)
		out.reset(fmt.Sprintf("Информация о чате '%s' (ID: %d) сохранена.", titleOr(rec.Title, ref.String()), rec.RemoteID))
	} else {
		if known != nil {
			chat = known
			out.chatID = &known.RemoteID
			out.setStatus(known.Status)
		}
		out.reset(fmt.Sprintf("Не удалось получить информацию о чате '%s' из Telegram%s.", ref, reason(res.Err)))
	}

	if res.ParticipantsCollected && len(res.Participants) > 0 {
		if out.chatID == nil {
			log.WarnContext(ctx, "Participants collected but chat id is unknown", "count", len(res.Participants))
			out.add("Участники не сохранены: ID чата неизвестен.")
		} else if err := uc.saveParticipants(ctx, log, principalID, *out.chatID, res.Participants, out); err != nil {
			uc.markFailed(ctx, log, chat, out)
			return out.build(), err
		}
	}

	final := domain.ChatStatusCollected
	if res.Empty() {
		final = domain.ChatStatusError
	}
	if chat != nil {
		rec, err := uc.store.UpdateChatStatus(ctx, chat.RemoteID, final)
		if err != nil {
			log.ErrorContext(ctx, "Failed to update final chat status", "chat_id", chat.RemoteID, "status", final, "error", err)
			return out.build(), fmt.Errorf("update status of chat %d: %w", chat.RemoteID, err)
		}
		if rec != nil {
			out.setStatus(rec.Status)
		}
	}

	log.InfoContext(ctx, "Collection finished", "status", final, "participants", len(res.Participants))
	return out.build(), nil
}

func (uc *CollectChatUseCase) saveParticipants(ctx context.Context, log *slog.Logger, principalID uuid.UUID, chatID int64, records []domain.ParticipantRecord, out *outcomeBuilder) error {
	if _, err := uc.store.UpsertUsers(ctx, records, principalID); err != nil {
		log.ErrorContext(ctx, "Failed to upsert users", "chat_id", chatID, "error", err)
		out.add("Ошибка при сохранении пользователей.")
		return fmt.Errorf("upsert users of chat %d: %w", chatID, err)
	}

	n, err := uc.store.UpsertMembership(ctx, chatID, records)
	if err != nil {
		log.ErrorContext(ctx, "Failed to upsert memberships", "chat_id", chatID, "error", err)
		out.add("Ошибка при сохранении связей участников с чатом.")
		return fmt.Errorf("upsert memberships of chat %d: %w", chatID, err)
	}

	log.InfoContext(ctx, "Participants saved", "chat_id", chatID, "users", len(records), "memberships", n)
	out.add(fmt.Sprintf("Сохранено участников: %d.", len(records)))
	return nil
}

// markFailed завершает прогон статусом error после ошибки сохранения.
// Ошибка обновления статуса только логируется: вызывающий уже получает исходную.
func (uc *CollectChatUseCase) markFailed(ctx context.Context, log *slog.Logger, chat *domain.ChatRecord, out *outcomeBuilder) {
	if chat == nil {
		return
	}
	rec, err := uc.store.UpdateChatStatus(ctx, chat.RemoteID, domain.ChatStatusError)
	if err != nil {
		log.WarnContext(ctx, "Failed to mark chat as failed", "chat_id", chat.RemoteID, "error", err)
		return
	}
	if rec != nil {
		out.setStatus(rec.Status)
	}
}

// markKnownCollecting переводит ранее сохраненный чат в статус collecting.
func (uc *CollectChatUseCase) markKnownCollecting(ctx context.Context, log *slog.Logger, id int64) *domain.ChatRecord {
	if id <= -tdlibChannelOffset {
		id = -id - tdlibChannelOffset
	} else if id < 0 {
		id = -id
	}

	rec, err := uc.store.GetChatByRemoteID(ctx, id)
	if err != nil {
		log.WarnContext(ctx, "Failed to look up known chat", "chat_id", id, "error", err)
		return nil
	}
	if rec == nil {
		return nil
	}

	updated, err := uc.store.UpdateChatStatus(ctx, id, domain.ChatStatusCollecting)
	if err != nil {
		log.WarnContext(ctx, "Failed to mark chat as collecting", "chat_id", id, "error", err)
		return rec
	}
	if updated == nil {
		return rec
	}
	return updated
}

type outcomeBuilder struct {
	parts  []string
	chatID *int64
	status *domain.ChatStatus
}

func (b *outcomeBuilder) add(s string) { b.parts = append(b.parts, s) }

func (b *outcomeBuilder) reset(s string) { b.parts = []string{s} }

func (b *outcomeBuilder) setStatus(s domain.ChatStatus) { b.status = &s }

func (b *outcomeBuilder) build() domain.CollectionOutcome {
	return domain.CollectionOutcome{
		Message: strings.Join(b.parts, " "),
		ChatID:  b.chatID,
		Status:  b.status,
	}
}

func titleOr(title, fallback string) string {
	if title != "" {
		return title
	}
	return fallback
}

// reason кратко поясняет пользователю, почему данные не получены.
func reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, domain.ErrNoSession):
		return ": сессия Telegram не привязана"
	case errors.Is(err, domain.ErrNotAuthorized):
		return ": сессия Telegram не авторизована"
	case errors.Is(err, domain.ErrChallengeRequired):
		return ": сессия требует пароль двухфакторной аутентификации"
	case errors.Is(err, domain.ErrTransientConnect):
		return ": не удалось подключиться к Telegram"
	case errors.Is(err, domain.ErrNotFound):
		return ": чат не найден"
	case errors.Is(err, domain.ErrAccessDenied):
		return ": нет доступа к чату"
	case errors.Is(err, domain.ErrInvalidRef):
		return ": некорректная ссылка"
	case errors.Is(err, domain.ErrUnsupportedPeer):
		return ": ссылка указывает не на группу или канал"
	case errors.Is(err, domain.ErrRateLimited):
		return ": превышен лимит запросов"
	case errors.Is(err, context.DeadlineExceeded):
		return ": истекло время ожидания"
	default:
		return ""
	}
}
