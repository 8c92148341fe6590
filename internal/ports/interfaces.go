package ports

import (
	"context"

	"github.com/google/uuid"

	"telegram-intel/internal/domain"
)

// ChatLookup - точечный поиск сохраненного чата по его Telegram ID.
// Возвращает nil без ошибки, если чат не найден.
type ChatLookup interface {
	GetChatByRemoteID(ctx context.Context, remoteID int64) (*domain.ChatRecord, error)
}

// EntityResolver отображает ссылку на каноническое описание сущности.
type EntityResolver interface {
	Resolve(ctx context.Context, api TelegramAPI, ref domain.RemoteEntityRef) (domain.EntityDescriptor, error)
}

// ChatInfoFetcher извлекает атрибуты чата и расширенные метаданные.
type ChatInfoFetcher interface {
	FetchInfo(ctx context.Context, api TelegramAPI, d domain.EntityDescriptor) (*domain.ChatSnapshot, error)
}

// ParticipantEnumerator постранично перечисляет участников чата.
// limit = 0 означает "без ограничений".
type ParticipantEnumerator interface {
	Enumerate(ctx context.Context, api TelegramAPI, d domain.EntityDescriptor, limit int) ([]domain.ParticipantRecord, error)
}

// Collector выполняет один прогон сбора данных.
// limit = 0 означает лимит участников по умолчанию.
type Collector interface {
	Run(ctx context.Context, principalID uuid.UUID, ref domain.RemoteEntityRef, limit int) domain.CollectionResult
}

// ReservedRun выполняет прогон в заранее занятом слоте принципала и освобождает слот.
// Вызывается ровно один раз.
type ReservedRun func(ctx context.Context, ref domain.RemoteEntityRef, limit int) (domain.CollectionOutcome, error)

// RunLocks сериализует прогоны сбора одного принципала.
// TryAcquire возвращает false, если прогон для принципала уже выполняется.
type RunLocks interface {
	TryAcquire(principalID uuid.UUID) (release func(), ok bool)
}

// ProgressFunc получает число собранных участников и общее число, сообщенное сервером (0, если неизвестно).
type ProgressFunc func(collected, total int)

// ChatRepository хранит целевые чаты.
type ChatRepository interface {
	ChatLookup
	UpsertChat(ctx context.Context, snapshot domain.ChatSnapshot, owner uuid.UUID, status domain.ChatStatus) (*domain.ChatRecord, error)
	UpdateChatStatus(ctx context.Context, remoteID int64, status domain.ChatStatus) (*domain.ChatRecord, error)
}

// UserRepository хранит пользователей Telegram.
type UserRepository interface {
	UpsertUsers(ctx context.Context, records []domain.ParticipantRecord, discoveredBy uuid.UUID) ([]domain.TelegramUser, error)
}

// MembershipRepository хранит связи "участник - чат".
type MembershipRepository interface {
	UpsertMembership(ctx context.Context, chatRemoteID int64, records []domain.ParticipantRecord) (int64, error)
}

// Datastore объединяет все операции записи, нужные сборщику.
// Каждая операция атомарна сама по себе; общей транзакции на прогон нет.
type Datastore interface {
	ChatRepository
	UserRepository
	MembershipRepository
}

// MemberReader читает сохраненных участников чата постранично.
type MemberReader interface {
	ListChatMembers(ctx context.Context, chatRemoteID int64, offset, limit int) ([]domain.ChatMember, int64, error)
}

// PrincipalRepository хранит пользователей приложения.
type PrincipalRepository interface {
	CreateAppUser(ctx context.Context, email, passwordHash string) (*domain.AppUser, error)
	GetAppUser(ctx context.Context, id uuid.UUID) (*domain.AppUser, error)
	GetAppUserByEmail(ctx context.Context, email string) (*domain.AppUser, error)
	BindSessionFile(ctx context.Context, id uuid.UUID, sessionFile string) (*domain.AppUser, error)
}

// DataSource определяет интерфейс для получения сырых данных (например, списка целей из файла).
type DataSource interface {
	Fetch() ([]byte, error)
}

// TargetParser разбирает сырые данные в список ссылок на чаты.
type TargetParser interface {
	Parse(data []byte) ([]domain.RemoteEntityRef, error)
}

// OutcomeExporter выводит итог прогона сбора по одной цели.
type OutcomeExporter interface {
	Export(target string, outcome domain.CollectionOutcome, runErr error) error
}
