package ports

import (
	"context"

	"github.com/google/uuid"
	"github.com/gotd/td/tg"
)

// TelegramAPI - подмножество методов протокола, которые использует сборщик.
// *tg.Client удовлетворяет этому интерфейсу.
type TelegramAPI interface {
	ContactsResolveUsername(ctx context.Context, req *tg.ContactsResolveUsernameRequest) (*tg.ContactsResolvedPeer, error)
	MessagesCheckChatInvite(ctx context.Context, hash string) (tg.ChatInviteClass, error)
	MessagesGetChats(ctx context.Context, id []int64) (tg.MessagesChatsClass, error)
	ChannelsGetChannels(ctx context.Context, id []tg.InputChannelClass) (tg.MessagesChatsClass, error)
	ChannelsGetFullChannel(ctx context.Context, channel tg.InputChannelClass) (*tg.MessagesChatFull, error)
	MessagesGetFullChat(ctx context.Context, chatID int64) (*tg.MessagesChatFull, error)
	ChannelsGetParticipants(ctx context.Context, req *tg.ChannelsGetParticipantsRequest) (tg.ChannelsChannelParticipantsClass, error)
}

// SessionFunc выполняется, пока клиент подключен и авторизован.
type SessionFunc func(ctx context.Context, api TelegramAPI) error

// SessionProvider выдает подключенного клиента на время выполнения fn
// и гарантированно отключает его на любом пути выхода.
type SessionProvider interface {
	WithSession(ctx context.Context, principalID uuid.UUID, fn SessionFunc) error
}

// SessionStore возвращает непрозрачный дескриптор сессии принципала.
// Пустая строка без ошибки означает, что сессия не привязана.
type SessionStore interface {
	GetSessionHandle(ctx context.Context, principalID uuid.UUID) (string, error)
}
