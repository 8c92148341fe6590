package telegram

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gotd/td/tg"

	"telegram-intel/internal/ports"
)

// Client оборачивает сырые методы API: логирует вызовы и запоминает
// последний полученный FLOOD_WAIT, чтобы не отправлять запросы до его окончания.
type Client struct {
	id    string
	api   ports.TelegramAPI
	clock func() time.Time
	log   *slog.Logger

	mu             sync.RWMutex
	unhealthyUntil time.Time
}

var _ ports.TelegramAPI = (*Client)(nil)

// ClientOption определяет функциональную опцию для конфигурации клиента.
type ClientOption func(*Client)

// WithLogger устанавливает логгер для клиента.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// WithClock подменяет источник времени (используется в тестах).
func WithClock(clock func() time.Time) ClientOption {
	return func(c *Client) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// NewClient создает обертку над api.
func NewClient(api ports.TelegramAPI, opts ...ClientOption) *Client {
	c := &Client{
		id:    uuid.NewString(),
		api:   api,
		clock: time.Now,
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With("client_id", c.id)
	return c
}

// ID возвращает уникальный идентификатор клиента.
func (c *Client) ID() string {
	return c.id
}

// ContactsResolveUsername выполняет запрос ContactsResolveUsername.
func (c *Client) ContactsResolveUsername(ctx context.Context, req *tg.ContactsResolveUsernameRequest) (*tg.ContactsResolvedPeer, error) {
	return call(ctx, c, "ContactsResolveUsername", []any{"username", req.Username}, func(ctx context.Context) (*tg.ContactsResolvedPeer, error) {
		return c.api.ContactsResolveUsername(ctx, req)
	})
}

// MessagesCheckChatInvite выполняет запрос MessagesCheckChatInvite.
func (c *Client) MessagesCheckChatInvite(ctx context.Context, hash string) (tg.ChatInviteClass, error) {
	return call(ctx, c, "MessagesCheckChatInvite", nil, func(ctx context.Context) (tg.ChatInviteClass, error) {
		return c.api.MessagesCheckChatInvite(ctx, hash)
	})
}

// MessagesGetChats выполняет запрос MessagesGetChats.
func (c *Client) MessagesGetChats(ctx context.Context, id []int64) (tg.MessagesChatsClass, error) {
	return call(ctx, c, "MessagesGetChats", []any{"ids", id}, func(ctx context.Context) (tg.MessagesChatsClass, error) {
		return c.api.MessagesGetChats(ctx, id)
	})
}

// ChannelsGetChannels выполняет запрос ChannelsGetChannels.
func (c *Client) ChannelsGetChannels(ctx context.Context, id []tg.InputChannelClass) (tg.MessagesChatsClass, error) {
	return call(ctx, c, "ChannelsGetChannels", nil, func(ctx context.Context) (tg.MessagesChatsClass, error) {
		return c.api.ChannelsGetChannels(ctx, id)
	})
}

// ChannelsGetFullChannel выполняет запрос ChannelsGetFullChannel.
func (c *Client) ChannelsGetFullChannel(ctx context.Context, channel tg.InputChannelClass) (*tg.MessagesChatFull, error) {
	return call(ctx, c, "ChannelsGetFullChannel", nil, func(ctx context.Context) (*tg.MessagesChatFull, error) {
		return c.api.ChannelsGetFullChannel(ctx, channel)
	})
}

// MessagesGetFullChat выполняет запрос MessagesGetFullChat.
func (c *Client) MessagesGetFullChat(ctx context.Context, chatID int64) (*tg.MessagesChatFull, error) {
	return call(ctx, c, "MessagesGetFullChat", []any{"chat_id", chatID}, func(ctx context.Context) (*tg.MessagesChatFull, error) {
		return c.api.MessagesGetFullChat(ctx, chatID)
	})
}

// ChannelsGetParticipants выполняет запрос ChannelsGetParticipants.
func (c *Client) ChannelsGetParticipants(ctx context.Context, req *tg.ChannelsGetParticipantsRequest) (tg.ChannelsChannelParticipantsClass, error) {
	return call(ctx, c, "ChannelsGetParticipants", []any{"offset", req.Offset, "limit", req.Limit}, func(ctx context.Context) (tg.ChannelsChannelParticipantsClass, error) {
		return c.api.ChannelsGetParticipants(ctx, req)
	})
}

// call - общий путь выполнения запроса: проверка FLOOD_WAIT, вызов, логирование и учет ошибок.
func call[T any](ctx context.Context, c *Client, method string, attrs []any, f func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := c.checkHealthStatus(); err != nil {
		c.log.WarnContext(ctx, "Client is in flood wait, skipping API call", "method", method, "error", err)
		return zero, err
	}

	c.log.DebugContext(ctx, "Executing API call", append([]any{"method", method}, attrs...)...)
	res, err := f(ctx)
	if err != nil {
		c.handleError(ctx, err)
		// FLOOD_WAIT уже залогирован в handleError.
		if _, ok := AsFloodWait(err); !ok {
			c.log.WarnContext(ctx, "API call failed", append([]any{"method", method, "error", err}, attrs...)...)
		}
		return zero, err
	}
	return res, nil
}

// checkHealthStatus проверяет, не находится ли клиент в состоянии FLOOD_WAIT.
func (c *Client) checkHealthStatus() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.unhealthyUntil.IsZero() {
		return nil
	}
	if remaining := c.unhealthyUntil.Sub(c.clock()); remaining > 0 {
		return &floodWaitActiveError{remaining: remaining}
	}
	return nil
}

// handleError запоминает момент окончания FLOOD_WAIT.
func (c *Client) handleError(ctx context.Context, err error) {
	d, ok := AsFloodWait(err)
	if !ok {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.unhealthyUntil = c.clock().Add(d)
	c.log.WarnContext(ctx, "Client got FLOOD_WAIT, set unhealthy", "wait_duration", d, "until", c.unhealthyUntil)
}
