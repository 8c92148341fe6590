package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gotd/td/tg"

	"telegram-intel/internal/domain"
	"telegram-intel/internal/ports"
	"telegram-intel/internal/telegram"
)

// tdlibChannelOffset - смещение, которым TDLib и Bot API помечают ID каналов (-100…).
const tdlibChannelOffset = 1_000_000_000_000

// EntityResolver отображает ссылку на каноническое описание чата.
type EntityResolver struct {
	retrier *FloodRetrier
	known   ports.ChatLookup
	log     *slog.Logger
}

var _ ports.EntityResolver = (*EntityResolver)(nil)

// ResolverOption - функциональная опция для EntityResolver.
type ResolverOption func(*EntityResolver)

// WithResolverLogger устанавливает логгер.
func WithResolverLogger(l *slog.Logger) ResolverOption {
	return func(r *EntityResolver) {
		if l != nil {
			r.log = l
		}
	}
}

// WithKnownChats подключает поиск сохраненных чатов: для числовых ID
// из него берется access hash и тип чата.
func WithKnownChats(lookup ports.ChatLookup) ResolverOption {
	return func(r *EntityResolver) {
		r.known = lookup
	}
}

// NewEntityResolver создает EntityResolver.
func NewEntityResolver(retrier *FloodRetrier, opts ...ResolverOption) *EntityResolver {
	r := &EntityResolver{
		retrier: retrier,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve разрешает ссылку в EntityDescriptor.
// Ошибки: domain.ErrNotFound, domain.ErrAccessDenied, domain.ErrInvalidRef,
// domain.ErrUnsupportedPeer (ссылка указывает на пользователя), domain.ErrRateLimited.
func (r *EntityResolver) Resolve(ctx context.Context, api ports.TelegramAPI, ref domain.RemoteEntityRef) (domain.EntityDescriptor, error) {
	log := r.log.With("ref", ref.String())
	log.DebugContext(ctx, "Resolving entity")

	var (
		d   domain.EntityDescriptor
		err error
	)
	switch ref.Kind {
	case domain.RefHandle, domain.RefLink:
		d, err = r.resolveUsername(ctx, api, ref.Value)
	case domain.RefInvite:
		d, err = r.resolveInvite(ctx, api, ref.Value)
	case domain.RefNumericID:
		d, err = r.resolveID(ctx, api, ref.ID)
	default:
		err = fmt.Errorf("%w: unknown reference kind %q", domain.ErrInvalidRef, ref.Kind)
	}
	if err != nil {
		log.WarnContext(ctx, "Failed to resolve entity", "error", err)
		return domain.EntityDescriptor{}, err
	}

	log.InfoContext(ctx, "Entity resolved", "chat_id", d.ID, "kind", d.Kind)
	return d, nil
}

func (r *EntityResolver) resolveUsername(ctx context.Context, api ports.TelegramAPI, username string) (domain.EntityDescriptor, error) {
	var resolved *tg.ContactsResolvedPeer
	err := r.retrier.Do(ctx, "contacts.resolveUsername", func(ctx context.Context) error {
		var err error
		resolved, err = api.ContactsResolveUsername(ctx, &tg.ContactsResolveUsernameRequest{Username: username})
		return err
	})
	if err != nil {
		return domain.EntityDescriptor{}, telegram.Classify(err)
	}

	switch peer := resolved.Peer.(type) {
	case *tg.PeerChannel:
		return findChat(resolved.Chats, peer.ChannelID)
	case *tg.PeerChat:
		return findChat(resolved.Chats, peer.ChatID)
	default:
		return domain.EntityDescriptor{}, fmt.Errorf("%w: @%s is a user", domain.ErrUnsupportedPeer, username)
	}
}

func (r *EntityResolver) resolveInvite(ctx context.Context, api ports.TelegramAPI, hash string) (domain.EntityDescriptor, error) {
	var invite tg.ChatInviteClass
	err := r.retrier.Do(ctx, "messages.checkChatInvite", func(ctx context.Context) error {
		var err error
		invite, err = api.MessagesCheckChatInvite(ctx, hash)
		return err
	})
	if err != nil {
		return domain.EntityDescriptor{}, telegram.Classify(err)
	}

	switch inv := invite.(type) {
	case *tg.ChatInviteAlready:
		return describeChat(inv.Chat)
	case *tg.ChatInvitePeek:
		return describeChat(inv.Chat)
	case *tg.ChatInvite:
		// Сессия не состоит в чате: перечислить участников нельзя.
		return domain.EntityDescriptor{}, fmt.Errorf("%w: session is not a member of %q", domain.ErrAccessDenied, inv.Title)
	default:
		return domain.EntityDescriptor{}, fmt.Errorf("%w: unexpected invite type %T", domain.ErrNotFound, invite)
	}
}

func (r *EntityResolver) resolveID(ctx context.Context, api ports.TelegramAPI, id int64) (domain.EntityDescriptor, error) {
	switch {
	case id <= -tdlibChannelOffset:
		return r.resolveChannel(ctx, api, -id-tdlibChannelOffset, r.knownAccessHash(ctx, -id-tdlibChannelOffset))
	case id < 0:
		return r.resolveBasicChat(ctx, api, -id)
	}

	if known := r.lookupKnown(ctx, id); known != nil {
		if known.Type == domain.ChatTypeGroup {
			return r.resolveBasicChat(ctx, api, id)
		}
		var hash int64
		if known.AccessHash != nil {
			hash = *known.AccessHash
		}
		return r.resolveChannel(ctx, api, id, hash)
	}

	// Тип чата неизвестен: пробуем канал, затем обычную группу.
	d, chErr := r.resolveChannel(ctx, api, id, 0)
	if chErr == nil {
		return d, nil
	}
	if errors.Is(chErr, domain.ErrRateLimited) {
		return domain.EntityDescriptor{}, chErr
	}
	d, chatErr := r.resolveBasicChat(ctx, api, id)
	if chatErr == nil {
		return d, nil
	}
	if errors.Is(chErr, domain.ErrAccessDenied) {
		return domain.EntityDescriptor{}, chErr
	}
	return domain.EntityDescriptor{}, chatErr
}

func (r *EntityResolver) resolveChannel(ctx context.Context, api ports.TelegramAPI, id, accessHash int64) (domain.EntityDescriptor, error) {
	var chats tg.MessagesChatsClass
	err := r.retrier.Do(ctx, "channels.getChannels", func(ctx context.Context) error {
		var err error
		chats, err = api.ChannelsGetChannels(ctx, []tg.InputChannelClass{&tg.InputChannel{ChannelID: id, AccessHash: accessHash}})
		return err
	})
	if err != nil {
		return domain.EntityDescriptor{}, telegram.Classify(err)
	}
	return findChat(chatsOf(chats), id)
}

func (r *EntityResolver) resolveBasicChat(ctx context.Context, api ports.TelegramAPI, id int64) (domain.EntityDescriptor, error) {
	var chats tg.MessagesChatsClass
	err := r.retrier.Do(ctx, "messages.getChats", func(ctx context.Context) error {
		var err error
		chats, err = api.MessagesGetChats(ctx, []int64{id})
		return err
	})
	if err != nil {
		return domain.EntityDescriptor{}, telegram.Classify(err)
	}

	d, err := findDescribed(chatsOf(chats), id)
	if err != nil {
		return domain.EntityDescriptor{}, err
	}
	// Группа, преобразованная в супергруппу, отдает ссылку на новый канал.
	if d.Kind == domain.ChatTypeGroup && d.migratedTo != nil {
		r.log.InfoContext(ctx, "Chat was migrated to supergroup", "chat_id", id, "channel_id", d.migratedTo.ChannelID)
		return r.resolveChannel(ctx, api, d.migratedTo.ChannelID, d.migratedTo.AccessHash)
	}
	return d.EntityDescriptor, nil
}

func (r *EntityResolver) lookupKnown(ctx context.Context, id int64) *domain.ChatRecord {
	if r.known == nil {
		return nil
	}
	rec, err := r.known.GetChatByRemoteID(ctx, id)
	if err != nil {
		r.log.WarnContext(ctx, "Failed to look up known chat", "chat_id", id, "error", err)
		return nil
	}
	return rec
}

func (r *EntityResolver) knownAccessHash(ctx context.Context, id int64) int64 {
	if rec := r.lookupKnown(ctx, id); rec != nil && rec.AccessHash != nil {
		return *rec.AccessHash
	}
	return 0
}

// describedChat - описание с дополнительной информацией о миграции группы.
type describedChat struct {
	domain.EntityDescriptor
	migratedTo *tg.InputChannel
}

func chatsOf(res tg.MessagesChatsClass) []tg.ChatClass {
	switch c := res.(type) {
	case *tg.MessagesChats:
		return c.Chats
	case *tg.MessagesChatsSlice:
		return c.Chats
	default:
		return nil
	}
}

// findChat ищет чат с нужным ID и строит его описание.
func findChat(chats []tg.ChatClass, id int64) (domain.EntityDescriptor, error) {
	d, err := findDescribed(chats, id)
	return d.EntityDescriptor, err
}

func findDescribed(chats []tg.ChatClass, id int64) (describedChat, error) {
	for _, chat := range chats {
		if chat.GetID() != id {
			continue
		}
		return describe(chat)
	}
	return describedChat{}, fmt.Errorf("%w: chat %d not returned by server", domain.ErrNotFound, id)
}

func describeChat(chat tg.ChatClass) (domain.EntityDescriptor, error) {
	d, err := describe(chat)
	return d.EntityDescriptor, err
}

// describe превращает объект протокола в закрытый вариант EntityDescriptor.
func describe(chat tg.ChatClass) (describedChat, error) {
	switch c := chat.(type) {
	case *tg.Channel:
		d := domain.EntityDescriptor{
			Kind:      domain.ChatTypeSupergroup,
			ID:        c.ID,
			Title:     c.Title,
			Gigagroup: c.Gigagroup,
		}
		if c.Broadcast {
			d.Kind = domain.ChatTypeChannel
		}
		if hash, ok := c.GetAccessHash(); ok {
			d.AccessHash = hash
			d.HasAccessHash = true
		}
		if username, ok := c.GetUsername(); ok {
			d.Username = username
		}
		if count, ok := c.GetParticipantsCount(); ok {
			d.ParticipantsCount = count
		}
		return describedChat{EntityDescriptor: d}, nil
	case *tg.Chat:
		d := describedChat{EntityDescriptor: domain.EntityDescriptor{
			Kind:              domain.ChatTypeGroup,
			ID:                c.ID,
			Title:             c.Title,
			ParticipantsCount: c.ParticipantsCount,
		}}
		if migrated, ok := c.GetMigratedTo(); ok {
			if ch, ok := migrated.(*tg.InputChannel); ok {
				d.migratedTo = ch
			}
		}
		return d, nil
	case *tg.ChannelForbidden:
		return describedChat{}, fmt.Errorf("%w: channel %d is forbidden", domain.ErrAccessDenied, c.ID)
	case *tg.ChatForbidden:
		return describedChat{}, fmt.Errorf("%w: chat %d is forbidden", domain.ErrAccessDenied, c.ID)
	default:
		return describedChat{}, fmt.Errorf("%w: chat object %T", domain.ErrNotFound, chat)
	}
}
