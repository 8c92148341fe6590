package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gotd/td/tg"

	"telegram-intel/internal/domain"
	"telegram-intel/internal/ports"
)

// ChatInfoFetcher строит снимок чата по описанию сущности и дополняет его
// расширенными метаданными (число участников, описание).
type ChatInfoFetcher struct {
	retrier *FloodRetrier
	log     *slog.Logger
}

var _ ports.ChatInfoFetcher = (*ChatInfoFetcher)(nil)

// NewChatInfoFetcher создает ChatInfoFetcher.
func NewChatInfoFetcher(retrier *FloodRetrier, log *slog.Logger) *ChatInfoFetcher {
	if log == nil {
		log = slog.Default()
	}
	return &ChatInfoFetcher{retrier: retrier, log: log}
}

// FetchInfo возвращает снимок чата. Если запрос расширенных метаданных не удался,
// возвращается базовый снимок с ParticipantsCount = nil и About = nil.
// Ошибка возвращается только для неподдерживаемого типа сущности.
func (f *ChatInfoFetcher) FetchInfo(ctx context.Context, api ports.TelegramAPI, d domain.EntityDescriptor) (*domain.ChatSnapshot, error) {
	snap := &domain.ChatSnapshot{
		ID:          d.ID,
		Title:       d.Title,
		Username:    d.Username,
		Type:        d.Kind,
		IsGigagroup: d.Gigagroup,
	}
	if d.HasAccessHash {
		hash := d.AccessHash
		snap.AccessHash = &hash
	}

	var err error
	switch d.Kind {
	case domain.ChatTypeChannel:
		snap.IsChannel = true
		err = f.fillChannel(ctx, api, d, snap)
	case domain.ChatTypeSupergroup:
		snap.IsSupergroup = true
		err = f.fillChannel(ctx, api, d, snap)
	case domain.ChatTypeGroup:
		snap.IsGroup = true
		err = f.fillChat(ctx, api, d, snap)
	default:
		return nil, fmt.Errorf("%w: kind %q", domain.ErrUnsupportedPeer, d.Kind)
	}

	if err != nil {
		f.log.WarnContext(ctx, "Failed to fetch extended chat info, returning base snapshot", "chat_id", d.ID, "error", err)
		snap.ParticipantsCount = nil
		snap.About = nil
	}
	return snap, nil
}

func (f *ChatInfoFetcher) fillChannel(ctx context.Context, api ports.TelegramAPI, d domain.EntityDescriptor, snap *domain.ChatSnapshot) error {
	var full *tg.MessagesChatFull
	err := f.retrier.Do(ctx, "channels.getFullChannel", func(ctx context.Context) error {
		var err error
		full, err = api.ChannelsGetFullChannel(ctx, &tg.InputChannel{ChannelID: d.ID, AccessHash: d.AccessHash})
		return err
	})
	if err != nil {
		return err
	}

	cf, ok := full.FullChat.(*tg.ChannelFull)
	if !ok {
		return fmt.Errorf("unexpected full chat type %T", full.FullChat)
	}
	if count, ok := cf.GetParticipantsCount(); ok {
		snap.ParticipantsCount = &count
	}
	about := cf.About
	snap.About = &about
	return nil
}

func (f *ChatInfoFetcher) fillChat(ctx context.Context, api ports.TelegramAPI, d domain.EntityDescriptor, snap *domain.ChatSnapshot) error {
	var full *tg.MessagesChatFull
	err := f.retrier.Do(ctx, "messages.getFullChat", func(ctx context.Context) error {
		var err error
		full, err = api.MessagesGetFullChat(ctx, d.ID)
		return err
	})
	if err != nil {
		return err
	}

	cf, ok := full.FullChat.(*tg.ChatFull)
	if !ok {
		return fmt.Errorf("unexpected full chat type %T", full.FullChat)
	}
	count := d.ParticipantsCount
	if list, ok := cf.Participants.(*tg.ChatParticipants); ok && len(list.Participants) > count {
		count = len(list.Participants)
	}
	snap.ParticipantsCount = &count
	about := cf.About
	snap.About = &about
	return nil
}
