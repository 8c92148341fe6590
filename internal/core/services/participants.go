package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gotd/td/tg"

	"telegram-intel/internal/domain"
	"telegram-intel/internal/ports"
	"telegram-intel/internal/telegram"
)

// EnumeratorConfig хранит параметры пагинации.
type EnumeratorConfig struct {
	// BatchSize - размер страницы; сервер отдает не более 200 участников за запрос.
	BatchSize int
	// BatchPause - обязательная пауза между успешными страницами.
	BatchPause time.Duration
}

// DefaultEnumeratorConfig возвращает параметры пагинации по умолчанию.
func DefaultEnumeratorConfig() EnumeratorConfig {
	return EnumeratorConfig{
		BatchSize:  200,
		BatchPause: time.Second,
	}
}

// ParticipantEnumerator постранично перечисляет участников чата.
// Сервис не хранит состояние и безопасен для одновременного использования.
type ParticipantEnumerator struct {
	retrier  *FloodRetrier
	config   EnumeratorConfig
	progress ports.ProgressFunc
	log      *slog.Logger
}

var _ ports.ParticipantEnumerator = (*ParticipantEnumerator)(nil)

// EnumeratorOption - функциональная опция для ParticipantEnumerator.
type EnumeratorOption func(*ParticipantEnumerator)

// WithEnumeratorLogger устанавливает логгер.
func WithEnumeratorLogger(l *slog.Logger) EnumeratorOption {
	return func(e *ParticipantEnumerator) {
		if l != nil {
			e.log = l
		}
	}
}

// WithProgress устанавливает функцию, получающую прогресс после каждой страницы.
func WithProgress(fn ports.ProgressFunc) EnumeratorOption {
	return func(e *ParticipantEnumerator) {
		e.progress = fn
	}
}

// NewParticipantEnumerator создает ParticipantEnumerator.
func NewParticipantEnumerator(retrier *FloodRetrier, cfg EnumeratorConfig, opts ...EnumeratorOption) *ParticipantEnumerator {
	if cfg.BatchSize <= 0 || cfg.BatchSize > 200 {
		cfg.BatchSize = 200
	}
	e := &ParticipantEnumerator{
		retrier: retrier,
		config:  cfg,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enumerate возвращает участников чата, не более limit (0 - без ограничения).
//
// Отказ в доступе и отсутствие сущности возвращаются ошибкой и nil-списком.
// Любая другая ошибка посреди пагинации (включая исчерпание бюджета FLOOD_WAIT
// и истечение дедлайна) завершает перечисление: возвращается накопленный частичный список.
func (e *ParticipantEnumerator) Enumerate(ctx context.Context, api ports.TelegramAPI, d domain.EntityDescriptor, limit int) ([]domain.ParticipantRecord, error) {
	if limit < 0 {
		limit = 0
	}
	switch d.Kind {
	case domain.ChatTypeChannel, domain.ChatTypeSupergroup:
		return e.enumerateChannel(ctx, api, d, limit)
	case domain.ChatTypeGroup:
		return e.enumerateChat(ctx, api, d, limit)
	default:
		return nil, fmt.Errorf("%w: kind %q", domain.ErrUnsupportedPeer, d.Kind)
	}
}

func (e *ParticipantEnumerator) enumerateChannel(ctx context.Context, api ports.TelegramAPI, d domain.EntityDescriptor, limit int) ([]domain.ParticipantRecord, error) {
	log := e.log.With("chat_id", d.ID, "limit", limit)
	channel := &tg.InputChannel{ChannelID: d.ID, AccessHash: d.AccessHash}
	records := make([]domain.ParticipantRecord, 0)
	offset := 0

	for {
		pageSize := e.config.BatchSize
		if limit > 0 && limit-len(records) < pageSize {
			pageSize = limit - len(records)
		}

		var page tg.ChannelsChannelParticipantsClass
		err := e.retrier.Do(ctx, "channels.getParticipants", func(ctx context.Context) error {
			var err error
			page, err = api.ChannelsGetParticipants(ctx, &tg.ChannelsGetParticipantsRequest{
				Channel: channel,
				Filter:  &tg.ChannelParticipantsSearch{},
				Offset:  offset,
				Limit:   pageSize,
			})
			return err
		})
		if err != nil {
			if stop := e.abort(ctx, log, err, offset, len(records)); stop != nil {
				return nil, stop
			}
			return records, nil
		}

		res, ok := page.(*tg.ChannelsChannelParticipants)
		if !ok || len(res.Participants) == 0 {
			log.DebugContext(ctx, "Empty batch, enumeration done", "offset", offset)
			break
		}

		batch := channelParticipants(res)
		records = append(records, batch...)
		offset += len(res.Participants)
		log.DebugContext(ctx, "Fetched participants batch", "offset", offset, "batch", len(batch), "collected", len(records))
		e.report(len(records), res.Count)

		if limit > 0 && len(records) >= limit {
			records = records[:limit]
			break
		}

		if err := e.retrier.Pause(ctx, e.config.BatchPause); err != nil {
			log.WarnContext(ctx, "Enumeration interrupted, returning partial result", "collected", len(records), "error", err)
			return records, nil
		}
	}

	log.InfoContext(ctx, "Participants enumerated", "count", len(records))
	return records, nil
}

// enumerateChat берет участников обычной группы из полной информации о чате: пагинации у них нет.
func (e *ParticipantEnumerator) enumerateChat(ctx context.Context, api ports.TelegramAPI, d domain.EntityDescriptor, limit int) ([]domain.ParticipantRecord, error) {
	log := e.log.With("chat_id", d.ID, "limit", limit)

	var full *tg.MessagesChatFull
	err := e.retrier.Do(ctx, "messages.getFullChat", func(ctx context.Context) error {
		var err error
		full, err = api.MessagesGetFullChat(ctx, d.ID)
		return err
	})
	if err != nil {
		if stop := e.abort(ctx, log, err, 0, 0); stop != nil {
			return nil, stop
		}
		return make([]domain.ParticipantRecord, 0), nil
	}

	cf, ok := full.FullChat.(*tg.ChatFull)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected full chat type %T", domain.ErrUnsupportedPeer, full.FullChat)
	}
	list, ok := cf.Participants.(*tg.ChatParticipants)
	if !ok {
		log.WarnContext(ctx, "Participant list of the chat is hidden")
		return nil, fmt.Errorf("%w: participant list of chat %d is forbidden", domain.ErrAccessDenied, d.ID)
	}

	users := usersByID(full.Users)
	records := make([]domain.ParticipantRecord, 0, len(list.Participants))
	for _, p := range list.Participants {
		rec, ok := chatParticipant(p, users)
		if !ok {
			continue
		}
		records = append(records, rec)
	}
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	e.report(len(records), len(list.Participants))

	log.InfoContext(ctx, "Participants enumerated", "count", len(records))
	return records, nil
}

// abort решает, прерывает ли ошибка перечисление целиком (возвращается ошибка)
// или перечисление завершается с частичным результатом (возвращается nil).
func (e *ParticipantEnumerator) abort(ctx context.Context, log *slog.Logger, err error, offset, collected int) error {
	switch {
	case telegram.IsAccessDenied(err):
		log.WarnContext(ctx, "Access to participants denied", "error", err)
		return telegram.Classify(err)
	case offset == 0 && (telegram.IsNotFound(err) || telegram.IsInvalidRef(err)):
		log.WarnContext(ctx, "Chat not found while enumerating participants", "error", err)
		return telegram.Classify(err)
	case errors.Is(err, domain.ErrRateLimited):
		log.ErrorContext(ctx, "Rate limit not recovered, returning partial result", "offset", offset, "collected", collected, "error", err)
	default:
		log.WarnContext(ctx, "Enumeration stopped by remote error, returning partial result", "offset", offset, "collected", collected, "error", err)
	}
	return nil
}

func (e *ParticipantEnumerator) report(collected, total int) {
	if e.progress != nil {
		e.progress(collected, total)
	}
}

func usersByID(users []tg.UserClass) map[int64]*tg.User {
	m := make(map[int64]*tg.User, len(users))
	for _, u := range users {
		if user, ok := u.(*tg.User); ok {
			m[user.ID] = user
		}
	}
	return m
}

// channelParticipants сопоставляет участникам страницы их профили.
func channelParticipants(res *tg.ChannelsChannelParticipants) []domain.ParticipantRecord {
	users := usersByID(res.Users)
	out := make([]domain.ParticipantRecord, 0, len(res.Participants))

	for _, p := range res.Participants {
		var (
			userID  int64
			role    domain.Role
			inviter *int64
			date    int
		)
		switch v := p.(type) {
		case *tg.ChannelParticipant:
			userID, role, date = v.UserID, domain.RoleMember, v.Date
		case *tg.ChannelParticipantSelf:
			userID, role, date = v.UserID, domain.RoleSelf, v.Date
			inviter = int64Ptr(v.InviterID)
		case *tg.ChannelParticipantCreator:
			userID, role = v.UserID, domain.RoleCreator
		case *tg.ChannelParticipantAdmin:
			userID, role, date = v.UserID, domain.RoleAdmin, v.Date
			if id, ok := v.GetInviterID(); ok {
				inviter = int64Ptr(id)
			}
		case *tg.ChannelParticipantBanned:
			peer, ok := v.Peer.(*tg.PeerUser)
			if !ok {
				continue
			}
			userID, role, date = peer.UserID, domain.RoleBanned, v.Date
		case *tg.ChannelParticipantLeft:
			peer, ok := v.Peer.(*tg.PeerUser)
			if !ok {
				continue
			}
			userID, role = peer.UserID, domain.RoleLeft
		default:
			continue
		}

		user, ok := users[userID]
		if !ok {
			continue
		}
		out = append(out, participantRecord(user, role, inviter, date))
	}
	return out
}

func chatParticipant(p tg.ChatParticipantClass, users map[int64]*tg.User) (domain.ParticipantRecord, bool) {
	var (
		userID  int64
		role    domain.Role
		inviter *int64
		date    int
	)
	switch v := p.(type) {
	case *tg.ChatParticipant:
		userID, role, date, inviter = v.UserID, domain.RoleMember, v.Date, int64Ptr(v.InviterID)
	case *tg.ChatParticipantAdmin:
		userID, role, date, inviter = v.UserID, domain.RoleAdmin, v.Date, int64Ptr(v.InviterID)
	case *tg.ChatParticipantCreator:
		userID, role = v.UserID, domain.RoleCreator
	default:
		return domain.ParticipantRecord{}, false
	}

	user, ok := users[userID]
	if !ok {
		return domain.ParticipantRecord{}, false
	}
	return participantRecord(user, role, inviter, date), true
}

func participantRecord(u *tg.User, role domain.Role, inviter *int64, date int) domain.ParticipantRecord {
	rec := domain.ParticipantRecord{
		ID:           u.ID,
		Username:     u.Username,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Phone:        u.Phone,
		IsBot:        u.Bot,
		IsDeleted:    u.Deleted,
		IsVerified:   u.Verified,
		IsRestricted: u.Restricted,
		IsScam:       u.Scam,
		IsFake:       u.Fake,
		LangCode:     u.LangCode,
		Role:         role,
		InviterID:    inviter,
	}
	if hash, ok := u.GetAccessHash(); ok {
		rec.AccessHash = &hash
	}
	if date > 0 {
		joined := time.Unix(int64(date), 0).UTC()
		rec.JoinedAt = &joined
	}
	return rec
}

// int64Ptr возвращает nil для нулевого ID: сервер передает 0, если пригласивший неизвестен.
func int64Ptr(v int64) *int64 {
	if v == 0 {
		return nil
	}
	return &v
}
