package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/gotd/td/tg"
	"github.com/stretchr/testify/mock"

	"telegram-intel/internal/domain"
	"telegram-intel/internal/ports"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// MockTelegramAPIClient - мок-реализация ports.TelegramAPI на функциях.
type MockTelegramAPIClient struct {
	ContactsResolveUsernameFunc func(ctx context.Context, req *tg.ContactsResolveUsernameRequest) (*tg.ContactsResolvedPeer, error)
	MessagesCheckChatInviteFunc func(ctx context.Context, hash string) (tg.ChatInviteClass, error)
	MessagesGetChatsFunc        func(ctx context.Context, id []int64) (tg.MessagesChatsClass, error)
	ChannelsGetChannelsFunc     func(ctx context.Context, id []tg.InputChannelClass) (tg.MessagesChatsClass, error)
	ChannelsGetFullChannelFunc  func(ctx context.Context, channel tg.InputChannelClass) (*tg.MessagesChatFull, error)
	MessagesGetFullChatFunc     func(ctx context.Context, chatID int64) (*tg.MessagesChatFull, error)
	ChannelsGetParticipantsFunc func(ctx context.Context, req *tg.ChannelsGetParticipantsRequest) (tg.ChannelsChannelParticipantsClass, error)
}

var _ ports.TelegramAPI = (*MockTelegramAPIClient)(nil)

func (m *MockTelegramAPIClient) ContactsResolveUsername(ctx context.Context, req *tg.ContactsResolveUsernameRequest) (*tg.ContactsResolvedPeer, error) {
	if m.ContactsResolveUsernameFunc != nil {
		return m.ContactsResolveUsernameFunc(ctx, req)
	}
	return nil, nil
}

func (m *MockTelegramAPIClient) MessagesCheckChatInvite(ctx context.Context, hash string) (tg.ChatInviteClass, error) {
	if m.MessagesCheckChatInviteFunc != nil {
		return m.MessagesCheckChatInviteFunc(ctx, hash)
	}
	return nil, nil
}

func (m *MockTelegramAPIClient) MessagesGetChats(ctx context.Context, id []int64) (tg.MessagesChatsClass, error) {
	if m.MessagesGetChatsFunc != nil {
		return m.MessagesGetChatsFunc(ctx, id)
	}
	return &tg.MessagesChats{}, nil
}

func (m *MockTelegramAPIClient) ChannelsGetChannels(ctx context.Context, id []tg.InputChannelClass) (tg.MessagesChatsClass, error) {
	if m.ChannelsGetChannelsFunc != nil {
		return m.ChannelsGetChannelsFunc(ctx, id)
	}
	return &tg.MessagesChats{}, nil
}

func (m *MockTelegramAPIClient) ChannelsGetFullChannel(ctx context.Context, channel tg.InputChannelClass) (*tg.MessagesChatFull, error) {
	if m.ChannelsGetFullChannelFunc != nil {
		return m.ChannelsGetFullChannelFunc(ctx, channel)
	}
	return nil, nil
}

func (m *MockTelegramAPIClient) MessagesGetFullChat(ctx context.Context, chatID int64) (*tg.MessagesChatFull, error) {
	if m.MessagesGetFullChatFunc != nil {
		return m.MessagesGetFullChatFunc(ctx, chatID)
	}
	return nil, nil
}

func (m *MockTelegramAPIClient) ChannelsGetParticipants(ctx context.Context, req *tg.ChannelsGetParticipantsRequest) (tg.ChannelsChannelParticipantsClass, error) {
	if m.ChannelsGetParticipantsFunc != nil {
		return m.ChannelsGetParticipantsFunc(ctx, req)
	}
	return &tg.ChannelsChannelParticipants{}, nil
}

// fakeTimer срабатывает мгновенно и запоминает запрошенные длительности.
type fakeTimer struct {
	mu    sync.Mutex
	waits []time.Duration
	c     chan time.Time
}

func newFakeTimer() *fakeTimer {
	return &fakeTimer{c: make(chan time.Time, 1)}
}

func (t *fakeTimer) Start(d time.Duration) {
	t.mu.Lock()
	t.waits = append(t.waits, d)
	t.mu.Unlock()
	select {
	case t.c <- time.Time{}:
	default:
	}
}

func (t *fakeTimer) Stop() {}

func (t *fakeTimer) C() <-chan time.Time { return t.c }

func (t *fakeTimer) Waits() []time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]time.Duration(nil), t.waits...)
}

func newTestRetrier(timer *fakeTimer) *FloodRetrier {
	return NewFloodRetrier(DefaultRetryConfig(),
		WithRetrierLogger(discardLogger),
		WithTimer(func() backoff.Timer { return timer }),
	)
}

// mockSessionProvider - мок для ports.SessionProvider.
type mockSessionProvider struct {
	mock.Mock
	api ports.TelegramAPI
}

func (m *mockSessionProvider) WithSession(ctx context.Context, principalID uuid.UUID, fn ports.SessionFunc) error {
	args := m.Called(ctx, principalID)
	if err := args.Error(0); err != nil {
		return err
	}
	return fn(ctx, m.api)
}

type mockResolver struct{ mock.Mock }

func (m *mockResolver) Resolve(ctx context.Context, api ports.TelegramAPI, ref domain.RemoteEntityRef) (domain.EntityDescriptor, error) {
	args := m.Called(ctx, api, ref)
	return args.Get(0).(domain.EntityDescriptor), args.Error(1)
}

type mockInfoFetcher struct{ mock.Mock }

func (m *mockInfoFetcher) FetchInfo(ctx context.Context, api ports.TelegramAPI, d domain.EntityDescriptor) (*domain.ChatSnapshot, error) {
	args := m.Called(ctx, api, d)
	res, _ := args.Get(0).(*domain.ChatSnapshot)
	return res, args.Error(1)
}

type mockEnumerator struct{ mock.Mock }

func (m *mockEnumerator) Enumerate(ctx context.Context, api ports.TelegramAPI, d domain.EntityDescriptor, limit int) ([]domain.ParticipantRecord, error) {
	args := m.Called(ctx, api, d, limit)
	res, _ := args.Get(0).([]domain.ParticipantRecord)
	return res, args.Error(1)
}

type mockChatLookup struct{ mock.Mock }

func (m *mockChatLookup) GetChatByRemoteID(ctx context.Context, remoteID int64) (*domain.ChatRecord, error) {
	args := m.Called(ctx, remoteID)
	res, _ := args.Get(0).(*domain.ChatRecord)
	return res, args.Error(1)
}

// page строит страницу из n обычных участников, начиная с ID first.
func page(first int64, n int) *tg.ChannelsChannelParticipants {
	res := &tg.ChannelsChannelParticipants{Count: 450}
	for i := 0; i < n; i++ {
		id := first + int64(i)
		res.Participants = append(res.Participants, &tg.ChannelParticipant{UserID: id, Date: 1700000000})
		u := &tg.User{ID: id, FirstName: "user"}
		u.SetAccessHash(id * 10)
		res.Users = append(res.Users, u)
	}
	return res
}
