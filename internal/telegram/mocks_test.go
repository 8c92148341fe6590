package telegram

import (
	"context"

	"github.com/google/uuid"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
	"github.com/stretchr/testify/mock"

	"telegram-intel/internal/ports"
)

type mockTelegramAPI struct {
	mock.Mock
}

func (m *mockTelegramAPI) ContactsResolveUsername(ctx context.Context, req *tg.ContactsResolveUsernameRequest) (*tg.ContactsResolvedPeer, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*tg.ContactsResolvedPeer)
	return res, args.Error(1)
}

func (m *mockTelegramAPI) MessagesCheckChatInvite(ctx context.Context, hash string) (tg.ChatInviteClass, error) {
	args := m.Called(ctx, hash)
	res, _ := args.Get(0).(tg.ChatInviteClass)
	return res, args.Error(1)
}

func (m *mockTelegramAPI) MessagesGetChats(ctx context.Context, id []int64) (tg.MessagesChatsClass, error) {
	args := m.Called(ctx, id)
	res, _ := args.Get(0).(tg.MessagesChatsClass)
	return res, args.Error(1)
}

func (m *mockTelegramAPI) ChannelsGetChannels(ctx context.Context, id []tg.InputChannelClass) (tg.MessagesChatsClass, error) {
	args := m.Called(ctx, id)
	res, _ := args.Get(0).(tg.MessagesChatsClass)
	return res, args.Error(1)
}

func (m *mockTelegramAPI) ChannelsGetFullChannel(ctx context.Context, channel tg.InputChannelClass) (*tg.MessagesChatFull, error) {
	args := m.Called(ctx, channel)
	res, _ := args.Get(0).(*tg.MessagesChatFull)
	return res, args.Error(1)
}

func (m *mockTelegramAPI) MessagesGetFullChat(ctx context.Context, chatID int64) (*tg.MessagesChatFull, error) {
	args := m.Called(ctx, chatID)
	res, _ := args.Get(0).(*tg.MessagesChatFull)
	return res, args.Error(1)
}

func (m *mockTelegramAPI) ChannelsGetParticipants(ctx context.Context, req *tg.ChannelsGetParticipantsRequest) (tg.ChannelsChannelParticipantsClass, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(tg.ChannelsChannelParticipantsClass)
	return res, args.Error(1)
}

// fakeRunner имитирует клиента gotd: Run либо сразу возвращает ошибку подключения,
// либо выполняет f.
type fakeRunner struct {
	api        *mockTelegramAPI
	connectErr error
	status     *auth.Status
	statusErr  error

	runCalls   int
	disconnect int
}

func (r *fakeRunner) Run(ctx context.Context, f func(ctx context.Context) error) error {
	r.runCalls++
	defer func() { r.disconnect++ }()
	if r.connectErr != nil {
		return r.connectErr
	}
	return f(ctx)
}

func (r *fakeRunner) API() ports.TelegramAPI { return r.api }

func (r *fakeRunner) AuthStatus(context.Context) (*auth.Status, error) {
	return r.status, r.statusErr
}

type mockSessionStore struct {
	mock.Mock
}

func (m *mockSessionStore) GetSessionHandle(ctx context.Context, principalID uuid.UUID) (string, error) {
	args := m.Called(ctx, principalID)
	return args.String(0), args.Error(1)
}

type mockAuthClient struct {
	mock.Mock
	auth.FlowClient
}

func (m *mockAuthClient) Status(ctx context.Context) (*auth.Status, error) {
	args := m.Called(ctx)
	res, _ := args.Get(0).(*auth.Status)
	return res, args.Error(1)
}

type mockAuthFlow struct {
	mock.Mock
}

func (m *mockAuthFlow) Run(ctx context.Context, client auth.FlowClient) error {
	args := m.Called(ctx, client)
	return args.Error(0)
}
