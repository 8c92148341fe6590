package telegram

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestClient(api *mockTelegramAPI, clock func() time.Time) *Client {
	return NewClient(api,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithClock(clock),
	)
}

func TestClient_PassesThroughResults(t *testing.T) {
	api := new(mockTelegramAPI)
	c := newTestClient(api, time.Now)
	ctx := context.Background()

	resolved := &tg.ContactsResolvedPeer{Peer: &tg.PeerChannel{ChannelID: 10}}
	api.On("ContactsResolveUsername", mock.Anything, &tg.ContactsResolveUsernameRequest{Username: "golang"}).Return(resolved, nil).Once()

	res, err := c.ContactsResolveUsername(ctx, &tg.ContactsResolveUsernameRequest{Username: "golang"})
	require.NoError(t, err)
	assert.Same(t, resolved, res)
	assert.NotEmpty(t, c.ID())
	api.AssertExpectations(t)
}

func TestClient_FloodWaitBlocksUntilExpiry(t *testing.T) {
	api := new(mockTelegramAPI)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := newTestClient(api, func() time.Time { return now })
	ctx := context.Background()

	api.On("MessagesGetFullChat", mock.Anything, int64(5)).Return(nil, tgerr.New(420, "FLOOD_WAIT_10")).Once()

	_, err := c.MessagesGetFullChat(ctx, 5)
	d, ok := AsFloodWait(err)
	require.True(t, ok)
	assert.Equal(t, 10*time.Second, d)

	// Пока ожидание не истекло, запрос не отправляется, а ошибка сообщает остаток.
	now = now.Add(4 * time.Second)
	_, err = c.MessagesGetFullChat(ctx, 5)
	assert.ErrorIs(t, err, ErrFloodWaitActive)
	d, ok = AsFloodWait(err)
	require.True(t, ok)
	assert.Equal(t, 6*time.Second, d)

	now = now.Add(7 * time.Second)
	full := &tg.MessagesChatFull{FullChat: &tg.ChatFull{ID: 5}}
	api.On("MessagesGetFullChat", mock.Anything, int64(5)).Return(full, nil).Once()
	res, err := c.MessagesGetFullChat(ctx, 5)
	require.NoError(t, err)
	assert.Same(t, full, res)

	api.AssertExpectations(t)
}

func TestClient_OtherErrorsDoNotBlock(t *testing.T) {
	api := new(mockTelegramAPI)
	c := newTestClient(api, time.Now)
	ctx := context.Background()

	req := &tg.ChannelsGetParticipantsRequest{Offset: 0, Limit: 200}
	api.On("ChannelsGetParticipants", mock.Anything, req).Return(nil, tgerr.New(400, "CHANNEL_PRIVATE")).Twice()

	_, err := c.ChannelsGetParticipants(ctx, req)
	assert.True(t, IsAccessDenied(err))
	_, err = c.ChannelsGetParticipants(ctx, req)
	assert.True(t, IsAccessDenied(err))

	api.AssertExpectations(t)
}
