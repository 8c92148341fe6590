package telegram

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestLogin_AlreadyAuthorized(t *testing.T) {
	client := new(mockAuthClient)
	flow := new(mockAuthFlow)
	client.On("Status", mock.Anything).Return(&auth.Status{Authorized: true, User: &tg.User{ID: 7, Username: "alice"}}, nil).Once()

	res, err := login(context.Background(), client, flow, discardLogger)
	require.NoError(t, err)
	assert.Equal(t, int64(7), res.UserID)
	assert.Equal(t, "alice", res.Username)
	flow.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)
}

func TestLogin_RunsInteractiveFlow(t *testing.T) {
	client := new(mockAuthClient)
	flow := new(mockAuthFlow)
	client.On("Status", mock.Anything).Return(&auth.Status{Authorized: false}, nil).Once()
	flow.On("Run", mock.Anything, client).Return(nil).Once()
	client.On("Status", mock.Anything).Return(&auth.Status{Authorized: true, User: &tg.User{ID: 9, Phone: "100"}}, nil).Once()

	res, err := login(context.Background(), client, flow, discardLogger)
	require.NoError(t, err)
	assert.Equal(t, int64(9), res.UserID)
	assert.Equal(t, "100", res.Phone)
	client.AssertExpectations(t)
	flow.AssertExpectations(t)
}

func TestLogin_FlowFailure(t *testing.T) {
	client := new(mockAuthClient)
	flow := new(mockAuthFlow)
	client.On("Status", mock.Anything).Return(&auth.Status{Authorized: false}, nil).Once()
	flow.On("Run", mock.Anything, client).Return(errors.New("bad code")).Once()

	_, err := login(context.Background(), client, flow, discardLogger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad code")
}
