package services

import (
	"context"
	"errors"
	"testing"

	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"telegram-intel/internal/domain"
)

func newChannel(id int64, broadcast bool) *tg.Channel {
	ch := &tg.Channel{ID: id, Title: "Channel", Broadcast: broadcast, Megagroup: !broadcast}
	ch.SetAccessHash(id * 7)
	ch.SetUsername("golang_news")
	ch.SetParticipantsCount(42)
	return ch
}

func newTestResolver(opts ...ResolverOption) *EntityResolver {
	opts = append([]ResolverOption{WithResolverLogger(discardLogger)}, opts...)
	return NewEntityResolver(newTestRetrier(newFakeTimer()), opts...)
}

func TestResolve_Handle(t *testing.T) {
	r := newTestResolver()
	api := &MockTelegramAPIClient{
		ContactsResolveUsernameFunc: func(_ context.Context, req *tg.ContactsResolveUsernameRequest) (*tg.ContactsResolvedPeer, error) {
			assert.Equal(t, "golang_news", req.Username)
			return &tg.ContactsResolvedPeer{
				Peer:  &tg.PeerChannel{ChannelID: 10},
				Chats: []tg.ChatClass{newChannel(10, true)},
			}, nil
		},
	}

	ref, err := domain.ParseRef("https://t.me/golang_news")
	require.NoError(t, err)

	d, err := r.Resolve(context.Background(), api, ref)
	require.NoError(t, err)
	assert.Equal(t, domain.ChatTypeChannel, d.Kind)
	assert.Equal(t, int64(10), d.ID)
	assert.Equal(t, int64(70), d.AccessHash)
	assert.True(t, d.HasAccessHash)
	assert.Equal(t, "golang_news", d.Username)
	assert.Equal(t, 42, d.ParticipantsCount)
}

func TestResolve_HandleErrors(t *testing.T) {
	testCases := []struct {
		name     string
		resolved *tg.ContactsResolvedPeer
		err      error
		expected error
	}{
		{"not occupied", nil, tgerr.New(400, "USERNAME_NOT_OCCUPIED"), domain.ErrNotFound},
		{"invalid", nil, tgerr.New(400, "USERNAME_INVALID"), domain.ErrInvalidRef},
		{"user peer", &tg.ContactsResolvedPeer{Peer: &tg.PeerUser{UserID: 1}}, nil, domain.ErrUnsupportedPeer},
		{"forbidden channel", &tg.ContactsResolvedPeer{
			Peer:  &tg.PeerChannel{ChannelID: 5},
			Chats: []tg.ChatClass{&tg.ChannelForbidden{ID: 5, Title: "closed"}},
		}, nil, domain.ErrAccessDenied},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			api := &MockTelegramAPIClient{
				ContactsResolveUsernameFunc: func(context.Context, *tg.ContactsResolveUsernameRequest) (*tg.ContactsResolvedPeer, error) {
					return tc.resolved, tc.err
				},
			}
			_, err := newTestResolver().Resolve(context.Background(), api, domain.RemoteEntityRef{Kind: domain.RefHandle, Value: "somebody"})
			assert.ErrorIs(t, err, tc.expected)
		})
	}
}

func TestResolve_Invite(t *testing.T) {
	r := newTestResolver()
	ref := domain.RemoteEntityRef{Kind: domain.RefInvite, Value: "AbCdEfGh123"}

	api := &MockTelegramAPIClient{
		MessagesCheckChatInviteFunc: func(_ context.Context, hash string) (tg.ChatInviteClass, error) {
			assert.Equal(t, "AbCdEfGh123", hash)
			return &tg.ChatInviteAlready{Chat: newChannel(20, false)}, nil
		},
	}
	d, err := r.Resolve(context.Background(), api, ref)
	require.NoError(t, err)
	assert.Equal(t, domain.ChatTypeSupergroup, d.Kind)

	api.MessagesCheckChatInviteFunc = func(context.Context, string) (tg.ChatInviteClass, error) {
		return &tg.ChatInvite{Title: "Private"}, nil
	}
	_, err = r.Resolve(context.Background(), api, ref)
	assert.ErrorIs(t, err, domain.ErrAccessDenied)
}

func TestResolve_MarkedChannelID(t *testing.T) {
	lookup := new(mockChatLookup)
	hash := int64(777)
	lookup.On("GetChatByRemoteID", mock.Anything, int64(1234567)).Return(&domain.ChatRecord{RemoteID: 1234567, AccessHash: &hash, Type: domain.ChatTypeSupergroup}, nil)
	r := newTestResolver(WithKnownChats(lookup))

	api := &MockTelegramAPIClient{
		ChannelsGetChannelsFunc: func(_ context.Context, id []tg.InputChannelClass) (tg.MessagesChatsClass, error) {
			require.Len(t, id, 1)
			assert.Equal(t, &tg.InputChannel{ChannelID: 1234567, AccessHash: 777}, id[0])
			return &tg.MessagesChats{Chats: []tg.ChatClass{newChannel(1234567, false)}}, nil
		},
	}

	d, err := r.Resolve(context.Background(), api, domain.RefFromID(-1000001234567))
	require.NoError(t, err)
	assert.Equal(t, int64(1234567), d.ID)
	assert.Equal(t, domain.ChatTypeSupergroup, d.Kind)
}

func TestResolve_NegativeBasicChatID(t *testing.T) {
	r := newTestResolver()
	api := &MockTelegramAPIClient{
		MessagesGetChatsFunc: func(_ context.Context, id []int64) (tg.MessagesChatsClass, error) {
			assert.Equal(t, []int64{555}, id)
			return &tg.MessagesChats{Chats: []tg.ChatClass{&tg.Chat{ID: 555, Title: "Friends", ParticipantsCount: 4}}}, nil
		},
	}

	d, err := r.Resolve(context.Background(), api, domain.RefFromID(-555))
	require.NoError(t, err)
	assert.Equal(t, domain.ChatTypeGroup, d.Kind)
	assert.Equal(t, 4, d.ParticipantsCount)
}

func TestResolve_MigratedGroupFollowsChannel(t *testing.T) {
	r := newTestResolver()
	chat := &tg.Chat{ID: 555, Title: "Old"}
	chat.SetMigratedTo(&tg.InputChannel{ChannelID: 900, AccessHash: 9})
	api := &MockTelegramAPIClient{
		MessagesGetChatsFunc: func(context.Context, []int64) (tg.MessagesChatsClass, error) {
			return &tg.MessagesChats{Chats: []tg.ChatClass{chat}}, nil
		},
		ChannelsGetChannelsFunc: func(_ context.Context, id []tg.InputChannelClass) (tg.MessagesChatsClass, error) {
			assert.Equal(t, &tg.InputChannel{ChannelID: 900, AccessHash: 9}, id[0])
			return &tg.MessagesChats{Chats: []tg.ChatClass{newChannel(900, false)}}, nil
		},
	}

	d, err := r.Resolve(context.Background(), api, domain.RefFromID(-555))
	require.NoError(t, err)
	assert.Equal(t, int64(900), d.ID)
	assert.Equal(t, domain.ChatTypeSupergroup, d.Kind)
}

func TestResolve_PlainIDFallsBackToBasicChat(t *testing.T) {
	lookup := new(mockChatLookup)
	lookup.On("GetChatByRemoteID", mock.Anything, int64(555)).Return(nil, nil)
	r := newTestResolver(WithKnownChats(lookup))

	api := &MockTelegramAPIClient{
		ChannelsGetChannelsFunc: func(context.Context, []tg.InputChannelClass) (tg.MessagesChatsClass, error) {
			return nil, tgerr.New(400, "CHANNEL_INVALID")
		},
		MessagesGetChatsFunc: func(context.Context, []int64) (tg.MessagesChatsClass, error) {
			return &tg.MessagesChats{Chats: []tg.ChatClass{&tg.Chat{ID: 555, Title: "Friends"}}}, nil
		},
	}

	d, err := r.Resolve(context.Background(), api, domain.RefFromID(555))
	require.NoError(t, err)
	assert.Equal(t, domain.ChatTypeGroup, d.Kind)
}

func TestResolve_PlainIDNotFound(t *testing.T) {
	r := newTestResolver()
	api := &MockTelegramAPIClient{
		ChannelsGetChannelsFunc: func(context.Context, []tg.InputChannelClass) (tg.MessagesChatsClass, error) {
			return nil, tgerr.New(400, "CHANNEL_PRIVATE")
		},
		MessagesGetChatsFunc: func(context.Context, []int64) (tg.MessagesChatsClass, error) {
			return nil, tgerr.New(400, "CHAT_ID_INVALID")
		},
	}

	_, err := r.Resolve(context.Background(), api, domain.RefFromID(555))
	assert.ErrorIs(t, err, domain.ErrAccessDenied)

	api.ChannelsGetChannelsFunc = func(context.Context, []tg.InputChannelClass) (tg.MessagesChatsClass, error) {
		return nil, errors.New("CHANNEL_INVALID")
	}
	_, err = r.Resolve(context.Background(), api, domain.RefFromID(555))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
