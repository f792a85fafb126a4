package services

import (
	"context"

	"github.com/gotd/td/tg"

	"telegram-group-scraper/internal/ports"
)

// mockTelegramClient - мок-реализация ports.TelegramClient для тестирования.
// Каждый метод делегирует в соответствующее поле-функцию, если оно задано.
type mockTelegramClient struct {
	ContactsResolveUsernameFunc func(ctx context.Context, req *tg.ContactsResolveUsernameRequest) (*tg.ContactsResolvedPeer, error)
	MessagesCheckChatInviteFunc func(ctx context.Context, hash string) (tg.ChatInviteClass, error)
	ChannelsGetChannelsFunc     func(ctx context.Context, id []tg.InputChannelClass) (tg.MessagesChatsClass, error)
	ChannelsGetParticipantsFunc func(ctx context.Context, req *tg.ChannelsGetParticipantsRequest) (tg.ChannelsChannelParticipantsClass, error)
	MessagesGetHistoryFunc      func(ctx context.Context, req *tg.MessagesGetHistoryRequest) (tg.MessagesMessagesClass, error)
	UsersGetFullUserFunc        func(ctx context.Context, inputUser tg.InputUserClass) (*tg.UsersUserFull, error)
	ChannelsGetFullChannelFunc  func(ctx context.Context, channel tg.InputChannelClass) (*tg.MessagesChatFull, error)
}

func (m *mockTelegramClient) ID() string { return "mock-client" }

func (m *mockTelegramClient) Start(ctx context.Context) {}

func (m *mockTelegramClient) Health(ctx context.Context) error { return nil }

func (m *mockTelegramClient) ContactsResolveUsername(ctx context.Context, req *tg.ContactsResolveUsernameRequest) (*tg.ContactsResolvedPeer, error) {
	if m.ContactsResolveUsernameFunc != nil {
		return m.ContactsResolveUsernameFunc(ctx, req)
	}
	return nil, nil
}

func (m *mockTelegramClient) MessagesCheckChatInvite(ctx context.Context, hash string) (tg.ChatInviteClass, error) {
	if m.MessagesCheckChatInviteFunc != nil {
		return m.MessagesCheckChatInviteFunc(ctx, hash)
	}
	return nil, nil
}

func (m *mockTelegramClient) ChannelsGetChannels(ctx context.Context, id []tg.InputChannelClass) (tg.MessagesChatsClass, error) {
	if m.ChannelsGetChannelsFunc != nil {
		return m.ChannelsGetChannelsFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockTelegramClient) ChannelsGetParticipants(ctx context.Context, req *tg.ChannelsGetParticipantsRequest) (tg.ChannelsChannelParticipantsClass, error) {
	if m.ChannelsGetParticipantsFunc != nil {
		return m.ChannelsGetParticipantsFunc(ctx, req)
	}
	return nil, nil
}

func (m *mockTelegramClient) MessagesGetHistory(ctx context.Context, req *tg.MessagesGetHistoryRequest) (tg.MessagesMessagesClass, error) {
	if m.MessagesGetHistoryFunc != nil {
		return m.MessagesGetHistoryFunc(ctx, req)
	}
	return nil, nil
}

func (m *mockTelegramClient) UsersGetFullUser(ctx context.Context, inputUser tg.InputUserClass) (*tg.UsersUserFull, error) {
	if m.UsersGetFullUserFunc != nil {
		return m.UsersGetFullUserFunc(ctx, inputUser)
	}
	return nil, nil
}

func (m *mockTelegramClient) ChannelsGetFullChannel(ctx context.Context, channel tg.InputChannelClass) (*tg.MessagesChatFull, error) {
	if m.ChannelsGetFullChannelFunc != nil {
		return m.ChannelsGetFullChannelFunc(ctx, channel)
	}
	return nil, nil
}

// mockRouter - мок-реализация ports.Router, всегда возвращающая один клиент.
type mockRouter struct {
	client ports.TelegramClient
	err    error
}

func (m *mockRouter) GetClient(ctx context.Context) (ports.TelegramClient, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.client, nil
}

func (m *mockRouter) Stop() {}
