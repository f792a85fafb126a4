package ports

import (
	"context"

	"github.com/gotd/td/tg"
)

// TelegramClient определяет публичный интерфейс для клиента Telegram.
type TelegramClient interface {
	ContactsResolveUsername(ctx context.Context, req *tg.ContactsResolveUsernameRequest) (*tg.ContactsResolvedPeer, error)
	MessagesCheckChatInvite(ctx context.Context, hash string) (tg.ChatInviteClass, error)
	ChannelsGetChannels(ctx context.Context, id []tg.InputChannelClass) (tg.MessagesChatsClass, error)
	ChannelsGetParticipants(ctx context.Context, req *tg.ChannelsGetParticipantsRequest) (tg.ChannelsChannelParticipantsClass, error)
	MessagesGetHistory(ctx context.Context, req *tg.MessagesGetHistoryRequest) (tg.MessagesMessagesClass, error)
	UsersGetFullUser(ctx context.Context, inputUser tg.InputUserClass) (*tg.UsersUserFull, error)
	ChannelsGetFullChannel(ctx context.Context, channel tg.InputChannelClass) (*tg.MessagesChatFull, error)
	Health(ctx context.Context) error
	ID() string
	Start(ctx context.Context)
}

// Router определяет интерфейс для роутера клиентов Telegram.
type Router interface {
	GetClient(ctx context.Context) (TelegramClient, error)
	Stop()
}

// Strategy определяет интерфейс для стратегии выбора клиента.
type Strategy interface {
	Next(clients []TelegramClient) (TelegramClient, error)
}
