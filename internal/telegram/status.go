package telegram

import (
	"strconv"
	"strings"
	"time"

	"github.com/gotd/td/tg"

	"telegram-group-scraper/internal/domain"
)

// DecodeLastSeen преобразует статус пользователя Telegram в строковое
// представление поля last_seen. Точное время последнего визита
// возвращается в формате RFC3339 (UTC).
func DecodeLastSeen(status tg.UserStatusClass) string {
	switch s := status.(type) {
	case nil:
		return ""
	case *tg.UserStatusOnline:
		return domain.LastSeenOnline
	case *tg.UserStatusOffline:
		if s.WasOnline > 0 {
			return time.Unix(int64(s.WasOnline), 0).UTC().Format(time.RFC3339)
		}
		return domain.LastSeenOffline
	case *tg.UserStatusRecently:
		return domain.LastSeenRecently
	case *tg.UserStatusLastWeek:
		return domain.LastSeenLastWeek
	case *tg.UserStatusLastMonth:
		return domain.LastSeenLastMonth
	default:
		// UserStatusEmpty и неизвестные варианты: статус скрыт.
		return domain.LastSeenHidden
	}
}

// DecodeForwardFrom извлекает источник пересылки из заголовка сообщения.
// Пустая строка означает, что сообщение не является пересланным.
func DecodeForwardFrom(msg *tg.Message) string {
	fwd, ok := msg.GetFwdFrom()
	if !ok {
		return ""
	}

	if name, ok := fwd.GetFromName(); ok && name != "" {
		return name
	}
	if from, ok := fwd.GetFromID(); ok {
		switch peer := from.(type) {
		case *tg.PeerUser:
			return "user" + strconv.FormatInt(peer.UserID, 10)
		case *tg.PeerChannel:
			return "channel" + strconv.FormatInt(peer.ChannelID, 10)
		case *tg.PeerChat:
			return "chat" + strconv.FormatInt(peer.ChatID, 10)
		}
	}

	return "forwarded"
}

// DecodeMediaType возвращает имя типа вложения или пустую строку,
// если вложения нет.
func DecodeMediaType(media tg.MessageMediaClass) string {
	switch media.(type) {
	case nil, *tg.MessageMediaEmpty:
		return ""
	default:
		return media.TypeName()
	}
}

// MemberFromUser строит доменную запись участника из пользователя API.
// Bio дозаполняется отдельным запросом в драйвере выгрузки.
func MemberFromUser(user *tg.User) domain.Member {
	return domain.Member{
		UserID:    user.ID,
		Username:  user.Username,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Phone:     user.Phone,
		IsBot:     user.Bot,
		LastSeen:  DecodeLastSeen(user.Status),
		IsPremium: user.Premium,
	}
}

// MessageFromTG строит доменную запись сообщения. users — индекс
// пользователей из того же ответа API для подстановки имени отправителя.
func MessageFromTG(msg *tg.Message, users map[int64]*tg.User) domain.Message {
	result := domain.Message{
		MessageID: int64(msg.ID),
		Timestamp: time.Unix(int64(msg.Date), 0).UTC().Format(time.RFC3339),
		Text:      msg.Message,
	}

	if from, ok := msg.GetFromID(); ok {
		if peer, isUser := from.(*tg.PeerUser); isUser {
			senderID := peer.UserID
			result.SenderID = &senderID
			if sender, found := users[senderID]; found {
				result.SenderUsername = sender.Username
				result.SenderName = strings.TrimSpace(sender.FirstName + " " + sender.LastName)
			}
		}
	}

	if reply, ok := msg.GetReplyTo(); ok {
		if header, isMsg := reply.(*tg.MessageReplyHeader); isMsg {
			if replyTo, has := header.GetReplyToMsgID(); has {
				replyID := int64(replyTo)
				result.ReplyToID = &replyID
			}
		}
	}

	result.ForwardFrom = DecodeForwardFrom(msg)

	if media, ok := msg.GetMedia(); ok {
		result.MediaType = DecodeMediaType(media)
		result.HasMedia = result.MediaType != ""
	}

	return result
}

// InputChannel возвращает ссылку на канал для запросов API.
func InputChannel(g *domain.Group) *tg.InputChannel {
	return &tg.InputChannel{ChannelID: g.ID, AccessHash: g.AccessHash}
}

// InputPeer возвращает ссылку на канал как peer для запросов истории.
func InputPeer(g *domain.Group) *tg.InputPeerChannel {
	return &tg.InputPeerChannel{ChannelID: g.ID, AccessHash: g.AccessHash}
}
