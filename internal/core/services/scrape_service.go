package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gotd/td/tg"

	"telegram-group-scraper/internal/domain"
	"telegram-group-scraper/internal/ports"
	"telegram-group-scraper/internal/telegram"
)

var (
	// ErrGroupNotFound - терминальная ошибка, указывающая, что группа не может быть найдена.
	ErrGroupNotFound = errors.New("group not resolvable")
	// ErrInviteNotJoined возвращается для инвайт-ссылок на группы, в которых аккаунт не состоит.
	ErrInviteNotJoined = errors.New("account has not joined the invite chat")

	// inviteLinkRegexp распознает инвайт-ссылки вида t.me/+hash и t.me/joinchat/hash.
	inviteLinkRegexp = regexp.MustCompile(`t\.me/(?:\+|joinchat/)([A-Za-z0-9_-]+)`)
)

// ScrapeConfig хранит конфигурацию для ScrapeService.
type ScrapeConfig struct {
	// PageSize — размер страницы для запросов списка участников и истории.
	PageSize int
	// RequestDelay — пауза между последовательными запросами страниц.
	RequestDelay time.Duration
	// OperationTimeout — таймаут для одного вызова Telegram API.
	OperationTimeout time.Duration
	// ClientRetryPause — продолжительность паузы перед повторной попыткой получить клиент от роутера.
	ClientRetryPause time.Duration
}

// ScrapeOption — функциональная опция для настройки ScrapeService.
type ScrapeOption func(*ScrapeService)

// WithPageSize устанавливает размер страницы запросов.
func WithPageSize(n int) ScrapeOption {
	return func(s *ScrapeService) {
		if n > 0 {
			s.config.PageSize = n
		}
	}
}

// WithRequestDelay устанавливает паузу между запросами страниц.
func WithRequestDelay(d time.Duration) ScrapeOption {
	return func(s *ScrapeService) {
		if d >= 0 {
			s.config.RequestDelay = d
		}
	}
}

// WithOperationTimeout устанавливает таймаут для одной операции API.
func WithOperationTimeout(d time.Duration) ScrapeOption {
	return func(s *ScrapeService) {
		s.config.OperationTimeout = d
	}
}

// WithClientRetryPause устанавливает длительность паузы между повторными попытками получения клиента.
func WithClientRetryPause(d time.Duration) ScrapeOption {
	return func(s *ScrapeService) {
		s.config.ClientRetryPause = d
	}
}

// WithScrapeLogger устанавливает логгер для сервиса.
func WithScrapeLogger(l *slog.Logger) ScrapeOption {
	return func(s *ScrapeService) {
		if l != nil {
			s.log = l
		}
	}
}

// ScrapeService — драйвер выгрузки данных группы через пул клиентов Telegram.
// Сервис не хранит состояние и безопасен для одновременного использования.
type ScrapeService struct {
	router ports.Router
	config ScrapeConfig
	log    *slog.Logger
}

// NewScrapeService создает новый ScrapeService с использованием функциональных опций.
func NewScrapeService(r ports.Router, opts ...ScrapeOption) *ScrapeService {
	// Конфигурация по умолчанию.
	s := &ScrapeService{
		router: r,
		config: ScrapeConfig{
			PageSize:         200,
			RequestDelay:     500 * time.Millisecond,
			OperationTimeout: 30 * time.Second,
			ClientRetryPause: 1 * time.Second,
		},
		log: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Resolve принимает @username, ссылку t.me, инвайт-ссылку или числовой
// идентификатор и возвращает разрешенную группу.
func (s *ScrapeService) Resolve(ctx context.Context, identifier string) (*domain.Group, error) {
	target := strings.TrimSpace(identifier)
	if target == "" {
		return nil, fmt.Errorf("%w: empty identifier", ErrGroupNotFound)
	}

	if matches := inviteLinkRegexp.FindStringSubmatch(target); len(matches) > 1 {
		return s.resolveByInvite(ctx, matches[1])
	}

	if id, ok := parseNumericID(target); ok {
		return s.resolveByID(ctx, id)
	}

	return s.resolveByUsername(ctx, normalizeUsername(target))
}

// GroupInfo возвращает сводку о группе, включая число участников.
func (s *ScrapeService) GroupInfo(ctx context.Context, group *domain.Group) (*domain.GroupInfo, error) {
	logArgs := []any{"operation", "ChannelsGetFullChannel", "group_id", group.ID}
	res, err := s.executeOperation(ctx, logArgs, func(ctx context.Context, cl ports.TelegramClient) (any, error) {
		return cl.ChannelsGetFullChannel(ctx, telegram.InputChannel(group))
	})
	if err != nil {
		return nil, err
	}

	info := &domain.GroupInfo{
		ID:       group.ID,
		Title:    group.Title,
		Username: group.Username,
		Type:     group.Type(),
	}

	chatFull, ok := res.(*tg.MessagesChatFull)
	if !ok || chatFull == nil {
		return nil, errors.New("unexpected response from ChannelsGetFullChannel")
	}
	if full, ok := chatFull.FullChat.(*tg.ChannelFull); ok {
		info.MembersCount = full.ParticipantsCount
	}

	return info, nil
}

// ScrapeMembers постранично выгружает список участников группы.
// При ошибке на очередной странице возвращает уже собранные записи вместе с ошибкой.
func (s *ScrapeService) ScrapeMembers(ctx context.Context, group *domain.Group, opts ports.MemberScrapeOptions) ([]domain.Member, error) {
	pageSize := s.config.PageSize
	if opts.Limit > 0 && opts.Limit < pageSize {
		pageSize = opts.Limit
	}

	s.log.InfoContext(ctx, "Starting member scrape", "group_id", group.ID, "limit", opts.Limit, "page_size", pageSize)

	var members []domain.Member
	seen := make(map[int64]struct{})
	offset := 0

	for {
		logArgs := []any{"operation", "ChannelsGetParticipants", "group_id", group.ID, "offset", offset}
		res, err := s.executeOperation(ctx, logArgs, func(ctx context.Context, cl ports.TelegramClient) (any, error) {
			return cl.ChannelsGetParticipants(ctx, &tg.ChannelsGetParticipantsRequest{
				Channel: telegram.InputChannel(group),
				Filter:  &tg.ChannelParticipantsRecent{},
				Offset:  offset,
				Limit:   pageSize,
			})
		})
		if err != nil {
			return members, fmt.Errorf("member scrape failed at offset %d: %w", offset, err)
		}

		page, ok := res.(*tg.ChannelsChannelParticipants)
		if !ok {
			// ChannelsChannelParticipantsNotModified: данных больше нет.
			break
		}
		if len(page.Participants) == 0 {
			break
		}

		for _, userClass := range page.Users {
			user, ok := userClass.(*tg.User)
			if !ok {
				continue
			}
			if _, dup := seen[user.ID]; dup {
				continue
			}
			seen[user.ID] = struct{}{}

			member := telegram.MemberFromUser(user)
			if opts.FetchBios {
				member.Bio = s.fetchBio(ctx, user)
			}
			members = append(members, member)

			if opts.Limit > 0 && len(members) >= opts.Limit {
				break
			}
		}

		if opts.Progress != nil {
			opts.Progress(len(members))
		}

		if opts.Limit > 0 && len(members) >= opts.Limit {
			break
		}

		offset += len(page.Participants)
		if err := s.pause(ctx); err != nil {
			return members, err
		}
	}

	s.log.InfoContext(ctx, "Member scrape finished", "group_id", group.ID, "count", len(members))
	return members, nil
}

// ScrapeMessages постранично выгружает историю сообщений от новых к старым.
// Сообщения новее Until пропускаются, на первом сообщении старше Since чтение прекращается.
func (s *ScrapeService) ScrapeMessages(ctx context.Context, group *domain.Group, opts ports.MessageScrapeOptions) ([]domain.Message, error) {
	// История отдается страницами не более 100 сообщений.
	pageSize := s.config.PageSize
	if pageSize > 100 {
		pageSize = 100
	}
	if opts.Limit > 0 && opts.Limit < pageSize {
		pageSize = opts.Limit
	}

	s.log.InfoContext(ctx, "Starting message scrape",
		"group_id", group.ID,
		"limit", opts.Limit,
		"since", opts.Since,
		"until", opts.Until,
	)

	var messages []domain.Message
	offsetID := 0

	for {
		logArgs := []any{"operation", "MessagesGetHistory", "group_id", group.ID, "offset_id", offsetID}
		res, err := s.executeOperation(ctx, logArgs, func(ctx context.Context, cl ports.TelegramClient) (any, error) {
			return cl.MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{
				Peer:     telegram.InputPeer(group),
				OffsetID: offsetID,
				Limit:    pageSize,
			})
		})
		if err != nil {
			return messages, fmt.Errorf("message scrape failed at offset %d: %w", offsetID, err)
		}

		pageMessages, users := unpackHistory(res)
		if len(pageMessages) == 0 {
			break
		}

		reachedSince := false
		for _, msgClass := range pageMessages {
			msg, ok := msgClass.(*tg.Message)
			if !ok {
				// Сервисные и пустые сообщения пропускаем, но двигаем курсор.
				offsetID = messageClassID(msgClass, offsetID)
				continue
			}
			offsetID = msg.ID

			msgTime := time.Unix(int64(msg.Date), 0).UTC()
			if !opts.Until.IsZero() && msgTime.After(opts.Until) {
				continue
			}
			if !opts.Since.IsZero() && msgTime.Before(opts.Since) {
				reachedSince = true
				break
			}

			messages = append(messages, telegram.MessageFromTG(msg, users))
			if opts.Limit > 0 && len(messages) >= opts.Limit {
				break
			}
		}

		if opts.Progress != nil {
			opts.Progress(len(messages))
		}

		if reachedSince || (opts.Limit > 0 && len(messages) >= opts.Limit) {
			break
		}

		if err := s.pause(ctx); err != nil {
			return messages, err
		}
	}

	s.log.InfoContext(ctx, "Message scrape finished", "group_id", group.ID, "count", len(messages))
	return messages, nil
}

// fetchBio запрашивает полный профиль пользователя ради поля bio.
// Ошибка не считается фатальной для выгрузки.
func (s *ScrapeService) fetchBio(ctx context.Context, user *tg.User) string {
	accessHash, ok := user.GetAccessHash()
	if !ok {
		return ""
	}

	logArgs := []any{"operation", "UsersGetFullUser", "user_id", user.ID}
	res, err := s.executeOperation(ctx, logArgs, func(ctx context.Context, cl ports.TelegramClient) (any, error) {
		return cl.UsersGetFullUser(ctx, &tg.InputUser{UserID: user.ID, AccessHash: accessHash})
	})
	if err != nil {
		s.log.WarnContext(ctx, "Failed to fetch user bio, leaving empty", "user_id", user.ID, "error", err)
		return ""
	}

	userFull, ok := res.(*tg.UsersUserFull)
	if !ok {
		return ""
	}
	return userFull.FullUser.About
}

func (s *ScrapeService) resolveByUsername(ctx context.Context, username string) (*domain.Group, error) {
	logArgs := []any{"operation", "ContactsResolveUsername", "username", username}
	res, err := s.executeOperation(ctx, logArgs, func(ctx context.Context, cl ports.TelegramClient) (any, error) {
		return cl.ContactsResolveUsername(ctx, &tg.ContactsResolveUsernameRequest{Username: username})
	})
	if err != nil {
		return nil, err
	}

	resolved, ok := res.(*tg.ContactsResolvedPeer)
	if !ok || resolved == nil {
		return nil, fmt.Errorf("%w: %s", ErrGroupNotFound, username)
	}

	for _, chat := range resolved.Chats {
		if channel, ok := chat.(*tg.Channel); ok {
			return groupFromChannel(channel), nil
		}
	}

	return nil, fmt.Errorf("%w: %s resolved to non-channel peer", ErrGroupNotFound, username)
}

func (s *ScrapeService) resolveByInvite(ctx context.Context, hash string) (*domain.Group, error) {
	logArgs := []any{"operation", "MessagesCheckChatInvite"}
	res, err := s.executeOperation(ctx, logArgs, func(ctx context.Context, cl ports.TelegramClient) (any, error) {
		return cl.MessagesCheckChatInvite(ctx, hash)
	})
	if err != nil {
		return nil, err
	}

	switch invite := res.(type) {
	case *tg.ChatInviteAlready:
		if channel, ok := invite.Chat.(*tg.Channel); ok {
			return groupFromChannel(channel), nil
		}
		return nil, fmt.Errorf("%w: invite points to non-channel chat", ErrGroupNotFound)
	case *tg.ChatInvitePeek:
		if channel, ok := invite.Chat.(*tg.Channel); ok {
			return groupFromChannel(channel), nil
		}
		return nil, fmt.Errorf("%w: invite points to non-channel chat", ErrGroupNotFound)
	case *tg.ChatInvite:
		// Аккаунт не состоит в группе: без вступления данные недоступны.
		return nil, fmt.Errorf("%w: %s", ErrInviteNotJoined, invite.Title)
	default:
		return nil, fmt.Errorf("%w: unexpected invite response", ErrGroupNotFound)
	}
}

func (s *ScrapeService) resolveByID(ctx context.Context, id int64) (*domain.Group, error) {
	logArgs := []any{"operation", "ChannelsGetChannels", "channel_id", id}
	res, err := s.executeOperation(ctx, logArgs, func(ctx context.Context, cl ports.TelegramClient) (any, error) {
		return cl.ChannelsGetChannels(ctx, []tg.InputChannelClass{&tg.InputChannel{ChannelID: id}})
	})
	if err != nil {
		return nil, err
	}

	chats, ok := res.(tg.MessagesChatsClass)
	if !ok || chats == nil {
		return nil, fmt.Errorf("%w: id %d", ErrGroupNotFound, id)
	}

	for _, chat := range chats.GetChats() {
		if channel, ok := chat.(*tg.Channel); ok && channel.ID == id {
			return groupFromChannel(channel), nil
		}
	}

	return nil, fmt.Errorf("%w: id %d", ErrGroupNotFound, id)
}

// pause выдерживает паузу между запросами страниц, уважая отмену контекста.
func (s *ScrapeService) pause(ctx context.Context) error {
	if s.config.RequestDelay <= 0 {
		return ctx.Err()
	}
	select {
	case <-time.After(s.config.RequestDelay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *ScrapeService) executeOperation(ctx context.Context, logArgs []any, fn func(ctx context.Context, cl ports.TelegramClient) (any, error)) (any, error) {
	// Внутренний цикл отвечает за получение клиента. Он "бесконечный", но ограничен родительским контекстом.
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		s.log.DebugContext(ctx, "Attempting to get a client from the router")
		apiClient, err := s.router.GetClient(ctx)
		if err != nil {
			s.log.WarnContext(ctx, "Failed to get a client from the router, will retry", "error", err, "pause", s.config.ClientRetryPause)
			select {
			case <-time.After(s.config.ClientRetryPause):
				continue
			case <-ctx.Done():
				return nil, fmt.Errorf("не удалось получить клиент, так как контекст был отменен: %w", ctx.Err())
			}
		}

		s.log.DebugContext(ctx, "Obtained client successfully", "client_id", apiClient.ID())

		opCtx, opCancel := context.WithTimeout(ctx, s.config.OperationTimeout)
		res, opErr := fn(opCtx, apiClient)
		opCancel()

		finalLogArgs := append(logArgs, "client_id", apiClient.ID())

		if opErr == nil {
			s.log.DebugContext(ctx, "API operation executed successfully", finalLogArgs...)
			return res, nil // Успех
		}

		finalLogArgs = append(finalLogArgs, "error", opErr)
		s.log.WarnContext(ctx, "API operation failed", finalLogArgs...)
		return nil, fmt.Errorf("операция API завершилась с ошибкой: %w", opErr)
	}
}

// unpackHistory извлекает сообщения и индекс пользователей из ответа истории.
func unpackHistory(res any) ([]tg.MessageClass, map[int64]*tg.User) {
	var msgs []tg.MessageClass
	var users []tg.UserClass

	switch h := res.(type) {
	case *tg.MessagesChannelMessages:
		msgs, users = h.Messages, h.Users
	case *tg.MessagesMessagesSlice:
		msgs, users = h.Messages, h.Users
	case *tg.MessagesMessages:
		msgs, users = h.Messages, h.Users
	default:
		return nil, nil
	}

	index := make(map[int64]*tg.User, len(users))
	for _, u := range users {
		if user, ok := u.(*tg.User); ok {
			index[user.ID] = user
		}
	}
	return msgs, index
}

// messageClassID возвращает ID сообщения любого типа для продвижения курсора.
func messageClassID(msg tg.MessageClass, fallback int) int {
	switch m := msg.(type) {
	case *tg.Message:
		return m.ID
	case *tg.MessageService:
		return m.ID
	case *tg.MessageEmpty:
		return m.ID
	default:
		return fallback
	}
}

// groupFromChannel строит доменную группу из канала API.
func groupFromChannel(ch *tg.Channel) *domain.Group {
	accessHash, _ := ch.GetAccessHash()
	return &domain.Group{
		ID:         ch.ID,
		AccessHash: accessHash,
		Title:      ch.Title,
		Username:   ch.Username,
		Broadcast:  ch.Broadcast,
		Megagroup:  ch.Megagroup,
	}
}

// parseNumericID распознает числовые идентификаторы, включая форму -100XXXXXXXXXX.
func parseNumericID(target string) (int64, bool) {
	raw := strings.TrimPrefix(target, "-100")
	if raw == target && strings.HasPrefix(target, "-") {
		raw = strings.TrimPrefix(target, "-")
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	// Числом считаем только строку целиком из цифр (после префикса).
	for _, r := range raw {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	return id, true
}

// normalizeUsername убирает @ и префиксы ссылок t.me.
func normalizeUsername(target string) string {
	u := strings.TrimPrefix(target, "@")
	u = strings.TrimPrefix(u, "https://")
	u = strings.TrimPrefix(u, "http://")
	u = strings.TrimPrefix(u, "t.me/")
	u = strings.TrimSuffix(u, "/")
	return u
}
