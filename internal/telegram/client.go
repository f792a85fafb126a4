package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
	"golang.org/x/term"

	trm "telegram-group-scraper/internal/pkg/term"
)

var (
	// ErrFloodWaitActive возвращается, когда клиент не может выполнить запрос из-за активного ограничения FLOOD_WAIT.
	ErrFloodWaitActive = errors.New("client is in flood wait")
	// floodWaitRegex используется для парсинга длительности ожидания из сообщения об ошибке.
	floodWaitRegex = regexp.MustCompile(`FLOOD_WAIT \((\d+)\)`)
)

// telegramAPI представляет необработанные методы API, которые мы используем.
type telegramAPI interface {
	UsersGetUsers(ctx context.Context, request []tg.InputUserClass) ([]tg.UserClass, error)
	ContactsResolveUsername(ctx context.Context, req *tg.ContactsResolveUsernameRequest) (*tg.ContactsResolvedPeer, error)
	MessagesCheckChatInvite(ctx context.Context, hash string) (tg.ChatInviteClass, error)
	ChannelsGetChannels(ctx context.Context, id []tg.InputChannelClass) (tg.MessagesChatsClass, error)
	ChannelsGetParticipants(ctx context.Context, req *tg.ChannelsGetParticipantsRequest) (tg.ChannelsChannelParticipantsClass, error)
	MessagesGetHistory(ctx context.Context, req *tg.MessagesGetHistoryRequest) (tg.MessagesMessagesClass, error)
	UsersGetFullUser(ctx context.Context, inputUser tg.InputUserClass) (*tg.UsersUserFull, error)
	ChannelsGetFullChannel(ctx context.Context, channel tg.InputChannelClass) (*tg.MessagesChatFull, error)
	HelpGetConfig(ctx context.Context) (*tg.Config, error)
}

// telegramAuth представляет клиент аутентификации.
type telegramAuth interface {
	auth.FlowClient
}

// telegramRunner определяет зависимости от клиента gotd.
// Это позволяет создавать моки в тестах.
type telegramRunner interface {
	Run(ctx context.Context, f func(ctx context.Context) error) error
	API() telegramAPI
	Auth() telegramAuth
}

// prodRunner является оберткой вокруг реального *telegram.Client для удовлетворения интерфейса telegramRunner.
type prodRunner struct {
	*telegram.Client
}

func (p *prodRunner) API() telegramAPI {
	return &prodAPI{Client: p.Client.API()}
}

// prodAPI адаптирует *tg.Client к интерфейсу telegramAPI: в используемой
// версии gotd сгенерированный метод ContactsResolveUsername принимает строку,
// а не *tg.ContactsResolveUsernameRequest.
type prodAPI struct {
	*tg.Client
}

func (a *prodAPI) ContactsResolveUsername(ctx context.Context, req *tg.ContactsResolveUsernameRequest) (*tg.ContactsResolvedPeer, error) {
	return a.Client.ContactsResolveUsername(ctx, req.Username)
}

func (p *prodRunner) Auth() telegramAuth {
	return p.Client.Auth()
}

// authFlow определяет интерфейс для процесса аутентификации.
type authFlow interface {
	Run(ctx context.Context, client auth.FlowClient) error
}

// Client представляет собой потокобезопасный клиент для Telegram API,
// который инкапсулирует логику аутентификации, обработки ошибок FLOOD_WAIT и выполнения запросов.
type Client struct {
	id         string
	tgRunner   telegramRunner
	authFlow   authFlow
	isTerminal func(fd int) bool
	clock      func() time.Time
	log        *slog.Logger

	mu             sync.RWMutex
	unhealthyUntil time.Time
	runErr         chan error
	startOnce      sync.Once
}

// Config содержит конфигурацию для создания нового клиента.
type Config struct {
	APIID       int
	APIHash     string
	PhoneNumber string
	SessionPath string
}

// ClientOption определяет функциональную опцию для конфигурации клиента.
type ClientOption func(*Client)

// WithLogger устанавливает логгер для клиента.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// NewClient создает новый экземпляр Client.
func NewClient(cfg Config, opts ...ClientOption) *Client {
	// Аутентификатор для интерактивного входа через терминал.
	termAuth := trm.NewTerminal(cfg.PhoneNumber)

	sessionStorage := &session.FileStorage{Path: cfg.SessionPath}

	tgClient := telegram.NewClient(cfg.APIID, cfg.APIHash, telegram.Options{
		SessionStorage: sessionStorage,
	})

	c := &Client{
		id:         uuid.NewString(),
		tgRunner:   &prodRunner{Client: tgClient},
		authFlow:   auth.NewFlow(termAuth, auth.SendCodeOptions{}),
		isTerminal: func(fd int) bool { return term.IsTerminal(fd) },
		clock:      time.Now,
		log:        slog.Default(),
		runErr:     make(chan error, 1),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// ID возвращает уникальный идентификатор клиента.
func (c *Client) ID() string {
	return c.id
}

// Start запускает фоновый процесс клиента, включая аутентификацию.
// Должен быть вызван один раз перед использованием клиента.
func (c *Client) Start(ctx context.Context) {
	c.startOnce.Do(func() {
		go func() {
			c.log.InfoContext(ctx, "Starting telegram client background runner", "client_id", c.id)
			err := c.tgRunner.Run(ctx, func(runCtx context.Context) error {
				// Проверяем статус аутентификации при запуске.
				if err := c.ensureAuthorized(runCtx); err != nil {
					return err
				}
				c.log.InfoContext(runCtx, "Telegram client authenticated and ready", "client_id", c.id)

				// Держим соединение активным, пока не завершится контекст.
				<-runCtx.Done()
				return runCtx.Err()
			})

			if err != nil && !errors.Is(err, context.Canceled) {
				c.log.ErrorContext(ctx, "Telegram client background runner exited with error", "client_id", c.id, "error", err)
			} else {
				c.log.InfoContext(ctx, "Telegram client background runner stopped", "client_id", c.id)
			}

			c.runErr <- err
			close(c.runErr)
		}()
	})
}

// ensureAuthorized проверяет сессию и при необходимости запускает
// интерактивную аутентификацию.
func (c *Client) ensureAuthorized(ctx context.Context) error {
	_, err := c.tgRunner.API().UsersGetUsers(ctx, []tg.InputUserClass{&tg.InputUserSelf{}})
	if err == nil {
		return nil
	}

	// Если ошибка - это ожидаемое отсутствие сессии, логируем кратко.
	// Для всех остальных, непредвиденных ошибок, сохраняем полный вывод.
	if strings.Contains(err.Error(), "AUTH_KEY_UNREGISTERED") {
		c.log.WarnContext(ctx, "Session check failed, attempting interactive auth", "client_id", c.id, "reason", "AUTH_KEY_UNREGISTERED")
	} else {
		c.log.WarnContext(ctx, "Session check failed, attempting interactive auth", "client_id", c.id, "error", err)
	}

	if !c.isTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("session is invalid and cannot perform interactive auth in non-terminal: %w", err)
	}
	if authErr := c.authFlow.Run(ctx, c.tgRunner.Auth()); authErr != nil {
		return fmt.Errorf("interactive auth failed: %w", authErr)
	}
	c.log.InfoContext(ctx, "Interactive auth successful, session saved", "client_id", c.id)
	return nil
}

// Health проверяет работоспособность клиента.
// Если активен FLOOD_WAIT, возвращает ошибку.
// В противном случае выполняет легковесный запрос к API.
func (c *Client) Health(ctx context.Context) error {
	if err := c.checkHealthStatus(); err != nil {
		return err
	}

	return c.do(ctx, func(ctx context.Context) error {
		_, err := c.tgRunner.API().HelpGetConfig(ctx)
		return err
	})
}

// ContactsResolveUsername выполняет запрос ContactsResolveUsername.
func (c *Client) ContactsResolveUsername(ctx context.Context, req *tg.ContactsResolveUsernameRequest) (*tg.ContactsResolvedPeer, error) {
	var result *tg.ContactsResolvedPeer
	c.log.DebugContext(ctx, "Executing API call: ContactsResolveUsername", "username", req.Username)
	err := c.do(ctx, func(ctx context.Context) error {
		res, err := c.tgRunner.API().ContactsResolveUsername(ctx, req)
		if err == nil {
			result = res
		}
		return err
	})
	if err != nil && !errors.Is(err, ErrFloodWaitActive) {
		c.log.WarnContext(ctx, "API call ContactsResolveUsername failed", "username", req.Username, "error", err)
	}
	return result, err
}

// MessagesCheckChatInvite выполняет запрос MessagesCheckChatInvite для инвайт-ссылок.
func (c *Client) MessagesCheckChatInvite(ctx context.Context, hash string) (tg.ChatInviteClass, error) {
	var result tg.ChatInviteClass
	c.log.DebugContext(ctx, "Executing API call: MessagesCheckChatInvite")
	err := c.do(ctx, func(ctx context.Context) error {
		res, err := c.tgRunner.API().MessagesCheckChatInvite(ctx, hash)
		if err == nil {
			result = res
		}
		return err
	})
	if err != nil && !errors.Is(err, ErrFloodWaitActive) {
		c.log.WarnContext(ctx, "API call MessagesCheckChatInvite failed", "error", err)
	}
	return result, err
}

// ChannelsGetChannels выполняет запрос ChannelsGetChannels.
func (c *Client) ChannelsGetChannels(ctx context.Context, id []tg.InputChannelClass) (tg.MessagesChatsClass, error) {
	var result tg.MessagesChatsClass
	c.log.DebugContext(ctx, "Executing API call: ChannelsGetChannels")
	err := c.do(ctx, func(ctx context.Context) error {
		res, err := c.tgRunner.API().ChannelsGetChannels(ctx, id)
		if err == nil {
			result = res
		}
		return err
	})
	if err != nil && !errors.Is(err, ErrFloodWaitActive) {
		c.log.WarnContext(ctx, "API call ChannelsGetChannels failed", "error", err)
	}
	return result, err
}

// ChannelsGetParticipants выполняет запрос одной страницы списка участников.
func (c *Client) ChannelsGetParticipants(ctx context.Context, req *tg.ChannelsGetParticipantsRequest) (tg.ChannelsChannelParticipantsClass, error) {
	var result tg.ChannelsChannelParticipantsClass
	c.log.DebugContext(ctx, "Executing API call: ChannelsGetParticipants", "offset", req.Offset, "limit", req.Limit)
	err := c.do(ctx, func(ctx context.Context) error {
		res, err := c.tgRunner.API().ChannelsGetParticipants(ctx, req)
		if err == nil {
			result = res
		}
		return err
	})
	if err != nil && !errors.Is(err, ErrFloodWaitActive) {
		c.log.WarnContext(ctx, "API call ChannelsGetParticipants failed", "error", err)
	}
	return result, err
}

// MessagesGetHistory выполняет запрос одной страницы истории сообщений.
func (c *Client) MessagesGetHistory(ctx context.Context, req *tg.MessagesGetHistoryRequest) (tg.MessagesMessagesClass, error) {
	var result tg.MessagesMessagesClass
	c.log.DebugContext(ctx, "Executing API call: MessagesGetHistory", "offset_id", req.OffsetID, "limit", req.Limit)
	err := c.do(ctx, func(ctx context.Context) error {
		res, err := c.tgRunner.API().MessagesGetHistory(ctx, req)
		if err == nil {
			result = res
		}
		return err
	})
	if err != nil && !errors.Is(err, ErrFloodWaitActive) {
		c.log.WarnContext(ctx, "API call MessagesGetHistory failed", "error", err)
	}
	return result, err
}

// UsersGetFullUser выполняет запрос UsersGetFullUser.
func (c *Client) UsersGetFullUser(ctx context.Context, inputUser tg.InputUserClass) (*tg.UsersUserFull, error) {
	var result *tg.UsersUserFull
	c.log.DebugContext(ctx, "Executing API call: UsersGetFullUser")
	err := c.do(ctx, func(ctx context.Context) error {
		res, err := c.tgRunner.API().UsersGetFullUser(ctx, inputUser)
		if err == nil {
			result = res
		}
		return err
	})
	if err != nil && !errors.Is(err, ErrFloodWaitActive) {
		c.log.WarnContext(ctx, "API call UsersGetFullUser failed", "error", err)
	}
	return result, err
}

// ChannelsGetFullChannel выполняет запрос ChannelsGetFullChannel.
func (c *Client) ChannelsGetFullChannel(ctx context.Context, channel tg.InputChannelClass) (*tg.MessagesChatFull, error) {
	var result *tg.MessagesChatFull
	c.log.DebugContext(ctx, "Executing API call: ChannelsGetFullChannel")
	err := c.do(ctx, func(ctx context.Context) error {
		res, err := c.tgRunner.API().ChannelsGetFullChannel(ctx, channel)
		if err == nil {
			result = res
		}
		return err
	})
	if err != nil && !errors.Is(err, ErrFloodWaitActive) {
		c.log.WarnContext(ctx, "API call ChannelsGetFullChannel failed", "error", err)
	}
	return result, err
}

// do — это основной метод, который выполняет всю работу.
// Он проверяет состояние клиента, выполняет операцию и обрабатывает ошибки.
func (c *Client) do(ctx context.Context, f func(ctx context.Context) error) error {
	if err := c.checkHealthStatus(); err != nil {
		c.log.WarnContext(ctx, "Client is unhealthy, aborting request", "error", err)
		return err
	}

	// Предполагается, что c.Start() был вызван, и клиент работает в фоновом режиме.
	opErr := f(ctx)

	if opErr != nil {
		// Обрабатываем специфичные ошибки, такие как FLOOD_WAIT.
		c.handleError(opErr)

		// Также проверяем, не отвалился ли сам клиент.
		select {
		case runErr, ok := <-c.runErr:
			if ok && runErr != nil {
				return fmt.Errorf("клиент telegram не запущен: %w (ошибка операции: %v)", runErr, opErr)
			}
		default:
			// Клиент все еще работает, возвращаем ошибку операции.
		}
	}

	return opErr
}

// checkHealthStatus проверяет, не находится ли клиент в состоянии FLOOD_WAIT.
func (c *Client) checkHealthStatus() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.unhealthyUntil.IsZero() && c.clock().Before(c.unhealthyUntil) {
		return fmt.Errorf("%w: active until %v", ErrFloodWaitActive, c.unhealthyUntil)
	}

	return nil
}

// handleError обрабатывает ошибки, ищет FLOOD_WAIT и обновляет состояние клиента.
func (c *Client) handleError(err error) {
	if waitDuration, ok := parseFloodWait(err); ok {
		c.mu.Lock()
		defer c.mu.Unlock()

		c.unhealthyUntil = c.clock().Add(waitDuration)
		c.log.Warn("Client got FLOOD_WAIT, set unhealthy", "wait_duration", waitDuration, "until", c.unhealthyUntil)
	}
}

// parseFloodWait извлекает длительность ожидания из ошибки.
func parseFloodWait(err error) (time.Duration, bool) {
	if err == nil {
		return 0, false
	}

	matches := floodWaitRegex.FindStringSubmatch(err.Error())
	if len(matches) < 2 {
		return 0, false
	}

	seconds, convErr := strconv.Atoi(matches[1])
	if convErr != nil {
		return 0, false
	}

	return time.Duration(seconds) * time.Second, true
}
