package bot

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"telegram-group-scraper/cmd/bot/config"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	startCommand    = "start"
	membersCommand  = "members"
	messagesCommand = "messages"
	combinedCommand = "combined"
)

const welcomeText = "Добро пожаловать! Я бот для выгрузки данных из групп Telegram.\n\n" +
	"Команды:\n" +
	"/members <группа> [limit=N] — список участников\n" +
	"/messages <группа> [limit=N since=ГГГГ-ММ-ДД until=ГГГГ-ММ-ДД keywords=a,b chrono=true] — история сообщений\n" +
	"/combined <группа> [те же параметры] — сводка активности по пользователям\n\n" +
	"<группа> — это @username, ссылка t.me, инвайт-ссылка или числовой ID.\n" +
	"Одновременно обрабатывается только одна задача на чат."

// ServerAPI определяет интерфейс клиента бэкенд-сервера.
type ServerAPI interface {
	StartScrape(ctx context.Context, req *ScrapeRequestDTO) (*StartTaskResponse, error)
	GetTaskStatus(ctx context.Context, taskID string) (*TaskStatusResponse, error)
	DownloadResultFile(ctx context.Context, taskID string) ([]byte, error)
}

// Bot представляет собой основной объект Telegram-бота.
type Bot struct {
	api          *tgbotapi.BotAPI
	cfg          config.BotConfig
	serverClient ServerAPI
	taskStore    *TaskStore
	logger       *slog.Logger

	// Функция отправки вынесена в поле для подмены в тестах.
	sendMessageFunc func(msg tgbotapi.Chattable) (tgbotapi.Message, error)
}

// NewBot создает и инициализирует новый экземпляр бота.
func NewBot(cfg config.BotConfig, serverClient ServerAPI, taskStore *TaskStore, logger *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot api: %w", err)
	}

	logger.Info("Authorized on account", slog.String("username", api.Self.UserName))

	return &Bot{
		api:             api,
		cfg:             cfg,
		serverClient:    serverClient,
		taskStore:       taskStore,
		logger:          logger,
		sendMessageFunc: api.Send,
	}, nil
}

// Start запускает основной цикл обработки обновлений от Telegram.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Context cancelled, stopping bot...")
			b.api.StopReceivingUpdates()
			return
		case update := <-updates:
			if update.Message == nil {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}
}

// handleMessage обрабатывает входящее сообщение.
func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}

	// Ответ на любые другие сообщения
	reply := tgbotapi.NewMessage(msg.Chat.ID, "Пожалуйста, используйте команды /members, /messages или /combined. Справка: /start")
	b.sendMessage(reply)
}

// handleCommand обрабатывает команды.
func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	switch msg.Command() {
	case startCommand:
		reply := tgbotapi.NewMessage(msg.Chat.ID, welcomeText)
		b.sendMessage(reply)
	case membersCommand, messagesCommand, combinedCommand:
		b.handleScrapeCommand(ctx, msg)
	default:
		reply := tgbotapi.NewMessage(msg.Chat.ID, "Я не знаю такой команды. Справка: /start")
		b.sendMessage(reply)
	}
}

// handleScrapeCommand запускает задачу выгрузки на бэкенде.
func (b *Bot) handleScrapeCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	logger := b.logger.With(slog.Int64("chat_id", chatID))

	// 1. Проверяем, нет ли уже активной задачи.
	if _, ok := b.taskStore.Get(chatID); ok {
		logger.Warn("user tried to start a new task while another is active")
		reply := tgbotapi.NewMessage(chatID, "Пожалуйста, подождите завершения предыдущей задачи, прежде чем начинать новую.")
		b.sendMessage(reply)
		return
	}

	// 2. Разбираем аргументы команды.
	scrapeReq, err := parseScrapeArgs(msg.Command(), msg.CommandArguments())
	if err != nil {
		logger.Warn("failed to parse command arguments", slog.String("error", err.Error()))
		reply := tgbotapi.NewMessage(chatID, fmt.Sprintf("Не удалось разобрать параметры: %s\nСправка: /start", err))
		b.sendMessage(reply)
		return
	}

	// 3. Запускаем задачу на бэкенде.
	startResp, err := b.serverClient.StartScrape(ctx, scrapeReq)
	if err != nil {
		logger.Error("failed to start task on backend", slog.String("error", err.Error()))
		reply := tgbotapi.NewMessage(chatID, "Не удалось запустить выгрузку на сервере. Пожалуйста, попробуйте позже.")
		b.sendMessage(reply)
		return
	}

	taskID := startResp.TaskID
	logger = logger.With(slog.String("task_id", taskID))
	logger.Info("task started on backend", slog.String("group", scrapeReq.Group), slog.String("kind", scrapeReq.Kind))

	// 4. Сохраняем task_id и запускаем опрос.
	b.taskStore.Set(chatID, taskID)
	go b.pollTaskStatus(context.Background(), chatID, taskID) // Используем новый контекст для фоновой задачи

	reply := tgbotapi.NewMessage(chatID, fmt.Sprintf("✅ Выгрузка %q поставлена в очередь. Ожидайте результата.", scrapeReq.Group))
	b.sendMessage(reply)
}

func (b *Bot) sendMessage(msg tgbotapi.Chattable) {
	if _, err := b.sendMessageFunc(msg); err != nil {
		b.logger.Error("failed to send message", slog.String("error", err.Error()))
	}
}

// pollTaskStatus асинхронно опрашивает статус задачи на бэкенд-сервере.
func (b *Bot) pollTaskStatus(ctx context.Context, chatID int64, taskID string) {
	logger := b.logger.With(slog.Int64("chat_id", chatID), slog.String("task_id", taskID))
	defer b.taskStore.Delete(chatID) // Гарантированно удаляем задачу по завершении.

	ticker := time.NewTicker(time.Duration(b.cfg.PollingIntervalSeconds) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Warn("polling cancelled by context")
			return
		case <-ticker.C:
			logger.Debug("polling task status")
			status, err := b.serverClient.GetTaskStatus(ctx, taskID)
			if err != nil {
				logger.Error("failed to get task status", slog.String("error", err.Error()))
				continue
			}

			switch status.Status {
			case "completed":
				logger.Info("task completed")
				b.sendCompletedResult(ctx, chatID, taskID, status.Result)
				return // Завершаем опрос
			case "failed":
				logger.Warn("task failed", slog.String("reason", status.ErrorMessage))
				reply := tgbotapi.NewMessage(chatID, fmt.Sprintf("Произошла ошибка при выгрузке: %s", status.ErrorMessage))
				b.sendMessage(reply)
				return // Завершаем опрос
			case "pending", "processing":
				logger.Debug("task is in progress", slog.String("status", status.Status))
				// Продолжаем опрос
			default:
				logger.Warn("unknown task status", slog.String("status", status.Status))
			}
		}
	}
}

// sendCompletedResult отправляет пользователю итог выполненной задачи.
func (b *Bot) sendCompletedResult(ctx context.Context, chatID int64, taskID string, result *ResultDTO) {
	logger := b.logger.With(slog.Int64("chat_id", chatID), slog.String("task_id", taskID))

	if result == nil {
		logger.Warn("completed task has no result")
		b.sendMessage(tgbotapi.NewMessage(chatID, "Задача завершена, но результат недоступен."))
		return
	}

	caption := fmt.Sprintf("Выгрузка %q завершена. Строк: %d.", result.GroupTitle, result.Rows)

	if result.FilePath == "" {
		// Экспортер без файла, отправляем только сводку.
		b.sendMessage(tgbotapi.NewMessage(chatID, caption))
		return
	}

	data, err := b.serverClient.DownloadResultFile(ctx, taskID)
	if err != nil {
		logger.Error("failed to download result file", slog.String("error", err.Error()))
		b.sendMessage(tgbotapi.NewMessage(chatID, caption+"\nНе удалось скачать файл результата с сервера."))
		return
	}

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
		Name:  filepath.Base(result.FilePath),
		Bytes: data,
	})
	doc.Caption = caption
	b.sendMessage(doc)
}

// parseScrapeArgs разбирает аргументы команды выгрузки.
// Первый аргумент — группа, остальные — пары key=value.
func parseScrapeArgs(kind, args string) (*ScrapeRequestDTO, error) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return nil, fmt.Errorf("укажите группу: /%s <группа>", kind)
	}

	req := &ScrapeRequestDTO{
		Group: fields[0],
		Kind:  kind,
	}

	for _, field := range fields[1:] {
		key, value, found := strings.Cut(field, "=")
		if !found || value == "" {
			return nil, fmt.Errorf("ожидалась пара key=value, получено %q", field)
		}

		switch key {
		case "limit":
			limit, err := strconv.Atoi(value)
			if err != nil || limit < 0 {
				return nil, fmt.Errorf("limit должен быть неотрицательным числом, получено %q", value)
			}
			req.Limit = limit
		case "since":
			req.Since = value
		case "until":
			req.Until = value
		case "keywords":
			for _, kw := range strings.Split(value, ",") {
				if kw = strings.TrimSpace(kw); kw != "" {
					req.Keywords = append(req.Keywords, kw)
				}
			}
		case "chrono":
			chrono, err := strconv.ParseBool(value)
			if err != nil {
				return nil, fmt.Errorf("chrono должен быть true или false, получено %q", value)
			}
			req.Chronological = chrono
		default:
			return nil, fmt.Errorf("неизвестный параметр %q", key)
		}
	}

	return req, nil
}
