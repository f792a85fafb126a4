package bot

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"telegram-group-scraper/cmd/bot/config"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockServerClient — это мок для ServerAPI.
type mockServerClient struct {
	startScrapeFunc   func(ctx context.Context, req *ScrapeRequestDTO) (*StartTaskResponse, error)
	getTaskStatusFunc func(ctx context.Context, taskID string) (*TaskStatusResponse, error)
	downloadFileFunc  func(ctx context.Context, taskID string) ([]byte, error)
}

func (m *mockServerClient) StartScrape(ctx context.Context, req *ScrapeRequestDTO) (*StartTaskResponse, error) {
	if m.startScrapeFunc != nil {
		return m.startScrapeFunc(ctx, req)
	}
	return &StartTaskResponse{TaskID: "mock-task-id"}, nil
}

func (m *mockServerClient) GetTaskStatus(ctx context.Context, taskID string) (*TaskStatusResponse, error) {
	if m.getTaskStatusFunc != nil {
		return m.getTaskStatusFunc(ctx, taskID)
	}
	return &TaskStatusResponse{Status: "completed"}, nil
}

func (m *mockServerClient) DownloadResultFile(ctx context.Context, taskID string) ([]byte, error) {
	if m.downloadFileFunc != nil {
		return m.downloadFileFunc(ctx, taskID)
	}
	return nil, nil
}

// newTestBot создает бота с моками для тестирования.
func newTestBot(t *testing.T, serverClient ServerAPI) *Bot {
	t.Helper()
	bot := &Bot{
		api: nil, // Не используется напрямую благодаря мокам
		cfg: config.BotConfig{
			PollingIntervalSeconds: 1,
		},
		serverClient: serverClient,
		taskStore:    NewTaskStore(),
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	// Инициализируем поле-функцию пустышкой, чтобы избежать nil pointer dereference.
	// В каждом тесте оно будет заменено на нужный мок.
	bot.sendMessageFunc = func(msg tgbotapi.Chattable) (tgbotapi.Message, error) { return tgbotapi.Message{}, nil }
	return bot
}

// captureMessages подменяет отправку сообщений и собирает их тексты.
func captureMessages(bot *Bot) *[]string {
	var texts []string
	bot.sendMessageFunc = func(msg tgbotapi.Chattable) (tgbotapi.Message, error) {
		if m, ok := msg.(tgbotapi.MessageConfig); ok {
			texts = append(texts, m.Text)
		}
		return tgbotapi.Message{}, nil
	}
	return &texts
}

func commandMessage(chatID int64, text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		Chat: &tgbotapi.Chat{ID: chatID},
		Text: text,
		Entities: []tgbotapi.MessageEntity{
			{Type: "bot_command", Offset: 0, Length: len([]rune(text[:indexOfSpaceOrEnd(text)]))},
		},
	}
}

func indexOfSpaceOrEnd(s string) int {
	for i, r := range s {
		if r == ' ' {
			return i
		}
	}
	return len(s)
}

func TestBot_HandleScrapeCommand(t *testing.T) {
	ctx := context.Background()

	t.Run("starts task and stores task id", func(t *testing.T) {
		var received *ScrapeRequestDTO
		mockClient := &mockServerClient{
			startScrapeFunc: func(ctx context.Context, req *ScrapeRequestDTO) (*StartTaskResponse, error) {
				received = req
				return &StartTaskResponse{TaskID: "task-42"}, nil
			},
			// Задача никогда не завершается, чтобы опрос не удалил запись из taskStore.
			getTaskStatusFunc: func(ctx context.Context, taskID string) (*TaskStatusResponse, error) {
				return &TaskStatusResponse{Status: "processing"}, nil
			},
		}

		bot := newTestBot(t, mockClient)
		texts := captureMessages(bot)

		bot.handleScrapeCommand(ctx, commandMessage(123, "/members @golang limit=100"))

		require.NotNil(t, received)
		assert.Equal(t, "@golang", received.Group)
		assert.Equal(t, "members", received.Kind)
		assert.Equal(t, 100, received.Limit)

		taskID, ok := bot.taskStore.Get(123)
		assert.True(t, ok)
		assert.Equal(t, "task-42", taskID)

		require.Len(t, *texts, 1)
		assert.Contains(t, (*texts)[0], "поставлена в очередь")
	})

	t.Run("rejects command while another task is active", func(t *testing.T) {
		bot := newTestBot(t, &mockServerClient{})
		texts := captureMessages(bot)

		chatID := int64(789)
		bot.taskStore.Set(chatID, "some-active-task-id")

		bot.handleScrapeCommand(ctx, commandMessage(chatID, "/members @golang"))

		require.Len(t, *texts, 1)
		assert.Contains(t, (*texts)[0], "Пожалуйста, подождите завершения предыдущей задачи")
	})

	t.Run("rejects command without group argument", func(t *testing.T) {
		bot := newTestBot(t, &mockServerClient{})
		texts := captureMessages(bot)

		bot.handleScrapeCommand(ctx, commandMessage(456, "/messages"))

		require.Len(t, *texts, 1)
		assert.Contains(t, (*texts)[0], "Не удалось разобрать параметры")
	})

	t.Run("reports backend error", func(t *testing.T) {
		mockClient := &mockServerClient{
			startScrapeFunc: func(ctx context.Context, req *ScrapeRequestDTO) (*StartTaskResponse, error) {
				return nil, assert.AnError
			},
		}
		bot := newTestBot(t, mockClient)
		texts := captureMessages(bot)

		bot.handleScrapeCommand(ctx, commandMessage(456, "/combined @golang"))

		require.Len(t, *texts, 1)
		assert.Contains(t, (*texts)[0], "Не удалось запустить выгрузку")

		_, ok := bot.taskStore.Get(456)
		assert.False(t, ok)
	})
}

func TestBot_HandleCommand_Start(t *testing.T) {
	bot := newTestBot(t, &mockServerClient{})
	texts := captureMessages(bot)

	bot.handleCommand(context.Background(), commandMessage(1, "/start"))

	require.Len(t, *texts, 1)
	assert.Contains(t, (*texts)[0], "Добро пожаловать")
}

func TestBot_HandleCommand_Unknown(t *testing.T) {
	bot := newTestBot(t, &mockServerClient{})
	texts := captureMessages(bot)

	bot.handleCommand(context.Background(), commandMessage(1, "/frobnicate"))

	require.Len(t, *texts, 1)
	assert.Contains(t, (*texts)[0], "Я не знаю такой команды")
}

func TestBot_PollTaskStatus(t *testing.T) {
	t.Run("sends result file on completion", func(t *testing.T) {
		mockClient := &mockServerClient{
			getTaskStatusFunc: func(ctx context.Context, taskID string) (*TaskStatusResponse, error) {
				return &TaskStatusResponse{
					Status: "completed",
					Result: &ResultDTO{GroupTitle: "Go Chat", FilePath: "output/go_chat_members.csv", Rows: 7},
				}, nil
			},
			downloadFileFunc: func(ctx context.Context, taskID string) ([]byte, error) {
				return []byte("user_id,username\n"), nil
			},
		}

		bot := newTestBot(t, mockClient)

		sent := make(chan tgbotapi.Chattable, 2)
		bot.sendMessageFunc = func(msg tgbotapi.Chattable) (tgbotapi.Message, error) {
			sent <- msg
			return tgbotapi.Message{}, nil
		}

		chatID := int64(42)
		bot.taskStore.Set(chatID, "task-1")
		go bot.pollTaskStatus(context.Background(), chatID, "task-1")

		select {
		case msg := <-sent:
			doc, ok := msg.(tgbotapi.DocumentConfig)
			require.True(t, ok, "expected a document, got %T", msg)
			assert.Contains(t, doc.Caption, "Go Chat")
			assert.Contains(t, doc.Caption, "7")
			fileBytes, ok := doc.File.(tgbotapi.FileBytes)
			require.True(t, ok)
			assert.Equal(t, "go_chat_members.csv", fileBytes.Name)
		case <-time.After(3 * time.Second):
			t.Fatal("timed out waiting for result document")
		}

		// Запись о задаче должна быть удалена после завершения опроса.
		assert.Eventually(t, func() bool {
			_, ok := bot.taskStore.Get(chatID)
			return !ok
		}, time.Second, 10*time.Millisecond)
	})

	t.Run("sends error message on failure", func(t *testing.T) {
		mockClient := &mockServerClient{
			getTaskStatusFunc: func(ctx context.Context, taskID string) (*TaskStatusResponse, error) {
				return &TaskStatusResponse{Status: "failed", ErrorMessage: "group not found"}, nil
			},
		}

		bot := newTestBot(t, mockClient)

		sent := make(chan string, 1)
		bot.sendMessageFunc = func(msg tgbotapi.Chattable) (tgbotapi.Message, error) {
			if m, ok := msg.(tgbotapi.MessageConfig); ok {
				sent <- m.Text
			}
			return tgbotapi.Message{}, nil
		}

		go bot.pollTaskStatus(context.Background(), 42, "task-1")

		select {
		case text := <-sent:
			assert.Contains(t, text, "group not found")
		case <-time.After(3 * time.Second):
			t.Fatal("timed out waiting for error message")
		}
	})
}

func TestParseScrapeArgs(t *testing.T) {
	tests := []struct {
		name    string
		kind    string
		args    string
		want    *ScrapeRequestDTO
		wantErr bool
	}{
		{
			name: "только группа",
			kind: "members",
			args: "@golang",
			want: &ScrapeRequestDTO{Group: "@golang", Kind: "members"},
		},
		{
			name: "все параметры",
			kind: "messages",
			args: "t.me/golang limit=500 since=2024-01-01 until=2024-06-30 keywords=go,generics chrono=true",
			want: &ScrapeRequestDTO{
				Group:         "t.me/golang",
				Kind:          "messages",
				Limit:         500,
				Since:         "2024-01-01",
				Until:         "2024-06-30",
				Keywords:      []string{"go", "generics"},
				Chronological: true,
			},
		},
		{
			name:    "нет группы",
			kind:    "members",
			args:    "",
			wantErr: true,
		},
		{
			name:    "нечисловой limit",
			kind:    "members",
			args:    "@golang limit=many",
			wantErr: true,
		},
		{
			name:    "неизвестный параметр",
			kind:    "messages",
			args:    "@golang depth=5",
			wantErr: true,
		},
		{
			name:    "значение без ключа",
			kind:    "messages",
			args:    "@golang limit",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseScrapeArgs(tt.kind, tt.args)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTaskStore(t *testing.T) {
	ts := NewTaskStore()

	_, ok := ts.Get(1)
	assert.False(t, ok)

	ts.Set(1, "task-a")
	taskID, ok := ts.Get(1)
	assert.True(t, ok)
	assert.Equal(t, "task-a", taskID)

	ts.Set(1, "task-b")
	taskID, _ = ts.Get(1)
	assert.Equal(t, "task-b", taskID)

	ts.Delete(1)
	_, ok = ts.Get(1)
	assert.False(t, ok)
}
