package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"telegram-group-scraper/internal/domain"
	"telegram-group-scraper/internal/pkg/config"
)

// ScrapeRunner определяет интерфейс для варианта использования, который выполняет задачи выгрузки.
type ScrapeRunner interface {
	RunScrape(ctx context.Context, req *domain.ScrapeRequest) (*domain.ScrapeResult, error)
}

// Server представляет HTTP-сервер
type Server struct {
	HTTPServer *http.Server
	cfg        *config.Config
	taskStore  *TaskStore
	runner     ScrapeRunner
}

// New создает новый экземпляр Server
func New(cfg *config.Config, runner ScrapeRunner, taskStore *TaskStore) (*Server, error) {
	chiRouter := chi.NewRouter()

	// Промежуточное ПО
	chiRouter.Use(middleware.Logger)
	chiRouter.Use(middleware.Recoverer)

	// Конечная точка для проверки работоспособности
	chiRouter.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "ok",
		})
	})

	// Маршруты API
	chiRouter.Route("/api/v1", func(r chi.Router) {
		// Конечная точка для запуска новой задачи выгрузки
		r.Post("/scrape", func(w http.ResponseWriter, r *http.Request) {
			var req domain.ScrapeRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "Не удалось декодировать тело запроса", http.StatusBadRequest)
				return
			}

			if req.Group == "" {
				http.Error(w, "Требуется поле group", http.StatusBadRequest)
				return
			}
			switch req.Kind {
			case domain.KindMembers, domain.KindMessages, domain.KindCombined:
				// all good
			default:
				http.Error(w, "Поле kind должно быть одним из: members, messages, combined", http.StatusBadRequest)
				return
			}

			// Генерация уникального идентификатора задачи
			taskID := uuid.NewString()

			// Создание задачи в хранилище
			taskStore.CreateTask(taskID, 24*time.Hour) // TTL для записи о задаче

			// Запуск выгрузки в горутине
			go func() {
				taskStore.UpdateTaskStatus(taskID, TaskStatusProcessing)

				// Создание контекста для задачи с таймаутом из конфигурации.
				taskCtx := context.Background()
				if cfg.Processing.TaskTimeoutSeconds > 0 {
					var cancel context.CancelFunc
					taskCtx, cancel = context.WithTimeout(context.Background(), time.Duration(cfg.Processing.TaskTimeoutSeconds)*time.Second)
					defer cancel()
				}

				result, err := runner.RunScrape(taskCtx, &req)
				if err != nil {
					slog.Error("Задача выгрузки завершилась с ошибкой", "task_id", taskID, "error", err)
					taskStore.UpdateTaskError(taskID, err.Error())
					return
				}

				taskStore.UpdateTaskResult(taskID, result)
			}()

			// Возврат идентификатора задачи
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusAccepted)
			json.NewEncoder(w).Encode(map[string]string{"task_id": taskID})
		})

		// Конечная точка для проверки статуса задачи
		r.Get("/tasks/{taskID}", func(w http.ResponseWriter, r *http.Request) {
			taskID := chi.URLParam(r, "taskID")

			task, err := taskStore.GetTask(taskID)
			if err != nil {
				http.Error(w, "Задача не найдена", http.StatusNotFound)
				return
			}

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"task_id":       task.ID,
				"status":        task.Status,
				"result":        task.Result,
				"error_message": task.ErrorMessage,
			})
		})

		// Конечная точка для скачивания файла результата
		r.Get("/tasks/{taskID}/file", func(w http.ResponseWriter, r *http.Request) {
			taskID := chi.URLParam(r, "taskID")

			task, err := taskStore.GetTask(taskID)
			if err != nil {
				http.Error(w, "Задача не найдена", http.StatusNotFound)
				return
			}

			if task.Status != TaskStatusCompleted {
				http.Error(w, "Задача не завершена", http.StatusBadRequest)
				return
			}

			if task.Result == nil || task.Result.FilePath == "" {
				http.Error(w, "Задача не создала файл", http.StatusNotFound)
				return
			}

			if _, err := os.Stat(task.Result.FilePath); err != nil {
				http.Error(w, "Файл результата недоступен", http.StatusGone)
				return
			}

			http.ServeFile(w, r, task.Result.FilePath)
		})
	})

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      chiRouter,
		ReadTimeout:  config.DefaultReadTimeout,
		WriteTimeout: config.DefaultWriteTimeout,
		IdleTimeout:  config.DefaultIdleTimeout,
	}

	s := &Server{
		HTTPServer: httpServer,
		cfg:        cfg,
		taskStore:  taskStore,
		runner:     runner,
	}

	// Запуск тикера для очистки просроченных задач
	s.taskStore.StartCleanupTicker(context.Background(), 1*time.Hour)

	return s, nil
}

// ListenAndServe запускает HTTP-сервер
func (s *Server) ListenAndServe() error {
	return s.HTTPServer.ListenAndServe()
}

// Shutdown корректно завершает работу HTTP-сервера
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("Завершение работы HTTP-сервера")
	return s.HTTPServer.Shutdown(ctx)
}
