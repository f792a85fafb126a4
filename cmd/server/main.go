package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"telegram-group-scraper/internal/adapters/exporter"
	"telegram-group-scraper/internal/cache"
	"telegram-group-scraper/internal/core/services"
	applog "telegram-group-scraper/internal/log"
	"telegram-group-scraper/internal/pkg/config"
	"telegram-group-scraper/internal/ports"
	"telegram-group-scraper/internal/server"
	"telegram-group-scraper/internal/server/usecase"
	"telegram-group-scraper/internal/telegram/router"
)

func main() {
	if err := run(); err != nil {
		slog.Error("application run failed", "error", err)
		os.Exit(1)
	}
}

// run инкапсулирует всю логику инициализации и запуска приложения.
func run() error {
	// 1. Загрузка конфигурации
	cfg, err := config.LoadConfig()
	if err != nil {
		// Логгер еще не инициализирован, выводим в stderr
		_, _ = fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Инициализация логгера с маскированием секретов
	var level slog.Level
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	var handler slog.Handler
	switch cfg.Logging.Format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}
	logger := applog.NewMaskedLogger(handler)
	slog.SetDefault(logger)

	// 3. Валидация конфигурации (после инициализации логгера)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	// 4. Инициализация и запуск фоновых сервисов
	appCtx, appCancel := context.WithCancel(context.Background())

	tgServers := cfg.GetTelegramServers()
	tgRouter, err := router.NewRouter(appCtx,
		router.WithServerConfigs(tgServers),
		router.WithHealthCheckInterval(time.Duration(cfg.TelegramAPI.HealthCheckIntervalSeconds)*time.Second),
	)
	if err != nil {
		appCancel()
		return fmt.Errorf("failed to create telegram router: %w", err)
	}

	// 5. Инициализация зависимостей
	taskStore := server.NewTaskStore()
	cacheStore := cache.NewCacheStore()
	scraperSvc := services.NewScrapeService(tgRouter,
		services.WithPageSize(cfg.Scraper.PageSize),
		services.WithRequestDelay(time.Duration(cfg.Scraper.RequestDelayMs)*time.Millisecond),
		services.WithOperationTimeout(time.Duration(cfg.Scraper.OperationTimeoutSeconds)*time.Second),
		services.WithClientRetryPause(time.Duration(cfg.Scraper.ClientRetryPauseSeconds)*time.Second),
	)
	processorSvc := services.NewMessageProcessor()
	aggregatorSvc := services.NewAggregationService(
		services.WithRecentLimit(cfg.Aggregation.RecentLimit),
		services.WithMaxRecentChars(cfg.Aggregation.MaxRecentChars),
	)
	exp := newExporter(cfg)
	runner := usecase.NewRunScrapeUseCase(cfg, scraperSvc, processorSvc, aggregatorSvc, exp, cacheStore)

	// 6. Создание HTTP-сервера
	srv, err := server.New(cfg, runner, taskStore)
	if err != nil {
		appCancel()
		return fmt.Errorf("failed to create server: %w", err)
	}

	// 7. Запуск сервера и graceful shutdown
	serverDone := make(chan struct{})
	go func() {
		defer close(serverDone)
		slog.Info("Starting server", "addr", cfg.Address())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Signal received, shutting down...")

	// Сначала отменяем контекст приложения, чтобы остановить фоновые процессы (клиенты Telegram)
	appCancel()
	slog.Info("Application context canceled, waiting for background services to stop...")

	// Затем останавливаем HTTP-сервер
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Server.ShutdownTimeoutSeconds)*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	<-serverDone
	slog.Info("HTTP server stopped")

	// В конце останавливаем роутер (его health-check тикер)
	tgRouter.Stop()

	slog.Info("Application exited gracefully")
	return nil
}

// newExporter выбирает экспортер по формату из конфигурации.
func newExporter(cfg *config.Config) ports.Exporter {
	switch cfg.Export.Format {
	case "xlsx":
		return exporter.NewXLSXExporter(cfg.Export.OutputDir)
	case "console":
		return exporter.NewConsoleExporter()
	default:
		return exporter.NewCSVExporter(cfg.Export.OutputDir)
	}
}
