package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"telegram-group-scraper/internal/cache"
	"telegram-group-scraper/internal/domain"
	"telegram-group-scraper/internal/pkg/config"
	"telegram-group-scraper/internal/ports"
)

// RunScrapeUseCase инкапсулирует бизнес-логику выполнения одной задачи выгрузки:
// разрешение группы, сбор данных, постобработка и экспорт.
type RunScrapeUseCase struct {
	cfg        *config.Config
	scraper    ports.GroupScraper
	processor  ports.MessageProcessor
	aggregator ports.Aggregator
	exporter   ports.Exporter
	cacheStore *cache.CacheStore
}

// NewRunScrapeUseCase создает новый экземпляр RunScrapeUseCase.
func NewRunScrapeUseCase(
	cfg *config.Config,
	scraper ports.GroupScraper,
	processor ports.MessageProcessor,
	aggregator ports.Aggregator,
	exporter ports.Exporter,
	cacheStore *cache.CacheStore,
) *RunScrapeUseCase {
	return &RunScrapeUseCase{
		cfg:        cfg,
		scraper:    scraper,
		processor:  processor,
		aggregator: aggregator,
		exporter:   exporter,
		cacheStore: cacheStore,
	}
}

// RunScrape выполняет задачу выгрузки и возвращает ее результат.
// Одинаковые запросы в пределах TTL кеша не выполняются повторно.
func (uc *RunScrapeUseCase) RunScrape(ctx context.Context, req *domain.ScrapeRequest) (*domain.ScrapeResult, error) {
	key := cache.RequestKey(req)
	if cachedItem, found := uc.cacheStore.Get(key); found {
		slog.Info("Попадание в кеш для запроса выгрузки", "group", req.Group, "kind", req.Kind)
		return cachedItem.Result, nil
	}

	since, until, err := parseDateWindow(req.Since, req.Until)
	if err != nil {
		return nil, err
	}

	group, err := uc.scraper.Resolve(ctx, req.Group)
	if err != nil {
		return nil, fmt.Errorf("не удалось разрешить группу %q: %w", req.Group, err)
	}
	slog.Info("Группа разрешена", "group", req.Group, "title", group.Title, "type", group.Type())

	var filePath string
	var rows int

	switch req.Kind {
	case domain.KindMembers:
		members, err := uc.scraper.ScrapeMembers(ctx, group, ports.MemberScrapeOptions{
			Limit:     req.Limit,
			FetchBios: uc.cfg.Scraper.FetchBios,
		})
		if err != nil {
			return nil, fmt.Errorf("не удалось выгрузить участников: %w", err)
		}
		filePath, err = uc.exporter.ExportMembers(members, group.Title)
		if err != nil {
			return nil, fmt.Errorf("не удалось экспортировать участников: %w", err)
		}
		rows = len(members)

	case domain.KindMessages:
		messages, err := uc.scrapeProcessedMessages(ctx, group, req, since, until)
		if err != nil {
			return nil, err
		}
		filePath, err = uc.exporter.ExportMessages(messages, group.Title)
		if err != nil {
			return nil, fmt.Errorf("не удалось экспортировать сообщения: %w", err)
		}
		rows = len(messages)

	case domain.KindCombined:
		members, err := uc.scraper.ScrapeMembers(ctx, group, ports.MemberScrapeOptions{
			FetchBios: uc.cfg.Scraper.FetchBios,
		})
		if err != nil {
			return nil, fmt.Errorf("не удалось выгрузить участников: %w", err)
		}
		messages, err := uc.scrapeProcessedMessages(ctx, group, req, since, until)
		if err != nil {
			return nil, err
		}
		combined := uc.aggregator.BuildCombined(members, messages)
		filePath, err = uc.exporter.ExportCombined(combined, group.Title)
		if err != nil {
			return nil, fmt.Errorf("не удалось экспортировать сводку: %w", err)
		}
		rows = len(combined)

	default:
		return nil, fmt.Errorf("неизвестный вид выгрузки: %q", req.Kind)
	}

	result := &domain.ScrapeResult{
		GroupTitle: group.Title,
		FilePath:   filePath,
		Rows:       rows,
	}

	ttl := time.Duration(uc.cfg.Processing.CacheTTLMinutes) * time.Minute
	uc.cacheStore.Put(key, result, ttl)
	slog.Info("Выгрузка успешно завершена", "group", group.Title, "kind", req.Kind, "rows", rows, "file", filePath)

	return result, nil
}

// scrapeProcessedMessages выгружает историю и применяет фильтрацию и сортировку.
func (uc *RunScrapeUseCase) scrapeProcessedMessages(ctx context.Context, group *domain.Group, req *domain.ScrapeRequest, since, until time.Time) ([]domain.Message, error) {
	messages, err := uc.scraper.ScrapeMessages(ctx, group, ports.MessageScrapeOptions{
		Limit: req.Limit,
		Since: since,
		Until: until,
	})
	if err != nil {
		return nil, fmt.Errorf("не удалось выгрузить сообщения: %w", err)
	}

	messages = uc.processor.FilterByKeywords(messages, req.Keywords)
	messages = uc.processor.Sort(messages, req.Chronological)
	return messages, nil
}

// parseDateWindow разбирает границы окна дат в формате YYYY-MM-DD.
// Верхняя граница включает весь указанный день.
func parseDateWindow(sinceStr, untilStr string) (time.Time, time.Time, error) {
	var since, until time.Time

	if sinceStr != "" {
		parsed, err := time.Parse("2006-01-02", sinceStr)
		if err != nil {
			return since, until, fmt.Errorf("недопустимая дата since %q: %w", sinceStr, err)
		}
		since = parsed.UTC()
	}

	if untilStr != "" {
		parsed, err := time.Parse("2006-01-02", untilStr)
		if err != nil {
			return since, until, fmt.Errorf("недопустимая дата until %q: %w", untilStr, err)
		}
		until = parsed.UTC().Add(24*time.Hour - time.Second)
	}

	if !since.IsZero() && !until.IsZero() && until.Before(since) {
		return since, until, fmt.Errorf("until (%s) раньше since (%s)", untilStr, sinceStr)
	}

	return since, until, nil
}
