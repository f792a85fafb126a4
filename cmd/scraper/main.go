package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"telegram-group-scraper/internal/adapters/exporter"
	"telegram-group-scraper/internal/core/services"
	"telegram-group-scraper/internal/domain"
	applog "telegram-group-scraper/internal/log"
	"telegram-group-scraper/internal/pkg/config"
	"telegram-group-scraper/internal/ports"
	"telegram-group-scraper/internal/telegram/router"
)

const usage = `Usage: scraper <command> [flags] <group>

Commands:
  info      show group summary
  members   export group members
  messages  export message history
  combined  export per-user activity summary

<group> is an @username, t.me link, invite link or numeric ID.
Run 'scraper <command> -h' for command flags.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	if err := run(os.Args[1], os.Args[2:]); err != nil {
		slog.Error("scrape failed", "error", err)
		os.Exit(1)
	}
}

// cliOptions собирает значения флагов всех подкоманд.
type cliOptions struct {
	limit         int
	since         string
	until         string
	keywords      string
	chronological bool
	bios          bool
	output        string
	format        string
}

func run(command string, args []string) error {
	fs := flag.NewFlagSet(command, flag.ExitOnError)
	opts := &cliOptions{}

	switch command {
	case "info":
		// Без дополнительных флагов
	case "members":
		fs.IntVar(&opts.limit, "limit", 0, "maximum number of members (0 = no limit)")
		fs.BoolVar(&opts.bios, "bios", false, "fetch member bios (one extra request per member)")
	case "messages":
		addMessageFlags(fs, opts)
	case "combined":
		addMessageFlags(fs, opts)
		fs.BoolVar(&opts.bios, "bios", false, "fetch member bios (one extra request per member)")
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("неизвестная команда: %s", command)
	}
	if command != "info" {
		fs.StringVar(&opts.output, "output", "", "output directory (default from config)")
		fs.StringVar(&opts.format, "format", "", "output format: csv, xlsx, console (default from config)")
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return fmt.Errorf("требуется ровно один аргумент <group>")
	}
	groupArg := fs.Arg(0)

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("не удалось загрузить конфигурацию: %w", err)
	}
	if opts.output != "" {
		cfg.Export.OutputDir = opts.output
	}
	if opts.format != "" {
		cfg.Export.Format = opts.format
	}

	// Логи CLI уходят в stderr, чтобы не мешать консольному выводу результатов.
	logger := applog.NewMaskedLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel(cfg)}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("недопустимая конфигурация: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tgRouter, err := router.NewRouter(ctx,
		router.WithServerConfigs(cfg.GetTelegramServers()),
		router.WithHealthCheckInterval(time.Duration(cfg.TelegramAPI.HealthCheckIntervalSeconds)*time.Second),
	)
	if err != nil {
		return fmt.Errorf("не удалось создать роутер клиентов: %w", err)
	}
	defer tgRouter.Stop()

	scraper := services.NewScrapeService(tgRouter,
		services.WithPageSize(cfg.Scraper.PageSize),
		services.WithRequestDelay(time.Duration(cfg.Scraper.RequestDelayMs)*time.Millisecond),
		services.WithOperationTimeout(time.Duration(cfg.Scraper.OperationTimeoutSeconds)*time.Second),
		services.WithClientRetryPause(time.Duration(cfg.Scraper.ClientRetryPauseSeconds)*time.Second),
	)

	group, err := scraper.Resolve(ctx, groupArg)
	if err != nil {
		return fmt.Errorf("не удалось разрешить группу %q: %w", groupArg, err)
	}
	fmt.Fprintf(os.Stderr, "Группа: %s (%s, id %d)\n", group.Title, group.Type(), group.ID)

	switch command {
	case "info":
		return runInfo(ctx, scraper, group)
	case "members":
		return runMembers(ctx, cfg, scraper, group, opts)
	case "messages":
		return runMessages(ctx, cfg, scraper, group, opts)
	case "combined":
		return runCombined(ctx, cfg, scraper, group, opts)
	}
	return nil
}

func addMessageFlags(fs *flag.FlagSet, opts *cliOptions) {
	fs.IntVar(&opts.limit, "limit", 0, "maximum number of messages (0 = no limit)")
	fs.StringVar(&opts.since, "since", "", "oldest message date, YYYY-MM-DD")
	fs.StringVar(&opts.until, "until", "", "newest message date, YYYY-MM-DD")
	fs.StringVar(&opts.keywords, "keywords", "", "comma-separated keywords to filter messages")
	fs.BoolVar(&opts.chronological, "chronological", false, "sort messages chronologically instead of by sender")
}

func runInfo(ctx context.Context, scraper ports.GroupScraper, group *domain.Group) error {
	info, err := scraper.GroupInfo(ctx, group)
	if err != nil {
		return fmt.Errorf("не удалось получить сведения о группе: %w", err)
	}

	fmt.Printf("ID:        %d\n", info.ID)
	fmt.Printf("Title:     %s\n", info.Title)
	if info.Username != "" {
		fmt.Printf("Username:  @%s\n", info.Username)
	}
	fmt.Printf("Type:      %s\n", info.Type)
	if info.MembersCount > 0 {
		fmt.Printf("Members:   %d\n", info.MembersCount)
	}
	return nil
}

func runMembers(ctx context.Context, cfg *config.Config, scraper ports.GroupScraper, group *domain.Group, opts *cliOptions) error {
	members, err := scraper.ScrapeMembers(ctx, group, ports.MemberScrapeOptions{
		Limit:     opts.limit,
		FetchBios: opts.bios || cfg.Scraper.FetchBios,
		Progress:  progressPrinter("участников"),
	})
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return fmt.Errorf("не удалось выгрузить участников: %w", err)
	}

	path, err := newExporter(cfg).ExportMembers(members, group.Title)
	if err != nil {
		return fmt.Errorf("не удалось экспортировать участников: %w", err)
	}
	reportExport(len(members), path)
	return nil
}

func runMessages(ctx context.Context, cfg *config.Config, scraper ports.GroupScraper, group *domain.Group, opts *cliOptions) error {
	messages, err := scrapeMessages(ctx, scraper, group, opts)
	if err != nil {
		return err
	}

	messages = postProcess(messages, opts)

	path, err := newExporter(cfg).ExportMessages(messages, group.Title)
	if err != nil {
		return fmt.Errorf("не удалось экспортировать сообщения: %w", err)
	}
	reportExport(len(messages), path)
	return nil
}

func runCombined(ctx context.Context, cfg *config.Config, scraper ports.GroupScraper, group *domain.Group, opts *cliOptions) error {
	members, err := scraper.ScrapeMembers(ctx, group, ports.MemberScrapeOptions{
		FetchBios: opts.bios || cfg.Scraper.FetchBios,
		Progress:  progressPrinter("участников"),
	})
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return fmt.Errorf("не удалось выгрузить участников: %w", err)
	}

	messages, err := scrapeMessages(ctx, scraper, group, opts)
	if err != nil {
		return err
	}
	messages = postProcess(messages, opts)

	aggregator := services.NewAggregationService(
		services.WithRecentLimit(cfg.Aggregation.RecentLimit),
		services.WithMaxRecentChars(cfg.Aggregation.MaxRecentChars),
	)
	rows := aggregator.BuildCombined(members, messages)

	path, err := newExporter(cfg).ExportCombined(rows, group.Title)
	if err != nil {
		return fmt.Errorf("не удалось экспортировать сводку: %w", err)
	}
	reportExport(len(rows), path)
	return nil
}

func scrapeMessages(ctx context.Context, scraper ports.GroupScraper, group *domain.Group, opts *cliOptions) ([]domain.Message, error) {
	var since, until time.Time
	var err error
	if opts.since != "" {
		if since, err = parseDate(opts.since); err != nil {
			return nil, fmt.Errorf("недопустимая дата since: %w", err)
		}
	}
	if opts.until != "" {
		if until, err = parseDate(opts.until); err != nil {
			return nil, fmt.Errorf("недопустимая дата until: %w", err)
		}
		// Верхняя граница включает весь указанный день.
		until = until.Add(24*time.Hour - time.Second)
	}
	if !since.IsZero() && !until.IsZero() && until.Before(since) {
		return nil, fmt.Errorf("until (%s) раньше since (%s)", opts.until, opts.since)
	}

	messages, err := scraper.ScrapeMessages(ctx, group, ports.MessageScrapeOptions{
		Limit:    opts.limit,
		Since:    since,
		Until:    until,
		Progress: progressPrinter("сообщений"),
	})
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("не удалось выгрузить сообщения: %w", err)
	}
	return messages, nil
}

func postProcess(messages []domain.Message, opts *cliOptions) []domain.Message {
	processor := services.NewMessageProcessor()
	messages = processor.FilterByKeywords(messages, splitKeywords(opts.keywords))
	return processor.Sort(messages, opts.chronological)
}

func splitKeywords(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	keywords := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			keywords = append(keywords, p)
		}
	}
	return keywords
}

func parseDate(s string) (time.Time, error) {
	parsed, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, err
	}
	return parsed.UTC(), nil
}

func progressPrinter(unit string) func(count int) {
	return func(count int) {
		fmt.Fprintf(os.Stderr, "\rСобрано %s: %d", unit, count)
	}
}

func reportExport(rows int, path string) {
	if path == "" {
		fmt.Fprintf(os.Stderr, "Выведено строк: %d\n", rows)
		return
	}
	fmt.Fprintf(os.Stderr, "Записано строк: %d, файл: %s\n", rows, path)
}

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

func logLevel(cfg *config.Config) slog.Level {
	switch cfg.Logging.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
