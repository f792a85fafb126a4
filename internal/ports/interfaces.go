package ports

import (
	"context"
	"time"

	"telegram-group-scraper/internal/domain"
)

// MessageProcessor определяет интерфейс постобработки списка сообщений.
type MessageProcessor interface {
	// Sort упорядочивает сообщения: хронологически либо группируя по
	// отправителю (порядок групп — порядок первого появления во входе).
	Sort(messages []domain.Message, chronological bool) []domain.Message
	// FilterByKeywords оставляет сообщения, содержащие хотя бы одно из
	// ключевых слов. Пустой список ключевых слов — тождественная операция.
	FilterByKeywords(messages []domain.Message, keywords []string) []domain.Message
}

// Aggregator определяет интерфейс объединения участников и сообщений
// в сводные строки по пользователям.
type Aggregator interface {
	BuildCombined(members []domain.Member, messages []domain.Message) []domain.CombinedRow
}

// Exporter определяет интерфейс вывода результатов выгрузки.
// Возвращаемая строка — путь к созданному файлу; экспортеры,
// не создающие файлов, возвращают пустую строку.
type Exporter interface {
	ExportMembers(members []domain.Member, groupName string) (string, error)
	ExportMessages(messages []domain.Message, groupName string) (string, error)
	ExportCombined(rows []domain.CombinedRow, groupName string) (string, error)
}

// MemberScrapeOptions настраивает выгрузку списка участников.
type MemberScrapeOptions struct {
	// Limit ограничивает число участников; 0 — без ограничения.
	Limit int
	// FetchBios включает дополнительный запрос bio на каждого участника.
	FetchBios bool
	// Progress, если задан, вызывается с текущим числом собранных записей.
	Progress func(count int)
}

// MessageScrapeOptions настраивает выгрузку истории сообщений.
type MessageScrapeOptions struct {
	// Limit ограничивает число сообщений; 0 — без ограничения.
	Limit int
	// Since и Until задают окно дат (нулевое значение — без границы).
	// История читается от новых к старым: сообщения новее Until
	// пропускаются, на первом сообщении старше Since чтение прекращается.
	Since time.Time
	Until time.Time
	// Progress, если задан, вызывается с текущим числом собранных записей.
	Progress func(count int)
}

// GroupScraper определяет интерфейс драйвера выгрузки данных группы.
type GroupScraper interface {
	// Resolve принимает @username, ссылку t.me, инвайт-ссылку или
	// числовой идентификатор и возвращает разрешенную группу.
	Resolve(ctx context.Context, identifier string) (*domain.Group, error)
	GroupInfo(ctx context.Context, group *domain.Group) (*domain.GroupInfo, error)
	ScrapeMembers(ctx context.Context, group *domain.Group, opts MemberScrapeOptions) ([]domain.Member, error)
	ScrapeMessages(ctx context.Context, group *domain.Group, opts MessageScrapeOptions) ([]domain.Message, error)
}
