package exporter

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"telegram-group-scraper/internal/domain"
	"telegram-group-scraper/internal/ports"
)

// Заголовки CSV-файлов. Порядок колонок фиксирован.
var (
	memberHeader = []string{
		"user_id", "username", "first_name", "last_name",
		"phone", "is_bot", "last_seen", "is_premium", "bio",
	}
	messageHeader = []string{
		"sender_id", "sender_username", "sender_name", "message_id",
		"timestamp", "text", "reply_to_id", "forward_from",
		"has_media", "media_type",
	}
	combinedHeader = []string{
		"user_id", "username", "first_name", "last_name",
		"phone", "bio", "last_seen", "is_premium", "is_bot",
		"message_count", "first_message_at", "last_message_at",
		"recent_messages",
	}
)

var (
	unsafeChars    = regexp.MustCompile(`[^A-Za-z0-9_-]+`)
	underscoreRuns = regexp.MustCompile(`_+`)
)

// sanitizeFilename убирает из имени группы символы, небезопасные для
// имени файла: каждая серия посторонних символов заменяется одним
// подчеркиванием, серии подчеркиваний схлопываются, края обрезаются.
func sanitizeFilename(name string) string {
	sanitized := unsafeChars.ReplaceAllString(name, "_")
	sanitized = underscoreRuns.ReplaceAllString(sanitized, "_")
	return strings.Trim(sanitized, "_")
}

// CSVExporter реализует интерфейс Exporter, записывая результаты в
// CSV-файлы с временной меткой в имени.
type CSVExporter struct {
	outputDir string
	clock     func() time.Time
}

// NewCSVExporter создает новый экземпляр CSVExporter.
// Пустой outputDir заменяется каталогом "output".
func NewCSVExporter(outputDir string) *CSVExporter {
	if outputDir == "" {
		outputDir = "output"
	}
	return &CSVExporter{
		outputDir: outputDir,
		clock:     time.Now,
	}
}

var _ ports.Exporter = (*CSVExporter)(nil)

// ExportMembers записывает список участников и возвращает путь к файлу.
func (e *CSVExporter) ExportMembers(members []domain.Member, groupName string) (string, error) {
	rows := make([][]string, 0, len(members))
	for _, m := range members {
		rows = append(rows, []string{
			strconv.FormatInt(m.UserID, 10),
			m.Username,
			m.FirstName,
			m.LastName,
			m.Phone,
			strconv.FormatBool(m.IsBot),
			m.LastSeen,
			strconv.FormatBool(m.IsPremium),
			m.Bio,
		})
	}
	return e.write(groupName, "members", memberHeader, rows)
}

// ExportMessages записывает список сообщений и возвращает путь к файлу.
func (e *CSVExporter) ExportMessages(messages []domain.Message, groupName string) (string, error) {
	rows := make([][]string, 0, len(messages))
	for _, m := range messages {
		rows = append(rows, []string{
			formatNullableInt(m.SenderID),
			m.SenderUsername,
			m.SenderName,
			strconv.FormatInt(m.MessageID, 10),
			m.Timestamp,
			m.Text,
			formatNullableInt(m.ReplyToID),
			m.ForwardFrom,
			strconv.FormatBool(m.HasMedia),
			m.MediaType,
		})
	}
	return e.write(groupName, "messages", messageHeader, rows)
}

// ExportCombined записывает сводные строки и возвращает путь к файлу.
func (e *CSVExporter) ExportCombined(combined []domain.CombinedRow, groupName string) (string, error) {
	rows := make([][]string, 0, len(combined))
	for _, r := range combined {
		rows = append(rows, []string{
			strconv.FormatInt(r.UserID, 10),
			r.Username,
			r.FirstName,
			r.LastName,
			r.Phone,
			r.Bio,
			r.LastSeen,
			formatNullableBool(r.IsPremium),
			formatNullableBool(r.IsBot),
			strconv.Itoa(r.MessageCount),
			r.FirstMessageAt,
			r.LastMessageAt,
			r.RecentMessages,
		})
	}
	return e.write(groupName, "combined", combinedHeader, rows)
}

// write создает выходной каталог при необходимости и пишет один
// CSV-файл целиком. Ошибки файловой системы возвращаются как есть.
func (e *CSVExporter) write(groupName, kind string, header []string, rows [][]string) (string, error) {
	if err := os.MkdirAll(e.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("не удалось создать выходной каталог %s: %w", e.outputDir, err)
	}

	filename := exportFilename(groupName, kind, "csv", e.clock())
	path := filepath.Join(e.outputDir, filename)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("не удалось создать файл %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return "", fmt.Errorf("не удалось записать заголовок: %w", err)
	}
	if err := w.WriteAll(rows); err != nil {
		return "", fmt.Errorf("не удалось записать строки: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("не удалось завершить запись %s: %w", path, err)
	}

	return path, nil
}

// exportFilename собирает имя файла вида {group}_{kind}_{YYYYMMDD_HHMMSS}.{ext}.
func exportFilename(groupName, kind, ext string, now time.Time) string {
	return fmt.Sprintf("%s_%s_%s.%s", sanitizeFilename(groupName), kind, now.Format("20060102_150405"), ext)
}

func formatNullableInt(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func formatNullableBool(v *bool) string {
	if v == nil {
		return ""
	}
	return strconv.FormatBool(*v)
}
