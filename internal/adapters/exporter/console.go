package exporter

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-runewidth"

	"telegram-group-scraper/internal/domain"
	"telegram-group-scraper/internal/ports"
)

// Ширина колонок текстовой таблицы.
const (
	userColWidth = 18
	nameColWidth = 22
	seenColWidth = 20
	bioColWidth  = 30
)

// ConsoleExporter реализует интерфейс Exporter для быстрого предварительного
// просмотра в терминале. Файлы не создаются, путь всегда пустой.
type ConsoleExporter struct {
	out io.Writer
}

// NewConsoleExporter создает новый экземпляр ConsoleExporter,
// пишущий в стандартный вывод.
func NewConsoleExporter() *ConsoleExporter {
	return &ConsoleExporter{out: os.Stdout}
}

var _ ports.Exporter = (*ConsoleExporter)(nil)

// ExportMembers выводит таблицу участников.
func (e *ConsoleExporter) ExportMembers(members []domain.Member, groupName string) (string, error) {
	fmt.Fprintf(e.out, "--- %s: участники (%d) ---\n", groupName, len(members))
	if len(members) == 0 {
		fmt.Fprintln(e.out, "Участники не найдены.")
		return "", nil
	}

	fmt.Fprintf(e.out, "%s %s %s %s\n",
		pad("Username", userColWidth),
		pad("Имя", nameColWidth),
		pad("Последний визит", seenColWidth),
		pad("Bio", bioColWidth),
	)
	for _, m := range members {
		name := joinName(m.FirstName, m.LastName)
		fmt.Fprintf(e.out, "%s %s %s %s\n",
			pad(m.Username, userColWidth),
			pad(name, nameColWidth),
			pad(m.LastSeen, seenColWidth),
			pad(m.Bio, bioColWidth),
		)
	}
	return "", nil
}

// ExportMessages выводит сообщения построчно.
func (e *ConsoleExporter) ExportMessages(messages []domain.Message, groupName string) (string, error) {
	fmt.Fprintf(e.out, "--- %s: сообщения (%d) ---\n", groupName, len(messages))
	if len(messages) == 0 {
		fmt.Fprintln(e.out, "Сообщения не найдены.")
		return "", nil
	}

	for _, m := range messages {
		sender := m.SenderUsername
		if sender == "" {
			sender = m.SenderName
		}
		if sender == "" {
			sender = "?"
		}
		fmt.Fprintf(e.out, "[%s] %s: %s\n", m.Timestamp, sender, m.Text)
	}
	return "", nil
}

// ExportCombined выводит таблицу сводных строк.
func (e *ConsoleExporter) ExportCombined(rows []domain.CombinedRow, groupName string) (string, error) {
	fmt.Fprintf(e.out, "--- %s: сводка по пользователям (%d) ---\n", groupName, len(rows))
	if len(rows) == 0 {
		fmt.Fprintln(e.out, "Данные не найдены.")
		return "", nil
	}

	fmt.Fprintf(e.out, "%s %s %9s %s\n",
		pad("Username", userColWidth),
		pad("Имя", nameColWidth),
		"Сообщений",
		pad("Последние сообщения", bioColWidth),
	)
	for _, r := range rows {
		name := joinName(r.FirstName, r.LastName)
		fmt.Fprintf(e.out, "%s %s %9d %s\n",
			pad(r.Username, userColWidth),
			pad(name, nameColWidth),
			r.MessageCount,
			pad(r.RecentMessages, bioColWidth),
		)
	}
	return "", nil
}

// pad усекает строку до заданной ширины и дополняет пробелами,
// корректно обрабатывая широкие символы.
func pad(s string, width int) string {
	return runewidth.FillRight(runewidth.Truncate(s, width, "…"), width)
}

func joinName(first, last string) string {
	if first == "" {
		return last
	}
	if last == "" {
		return first
	}
	return first + " " + last
}
