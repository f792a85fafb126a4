package exporter

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"telegram-group-scraper/internal/domain"
	"telegram-group-scraper/internal/ports"
)

// XLSXExporter реализует интерфейс Exporter, записывая результаты в
// Excel-файлы. Набор и порядок колонок совпадают с CSV-выгрузкой.
type XLSXExporter struct {
	outputDir string
	clock     func() time.Time
}

// NewXLSXExporter создает новый экземпляр XLSXExporter.
func NewXLSXExporter(outputDir string) *XLSXExporter {
	if outputDir == "" {
		outputDir = "output"
	}
	return &XLSXExporter{
		outputDir: outputDir,
		clock:     time.Now,
	}
}

var _ ports.Exporter = (*XLSXExporter)(nil)

// ExportMembers записывает список участников в XLSX.
func (e *XLSXExporter) ExportMembers(members []domain.Member, groupName string) (string, error) {
	rows := make([][]any, 0, len(members))
	for _, m := range members {
		rows = append(rows, []any{
			m.UserID, m.Username, m.FirstName, m.LastName,
			m.Phone, m.IsBot, m.LastSeen, m.IsPremium, m.Bio,
		})
	}
	return e.write(groupName, "members", "Участники", memberHeader, rows)
}

// ExportMessages записывает список сообщений в XLSX.
func (e *XLSXExporter) ExportMessages(messages []domain.Message, groupName string) (string, error) {
	rows := make([][]any, 0, len(messages))
	for _, m := range messages {
		rows = append(rows, []any{
			nullableIntCell(m.SenderID), m.SenderUsername, m.SenderName,
			m.MessageID, m.Timestamp, m.Text, nullableIntCell(m.ReplyToID),
			m.ForwardFrom, m.HasMedia, m.MediaType,
		})
	}
	return e.write(groupName, "messages", "Сообщения", messageHeader, rows)
}

// ExportCombined записывает сводные строки в XLSX.
func (e *XLSXExporter) ExportCombined(combined []domain.CombinedRow, groupName string) (string, error) {
	rows := make([][]any, 0, len(combined))
	for _, r := range combined {
		rows = append(rows, []any{
			r.UserID, r.Username, r.FirstName, r.LastName,
			r.Phone, r.Bio, r.LastSeen, nullableBoolCell(r.IsPremium),
			nullableBoolCell(r.IsBot), r.MessageCount,
			r.FirstMessageAt, r.LastMessageAt, r.RecentMessages,
		})
	}
	return e.write(groupName, "combined", "Сводная", combinedHeader, rows)
}

func (e *XLSXExporter) write(groupName, kind, sheetName string, header []string, rows [][]any) (string, error) {
	if err := os.MkdirAll(e.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("не удалось создать выходной каталог %s: %w", e.outputDir, err)
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return "", fmt.Errorf("не удалось создать лист: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return "", fmt.Errorf("не удалось удалить лист по умолчанию: %w", err)
	}

	for i, h := range header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return "", fmt.Errorf("не удалось записать заголовок: %w", err)
		}
	}

	for rowIdx, row := range rows {
		for colIdx, value := range row {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				return "", fmt.Errorf("не удалось записать ячейку %s: %w", cell, err)
			}
		}
	}

	filename := exportFilename(groupName, kind, "xlsx", e.clock())
	path := filepath.Join(e.outputDir, filename)
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("не удалось сохранить файл %s: %w", path, err)
	}

	return path, nil
}

// nullableIntCell возвращает пустую ячейку для отсутствующего значения.
func nullableIntCell(v *int64) any {
	if v == nil {
		return ""
	}
	return *v
}

func nullableBoolCell(v *bool) any {
	if v == nil {
		return ""
	}
	return *v
}
