package exporter

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telegram-group-scraper/internal/domain"
)

func ptr(v int64) *int64 { return &v }

func boolPtr(v bool) *bool { return &v }

func newTestCSVExporter(t *testing.T) *CSVExporter {
	t.Helper()
	e := NewCSVExporter(filepath.Join(t.TempDir(), "out"))
	e.clock = func() time.Time {
		return time.Date(2024, 6, 1, 12, 30, 45, 0, time.UTC)
	}
	return e
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func TestSanitizeFilename(t *testing.T) {
	testCases := []struct {
		in   string
		want string
	}{
		{"My Group!", "My_Group"},
		{"  Spaces  ", "Spaces"},
		{"Weird__Name", "Weird_Name"},
		{"Чат с юникодом", ""},
		{"mixed-Name_42", "mixed-Name_42"},
		{"a/b\\c:d", "a_b_c_d"},
		{"", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, sanitizeFilename(tc.in))
		})
	}
}

func TestExportMembers(t *testing.T) {
	e := newTestCSVExporter(t)

	members := []domain.Member{
		{UserID: 1, Username: "alice", FirstName: "Alice", IsPremium: true, LastSeen: "recently", Bio: "dev"},
		{UserID: 2, IsBot: true},
	}

	path, err := e.ExportMembers(members, "My Group!")
	require.NoError(t, err)
	assert.Equal(t, "My_Group_members_20240601_123045.csv", filepath.Base(path))

	records := readCSV(t, path)
	require.Len(t, records, 3)
	assert.Equal(t, []string{
		"user_id", "username", "first_name", "last_name",
		"phone", "is_bot", "last_seen", "is_premium", "bio",
	}, records[0])
	assert.Equal(t, []string{"1", "alice", "Alice", "", "", "false", "recently", "true", "dev"}, records[1])
	assert.Equal(t, []string{"2", "", "", "", "", "true", "", "false", ""}, records[2])
}

func TestExportMessages(t *testing.T) {
	e := newTestCSVExporter(t)

	messages := []domain.Message{
		{
			SenderID:       ptr(7),
			SenderUsername: "bob",
			SenderName:     "Bob Brown",
			MessageID:      100,
			Timestamp:      "2024-01-02T10:00:00Z",
			Text:           "hello, world",
			ReplyToID:      ptr(99),
			HasMedia:       true,
			MediaType:      "messageMediaPhoto",
		},
		{MessageID: 101, Timestamp: "2024-01-02T11:00:00Z", Text: ""},
	}

	path, err := e.ExportMessages(messages, "chat")
	require.NoError(t, err)

	records := readCSV(t, path)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"7", "bob", "Bob Brown", "100", "2024-01-02T10:00:00Z", "hello, world", "99", "", "true", "messageMediaPhoto"}, records[1])
	// Отсутствующий отправитель сериализуется пустыми ячейками.
	assert.Equal(t, "", records[2][0])
	assert.Equal(t, "", records[2][6])
}

func TestExportCombined(t *testing.T) {
	e := newTestCSVExporter(t)

	rows := []domain.CombinedRow{
		{
			UserID:         1,
			Username:       "alice",
			IsPremium:      boolPtr(true),
			IsBot:          boolPtr(false),
			MessageCount:   2,
			FirstMessageAt: "2024-01-02T10:00:00Z",
			LastMessageAt:  "2024-01-03T10:00:00Z",
			RecentMessages: "Second | Hello",
		},
		{UserID: 3, MessageCount: 1},
	}

	path, err := e.ExportCombined(rows, "chat")
	require.NoError(t, err)

	records := readCSV(t, path)
	require.Len(t, records, 3)
	assert.Equal(t, []string{
		"user_id", "username", "first_name", "last_name",
		"phone", "bio", "last_seen", "is_premium", "is_bot",
		"message_count", "first_message_at", "last_message_at",
		"recent_messages",
	}, records[0])
	assert.Equal(t, []string{"1", "alice", "", "", "", "", "", "true", "false", "2", "2024-01-02T10:00:00Z", "2024-01-03T10:00:00Z", "Second | Hello"}, records[1])
	// Неизвестные булевы поля — пустые ячейки, не "false".
	assert.Equal(t, "", records[2][7])
	assert.Equal(t, "", records[2][8])
}

func TestExportFilenamePattern(t *testing.T) {
	e := NewCSVExporter(t.TempDir())

	path, err := e.ExportMembers(nil, "Some Group")
	require.NoError(t, err)

	pattern := regexp.MustCompile(`^Some_Group_members_\d{8}_\d{6}\.csv$`)
	assert.Regexp(t, pattern, filepath.Base(path))
}

func TestExportCreatesOutputDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "output")
	e := NewCSVExporter(dir)

	_, err := e.ExportMembers(nil, "g")
	require.NoError(t, err)

	// Повторный экспорт в существующий каталог не является ошибкой.
	_, err = e.ExportMessages(nil, "g")
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestExportEmptyRecords(t *testing.T) {
	e := newTestCSVExporter(t)

	path, err := e.ExportCombined(nil, "empty")
	require.NoError(t, err)

	records := readCSV(t, path)
	// Только строка заголовка.
	require.Len(t, records, 1)
}
