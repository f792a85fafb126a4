package exporter

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"telegram-group-scraper/internal/domain"
)

func TestXLSXExportMembers(t *testing.T) {
	e := NewXLSXExporter(t.TempDir())
	e.clock = func() time.Time {
		return time.Date(2024, 6, 1, 12, 30, 45, 0, time.UTC)
	}

	members := []domain.Member{
		{UserID: 1, Username: "alice", FirstName: "Alice", LastSeen: "online"},
	}

	path, err := e.ExportMembers(members, "My Group!")
	require.NoError(t, err)
	assert.Equal(t, "My_Group_members_20240601_123045.xlsx", filepath.Base(path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Участники")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "user_id", rows[0][0])
	assert.Equal(t, "bio", rows[0][8])
	assert.Equal(t, "1", rows[1][0])
	assert.Equal(t, "alice", rows[1][1])
	assert.Equal(t, "online", rows[1][6])
}

func TestXLSXExportCombined(t *testing.T) {
	e := NewXLSXExporter(t.TempDir())

	rows := []domain.CombinedRow{
		{UserID: 5, Username: "eve", MessageCount: 3, RecentMessages: "a | b"},
	}

	path, err := e.ExportCombined(rows, "chat")
	require.NoError(t, err)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	got, err := f.GetRows("Сводная")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "5", got[1][0])
	assert.Equal(t, "eve", got[1][1])
	assert.Equal(t, "3", got[1][9])
	assert.Equal(t, "a | b", got[1][12])
}
