package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telegram-group-scraper/internal/domain"
)

func ptr(v int64) *int64 { return &v }

func msg(sender int64, ts, text string) domain.Message {
	return domain.Message{SenderID: ptr(sender), Timestamp: ts, Text: text}
}

func TestSort(t *testing.T) {
	processor := NewMessageProcessor()

	input := []domain.Message{
		msg(2, "2024-01-03T10:00:00Z", "c"),
		msg(1, "2024-01-02T10:00:00Z", "b"),
		msg(2, "2024-01-01T10:00:00Z", "a"),
		msg(1, "2024-01-04T10:00:00Z", "d"),
	}

	t.Run("хронологический порядок", func(t *testing.T) {
		sorted := processor.Sort(input, true)
		require.Len(t, sorted, 4)
		assert.Equal(t, "a", sorted[0].Text)
		assert.Equal(t, "b", sorted[1].Text)
		assert.Equal(t, "c", sorted[2].Text)
		assert.Equal(t, "d", sorted[3].Text)
	})

	t.Run("хронологическая сортировка идемпотентна", func(t *testing.T) {
		once := processor.Sort(input, true)
		twice := processor.Sort(once, true)
		assert.Equal(t, once, twice)
	})

	t.Run("группировка по отправителю в порядке первого появления", func(t *testing.T) {
		sorted := processor.Sort(input, false)
		require.Len(t, sorted, 4)
		// Отправитель 2 встретился первым, его сообщения идут подряд
		// по возрастанию времени, затем сообщения отправителя 1.
		assert.Equal(t, "a", sorted[0].Text)
		assert.Equal(t, "c", sorted[1].Text)
		assert.Equal(t, "b", sorted[2].Text)
		assert.Equal(t, "d", sorted[3].Text)
	})

	t.Run("сообщения каждого отправителя непрерывны", func(t *testing.T) {
		sorted := processor.Sort(input, false)
		seen := make(map[int64]bool)
		var last *int64
		for _, m := range sorted {
			require.NotNil(t, m.SenderID)
			if last == nil || *last != *m.SenderID {
				// Начало новой группы: отправитель не должен был
				// встречаться раньше.
				assert.False(t, seen[*m.SenderID])
				seen[*m.SenderID] = true
			}
			last = m.SenderID
		}
	})

	t.Run("сообщения без отправителя образуют свою группу", func(t *testing.T) {
		withNil := append([]domain.Message{{Timestamp: "2024-01-05T00:00:00Z", Text: "anon"}}, input...)
		sorted := processor.Sort(withNil, false)
		require.Len(t, sorted, 5)
		assert.Equal(t, "anon", sorted[0].Text)
	})

	t.Run("вход не изменяется", func(t *testing.T) {
		before := make([]domain.Message, len(input))
		copy(before, input)
		_ = processor.Sort(input, true)
		_ = processor.Sort(input, false)
		assert.Equal(t, before, input)
	})

	t.Run("пустой вход", func(t *testing.T) {
		assert.Empty(t, processor.Sort(nil, true))
		assert.Empty(t, processor.Sort(nil, false))
	})
}

func TestFilterByKeywords(t *testing.T) {
	processor := NewMessageProcessor()

	input := []domain.Message{
		msg(1, "2024-01-01T00:00:00Z", "Hello World"),
		msg(2, "2024-01-02T00:00:00Z", "Привет, мир"),
		msg(3, "2024-01-03T00:00:00Z", ""),
	}

	t.Run("пустой список ключевых слов — тождественная операция", func(t *testing.T) {
		result := processor.FilterByKeywords(input, nil)
		assert.Equal(t, input, result)

		result = processor.FilterByKeywords(input, []string{})
		assert.Equal(t, input, result)
	})

	t.Run("совпадение без учета регистра", func(t *testing.T) {
		result := processor.FilterByKeywords(input, []string{"WORLD"})
		require.Len(t, result, 1)
		assert.Equal(t, "Hello World", result[0].Text)
	})

	t.Run("достаточно любого ключевого слова", func(t *testing.T) {
		result := processor.FilterByKeywords(input, []string{"мир", "hello"})
		assert.Len(t, result, 2)
	})

	t.Run("нет совпадений", func(t *testing.T) {
		result := processor.FilterByKeywords(input, []string{"bitcoin"})
		assert.Empty(t, result)
	})

	t.Run("совпадение по подстроке", func(t *testing.T) {
		result := processor.FilterByKeywords(input, []string{"ello"})
		require.Len(t, result, 1)
		assert.Equal(t, "Hello World", result[0].Text)
	})
}
