package services

import (
	"sort"
	"strings"

	"telegram-group-scraper/internal/domain"
	"telegram-group-scraper/internal/ports"
)

// MessageProcessorImpl реализует интерфейс MessageProcessor.
type MessageProcessorImpl struct{}

// NewMessageProcessor создает новый экземпляр MessageProcessorImpl.
func NewMessageProcessor() ports.MessageProcessor {
	return &MessageProcessorImpl{}
}

// senderKey идентифицирует отправителя при группировке.
// Сообщения без отправителя образуют собственную группу.
type senderKey struct {
	id    int64
	known bool
}

func keyOf(msg domain.Message) senderKey {
	if msg.SenderID == nil {
		return senderKey{}
	}
	return senderKey{id: *msg.SenderID, known: true}
}

// Sort упорядочивает сообщения. При chronological=true — стабильная
// сортировка по временной метке. Иначе сообщения группируются по
// отправителю: группы идут в порядке первого появления отправителя
// во входном списке, внутри группы — по возрастанию времени.
func (s *MessageProcessorImpl) Sort(messages []domain.Message, chronological bool) []domain.Message {
	if chronological {
		result := make([]domain.Message, len(messages))
		copy(result, messages)
		sort.SliceStable(result, func(i, j int) bool {
			return result[i].Timestamp < result[j].Timestamp
		})
		return result
	}

	groups := make(map[senderKey][]domain.Message)
	order := make([]senderKey, 0)
	for _, msg := range messages {
		key := keyOf(msg)
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], msg)
	}

	result := make([]domain.Message, 0, len(messages))
	for _, key := range order {
		group := groups[key]
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].Timestamp < group[j].Timestamp
		})
		result = append(result, group...)
	}
	return result
}

// FilterByKeywords оставляет сообщения, текст которых содержит хотя бы
// одно из ключевых слов (без учета регистра). Пустой список ключевых
// слов возвращает вход без изменений.
func (s *MessageProcessorImpl) FilterByKeywords(messages []domain.Message, keywords []string) []domain.Message {
	if len(keywords) == 0 {
		return messages
	}

	lowered := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		lowered = append(lowered, strings.ToLower(kw))
	}

	filtered := make([]domain.Message, 0, len(messages))
	for _, msg := range messages {
		text := strings.ToLower(msg.Text)
		for _, kw := range lowered {
			if strings.Contains(text, kw) {
				filtered = append(filtered, msg)
				break
			}
		}
	}
	return filtered
}
