package services

import (
	"sort"
	"strings"

	"telegram-group-scraper/internal/domain"
)

// Значения по умолчанию для сводной выгрузки.
const (
	DefaultRecentLimit    = 10
	DefaultMaxRecentChars = 2000
)

// Многоточие добавляется к усеченному дайджесту последних сообщений.
const ellipsis = "…"

// AggregationOption — функциональная опция для настройки AggregationService.
type AggregationOption func(*AggregationService)

// WithRecentLimit устанавливает число последних сообщений в дайджесте.
func WithRecentLimit(n int) AggregationOption {
	return func(s *AggregationService) {
		if n > 0 {
			s.recentLimit = n
		}
	}
}

// WithMaxRecentChars устанавливает максимальную длину дайджеста в символах.
func WithMaxRecentChars(n int) AggregationOption {
	return func(s *AggregationService) {
		if n > 0 {
			s.maxRecentChars = n
		}
	}
}

// AggregationService объединяет участников и сообщения в сводные строки
// по пользователям. Сервис не хранит состояние и безопасен для
// одновременного использования.
type AggregationService struct {
	recentLimit    int
	maxRecentChars int
}

// NewAggregationService создает новый AggregationService с использованием
// функциональных опций.
func NewAggregationService(opts ...AggregationOption) *AggregationService {
	s := &AggregationService{
		recentLimit:    DefaultRecentLimit,
		maxRecentChars: DefaultMaxRecentChars,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BuildCombined строит по одной строке на каждого пользователя,
// встретившегося в списке участников или среди отправителей сообщений.
// Записи без идентификатора пользователя молча отбрасываются.
// Результат упорядочен по возрастанию user_id.
func (s *AggregationService) BuildCombined(members []domain.Member, messages []domain.Message) []domain.CombinedRow {
	byUser := make(map[int64]*domain.CombinedRow)

	for _, m := range members {
		if m.UserID == 0 {
			continue
		}
		isBot := m.IsBot
		isPremium := m.IsPremium
		byUser[m.UserID] = &domain.CombinedRow{
			UserID:    m.UserID,
			Username:  m.Username,
			FirstName: m.FirstName,
			LastName:  m.LastName,
			Phone:     m.Phone,
			Bio:       m.Bio,
			LastSeen:  m.LastSeen,
			IsPremium: &isPremium,
			IsBot:     &isBot,
		}
	}

	bySender := make(map[int64][]domain.Message)
	for _, msg := range messages {
		if msg.SenderID == nil {
			continue
		}
		bySender[*msg.SenderID] = append(bySender[*msg.SenderID], msg)
	}

	for senderID, msgs := range bySender {
		row, exists := byUser[senderID]
		if !exists {
			// Отправитель отсутствует в списке участников: строка
			// без профильных полей.
			row = &domain.CombinedRow{UserID: senderID}
			byUser[senderID] = row
		}

		sort.SliceStable(msgs, func(i, j int) bool {
			return msgs[i].Timestamp < msgs[j].Timestamp
		})

		row.MessageCount = len(msgs)
		row.FirstMessageAt = msgs[0].Timestamp
		row.LastMessageAt = msgs[len(msgs)-1].Timestamp

		// Если username не известен из профиля, берем первый непустой
		// sender_username, просматривая сообщения от новых к старым.
		if row.Username == "" {
			for i := len(msgs) - 1; i >= 0; i-- {
				if msgs[i].SenderUsername != "" {
					row.Username = msgs[i].SenderUsername
					break
				}
			}
		}

		row.RecentMessages = s.recentDigest(msgs)
	}

	ids := make([]int64, 0, len(byUser))
	for id := range byUser {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	rows := make([]domain.CombinedRow, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, *byUser[id])
	}
	return rows
}

// recentDigest собирает дайджест последних сообщений: от новых к старым,
// с нормализацией пробелов, через разделитель " | ", с усечением до
// maxRecentChars символов.
func (s *AggregationService) recentDigest(sorted []domain.Message) string {
	start := len(sorted) - s.recentLimit
	if start < 0 {
		start = 0
	}
	recent := sorted[start:]

	parts := make([]string, 0, len(recent))
	for i := len(recent) - 1; i >= 0; i-- {
		text := normalizeText(recent[i].Text)
		if text != "" {
			parts = append(parts, text)
		}
	}

	blob := strings.Join(parts, " | ")
	runes := []rune(blob)
	if len(runes) > s.maxRecentChars {
		blob = strings.TrimRight(string(runes[:s.maxRecentChars]), " ") + ellipsis
	}
	return blob
}

// normalizeText схлопывает последовательности пробельных символов в
// одиночные пробелы и обрезает края.
func normalizeText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
