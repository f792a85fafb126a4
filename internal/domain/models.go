package domain

// Значения поля LastSeen, которые не являются точной временной меткой.
// Точное время последнего визита хранится как строка в формате RFC3339.
const (
	LastSeenOnline    = "online"
	LastSeenOffline   = "offline"
	LastSeenRecently  = "recently"
	LastSeenLastWeek  = "last_week"
	LastSeenLastMonth = "last_month"
	LastSeenHidden    = "hidden"
)

// Member представляет участника группы, полученного через API.
// Пустая строка означает отсутствие значения (Telegram скрывает
// телефон и статус настройками приватности).
type Member struct {
	UserID    int64  `json:"user_id"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Phone     string `json:"phone,omitempty"`
	IsBot     bool   `json:"is_bot"`
	LastSeen  string `json:"last_seen,omitempty"`
	IsPremium bool   `json:"is_premium"`
	Bio       string `json:"bio,omitempty"`
}

// Message представляет одно сообщение из истории группы.
// SenderID и ReplyToID — указатели: анонимные посты каналов и
// сервисные сообщения не имеют отправителя.
type Message struct {
	SenderID       *int64 `json:"sender_id"`
	SenderUsername string `json:"sender_username,omitempty"`
	SenderName     string `json:"sender_name,omitempty"`
	MessageID      int64  `json:"message_id"`
	Timestamp      string `json:"timestamp"`
	Text           string `json:"text"`
	ReplyToID      *int64 `json:"reply_to_id,omitempty"`
	ForwardFrom    string `json:"forward_from,omitempty"`
	HasMedia       bool   `json:"has_media"`
	MediaType      string `json:"media_type,omitempty"`
}

// CombinedRow — агрегированная строка "профиль + активность" по одному
// пользователю. IsBot и IsPremium — указатели, чтобы отличать
// "пользователь не найден в списке участников" от false.
type CombinedRow struct {
	UserID         int64  `json:"user_id"`
	Username       string `json:"username,omitempty"`
	FirstName      string `json:"first_name,omitempty"`
	LastName       string `json:"last_name,omitempty"`
	Phone          string `json:"phone,omitempty"`
	Bio            string `json:"bio,omitempty"`
	LastSeen       string `json:"last_seen,omitempty"`
	IsPremium      *bool  `json:"is_premium,omitempty"`
	IsBot          *bool  `json:"is_bot,omitempty"`
	MessageCount   int    `json:"message_count"`
	FirstMessageAt string `json:"first_message_at,omitempty"`
	LastMessageAt  string `json:"last_message_at,omitempty"`
	RecentMessages string `json:"recent_messages"`
}

// Group представляет разрешенную группу или канал.
// AccessHash необходим для всех последующих запросов к каналу.
type Group struct {
	ID         int64  `json:"id"`
	AccessHash int64  `json:"access_hash"`
	Title      string `json:"title"`
	Username   string `json:"username,omitempty"`
	Broadcast  bool   `json:"broadcast"`
	Megagroup  bool   `json:"megagroup"`
}

// Type возвращает человекочитаемый тип группы.
func (g *Group) Type() string {
	if g.Broadcast {
		return "Channel"
	}
	return "Group"
}

// GroupInfo содержит сводку о группе для предварительного просмотра.
type GroupInfo struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	Username     string `json:"username,omitempty"`
	Type         string `json:"type"`
	MembersCount int    `json:"members_count,omitempty"`
}

// ScrapeKind определяет вид выгрузки.
type ScrapeKind string

const (
	KindMembers  ScrapeKind = "members"
	KindMessages ScrapeKind = "messages"
	KindCombined ScrapeKind = "combined"
)

// ScrapeRequest описывает одну задачу выгрузки, как ее принимает
// HTTP API и вариант использования.
type ScrapeRequest struct {
	Group         string     `json:"group"`
	Kind          ScrapeKind `json:"kind"`
	Limit         int        `json:"limit,omitempty"`
	Since         string     `json:"since,omitempty"` // YYYY-MM-DD
	Until         string     `json:"until,omitempty"` // YYYY-MM-DD
	Keywords      []string   `json:"keywords,omitempty"`
	Chronological bool       `json:"chronological,omitempty"`
}

// ScrapeResult — итог выполненной задачи выгрузки.
type ScrapeResult struct {
	GroupTitle string `json:"group_title"`
	FilePath   string `json:"file_path"`
	Rows       int    `json:"rows"`
}
