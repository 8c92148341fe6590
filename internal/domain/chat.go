package domain

import (
	"time"

	"github.com/google/uuid"
)

// ChatType - тип целевого чата.
type ChatType string

const (
	ChatTypeGroup      ChatType = "group"
	ChatTypeSupergroup ChatType = "supergroup"
	ChatTypeChannel    ChatType = "channel"
)

// ChatStatus - статус сбора данных по чату.
type ChatStatus string

const (
	ChatStatusNew        ChatStatus = "new"
	ChatStatusCollecting ChatStatus = "collecting"
	ChatStatusCollected  ChatStatus = "collected"
	ChatStatusError      ChatStatus = "error"
	ChatStatusMonitoring ChatStatus = "monitoring"
)

// Valid сообщает, является ли статус одним из известных значений.
func (s ChatStatus) Valid() bool {
	switch s {
	case ChatStatusNew, ChatStatusCollecting, ChatStatusCollected, ChatStatusError, ChatStatusMonitoring:
		return true
	}
	return false
}

// EntityDescriptor - каноническое описание удаленного чата, полученное резолвером.
// Весь последующий код ветвится только по Kind.
type EntityDescriptor struct {
	Kind          ChatType
	ID            int64
	AccessHash    int64
	HasAccessHash bool
	Title         string
	Username      string
	Gigagroup     bool
	// ParticipantsCount из самой сущности (0, если не передан).
	ParticipantsCount int
}

// ChannelLike сообщает, адресуется ли сущность через InputChannel (канал или супергруппа).
func (d EntityDescriptor) ChannelLike() bool {
	return d.Kind == ChatTypeChannel || d.Kind == ChatTypeSupergroup
}

// ChatSnapshot - атрибуты чата на момент сбора.
// ParticipantsCount и About равны nil, если расширенные метаданные получить не удалось.
type ChatSnapshot struct {
	ID                int64    `json:"id"`
	Title             string   `json:"title"`
	Username          string   `json:"username,omitempty"`
	AccessHash        *int64   `json:"access_hash,omitempty"`
	Type              ChatType `json:"type"`
	ParticipantsCount *int     `json:"participants_count"`
	About             *string  `json:"about"`
	IsChannel         bool     `json:"is_channel"`
	IsSupergroup      bool     `json:"is_supergroup"`
	IsGroup           bool     `json:"is_group"`
	IsGigagroup       bool     `json:"is_gigagroup"`
}

// ChatRecord - сохраненный целевой чат.
type ChatRecord struct {
	RemoteID         int64      `json:"chat_id"`
	Title            string     `json:"title"`
	Username         string     `json:"username,omitempty"`
	AccessHash       *int64     `json:"-"`
	Type             ChatType   `json:"type"`
	Status           ChatStatus `json:"status"`
	OwnerPrincipalID uuid.UUID  `json:"added_by"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// CollectionOutcome - результат граничной операции запуска сбора.
type CollectionOutcome struct {
	Message string      `json:"message"`
	ChatID  *int64      `json:"chat_id"`
	Status  *ChatStatus `json:"status"`
}

// CollectionResult - итог прогона оркестратора.
type CollectionResult struct {
	// Chat равен nil, если информацию о чате получить не удалось.
	Chat *ChatSnapshot
	// Descriptor равен nil, если сущность не была разрешена.
	Descriptor *EntityDescriptor
	// Participants имеет смысл, только если ParticipantsCollected = true.
	Participants          []ParticipantRecord
	ParticipantsCollected bool
	// Err - первая ошибка этапа, приведшая к отсутствию данных.
	Err error
}

// Empty сообщает, что не удалось получить ни чат, ни участников.
func (r CollectionResult) Empty() bool {
	return r.Chat == nil && !r.ParticipantsCollected
}
