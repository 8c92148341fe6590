package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role - роль участника в чате.
type Role string

const (
	RoleCreator Role = "creator"
	RoleAdmin   Role = "admin"
	RoleMember  Role = "member"
	RoleSelf    Role = "self"
	RoleBanned  Role = "banned"
	RoleLeft    Role = "left"
)

// ParticipantRecord - участник, полученный при перечислении членов чата.
// Статус присутствия (online/last seen) не заполняется:
// метод перечисления участников его не отдает.
type ParticipantRecord struct {
	ID           int64      `json:"id"`
	AccessHash   *int64     `json:"access_hash,omitempty"`
	Username     string     `json:"username,omitempty"`
	FirstName    string     `json:"first_name,omitempty"`
	LastName     string     `json:"last_name,omitempty"`
	Phone        string     `json:"phone,omitempty"`
	IsBot        bool       `json:"is_bot"`
	IsDeleted    bool       `json:"is_deleted"`
	IsVerified   bool       `json:"is_verified"`
	IsRestricted bool       `json:"is_restricted"`
	IsScam       bool       `json:"is_scam"`
	IsFake       bool       `json:"is_fake"`
	LangCode     string     `json:"lang_code,omitempty"`
	Role         Role       `json:"participant_type"`
	InviterID    *int64     `json:"inviter_user_id,omitempty"`
	JoinedAt     *time.Time `json:"joined_date,omitempty"`
}

// TelegramUser - сохраненный пользователь Telegram.
type TelegramUser struct {
	RemoteID     int64      `json:"id"`
	AccessHash   *int64     `json:"-"`
	Username     string     `json:"username,omitempty"`
	FirstName    string     `json:"first_name,omitempty"`
	LastName     string     `json:"last_name,omitempty"`
	Phone        string     `json:"phone,omitempty"`
	IsBot        bool       `json:"is_bot"`
	IsDeleted    bool       `json:"is_deleted"`
	IsVerified   bool       `json:"is_verified"`
	IsRestricted bool       `json:"is_restricted"`
	IsScam       bool       `json:"is_scam"`
	IsFake       bool       `json:"is_fake"`
	LangCode     string     `json:"lang_code,omitempty"`
	DiscoveredBy *uuid.UUID `json:"added_by_user_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// MembershipEdge - связь "пользователь состоит в чате".
type MembershipEdge struct {
	ChatRemoteID    int64      `json:"chat_id"`
	MemberRemoteID  int64      `json:"user_id"`
	Role            Role       `json:"participant_type"`
	InviterRemoteID *int64     `json:"inviter_user_id,omitempty"`
	JoinedAt        *time.Time `json:"joined_date,omitempty"`
	RecordedAt      time.Time  `json:"added_at"`
}

// AppUser - принципал: пользователь приложения, владеющий сессией Telegram.
type AppUser struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	SessionFile  string    `json:"session_file,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ChatMember - сохраненный участник чата вместе со связью членства.
type ChatMember struct {
	TelegramUser
	Role            Role       `json:"participant_type,omitempty"`
	InviterRemoteID *int64     `json:"inviter_user_id,omitempty"`
	JoinedAt        *time.Time `json:"joined_date,omitempty"`
	RecordedAt      time.Time  `json:"added_at"`
}

// DisplayName возвращает имя и фамилию через пробел.
func (m ChatMember) DisplayName() string {
	switch {
	case m.FirstName == "":
		return m.LastName
	case m.LastName == "":
		return m.FirstName
	default:
		return m.FirstName + " " + m.LastName
	}
}
