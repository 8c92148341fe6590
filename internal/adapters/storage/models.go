package storage

import (
	"time"

	"github.com/google/uuid"

	"telegram-intel/internal/domain"
)

// Временные метки заполняются из часов хранилища, а не gorm и не СУБД:
// так повторный upsert детерминирован и проверяем в тестах.

type appUserRow struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Email        string    `gorm:"type:text;uniqueIndex;not null"`
	PasswordHash string    `gorm:"type:text;not null"`
	SessionFile  *string   `gorm:"type:text"`
	CreatedAt    time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime:false"`
}

func (appUserRow) TableName() string { return "app_users" }

type targetChatRow struct {
	InternalID uint      `gorm:"primaryKey;autoIncrement"`
	ChatID     int64     `gorm:"uniqueIndex:uq_target_chats_chat_id;not null"`
	Title      *string   `gorm:"type:text"`
	Username   *string   `gorm:"type:text;index"`
	AccessHash *int64
	Type       *string   `gorm:"type:text"`
	Status     string    `gorm:"type:text;not null;default:new;index"`
	AddedBy    uuid.UUID `gorm:"type:uuid;not null"`
	CreatedAt  time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime:false"`

	Owner   appUserRow      `gorm:"foreignKey:AddedBy;references:ID"`
	Members []membershipRow `gorm:"foreignKey:ChatID;references:ChatID"`
}

func (targetChatRow) TableName() string { return "target_chats" }

type userRow struct {
	ID            int64      `gorm:"primaryKey;autoIncrement:false"`
	AccessHash    *int64
	Username      *string    `gorm:"type:text;index"`
	FirstName     *string    `gorm:"type:text"`
	LastName      *string    `gorm:"type:text"`
	Phone         *string    `gorm:"type:text;index"`
	IsBot         bool       `gorm:"not null"`
	IsDeleted     bool       `gorm:"not null"`
	IsVerified    bool       `gorm:"not null"`
	IsRestricted  bool       `gorm:"not null"`
	IsScam        bool       `gorm:"not null"`
	IsFake        bool       `gorm:"not null"`
	LangCode      *string    `gorm:"type:text"`
	AddedByUserID *uuid.UUID `gorm:"type:uuid"`
	CreatedAt     time.Time  `gorm:"autoCreateTime:false"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime:false"`

	Discoverer *appUserRow `gorm:"foreignKey:AddedByUserID;references:ID"`
}

func (userRow) TableName() string { return "users" }

type membershipRow struct {
	ID              uint       `gorm:"primaryKey;autoIncrement"`
	ChatID          int64      `gorm:"not null;uniqueIndex:uq_chat_participant,priority:1;index:ix_chat_participants_chat_id"`
	UserID          int64      `gorm:"not null;uniqueIndex:uq_chat_participant,priority:2;index:ix_chat_participants_user_id"`
	ParticipantType *string    `gorm:"type:text"`
	InviterUserID   *int64
	JoinedDate      *time.Time
	AddedAt         time.Time

	// Связь с target_chats объявлена на родителе (targetChatRow.Members).
	User    userRow  `gorm:"foreignKey:UserID;references:ID"`
	Inviter *userRow `gorm:"foreignKey:InviterUserID;references:ID"`
}

func (membershipRow) TableName() string { return "chat_participants" }

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func strVal(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (r appUserRow) toDomain() *domain.AppUser {
	return &domain.AppUser{
		ID:           r.ID,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		SessionFile:  strVal(r.SessionFile),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func (r targetChatRow) toDomain() *domain.ChatRecord {
	return &domain.ChatRecord{
		RemoteID:         r.ChatID,
		Title:            strVal(r.Title),
		Username:         strVal(r.Username),
		AccessHash:       r.AccessHash,
		Type:             domain.ChatType(strVal(r.Type)),
		Status:           domain.ChatStatus(r.Status),
		OwnerPrincipalID: r.AddedBy,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

func (r userRow) toDomain() domain.TelegramUser {
	return domain.TelegramUser{
		RemoteID:     r.ID,
		AccessHash:   r.AccessHash,
		Username:     strVal(r.Username),
		FirstName:    strVal(r.FirstName),
		LastName:     strVal(r.LastName),
		Phone:        strVal(r.Phone),
		IsBot:        r.IsBot,
		IsDeleted:    r.IsDeleted,
		IsVerified:   r.IsVerified,
		IsRestricted: r.IsRestricted,
		IsScam:       r.IsScam,
		IsFake:       r.IsFake,
		LangCode:     strVal(r.LangCode),
		DiscoveredBy: r.AddedByUserID,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func newUserRow(p domain.ParticipantRecord, discoveredBy *uuid.UUID, now time.Time) userRow {
	return userRow{
		ID:            p.ID,
		AccessHash:    p.AccessHash,
		Username:      strPtr(p.Username),
		FirstName:     strPtr(p.FirstName),
		LastName:      strPtr(p.LastName),
		Phone:         strPtr(p.Phone),
		IsBot:         p.IsBot,
		IsDeleted:     p.IsDeleted,
		IsVerified:    p.IsVerified,
		IsRestricted:  p.IsRestricted,
		IsScam:        p.IsScam,
		IsFake:        p.IsFake,
		LangCode:      strPtr(p.LangCode),
		AddedByUserID: discoveredBy,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func newMembershipRow(chatID int64, p domain.ParticipantRecord, now time.Time) membershipRow {
	row := membershipRow{
		ChatID:        chatID,
		UserID:        p.ID,
		InviterUserID: p.InviterID,
		JoinedDate:    p.JoinedAt,
		AddedAt:       now,
	}
	if p.Role != "" {
		role := string(p.Role)
		row.ParticipantType = &role
	}
	return row
}
