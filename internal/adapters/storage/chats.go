package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"telegram-intel/internal/domain"
)

// GetChatByRemoteID возвращает сохраненный чат или nil, если его нет.
func (s *Storage) GetChatByRemoteID(ctx context.Context, remoteID int64) (*domain.ChatRecord, error) {
	var row targetChatRow
	err := s.db.WithContext(ctx).Where("chat_id = ?", remoteID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		s.log.ErrorContext(ctx, "storage: Failed to get chat", "error", err, "chat_id", remoteID)
		return nil, fmt.Errorf("failed to get chat %d: %w", remoteID, classify(err))
	}
	return row.toDomain(), nil
}

// UpsertChat создает чат или обновляет его атрибуты и статус.
// Владелец и время создания существующей записи не меняются,
// известный access_hash не затирается пустым значением.
func (s *Storage) UpsertChat(ctx context.Context, snapshot domain.ChatSnapshot, owner uuid.UUID, status domain.ChatStatus) (*domain.ChatRecord, error) {
	now := s.now()
	row := targetChatRow{
		ChatID:     snapshot.ID,
		Title:      strPtr(snapshot.Title),
		Username:   strPtr(snapshot.Username),
		AccessHash: snapshot.AccessHash,
		Status:     string(status),
		AddedBy:    owner,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if snapshot.Type != "" {
		t := string(snapshot.Type)
		row.Type = &t
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "chat_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"title":       gorm.Expr("excluded.title"),
				"username":    gorm.Expr("excluded.username"),
				"access_hash": gorm.Expr("COALESCE(excluded.access_hash, target_chats.access_hash)"),
				"type":        gorm.Expr("excluded.type"),
				"status":      gorm.Expr("excluded.status"),
				"updated_at":  gorm.Expr("excluded.updated_at"),
			}),
		}).
		Omit(clause.Associations).
		Create(&row).Error
	if err != nil {
		s.log.ErrorContext(ctx, "storage: Failed to upsert chat", "error", err, "chat_id", snapshot.ID)
		return nil, fmt.Errorf("failed to upsert chat %d: %w", snapshot.ID, classify(err))
	}

	rec, err := s.GetChatByRemoteID(ctx, snapshot.ID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("chat %d vanished after upsert", snapshot.ID)
	}
	return rec, nil
}

// UpdateChatStatus меняет статус чата. Для неизвестного чата возвращает nil без ошибки.
func (s *Storage) UpdateChatStatus(ctx context.Context, remoteID int64, status domain.ChatStatus) (*domain.ChatRecord, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown chat status %q", domain.ErrConstraintViolation, status)
	}

	res := s.db.WithContext(ctx).
		Model(&targetChatRow{}).
		Where("chat_id = ?", remoteID).
		Updates(map[string]any{"status": string(status), "updated_at": s.now()})
	if res.Error != nil {
		s.log.ErrorContext(ctx, "storage: Failed to update chat status", "error", res.Error, "chat_id", remoteID, "status", status)
		return nil, fmt.Errorf("failed to update status of chat %d: %w", remoteID, classify(res.Error))
	}
	if res.RowsAffected == 0 {
		s.log.WarnContext(ctx, "storage: Tried to update status of unknown chat", "chat_id", remoteID, "status", status)
		return nil, nil
	}
	return s.GetChatByRemoteID(ctx, remoteID)
}
