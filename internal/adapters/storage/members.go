package storage

import (
	"context"
	"fmt"

	"telegram-intel/internal/domain"
)

// ListChatMembers возвращает страницу сохраненных участников чата по возрастанию ID
// и общее число участников. limit <= 0 означает "все".
func (s *Storage) ListChatMembers(ctx context.Context, chatRemoteID int64, offset, limit int) ([]domain.ChatMember, int64, error) {
	var total int64
	err := s.db.WithContext(ctx).Model(&membershipRow{}).
		Where("chat_id = ?", chatRemoteID).
		Count(&total).Error
	if err != nil {
		s.log.ErrorContext(ctx, "storage: Failed to count chat members", "error", err, "chat_id", chatRemoteID)
		return nil, 0, fmt.Errorf("failed to count members of chat %d: %w", chatRemoteID, classify(err))
	}

	members := make([]domain.ChatMember, 0)
	if total == 0 || int64(offset) >= total {
		return members, total, nil
	}

	q := s.db.WithContext(ctx).
		Preload("User").
		Where("chat_id = ?", chatRemoteID).
		Order("user_id").
		Offset(offset)
	if limit > 0 {
		q = q.Limit(limit)
	}

	var rows []membershipRow
	if err := q.Find(&rows).Error; err != nil {
		s.log.ErrorContext(ctx, "storage: Failed to list chat members", "error", err, "chat_id", chatRemoteID)
		return nil, 0, fmt.Errorf("failed to list members of chat %d: %w", chatRemoteID, classify(err))
	}

	for _, r := range rows {
		m := domain.ChatMember{
			TelegramUser:    r.User.toDomain(),
			InviterRemoteID: r.InviterUserID,
			JoinedAt:        r.JoinedDate,
			RecordedAt:      r.AddedAt,
		}
		if r.ParticipantType != nil {
			m.Role = domain.Role(*r.ParticipantType)
		}
		members = append(members, m)
	}
	return members, total, nil
}
