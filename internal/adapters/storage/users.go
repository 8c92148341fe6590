package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"telegram-intel/internal/domain"
)

// Поля пользователя, перезаписываемые последним увиденным значением.
var userMutableColumns = []string{
	"access_hash", "username", "first_name", "last_name", "phone",
	"is_bot", "is_deleted", "is_verified", "is_restricted", "is_scam", "is_fake",
	"lang_code", "updated_at",
}

// UpsertUsers сохраняет пользователей одним набором INSERT ... ON CONFLICT (id).
// Первый обнаруживший принципал и время создания сохраняются; остальные поля
// перезаписываются. Возвращает все затронутые строки.
func (s *Storage) UpsertUsers(ctx context.Context, records []domain.ParticipantRecord, discoveredBy uuid.UUID) ([]domain.TelegramUser, error) {
	records = uniqueByID(records)
	if len(records) == 0 {
		return []domain.TelegramUser{}, nil
	}

	var by *uuid.UUID
	if discoveredBy != uuid.Nil {
		by = &discoveredBy
	}

	now := s.now()
	rows := make([]userRow, len(records))
	ids := make([]int64, len(records))
	for i, p := range records {
		rows[i] = newUserRow(p, by, now)
		ids[i] = p.ID
	}

	updates := clause.AssignmentColumns(userMutableColumns)
	updates = append(updates, clause.Assignment{
		Column: clause.Column{Name: "added_by_user_id"},
		Value:  gorm.Expr("COALESCE(users.added_by_user_id, excluded.added_by_user_id)"),
	})

	var saved []domain.TelegramUser
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: updates,
		}).
			Omit(clause.Associations).
			CreateInBatches(&rows, s.batchSize).Error
		if err != nil {
			return err
		}

		saved = make([]domain.TelegramUser, 0, len(ids))
		for start := 0; start < len(ids); start += s.batchSize {
			end := min(start+s.batchSize, len(ids))

			var chunk []userRow
			if err := tx.Where("id IN ?", ids[start:end]).Order("id").Find(&chunk).Error; err != nil {
				return err
			}
			for _, r := range chunk {
				saved = append(saved, r.toDomain())
			}
		}
		return nil
	})
	if err != nil {
		s.log.ErrorContext(ctx, "storage: Failed to upsert users", "error", err, "count", len(rows))
		return nil, fmt.Errorf("failed to upsert %d users: %w", len(rows), classify(err))
	}

	s.log.DebugContext(ctx, "storage: Users upserted", "count", len(saved))
	return saved, nil
}

// UpsertMembership сохраняет связи участников с чатом.
// Пригласившие, которых нет в таблице users, добавляются пустыми строками,
// чтобы выполнялся внешний ключ inviter_user_id.
// При конфликте (chat_id, user_id) обновляются только роль, пригласивший и дата входа.
func (s *Storage) UpsertMembership(ctx context.Context, chatRemoteID int64, records []domain.ParticipantRecord) (int64, error) {
	records = uniqueByID(records)
	if len(records) == 0 {
		return 0, nil
	}

	now := s.now()
	rows := make([]membershipRow, len(records))
	var placeholders []userRow
	seen := make(map[int64]struct{})
	for i, p := range records {
		rows[i] = newMembershipRow(chatRemoteID, p, now)
		if p.InviterID == nil {
			continue
		}
		if _, ok := seen[*p.InviterID]; ok {
			continue
		}
		seen[*p.InviterID] = struct{}{}
		placeholders = append(placeholders, userRow{ID: *p.InviterID, CreatedAt: now, UpdatedAt: now})
	}

	var affected int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(placeholders) > 0 {
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				DoNothing: true,
			}).
				Omit(clause.Associations).
				CreateInBatches(&placeholders, s.batchSize).Error
			if err != nil {
				return err
			}
		}

		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "chat_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"participant_type", "inviter_user_id", "joined_date"}),
		}).
			Omit(clause.Associations).
			CreateInBatches(&rows, s.batchSize)
		if res.Error != nil {
			return res.Error
		}
		affected = res.RowsAffected
		return nil
	})
	if err != nil {
		s.log.ErrorContext(ctx, "storage: Failed to upsert memberships", "error", err, "chat_id", chatRemoteID, "count", len(rows))
		return 0, fmt.Errorf("failed to upsert memberships of chat %d: %w", chatRemoteID, classify(err))
	}

	s.log.DebugContext(ctx, "storage: Memberships upserted", "chat_id", chatRemoteID, "count", affected)
	return affected, nil
}

// uniqueByID оставляет последнюю запись для каждого ID, сохраняя порядок первых появлений.
// Один INSERT ... ON CONFLICT не может затронуть строку дважды.
func uniqueByID(records []domain.ParticipantRecord) []domain.ParticipantRecord {
	idx := make(map[int64]int, len(records))
	out := make([]domain.ParticipantRecord, 0, len(records))
	for _, r := range records {
		if i, ok := idx[r.ID]; ok {
			out[i] = r
			continue
		}
		idx[r.ID] = len(out)
		out = append(out, r)
	}
	return out
}
