package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"telegram-intel/internal/domain"
)

// CreateAppUser регистрирует принципала. Повторный email дает domain.ErrConstraintViolation.
func (s *Storage) CreateAppUser(ctx context.Context, email, passwordHash string) (*domain.AppUser, error) {
	now := s.now()
	row := appUserRow{
		ID:           uuid.New(),
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		s.log.ErrorContext(ctx, "storage: Failed to create app user", "error", err)
		return nil, fmt.Errorf("failed to create app user: %w", classify(err))
	}
	return row.toDomain(), nil
}

// GetAppUser возвращает принципала по ID или nil, если его нет.
func (s *Storage) GetAppUser(ctx context.Context, id uuid.UUID) (*domain.AppUser, error) {
	return s.findAppUser(ctx, "id = ?", id)
}

// GetAppUserByEmail возвращает принципала по email или nil, если его нет.
func (s *Storage) GetAppUserByEmail(ctx context.Context, email string) (*domain.AppUser, error) {
	return s.findAppUser(ctx, "email = ?", strings.ToLower(strings.TrimSpace(email)))
}

func (s *Storage) findAppUser(ctx context.Context, query string, arg any) (*domain.AppUser, error) {
	var row appUserRow
	err := s.db.WithContext(ctx).Where(query, arg).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		s.log.ErrorContext(ctx, "storage: Failed to get app user", "error", err)
		return nil, fmt.Errorf("failed to get app user: %w", classify(err))
	}
	return row.toDomain(), nil
}

// BindSessionFile привязывает файл сессии Telegram к принципалу.
// Для неизвестного принципала возвращает nil без ошибки.
func (s *Storage) BindSessionFile(ctx context.Context, id uuid.UUID, sessionFile string) (*domain.AppUser, error) {
	res := s.db.WithContext(ctx).
		Model(&appUserRow{}).
		Where("id = ?", id).
		Updates(map[string]any{"session_file": strPtr(sessionFile), "updated_at": s.now()})
	if res.Error != nil {
		s.log.ErrorContext(ctx, "storage: Failed to bind session file", "error", res.Error, "principal_id", id)
		return nil, fmt.Errorf("failed to bind session file: %w", classify(res.Error))
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return s.GetAppUser(ctx, id)
}

// GetSessionHandle возвращает имя файла сессии принципала.
// Пустая строка без ошибки означает, что сессия не привязана или принципала нет.
func (s *Storage) GetSessionHandle(ctx context.Context, principalID uuid.UUID) (string, error) {
	u, err := s.GetAppUser(ctx, principalID)
	if err != nil {
		return "", err
	}
	if u == nil {
		return "", nil
	}
	return u.SessionFile, nil
}
