package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"telegram-intel/internal/domain"
	"telegram-intel/internal/ports"
)

const minPasswordLength = 8

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidEmail       = errors.New("invalid email")
	ErrWeakPassword       = errors.New("password is too short")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidSessionFile = errors.New("invalid session file name")
)

// Service регистрирует принципалов, выдает токены и привязывает сессии Telegram.
type Service struct {
	repo       ports.PrincipalRepository
	tokens     *TokenManager
	sessionDir string
	log        *slog.Logger
}

// Option - функциональная опция для Service.
type Option func(*Service)

// WithLogger устанавливает логгер.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithSessionDir включает проверку существования файла сессии при привязке.
func WithSessionDir(dir string) Option {
	return func(s *Service) { s.sessionDir = dir }
}

// NewService создает сервис аутентификации.
func NewService(repo ports.PrincipalRepository, tokens *TokenManager, opts ...Option) *Service {
	s := &Service{repo: repo, tokens: tokens, log: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register создает принципала с bcrypt-хешем пароля.
func (s *Service) Register(ctx context.Context, email, password string) (*domain.AppUser, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrInvalidEmail
	}
	if len(password) < minPasswordLength {
		return nil, ErrWeakPassword
	}

	existing, err := s.repo.GetAppUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u, err := s.repo.CreateAppUser(ctx, email, string(hash))
	if errors.Is(err, domain.ErrConstraintViolation) {
		return nil, ErrEmailTaken
	}
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "App user registered", "principal_id", u.ID)
	return u, nil
}

// Login проверяет пароль и выдает токен доступа.
func (s *Service) Login(ctx context.Context, email, password string) (string, time.Time, error) {
	u, err := s.repo.GetAppUserByEmail(ctx, email)
	if err != nil {
		return "", time.Time{}, err
	}
	if u == nil {
		return "", time.Time{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		s.log.WarnContext(ctx, "Failed login attempt", "principal_id", u.ID)
		return "", time.Time{}, ErrInvalidCredentials
	}
	return s.tokens.Issue(u.ID)
}

// Me возвращает принципала по ID.
func (s *Service) Me(ctx context.Context, id uuid.UUID) (*domain.AppUser, error) {
	u, err := s.repo.GetAppUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}

// BindSession привязывает к принципалу файл сессии Telegram.
// Имя должно быть локальным путем внутри каталога сессий.
func (s *Service) BindSession(ctx context.Context, id uuid.UUID, sessionFile string) (*domain.AppUser, error) {
	sessionFile = strings.TrimSpace(sessionFile)
	if sessionFile == "" || !filepath.IsLocal(sessionFile) {
		return nil, ErrInvalidSessionFile
	}
	if s.sessionDir != "" {
		if _, err := os.Stat(filepath.Join(s.sessionDir, sessionFile)); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidSessionFile, err)
		}
	}

	u, err := s.repo.BindSessionFile(ctx, id, sessionFile)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}

	s.log.InfoContext(ctx, "Session file bound", "principal_id", id)
	return u, nil
}
