// Package storage реализует слой сохранения данных сбора поверх gorm.
package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"telegram-intel/internal/domain"
	"telegram-intel/internal/pkg/config"
	"telegram-intel/internal/ports"
)

// defaultBatchSize - размер пачки строк в одном INSERT.
const defaultBatchSize = 500

var (
	ErrUnknownDriver   = errors.New("unknown database driver")
	ErrMigrationFailed = errors.New("failed to migrate")
)

var (
	_ ports.Datastore           = (*Storage)(nil)
	_ ports.SessionStore        = (*Storage)(nil)
	_ ports.PrincipalRepository = (*Storage)(nil)
	_ ports.MemberReader        = (*Storage)(nil)
)

// Storage хранит чаты, пользователей Telegram, связи участников и принципалов.
type Storage struct {
	db        *gorm.DB
	log       *slog.Logger
	now       func() time.Time
	batchSize int
}

// Option - функциональная опция для Storage.
type Option func(*Storage)

// WithLogger устанавливает логгер.
func WithLogger(l *slog.Logger) Option {
	return func(s *Storage) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock подменяет источник времени для меток created_at/updated_at.
func WithClock(now func() time.Time) Option {
	return func(s *Storage) {
		if now != nil {
			s.now = now
		}
	}
}

// WithBatchSize задает размер пачки при массовой вставке.
func WithBatchSize(n int) Option {
	return func(s *Storage) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// New оборачивает открытое соединение gorm.
func New(db *gorm.DB, opts ...Option) *Storage {
	s := &Storage{
		db:        db,
		log:       slog.Default(),
		now:       func() time.Time { return time.Now().UTC() },
		batchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open открывает базу данных по конфигурации.
// postgres работает через database/sql-драйвер lib/pq, sqlite - через gorm.io/driver/sqlite.
func Open(cfg config.Database, opts ...Option) (*Storage, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(cfg.Driver) {
	case "postgres", "postgresql":
		dialector = postgres.New(postgres.Config{DriverName: "postgres", DSN: cfg.DSN})
	case "sqlite", "sqlite3":
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		slog.Error("storage: Failed to connect to database", "error", err, "driver", cfg.Driver)
		return nil, fmt.Errorf("failed to connect to database: %w", classify(err))
	}

	return New(db, opts...), nil
}

// Migrate создает или обновляет схему.
func (s *Storage) Migrate(ctx context.Context) error {
	s.log.InfoContext(ctx, "storage: Going to start database migrations")

	err := s.db.WithContext(ctx).AutoMigrate(&appUserRow{}, &targetChatRow{}, &userRow{}, &membershipRow{})
	if err != nil {
		s.log.ErrorContext(ctx, "storage: Failed to migrate database", "error", err)
		return fmt.Errorf("%w: %w", ErrMigrationFailed, err)
	}
	return nil
}

// Close закрывает пул соединений.
func (s *Storage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// classify сводит ошибки драйверов к доменным ошибкам хранилища.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey), errors.Is(err, gorm.ErrForeignKeyViolated):
		return fmt.Errorf("%w: %w", domain.ErrConstraintViolation, err)
	case errors.As(err, &pqErr):
		switch pqErr.Code.Class() {
		case "23":
			return fmt.Errorf("%w: %w", domain.ErrConstraintViolation, err)
		case "08", "57":
			return fmt.Errorf("%w: %w", domain.ErrConnectionLost, err)
		}
		return err
	case errors.Is(err, driver.ErrBadConn),
		errors.Is(err, sql.ErrConnDone),
		errors.Is(err, io.ErrUnexpectedEOF):
		return fmt.Errorf("%w: %w", domain.ErrConnectionLost, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %w", domain.ErrConnectionLost, err)
	}

	// sqlite отдает нарушения ограничений только текстом.
	if strings.Contains(err.Error(), "constraint failed") {
		return fmt.Errorf("%w: %w", domain.ErrConstraintViolation, err)
	}
	return err
}
