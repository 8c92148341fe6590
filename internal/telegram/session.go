package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"

	"telegram-intel/internal/domain"
	"telegram-intel/internal/ports"
)

// telegramRunner определяет зависимости от клиента gotd.
// Это позволяет создавать моки в тестах.
type telegramRunner interface {
	Run(ctx context.Context, f func(ctx context.Context) error) error
	API() ports.TelegramAPI
	AuthStatus(ctx context.Context) (*auth.Status, error)
}

// prodRunner является оберткой вокруг реального *telegram.Client для удовлетворения интерфейса telegramRunner.
type prodRunner struct {
	*telegram.Client
}

func (p *prodRunner) API() ports.TelegramAPI {
	return p.Client.API()
}

func (p *prodRunner) AuthStatus(ctx context.Context) (*auth.Status, error) {
	return p.Client.Auth().Status(ctx)
}

// AppConfig - учетные данные приложения Telegram.
type AppConfig struct {
	APIID      int
	APIHash    string
	SessionDir string
}

// newProdRunner создает клиента gotd поверх файловой сессии.
func newProdRunner(cfg AppConfig, sessionPath string) telegramRunner {
	client := telegram.NewClient(cfg.APIID, cfg.APIHash, telegram.Options{
		SessionStorage: &session.FileStorage{Path: sessionPath},
		NoUpdates:      true,
	})
	return &prodRunner{Client: client}
}

// SessionProvider выдает авторизованное соединение принципала на время одной операции.
type SessionProvider struct {
	cfg       AppConfig
	store     ports.SessionStore
	newRunner func(cfg AppConfig, sessionPath string) telegramRunner
	log       *slog.Logger
	clientOpt []ClientOption
}

var _ ports.SessionProvider = (*SessionProvider)(nil)

// SessionOption определяет функциональную опцию для SessionProvider.
type SessionOption func(*SessionProvider)

// WithSessionLogger устанавливает логгер.
func WithSessionLogger(l *slog.Logger) SessionOption {
	return func(p *SessionProvider) {
		if l != nil {
			p.log = l
		}
	}
}

// NewSessionProvider создает новый SessionProvider.
func NewSessionProvider(cfg AppConfig, store ports.SessionStore, opts ...SessionOption) *SessionProvider {
	p := &SessionProvider{
		cfg:       cfg,
		store:     store,
		newRunner: newProdRunner,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.clientOpt = []ClientOption{WithLogger(p.log)}
	return p
}

// SessionPath возвращает путь к файлу сессии внутри каталога сессий.
// Дескриптор должен быть локальным именем: выход за пределы каталога запрещен.
func SessionPath(dir, handle string) (string, error) {
	if handle == "" || !filepath.IsLocal(handle) {
		return "", fmt.Errorf("%w: bad session handle %q", domain.ErrNoSession, handle)
	}
	return filepath.Join(dir, handle), nil
}

// WithSession подключается к Telegram от имени принципала, проверяет авторизацию
// и выполняет fn. Соединение закрывается на любом пути выхода, включая отмену ctx.
func (p *SessionProvider) WithSession(ctx context.Context, principalID uuid.UUID, fn ports.SessionFunc) error {
	log := p.log.With("principal_id", principalID)

	handle, err := p.store.GetSessionHandle(ctx, principalID)
	if err != nil {
		return fmt.Errorf("failed to load session handle: %w", err)
	}
	if handle == "" {
		log.WarnContext(ctx, "No telegram session bound to principal")
		return domain.ErrNoSession
	}

	path, err := SessionPath(p.cfg.SessionDir, handle)
	if err != nil {
		return err
	}
	if _, statErr := os.Stat(path); statErr != nil {
		log.WarnContext(ctx, "Session file is missing", "path", path, "error", statErr)
		return fmt.Errorf("%w: %w", domain.ErrNoSession, statErr)
	}

	runner := p.newRunner(p.cfg, path)
	entered := false

	log.InfoContext(ctx, "Connecting telegram client")
	runErr := runner.Run(ctx, func(runCtx context.Context) error {
		entered = true

		status, err := runner.AuthStatus(runCtx)
		if err != nil {
			return classifyAuthError(err)
		}
		if !status.Authorized {
			return domain.ErrNotAuthorized
		}
		log.InfoContext(runCtx, "Telegram client authenticated and ready")

		return fn(runCtx, NewClient(runner.API(), p.clientOpt...))
	})
	log.InfoContext(ctx, "Telegram client disconnected")

	if runErr == nil {
		return nil
	}
	if !entered && !errors.Is(runErr, context.Canceled) && !errors.Is(runErr, context.DeadlineExceeded) {
		log.ErrorContext(ctx, "Telegram client failed to connect", "error", runErr)
		return fmt.Errorf("%w: %w", domain.ErrTransientConnect, runErr)
	}
	return runErr
}

func classifyAuthError(err error) error {
	switch {
	case IsChallenge(err):
		return fmt.Errorf("%w: %w", domain.ErrChallengeRequired, err)
	case IsUnauthorized(err):
		return fmt.Errorf("%w: %w", domain.ErrNotAuthorized, err)
	default:
		return fmt.Errorf("%w: %w", domain.ErrTransientConnect, err)
	}
}
