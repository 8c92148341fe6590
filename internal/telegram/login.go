package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"golang.org/x/term"

	trm "telegram-intel/internal/pkg/term"
)

// LoginResult описывает аккаунт, под которым сохранена сессия.
type LoginResult struct {
	UserID   int64
	Username string
	Phone    string
}

// authFlow определяет интерфейс для процесса аутентификации.
type authFlow interface {
	Run(ctx context.Context, client auth.FlowClient) error
}

// Login интерактивно авторизует аккаунт и сохраняет сессию в файл sessionPath.
// Требует терминала: код подтверждения и пароль 2FA вводятся с клавиатуры.
func Login(ctx context.Context, cfg AppConfig, sessionPath, phone string, log *slog.Logger) (*LoginResult, error) {
	if log == nil {
		log = slog.Default()
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil, fmt.Errorf("interactive login requires a terminal")
	}

	client := telegram.NewClient(cfg.APIID, cfg.APIHash, telegram.Options{
		SessionStorage: &session.FileStorage{Path: sessionPath},
		NoUpdates:      true,
	})
	flow := auth.NewFlow(trm.NewTerminal(phone), auth.SendCodeOptions{})

	var result *LoginResult
	err := client.Run(ctx, func(ctx context.Context) error {
		var err error
		result, err = login(ctx, client.Auth(), flow, log)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// statusClient - часть auth.Client, нужная для проверки и запуска авторизации.
type statusClient interface {
	auth.FlowClient
	Status(ctx context.Context) (*auth.Status, error)
}

func login(ctx context.Context, client statusClient, flow authFlow, log *slog.Logger) (*LoginResult, error) {
	status, err := client.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check auth status: %w", err)
	}

	if !status.Authorized {
		log.InfoContext(ctx, "Session is not authorized, starting interactive auth")
		if err := flow.Run(ctx, client); err != nil {
			return nil, fmt.Errorf("interactive auth failed: %w", err)
		}
		if status, err = client.Status(ctx); err != nil {
			return nil, fmt.Errorf("failed to check auth status: %w", err)
		}
		if !status.Authorized {
			return nil, fmt.Errorf("session is still not authorized after auth flow")
		}
		log.InfoContext(ctx, "Interactive auth successful, session saved")
	}

	res := &LoginResult{}
	if status.User != nil {
		res.UserID = status.User.ID
		res.Username = status.User.Username
		res.Phone = status.User.Phone
	}
	return res, nil
}
