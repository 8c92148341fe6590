package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"telegram-intel/internal/app"
	"telegram-intel/internal/telegram"
)

var phone string

func init() {
	loginCmd := &cobra.Command{
		Use:   "login",
		Short: "Authorize a Telegram account and bind its session to an application user",
		Long: `login asks for the confirmation code (and the 2FA password, if set),
stores the Telegram session in the session directory and binds it to the
application user given by --email.`,
		Args: cobra.NoArgs,
		RunE: runLogin,
	}
	loginCmd.Flags().StringVar(&email, "email", "", "Application user email")
	loginCmd.Flags().StringVar(&phone, "phone", "", "Telegram phone number in international format")
	_ = loginCmd.MarkFlagRequired("email")
	_ = loginCmd.MarkFlagRequired("phone")

	rootCmd.AddCommand(loginCmd)
}

func runLogin(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateTelegram(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	ctx := cmd.Context()
	store, err := app.OpenStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	user, err := store.GetAppUserByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("пользователь %s не найден", email)
	}

	if err := os.MkdirAll(cfg.TelegramAPI.SessionDir, 0o700); err != nil {
		return fmt.Errorf("не удалось создать каталог сессий: %w", err)
	}
	handle := user.ID.String() + ".session"
	path, err := telegram.SessionPath(cfg.TelegramAPI.SessionDir, handle)
	if err != nil {
		return err
	}

	result, err := telegram.Login(ctx, telegram.AppConfig{
		APIID:      cfg.TelegramAPI.APIID,
		APIHash:    cfg.TelegramAPI.APIHash,
		SessionDir: cfg.TelegramAPI.SessionDir,
	}, path, phone, logger)
	if err != nil {
		return err
	}

	if _, err := store.BindSessionFile(ctx, user.ID, handle); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Сессия аккаунта %d (@%s) привязана к %s\n", result.UserID, result.Username, user.Email)
	return nil
}
