package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	applog "telegram-intel/internal/log"
	"telegram-intel/internal/pkg/config"
)

var (
	configPath string
	email      string
)

var rootCmd = &cobra.Command{
	Use:   "intelctl",
	Short: "intelctl collects Telegram chat metadata and participants",
	Long: `intelctl runs the collection pipeline from the command line:
login binds a Telegram session to an application user, collect gathers chats
and their participants into the database, migrate prepares the schema.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "Path to YAML configuration")
}

// loadConfig загружает и проверяет конфигурацию и настраивает логгер.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger := applog.New(os.Stderr, cfg.Logging.Level, "text", cfg.TelegramAPI.APIHash, cfg.JWT.Secret)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, logger, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка: %v\n", err)
		os.Exit(1)
	}
}
