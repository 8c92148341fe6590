package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// ColumnWidths определяет ширину колонок для текстового вывода.
type ColumnWidths struct {
	User int `yaml:"user"`
	Name int `yaml:"name"`
	Role int `yaml:"role"`
}

// BotConfig содержит конфигурацию для Telegram-бота
type BotConfig struct {
	Token                  string       `yaml:"token"`
	BackendURL             string       `yaml:"backend_url"`
	PollingIntervalSeconds int          `yaml:"polling_interval_seconds"`
	ExcelThreshold         int          `yaml:"excel_threshold"`
	HTTPTimeoutSeconds     int          `yaml:"http_timeout_seconds"`
	PageSize               int          `yaml:"page_size"`
	Render                 ColumnWidths `yaml:"render"`
}

// Logging содержит конфигурацию логирования бота
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config является оберткой для соответствия структуре YAML файла.
type Config struct {
	Bot     BotConfig `yaml:"bot"`
	Logging Logging   `yaml:"logging"`
}

// LoadBotConfig загружает конфигурацию бота из указанного файла.
// Отсутствие файла допустимо: токен и адрес сервера можно задать через BOT_TOKEN и BACKEND_URL.
func LoadBotConfig(filename string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	data, err := os.ReadFile(filename)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read bot config file %s: %w", filename, err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal bot config: %w", err)
		}
	}

	if v := os.Getenv("BOT_TOKEN"); v != "" {
		cfg.Bot.Token = v
	}
	if v := os.Getenv("BACKEND_URL"); v != "" {
		cfg.Bot.BackendURL = v
	}

	// Устанавливаем значения по умолчанию
	botCfg := &cfg.Bot
	if botCfg.PollingIntervalSeconds == 0 {
		botCfg.PollingIntervalSeconds = DefaultPollingIntervalSeconds
	}
	if botCfg.ExcelThreshold == 0 {
		botCfg.ExcelThreshold = DefaultExcelThreshold
	}
	if botCfg.HTTPTimeoutSeconds == 0 {
		botCfg.HTTPTimeoutSeconds = DefaultHTTPTimeoutSeconds
	}
	if botCfg.PageSize == 0 {
		botCfg.PageSize = DefaultPageSize
	}
	if botCfg.Render.User == 0 {
		botCfg.Render.User = DefaultUserColumnWidth
	}
	if botCfg.Render.Name == 0 {
		botCfg.Render.Name = DefaultNameColumnWidth
	}
	if botCfg.Render.Role == 0 {
		botCfg.Render.Role = DefaultRoleColumnWidth
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	return &cfg, nil
}

// Validate проверяет корректность конфигурации бота.
func (c *BotConfig) Validate() error {
	if c.Token == "" || c.Token == "YOUR_TELEGRAM_BOT_TOKEN" {
		return fmt.Errorf("bot.token is not configured")
	}
	if c.BackendURL == "" {
		return fmt.Errorf("bot.backend_url cannot be empty")
	}
	if c.PollingIntervalSeconds <= 0 {
		return fmt.Errorf("bot.polling_interval_seconds must be positive")
	}
	if c.ExcelThreshold <= 0 {
		return fmt.Errorf("bot.excel_threshold must be positive")
	}
	if c.PageSize <= 0 || c.PageSize > 1000 {
		return fmt.Errorf("bot.page_size must be in range 1-1000")
	}
	return nil
}
