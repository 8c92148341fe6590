// Package config предоставляет управление конфигурацией приложения
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// Server содержит конфигурацию HTTP-сервера
type Server struct {
	Host            string        `json:"host" yaml:"host"`
	Port            int           `json:"port" yaml:"port"`
	ReadTimeout     time.Duration `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// TelegramAPI содержит учетные данные приложения Telegram
type TelegramAPI struct {
	APIID   int    `json:"api_id" yaml:"api_id"`
	APIHash string `json:"api_hash" yaml:"api_hash"`
	// SessionDir - каталог с файлами сессий принципалов.
	SessionDir string `json:"session_dir" yaml:"session_dir"`
}

// Database содержит конфигурацию хранилища
type Database struct {
	Driver string `json:"driver" yaml:"driver"` // postgres, sqlite
	DSN    string `json:"dsn" yaml:"dsn"`
}

// JWT содержит конфигурацию токенов доступа
type JWT struct {
	Secret string        `json:"secret" yaml:"secret"`
	TTL    time.Duration `json:"ttl" yaml:"ttl"`
}

// Collection содержит параметры прогона сбора
type Collection struct {
	RunTimeout      time.Duration `json:"run_timeout" yaml:"run_timeout"` // 0 - без ограничений
	BatchSize       int           `json:"batch_size" yaml:"batch_size"`
	BatchPause      time.Duration `json:"batch_pause" yaml:"batch_pause"`
	FloodWaitPad    time.Duration `json:"flood_wait_pad" yaml:"flood_wait_pad"`
	MaxFloodRetries int           `json:"max_flood_retries" yaml:"max_flood_retries"`
	MaxFloodWait    time.Duration `json:"max_flood_wait" yaml:"max_flood_wait"` // 0 - без ограничений
	DefaultLimit    int           `json:"default_limit" yaml:"default_limit"`   // 0 - все участники
	// ResolveCacheTTL - сколько хранится разрешенная ссылка на чат (0 - кэш выключен).
	ResolveCacheTTL time.Duration `json:"resolve_cache_ttl" yaml:"resolve_cache_ttl"`
}

// Logging содержит конфигурацию логирования
type Logging struct {
	Level  string `json:"level" yaml:"level"`   // debug, info, warn, error
	Format string `json:"format" yaml:"format"` // text, json
}

// Config содержит конфигурацию приложения
type Config struct {
	Server      Server      `json:"server" yaml:"server"`
	AuthServer  Server      `json:"auth_server" yaml:"auth_server"`
	TelegramAPI TelegramAPI `json:"telegram_api" yaml:"telegram_api"`
	Database    Database    `json:"database" yaml:"database"`
	JWT         JWT         `json:"jwt" yaml:"jwt"`
	Collection  Collection  `json:"collection" yaml:"collection"`
	Logging     Logging     `json:"logging" yaml:"logging"`
}

// defaultConfig возвращает конфигурацию со значениями по умолчанию.
func defaultConfig() *Config {
	return &Config{
		Server: Server{
			Host:            DefaultServerHost,
			Port:            DefaultServerPort,
			ReadTimeout:     DefaultReadTimeout,
			WriteTimeout:    DefaultWriteTimeout,
			ShutdownTimeout: DefaultShutdownTimeout,
		},
		AuthServer: Server{
			Host:            DefaultServerHost,
			Port:            DefaultAuthServerPort,
			ReadTimeout:     DefaultReadTimeout,
			WriteTimeout:    DefaultReadTimeout,
			ShutdownTimeout: DefaultShutdownTimeout,
		},
		TelegramAPI: TelegramAPI{
			SessionDir: DefaultSessionDir,
		},
		Database: Database{
			Driver: DefaultDatabaseDriver,
			DSN:    DefaultDatabaseDSN,
		},
		JWT: JWT{
			TTL: DefaultJWTTTL,
		},
		Collection: Collection{
			RunTimeout:      DefaultRunTimeout,
			BatchSize:       DefaultBatchSize,
			BatchPause:      DefaultBatchPause,
			FloodWaitPad:    DefaultFloodWaitPad,
			MaxFloodRetries: DefaultMaxFloodRetries,
			MaxFloodWait:    DefaultMaxFloodWait,
			DefaultLimit:    DefaultParticipantsCap,
			ResolveCacheTTL: DefaultResolveCacheTTL,
		},
		Logging: Logging{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

// LoadConfig загружает конфигурацию: значения по умолчанию, затем YAML-файл (если он есть),
// затем переменные окружения, в том числе из .env файла.
func LoadConfig(path string) (*Config, error) {
	// .env необязателен: переменные могут быть заданы окружением.
	_ = godotenv.Load()

	cfg := defaultConfig()
	if path != "" {
		if err := loadFromYAML(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("не удалось загрузить конфигурацию из env: %w", err)
	}
	return cfg, nil
}

// loadFromYAML накладывает значения из YAML-файла на cfg.
// Отсутствие файла не является ошибкой.
func loadFromYAML(filename string, cfg *Config) error {
	data, err := os.ReadFile(filename)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("не удалось прочитать файл конфигурации %s: %w", filename, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("не удалось разобрать YAML конфигурацию: %w", err)
	}
	return nil
}

// loadFromEnv накладывает значения переменных окружения на cfg
func loadFromEnv(cfg *Config) error {
	setString(&cfg.Server.Host, "SERVER_HOST")
	setString(&cfg.AuthServer.Host, "AUTH_SERVER_HOST")
	setString(&cfg.TelegramAPI.APIHash, "API_HASH")
	setString(&cfg.TelegramAPI.SessionDir, "SESSION_DIR")
	setString(&cfg.Database.Driver, "DATABASE_DRIVER")
	setString(&cfg.Database.DSN, "DATABASE_URL")
	setString(&cfg.JWT.Secret, "JWT_SECRET")
	setString(&cfg.Logging.Level, "LOG_LEVEL")
	setString(&cfg.Logging.Format, "LOG_FORMAT")

	for key, dst := range map[string]*int{
		"SERVER_PORT":            &cfg.Server.Port,
		"AUTH_SERVER_PORT":       &cfg.AuthServer.Port,
		"API_ID":                 &cfg.TelegramAPI.APIID,
		"COLLECTION_BATCH_SIZE":  &cfg.Collection.BatchSize,
		"COLLECTION_MAX_RETRIES": &cfg.Collection.MaxFloodRetries,
		"COLLECTION_LIMIT":       &cfg.Collection.DefaultLimit,
	} {
		if err := setInt(dst, key); err != nil {
			return err
		}
	}

	for key, dst := range map[string]*time.Duration{
		"JWT_TTL":                   &cfg.JWT.TTL,
		"COLLECTION_RUN_TIMEOUT":    &cfg.Collection.RunTimeout,
		"COLLECTION_BATCH_PAUSE":    &cfg.Collection.BatchPause,
		"COLLECTION_MAX_FLOOD_WAIT": &cfg.Collection.MaxFloodWait,
		"COLLECTION_RESOLVE_TTL":    &cfg.Collection.ResolveCacheTTL,
	} {
		if err := setDuration(dst, key); err != nil {
			return err
		}
	}
	return nil
}

// Address возвращает адрес сервера сбора в формате "host:port"
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// AuthAddress возвращает адрес сервера аутентификации в формате "host:port"
func (c *Config) AuthAddress() string {
	return fmt.Sprintf("%s:%d", c.AuthServer.Host, c.AuthServer.Port)
}

// Validate проверяет общие значения конфигурации
func (c *Config) Validate() error {
	for name, s := range map[string]Server{"server": c.Server, "auth_server": c.AuthServer} {
		if s.Port <= 0 || s.Port > 65535 {
			return fmt.Errorf("%s.port должен быть действительным номером порта (1-65535)", name)
		}
		if s.ShutdownTimeout <= 0 {
			return fmt.Errorf("%s.shutdown_timeout должно быть положительным", name)
		}
	}

	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("database.driver должен быть одним из: postgres, sqlite")
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn не может быть пустым")
	}

	if len(c.JWT.Secret) < 16 {
		return fmt.Errorf("jwt.secret должен содержать не менее 16 символов")
	}
	if c.JWT.TTL <= 0 {
		return fmt.Errorf("jwt.ttl должно быть положительным")
	}

	if c.Collection.RunTimeout < 0 {
		return fmt.Errorf("collection.run_timeout должно быть неотрицательным (0 для отсутствия ограничений)")
	}
	if c.Collection.BatchSize <= 0 || c.Collection.BatchSize > 200 {
		return fmt.Errorf("collection.batch_size должен быть в диапазоне 1-200")
	}
	if c.Collection.BatchPause < 0 || c.Collection.FloodWaitPad < 0 || c.Collection.MaxFloodWait < 0 || c.Collection.ResolveCacheTTL < 0 {
		return fmt.Errorf("паузы collection не могут быть отрицательными")
	}
	if c.Collection.MaxFloodRetries < 0 {
		return fmt.Errorf("collection.max_flood_retries должно быть неотрицательным")
	}
	if c.Collection.DefaultLimit < 0 {
		return fmt.Errorf("collection.default_limit должно быть неотрицательным (0 для всех участников)")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level должен быть одним из: debug, info, warn, error")
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format должен быть одним из: text, json")
	}

	return nil
}

// ValidateTelegram проверяет учетные данные Telegram API; нужны сервису сбора и CLI.
func (c *Config) ValidateTelegram() error {
	if c.TelegramAPI.APIID <= 0 {
		return fmt.Errorf("telegram_api.api_id должно быть положительным целым числом")
	}
	if c.TelegramAPI.APIHash == "" {
		return fmt.Errorf("telegram_api.api_hash не может быть пустым")
	}
	if c.TelegramAPI.SessionDir == "" {
		return fmt.Errorf("telegram_api.session_dir не может быть пустым")
	}
	return nil
}

func setString(dst *string, key string) {
	if value := os.Getenv(key); value != "" {
		*dst = value
	}
}

func setInt(dst *int, key string) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("недопустимый %s: %w", key, err)
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("недопустимый %s: %w", key, err)
	}
	*dst = d
	return nil
}
