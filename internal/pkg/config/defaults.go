package config

import "time"

// Default values for configuration.
const (
	// Server defaults
	DefaultServerHost      = "0.0.0.0"
	DefaultServerPort      = 8080
	DefaultAuthServerPort  = 8081
	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 15 * time.Minute
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 15 * time.Second
	DefaultCleanupInterval = 1 * time.Hour

	// Telegram API defaults
	DefaultSessionDir = "sessions"

	// Database defaults
	DefaultDatabaseDriver = "sqlite"
	DefaultDatabaseDSN    = "file:telegram-intel.db?_foreign_keys=on"

	// JWT defaults
	DefaultJWTTTL = 24 * time.Hour

	// Collection defaults
	DefaultRunTimeout      = 10 * time.Minute
	DefaultBatchSize       = 200
	DefaultBatchPause      = 1 * time.Second
	DefaultFloodWaitPad    = 1 * time.Second
	DefaultMaxFloodRetries = 5
	DefaultMaxFloodWait    = 5 * time.Minute
	DefaultParticipantsCap = 0
	DefaultResolveCacheTTL = 1 * time.Hour

	// Logging defaults
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)
