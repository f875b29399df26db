package config

import (
	"fmt"
	"time"
)

// Config holds runtime configuration for the InovaBank service.
type Config struct {
	AppEnv    string          `mapstructure:"-"`
	App       AppConfig       `mapstructure:"app" validate:"required"`
	Server    ServerConfig    `mapstructure:"server" validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database" validate:"required"`
	Redis     RedisConfig     `mapstructure:"redis" validate:"required"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	Sentry    SentryConfig    `mapstructure:"sentry"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Jobs      JobsConfig      `mapstructure:"jobs"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Locale    LocaleConfig    `mapstructure:"locale"`
}

// AppConfig names the running service.
type AppConfig struct {
	Name string `mapstructure:"name" validate:"required"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port            string        `mapstructure:"port" validate:"required"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

// DatabaseConfig describes the PostgreSQL connection.
type DatabaseConfig struct {
	Host           string        `mapstructure:"host" validate:"required"`
	Port           string        `mapstructure:"port" validate:"required"`
	User           string        `mapstructure:"user" validate:"required"`
	Password       string        `mapstructure:"password"`
	Name           string        `mapstructure:"name" validate:"required"`
	SSLMode        string        `mapstructure:"sslmode" validate:"omitempty,oneof=disable require verify-ca verify-full"`
	MaxOpenConns   int           `mapstructure:"max_open_conns" validate:"gte=0"`
	MaxIdleConns   int           `mapstructure:"max_idle_conns" validate:"gte=0"`
	ConnMaxLife    time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath string        `mapstructure:"migrations_path"`
}

// RedisConfig describes the Redis connection.
type RedisConfig struct {
	Addr         string        `mapstructure:"addr" validate:"required"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db" validate:"gte=0"`
	PoolSize     int           `mapstructure:"pool_size" validate:"gte=0"`
	MinIdleConns int           `mapstructure:"min_idle_conns" validate:"gte=0"`
	PoolTimeout  time.Duration `mapstructure:"pool_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	MaxRetries   int           `mapstructure:"max_retries"`
}

// LoggerConfig controls slog output.
type LoggerConfig struct {
	Level  string        `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string        `mapstructure:"format" validate:"omitempty,oneof=json text"`
	File   LogFileConfig `mapstructure:"file"`
}

// LogFileConfig enables rotating file output when Path is set.
type LogFileConfig struct {
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// SentryConfig configures error reporting.
type SentryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	DSN         string  `mapstructure:"dsn" validate:"required_if=Enabled true"`
	Environment string  `mapstructure:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate" validate:"gte=0,lte=1"`
}

// RateLimitRule is a "limit per window" pair, window in time.ParseDuration format.
type RateLimitRule struct {
	Limit  int    `mapstructure:"limit" validate:"gte=0"`
	Window string `mapstructure:"window"`
}

// RateLimitConfig holds per-admin request limits.
type RateLimitConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	PerAdmin  RateLimitRule `mapstructure:"per_admin"`
	Export    RateLimitRule `mapstructure:"export"`
	Whitelist []string      `mapstructure:"whitelist"`
}

// CacheConfig controls the client list cache.
type CacheConfig struct {
	ClientListTTL time.Duration `mapstructure:"client_list_ttl"`
}

// JobsConfig configures the asynq worker and scheduled exports.
type JobsConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	Concurrency        int    `mapstructure:"concurrency" validate:"gte=0"`
	ExportCron         string `mapstructure:"export_cron"`
	ExportDir          string `mapstructure:"export_dir"`
	GCSBucket          string `mapstructure:"gcs_bucket"`
	GCSCredentialsJSON string `mapstructure:"gcs_credentials_json"`
}

// TelegramConfig configures the admin notification channel.
type TelegramConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Token       string `mapstructure:"token" validate:"required_if=Enabled true"`
	AdminChatID int64  `mapstructure:"admin_chat_id" validate:"required_if=Enabled true"`
}

// LocaleConfig selects the default language for user-facing messages.
type LocaleConfig struct {
	Default string `mapstructure:"default"`
}

// GetDBConnectionString returns PostgreSQL DSN based on config values.
func (c *Config) GetDBConnectionString() string {
	sslMode := c.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		sslMode,
	)
}
