package config

import "time"

// Config holds runtime configuration for the work log bot.
type Config struct {
	AppEnv    string          `mapstructure:"app_env"`
	Bot       BotConfig       `mapstructure:"bot"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	Sentry    SentryConfig    `mapstructure:"sentry"`
	Server    ServerConfig    `mapstructure:"server"`
	Dialog    DialogConfig    `mapstructure:"dialog"`
	Reminder  ReminderConfig  `mapstructure:"reminder"`
	Backup    BackupConfig    `mapstructure:"backup"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
}

type BotConfig struct {
	Token   string        `mapstructure:"token" validate:"required"`
	Mode    string        `mapstructure:"mode" validate:"oneof=polling webhook"`
	Timeout time.Duration `mapstructure:"timeout"`
	// WebhookURL is the public endpoint Telegram posts to in webhook mode.
	WebhookURL    string `mapstructure:"webhook_url"`
	WebhookListen string `mapstructure:"webhook_listen"`
}

type DatabaseConfig struct {
	Driver       string `mapstructure:"driver" validate:"oneof=sqlite postgres"`
	DSN          string `mapstructure:"dsn" validate:"required"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type RedisConfig struct {
	Addr         string        `mapstructure:"addr" validate:"required"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	PoolTimeout  time.Duration `mapstructure:"pool_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	MaxRetries   int           `mapstructure:"max_retries"`
}

type LoggerConfig struct {
	Level  string           `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string           `mapstructure:"format" validate:"oneof=text json"`
	File   LoggerFileConfig `mapstructure:"file"`
}

// LoggerFileConfig enables a rotating log file next to stdout.
type LoggerFileConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Path       string `mapstructure:"path" validate:"required_if=Enabled true"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

type SentryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DSN     string `mapstructure:"dsn" validate:"required_if=Enabled true"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port" validate:"required"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DialogConfig struct {
	Timezone           string        `mapstructure:"timezone" validate:"required"`
	StatsTTL           time.Duration `mapstructure:"stats_ttl"`
	StatsSweepInterval time.Duration `mapstructure:"stats_sweep_interval"`
}

type ReminderConfig struct {
	// Time is the local time of day in HH:MM.
	Time           string `mapstructure:"time" validate:"required"`
	MaxJobsPerChat int    `mapstructure:"max_jobs_per_chat" validate:"min=1"`
}

type BackupConfig struct {
	Schedule   string `mapstructure:"schedule" validate:"required"`
	RunOnStart bool   `mapstructure:"run_on_start"`
}

type RateLimitConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Backend   string        `mapstructure:"backend" validate:"oneof=memory redis"`
	PerChat   RateLimitRule `mapstructure:"per_chat"`
	Whitelist []int64       `mapstructure:"whitelist"`
}

type RateLimitRule struct {
	Limit  int    `mapstructure:"limit"`
	Window string `mapstructure:"window"`
}
