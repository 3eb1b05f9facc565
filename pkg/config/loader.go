// Package config provides configuration loading and validation utilities.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configuration from YAML files and environment variables, validates it, and returns the resulting Config.
func Load() (*Config, *viper.Viper, error) {
	// missing .env files are fine; the process environment still applies
	_ = godotenv.Load(".env.local", ".env")

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	return LoadFile(fmt.Sprintf("./configs/%s.yaml", env), env)
}

// LoadFile reads a specific config file. Environment variables override file values (BOT_TOKEN -> bot.token).
func LoadFile(path, env string) (*Config, *viper.Viper, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, nil, fmt.Errorf("read config: %w", err)
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, nil, err
	}
	cfg.AppEnv = env

	return cfg, v, nil
}

// Watch re-reads the config file on change and passes the validated result to onChange.
// Invalid edits are reported through onError and otherwise ignored.
func Watch(v *viper.Viper, onChange func(*Config), onError func(error)) {
	if v == nil || onChange == nil {
		return
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}

		cfg, err := decode(v)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}

		onChange(cfg)
	})
	v.WatchConfig()
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("bot.token", "")
	v.SetDefault("bot.mode", "polling")
	v.SetDefault("bot.timeout", 10*time.Second)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "file:work_tracker.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	v.SetDefault("database.max_open_conns", 4)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "text")
	v.SetDefault("logger.file.max_size_mb", 10)
	v.SetDefault("logger.file.max_backups", 5)
	v.SetDefault("logger.file.max_age_days", 30)
	v.SetDefault("sentry.enabled", false)
	v.SetDefault("sentry.dsn", "")
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("dialog.timezone", "Europe/Moscow")
	v.SetDefault("dialog.stats_ttl", 30*time.Minute)
	v.SetDefault("dialog.stats_sweep_interval", 10*time.Minute)
	v.SetDefault("reminder.time", "14:00")
	v.SetDefault("reminder.max_jobs_per_chat", 10)
	v.SetDefault("backup.schedule", "@every 4h")
	v.SetDefault("backup.run_on_start", true)
	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.backend", "memory")
	v.SetDefault("ratelimit.per_chat.limit", 30)
	v.SetDefault("ratelimit.per_chat.window", "1m")
}
