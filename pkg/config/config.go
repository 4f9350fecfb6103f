// Package config provides configuration loading and validation utilities.
package config

import (
	"fmt"
	"time"
)

// Config holds runtime configuration for the reward wallet service.
type Config struct {
	AppEnv    string `mapstructure:"-"`
	RootAdmin string `mapstructure:"root_admin"`

	HTTP     HTTPConfig     `mapstructure:"http"`
	Logger   LoggerConfig   `mapstructure:"logger"`
	Sentry   SentryConfig   `mapstructure:"sentry"`
	Storage  StorageConfig  `mapstructure:"storage"`
	DB       DBConfig       `mapstructure:"db"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Jobs     JobsConfig     `mapstructure:"jobs"`
}

// HTTPConfig configures the public HTTP listener.
type HTTPConfig struct {
	Port            string        `mapstructure:"port" validate:"required"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggerConfig controls slog output.
type LoggerConfig struct {
	Level  string        `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string        `mapstructure:"format" validate:"omitempty,oneof=json text"`
	File   LogFileConfig `mapstructure:"file"`
}

// LogFileConfig enables file output with rotation when Path is set.
type LogFileConfig struct {
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// SentryConfig controls error reporting.
type SentryConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	DSN              string  `mapstructure:"dsn"`
	Environment      string  `mapstructure:"environment"`
	TracesSampleRate float64 `mapstructure:"traces_sample_rate"`
}

// StorageConfig selects the persistence driver. The memory driver exists for
// local runs and tests; it loses everything on restart.
type StorageConfig struct {
	Driver string `mapstructure:"driver" validate:"required,oneof=postgres memory"`
}

// DBConfig holds PostgreSQL connection parameters.
type DBConfig struct {
	Host          string `mapstructure:"host"`
	Port          string `mapstructure:"port"`
	User          string `mapstructure:"user"`
	Password      string `mapstructure:"password"`
	Name          string `mapstructure:"name"`
	SSLMode       string `mapstructure:"sslmode"`
	MigrationsDir string `mapstructure:"migrations_dir"`
}

// DSN returns the PostgreSQL connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// RedisConfig enables the shared Redis instance used for locks, the
// leaderboard cache and the job queue.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// TelegramConfig enables the chat transport for notifications and channel
// membership checks.
type TelegramConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Token   string `mapstructure:"token"`
}

// JobsConfig controls the background scheduler and worker. Cron expressions
// use the standard five-field format.
type JobsConfig struct {
	Enabled         bool           `mapstructure:"enabled"`
	SweepCron       string         `mapstructure:"sweep_cron"`
	LeaderboardCron string         `mapstructure:"leaderboard_cron"`
	Queues          map[string]int `mapstructure:"queues"`
}
