package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/fsnotify/fsnotify"
	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configuration from YAML files and environment variables,
// validates it, and returns the resulting Config.
func Load() (*Config, *viper.Viper, error) {
	if err := godotenv.Load(".env.local", ".env"); err != nil {
		// missing env files are fine
		_ = err
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	v := viper.New()
	v.SetConfigFile(fmt.Sprintf("./configs/%s.yaml", env))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.AppEnv = env
	applyDefaults(&cfg)

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(cfg); err != nil {
		return nil, nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, v, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Logger.Level == "" {
		cfg.Logger.Level = "info"
	}
	if cfg.Logger.Format == "" {
		cfg.Logger.Format = "json"
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "memory"
	}
	if cfg.DB.SSLMode == "" {
		cfg.DB.SSLMode = "disable"
	}
	if cfg.DB.MigrationsDir == "" {
		cfg.DB.MigrationsDir = "migrations"
	}
	if cfg.Jobs.SweepCron == "" {
		cfg.Jobs.SweepCron = "*/10 * * * *"
	}
	if cfg.Jobs.LeaderboardCron == "" {
		cfg.Jobs.LeaderboardCron = "*/5 * * * *"
	}
	if len(cfg.Jobs.Queues) == 0 {
		cfg.Jobs.Queues = map[string]int{"critical": 6, "default": 3, "low": 1}
	}
}

// Watch re-reads the config file on change and hands the fresh copy to
// onChange. Reload failures keep the previous configuration.
func Watch(v *viper.Viper, log *slog.Logger, onChange func(Config)) {
	if v == nil || onChange == nil {
		return
	}

	v.OnConfigChange(func(event fsnotify.Event) {
		var cfg Config
		if err := v.Unmarshal(&cfg); err != nil {
			if log != nil {
				log.Error("config reload failed", slog.String("file", event.Name), slog.Any("error", err))
			}
			return
		}
		applyDefaults(&cfg)

		if log != nil {
			log.Info("config reloaded", slog.String("file", event.Name))
		}
		onChange(cfg)
	})
	v.WatchConfig()
}
