// Package health aggregates readiness checks over the wallet's external
// collaborators: PostgreSQL, Redis and the Telegram API.
package health

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
	"gopkg.in/telebot.v3"
)

// Checkable reports the health of one component.
type Checkable interface {
	HealthCheck(ctx context.Context) error
}

// Checker fans a readiness probe out to every registered component.
type Checker struct {
	mu     sync.RWMutex
	log    *slog.Logger
	checks map[string]Checkable
}

// NewChecker constructs an empty Checker.
func NewChecker(log *slog.Logger) *Checker {
	if log == nil {
		log = slog.Default()
	}

	return &Checker{
		log:    log,
		checks: make(map[string]Checkable),
	}
}

// AddCheck registers a component under name.
func (c *Checker) AddCheck(name string, check Checkable) {
	if name == "" || check == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.checks[name] = check
}

// Check runs every registered check and maps each component to "OK" or the
// failure message.
func (c *Checker) Check(ctx context.Context) map[string]string {
	c.mu.RLock()
	checks := make(map[string]Checkable, len(c.checks))
	for name, check := range c.checks {
		checks[name] = check
	}
	c.mu.RUnlock()

	results := make(map[string]string, len(checks))
	for name, check := range checks {
		if err := check.HealthCheck(ctx); err != nil {
			results[name] = err.Error()
			c.log.Error("health check failed",
				slog.String("component", name), slog.Any("error", err))
			continue
		}

		results[name] = "OK"
	}

	return results
}

// DBChecker pings PostgreSQL.
type DBChecker struct {
	db *sql.DB
}

func NewDBChecker(db *sql.DB) *DBChecker {
	return &DBChecker{db: db}
}

func (c *DBChecker) HealthCheck(ctx context.Context) error {
	if c == nil || c.db == nil {
		return sql.ErrConnDone
	}

	return c.db.PingContext(ctx)
}

// Pinger is the slice of redis.Client the Redis check needs.
type Pinger interface {
	Ping(ctx context.Context) *redis.StatusCmd
}

// RedisChecker pings Redis.
type RedisChecker struct {
	pinger Pinger
}

func NewRedisChecker(pinger Pinger) *RedisChecker {
	return &RedisChecker{pinger: pinger}
}

func (c *RedisChecker) HealthCheck(ctx context.Context) error {
	if c == nil || c.pinger == nil {
		return redis.ErrClosed
	}

	return c.pinger.Ping(ctx).Err()
}

// TelegramChecker reports whether the notification bot connected.
type TelegramChecker struct {
	bot *telebot.Bot
}

func NewTelegramChecker(bot *telebot.Bot) *TelegramChecker {
	return &TelegramChecker{bot: bot}
}

func (c *TelegramChecker) HealthCheck(context.Context) error {
	if c == nil || c.bot == nil || c.bot.Me == nil {
		return errors.New("telegram bot is not initialized or disconnected")
	}

	return nil
}
