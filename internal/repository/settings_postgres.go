package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/cyberearn/reward-wallet/internal/domain"
)

// The policy lives in a single row keyed by a fixed id.
const settingsRowID = 1

type settingsRepository struct {
	db  *sql.DB
	log *slog.Logger
}

// NewSettingsRepository creates a SQL-backed settings repository.
func NewSettingsRepository(db *sql.DB, log *slog.Logger) SettingsRepository {
	return &settingsRepository{
		db:  db,
		log: log,
	}
}

func (r *settingsRepository) Load(ctx context.Context) (*domain.Settings, error) {
	const query = `
		SELECT bot_name, welcome_bonus, min_withdrawal, min_refer_reward, max_refer_reward,
		       auto_withdraw, withdraw_disabled, ignore_device_check, bots_disabled,
		       channels, admins
		FROM settings
		WHERE id = $1
	`

	var (
		settings     domain.Settings
		channelsJSON []byte
	)
	if err := r.db.QueryRowContext(ctx, query, settingsRowID).Scan(
		&settings.BotName,
		&settings.WelcomeBonus,
		&settings.MinWithdrawal,
		&settings.MinReferReward,
		&settings.MaxReferReward,
		&settings.AutoWithdraw,
		&settings.WithdrawDisabled,
		&settings.IgnoreDeviceCheck,
		&settings.BotsDisabled,
		&channelsJSON,
		pq.Array(&settings.Admins),
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// First boot: seed and return defaults.
			defaults := domain.DefaultSettings()
			if saveErr := r.Save(ctx, defaults); saveErr != nil {
				return nil, saveErr
			}
			return defaults, nil
		}

		r.logError("load settings", err)
		return nil, fmt.Errorf("select settings: %w", err)
	}

	if len(channelsJSON) > 0 {
		if err := json.Unmarshal(channelsJSON, &settings.Channels); err != nil {
			r.logError("decode settings channels", err)
			return nil, fmt.Errorf("decode channels: %w", err)
		}
	}

	return &settings, nil
}

func (r *settingsRepository) Save(ctx context.Context, settings *domain.Settings) error {
	channelsJSON, err := json.Marshal(settings.Channels)
	if err != nil {
		return fmt.Errorf("encode channels: %w", err)
	}

	const query = `
		INSERT INTO settings (id, bot_name, welcome_bonus, min_withdrawal, min_refer_reward, max_refer_reward,
		                      auto_withdraw, withdraw_disabled, ignore_device_check, bots_disabled, channels, admins)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE
		SET bot_name = EXCLUDED.bot_name,
		    welcome_bonus = EXCLUDED.welcome_bonus,
		    min_withdrawal = EXCLUDED.min_withdrawal,
		    min_refer_reward = EXCLUDED.min_refer_reward,
		    max_refer_reward = EXCLUDED.max_refer_reward,
		    auto_withdraw = EXCLUDED.auto_withdraw,
		    withdraw_disabled = EXCLUDED.withdraw_disabled,
		    ignore_device_check = EXCLUDED.ignore_device_check,
		    bots_disabled = EXCLUDED.bots_disabled,
		    channels = EXCLUDED.channels,
		    admins = EXCLUDED.admins
	`

	if _, err := r.db.ExecContext(
		ctx,
		query,
		settingsRowID,
		settings.BotName,
		settings.WelcomeBonus,
		settings.MinWithdrawal,
		settings.MinReferReward,
		settings.MaxReferReward,
		settings.AutoWithdraw,
		settings.WithdrawDisabled,
		settings.IgnoreDeviceCheck,
		settings.BotsDisabled,
		channelsJSON,
		pq.Array(settings.Admins),
	); err != nil {
		r.logError("save settings", err)
		return fmt.Errorf("upsert settings: %w", err)
	}

	return nil
}

func (r *settingsRepository) logError(operation string, err error) {
	if r.log == nil || err == nil {
		return
	}

	r.log.Error("settings repository operation failed",
		slog.String("operation", operation),
		slog.Any("error", err),
	)
}
