package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/cyberearn/reward-wallet/internal/domain"
)

const userColumns = `id, name, balance, verified, device_fingerprint, referral_code, referred_by, referred_users, claimed_gift_codes, joined_at, version`

type userRepository struct {
	db  *sql.DB
	log *slog.Logger
}

// NewUserRepository creates a SQL-backed user repository.
func NewUserRepository(db *sql.DB, log *slog.Logger) UserRepository {
	return &userRepository{
		db:  db,
		log: log,
	}
}

func (r *userRepository) Find(ctx context.Context, id string) (*domain.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE id = $1`, userColumns)

	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}

		r.logError("find user", id, err)
		return nil, fmt.Errorf("select user: %w", err)
	}

	return user, nil
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
		INSERT INTO users (id, name, balance, verified, device_fingerprint, referral_code, referred_by, referred_users, claimed_gift_codes, joined_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 1)
		ON CONFLICT (id) DO NOTHING
	`

	res, err := r.db.ExecContext(
		ctx,
		query,
		user.ID,
		user.Name,
		user.Balance,
		user.Verified,
		user.DeviceFingerprint,
		user.ReferralCode,
		user.ReferredBy,
		pq.Array(user.ReferredUsers),
		pq.Array(user.ClaimedGiftCodes),
		user.JoinedAt,
	)
	if err != nil {
		r.logError("create user", user.ID, err)
		return fmt.Errorf("insert user: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert user rows affected: %w", err)
	}
	if affected == 0 {
		return ErrDuplicate
	}

	user.Version = 1
	return nil
}

func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	const query = `
		UPDATE users
		SET name = $2, balance = $3, verified = $4, device_fingerprint = $5,
		    referral_code = $6, referred_users = $7, claimed_gift_codes = $8,
		    version = version + 1
		WHERE id = $1 AND version = $9
	`

	res, err := r.db.ExecContext(
		ctx,
		query,
		user.ID,
		user.Name,
		user.Balance,
		user.Verified,
		user.DeviceFingerprint,
		user.ReferralCode,
		pq.Array(user.ReferredUsers),
		pq.Array(user.ClaimedGiftCodes),
		user.Version,
	)
	if err != nil {
		r.logError("update user", user.ID, err)
		return fmt.Errorf("update user: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update user rows affected: %w", err)
	}
	if affected == 0 {
		return ErrVersionConflict
	}

	user.Version++
	return nil
}

func (r *userRepository) FindByReferralCode(ctx context.Context, code string) (*domain.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE referral_code = $1`, userColumns)

	user, err := scanUser(r.db.QueryRowContext(ctx, query, code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}

		r.logError("find user by referral code", code, err)
		return nil, fmt.Errorf("select user by referral code: %w", err)
	}

	return user, nil
}

func (r *userRepository) ReferralCodeExists(ctx context.Context, code string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM users WHERE referral_code = $1)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, code).Scan(&exists); err != nil {
		r.logError("referral code exists", code, err)
		return false, fmt.Errorf("select referral code existence: %w", err)
	}

	return exists, nil
}

func (r *userRepository) FindVerifiedByFingerprint(ctx context.Context, fingerprint, excludeID string) (*domain.User, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM users
		WHERE verified AND device_fingerprint = $1 AND device_fingerprint <> '' AND id <> $2
		LIMIT 1
	`, userColumns)

	user, err := scanUser(r.db.QueryRowContext(ctx, query, fingerprint, excludeID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}

		r.logError("find verified user by fingerprint", excludeID, err)
		return nil, fmt.Errorf("select user by fingerprint: %w", err)
	}

	return user, nil
}

func (r *userRepository) List(ctx context.Context) ([]*domain.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users ORDER BY joined_at, id`, userColumns)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		r.logError("list users", "", err)
		return nil, fmt.Errorf("select users: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user row: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user rows: %w", err)
	}

	return users, nil
}

func (r *userRepository) Count(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM users`

	var count int
	if err := r.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		r.logError("count users", "", err)
		return 0, fmt.Errorf("count users: %w", err)
	}

	return count, nil
}

func (r *userRepository) logError(operation, key string, err error) {
	if r.log == nil || err == nil {
		return
	}

	r.log.Error("user repository operation failed",
		slog.String("operation", operation),
		slog.String("key", key),
		slog.Any("error", err),
	)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	var user domain.User
	if err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Balance,
		&user.Verified,
		&user.DeviceFingerprint,
		&user.ReferralCode,
		&user.ReferredBy,
		pq.Array(&user.ReferredUsers),
		pq.Array(&user.ClaimedGiftCodes),
		&user.JoinedAt,
		&user.Version,
	); err != nil {
		return nil, err
	}

	return &user, nil
}
