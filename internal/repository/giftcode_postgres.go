package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/cyberearn/reward-wallet/internal/domain"
)

const giftCodeColumns = `code, min_amount, max_amount, total_uses, used_by, expiry, is_active, expired, created_at, version`

type giftCodeRepository struct {
	db  *sql.DB
	log *slog.Logger
}

// NewGiftCodeRepository creates a SQL-backed gift code repository.
func NewGiftCodeRepository(db *sql.DB, log *slog.Logger) GiftCodeRepository {
	return &giftCodeRepository{
		db:  db,
		log: log,
	}
}

func (r *giftCodeRepository) FindByCode(ctx context.Context, code string) (*domain.GiftCode, error) {
	query := fmt.Sprintf(`SELECT %s FROM gift_codes WHERE code = $1`, giftCodeColumns)

	gift, err := scanGiftCode(r.db.QueryRowContext(ctx, query, code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}

		r.logError("find gift code", code, err)
		return nil, fmt.Errorf("select gift code: %w", err)
	}

	return gift, nil
}

func (r *giftCodeRepository) Create(ctx context.Context, code *domain.GiftCode) error {
	const query = `
		INSERT INTO gift_codes (code, min_amount, max_amount, total_uses, used_by, expiry, is_active, expired, created_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 1)
		ON CONFLICT (code) DO NOTHING
	`

	res, err := r.db.ExecContext(
		ctx,
		query,
		code.Code,
		code.MinAmount,
		code.MaxAmount,
		code.TotalUses,
		pq.Array(code.UsedBy),
		code.Expiry,
		code.IsActive,
		code.Expired,
		code.CreatedAt,
	)
	if err != nil {
		r.logError("create gift code", code.Code, err)
		return fmt.Errorf("insert gift code: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert gift code rows affected: %w", err)
	}
	if affected == 0 {
		return ErrDuplicate
	}

	code.Version = 1
	return nil
}

func (r *giftCodeRepository) Update(ctx context.Context, code *domain.GiftCode) error {
	const query = `
		UPDATE gift_codes
		SET min_amount = $2, max_amount = $3, total_uses = $4, used_by = $5,
		    expiry = $6, is_active = $7, expired = $8, version = version + 1
		WHERE code = $1 AND version = $9
	`

	res, err := r.db.ExecContext(
		ctx,
		query,
		code.Code,
		code.MinAmount,
		code.MaxAmount,
		code.TotalUses,
		pq.Array(code.UsedBy),
		code.Expiry,
		code.IsActive,
		code.Expired,
		code.Version,
	)
	if err != nil {
		r.logError("update gift code", code.Code, err)
		return fmt.Errorf("update gift code: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update gift code rows affected: %w", err)
	}
	if affected == 0 {
		return ErrVersionConflict
	}

	code.Version++
	return nil
}

func (r *giftCodeRepository) List(ctx context.Context) ([]*domain.GiftCode, error) {
	query := fmt.Sprintf(`SELECT %s FROM gift_codes ORDER BY created_at, code`, giftCodeColumns)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		r.logError("list gift codes", "", err)
		return nil, fmt.Errorf("select gift codes: %w", err)
	}
	defer rows.Close()

	var codes []*domain.GiftCode
	for rows.Next() {
		gift, err := scanGiftCode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan gift code row: %w", err)
		}
		codes = append(codes, gift)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate gift code rows: %w", err)
	}

	return codes, nil
}

func (r *giftCodeRepository) MarkExpired(ctx context.Context, now time.Time) (int, error) {
	const query = `
		UPDATE gift_codes
		SET expired = TRUE, version = version + 1
		WHERE NOT expired AND expiry IS NOT NULL AND expiry < $1
	`

	res, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		r.logError("mark expired gift codes", "", err)
		return 0, fmt.Errorf("mark expired gift codes: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark expired rows affected: %w", err)
	}

	return int(affected), nil
}

func (r *giftCodeRepository) logError(operation, key string, err error) {
	if r.log == nil || err == nil {
		return
	}

	r.log.Error("gift code repository operation failed",
		slog.String("operation", operation),
		slog.String("key", key),
		slog.Any("error", err),
	)
}

func scanGiftCode(row rowScanner) (*domain.GiftCode, error) {
	var (
		gift   domain.GiftCode
		expiry sql.NullTime
	)
	if err := row.Scan(
		&gift.Code,
		&gift.MinAmount,
		&gift.MaxAmount,
		&gift.TotalUses,
		pq.Array(&gift.UsedBy),
		&expiry,
		&gift.IsActive,
		&gift.Expired,
		&gift.CreatedAt,
		&gift.Version,
	); err != nil {
		return nil, err
	}

	if expiry.Valid {
		t := expiry.Time
		gift.Expiry = &t
	}

	return &gift, nil
}
