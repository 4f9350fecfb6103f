package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/cyberearn/reward-wallet/internal/domain"
)

type creditStore struct {
	db  *sql.DB
	log *slog.Logger
}

// NewCreditStore creates the transactional store committing cross-collection
// credits as one unit: gift redemptions and referral credits.
func NewCreditStore(db *sql.DB, log *slog.Logger) CreditStore {
	return &creditStore{
		db:  db,
		log: log,
	}
}

func (s *creditStore) ApplyGiftClaim(ctx context.Context, user *domain.User, code *domain.GiftCode, rec *domain.WithdrawalRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin gift claim tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	const userQuery = `
		UPDATE users
		SET balance = $2, claimed_gift_codes = $3, version = version + 1
		WHERE id = $1 AND version = $4
	`
	res, err := tx.ExecContext(ctx, userQuery, user.ID, user.Balance, pq.Array(user.ClaimedGiftCodes), user.Version)
	if err != nil {
		s.logError("claim user update", user.ID, err)
		return fmt.Errorf("update user in gift claim: %w", err)
	}
	if affected, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("gift claim user rows affected: %w", err)
	} else if affected == 0 {
		return ErrVersionConflict
	}

	const codeQuery = `
		UPDATE gift_codes
		SET used_by = $2, version = version + 1
		WHERE code = $1 AND version = $3
	`
	res, err = tx.ExecContext(ctx, codeQuery, code.Code, pq.Array(code.UsedBy), code.Version)
	if err != nil {
		s.logError("claim code update", code.Code, err)
		return fmt.Errorf("update gift code in gift claim: %w", err)
	}
	if affected, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("gift claim code rows affected: %w", err)
	} else if affected == 0 {
		return ErrVersionConflict
	}

	if err := appendLedgerInTx(ctx, tx, rec); err != nil {
		s.logError("claim ledger append", rec.TxID, err)
		return fmt.Errorf("insert ledger record in gift claim: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit gift claim tx: %w", err)
	}

	user.Version++
	code.Version++
	return nil
}

func (s *creditStore) ApplyReferralCredit(ctx context.Context, referrer *domain.User, rec *domain.WithdrawalRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin referral credit tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	const userQuery = `
		UPDATE users
		SET balance = $2, referred_users = $3, version = version + 1
		WHERE id = $1 AND version = $4
	`
	res, err := tx.ExecContext(ctx, userQuery, referrer.ID, referrer.Balance, pq.Array(referrer.ReferredUsers), referrer.Version)
	if err != nil {
		s.logError("referral user update", referrer.ID, err)
		return fmt.Errorf("update referrer in referral credit: %w", err)
	}
	if affected, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("referral credit rows affected: %w", err)
	} else if affected == 0 {
		return ErrVersionConflict
	}

	if err := appendLedgerInTx(ctx, tx, rec); err != nil {
		s.logError("referral ledger append", rec.TxID, err)
		return fmt.Errorf("insert ledger record in referral credit: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit referral credit tx: %w", err)
	}

	referrer.Version++
	return nil
}

func appendLedgerInTx(ctx context.Context, tx *sql.Tx, rec *domain.WithdrawalRecord) error {
	const query = `
		INSERT INTO withdrawal_ledger (tx_id, user_id, category, amount, payout_address, status, settlement_ref, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := tx.ExecContext(
		ctx,
		query,
		rec.TxID,
		rec.UserID,
		string(rec.Category),
		rec.Amount,
		rec.PayoutAddress,
		string(rec.Status),
		rec.SettlementRef,
		rec.CreatedAt,
	)
	return err
}

func (s *creditStore) logError(operation, key string, err error) {
	if s.log == nil || err == nil {
		return
	}

	s.log.Error("credit store operation failed",
		slog.String("operation", operation),
		slog.String("key", key),
		slog.Any("error", err),
	)
}
