package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cyberearn/reward-wallet/internal/domain"
)

const ledgerColumns = `tx_id, user_id, category, amount, payout_address, status, settlement_ref, created_at`

type ledgerRepository struct {
	db  *sql.DB
	log *slog.Logger
}

// NewLedgerRepository creates a SQL-backed withdrawal ledger.
func NewLedgerRepository(db *sql.DB, log *slog.Logger) LedgerRepository {
	return &ledgerRepository{
		db:  db,
		log: log,
	}
}

func (r *ledgerRepository) Append(ctx context.Context, rec *domain.WithdrawalRecord) error {
	const query = `
		INSERT INTO withdrawal_ledger (tx_id, user_id, category, amount, payout_address, status, settlement_ref, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	if _, err := r.db.ExecContext(
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
	); err != nil {
		r.logError("append record", rec.TxID, err)
		return fmt.Errorf("insert ledger record: %w", err)
	}

	return nil
}

func (r *ledgerRepository) FindByTxID(ctx context.Context, txID string) (*domain.WithdrawalRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM withdrawal_ledger WHERE tx_id = $1`, ledgerColumns)

	rec, err := scanLedgerRecord(r.db.QueryRowContext(ctx, query, txID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}

		r.logError("find record", txID, err)
		return nil, fmt.Errorf("select ledger record: %w", err)
	}

	return rec, nil
}

func (r *ledgerRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*domain.WithdrawalRecord, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM withdrawal_ledger
		WHERE user_id = $1
		ORDER BY created_at DESC, tx_id DESC
		LIMIT $2
	`, ledgerColumns)

	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		r.logError("list records by user", userID, err)
		return nil, fmt.Errorf("select ledger records: %w", err)
	}
	defer rows.Close()

	return collectLedgerRecords(rows)
}

func (r *ledgerRepository) ListWithdrawals(ctx context.Context, limit int) ([]*domain.WithdrawalRecord, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM withdrawal_ledger
		WHERE category = $1
		ORDER BY created_at DESC, tx_id DESC
		LIMIT $2
	`, ledgerColumns)

	rows, err := r.db.QueryContext(ctx, query, string(domain.CategoryWithdrawal), limit)
	if err != nil {
		r.logError("list withdrawals", "", err)
		return nil, fmt.Errorf("select withdrawal records: %w", err)
	}
	defer rows.Close()

	return collectLedgerRecords(rows)
}

func (r *ledgerRepository) ListPendingWithdrawals(ctx context.Context) ([]*domain.WithdrawalRecord, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM withdrawal_ledger
		WHERE category = $1 AND status = $2
		ORDER BY created_at DESC, tx_id DESC
	`, ledgerColumns)

	rows, err := r.db.QueryContext(ctx, query, string(domain.CategoryWithdrawal), string(domain.StatusPending))
	if err != nil {
		r.logError("list pending withdrawals", "", err)
		return nil, fmt.Errorf("select pending withdrawal records: %w", err)
	}
	defer rows.Close()

	return collectLedgerRecords(rows)
}

func (r *ledgerRepository) UpdateStatus(ctx context.Context, txID string, status domain.Status, settlementRef string) error {
	const query = `
		UPDATE withdrawal_ledger
		SET status = $2, settlement_ref = $3
		WHERE tx_id = $1 AND status = $4
	`

	res, err := r.db.ExecContext(ctx, query, txID, string(status), settlementRef, string(domain.StatusPending))
	if err != nil {
		r.logError("update record status", txID, err)
		return fmt.Errorf("update ledger status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update ledger status rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *ledgerRepository) logError(operation, key string, err error) {
	if r.log == nil || err == nil {
		return
	}

	r.log.Error("ledger repository operation failed",
		slog.String("operation", operation),
		slog.String("key", key),
		slog.Any("error", err),
	)
}

func collectLedgerRecords(rows *sql.Rows) ([]*domain.WithdrawalRecord, error) {
	var records []*domain.WithdrawalRecord
	for rows.Next() {
		rec, err := scanLedgerRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ledger row: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger rows: %w", err)
	}

	return records, nil
}

func scanLedgerRecord(row rowScanner) (*domain.WithdrawalRecord, error) {
	var (
		rec      domain.WithdrawalRecord
		category string
		status   string
	)
	if err := row.Scan(
		&rec.TxID,
		&rec.UserID,
		&category,
		&rec.Amount,
		&rec.PayoutAddress,
		&status,
		&rec.SettlementRef,
		&rec.CreatedAt,
	); err != nil {
		return nil, err
	}

	rec.Category = domain.Category(category)
	rec.Status = domain.Status(status)

	return &rec, nil
}
