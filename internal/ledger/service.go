// Package ledger wraps the append-only withdrawal ledger: every
// balance-affecting event lands here as an immutable audit record.
package ledger

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cyberearn/reward-wallet/internal/domain"
	apperrors "github.com/cyberearn/reward-wallet/internal/errors"
	"github.com/cyberearn/reward-wallet/internal/repository"
)

const (
	// DefaultHistoryLimit mirrors the user-facing history page size.
	DefaultHistoryLimit = 10
	// MaxHistoryLimit caps any caller-supplied limit.
	MaxHistoryLimit = 100
)

// Service provides ledger appends, history queries and settlement.
type Service struct {
	repo repository.LedgerRepository
	log  *slog.Logger
}

// NewService constructs a ledger service.
func NewService(repo repository.LedgerRepository, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}

	return &Service{repo: repo, log: log}
}

// Append writes a new immutable record.
func (s *Service) Append(ctx context.Context, rec *domain.WithdrawalRecord) error {
	if err := s.repo.Append(ctx, rec); err != nil {
		return apperrors.NewUnavailable("ledger store", err)
	}

	s.log.Info("ledger record appended",
		slog.String("tx_id", rec.TxID),
		slog.String("user_id", rec.UserID),
		slog.String("category", string(rec.Category)),
		slog.String("amount", rec.Amount.StringFixed(2)),
	)

	return nil
}

// History returns the user's most recent records, newest first. A zero or
// negative limit falls back to the default page size.
func (s *Service) History(ctx context.Context, userID string, limit int) ([]*domain.WithdrawalRecord, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	records, err := s.repo.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, apperrors.NewUnavailable("ledger store", err)
	}

	return records, nil
}

// Find returns one record by transaction id.
func (s *Service) Find(ctx context.Context, txID string) (*domain.WithdrawalRecord, error) {
	rec, err := s.repo.FindByTxID(ctx, txID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("transaction")
		}
		return nil, apperrors.NewUnavailable("ledger store", err)
	}

	return rec, nil
}

// PendingWithdrawals returns real withdrawal records still awaiting
// settlement, newest first. Synthetic bonus/referral/gift entries never
// appear here. A positive limit truncates the result; zero or negative
// means unbounded.
func (s *Service) PendingWithdrawals(ctx context.Context, limit int) ([]*domain.WithdrawalRecord, error) {
	records, err := s.repo.ListPendingWithdrawals(ctx)
	if err != nil {
		return nil, apperrors.NewUnavailable("ledger store", err)
	}

	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}

	return records, nil
}

// Withdrawals returns real withdrawal records regardless of status, newest
// first, for admin reconciliation.
func (s *Service) Withdrawals(ctx context.Context, limit int) ([]*domain.WithdrawalRecord, error) {
	if limit <= 0 {
		limit = MaxHistoryLimit
	}

	records, err := s.repo.ListWithdrawals(ctx, limit)
	if err != nil {
		return nil, apperrors.NewUnavailable("ledger store", err)
	}

	return records, nil
}

// PendingTotal sums amounts of every pending withdrawal record.
func (s *Service) PendingTotal(ctx context.Context) (decimal.Decimal, error) {
	pending, err := s.PendingWithdrawals(ctx, 0)
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, rec := range pending {
		total = total.Add(rec.Amount)
	}

	return total, nil
}

// Transition moves one pending record to completed or rejected. Any other
// target status, or a record no longer pending, is refused.
func (s *Service) Transition(ctx context.Context, txID string, status domain.Status, settlementRef string) error {
	if status != domain.StatusCompleted && status != domain.StatusRejected {
		return apperrors.NewInvalidInput("status", "status must be completed or rejected")
	}

	if err := s.repo.UpdateStatus(ctx, txID, status, settlementRef); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewAlreadyDone("transaction is not pending")
		}
		return apperrors.NewUnavailable("ledger store", err)
	}

	s.log.Info("ledger record settled",
		slog.String("tx_id", txID),
		slog.String("status", string(status)),
	)

	return nil
}

// NewRecord builds a ledger record with the given identity and stamp.
func NewRecord(txID, userID string, category domain.Category, amount decimal.Decimal, status domain.Status, createdAt time.Time) *domain.WithdrawalRecord {
	return &domain.WithdrawalRecord{
		TxID:      txID,
		UserID:    userID,
		Category:  category,
		Amount:    amount,
		Status:    status,
		CreatedAt: createdAt,
	}
}
