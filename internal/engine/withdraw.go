package engine

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/shopspring/decimal"

	"github.com/cyberearn/reward-wallet/internal/domain"
	apperrors "github.com/cyberearn/reward-wallet/internal/errors"
	"github.com/cyberearn/reward-wallet/internal/ledger"
	"github.com/cyberearn/reward-wallet/internal/notify"
)

// upiPattern matches handle@provider payout addresses.
var upiPattern = regexp.MustCompile(`^[\w.\-]{2,}@\w{2,}$`)

// WithdrawResult reports an accepted withdrawal request.
type WithdrawResult struct {
	TxID          string
	Amount        decimal.Decimal
	Balance       decimal.Decimal
	Status        domain.Status
	SettlementRef string
}

// RequestWithdrawal debits the user and appends a withdrawal record. In auto
// mode the record is settled immediately with a synthetic reference; otherwise
// it waits in the pending queue for an admin decision.
func (e *Engine) RequestWithdrawal(ctx context.Context, userID string, amount decimal.Decimal, payoutAddress string) (*WithdrawResult, error) {
	policy, err := e.policy(ctx)
	if err != nil {
		return nil, err
	}
	if err := e.guardMaintenance(ctx, policy, userID); err != nil {
		return nil, err
	}
	if policy.WithdrawDisabled {
		return nil, apperrors.NewPolicyViolation("withdraw_disabled", "withdrawals are temporarily disabled")
	}

	if !upiPattern.MatchString(payoutAddress) {
		return nil, apperrors.NewInvalidInput("payout_address", "payout address must look like handle@provider")
	}
	if !amount.IsPositive() {
		return nil, apperrors.NewInvalidInput("amount", "amount must be positive")
	}
	if !amount.Equal(amount.Round(2)) {
		return nil, apperrors.NewInvalidInput("amount", "amount must have at most two decimal places")
	}
	if amount.LessThan(policy.MinWithdrawal) {
		return nil, apperrors.NewPolicyViolation("min_withdrawal",
			fmt.Sprintf("minimum withdrawal is %s", policy.MinWithdrawal.StringFixed(2)))
	}

	release, err := e.acquireUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer release()

	updated, err := e.updateUser(ctx, userID, func(u *domain.User) error {
		if !u.Verified {
			return apperrors.NewPolicyViolation("unverified", "verify your account before withdrawing")
		}
		if u.Balance.LessThan(amount) {
			return apperrors.NewPolicyViolation("insufficient_balance", "amount exceeds available balance")
		}
		u.Balance = u.Balance.Sub(amount)
		return nil
	})
	if err != nil {
		return nil, err
	}

	status := domain.StatusPending
	settlementRef := ""
	if policy.AutoWithdraw {
		status = domain.StatusCompleted
		settlementRef = fmt.Sprintf("AUTO-%d", e.now().Unix())
	}

	rec := ledger.NewRecord(newTxID("WD"), userID, domain.CategoryWithdrawal, amount, status, e.now().UTC())
	rec.PayoutAddress = payoutAddress
	rec.SettlementRef = settlementRef

	if err := e.ledger.Append(ctx, rec); err != nil {
		// Without the ledger row nothing would ever pay out, so hand the money
		// back and fail the request.
		if _, refundErr := e.updateUser(ctx, userID, func(u *domain.User) error {
			u.Balance = u.Balance.Add(amount)
			return nil
		}); refundErr != nil {
			e.log.Error("withdrawal refund after ledger failure did not apply",
				slog.String("user_id", userID),
				slog.String("amount", amount.StringFixed(2)),
				slog.Any("error", refundErr),
			)
		}
		return nil, err
	}

	if status == domain.StatusPending {
		e.notifyAdmins(ctx, policy, notify.EventWithdrawalRequested, map[string]string{
			"tx_id":  rec.TxID,
			"name":   updated.Name,
			"amount": amount.StringFixed(2),
		})
	} else {
		e.notifier.Notify(ctx, userID, notify.EventWithdrawalPaid, map[string]string{
			"tx_id":          rec.TxID,
			"amount":         amount.StringFixed(2),
			"settlement_ref": settlementRef,
		})
	}

	return &WithdrawResult{
		TxID:          rec.TxID,
		Amount:        amount,
		Balance:       updated.Balance,
		Status:        status,
		SettlementRef: settlementRef,
	}, nil
}

// SettleWithdrawal is the admin decision on a pending withdrawal. Approval
// stamps the settlement reference; rejection refunds the debit under the
// user's lock.
func (e *Engine) SettleWithdrawal(ctx context.Context, txID string, approve bool, settlementRef string) (*domain.WithdrawalRecord, error) {
	rec, err := e.ledger.Find(ctx, txID)
	if err != nil {
		return nil, err
	}
	if rec.Category != domain.CategoryWithdrawal {
		return nil, apperrors.NewInvalidInput("tx_id", "transaction is not a withdrawal")
	}
	if rec.Status != domain.StatusPending {
		return nil, apperrors.NewAlreadyDone("transaction is not pending")
	}

	if approve {
		if settlementRef == "" {
			settlementRef = newTxID("UTR")
		}
		if err := e.ledger.Transition(ctx, txID, domain.StatusCompleted, settlementRef); err != nil {
			return nil, err
		}
		rec.Status = domain.StatusCompleted
		rec.SettlementRef = settlementRef

		e.notifier.Notify(ctx, rec.UserID, notify.EventWithdrawalPaid, map[string]string{
			"tx_id":          rec.TxID,
			"amount":         rec.Amount.StringFixed(2),
			"settlement_ref": settlementRef,
		})

		return rec, nil
	}

	if err := e.ledger.Transition(ctx, txID, domain.StatusRejected, ""); err != nil {
		return nil, err
	}
	rec.Status = domain.StatusRejected

	release, err := e.acquireUser(ctx, rec.UserID)
	if err == nil {
		defer release()
		_, err = e.updateUser(ctx, rec.UserID, func(u *domain.User) error {
			u.Balance = u.Balance.Add(rec.Amount)
			return nil
		})
	}
	if err != nil && !apperrors.IsKind(err, apperrors.KindNotFound) {
		e.log.Error("rejection refund did not apply",
			slog.String("tx_id", txID),
			slog.String("user_id", rec.UserID),
			slog.Any("error", err),
		)
	}

	e.notifier.Notify(ctx, rec.UserID, notify.EventWithdrawalRejected, map[string]string{
		"tx_id":  rec.TxID,
		"amount": rec.Amount.StringFixed(2),
	})

	return rec, nil
}
