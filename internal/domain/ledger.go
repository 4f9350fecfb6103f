package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Category classifies a ledger record by the event that produced it.
type Category string

const (
	CategorySignupBonus    Category = "signup-bonus"
	CategoryReferralBonus  Category = "referral-bonus"
	CategoryGiftRedemption Category = "gift-redemption"
	CategoryWithdrawal     Category = "withdrawal"
)

// Synthetic reports whether the category is a bookkeeping credit rather than
// a real payout request. Synthetic records are excluded from pending-total
// reconciliation and the admin withdrawal queue.
func (c Category) Synthetic() bool {
	return c != CategoryWithdrawal
}

// Status tracks settlement of a ledger record. Credits are written as
// completed; withdrawals start pending in manual mode.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusRejected  Status = "rejected"
)

// WithdrawalRecord is an immutable audit-trail entry. The only permitted
// mutation after append is the pending -> completed|rejected transition.
type WithdrawalRecord struct {
	TxID          string
	UserID        string
	Category      Category
	Amount        decimal.Decimal
	PayoutAddress string
	Status        Status
	SettlementRef string
	CreatedAt     time.Time
}
