// Package repository defines persistence contracts for the reward wallet and
// ships a PostgreSQL implementation plus an in-memory fallback for local runs
// and tests.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/cyberearn/reward-wallet/internal/domain"
)

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrVersionConflict indicates an optimistic write lost a concurrent race
	// and the whole operation should be retried.
	ErrVersionConflict = errors.New("version conflict")
	// ErrDuplicate indicates a unique key (user id, gift code) already exists.
	ErrDuplicate = errors.New("record already exists")
)

// UserRepository persists User records keyed by opaque id. Update applies
// optimistic concurrency: it only writes when the stored version matches the
// record's and returns ErrVersionConflict otherwise.
type UserRepository interface {
	Find(ctx context.Context, id string) (*domain.User, error)
	Create(ctx context.Context, user *domain.User) error
	Update(ctx context.Context, user *domain.User) error
	FindByReferralCode(ctx context.Context, code string) (*domain.User, error)
	ReferralCodeExists(ctx context.Context, code string) (bool, error)
	// FindVerifiedByFingerprint returns any verified user other than excludeID
	// bound to the given device fingerprint, or ErrNotFound.
	FindVerifiedByFingerprint(ctx context.Context, fingerprint, excludeID string) (*domain.User, error)
	List(ctx context.Context) ([]*domain.User, error)
	Count(ctx context.Context) (int, error)
}

// GiftCodeRepository persists gift codes. Update is versioned like
// UserRepository.Update.
type GiftCodeRepository interface {
	FindByCode(ctx context.Context, code string) (*domain.GiftCode, error)
	Create(ctx context.Context, code *domain.GiftCode) error
	Update(ctx context.Context, code *domain.GiftCode) error
	List(ctx context.Context) ([]*domain.GiftCode, error)
	// MarkExpired flags every unexpired code past its expiry and reports how
	// many were flagged. Codes are never deleted.
	MarkExpired(ctx context.Context, now time.Time) (int, error)
}

// LedgerRepository is append-only. The sole permitted mutation is
// UpdateStatus, which transitions exactly one pending record.
type LedgerRepository interface {
	Append(ctx context.Context, rec *domain.WithdrawalRecord) error
	FindByTxID(ctx context.Context, txID string) (*domain.WithdrawalRecord, error)
	// ListByUser returns the user's most recent records, newest first.
	ListByUser(ctx context.Context, userID string, limit int) ([]*domain.WithdrawalRecord, error)
	// ListWithdrawals returns real withdrawal records (synthetic bonus entries
	// excluded), newest first.
	ListWithdrawals(ctx context.Context, limit int) ([]*domain.WithdrawalRecord, error)
	// ListPendingWithdrawals returns every pending withdrawal, newest first,
	// without a cap. Settlement totals depend on the full set.
	ListPendingWithdrawals(ctx context.Context) ([]*domain.WithdrawalRecord, error)
	// UpdateStatus transitions a pending record to completed or rejected.
	// Returns ErrNotFound when the record is missing or no longer pending.
	UpdateStatus(ctx context.Context, txID string, status domain.Status, settlementRef string) error
}

// SettingsRepository persists the single policy record.
type SettingsRepository interface {
	Load(ctx context.Context) (*domain.Settings, error)
	Save(ctx context.Context, settings *domain.Settings) error
}

// CreditStore commits the two cross-collection credit pairs: a gift
// redemption (user + code + ledger record) and a referral credit (referrer +
// ledger record). Each pair lands together or not at all; every user and code
// write is version-checked.
type CreditStore interface {
	ApplyGiftClaim(ctx context.Context, user *domain.User, code *domain.GiftCode, rec *domain.WithdrawalRecord) error
	ApplyReferralCredit(ctx context.Context, referrer *domain.User, rec *domain.WithdrawalRecord) error
}
