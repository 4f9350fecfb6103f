package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cyberearn/reward-wallet/internal/domain"
	apperrors "github.com/cyberearn/reward-wallet/internal/errors"
	"github.com/cyberearn/reward-wallet/internal/leaderboard"
	"github.com/cyberearn/reward-wallet/internal/repository"
)

// maxListedReferrals caps how many referred accounts a summary itemizes;
// TotalReferred still counts all of them.
const maxListedReferrals = 20

// AccountStatus is the read-only projection served to balance and
// verification queries.
type AccountStatus struct {
	UserID   string
	Name     string
	Balance  decimal.Decimal
	Verified bool
	JoinedAt time.Time
}

// ReferredUser is one row of a referral summary.
type ReferredUser struct {
	UserID   string
	Name     string
	Verified bool
}

// ReferralSummary aggregates a user's referral standing.
type ReferralSummary struct {
	ReferralCode  string
	TotalReferred int
	VerifiedCount int
	PendingCount  int
	Referred      []ReferredUser
}

// Status returns the account projection for balance and verification checks.
func (e *Engine) Status(ctx context.Context, userID string) (*AccountStatus, error) {
	user, err := e.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &AccountStatus{
		UserID:   user.ID,
		Name:     user.Name,
		Balance:  user.Balance,
		Verified: user.Verified,
		JoinedAt: user.JoinedAt,
	}, nil
}

// History returns the user's most recent ledger records, newest first.
func (e *Engine) History(ctx context.Context, userID string, limit int) ([]*domain.WithdrawalRecord, error) {
	if _, err := e.loadUser(ctx, userID); err != nil {
		return nil, err
	}

	return e.ledger.History(ctx, userID, limit)
}

// Leaderboard returns the cached top-balance snapshot.
func (e *Engine) Leaderboard(ctx context.Context) (*leaderboard.Snapshot, error) {
	snapshot, err := e.board.Get(ctx)
	if err != nil {
		return nil, apperrors.NewUnavailable("leaderboard", err)
	}

	return snapshot, nil
}

// GetReferralSummary returns the user's referral code and referred accounts.
// Accounts created before code allocation existed get one minted here, on
// first read.
func (e *Engine) GetReferralSummary(ctx context.Context, userID string) (*ReferralSummary, error) {
	user, err := e.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if user.ReferralCode == "" {
		user, err = e.backfillReferralCode(ctx, userID)
		if err != nil {
			return nil, err
		}
	}

	summary := &ReferralSummary{
		ReferralCode:  user.ReferralCode,
		TotalReferred: len(user.ReferredUsers),
	}

	for _, referredID := range user.ReferredUsers {
		referred, err := e.users.Find(ctx, referredID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				e.log.Warn("referred account vanished", slog.String("user_id", referredID))
				continue
			}
			return nil, apperrors.NewUnavailable("user store", err)
		}

		if referred.Verified {
			summary.VerifiedCount++
		} else {
			summary.PendingCount++
		}

		if len(summary.Referred) < maxListedReferrals {
			summary.Referred = append(summary.Referred, ReferredUser{
				UserID:   referred.ID,
				Name:     referred.Name,
				Verified: referred.Verified,
			})
		}
	}

	return summary, nil
}

func (e *Engine) backfillReferralCode(ctx context.Context, userID string) (*domain.User, error) {
	release, err := e.acquireUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer release()

	code, err := e.allocateReferralCode(ctx)
	if err != nil {
		return nil, err
	}

	return e.updateUser(ctx, userID, func(u *domain.User) error {
		if u.ReferralCode != "" {
			return nil
		}
		u.ReferralCode = code
		return nil
	})
}
