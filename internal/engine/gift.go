package engine

import (
	"context"
	"errors"
	"regexp"

	"github.com/shopspring/decimal"

	"github.com/cyberearn/reward-wallet/internal/domain"
	apperrors "github.com/cyberearn/reward-wallet/internal/errors"
	"github.com/cyberearn/reward-wallet/internal/giftcode"
	"github.com/cyberearn/reward-wallet/internal/ledger"
	"github.com/cyberearn/reward-wallet/internal/notify"
	"github.com/cyberearn/reward-wallet/internal/repository"
	"github.com/cyberearn/reward-wallet/pkg/metrics"
)

var giftCodePattern = regexp.MustCompile(`^[A-Z0-9]{3,32}$`)

// ClaimResult reports a successful gift redemption.
type ClaimResult struct {
	Code    string
	Amount  decimal.Decimal
	Balance decimal.Decimal
}

// ClaimGiftCode redeems a gift code for the user. The user update, the code's
// usage slot and the ledger record commit atomically; losing an optimistic
// race re-validates from scratch, so capacity and double-claim checks always
// run against current state.
func (e *Engine) ClaimGiftCode(ctx context.Context, userID, rawCode string) (*ClaimResult, error) {
	policy, err := e.policy(ctx)
	if err != nil {
		return nil, err
	}
	if err := e.guardMaintenance(ctx, policy, userID); err != nil {
		return nil, err
	}

	code := giftcode.Normalize(rawCode)
	if !giftCodePattern.MatchString(code) {
		return nil, apperrors.NewInvalidInput("code", "malformed gift code")
	}

	if _, err := e.registry.SweepExpired(ctx); err != nil {
		e.log.Warn("pre-claim expiry sweep failed", "error", err)
	}

	release, err := e.acquireUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer release()

	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		user, err := e.loadUser(ctx, userID)
		if err != nil {
			return nil, err
		}
		if user.HasClaimed(code) {
			return nil, apperrors.NewAlreadyDone("gift code already claimed")
		}

		gift, err := e.registry.Lookup(ctx, code)
		if err != nil {
			return nil, err
		}

		switch {
		case gift.Expired || gift.IsExpiredAt(e.now()):
			return nil, apperrors.NewPolicyViolation("expired", "gift code has expired")
		case !gift.IsActive:
			return nil, apperrors.NewPolicyViolation("inactive", "gift code is disabled")
		case gift.UsedByUser(user.ID):
			return nil, apperrors.NewAlreadyDone("gift code already claimed")
		case gift.IsExhausted():
			return nil, apperrors.NewPolicyViolation("capacity", "gift code usage limit reached")
		}

		amount := e.rng.Amount(gift.MinAmount, gift.MaxAmount)
		user.Balance = user.Balance.Add(amount)
		user.ClaimedGiftCodes = append(user.ClaimedGiftCodes, code)
		gift.UsedBy = append(gift.UsedBy, user.ID)

		rec := ledger.NewRecord(newTxID("GIFT"), user.ID, domain.CategoryGiftRedemption, amount, domain.StatusCompleted, e.now().UTC())
		rec.SettlementRef = code

		err = e.credits.ApplyGiftClaim(ctx, user, gift, rec)
		if err == nil {
			metrics.RecordReward(string(domain.CategoryGiftRedemption), amount.InexactFloat64())

			e.notifier.Notify(ctx, user.ID, notify.EventGiftClaimed, map[string]string{
				"amount": amount.StringFixed(2),
				"code":   code,
			})

			return &ClaimResult{Code: code, Amount: amount, Balance: user.Balance}, nil
		}
		if errors.Is(err, repository.ErrVersionConflict) {
			continue
		}

		return nil, apperrors.NewUnavailable("gift claim store", err)
	}

	return nil, apperrors.NewConflict("gift claim lost concurrent race")
}
