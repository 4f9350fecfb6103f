package engine

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/cyberearn/reward-wallet/internal/domain"
	apperrors "github.com/cyberearn/reward-wallet/internal/errors"
	"github.com/cyberearn/reward-wallet/internal/ledger"
	"github.com/cyberearn/reward-wallet/internal/notify"
	"github.com/cyberearn/reward-wallet/internal/repository"
	"github.com/cyberearn/reward-wallet/pkg/metrics"
)

const referralCodeLength = 7

// VerifyResult reports the outcome of a verification attempt.
type VerifyResult struct {
	AlreadyVerified bool
	Bonus           decimal.Decimal
	Balance         decimal.Decimal
}

// RegisterUser creates a wallet account, allocating its referral code up
// front. Re-registering an existing id returns the stored account unchanged,
// including its referral attribution.
func (e *Engine) RegisterUser(ctx context.Context, userID, name, referredBy string) (*domain.User, error) {
	if userID == "" {
		return nil, apperrors.NewInvalidInput("user_id", "user id must not be empty")
	}

	if existing, err := e.users.Find(ctx, userID); err == nil {
		return existing, nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewUnavailable("user store", err)
	}

	policy, err := e.policy(ctx)
	if err != nil {
		return nil, err
	}
	if err := e.guardMaintenance(ctx, policy, userID); err != nil {
		return nil, err
	}

	code, err := e.allocateReferralCode(ctx)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		ID:           userID,
		Name:         name,
		Balance:      decimal.Zero,
		ReferralCode: code,
		ReferredBy:   referredBy,
		JoinedAt:     e.now().UTC(),
	}

	if err := e.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return e.loadUser(ctx, userID)
		}
		return nil, apperrors.NewUnavailable("user store", err)
	}

	e.notifyAdmins(ctx, policy, notify.EventNewUser, map[string]string{
		"user_id": user.ID,
		"name":    user.Name,
	})

	return user, nil
}

// VerifyUser runs both verification gates and, on first success, flips the
// account verified, pays the welcome bonus and credits the referrer. Calling
// it on an already verified account is a no-op success.
func (e *Engine) VerifyUser(ctx context.Context, userID, fingerprint string) (*VerifyResult, error) {
	policy, err := e.policy(ctx)
	if err != nil {
		return nil, err
	}
	if err := e.guardMaintenance(ctx, policy, userID); err != nil {
		return nil, err
	}

	// Cheap idempotence probe before touching the chat transport.
	user, err := e.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Verified {
		return &VerifyResult{AlreadyVerified: true, Balance: user.Balance}, nil
	}

	// Channel gate runs outside the lock: it only talks to the transport.
	missing := e.missingChannels(ctx, policy, userID)

	bonus := policy.WelcomeBonus
	updated, err := e.verifyLocked(ctx, userID, fingerprint, bonus, policy, missing)
	if err != nil {
		if errors.Is(err, errAlreadyApplied) {
			current, loadErr := e.loadUser(ctx, userID)
			if loadErr != nil {
				return nil, loadErr
			}
			return &VerifyResult{AlreadyVerified: true, Balance: current.Balance}, nil
		}
		return nil, err
	}

	metrics.RecordReward(string(domain.CategorySignupBonus), bonus.InexactFloat64())

	rec := ledger.NewRecord(newTxID("BONUS"), userID, domain.CategorySignupBonus, bonus, domain.StatusCompleted, e.now().UTC())
	if err := e.ledger.Append(ctx, rec); err != nil {
		// The credit is committed; the missing audit row is log-only damage.
		e.log.Error("signup bonus ledger append failed",
			slog.String("user_id", userID),
			slog.Any("error", err),
		)
	}

	// Runs after the verified user's lock is released. Two accounts that
	// refer each other can verify concurrently without deadlocking.
	e.creditReferrer(ctx, updated, policy)

	return &VerifyResult{Bonus: bonus, Balance: updated.Balance}, nil
}

// verifyLocked performs the verification transition under the user's lock.
func (e *Engine) verifyLocked(ctx context.Context, userID, fingerprint string, bonus decimal.Decimal, policy *domain.Settings, missing []string) (*domain.User, error) {
	release, err := e.acquireUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer release()

	return e.updateUser(ctx, userID, func(u *domain.User) error {
		if u.Verified {
			return errAlreadyApplied
		}

		deviceTaken, err := e.fingerprintTaken(ctx, policy, fingerprint, u.ID)
		if err != nil {
			return err
		}

		switch {
		case len(missing) > 0 && deviceTaken:
			return apperrors.NewPolicyViolation("both", "join the required channels; device already used by another account")
		case len(missing) > 0:
			return apperrors.NewPolicyViolation("channel", "join the required channels to verify")
		case deviceTaken:
			return apperrors.NewPolicyViolation("device", "device already used by another account")
		}

		u.Verified = true
		if fingerprint != "" && fingerprint != domain.FingerprintSkip && u.DeviceFingerprint == "" {
			u.DeviceFingerprint = fingerprint
		}
		u.Balance = u.Balance.Add(bonus)
		return nil
	})
}

// missingChannels returns the names of required channels the user has not
// joined. Transport errors count as not joined (fail closed).
func (e *Engine) missingChannels(ctx context.Context, policy *domain.Settings, userID string) []string {
	var missing []string
	for _, ch := range policy.Channels {
		member, err := e.membership.IsMember(ctx, ch.ID, userID)
		if err != nil {
			e.log.Warn("membership check failed, treating as not joined",
				slog.String("channel", ch.Name),
				slog.String("user_id", userID),
				slog.Any("error", err),
			)
			member = false
		}
		if !member {
			missing = append(missing, ch.Name)
		}
	}

	return missing
}

// fingerprintTaken reports whether another verified account already bound the
// fingerprint. The skip sentinel and an empty value bypass the gate, as does
// the admin override.
func (e *Engine) fingerprintTaken(ctx context.Context, policy *domain.Settings, fingerprint, userID string) (bool, error) {
	if policy.IgnoreDeviceCheck || fingerprint == "" || fingerprint == domain.FingerprintSkip {
		return false, nil
	}

	_, err := e.users.FindVerifiedByFingerprint(ctx, fingerprint, userID)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}

	return false, apperrors.NewUnavailable("user store", err)
}

// creditReferrer pays the referral bonus to the verified user's referrer,
// exactly once per referred account. Failures are logged, never propagated:
// the referred user's verification already committed.
func (e *Engine) creditReferrer(ctx context.Context, referred *domain.User, policy *domain.Settings) {
	if referred.ReferredBy == "" {
		return
	}

	referrer, err := e.users.FindByReferralCode(ctx, referred.ReferredBy)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			e.log.Error("referrer lookup failed",
				slog.String("referral_code", referred.ReferredBy),
				slog.Any("error", err),
			)
		}
		return
	}
	if referrer.ID == referred.ID {
		return
	}

	release, err := e.acquireUser(ctx, referrer.ID)
	if err != nil {
		e.log.Error("referral credit could not lock referrer",
			slog.String("referrer_id", referrer.ID),
			slog.Any("error", err),
		)
		return
	}
	defer release()

	reward := e.rng.Amount(policy.MinReferReward, policy.MaxReferReward)

	// The balance change and its audit row commit in one transaction. A
	// failed commit leaves the referrer unmarked, so the next verification
	// of the same account can replay the credit.
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		u, err := e.loadUser(ctx, referrer.ID)
		if err != nil {
			e.log.Error("referral credit reload failed",
				slog.String("referrer_id", referrer.ID),
				slog.Any("error", err),
			)
			return
		}
		if u.HasReferred(referred.ID) {
			return
		}

		u.Balance = u.Balance.Add(reward)
		u.ReferredUsers = append(u.ReferredUsers, referred.ID)

		rec := ledger.NewRecord(newTxID("REF"), u.ID, domain.CategoryReferralBonus, reward, domain.StatusCompleted, e.now().UTC())
		err = e.credits.ApplyReferralCredit(ctx, u, rec)
		if err == nil {
			metrics.RecordReward(string(domain.CategoryReferralBonus), reward.InexactFloat64())
			e.notifier.Notify(ctx, referrer.ID, notify.EventReferralBonus, map[string]string{
				"amount": reward.StringFixed(2),
				"name":   referred.Name,
			})
			return
		}
		if errors.Is(err, repository.ErrVersionConflict) {
			continue
		}

		e.log.Error("referral credit failed",
			slog.String("referrer_id", referrer.ID),
			slog.String("referred_id", referred.ID),
			slog.Any("error", err),
		)
		return
	}

	e.log.Error("referral credit gave up after version conflicts",
		slog.String("referrer_id", referrer.ID),
		slog.String("referred_id", referred.ID),
	)
}

// allocateReferralCode draws short codes until one is free. The keyspace is
// 36^7 so collisions are rare; a bounded number of redraws keeps the loop
// finite under a broken store.
func (e *Engine) allocateReferralCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < 10; attempt++ {
		code := e.rng.Code(referralCodeLength)

		exists, err := e.users.ReferralCodeExists(ctx, code)
		if err != nil {
			return "", apperrors.NewUnavailable("user store", err)
		}
		if !exists {
			return code, nil
		}
	}

	return "", apperrors.NewConflict("could not allocate a unique referral code")
}
