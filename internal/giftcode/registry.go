// Package giftcode owns gift code lookup, admin maintenance and expiry
// evaluation. Codes are flagged expired rather than deleted so redemption
// history stays auditable.
package giftcode

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cyberearn/reward-wallet/internal/domain"
	apperrors "github.com/cyberearn/reward-wallet/internal/errors"
	"github.com/cyberearn/reward-wallet/internal/repository"
)

// Registry mediates access to the gift code collection.
type Registry struct {
	repo repository.GiftCodeRepository
	log  *slog.Logger
	now  func() time.Time
}

// NewRegistry constructs a Registry.
func NewRegistry(repo repository.GiftCodeRepository, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}

	return &Registry{
		repo: repo,
		log:  log,
		now:  time.Now,
	}
}

// Normalize canonicalizes user-entered codes: trimmed, upper-cased.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Lookup fetches a code by its canonical form.
func (r *Registry) Lookup(ctx context.Context, code string) (*domain.GiftCode, error) {
	gift, err := r.repo.FindByCode(ctx, Normalize(code))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("gift code")
		}
		return nil, apperrors.NewUnavailable("gift code store", err)
	}

	return gift, nil
}

// SweepExpired flags every code past its expiry. It runs opportunistically
// before redemption attempts and from the background scheduler; both paths
// are safe to interleave.
func (r *Registry) SweepExpired(ctx context.Context) (int, error) {
	flagged, err := r.repo.MarkExpired(ctx, r.now())
	if err != nil {
		return 0, apperrors.NewUnavailable("gift code store", err)
	}

	if flagged > 0 {
		r.log.Info("expired gift codes flagged", slog.Int("count", flagged))
	}

	return flagged, nil
}

// Create registers a new admin-defined code.
func (r *Registry) Create(ctx context.Context, code string, minAmount, maxAmount decimal.Decimal, totalUses int, expiry *time.Time) (*domain.GiftCode, error) {
	code = Normalize(code)
	if code == "" {
		return nil, apperrors.NewInvalidInput("code", "gift code must not be empty")
	}
	if totalUses < 1 {
		return nil, apperrors.NewInvalidInput("total_uses", "total uses must be at least 1")
	}
	if minAmount.IsNegative() || maxAmount.LessThan(minAmount) {
		return nil, apperrors.NewInvalidInput("amount", "invalid reward range")
	}

	gift := &domain.GiftCode{
		Code:      code,
		MinAmount: minAmount,
		MaxAmount: maxAmount,
		TotalUses: totalUses,
		Expiry:    expiry,
		IsActive:  true,
		CreatedAt: r.now().UTC(),
	}

	if err := r.repo.Create(ctx, gift); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewAlreadyDone("gift code already exists")
		}
		return nil, apperrors.NewUnavailable("gift code store", err)
	}

	return gift, nil
}

// SetActive toggles the admin kill switch on a code.
func (r *Registry) SetActive(ctx context.Context, code string, active bool) error {
	for {
		gift, err := r.Lookup(ctx, code)
		if err != nil {
			return err
		}

		gift.IsActive = active
		err = r.repo.Update(ctx, gift)
		if err == nil {
			return nil
		}
		if errors.Is(err, repository.ErrVersionConflict) {
			continue
		}
		return apperrors.NewUnavailable("gift code store", err)
	}
}

// List returns every code, oldest first.
func (r *Registry) List(ctx context.Context) ([]*domain.GiftCode, error) {
	codes, err := r.repo.List(ctx)
	if err != nil {
		return nil, apperrors.NewUnavailable("gift code store", err)
	}

	return codes, nil
}
