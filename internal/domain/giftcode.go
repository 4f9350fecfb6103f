package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// GiftCode is a shared promo code paying a randomized reward within
// [MinAmount, MaxAmount] to at most TotalUses distinct users.
type GiftCode struct {
	Code      string
	MinAmount decimal.Decimal
	MaxAmount decimal.Decimal
	TotalUses int
	UsedBy    []string
	Expiry    *time.Time
	IsActive  bool
	Expired   bool
	CreatedAt time.Time

	Version int64
}

// IsExpiredAt reports whether the code is past its expiry at the given time.
// The persisted Expired flag is also honored so swept codes stay expired.
func (g *GiftCode) IsExpiredAt(now time.Time) bool {
	if g.Expired {
		return true
	}
	return g.Expiry != nil && g.Expiry.Before(now)
}

// IsExhausted reports whether the code has reached its usage capacity.
func (g *GiftCode) IsExhausted() bool {
	return len(g.UsedBy) >= g.TotalUses
}

// UsedByUser reports whether the given user already redeemed this code.
func (g *GiftCode) UsedByUser(userID string) bool {
	for _, id := range g.UsedBy {
		if id == userID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy safe to mutate without aliasing the original.
func (g *GiftCode) Clone() *GiftCode {
	if g == nil {
		return nil
	}

	cp := *g
	cp.UsedBy = append([]string(nil), g.UsedBy...)
	if g.Expiry != nil {
		expiry := *g.Expiry
		cp.Expiry = &expiry
	}
	return &cp
}
