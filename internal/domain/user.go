package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// FingerprintSkip is the sentinel a client sends when it cannot collect a
// device fingerprint; verification then proceeds without binding one.
const FingerprintSkip = "skip"

// User represents a wallet account. Balance never goes below zero, Verified
// only ever flips false to true and DeviceFingerprint is bound at most once.
type User struct {
	ID                string
	Name              string
	Balance           decimal.Decimal
	Verified          bool
	DeviceFingerprint string
	ReferralCode      string
	ReferredBy        string
	ReferredUsers     []string
	ClaimedGiftCodes  []string
	JoinedAt          time.Time

	// Version guards optimistic writes; bumped by the store on every update.
	Version int64
}

// HasReferred reports whether the given user id was already credited as a
// referral of this user.
func (u *User) HasReferred(userID string) bool {
	for _, id := range u.ReferredUsers {
		if id == userID {
			return true
		}
	}
	return false
}

// HasClaimed reports whether this user already redeemed the gift code.
func (u *User) HasClaimed(code string) bool {
	for _, c := range u.ClaimedGiftCodes {
		if c == code {
			return true
		}
	}
	return false
}

// Clone returns a deep copy safe to mutate without aliasing the original.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}

	cp := *u
	cp.ReferredUsers = append([]string(nil), u.ReferredUsers...)
	cp.ClaimedGiftCodes = append([]string(nil), u.ClaimedGiftCodes...)
	return &cp
}
