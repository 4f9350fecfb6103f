// Package leaderboard derives the top-balances snapshot from the user store.
// The snapshot is recomputable at any time and owns no state of its own; it
// is never consulted inside a ledger transaction.
package leaderboard

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cyberearn/reward-wallet/internal/domain"
)

// Size is how many entries a snapshot keeps.
const Size = 20

// Entry is one leaderboard row.
type Entry struct {
	UserID        string          `json:"user_id"`
	Name          string          `json:"name"`
	Balance       decimal.Decimal `json:"balance"`
	ReferralCount int             `json:"total_refers"`
}

// Snapshot is a derived, non-authoritative projection of top balances.
type Snapshot struct {
	LastUpdated time.Time `json:"last_updated"`
	Entries     []Entry   `json:"data"`
}

// Compute projects users into a ranked snapshot: balance descending, ties
// broken by the input (insertion) order, truncated to Size.
func Compute(users []*domain.User, now time.Time) *Snapshot {
	entries := make([]Entry, 0, len(users))
	for _, user := range users {
		entries = append(entries, Entry{
			UserID:        user.ID,
			Name:          user.Name,
			Balance:       user.Balance,
			ReferralCount: len(user.ReferredUsers),
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Balance.GreaterThan(entries[j].Balance)
	})

	if len(entries) > Size {
		entries = entries[:Size]
	}

	return &Snapshot{
		LastUpdated: now,
		Entries:     entries,
	}
}
