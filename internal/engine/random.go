package engine

import (
	"math/rand"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Rand is the engine's seedable randomness source: reward amounts and
// referral codes. Safe for concurrent use.
type Rand struct {
	mu  sync.Mutex
	src *rand.Rand
}

// NewRand constructs a Rand from a seed. Deterministic for a fixed seed,
// which is what the tests rely on.
func NewRand(seed int64) *Rand {
	return &Rand{src: rand.New(rand.NewSource(seed))}
}

// Amount draws a uniform value in [min, max] rounded to two decimals. A
// degenerate range collapses to min.
func (r *Rand) Amount(min, max decimal.Decimal) decimal.Decimal {
	lo, _ := min.Float64()
	hi, _ := max.Float64()
	if hi <= lo {
		return min.Round(2)
	}

	r.mu.Lock()
	f := lo + r.src.Float64()*(hi-lo)
	r.mu.Unlock()

	return decimal.NewFromFloat(f).Round(2)
}

// Code draws an uppercase alphanumeric code of the given length.
func (r *Rand) Code(length int) string {
	var sb strings.Builder
	sb.Grow(length)

	r.mu.Lock()
	for i := 0; i < length; i++ {
		sb.WriteByte(codeAlphabet[r.src.Intn(len(codeAlphabet))])
	}
	r.mu.Unlock()

	return sb.String()
}

// newTxID mints a globally unique ledger transaction id with a category
// prefix, e.g. "WD-3F2A9C81D0".
func newTxID(prefix string) string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))

	return prefix + "-" + raw[:10]
}
