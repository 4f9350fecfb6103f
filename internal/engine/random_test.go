package engine

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestRandAmount(t *testing.T) {
	r := NewRand(99)
	lo := decimal.NewFromInt(10)
	hi := decimal.NewFromInt(50)

	for i := 0; i < 200; i++ {
		amount := r.Amount(lo, hi)
		assert.True(t, amount.GreaterThanOrEqual(lo), "draw %s below floor", amount)
		assert.True(t, amount.LessThanOrEqual(hi), "draw %s above ceiling", amount)
		assert.True(t, amount.Equal(amount.Round(2)), "draw %s not two-decimal", amount)
	}
}

func TestRandAmountDegenerateRange(t *testing.T) {
	r := NewRand(99)
	fixed := decimal.RequireFromString("12.345")

	amount := r.Amount(fixed, fixed)
	assert.True(t, amount.Equal(decimal.RequireFromString("12.35")))

	inverted := r.Amount(decimal.NewFromInt(50), decimal.NewFromInt(10))
	assert.True(t, inverted.Equal(decimal.NewFromInt(50)))
}

func TestRandCode(t *testing.T) {
	r := NewRand(99)

	code := r.Code(7)
	assert.Len(t, code, 7)
	for _, ch := range code {
		assert.True(t, strings.ContainsRune(codeAlphabet, ch))
	}

	assert.NotEqual(t, code, r.Code(7))
}

func TestNewTxID(t *testing.T) {
	a := newTxID("WD")
	b := newTxID("WD")

	assert.True(t, strings.HasPrefix(a, "WD-"))
	assert.Len(t, a, 13)
	assert.NotEqual(t, a, b)
}
