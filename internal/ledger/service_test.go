package ledger

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberearn/reward-wallet/internal/domain"
	apperrors "github.com/cyberearn/reward-wallet/internal/errors"
	"github.com/cyberearn/reward-wallet/internal/repository"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(repository.NewMemoryStore(), nil)
}

func appendRecord(t *testing.T, svc *Service, txID, userID string, category domain.Category, amount int64, status domain.Status, at time.Time) {
	t.Helper()
	rec := NewRecord(txID, userID, category, decimal.NewFromInt(amount), status, at)
	require.NoError(t, svc.Append(context.Background(), rec))
}

func TestHistoryOrderAndLimit(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	base := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 15; i++ {
		appendRecord(t, svc, fmt.Sprintf("BONUS-%02d", i), "7", domain.CategorySignupBonus,
			int64(i+1), domain.StatusCompleted, base.Add(time.Duration(i)*time.Minute))
	}

	records, err := svc.History(ctx, "7", 0)
	require.NoError(t, err)
	require.Len(t, records, DefaultHistoryLimit)
	assert.Equal(t, "BONUS-14", records[0].TxID, "newest first")

	records, err = svc.History(ctx, "7", 3)
	require.NoError(t, err)
	assert.Len(t, records, 3)

	records, err = svc.History(ctx, "someone-else", 0)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestPendingWithdrawalsExcludeSynthetic(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	appendRecord(t, svc, "BONUS-1", "7", domain.CategorySignupBonus, 50, domain.StatusCompleted, now)
	appendRecord(t, svc, "WD-1", "7", domain.CategoryWithdrawal, 100, domain.StatusPending, now)
	appendRecord(t, svc, "WD-2", "8", domain.CategoryWithdrawal, 200, domain.StatusPending, now)
	appendRecord(t, svc, "WD-3", "9", domain.CategoryWithdrawal, 300, domain.StatusCompleted, now)

	pending, err := svc.PendingWithdrawals(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	total, err := svc.PendingTotal(ctx)
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.NewFromInt(300)))

	all, err := svc.Withdrawals(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestPendingTotalCountsBeyondHistoryPage(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	base := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	const pendingCount = MaxHistoryLimit + 20
	for i := 0; i < pendingCount; i++ {
		appendRecord(t, svc, fmt.Sprintf("WD-%03d", i), "7", domain.CategoryWithdrawal,
			10, domain.StatusPending, base.Add(time.Duration(i)*time.Second))
	}

	pending, err := svc.PendingWithdrawals(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, pending, pendingCount)

	total, err := svc.PendingTotal(ctx)
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.NewFromInt(10*pendingCount)),
		"total %s must cover every pending record", total)

	limited, err := svc.PendingWithdrawals(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, limited, 5)
}

func TestTransition(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	appendRecord(t, svc, "WD-1", "7", domain.CategoryWithdrawal, 100, domain.StatusPending, now)

	err := svc.Transition(ctx, "WD-1", domain.StatusPending, "")
	assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidInput))

	require.NoError(t, svc.Transition(ctx, "WD-1", domain.StatusCompleted, "UTR-1"))

	rec, err := svc.Find(ctx, "WD-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, rec.Status)
	assert.Equal(t, "UTR-1", rec.SettlementRef)

	err = svc.Transition(ctx, "WD-1", domain.StatusRejected, "")
	assert.True(t, apperrors.IsKind(err, apperrors.KindAlreadyDone))

	err = svc.Transition(ctx, "MISSING", domain.StatusCompleted, "")
	assert.True(t, apperrors.IsKind(err, apperrors.KindAlreadyDone))
}

func TestFind(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Find(context.Background(), "MISSING")
	assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound))
}
