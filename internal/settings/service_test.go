package settings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberearn/reward-wallet/internal/domain"
)

type fakeRepo struct {
	stored    *domain.Settings
	loads     int
	loadErr   error
	saveCalls int
}

func (f *fakeRepo) Load(context.Context) (*domain.Settings, error) {
	f.loads++
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.stored.Clone(), nil
}

func (f *fakeRepo) Save(_ context.Context, settings *domain.Settings) error {
	f.saveCalls++
	f.stored = settings.Clone()
	return nil
}

func newTestService(repo *fakeRepo) (*Service, *time.Time) {
	svc := NewService(repo, nil)
	current := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return current }
	return svc, &current
}

func TestSnapshotCachesWithinStalenessWindow(t *testing.T) {
	repo := &fakeRepo{stored: domain.DefaultSettings()}
	svc, now := newTestService(repo)
	ctx := context.Background()

	first, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.loads)

	*now = now.Add(DefaultStaleness / 2)
	_, err = svc.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.loads, "within the window the cache must serve")

	*now = now.Add(DefaultStaleness)
	_, err = svc.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.loads, "past the window the repo must be hit")

	// Mutating the returned snapshot must not leak into the cache.
	first.WelcomeBonus = decimal.NewFromInt(9999)
	again, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	assert.True(t, again.WelcomeBonus.Equal(decimal.NewFromInt(50)))
}

func TestSnapshotServesStaleOnLoadFailure(t *testing.T) {
	repo := &fakeRepo{stored: domain.DefaultSettings()}
	svc, now := newTestService(repo)
	ctx := context.Background()

	_, err := svc.Snapshot(ctx)
	require.NoError(t, err)

	*now = now.Add(2 * DefaultStaleness)
	repo.loadErr = errors.New("connection refused")

	snapshot, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "CYBER EARN ULTIMATE", snapshot.BotName)
}

func TestSnapshotFailsWithoutAnyCopy(t *testing.T) {
	repo := &fakeRepo{loadErr: errors.New("connection refused")}
	svc, _ := newTestService(repo)

	_, err := svc.Snapshot(context.Background())
	assert.Error(t, err)
}

func TestUpdateRefreshesCache(t *testing.T) {
	repo := &fakeRepo{stored: domain.DefaultSettings()}
	svc, _ := newTestService(repo)
	ctx := context.Background()

	updated, err := svc.Update(ctx, func(s *domain.Settings) {
		s.WithdrawDisabled = true
		s.Admins = []string{"42"}
	})
	require.NoError(t, err)
	assert.True(t, updated.WithdrawDisabled)
	assert.Equal(t, 1, repo.saveCalls)

	loadsBefore := repo.loads
	snapshot, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	assert.True(t, snapshot.WithdrawDisabled)
	assert.True(t, snapshot.IsAdmin("42"))
	assert.Equal(t, loadsBefore, repo.loads, "update must prime the cache")
}

func TestInvalidateDropsCache(t *testing.T) {
	repo := &fakeRepo{stored: domain.DefaultSettings()}
	svc, _ := newTestService(repo)
	ctx := context.Background()

	_, err := svc.Snapshot(ctx)
	require.NoError(t, err)

	svc.Invalidate()

	_, err = svc.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.loads)
}
