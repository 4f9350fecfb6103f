package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberearn/reward-wallet/internal/domain"
	apperrors "github.com/cyberearn/reward-wallet/internal/errors"
	"github.com/cyberearn/reward-wallet/internal/giftcode"
	"github.com/cyberearn/reward-wallet/internal/leaderboard"
	"github.com/cyberearn/reward-wallet/internal/ledger"
	"github.com/cyberearn/reward-wallet/internal/lock"
	"github.com/cyberearn/reward-wallet/internal/notify"
	"github.com/cyberearn/reward-wallet/internal/repository"
	"github.com/cyberearn/reward-wallet/internal/settings"
)

type recordedEvent struct {
	recipient string
	kind      notify.EventKind
	payload   map[string]string
}

type recorderNotifier struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *recorderNotifier) Notify(_ context.Context, recipientID string, kind notify.EventKind, payload map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{recipient: recipientID, kind: kind, payload: payload})
}

func (r *recorderNotifier) byKind(kind notify.EventKind) []recordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []recordedEvent
	for _, ev := range r.events {
		if ev.kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

func newTestEngine(t *testing.T, seed int64, mutate func(*domain.Settings)) (*Engine, *repository.MemoryStore, *recorderNotifier) {
	t.Helper()

	store := repository.NewMemoryStore()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	settingsSvc := settings.NewService(store, log)
	if mutate != nil {
		_, err := settingsSvc.Update(context.Background(), mutate)
		require.NoError(t, err)
	}

	notifier := &recorderNotifier{}
	eng := New(Config{
		Users:     store,
		Credits:   store,
		Registry:  giftcode.NewRegistry(store.GiftCodes(), log),
		Ledger:    ledger.NewService(store, log),
		Settings:  settingsSvc,
		Board:     leaderboard.NewCache(nil, store, log),
		Locks:     lock.NewMemoryLocker(),
		Notifier:  notifier,
		RootAdmin: "900",
		Rand:      NewRand(seed),
		Log:       log,
	})

	return eng, store, notifier
}

func seedUser(t *testing.T, store *repository.MemoryStore, id string, balance int64, verified bool) *domain.User {
	t.Helper()

	user := &domain.User{
		ID:           id,
		Name:         "user-" + id,
		Balance:      decimal.NewFromInt(balance),
		Verified:     verified,
		ReferralCode: "RC-" + id,
		JoinedAt:     time.Now().UTC(),
	}
	require.NoError(t, store.Create(context.Background(), user))

	return user
}

func requireReason(t *testing.T, err error, kind apperrors.Kind, reason string) {
	t.Helper()

	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, kind), "expected kind %s, got %v", kind, err)
	if reason != "" {
		appErr, ok := err.(*apperrors.AppError)
		require.True(t, ok)
		assert.Equal(t, reason, appErr.Reason)
	}
}

func TestRegisterUser(t *testing.T) {
	eng, _, notifier := newTestEngine(t, 1, nil)
	ctx := context.Background()

	user, err := eng.RegisterUser(ctx, "101", "Alice", "")
	require.NoError(t, err)
	assert.Len(t, user.ReferralCode, referralCodeLength)
	assert.True(t, user.Balance.IsZero())
	assert.False(t, user.Verified)

	again, err := eng.RegisterUser(ctx, "101", "Someone Else", "WHATEVER")
	require.NoError(t, err)
	assert.Equal(t, user.Name, again.Name)
	assert.Equal(t, user.ReferralCode, again.ReferralCode)
	assert.Empty(t, again.ReferredBy)

	assert.Len(t, notifier.byKind(notify.EventNewUser), 1)
}

func TestRegisterUserAvoidsReferralCodeCollision(t *testing.T) {
	// Two generators with the same seed draw the same first code; seeding the
	// store with it forces the allocator to redraw.
	taken := NewRand(7).Code(referralCodeLength)

	eng, store, _ := newTestEngine(t, 7, nil)
	ctx := context.Background()

	squatter := &domain.User{ID: "1", Name: "squatter", ReferralCode: taken, JoinedAt: time.Now().UTC()}
	require.NoError(t, store.Create(ctx, squatter))

	user, err := eng.RegisterUser(ctx, "2", "Bob", "")
	require.NoError(t, err)
	assert.NotEqual(t, taken, user.ReferralCode)
	assert.Len(t, user.ReferralCode, referralCodeLength)
}

func TestVerifyUser(t *testing.T) {
	testCases := []struct {
		name        string
		settings    func(*domain.Settings)
		member      bool
		fingerprint string
		seed        func(t *testing.T, store *repository.MemoryStore)
		wantKind    apperrors.Kind
		wantReason  string
	}{
		{
			name:        "pays welcome bonus",
			fingerprint: "fp-alpha",
		},
		{
			name:        "skip sentinel bypasses device gate",
			fingerprint: domain.FingerprintSkip,
			seed: func(t *testing.T, store *repository.MemoryStore) {
				other := seedUser(t, store, "800", 0, true)
				other.DeviceFingerprint = "fp-alpha"
				require.NoError(t, store.Update(context.Background(), other))
			},
		},
		{
			name: "channel gate refuses",
			settings: func(s *domain.Settings) {
				s.Channels = []domain.Channel{{ID: "-100", Name: "main"}}
			},
			member:      false,
			fingerprint: "fp-alpha",
			wantKind:    apperrors.KindPolicyViolation,
			wantReason:  "channel",
		},
		{
			name:        "device gate refuses",
			fingerprint: "fp-alpha",
			seed: func(t *testing.T, store *repository.MemoryStore) {
				other := seedUser(t, store, "800", 0, true)
				other.DeviceFingerprint = "fp-alpha"
				require.NoError(t, store.Update(context.Background(), other))
			},
			wantKind:   apperrors.KindPolicyViolation,
			wantReason: "device",
		},
		{
			name: "both gates report together",
			settings: func(s *domain.Settings) {
				s.Channels = []domain.Channel{{ID: "-100", Name: "main"}}
			},
			member:      false,
			fingerprint: "fp-alpha",
			seed: func(t *testing.T, store *repository.MemoryStore) {
				other := seedUser(t, store, "800", 0, true)
				other.DeviceFingerprint = "fp-alpha"
				require.NoError(t, store.Update(context.Background(), other))
			},
			wantKind:   apperrors.KindPolicyViolation,
			wantReason: "both",
		},
		{
			name: "device override disables gate",
			settings: func(s *domain.Settings) {
				s.IgnoreDeviceCheck = true
			},
			fingerprint: "fp-alpha",
			seed: func(t *testing.T, store *repository.MemoryStore) {
				other := seedUser(t, store, "800", 0, true)
				other.DeviceFingerprint = "fp-alpha"
				require.NoError(t, store.Update(context.Background(), other))
			},
		},
		{
			name: "maintenance refuses non-admin",
			settings: func(s *domain.Settings) {
				s.BotsDisabled = true
			},
			fingerprint: "fp-alpha",
			wantKind:    apperrors.KindPolicyViolation,
			wantReason:  "maintenance",
		},
		{
			name:        "unknown user",
			fingerprint: "fp-alpha",
			wantKind:    apperrors.KindNotFound,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			eng, store, _ := newTestEngine(t, 42, tc.settings)
			eng.membership = notify.StaticChecker{Member: tc.member}
			ctx := context.Background()

			subjectID := "101"
			if tc.wantKind == apperrors.KindNotFound {
				subjectID = "999"
			} else {
				seedUser(t, store, subjectID, 0, false)
			}
			if tc.seed != nil {
				tc.seed(t, store)
			}

			res, err := eng.VerifyUser(ctx, subjectID, tc.fingerprint)

			if tc.wantKind != "" {
				requireReason(t, err, tc.wantKind, tc.wantReason)

				if subjectID == "101" {
					user, findErr := store.Find(ctx, subjectID)
					require.NoError(t, findErr)
					assert.False(t, user.Verified)
					assert.True(t, user.Balance.IsZero())
				}
				return
			}

			require.NoError(t, err)
			assert.False(t, res.AlreadyVerified)
			assert.True(t, res.Bonus.Equal(decimal.NewFromInt(50)))
			assert.True(t, res.Balance.Equal(decimal.NewFromInt(50)))

			records, err := store.ListByUser(ctx, subjectID, 10)
			require.NoError(t, err)
			require.Len(t, records, 1)
			assert.Equal(t, domain.CategorySignupBonus, records[0].Category)
			assert.Equal(t, domain.StatusCompleted, records[0].Status)
		})
	}
}

func TestVerifyUserIdempotent(t *testing.T) {
	eng, store, _ := newTestEngine(t, 42, nil)
	ctx := context.Background()
	seedUser(t, store, "101", 0, false)

	first, err := eng.VerifyUser(ctx, "101", "fp-alpha")
	require.NoError(t, err)
	assert.False(t, first.AlreadyVerified)

	second, err := eng.VerifyUser(ctx, "101", "fp-alpha")
	require.NoError(t, err)
	assert.True(t, second.AlreadyVerified)
	assert.True(t, second.Balance.Equal(first.Balance))

	records, err := store.ListByUser(ctx, "101", 10)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestVerifyUserCreditsReferrerExactlyOnce(t *testing.T) {
	eng, store, notifier := newTestEngine(t, 42, nil)
	ctx := context.Background()

	referrer, err := eng.RegisterUser(ctx, "100", "Referrer", "")
	require.NoError(t, err)
	_, err = eng.RegisterUser(ctx, "200", "Referred", referrer.ReferralCode)
	require.NoError(t, err)

	const workers = 8
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, _ = eng.VerifyUser(ctx, "200", domain.FingerprintSkip)
		}()
	}
	wg.Wait()

	stored, err := store.Find(ctx, "100")
	require.NoError(t, err)
	require.Len(t, stored.ReferredUsers, 1)

	reward := stored.Balance
	assert.True(t, reward.GreaterThanOrEqual(decimal.NewFromInt(10)), "reward %s below floor", reward)
	assert.True(t, reward.LessThanOrEqual(decimal.NewFromInt(50)), "reward %s above ceiling", reward)
	assert.True(t, reward.Equal(reward.Round(2)))

	records, err := store.ListByUser(ctx, "100", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, domain.CategoryReferralBonus, records[0].Category)
	assert.True(t, records[0].Amount.Equal(reward))

	assert.Len(t, notifier.byKind(notify.EventReferralBonus), 1)
}

// failingCreditStore refuses referral credits while leaving gift claims and
// every repository contract intact.
type failingCreditStore struct {
	*repository.MemoryStore
}

func (f *failingCreditStore) ApplyReferralCredit(context.Context, *domain.User, *domain.WithdrawalRecord) error {
	return errors.New("credit store offline")
}

func TestVerifyUserReferralCreditFailureLeavesNoPartialState(t *testing.T) {
	eng, store, notifier := newTestEngine(t, 42, nil)
	eng.credits = &failingCreditStore{MemoryStore: store}
	ctx := context.Background()

	referrer, err := eng.RegisterUser(ctx, "100", "Referrer", "")
	require.NoError(t, err)
	_, err = eng.RegisterUser(ctx, "200", "Referred", referrer.ReferralCode)
	require.NoError(t, err)

	res, err := eng.VerifyUser(ctx, "200", domain.FingerprintSkip)
	require.NoError(t, err, "verification must commit regardless of the credit outcome")
	assert.False(t, res.AlreadyVerified)

	stored, err := store.Find(ctx, "100")
	require.NoError(t, err)
	assert.True(t, stored.Balance.IsZero(), "no balance movement without its ledger record")
	assert.Empty(t, stored.ReferredUsers, "a failed credit must stay replayable")

	records, err := store.ListByUser(ctx, "100", 10)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Empty(t, notifier.byKind(notify.EventReferralBonus))
}

func TestClaimGiftCode(t *testing.T) {
	past := time.Now().Add(-time.Hour)

	testCases := []struct {
		name       string
		prepare    func(t *testing.T, eng *Engine)
		code       string
		wantKind   apperrors.Kind
		wantReason string
	}{
		{
			name: "credits within range",
			code: "SUMMER25",
		},
		{
			name:     "unknown code",
			code:     "NOPE123",
			wantKind: apperrors.KindNotFound,
		},
		{
			name:     "malformed code",
			code:     "x",
			wantKind: apperrors.KindInvalidInput,
		},
		{
			name: "expired code",
			prepare: func(t *testing.T, eng *Engine) {
				_, err := eng.registry.Create(context.Background(), "OLDCODE",
					decimal.NewFromInt(5), decimal.NewFromInt(10), 3, &past)
				require.NoError(t, err)
			},
			code:       "OLDCODE",
			wantKind:   apperrors.KindPolicyViolation,
			wantReason: "expired",
		},
		{
			name: "disabled code",
			prepare: func(t *testing.T, eng *Engine) {
				require.NoError(t, eng.registry.SetActive(context.Background(), "SUMMER25", false))
			},
			code:       "SUMMER25",
			wantKind:   apperrors.KindPolicyViolation,
			wantReason: "inactive",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			eng, store, _ := newTestEngine(t, 42, nil)
			ctx := context.Background()
			seedUser(t, store, "101", 0, true)

			_, err := eng.registry.Create(ctx, "SUMMER25",
				decimal.NewFromInt(5), decimal.NewFromInt(20), 2, nil)
			require.NoError(t, err)

			if tc.prepare != nil {
				tc.prepare(t, eng)
			}

			res, err := eng.ClaimGiftCode(ctx, "101", tc.code)

			if tc.wantKind != "" {
				requireReason(t, err, tc.wantKind, tc.wantReason)

				user, findErr := store.Find(ctx, "101")
				require.NoError(t, findErr)
				assert.True(t, user.Balance.IsZero())
				return
			}

			require.NoError(t, err)
			assert.True(t, res.Amount.GreaterThanOrEqual(decimal.NewFromInt(5)))
			assert.True(t, res.Amount.LessThanOrEqual(decimal.NewFromInt(20)))
			assert.True(t, res.Balance.Equal(res.Amount))

			records, err := store.ListByUser(ctx, "101", 10)
			require.NoError(t, err)
			require.Len(t, records, 1)
			assert.Equal(t, domain.CategoryGiftRedemption, records[0].Category)
		})
	}
}

func TestClaimGiftCodeTwiceRefused(t *testing.T) {
	eng, store, _ := newTestEngine(t, 42, nil)
	ctx := context.Background()
	seedUser(t, store, "101", 0, true)

	_, err := eng.registry.Create(ctx, "SUMMER25", decimal.NewFromInt(5), decimal.NewFromInt(20), 5, nil)
	require.NoError(t, err)

	first, err := eng.ClaimGiftCode(ctx, "101", "summer25 ")
	require.NoError(t, err)

	_, err = eng.ClaimGiftCode(ctx, "101", "SUMMER25")
	requireReason(t, err, apperrors.KindAlreadyDone, "")

	user, err := store.Find(ctx, "101")
	require.NoError(t, err)
	assert.True(t, user.Balance.Equal(first.Amount))
}

func TestClaimGiftCodeCapacityUnderConcurrency(t *testing.T) {
	eng, store, _ := newTestEngine(t, 42, nil)
	ctx := context.Background()

	const totalUses = 3
	const claimants = 8

	_, err := eng.registry.Create(ctx, "LIMITED1", decimal.NewFromInt(10), decimal.NewFromInt(10), totalUses, nil)
	require.NoError(t, err)

	for i := 0; i < claimants; i++ {
		seedUser(t, store, "10"+string(rune('0'+i)), 0, true)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0

	wg.Add(claimants)
	for i := 0; i < claimants; i++ {
		go func(id string) {
			defer wg.Done()
			if _, err := eng.ClaimGiftCode(ctx, id, "LIMITED1"); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}("10" + string(rune('0'+i)))
	}
	wg.Wait()

	assert.Equal(t, totalUses, succeeded)

	gift, err := store.FindByCode(ctx, "LIMITED1")
	require.NoError(t, err)
	assert.Len(t, gift.UsedBy, totalUses)
}

func TestRequestWithdrawal(t *testing.T) {
	testCases := []struct {
		name       string
		settings   func(*domain.Settings)
		balance    int64
		verified   bool
		amount     decimal.Decimal
		address    string
		wantKind   apperrors.Kind
		wantReason string
	}{
		{
			name:     "queues pending request",
			balance:  500,
			verified: true,
			amount:   decimal.NewFromInt(150),
			address:  "alice@upi",
		},
		{
			name: "auto mode settles immediately",
			settings: func(s *domain.Settings) {
				s.AutoWithdraw = true
			},
			balance:  500,
			verified: true,
			amount:   decimal.NewFromInt(150),
			address:  "alice@upi",
		},
		{
			name:       "below minimum",
			balance:    500,
			verified:   true,
			amount:     decimal.NewFromInt(99),
			address:    "alice@upi",
			wantKind:   apperrors.KindPolicyViolation,
			wantReason: "min_withdrawal",
		},
		{
			name:       "overdraw refused",
			balance:    120,
			verified:   true,
			amount:     decimal.NewFromInt(150),
			address:    "alice@upi",
			wantKind:   apperrors.KindPolicyViolation,
			wantReason: "insufficient_balance",
		},
		{
			name:     "malformed payout address",
			balance:  500,
			verified: true,
			amount:   decimal.NewFromInt(150),
			address:  "not-a-upi",
			wantKind: apperrors.KindInvalidInput,
		},
		{
			name:     "sub-paisa precision refused",
			balance:  500,
			verified: true,
			amount:   decimal.RequireFromString("150.005"),
			address:  "alice@upi",
			wantKind: apperrors.KindInvalidInput,
		},
		{
			name: "withdrawals disabled",
			settings: func(s *domain.Settings) {
				s.WithdrawDisabled = true
			},
			balance:    500,
			verified:   true,
			amount:     decimal.NewFromInt(150),
			address:    "alice@upi",
			wantKind:   apperrors.KindPolicyViolation,
			wantReason: "withdraw_disabled",
		},
		{
			name:       "unverified account",
			balance:    500,
			verified:   false,
			amount:     decimal.NewFromInt(150),
			address:    "alice@upi",
			wantKind:   apperrors.KindPolicyViolation,
			wantReason: "unverified",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			eng, store, _ := newTestEngine(t, 42, tc.settings)
			ctx := context.Background()
			seedUser(t, store, "101", tc.balance, tc.verified)

			res, err := eng.RequestWithdrawal(ctx, "101", tc.amount, tc.address)

			if tc.wantKind != "" {
				requireReason(t, err, tc.wantKind, tc.wantReason)

				user, findErr := store.Find(ctx, "101")
				require.NoError(t, findErr)
				assert.True(t, user.Balance.Equal(decimal.NewFromInt(tc.balance)), "balance must be untouched")
				return
			}

			require.NoError(t, err)
			assert.True(t, res.Balance.Equal(decimal.NewFromInt(tc.balance).Sub(tc.amount)))

			rec, err := store.FindByTxID(ctx, res.TxID)
			require.NoError(t, err)
			assert.Equal(t, domain.CategoryWithdrawal, rec.Category)
			assert.Equal(t, "alice@upi", rec.PayoutAddress)

			if tc.name == "auto mode settles immediately" {
				assert.Equal(t, domain.StatusCompleted, rec.Status)
				assert.True(t, strings.HasPrefix(rec.SettlementRef, "AUTO-"))
			} else {
				assert.Equal(t, domain.StatusPending, rec.Status)
				assert.Empty(t, rec.SettlementRef)
			}
		})
	}
}

func TestRequestWithdrawalConcurrentNoOverdraw(t *testing.T) {
	eng, store, _ := newTestEngine(t, 42, nil)
	ctx := context.Background()
	seedUser(t, store, "101", 150, true)

	var wg sync.WaitGroup
	results := make([]error, 2)

	wg.Add(2)
	for i := 0; i < 2; i++ {
		go func(slot int) {
			defer wg.Done()
			_, results[slot] = eng.RequestWithdrawal(ctx, "101", decimal.NewFromInt(100), "alice@upi")
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
		} else {
			requireReason(t, err, apperrors.KindPolicyViolation, "insufficient_balance")
		}
	}
	assert.Equal(t, 1, succeeded)

	user, err := store.Find(ctx, "101")
	require.NoError(t, err)
	assert.True(t, user.Balance.Equal(decimal.NewFromInt(50)))
}

func TestSettleWithdrawal(t *testing.T) {
	t.Run("approve stamps settlement reference", func(t *testing.T) {
		eng, store, notifier := newTestEngine(t, 42, nil)
		ctx := context.Background()
		seedUser(t, store, "101", 500, true)

		res, err := eng.RequestWithdrawal(ctx, "101", decimal.NewFromInt(150), "alice@upi")
		require.NoError(t, err)

		rec, err := eng.SettleWithdrawal(ctx, res.TxID, true, "UTR998877")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusCompleted, rec.Status)
		assert.Equal(t, "UTR998877", rec.SettlementRef)

		user, err := store.Find(ctx, "101")
		require.NoError(t, err)
		assert.True(t, user.Balance.Equal(decimal.NewFromInt(350)), "approval must not refund")

		assert.Len(t, notifier.byKind(notify.EventWithdrawalPaid), 1)
	})

	t.Run("reject refunds the debit", func(t *testing.T) {
		eng, store, notifier := newTestEngine(t, 42, nil)
		ctx := context.Background()
		seedUser(t, store, "101", 500, true)

		res, err := eng.RequestWithdrawal(ctx, "101", decimal.NewFromInt(150), "alice@upi")
		require.NoError(t, err)

		rec, err := eng.SettleWithdrawal(ctx, res.TxID, false, "")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusRejected, rec.Status)

		user, err := store.Find(ctx, "101")
		require.NoError(t, err)
		assert.True(t, user.Balance.Equal(decimal.NewFromInt(500)))

		assert.Len(t, notifier.byKind(notify.EventWithdrawalRejected), 1)
	})

	t.Run("second settlement refused", func(t *testing.T) {
		eng, store, _ := newTestEngine(t, 42, nil)
		ctx := context.Background()
		seedUser(t, store, "101", 500, true)

		res, err := eng.RequestWithdrawal(ctx, "101", decimal.NewFromInt(150), "alice@upi")
		require.NoError(t, err)

		_, err = eng.SettleWithdrawal(ctx, res.TxID, true, "")
		require.NoError(t, err)

		_, err = eng.SettleWithdrawal(ctx, res.TxID, false, "")
		requireReason(t, err, apperrors.KindAlreadyDone, "")
	})

	t.Run("synthetic records are not settleable", func(t *testing.T) {
		eng, store, _ := newTestEngine(t, 42, nil)
		ctx := context.Background()
		seedUser(t, store, "101", 0, false)

		_, err := eng.VerifyUser(ctx, "101", domain.FingerprintSkip)
		require.NoError(t, err)

		records, err := store.ListByUser(ctx, "101", 10)
		require.NoError(t, err)
		require.Len(t, records, 1)

		_, err = eng.SettleWithdrawal(ctx, records[0].TxID, true, "")
		requireReason(t, err, apperrors.KindInvalidInput, "")
	})
}

func TestGetReferralSummary(t *testing.T) {
	eng, store, _ := newTestEngine(t, 42, nil)
	ctx := context.Background()

	referrer, err := eng.RegisterUser(ctx, "100", "Referrer", "")
	require.NoError(t, err)

	const referredTotal = 25
	for i := 0; i < referredTotal; i++ {
		id := "20" + string(rune('0'+i%10)) + string(rune('a'+i/10))
		seedUser(t, store, id, 0, i%2 == 0)

		stored, err := store.Find(ctx, "100")
		require.NoError(t, err)
		stored.ReferredUsers = append(stored.ReferredUsers, id)
		require.NoError(t, store.Update(ctx, stored))
	}

	summary, err := eng.GetReferralSummary(ctx, "100")
	require.NoError(t, err)

	assert.Equal(t, referrer.ReferralCode, summary.ReferralCode)
	assert.Equal(t, referredTotal, summary.TotalReferred)
	assert.Equal(t, 13, summary.VerifiedCount)
	assert.Equal(t, 12, summary.PendingCount)
	assert.Len(t, summary.Referred, maxListedReferrals)
}

func TestGetReferralSummaryBackfillsCode(t *testing.T) {
	eng, store, _ := newTestEngine(t, 42, nil)
	ctx := context.Background()

	legacy := &domain.User{ID: "300", Name: "legacy", JoinedAt: time.Now().UTC()}
	require.NoError(t, store.Create(ctx, legacy))

	summary, err := eng.GetReferralSummary(ctx, "300")
	require.NoError(t, err)
	assert.Len(t, summary.ReferralCode, referralCodeLength)

	again, err := eng.GetReferralSummary(ctx, "300")
	require.NoError(t, err)
	assert.Equal(t, summary.ReferralCode, again.ReferralCode)
}

func TestStatusAndHistory(t *testing.T) {
	eng, store, _ := newTestEngine(t, 42, nil)
	ctx := context.Background()
	seedUser(t, store, "101", 5000, true)

	status, err := eng.Status(ctx, "101")
	require.NoError(t, err)
	assert.True(t, status.Balance.Equal(decimal.NewFromInt(5000)))
	assert.True(t, status.Verified)

	_, err = eng.Status(ctx, "999")
	requireReason(t, err, apperrors.KindNotFound, "")

	for i := 0; i < 12; i++ {
		_, err := eng.RequestWithdrawal(ctx, "101", decimal.RequireFromString("100.50"), "alice@upi")
		require.NoError(t, err)
	}

	history, err := eng.History(ctx, "101", 0)
	require.NoError(t, err)
	assert.Len(t, history, ledger.DefaultHistoryLimit)

	history, err = eng.History(ctx, "101", 2)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}
