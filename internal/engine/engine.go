// Package engine orchestrates every balance-affecting state transition:
// verification, gift redemption, withdrawals and referral credit. Each
// operation owns the target user for its duration (per-user lock), reads one
// policy snapshot, validates, then performs a single versioned write; version
// conflicts retry the whole transition a bounded number of times.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

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

// maxTxAttempts bounds optimistic-write retries before surfacing Conflict.
const maxTxAttempts = 3

// errAlreadyApplied aborts an update closure when the transition already
// happened; callers translate it into an idempotent outcome.
var errAlreadyApplied = errors.New("transition already applied")

// AdminChecker reports whether a user may bypass maintenance mode.
type AdminChecker interface {
	IsAdmin(ctx context.Context, userID string) bool
}

// Engine is the reward ledger and verification engine.
type Engine struct {
	users      repository.UserRepository
	credits    repository.CreditStore
	registry   *giftcode.Registry
	ledger     *ledger.Service
	settings   *settings.Service
	board      *leaderboard.Cache
	locks      lock.Locker
	membership notify.MembershipChecker
	notifier   notify.Notifier
	admins     AdminChecker
	rootAdmin  string
	rng        *Rand
	log        *slog.Logger
	now        func() time.Time
}

// Config collects the engine's collaborators.
type Config struct {
	Users      repository.UserRepository
	Credits    repository.CreditStore
	Registry   *giftcode.Registry
	Ledger     *ledger.Service
	Settings   *settings.Service
	Board      *leaderboard.Cache
	Locks      lock.Locker
	Membership notify.MembershipChecker
	Notifier   notify.Notifier
	Admins     AdminChecker
	RootAdmin  string
	Rand       *Rand
	Log        *slog.Logger
}

// New constructs an Engine. Nil Rand, Log, Notifier and Membership get safe
// defaults.
func New(cfg Config) *Engine {
	if cfg.Rand == nil {
		cfg.Rand = NewRand(time.Now().UnixNano())
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	if cfg.Notifier == nil {
		cfg.Notifier = notify.NopNotifier{}
	}
	if cfg.Membership == nil {
		cfg.Membership = notify.StaticChecker{Member: true}
	}

	return &Engine{
		users:      cfg.Users,
		credits:    cfg.Credits,
		registry:   cfg.Registry,
		ledger:     cfg.Ledger,
		settings:   cfg.Settings,
		board:      cfg.Board,
		locks:      cfg.Locks,
		membership: cfg.Membership,
		notifier:   cfg.Notifier,
		admins:     cfg.Admins,
		rootAdmin:  cfg.RootAdmin,
		rng:        cfg.Rand,
		log:        cfg.Log,
		now:        time.Now,
	}
}

func (e *Engine) policy(ctx context.Context) (*domain.Settings, error) {
	snapshot, err := e.settings.Snapshot(ctx)
	if err != nil {
		return nil, apperrors.NewUnavailable("settings store", err)
	}

	return snapshot, nil
}

// guardMaintenance refuses non-admin mutations while the system is disabled.
func (e *Engine) guardMaintenance(ctx context.Context, policy *domain.Settings, userID string) error {
	if !policy.BotsDisabled {
		return nil
	}
	if e.admins != nil && e.admins.IsAdmin(ctx, userID) {
		return nil
	}

	return apperrors.NewPolicyViolation("maintenance", "system is under maintenance")
}

func (e *Engine) acquireUser(ctx context.Context, userID string) (func(), error) {
	release, err := e.locks.Acquire(ctx, "user:"+userID)
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			return nil, apperrors.NewConflict("user is busy, try again")
		}
		return nil, apperrors.NewUnavailable("lock service", err)
	}

	return release, nil
}

func (e *Engine) loadUser(ctx context.Context, userID string) (*domain.User, error) {
	user, err := e.users.Find(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("user")
		}
		return nil, apperrors.NewUnavailable("user store", err)
	}

	return user, nil
}

// updateUser runs the read-validate-mutate-write cycle under the caller's
// lock, retrying lost optimistic races. apply mutates the passed record in
// place; returning an error aborts without writing.
func (e *Engine) updateUser(ctx context.Context, userID string, apply func(*domain.User) error) (*domain.User, error) {
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		user, err := e.loadUser(ctx, userID)
		if err != nil {
			return nil, err
		}

		if err := apply(user); err != nil {
			return nil, err
		}

		err = e.users.Update(ctx, user)
		if err == nil {
			return user, nil
		}
		if errors.Is(err, repository.ErrVersionConflict) {
			continue
		}

		return nil, apperrors.NewUnavailable("user store", err)
	}

	return nil, apperrors.NewConflict("user update lost concurrent race")
}

// notifyAdmins fans an event out to the root admin and the configured admin
// set. Fire-and-forget like every notification.
func (e *Engine) notifyAdmins(ctx context.Context, policy *domain.Settings, kind notify.EventKind, payload map[string]string) {
	seen := make(map[string]struct{}, len(policy.Admins)+1)
	if e.rootAdmin != "" {
		seen[e.rootAdmin] = struct{}{}
		e.notifier.Notify(ctx, e.rootAdmin, kind, payload)
	}

	for _, adminID := range policy.Admins {
		if _, ok := seen[adminID]; ok {
			continue
		}
		seen[adminID] = struct{}{}
		e.notifier.Notify(ctx, adminID, kind, payload)
	}
}
