// Package settings serves the operational policy with bounded staleness.
// Policy values are read on almost every request but change rarely, so reads
// go through a short-lived cache; a given engine transaction takes one
// snapshot and uses it throughout.
package settings

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cyberearn/reward-wallet/internal/domain"
	"github.com/cyberearn/reward-wallet/internal/repository"
)

// DefaultStaleness is how long a cached policy snapshot may be served.
const DefaultStaleness = 5 * time.Second

// Service caches the settings record in front of its repository.
type Service struct {
	repo      repository.SettingsRepository
	log       *slog.Logger
	staleness time.Duration
	now       func() time.Time

	mu        sync.RWMutex
	cached    *domain.Settings
	fetchedAt time.Time
}

// NewService constructs a settings service with the default staleness bound.
func NewService(repo repository.SettingsRepository, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}

	return &Service{
		repo:      repo,
		log:       log,
		staleness: DefaultStaleness,
		now:       time.Now,
	}
}

// Snapshot returns a consistent copy of the current policy. The copy is the
// caller's to keep for the duration of one transaction; it never mutates
// under them.
func (s *Service) Snapshot(ctx context.Context) (*domain.Settings, error) {
	s.mu.RLock()
	if s.cached != nil && s.now().Sub(s.fetchedAt) < s.staleness {
		snapshot := s.cached.Clone()
		s.mu.RUnlock()
		return snapshot, nil
	}
	s.mu.RUnlock()

	loaded, err := s.repo.Load(ctx)
	if err != nil {
		s.log.Error("failed to load settings", slog.Any("error", err))

		// Serve the stale copy rather than failing the request outright.
		s.mu.RLock()
		defer s.mu.RUnlock()
		if s.cached != nil {
			return s.cached.Clone(), nil
		}
		return nil, err
	}

	s.mu.Lock()
	s.cached = loaded.Clone()
	s.fetchedAt = s.now()
	s.mu.Unlock()

	return loaded, nil
}

// Update applies mutate to the freshly loaded policy and persists the result,
// invalidating the cache.
func (s *Service) Update(ctx context.Context, mutate func(*domain.Settings)) (*domain.Settings, error) {
	loaded, err := s.repo.Load(ctx)
	if err != nil {
		return nil, err
	}

	mutate(loaded)

	if err := s.repo.Save(ctx, loaded); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cached = loaded.Clone()
	s.fetchedAt = s.now()
	s.mu.Unlock()

	return loaded, nil
}

// Invalidate drops the cached snapshot so the next read hits the repository.
func (s *Service) Invalidate() {
	s.mu.Lock()
	s.cached = nil
	s.mu.Unlock()
}
