package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cyberearn/reward-wallet/internal/domain"
)

// MemoryStore is an in-memory implementation of every repository contract.
// It backs local development without PostgreSQL and the test suite. The same
// optimistic-versioning semantics as the SQL implementation apply.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[string]*domain.User
	order    []string
	codes    map[string]*domain.GiftCode
	ledger   []*domain.WithdrawalRecord
	settings *domain.Settings
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[string]*domain.User),
		codes: make(map[string]*domain.GiftCode),
	}
}

var (
	_ UserRepository     = (*MemoryStore)(nil)
	_ GiftCodeRepository = memoryGiftCodes{}
	_ LedgerRepository   = (*MemoryStore)(nil)
	_ SettingsRepository = (*MemoryStore)(nil)
	_ CreditStore        = (*MemoryStore)(nil)
)

// GiftCodes returns the gift-code repository view of the store. The view
// exists because the user and gift-code contracts share method names.
func (s *MemoryStore) GiftCodes() GiftCodeRepository {
	return memoryGiftCodes{store: s}
}

type memoryGiftCodes struct {
	store *MemoryStore
}

func (g memoryGiftCodes) FindByCode(ctx context.Context, code string) (*domain.GiftCode, error) {
	return g.store.FindByCode(ctx, code)
}

func (g memoryGiftCodes) Create(ctx context.Context, code *domain.GiftCode) error {
	return g.store.CreateCode(ctx, code)
}

func (g memoryGiftCodes) Update(ctx context.Context, code *domain.GiftCode) error {
	return g.store.UpdateCode(ctx, code)
}

func (g memoryGiftCodes) List(ctx context.Context) ([]*domain.GiftCode, error) {
	return g.store.ListCodes(ctx)
}

func (g memoryGiftCodes) MarkExpired(ctx context.Context, now time.Time) (int, error) {
	return g.store.MarkExpired(ctx, now)
}

func (s *MemoryStore) Find(_ context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}

	return user.Clone(), nil
}

func (s *MemoryStore) Create(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; ok {
		return ErrDuplicate
	}

	user.Version = 1
	s.users[user.ID] = user.Clone()
	s.order = append(s.order, user.ID)
	return nil
}

func (s *MemoryStore) Update(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.updateUserLocked(user)
}

func (s *MemoryStore) updateUserLocked(user *domain.User) error {
	stored, ok := s.users[user.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Version != user.Version {
		return ErrVersionConflict
	}

	user.Version++
	s.users[user.ID] = user.Clone()
	return nil
}

func (s *MemoryStore) FindByReferralCode(_ context.Context, code string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if user.ReferralCode == code {
			return user.Clone(), nil
		}
	}

	return nil, ErrNotFound
}

func (s *MemoryStore) ReferralCodeExists(_ context.Context, code string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if user.ReferralCode == code {
			return true, nil
		}
	}

	return false, nil
}

func (s *MemoryStore) FindVerifiedByFingerprint(_ context.Context, fingerprint, excludeID string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if fingerprint == "" {
		return nil, ErrNotFound
	}

	for _, user := range s.users {
		if user.ID == excludeID {
			continue
		}
		if user.Verified && user.DeviceFingerprint == fingerprint {
			return user.Clone(), nil
		}
	}

	return nil, ErrNotFound
}

func (s *MemoryStore) List(_ context.Context) ([]*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]*domain.User, 0, len(s.order))
	for _, id := range s.order {
		users = append(users, s.users[id].Clone())
	}

	return users, nil
}

func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.users), nil
}

func (s *MemoryStore) FindByCode(_ context.Context, code string) (*domain.GiftCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	gift, ok := s.codes[code]
	if !ok {
		return nil, ErrNotFound
	}

	return gift.Clone(), nil
}

func (s *MemoryStore) CreateCode(ctx context.Context, code *domain.GiftCode) error {
	return s.createGiftCode(code)
}

func (s *MemoryStore) createGiftCode(code *domain.GiftCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.codes[code.Code]; ok {
		return ErrDuplicate
	}

	code.Version = 1
	s.codes[code.Code] = code.Clone()
	return nil
}

func (s *MemoryStore) UpdateCode(ctx context.Context, code *domain.GiftCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.updateCodeLocked(code)
}

func (s *MemoryStore) updateCodeLocked(code *domain.GiftCode) error {
	stored, ok := s.codes[code.Code]
	if !ok {
		return ErrNotFound
	}
	if stored.Version != code.Version {
		return ErrVersionConflict
	}

	code.Version++
	s.codes[code.Code] = code.Clone()
	return nil
}

func (s *MemoryStore) ListCodes(_ context.Context) ([]*domain.GiftCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	codes := make([]*domain.GiftCode, 0, len(s.codes))
	for _, gift := range s.codes {
		codes = append(codes, gift.Clone())
	}

	sort.Slice(codes, func(i, j int) bool {
		if codes[i].CreatedAt.Equal(codes[j].CreatedAt) {
			return codes[i].Code < codes[j].Code
		}
		return codes[i].CreatedAt.Before(codes[j].CreatedAt)
	})

	return codes, nil
}

func (s *MemoryStore) MarkExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	flagged := 0
	for _, gift := range s.codes {
		if !gift.Expired && gift.Expiry != nil && gift.Expiry.Before(now) {
			gift.Expired = true
			gift.Version++
			flagged++
		}
	}

	return flagged, nil
}

func (s *MemoryStore) Append(_ context.Context, rec *domain.WithdrawalRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *rec
	s.ledger = append(s.ledger, &cp)
	return nil
}

func (s *MemoryStore) FindByTxID(_ context.Context, txID string) (*domain.WithdrawalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rec := range s.ledger {
		if rec.TxID == txID {
			cp := *rec
			return &cp, nil
		}
	}

	return nil, ErrNotFound
}

func (s *MemoryStore) ListByUser(_ context.Context, userID string, limit int) ([]*domain.WithdrawalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []*domain.WithdrawalRecord
	for i := len(s.ledger) - 1; i >= 0 && len(records) < limit; i-- {
		if s.ledger[i].UserID == userID {
			cp := *s.ledger[i]
			records = append(records, &cp)
		}
	}

	return records, nil
}

func (s *MemoryStore) ListPendingWithdrawals(_ context.Context) ([]*domain.WithdrawalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []*domain.WithdrawalRecord
	for i := len(s.ledger) - 1; i >= 0; i-- {
		if s.ledger[i].Category == domain.CategoryWithdrawal && s.ledger[i].Status == domain.StatusPending {
			cp := *s.ledger[i]
			records = append(records, &cp)
		}
	}

	return records, nil
}

func (s *MemoryStore) ListWithdrawals(_ context.Context, limit int) ([]*domain.WithdrawalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []*domain.WithdrawalRecord
	for i := len(s.ledger) - 1; i >= 0 && len(records) < limit; i-- {
		if s.ledger[i].Category == domain.CategoryWithdrawal {
			cp := *s.ledger[i]
			records = append(records, &cp)
		}
	}

	return records, nil
}

func (s *MemoryStore) UpdateStatus(_ context.Context, txID string, status domain.Status, settlementRef string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range s.ledger {
		if rec.TxID == txID {
			if rec.Status != domain.StatusPending {
				return ErrNotFound
			}
			rec.Status = status
			rec.SettlementRef = settlementRef
			return nil
		}
	}

	return ErrNotFound
}

func (s *MemoryStore) Load(_ context.Context) (*domain.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.settings == nil {
		s.settings = domain.DefaultSettings()
	}

	return s.settings.Clone(), nil
}

func (s *MemoryStore) Save(_ context.Context, settings *domain.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.settings = settings.Clone()
	return nil
}

// ApplyGiftClaim commits the user credit, code usage and ledger record under
// one lock so the pair can never be observed half-applied.
func (s *MemoryStore) ApplyGiftClaim(_ context.Context, user *domain.User, code *domain.GiftCode, rec *domain.WithdrawalRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	storedUser, ok := s.users[user.ID]
	if !ok {
		return ErrNotFound
	}
	storedCode, ok := s.codes[code.Code]
	if !ok {
		return ErrNotFound
	}
	if storedUser.Version != user.Version || storedCode.Version != code.Version {
		return ErrVersionConflict
	}

	user.Version++
	code.Version++
	s.users[user.ID] = user.Clone()
	s.codes[code.Code] = code.Clone()

	cp := *rec
	s.ledger = append(s.ledger, &cp)
	return nil
}

// ApplyReferralCredit commits the referrer update and its ledger record under
// one lock so the pair can never be observed half-applied.
func (s *MemoryStore) ApplyReferralCredit(_ context.Context, referrer *domain.User, rec *domain.WithdrawalRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.users[referrer.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Version != referrer.Version {
		return ErrVersionConflict
	}

	referrer.Version++
	s.users[referrer.ID] = referrer.Clone()

	cp := *rec
	s.ledger = append(s.ledger, &cp)
	return nil
}
